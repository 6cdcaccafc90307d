package block

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedReference marks a parent, child or cell id that does not
	// resolve to a block in the map.
	ErrMalformedReference = errors.New("malformed block reference")
	ErrDuplicateID        = errors.New("duplicate block id")
	ErrEmptyID            = errors.New("empty block id")
)

// Map is an immutable arena of blocks indexed by id. Blocks keep their
// input order; links between them stay as ids resolved through the index.
type Map struct {
	blocks []Block
	index  map[string]int
}

// NewMap copies blocks into a new arena. It fails on empty or duplicate ids
// but does not check references; call Validate for that.
func NewMap(blocks []Block) (*Map, error) {
	m := &Map{
		blocks: make([]Block, len(blocks)),
		index:  make(map[string]int, len(blocks)),
	}
	copy(m.blocks, blocks)
	for i := range m.blocks {
		id := m.blocks[i].ID
		if id == "" {
			return nil, fmt.Errorf("block at position %d: %w", i, ErrEmptyID)
		}
		if _, dup := m.index[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		m.index[id] = i
	}
	return m, nil
}

// Get returns the block with the given id. The returned block must not be
// modified.
func (m *Map) Get(id string) (*Block, bool) {
	i, ok := m.index[id]
	if !ok {
		return nil, false
	}
	return &m.blocks[i], true
}

func (m *Map) Len() int { return len(m.blocks) }

// Root returns the id of the first block without a parent, normally the
// page block whose id equals the document id.
func (m *Map) Root() (string, bool) {
	for i := range m.blocks {
		if m.blocks[i].ParentID == "" {
			return m.blocks[i].ID, true
		}
	}
	return "", false
}

// Each calls fn for every block in input order.
func (m *Map) Each(fn func(b *Block)) {
	for i := range m.blocks {
		fn(&m.blocks[i])
	}
}

// Validate checks that every parent, child and table cell reference
// resolves. It returns the first broken reference found.
func (m *Map) Validate() error {
	for i := range m.blocks {
		b := &m.blocks[i]
		if b.ParentID != "" {
			if _, ok := m.index[b.ParentID]; !ok {
				return fmt.Errorf("%w: block %s has unknown parent %s", ErrMalformedReference, b.ID, b.ParentID)
			}
		}
		for _, c := range b.Children {
			if _, ok := m.index[c]; !ok {
				return fmt.Errorf("%w: block %s has unknown child %s", ErrMalformedReference, b.ID, c)
			}
		}
		if b.Table != nil {
			for _, c := range b.Table.Cells {
				if _, ok := m.index[c]; !ok {
					return fmt.Errorf("%w: table %s has unknown cell %s", ErrMalformedReference, b.ID, c)
				}
			}
		}
	}
	return nil
}
