package render

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/dgallion1/docsplit/internal/block"
)

// table lays the cells out row-major and writes them as a Markdown table
// whose first row is the header.
func (r *Renderer) table(sb *strings.Builder, m *block.Map, b *block.Block, depth int) error {
	if b.Table == nil || len(b.Table.Cells) == 0 {
		return nil
	}
	cols := b.Table.Property.ColumnSize
	if cols <= 0 {
		cols = len(b.Table.Cells)
	}

	var rows []table.Row
	for i, id := range b.Table.Cells {
		cell, ok := m.Get(id)
		if !ok {
			return &MissingBlockError{ID: id, Referrer: b.ID}
		}
		var cb strings.Builder
		if err := r.block(&cb, m, cell, 0, depth+1); err != nil {
			return err
		}
		if i%cols == 0 {
			rows = append(rows, make(table.Row, 0, cols))
		}
		last := len(rows) - 1
		rows[last] = append(rows[last], strings.ReplaceAll(cb.String(), "\n", ""))
	}

	tw := table.NewWriter()
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(rows[0])
	if len(rows) > 1 {
		tw.AppendRows(rows[1:])
	}
	sb.WriteString(tw.RenderMarkdown())
	sb.WriteString("\n")
	return nil
}
