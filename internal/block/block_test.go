package block

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const larkBlocks = `[
  {"block_id":"doc","block_type":1,"children":["h","c","t"],"page":{"elements":[{"text_run":{"content":"Title"}}]}},
  {"block_id":"h","block_type":4,"parent_id":"doc","heading2":{"elements":[{"text_run":{"content":"Intro","text_element_style":{"bold":true}}}]}},
  {"block_id":"c","block_type":14,"parent_id":"doc","code":{"elements":[{"text_run":{"content":"x := 1"}}],"style":{"language":22}}},
  {"block_id":"t","block_type":31,"parent_id":"doc","children":["c1"],"table":{"cells":["c1"],"property":{"row_size":1,"column_size":1}}},
  {"block_id":"c1","block_type":32,"parent_id":"t"}
]`

func decodeBlocks(t *testing.T) []Block {
	t.Helper()
	var blocks []Block
	if err := json.Unmarshal([]byte(larkBlocks), &blocks); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return blocks
}

func TestUnmarshal_LarkShape(t *testing.T) {
	blocks := decodeBlocks(t)
	if len(blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(blocks))
	}

	page := blocks[0]
	if page.Type != TypePage {
		t.Errorf("expected page type, got %v", page.Type)
	}
	if page.Text == nil {
		t.Fatal("page text not decoded")
	}
	if got := page.Text.Elements[0].TextRun.Content; got != "Title" {
		t.Errorf("page text: expected %q, got %q", "Title", got)
	}

	h := blocks[1]
	if h.Type.HeadingLevel() != 2 {
		t.Errorf("expected heading level 2, got %d", h.Type.HeadingLevel())
	}
	if h.Text == nil {
		t.Fatal("heading text not decoded")
	}
	if !h.Text.Elements[0].TextRun.Style.Bold {
		t.Error("expected bold heading run")
	}

	code := blocks[2]
	if got := code.Text.Style.Language.Alias(); got != "go" {
		t.Errorf("code language: expected go, got %q", got)
	}

	tbl := blocks[3]
	if tbl.Text != nil {
		t.Error("table should carry no text payload")
	}
	if tbl.Table == nil {
		t.Fatal("table payload not decoded")
	}
	if tbl.Table.Property.ColumnSize != 1 {
		t.Errorf("expected 1 column, got %d", tbl.Table.Property.ColumnSize)
	}
}

func TestMarshal_KeepsTypedPayloadKey(t *testing.T) {
	b := Block{ID: "q", Type: TypeQuote, Text: &Text{Elements: []Element{{TextRun: &TextRun{Content: "hi"}}}}}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"quote":{"elements"`) {
		t.Errorf("expected quote payload key in %s", data)
	}

	var back Block
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := back.Text.Elements[0].TextRun.Content; got != "hi" {
		t.Errorf("expected %q, got %q", "hi", got)
	}
}

func TestCodeLanguage_Alias(t *testing.T) {
	tests := []struct {
		lang CodeLanguage
		want string
	}{
		{1, ""},
		{7, "bash"},
		{42, "openedge-abl"},
		{67, "yaml"},
		{0, ""},
		{68, ""},
	}
	for _, tt := range tests {
		if got := tt.lang.Alias(); got != tt.want {
			t.Errorf("CodeLanguage(%d).Alias() = %q, want %q", tt.lang, got, tt.want)
		}
	}
}

func TestType_String(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeHeading9, "heading9"},
		{TypeQuoteContainer, "quote_container"},
		{Type(77), "block_type(77)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", int(tt.typ), got, tt.want)
		}
	}
}

func TestNewMap(t *testing.T) {
	m, err := NewMap(decodeBlocks(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Len() != 5 {
		t.Errorf("expected 5 blocks, got %d", m.Len())
	}

	root, ok := m.Root()
	if !ok || root != "doc" {
		t.Errorf("expected root doc, got %q (ok=%v)", root, ok)
	}

	b, ok := m.Get("c")
	if !ok {
		t.Fatal("block c not found")
	}
	if b.Type != TypeCode {
		t.Errorf("expected code block, got %v", b.Type)
	}

	if _, ok := m.Get("missing"); ok {
		t.Error("unexpected block for missing id")
	}
	if err := m.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestNewMap_RejectsBadIDs(t *testing.T) {
	if _, err := NewMap([]Block{{ID: "a"}, {ID: "a"}}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := NewMap([]Block{{ID: ""}}); !errors.Is(err, ErrEmptyID) {
		t.Errorf("expected ErrEmptyID, got %v", err)
	}
}

func TestNewMap_CopiesInput(t *testing.T) {
	in := []Block{{ID: "a", Type: TypeText}}
	m, err := NewMap(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in[0].Type = TypeDivider

	if b, _ := m.Get("a"); b.Type != TypeText {
		t.Errorf("map shares caller slice: type is %v", b.Type)
	}
}

func TestValidate_BrokenReferences(t *testing.T) {
	cases := map[string][]Block{
		"child":  {{ID: "p", Children: []string{"x"}}},
		"parent": {{ID: "p"}, {ID: "c", ParentID: "gone"}},
		"cell":   {{ID: "t", Type: TypeTable, Table: &Table{Cells: []string{"nope"}}}},
	}
	for name, blocks := range cases {
		t.Run(name, func(t *testing.T) {
			m, err := NewMap(blocks)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := m.Validate(); !errors.Is(err, ErrMalformedReference) {
				t.Errorf("expected ErrMalformedReference, got %v", err)
			}
		})
	}
}
