// Package block models Lark docx blocks and the immutable id-indexed arena
// they are rendered from.
package block

import (
	"encoding/json"
	"fmt"
)

// Type is the numeric Lark block_type code.
type Type int

const (
	TypePage           Type = 1
	TypeText           Type = 2
	TypeHeading1       Type = 3
	TypeHeading2       Type = 4
	TypeHeading3       Type = 5
	TypeHeading4       Type = 6
	TypeHeading5       Type = 7
	TypeHeading6       Type = 8
	TypeHeading7       Type = 9
	TypeHeading8       Type = 10
	TypeHeading9       Type = 11
	TypeBullet         Type = 12
	TypeOrdered        Type = 13
	TypeCode           Type = 14
	TypeQuote          Type = 15
	TypeEquation       Type = 16
	TypeTodo           Type = 17
	TypeBitable        Type = 18
	TypeCallout        Type = 19
	TypeChatCard       Type = 20
	TypeDiagram        Type = 21
	TypeDivider        Type = 22
	TypeFile           Type = 23
	TypeGrid           Type = 24
	TypeGridColumn     Type = 25
	TypeIframe         Type = 26
	TypeImage          Type = 27
	TypeISV            Type = 28
	TypeMindnote       Type = 29
	TypeSheet          Type = 30
	TypeTable          Type = 31
	TypeTableCell      Type = 32
	TypeView           Type = 33
	TypeQuoteContainer Type = 34
	TypeUnsupported    Type = 999
)

var typeNames = map[Type]string{
	TypePage:           "page",
	TypeText:           "text",
	TypeHeading1:       "heading1",
	TypeHeading2:       "heading2",
	TypeHeading3:       "heading3",
	TypeHeading4:       "heading4",
	TypeHeading5:       "heading5",
	TypeHeading6:       "heading6",
	TypeHeading7:       "heading7",
	TypeHeading8:       "heading8",
	TypeHeading9:       "heading9",
	TypeBullet:         "bullet",
	TypeOrdered:        "ordered",
	TypeCode:           "code",
	TypeQuote:          "quote",
	TypeEquation:       "equation",
	TypeTodo:           "todo",
	TypeBitable:        "bitable",
	TypeCallout:        "callout",
	TypeChatCard:       "chat_card",
	TypeDiagram:        "diagram",
	TypeDivider:        "divider",
	TypeFile:           "file",
	TypeGrid:           "grid",
	TypeGridColumn:     "grid_column",
	TypeIframe:         "iframe",
	TypeImage:          "image",
	TypeISV:            "isv",
	TypeMindnote:       "mindnote",
	TypeSheet:          "sheet",
	TypeTable:          "table",
	TypeTableCell:      "table_cell",
	TypeView:           "view",
	TypeQuoteContainer: "quote_container",
	TypeUnsupported:    "undefined",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("block_type(%d)", int(t))
}

// HeadingLevel returns 1-9 for heading blocks and 0 otherwise.
func (t Type) HeadingLevel() int {
	if t >= TypeHeading1 && t <= TypeHeading9 {
		return int(t-TypeHeading1) + 1
	}
	return 0
}

// Block is one node of a Lark document. Exactly one payload field is set,
// depending on Type; container blocks carry none.
type Block struct {
	ID       string   `json:"block_id"`
	Type     Type     `json:"block_type"`
	ParentID string   `json:"parent_id,omitempty"`
	Children []string `json:"children,omitempty"`

	Text  *Text  `json:"-"`
	Table *Table `json:"table,omitempty"`
	Image *Image `json:"image,omitempty"`
}

// Text is the payload of every text-bearing block.
type Text struct {
	Elements []Element `json:"elements"`
	Style    TextStyle `json:"style"`
}

// TextStyle holds the block-level style. Language is only meaningful for
// code blocks and Done only for todo blocks.
type TextStyle struct {
	Language CodeLanguage `json:"language,omitempty"`
	Done     bool         `json:"done,omitempty"`
}

// Element is a tagged union; exactly one field is non-nil.
type Element struct {
	TextRun     *TextRun     `json:"text_run,omitempty"`
	MentionUser *MentionUser `json:"mention_user,omitempty"`
	MentionDoc  *MentionDoc  `json:"mention_doc,omitempty"`
	Equation    *Equation    `json:"equation,omitempty"`
}

type TextRun struct {
	Content string `json:"content"`
	Style   *Style `json:"text_element_style,omitempty"`
}

type MentionUser struct {
	UserID string `json:"user_id"`
}

type MentionDoc struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Equation struct {
	Content string `json:"content"`
}

// Style is the inline style of a text run.
type Style struct {
	Bold          bool  `json:"bold,omitempty"`
	Italic        bool  `json:"italic,omitempty"`
	Strikethrough bool  `json:"strikethrough,omitempty"`
	Underline     bool  `json:"underline,omitempty"`
	InlineCode    bool  `json:"inline_code,omitempty"`
	Link          *Link `json:"link,omitempty"`
}

type Link struct {
	URL string `json:"url"`
}

type Table struct {
	Cells    []string      `json:"cells"`
	Property TableProperty `json:"property"`
}

type TableProperty struct {
	RowSize    int `json:"row_size"`
	ColumnSize int `json:"column_size"`
}

type Image struct {
	Token  string `json:"token"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// payloadKey is the JSON field the Lark API uses for a text-bearing type.
func payloadKey(t Type) (string, bool) {
	switch {
	case t == TypePage, t == TypeText, t == TypeBullet, t == TypeOrdered,
		t == TypeCode, t == TypeQuote, t == TypeEquation, t == TypeTodo:
		return typeNames[t], true
	case t.HeadingLevel() > 0:
		return typeNames[t], true
	}
	return "", false
}

// UnmarshalJSON decodes the Lark wire shape, where the text payload lives
// under a key named after the block type ("heading2", "bullet", ...).
func (b *Block) UnmarshalJSON(data []byte) error {
	type plain Block
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Block(p)

	key, ok := payloadKey(b.Type)
	if !ok {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	msg, ok := raw[key]
	if !ok || string(msg) == "null" {
		return nil
	}
	var txt Text
	if err := json.Unmarshal(msg, &txt); err != nil {
		return fmt.Errorf("block %s: decode %s: %w", b.ID, key, err)
	}
	b.Text = &txt
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (b Block) MarshalJSON() ([]byte, error) {
	type plain Block
	data, err := json.Marshal(plain(b))
	if err != nil {
		return nil, err
	}
	key, ok := payloadKey(b.Type)
	if !ok || b.Text == nil {
		return data, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	txt, err := json.Marshal(b.Text)
	if err != nil {
		return nil, err
	}
	obj[key] = txt
	return json.Marshal(obj)
}
