package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docsplit/internal/doctree"
)

// CSVParser handles CSV files.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	b := newBuilder()
	if len(records) == 0 {
		return b.document(baseTitle(filename)), nil
	}

	// First row is headers.
	headers := records[0]

	// Group rows into batches of 20; each row becomes one paragraph.
	const batchSize = 20
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += batchSize {
		end := min(i+batchSize, len(dataRows))
		b.heading(2, fmt.Sprintf("Rows %d-%d", i+2, end+1)) // 1-indexed, skip header

		for _, row := range dataRows[i:end] {
			var text strings.Builder
			for j, cell := range row {
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
				if j < len(row)-1 {
					text.WriteString(", ")
				}
			}
			b.paragraph(text.String())
		}
	}

	return b.document(baseTitle(filename)), nil
}
