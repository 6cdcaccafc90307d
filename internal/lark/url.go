package lark

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Document types addressed by a link.
const (
	TypeDocx = "docx"
	TypeDoc  = "doc"
	TypeWiki = "wiki"
)

var (
	ErrInvalidURL         = errors.New("url format err")
	ErrUnsupportedDocType = errors.New("unsupported document type")
)

// URLMatcher recognizes document links on the configured hosts.
type URLMatcher struct {
	re *regexp.Regexp
}

// NewURLMatcher compiles a matcher for links whose host matches hostPattern.
func NewURLMatcher(hostPattern string) (*URLMatcher, error) {
	re, err := regexp.Compile(`^https://(?:` + hostPattern + `)/(docx|docs|wiki)/([a-zA-Z0-9]+)`)
	if err != nil {
		return nil, fmt.Errorf("compile host pattern: %w", err)
	}
	return &URLMatcher{re: re}, nil
}

// Parse returns the document type and token of a link. Legacy "docs"
// links map to TypeDoc.
func (m *URLMatcher) Parse(raw string) (docType, token string, err error) {
	match := m.re.FindStringSubmatch(strings.TrimSpace(raw))
	if len(match) != 3 {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	docType = strings.ToLower(match[1])
	if docType == "docs" {
		docType = TypeDoc
	}
	return docType, match[2], nil
}
