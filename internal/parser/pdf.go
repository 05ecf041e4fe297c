package parser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"ragstack/internal/core"
	"ragstack/internal/document"
)

// maxTitleLength bounds the ALL-CAPS heading heuristic: longer shouting
// lines are body text, not section titles.
const maxTitleLength = 60

// PDFParser validates the file with pdfcpu, extracts text with docconv and
// splits it into pages on form feeds. Short ALL-CAPS lines are detected as
// level-1 headings; pages containing '|' or tab characters are flagged as
// table content.
type PDFParser struct{}

func NewPDFParser() *PDFParser { return &PDFParser{} }

func (*PDFParser) Formats() []string { return []string{"pdf"} }

func (*PDFParser) Parse(docID, _ string, data []byte) (*document.ParsedDocument, error) {
	// A corrupt file should fail as a parse error, not surface later as
	// an empty document.
	if err := api.Validate(bytes.NewReader(data), api.LoadConfiguration()); err != nil {
		return nil, &core.ParseError{Tool: "pdfcpu", Cause: fmt.Errorf("validate pdf: %w", err)}
	}

	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", false)
	if err != nil {
		return nil, &core.ParseError{Tool: "docconv", Cause: err}
	}

	var pages []document.Page
	for i, pageText := range strings.Split(res.Body, "\f") {
		pages = append(pages, document.Page{
			Number:   i + 1,
			Text:     pageText,
			Headings: capsHeadings(pageText),
		})
	}

	return &document.ParsedDocument{
		DocID:  docID,
		Pages:  pages,
		Tables: detectTablePages(pages),
	}, nil
}

// detectTablePages flags pages whose text contains '|' or tab characters as
// table content. Plain-text extraction cannot recover individual cells, so
// the table records carry the page number only.
func detectTablePages(pages []document.Page) []document.Table {
	var tables []document.Table
	for _, p := range pages {
		if strings.ContainsAny(p.Text, "|\t") {
			tables = append(tables, document.Table{Page: p.Number})
		}
	}
	return tables
}

// capsHeadings finds short ALL-CAPS lines and reports them as level-1
// headings at their rune offsets.
func capsHeadings(text string) []document.Heading {
	var headings []document.Heading
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if title := strings.TrimSpace(line); isCapsTitle(title) {
			headings = append(headings, document.Heading{
				Level:  1,
				Title:  title,
				Offset: offset,
			})
		}
		offset += lineLen + 1
	}
	return headings
}

func isCapsTitle(s string) bool {
	if s == "" || utf8.RuneCountInString(s) >= maxTitleLength {
		return false
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
