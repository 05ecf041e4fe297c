// Package document defines the normalized representation of a parsed source
// document. Parsers produce it; the chunking engine consumes it read-only.
package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ragstack/internal/core"
)

// Heading is a section title detected inside a page.
//
// Level:  heading depth, 1 is the topmost.
// Title:  heading text without markup.
// Offset: rune offset of the heading start within the page text.
type Heading struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Offset int    `json:"offset"`
}

// Page holds the text of one source page together with the headings that
// start on it. Number is 1-based and unique within a document.
type Page struct {
	Number   int       `json:"number"`
	Text     string    `json:"text"`
	Headings []Heading `json:"headings,omitempty"`
}

// Table is an extracted table region. Cells are row-major.
type Table struct {
	Page  int        `json:"page"`
	BBox  [4]float64 `json:"bbox"`
	Cells [][]string `json:"cells"`
}

// ParsedDocument is the output of the parser boundary.
type ParsedDocument struct {
	DocID  string  `json:"doc_id"`
	Pages  []Page  `json:"pages"`
	Tables []Table `json:"tables,omitempty"`
}

// Validate checks the structural invariants: page numbers strictly
// increasing and unique, heading levels positive, heading offsets within
// page bounds.
func (d *ParsedDocument) Validate() error {
	if d.DocID == "" {
		return fmt.Errorf("%w: doc_id is empty", core.ErrInvalidParams)
	}
	prev := 0
	for _, p := range d.Pages {
		if p.Number <= prev {
			return fmt.Errorf("%w: page numbers must be strictly increasing, got %d after %d",
				core.ErrInvalidParams, p.Number, prev)
		}
		prev = p.Number
		pageLen := utf8.RuneCountInString(p.Text)
		for _, h := range p.Headings {
			if h.Level < 1 {
				return fmt.Errorf("%w: heading %q on page %d has level %d",
					core.ErrInvalidParams, h.Title, p.Number, h.Level)
			}
			if h.Offset < 0 || h.Offset > pageLen {
				return fmt.Errorf("%w: heading %q offset %d outside page %d bounds [0,%d]",
					core.ErrInvalidParams, h.Title, h.Offset, p.Number, pageLen)
			}
		}
	}
	return nil
}

// TablePages returns the page numbers carrying extracted or detected tables.
func (d *ParsedDocument) TablePages() map[int]bool {
	if len(d.Tables) == 0 {
		return nil
	}
	pages := make(map[int]bool, len(d.Tables))
	for _, t := range d.Tables {
		pages[t.Page] = true
	}
	return pages
}

// HasText reports whether any page carries non-whitespace content.
func (d *ParsedDocument) HasText() bool {
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// FlatText is the document's pages concatenated into one rune stream, with
// enough bookkeeping to map any rune span back to the pages it came from.
// Pages are joined with a single newline.
type FlatText struct {
	Runes      []rune
	pageStarts []int // rune offset where each page begins
	pageNums   []int
}

// Flatten builds the FlatText view of the document.
func (d *ParsedDocument) Flatten() *FlatText {
	var b strings.Builder
	ft := &FlatText{}
	off := 0
	for i, p := range d.Pages {
		if i > 0 {
			b.WriteByte('\n')
			off++
		}
		ft.pageStarts = append(ft.pageStarts, off)
		ft.pageNums = append(ft.pageNums, p.Number)
		b.WriteString(p.Text)
		off += utf8.RuneCountInString(p.Text)
	}
	ft.Runes = []rune(b.String())
	return ft
}

// PageRange returns the first and last page numbers overlapped by the rune
// span [start, end). An empty document yields (0, 0).
func (ft *FlatText) PageRange(start, end int) (int, int) {
	if len(ft.pageStarts) == 0 {
		return 0, 0
	}
	first := ft.pageNums[0]
	last := ft.pageNums[0]
	for i, ps := range ft.pageStarts {
		if ps <= start {
			first = ft.pageNums[i]
		}
		if ps < end {
			last = ft.pageNums[i]
		}
	}
	return first, last
}

// GlobalOffset translates a rune offset within the given page into an offset
// in the flattened stream. Unknown pages map to 0.
func (ft *FlatText) GlobalOffset(pageNumber, offset int) int {
	for i, n := range ft.pageNums {
		if n == pageNumber {
			return ft.pageStarts[i] + offset
		}
	}
	return 0
}
