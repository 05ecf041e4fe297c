package parser

import (
	"strings"
	"unicode/utf8"

	"ragstack/internal/document"
)

// MarkdownParser reads ATX-style markdown into a single-page document:
// `#`-prefixed lines become headings at their rune offsets, and runs of
// pipe-delimited lines become extracted tables.
type MarkdownParser struct{}

func NewMarkdownParser() *MarkdownParser { return &MarkdownParser{} }

func (*MarkdownParser) Formats() []string { return []string{"md", "markdown"} }

func (*MarkdownParser) Parse(docID, _ string, data []byte) (*document.ParsedDocument, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var headings []document.Heading
	var tables []document.Table
	var tableRows [][]string

	flushTable := func() {
		// A lone delimiter row is noise, not a table.
		if len(tableRows) >= 2 {
			tables = append(tables, document.Table{Page: 1, Cells: tableRows})
		}
		tableRows = nil
	}

	offset := 0
	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line)

		if level, title, ok := atxHeading(line); ok {
			flushTable()
			headings = append(headings, document.Heading{
				Level:  level,
				Title:  title,
				Offset: offset,
			})
		} else if cells, ok := tableRow(line); ok {
			if cells != nil {
				tableRows = append(tableRows, cells)
			}
		} else {
			flushTable()
		}
		offset += lineLen + 1
	}
	flushTable()

	return &document.ParsedDocument{
		DocID:  docID,
		Pages:  []document.Page{{Number: 1, Text: text, Headings: headings}},
		Tables: tables,
	}, nil
}

// atxHeading parses `## Title` style lines.
func atxHeading(line string) (level int, title string, ok bool) {
	trimmed := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(trimmed, "#") {
		return 0, "", false
	}
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level > 6 {
		return 0, "", false
	}
	rest := trimmed[level:]
	if rest != "" && !strings.HasPrefix(rest, " ") {
		return 0, "", false
	}
	title = strings.TrimSpace(strings.TrimRight(rest, "#"))
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}

// tableRow splits a pipe-delimited markdown row into cells. Delimiter rows
// like |---|---| report ok with nil cells, so they extend a table without
// contributing a row.
func tableRow(line string) ([]string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "|") || !strings.HasSuffix(trimmed, "|") || len(trimmed) < 2 {
		return nil, false
	}
	raw := strings.Split(strings.Trim(trimmed, "|"), "|")
	cells := make([]string, 0, len(raw))
	delimiter := true
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if strings.Trim(c, ":-") != "" {
			delimiter = false
		}
		cells = append(cells, c)
	}
	if delimiter {
		return nil, true
	}
	return cells, true
}
