package chunking

import (
	"strings"

	"ragstack/internal/core"
	"ragstack/internal/document"
)

// HeadingBased starts a new chunk at every heading whose level is at or
// above MaxHeadingLevel (level 1 is the shallowest). Each chunk spans from
// its heading to the next qualifying heading or document end. Content ahead
// of the first qualifying heading becomes a chunk with an empty heading
// path if it is non-empty.
type HeadingBased struct{}

func (*HeadingBased) Name() string { return StrategyHeading }

// flatHeading is a heading projected onto the flattened text.
type flatHeading struct {
	level  int
	title  string
	offset int
}

func (*HeadingBased) Split(doc *document.ParsedDocument, p Params) ([]core.Chunk, error) {
	threshold := p.MaxHeadingLevel
	if threshold <= 0 {
		threshold = 1
	}

	ft := doc.Flatten()
	var headings []flatHeading
	for _, page := range doc.Pages {
		for _, h := range page.Headings {
			headings = append(headings, flatHeading{
				level:  h.Level,
				title:  h.Title,
				offset: ft.GlobalOffset(page.Number, h.Offset),
			})
		}
	}

	var chunks []core.Chunk
	emit := func(start, end int, path []string) {
		if start >= end {
			return
		}
		text := string(ft.Runes[start:end])
		if strings.TrimSpace(text) == "" {
			return
		}
		first, last := ft.PageRange(start, end)
		chunks = append(chunks, core.Chunk{
			Text: text,
			Meta: core.ChunkMetadata{
				PageStart:   first,
				PageEnd:     last,
				HeadingPath: path,
				SpanStart:   start,
				SpanEnd:     end,
			},
		})
	}

	// Preface: everything before the first qualifying heading.
	prefaceEnd := len(ft.Runes)
	firstQual := -1
	for i, h := range headings {
		if h.level <= threshold {
			prefaceEnd = h.offset
			firstQual = i
			break
		}
	}
	emit(0, prefaceEnd, nil)
	if firstQual == -1 {
		return chunks, nil
	}

	// Ancestor stack across all headings, so the path of a qualifying
	// heading runs from the document root down to the heading itself.
	var stack []flatHeading
	push := func(h flatHeading) {
		for len(stack) > 0 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, h)
	}
	for _, h := range headings[:firstQual] {
		push(h)
	}

	for i := firstQual; i < len(headings); i++ {
		h := headings[i]
		push(h)
		if h.level > threshold {
			continue
		}
		end := len(ft.Runes)
		for _, next := range headings[i+1:] {
			if next.level <= threshold {
				end = next.offset
				break
			}
		}
		path := make([]string, len(stack))
		for j, a := range stack {
			path[j] = a.title
		}
		emit(h.offset, end, path)
	}
	return chunks, nil
}
