package chunking

import (
	"strings"
	"unicode/utf8"

	"ragstack/internal/core"
	"ragstack/internal/document"
)

// PageBased emits one chunk per page, or per group of PagesPerChunk pages.
// Pages that trim to empty are skipped, never emitted.
type PageBased struct{}

func (*PageBased) Name() string { return StrategyPage }

func (*PageBased) Split(doc *document.ParsedDocument, p Params) ([]core.Chunk, error) {
	group := p.PagesPerChunk
	if group <= 0 {
		group = 1
	}

	ft := doc.Flatten()
	var nonEmpty []document.Page
	for _, page := range doc.Pages {
		if strings.TrimSpace(page.Text) != "" {
			nonEmpty = append(nonEmpty, page)
		}
	}

	var chunks []core.Chunk
	for i := 0; i < len(nonEmpty); i += group {
		end := i + group
		if end > len(nonEmpty) {
			end = len(nonEmpty)
		}
		pages := nonEmpty[i:end]

		texts := make([]string, len(pages))
		for j, pg := range pages {
			texts[j] = pg.Text
		}
		first := pages[0]
		last := pages[len(pages)-1]
		spanStart := ft.GlobalOffset(first.Number, 0)
		spanEnd := ft.GlobalOffset(last.Number, utf8.RuneCountInString(last.Text))

		chunks = append(chunks, core.Chunk{
			Text: strings.Join(texts, "\n"),
			Meta: core.ChunkMetadata{
				PageStart: first.Number,
				PageEnd:   last.Number,
				SpanStart: spanStart,
				SpanEnd:   spanEnd,
			},
		})
	}
	return chunks, nil
}
