package chunking

import (
	"fmt"
	"strings"

	"ragstack/internal/core"
	"ragstack/internal/document"
)

// FixedSize slides a rune window of ChunkSize over the flattened document
// text, advancing by ChunkSize-Overlap. Windows never split inside a rune.
// The final window may be shorter; it is emitted unless it trims to empty.
type FixedSize struct{}

func (*FixedSize) Name() string { return StrategyFixedSize }

func (*FixedSize) Split(doc *document.ParsedDocument, p Params) ([]core.Chunk, error) {
	if p.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be positive, got %d", core.ErrInvalidParams, p.ChunkSize)
	}
	if p.Overlap < 0 || p.Overlap >= p.ChunkSize {
		return nil, fmt.Errorf("%w: overlap %d must satisfy 0 <= overlap < chunk_size %d",
			core.ErrInvalidParams, p.Overlap, p.ChunkSize)
	}

	ft := doc.Flatten()
	step := p.ChunkSize - p.Overlap

	var chunks []core.Chunk
	for start := 0; start < len(ft.Runes); start += step {
		end := start + p.ChunkSize
		if end > len(ft.Runes) {
			end = len(ft.Runes)
		}
		text := string(ft.Runes[start:end])
		if end == len(ft.Runes) && strings.TrimSpace(text) == "" {
			break
		}
		first, last := ft.PageRange(start, end)
		chunks = append(chunks, core.Chunk{
			Text: text,
			Meta: core.ChunkMetadata{
				PageStart: first,
				PageEnd:   last,
				SpanStart: start,
				SpanEnd:   end,
			},
		})
	}
	return chunks, nil
}
