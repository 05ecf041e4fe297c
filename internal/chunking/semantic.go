package chunking

import (
	"strings"
	"unicode"

	"ragstack/internal/core"
	"ragstack/internal/document"
)

// SimilarityFunc scores how related two text units are, in [0, 1].
type SimilarityFunc func(a, b string) (float64, error)

// defaultMergeThreshold is the tunable similarity floor for merging past the
// size ceiling. The legacy heuristic's exact value is unknown; 0.6 keeps
// clearly-related sentences together without gluing whole documents.
const defaultMergeThreshold = 0.6

const defaultSemanticChunkSize = 800

// Semantic pre-splits the text into sentence units and merges adjacent units
// while they fit under ChunkSize, or past the ceiling while Sim still
// scores them at MergeThreshold or above. ChunkSize is a soft ceiling: a
// single oversized unit is never split. With a nil Sim only the size
// heuristic applies.
type Semantic struct {
	Sim SimilarityFunc
}

func (*Semantic) Name() string { return StrategySemantic }

// unit is one sentence with its rune span in the flattened text.
type unit struct {
	text  string
	start int
	end   int
}

func (s *Semantic) Split(doc *document.ParsedDocument, p Params) ([]core.Chunk, error) {
	size := p.ChunkSize
	if size <= 0 {
		size = defaultSemanticChunkSize
	}
	threshold := p.MergeThreshold
	if threshold <= 0 {
		threshold = defaultMergeThreshold
	}

	ft := doc.Flatten()
	units := splitUnits(ft.Runes)
	if len(units) == 0 {
		return nil, nil
	}

	var chunks []core.Chunk
	flush := func(group []unit) {
		texts := make([]string, len(group))
		for i, u := range group {
			texts[i] = u.text
		}
		start := group[0].start
		end := group[len(group)-1].end
		first, last := ft.PageRange(start, end)
		chunks = append(chunks, core.Chunk{
			Text: strings.Join(texts, " "),
			Meta: core.ChunkMetadata{
				PageStart: first,
				PageEnd:   last,
				SpanStart: start,
				SpanEnd:   end,
			},
		})
	}

	group := []unit{units[0]}
	groupLen := len([]rune(units[0].text))
	for _, u := range units[1:] {
		uLen := len([]rune(u.text))
		if groupLen+1+uLen <= size {
			group = append(group, u)
			groupLen += 1 + uLen
			continue
		}
		if s.Sim != nil {
			sim, err := s.Sim(group[len(group)-1].text, u.text)
			if err != nil {
				return nil, err
			}
			if sim >= threshold {
				group = append(group, u)
				groupLen += 1 + uLen
				continue
			}
		}
		flush(group)
		group = []unit{u}
		groupLen = uLen
	}
	flush(group)
	return chunks, nil
}

// splitUnits cuts the rune stream into sentence units at terminal
// punctuation or line breaks. Recorded spans exclude surrounding whitespace,
// so SpanStart always points at the unit's first rune. Whitespace-only units
// are dropped.
func splitUnits(runes []rune) []unit {
	var units []unit
	start := 0
	appendUnit := func(end int) {
		s, e := start, end
		for s < e && unicode.IsSpace(runes[s]) {
			s++
		}
		for e > s && unicode.IsSpace(runes[e-1]) {
			e--
		}
		if s < e {
			units = append(units, unit{text: string(runes[s:e]), start: s, end: e})
		}
		start = end
	}
	for i, r := range runes {
		switch r {
		case '.', '!', '?', '\n':
			appendUnit(i + 1)
		}
	}
	if start < len(runes) {
		appendUnit(len(runes))
	}
	return units
}
