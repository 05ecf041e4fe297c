// Package parser turns raw uploaded files into the normalized document
// model. The set of supported formats is closed at startup; anything else
// fails fast with core.ErrUnsupportedFormat.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"ragstack/internal/core"
	"ragstack/internal/document"
)

// Parser converts one file format into a ParsedDocument.
type Parser interface {
	// Formats lists the file extensions handled, without the dot.
	Formats() []string
	Parse(docID, filename string, data []byte) (*document.ParsedDocument, error)
}

// Registry routes a filename to its parser by extension.
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry indexes the parsers. Later parsers win extension conflicts.
func NewRegistry(parsers ...Parser) *Registry {
	byExt := make(map[string]Parser)
	for _, p := range parsers {
		for _, ext := range p.Formats() {
			byExt[strings.ToLower(ext)] = p
		}
	}
	return &Registry{byExt: byExt}
}

// DefaultRegistry wires the built-in parsers.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewMarkdownParser(),
		NewPDFParser(),
		NewDocconvParser(),
	)
}

// Parse dispatches on the filename's extension.
func (r *Registry) Parse(docID, filename string, data []byte) (*document.ParsedDocument, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	p, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q has extension %q", core.ErrUnsupportedFormat, filename, ext)
	}
	doc, err := p.Parse(docID, filename, data)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("parser for %q produced invalid document: %w", ext, err)
	}
	return doc, nil
}

// Formats lists every registered extension.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	return out
}
