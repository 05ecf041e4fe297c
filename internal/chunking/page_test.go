package chunking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstack/internal/chunking"
	"ragstack/internal/document"
)

func TestPageBasedOneChunkPerPage(t *testing.T) {
	doc := &document.ParsedDocument{
		DocID: "doc-1",
		Pages: []document.Page{
			{Number: 1, Text: "First page."},
			{Number: 2, Text: "Second page."},
			{Number: 3, Text: "Third page."},
		},
	}

	engine := chunking.DefaultEngine(nil)
	chunks, err := engine.Chunk(doc, chunking.StrategyPage, chunking.Params{})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i+1, c.Meta.PageStart)
		assert.Equal(t, i+1, c.Meta.PageEnd)
	}
	assert.Equal(t, "First page.", chunks[0].Text)
}

func TestPageBasedSkipsEmptyPages(t *testing.T) {
	doc := &document.ParsedDocument{
		DocID: "doc-1",
		Pages: []document.Page{
			{Number: 1, Text: "Content."},
			{Number: 2, Text: "   \n\t"},
			{Number: 3, Text: "More content."},
		},
	}

	engine := chunking.DefaultEngine(nil)
	chunks, err := engine.Chunk(doc, chunking.StrategyPage, chunking.Params{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Meta.PageStart)
	assert.Equal(t, 3, chunks[1].Meta.PageStart)
}

func TestTableFlagFollowsPages(t *testing.T) {
	doc := &document.ParsedDocument{
		DocID: "doc-1",
		Pages: []document.Page{
			{Number: 1, Text: "Plain prose."},
			{Number: 2, Text: "Name | Qty | Price"},
			{Number: 3, Text: "More prose."},
		},
		Tables: []document.Table{{Page: 2}},
	}

	engine := chunking.DefaultEngine(nil)
	chunks, err := engine.Chunk(doc, chunking.StrategyPage, chunking.Params{})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.False(t, chunks[0].Meta.HasTable)
	assert.True(t, chunks[1].Meta.HasTable)
	assert.False(t, chunks[2].Meta.HasTable)

	// A grouped chunk overlapping the table page carries the flag too.
	grouped, err := engine.Chunk(doc, chunking.StrategyPage, chunking.Params{PagesPerChunk: 2})
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	assert.True(t, grouped[0].Meta.HasTable)
	assert.False(t, grouped[1].Meta.HasTable)
}

func TestPageBasedGrouping(t *testing.T) {
	doc := &document.ParsedDocument{
		DocID: "doc-1",
		Pages: []document.Page{
			{Number: 1, Text: "One."},
			{Number: 2, Text: "Two."},
			{Number: 3, Text: "Three."},
			{Number: 4, Text: "Four."},
			{Number: 5, Text: "Five."},
		},
	}

	engine := chunking.DefaultEngine(nil)
	chunks, err := engine.Chunk(doc, chunking.StrategyPage, chunking.Params{PagesPerChunk: 2})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "One.\nTwo.", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].Meta.PageStart)
	assert.Equal(t, 2, chunks[0].Meta.PageEnd)

	// The trailing group holds the leftover single page.
	assert.Equal(t, "Five.", chunks[2].Text)
	assert.Equal(t, 5, chunks[2].Meta.PageStart)
	assert.Equal(t, 5, chunks[2].Meta.PageEnd)
}
