package chunking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstack/internal/chunking"
	"ragstack/internal/document"
)

func TestHeadingBasedSplitsOnTopLevel(t *testing.T) {
	// Levels [1, 2, 1] with threshold 1: the level-2 heading stays inside
	// the first section, so two chunks come out.
	text := "Intro\nBody of intro.\nDetails\nNested content.\nOutro\nClosing words."
	doc := &document.ParsedDocument{
		DocID: "doc-1",
		Pages: []document.Page{{
			Number: 1,
			Text:   text,
			Headings: []document.Heading{
				{Level: 1, Title: "Intro", Offset: 0},
				{Level: 2, Title: "Details", Offset: 21},
				{Level: 1, Title: "Outro", Offset: 45},
			},
		}},
	}

	engine := chunking.DefaultEngine(nil)
	chunks, err := engine.Chunk(doc, chunking.StrategyHeading, chunking.Params{MaxHeadingLevel: 1})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, []string{"Intro"}, chunks[0].Meta.HeadingPath)
	assert.Contains(t, chunks[0].Text, "Nested content.")
	assert.Equal(t, []string{"Outro"}, chunks[1].Meta.HeadingPath)
	assert.Contains(t, chunks[1].Text, "Closing words.")
}

func TestHeadingBasedThresholdTwo(t *testing.T) {
	text := "Intro\nBody of intro.\nDetails\nNested content.\nOutro\nClosing words."
	doc := &document.ParsedDocument{
		DocID: "doc-1",
		Pages: []document.Page{{
			Number: 1,
			Text:   text,
			Headings: []document.Heading{
				{Level: 1, Title: "Intro", Offset: 0},
				{Level: 2, Title: "Details", Offset: 21},
				{Level: 1, Title: "Outro", Offset: 45},
			},
		}},
	}

	engine := chunking.DefaultEngine(nil)
	chunks, err := engine.Chunk(doc, chunking.StrategyHeading, chunking.Params{MaxHeadingLevel: 2})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	// A level-2 section carries its level-1 ancestor in the path.
	assert.Equal(t, []string{"Intro"}, chunks[0].Meta.HeadingPath)
	assert.Equal(t, []string{"Intro", "Details"}, chunks[1].Meta.HeadingPath)
	assert.Equal(t, []string{"Outro"}, chunks[2].Meta.HeadingPath)
}

func TestHeadingBasedPreface(t *testing.T) {
	doc := &document.ParsedDocument{
		DocID: "doc-1",
		Pages: []document.Page{{
			Number: 1,
			Text:   "Cover text ahead of any section.\nFirst\nSection body.",
			Headings: []document.Heading{
				{Level: 1, Title: "First", Offset: 33},
			},
		}},
	}

	engine := chunking.DefaultEngine(nil)
	chunks, err := engine.Chunk(doc, chunking.StrategyHeading, chunking.Params{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Empty(t, chunks[0].Meta.HeadingPath)
	assert.Contains(t, chunks[0].Text, "Cover text")
	assert.Equal(t, []string{"First"}, chunks[1].Meta.HeadingPath)
}

func TestHeadingBasedNoHeadingsFallsBackToWholeText(t *testing.T) {
	doc := &document.ParsedDocument{
		DocID: "doc-1",
		Pages: []document.Page{
			{Number: 1, Text: "Page one."},
			{Number: 2, Text: "Page two."},
		},
	}

	engine := chunking.DefaultEngine(nil)
	chunks, err := engine.Chunk(doc, chunking.StrategyHeading, chunking.Params{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Page one.\nPage two.", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].Meta.PageStart)
	assert.Equal(t, 2, chunks[0].Meta.PageEnd)
}
