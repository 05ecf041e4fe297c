package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstack/internal/core"
	"ragstack/internal/parser"
)

const sampleMarkdown = `# Guide

Intro text.

## Install

| OS | Command |
|----|---------|
| mac | brew install |
| linux | apt install |

Done.
`

func TestMarkdownHeadings(t *testing.T) {
	doc, err := parser.NewMarkdownParser().Parse("d1", "guide.md", []byte(sampleMarkdown))
	require.NoError(t, err)
	require.NoError(t, doc.Validate())
	require.Len(t, doc.Pages, 1)

	page := doc.Pages[0]
	require.Len(t, page.Headings, 2)
	assert.Equal(t, 1, page.Headings[0].Level)
	assert.Equal(t, "Guide", page.Headings[0].Title)
	assert.Equal(t, 0, page.Headings[0].Offset)
	assert.Equal(t, 2, page.Headings[1].Level)
	assert.Equal(t, "Install", page.Headings[1].Title)

	// The offset points at the heading line inside the page text.
	runes := []rune(page.Text)
	assert.Equal(t, "## Install", string(runes[page.Headings[1].Offset:page.Headings[1].Offset+10]))
}

func TestMarkdownTables(t *testing.T) {
	doc, err := parser.NewMarkdownParser().Parse("d1", "guide.md", []byte(sampleMarkdown))
	require.NoError(t, err)
	require.Len(t, doc.Tables, 1)

	table := doc.Tables[0]
	require.Len(t, table.Cells, 3, "delimiter row is not a data row")
	assert.Equal(t, []string{"OS", "Command"}, table.Cells[0])
	assert.Equal(t, []string{"mac", "brew install"}, table.Cells[1])
}

func TestMarkdownIgnoresNonHeadings(t *testing.T) {
	input := "#NotAHeading\n####### seven hashes\nplain text\n"
	doc, err := parser.NewMarkdownParser().Parse("d1", "x.md", []byte(input))
	require.NoError(t, err)
	assert.Empty(t, doc.Pages[0].Headings)
}

func TestRegistryUnsupportedFormat(t *testing.T) {
	reg := parser.DefaultRegistry()
	_, err := reg.Parse("d1", "slides.pptx", []byte("x"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestRegistryDispatchesMarkdown(t *testing.T) {
	reg := parser.DefaultRegistry()
	doc, err := reg.Parse("d1", "README.MD", []byte("# Hello\n\nWorld.\n"))
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "Hello", doc.Pages[0].Headings[0].Title)
}
