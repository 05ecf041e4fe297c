package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstack/internal/core"
	"ragstack/internal/document"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     document.ParsedDocument
		wantErr bool
	}{
		{
			name: "valid",
			doc: document.ParsedDocument{
				DocID: "d",
				Pages: []document.Page{
					{Number: 1, Text: "hello", Headings: []document.Heading{{Level: 1, Title: "H", Offset: 0}}},
					{Number: 3, Text: "world"},
				},
			},
		},
		{
			name:    "missing doc id",
			doc:     document.ParsedDocument{Pages: []document.Page{{Number: 1, Text: "x"}}},
			wantErr: true,
		},
		{
			name: "duplicate page number",
			doc: document.ParsedDocument{
				DocID: "d",
				Pages: []document.Page{{Number: 1, Text: "a"}, {Number: 1, Text: "b"}},
			},
			wantErr: true,
		},
		{
			name: "decreasing page number",
			doc: document.ParsedDocument{
				DocID: "d",
				Pages: []document.Page{{Number: 2, Text: "a"}, {Number: 1, Text: "b"}},
			},
			wantErr: true,
		},
		{
			name: "heading offset beyond page",
			doc: document.ParsedDocument{
				DocID: "d",
				Pages: []document.Page{{Number: 1, Text: "ab", Headings: []document.Heading{{Level: 1, Title: "H", Offset: 9}}}},
			},
			wantErr: true,
		},
		{
			name: "heading level zero",
			doc: document.ParsedDocument{
				DocID: "d",
				Pages: []document.Page{{Number: 1, Text: "ab", Headings: []document.Heading{{Level: 0, Title: "H", Offset: 0}}}},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidParams)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFlattenPageRange(t *testing.T) {
	doc := document.ParsedDocument{
		DocID: "d",
		Pages: []document.Page{
			{Number: 1, Text: "aaaa"},
			{Number: 2, Text: "bbbb"},
			{Number: 4, Text: "cccc"},
		},
	}
	ft := doc.Flatten()
	require.Equal(t, "aaaa\nbbbb\ncccc", string(ft.Runes))

	first, last := ft.PageRange(0, 4)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, last)

	first, last = ft.PageRange(2, 7)
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, last)

	first, last = ft.PageRange(5, 14)
	assert.Equal(t, 2, first)
	assert.Equal(t, 4, last)
}

func TestGlobalOffset(t *testing.T) {
	doc := document.ParsedDocument{
		DocID: "d",
		Pages: []document.Page{
			{Number: 1, Text: "aaaa"},
			{Number: 2, Text: "bbbb"},
		},
	}
	ft := doc.Flatten()
	assert.Equal(t, 0, ft.GlobalOffset(1, 0))
	assert.Equal(t, 5, ft.GlobalOffset(2, 0))
	assert.Equal(t, 7, ft.GlobalOffset(2, 2))
}

func TestHasText(t *testing.T) {
	empty := document.ParsedDocument{DocID: "d", Pages: []document.Page{{Number: 1, Text: " \n"}}}
	assert.False(t, empty.HasText())

	full := document.ParsedDocument{DocID: "d", Pages: []document.Page{{Number: 1, Text: " x "}}}
	assert.True(t, full.HasText())
}
