package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragstack/internal/document"
)

func TestDetectTablePages(t *testing.T) {
	pages := []document.Page{
		{Number: 1, Text: "Plain prose only."},
		{Number: 2, Text: "Name | Qty | Price"},
		{Number: 3, Text: "col1\tcol2\tcol3"},
	}
	assert.Equal(t, []document.Table{{Page: 2}, {Page: 3}}, detectTablePages(pages))
	assert.Nil(t, detectTablePages([]document.Page{{Number: 1, Text: "no tables here"}}))
}

func TestIsCapsTitle(t *testing.T) {
	assert.True(t, isCapsTitle("INTRODUCTION"))
	assert.True(t, isCapsTitle("SECTION 2: RESULTS"))
	assert.False(t, isCapsTitle("Introduction"))
	assert.False(t, isCapsTitle("1234"))
	assert.False(t, isCapsTitle(""))
}
