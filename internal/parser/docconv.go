package parser

import (
	"bytes"
	"strings"

	"code.sajari.com/docconv"

	"ragstack/internal/core"
	"ragstack/internal/document"
)

// DocconvParser handles the office and web formats docconv converts. The
// output has no page structure, so everything lands on a single page.
type DocconvParser struct{}

func NewDocconvParser() *DocconvParser { return &DocconvParser{} }

func (*DocconvParser) Formats() []string {
	return []string{"docx", "doc", "odt", "rtf", "html", "htm", "txt"}
}

func (*DocconvParser) Parse(docID, filename string, data []byte) (*document.ParsedDocument, error) {
	mime := docconv.MimeTypeByExtension(filename)
	res, err := docconv.Convert(bytes.NewReader(data), mime, false)
	if err != nil {
		return nil, &core.ParseError{Tool: "docconv", Cause: err}
	}
	return &document.ParsedDocument{
		DocID: docID,
		Pages: []document.Page{{Number: 1, Text: strings.TrimSpace(res.Body)}},
	}, nil
}
