// Package document loads PDF files and splits their text into
// retrievable chunks with page-origin metadata.
package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrEmptyDocument is returned when a document yields no extractable text
var ErrEmptyDocument = errors.New("document contains no extractable text")

// Page is one page of extracted text
type Page struct {
	Number int
	Text   string
}

// Load extracts plain text from a PDF file, one entry per page with
// extractable text. Returns ErrEmptyDocument if nothing could be extracted.
func Load(path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]Page, 0, total)

	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document
			continue
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}

	return pages, nil
}
