// Package pdf extracts plain text from PDF byte buffers page by page.
package pdf

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/bioscope/internal/domain"
)

// Magic is the header every PDF file starts with.
var Magic = []byte("%PDF-")

// Opener opens PDF documents. The zero value is ready to use.
type Opener struct{}

// Open implements domain.PageOpener.
func (Opener) Open(data []byte) (domain.Pages, error) {
	return Open(data)
}

// Document is an opened PDF.
type Document struct {
	reader *pdf.Reader
}

// Open parses the PDF cross-reference table. Malformed input that makes the
// parser panic is reported as an error.
func Open(data []byte) (doc *Document, err error) {
	if !bytes.HasPrefix(data, Magic) {
		return nil, fmt.Errorf("missing PDF header: %w", domain.ErrUnsupportedDocument)
	}

	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	return &Document{reader: r}, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int { return d.reader.NumPage() }

// PageText returns the plain text of page n (1-based). A page without a
// content stream yields an empty string.
func (d *Document) PageText(n int) (text string, err error) {
	if n < 1 || n > d.NumPages() {
		return "", fmt.Errorf("page %d out of range [1, %d]", n, d.NumPages())
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read page %d: %v", n, r)
		}
	}()

	page := d.reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("read page %d: %w", n, err)
	}
	return text, nil
}
