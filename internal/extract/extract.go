// Package extract pulls plain text out of uploaded lesson documents.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/lessontutor/internal/domain"
)

var (
	downloadedRegex = regexp.MustCompile(`(?i)Downloaded from .*`)
	pageNumberRegex = regexp.MustCompile(`(?i)\bPage\s*\d+\b`)
	manyBlankRegex  = regexp.MustCompile(`\n{3,}`)
)

// Extractor picks a decoder by file extension.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor { return &Extractor{} }

// Supported reports whether name has an extension Extract handles.
func (Extractor) Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".pdf":
		return true
	}
	return false
}

// Extract returns the cleaned text of the document. Unknown extensions yield
// domain.ErrUnsupportedFormat.
func (e Extractor) Extract(name string, r io.ReaderAt, size int64) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		text, err = plainText(r, size)
	case ".pdf":
		text, err = pdfText(r, size)
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, filepath.Ext(name))
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", name, err)
	}
	return Clean(text), nil
}

// Clean normalizes line endings, drops page furniture ("Page 3",
// "Downloaded from ...") and collapses runs of blank lines.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\f", "\n\n")
	text = downloadedRegex.ReplaceAllString(text, "")
	text = pageNumberRegex.ReplaceAllString(text, "")
	text = manyBlankRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func plainText(r io.ReaderAt, size int64) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.NewSectionReader(r, 0, size)); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return buf.String(), nil
}

func pdfText(r io.ReaderAt, size int64) (string, error) {
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", domain.ErrInvalidDocument, err)
	}

	pages := make([]string, 0, doc.NumPage())
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n\n"), nil
}
