// Package extract converts uploaded document bytes into plain text.
package extract

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/parchment-ai/parchment/internal/domain"
)

// PDFExtractor extracts text from PDF bytes.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractText returns the concatenated plain text of all pages, separated by
// form feeds. An unparseable file or a file with no extractable text fails
// with an extraction error carrying the filename.
func (e *PDFExtractor) ExtractText(data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", domain.NewExtractionError(filename, fmt.Errorf("empty file"))
	}

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewExtractionError(filename, err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single broken page should not sink the whole document.
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\f")
		}
		buf.WriteString(text)
	}

	extracted := buf.String()
	if strings.TrimSpace(extracted) == "" {
		return "", domain.NewExtractionError(filename, domain.ErrNoExtractableText)
	}

	log.Printf("extracted text from %s: %d pages, %d characters", filename, numPages, len(extracted))
	return extracted, nil
}
