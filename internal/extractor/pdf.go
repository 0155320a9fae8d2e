package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/models"
)

const untitledPDF = "Untitled PDF"

// pageSeparator is placed between the text of consecutive pages.
const pageSeparator = "\n\n"

func fromPDF(data []byte, sourceURL string) (models.ExtractedContent, error) {
	if len(data) == 0 {
		return models.ExtractedContent{}, fmt.Errorf("%w: %w", apperr.ErrExtraction, apperr.ErrEmptyContent)
	}

	text, err := pdfText(data)
	if err != nil {
		return models.ExtractedContent{}, fmt.Errorf("%w: could not read PDF: %v", apperr.ErrExtraction, err)
	}

	text = strings.TrimSpace(text)
	return finish(pdfTitle(text), nil, text, sourceURL)
}

// pdfText returns the text of every page in page order.
func pdfText(data []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, doc.NumPage())
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, content)
	}
	return JoinPages(pages), nil
}

// JoinPages concatenates per-page text in order, separated by a paragraph boundary.
func JoinPages(pages []string) string {
	return strings.Join(pages, pageSeparator)
}

// pdfTitle is the first non-empty line, cut to 200 characters.
func pdfTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncateRunes(line, maxTitleRunes)
		}
	}
	return untitledPDF
}
