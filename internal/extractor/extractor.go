// Package extractor turns a web page, a remote PDF or an uploaded PDF into
// plain text ready for script generation.
package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/models"
)

const (
	// BrowserUserAgent is sent on every fetch; some publishers reject Go's default.
	BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// PDFContentType is the only media type accepted for uploads.
	PDFContentType = "application/pdf"

	// FileScheme prefixes the source label of uploaded files.
	FileScheme = "file://"

	maxTitleRunes   = 200
	defaultMaxBytes = 50 << 20
)

// Upload is a file submitted by the user.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Source is either a URL or an uploaded file.
type Source struct {
	URL  string
	File *Upload
}

// Label is the value stored in the job's source column.
func (s Source) Label() string {
	if s.File != nil {
		return FileScheme + s.File.Name
	}
	return strings.TrimSpace(s.URL)
}

// Extractor fetches and parses sources.
type Extractor struct {
	client   *http.Client
	maxBytes int64
}

// New creates an Extractor. A nil client uses one that follows up to 10 redirects.
func New(client *http.Client, maxBytes int64) *Extractor {
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Extractor{client: client, maxBytes: maxBytes}
}

// Extract dispatches on the kind of source.
func (e *Extractor) Extract(ctx context.Context, src Source) (models.ExtractedContent, error) {
	if src.File != nil {
		return e.FromUpload(ctx, *src.File)
	}
	return e.FromURL(ctx, src.URL)
}

// FromURL fetches rawURL and extracts either the readable article or the PDF text,
// depending on the response content type.
func (e *Extractor) FromURL(ctx context.Context, rawURL string) (models.ExtractedContent, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.ExtractedContent{}, fmt.Errorf("%w: invalid URL %q", apperr.ErrExtraction, rawURL)
	}
	if err := apperr.Check(ctx); err != nil {
		return models.ExtractedContent{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.ExtractedContent{}, fmt.Errorf("%w: %v", apperr.ErrExtraction, err)
	}
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		if cerr := apperr.Canceled(ctx, err); cerr != err {
			return models.ExtractedContent{}, cerr
		}
		return models.ExtractedContent{}, fmt.Errorf("%w: could not fetch %s: %v", apperr.ErrExtraction, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ExtractedContent{}, fmt.Errorf("%w: %s returned %s", apperr.ErrExtraction, rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		if cerr := apperr.Canceled(ctx, err); cerr != err {
			return models.ExtractedContent{}, cerr
		}
		return models.ExtractedContent{}, fmt.Errorf("%w: reading %s: %v", apperr.ErrExtraction, rawURL, err)
	}
	if int64(len(body)) > e.maxBytes {
		return models.ExtractedContent{}, fmt.Errorf("%w: %s is larger than %d bytes", apperr.ErrExtraction, rawURL, e.maxBytes)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), PDFContentType) {
		return fromPDF(body, rawURL)
	}
	return fromHTML(body, u)
}

// FromUpload extracts text from an uploaded PDF. Other media types are
// rejected before any parsing.
func (e *Extractor) FromUpload(ctx context.Context, up Upload) (models.ExtractedContent, error) {
	if !isPDF(up.ContentType) {
		return models.ExtractedContent{}, fmt.Errorf("%w: got %q", apperr.ErrUnsupportedType, up.ContentType)
	}
	if err := apperr.Check(ctx); err != nil {
		return models.ExtractedContent{}, err
	}
	if int64(len(up.Data)) > e.maxBytes {
		return models.ExtractedContent{}, fmt.Errorf("%w: file is larger than %d bytes", apperr.ErrExtraction, e.maxBytes)
	}
	return fromPDF(up.Data, FileScheme+up.Name)
}

func isPDF(contentType string) bool {
	mt := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	return mt == PDFContentType
}

// CountWords splits on whitespace.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func finish(title string, author *string, text, sourceURL string) (models.ExtractedContent, error) {
	text = strings.TrimSpace(text)
	wc := CountWords(text)
	if wc < 1 {
		return models.ExtractedContent{}, fmt.Errorf("%w: %w", apperr.ErrExtraction, apperr.ErrEmptyContent)
	}
	return models.ExtractedContent{
		Title:     title,
		Author:    author,
		FullText:  text,
		WordCount: wc,
		SourceURL: sourceURL,
	}, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
