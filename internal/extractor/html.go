package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/models"
)

const untitledArticle = "Untitled Article"

func fromHTML(body []byte, pageURL *url.URL) (models.ExtractedContent, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return models.ExtractedContent{}, fmt.Errorf("%w: could not extract article content from this URL: %v", apperr.ErrExtraction, err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = fallbackTitle(body)
	}

	var author *string
	if byline := strings.TrimSpace(article.Byline); byline != "" {
		author = &byline
	}

	return finish(title, author, article.TextContent, pageURL.String())
}

// fallbackTitle looks at the document head when readability found no title.
func fallbackTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return untitledArticle
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if title, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	return untitledArticle
}
