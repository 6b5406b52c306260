package parser

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/educatorstribe/tribenews/internal/types"
)

// minReadableText is the shortest readability output trusted over the
// selector-based fallback.
const minReadableText = 200

// ContentExtractor pulls the main text out of an article page.
type ContentExtractor struct {
	logger *slog.Logger
}

// NewContentExtractor creates a new content extractor.
func NewContentExtractor(logger *slog.Logger) *ContentExtractor {
	return &ContentExtractor{
		logger: logger.With("component", "content_extractor"),
	}
}

// Text returns the article's main text with whitespace collapsed. Readability
// is tried first; short or failed output falls back to the main content
// region, then to the body with page chrome removed.
func (e *ContentExtractor) Text(resp *types.Response) string {
	article, err := readability.FromReader(bytes.NewReader(resp.Body), resp.BaseURL())
	if err == nil {
		if text := CollapseSpace(article.TextContent); len(text) >= minReadableText {
			return text
		}
	} else {
		e.logger.Debug("readability failed, using fallback", "url", resp.FinalURL, "error", err)
	}

	doc, err := resp.Document()
	if err != nil {
		return ""
	}
	return fallbackText(doc)
}

func fallbackText(doc *goquery.Document) string {
	main := doc.Find("article").First()
	if main.Length() == 0 {
		main = doc.Find("main").First()
	}
	if main.Length() == 0 {
		main = doc.Find(`div[class*="content"], div[class*="article"]`).First()
	}
	if main.Length() > 0 {
		return CollapseSpace(main.Text())
	}

	body := doc.Find("body").Clone()
	body.Find("script, style, nav, header, footer").Remove()
	return CollapseSpace(body.Text())
}

// HTMLLang returns the lang attribute of the page's <html> element, lowercased.
func HTMLLang(resp *types.Response) string {
	doc, err := resp.Document()
	if err != nil {
		return ""
	}
	lang, _ := doc.Find("html").First().Attr("lang")
	return strings.ToLower(strings.TrimSpace(lang))
}
