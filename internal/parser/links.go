package parser

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/educatorstribe/tribenews/internal/types"
)

// DefaultLinkSelectors is the priority list tried against a listing page.
// The first selector with at least one match wins.
var DefaultLinkSelectors = []string{
	`a[href*="article"]`,
	`a[href*="news"]`,
	`a[href*="story"]`,
	`article a`,
	`.article a`,
	`.news-item a`,
	`.post-title a`,
	`h2 a`,
	`h3 a`,
	`h4 a`,
	`.entry-title a`,
	`.title a`,
}

// contextLimit caps the fallback title text taken from a link's container.
const contextLimit = 200

// imageAttrs are the attributes checked, in order, for an image source.
var imageAttrs = []string{"src", "data-src", "data-lazy-src", "data-original"}

// LinkExtractor turns a listing page into article candidates.
type LinkExtractor struct {
	selectors []string
	cap       int
	logger    *slog.Logger
}

// NewLinkExtractor creates an extractor that returns at most limit candidates.
func NewLinkExtractor(limit int, logger *slog.Logger) *LinkExtractor {
	return &LinkExtractor{
		selectors: DefaultLinkSelectors,
		cap:       limit,
		logger:    logger.With("component", "link_extractor"),
	}
}

// WithSelectors returns a copy of e that tries selectors instead of the
// default priority list. An empty list returns e unchanged.
func (e *LinkExtractor) WithSelectors(selectors []string) *LinkExtractor {
	if len(selectors) == 0 {
		return e
	}
	c := *e
	c.selectors = selectors
	return &c
}

// Extract returns candidates in document order, deduplicated by canonical
// URL and capped. Hrefs that cannot be resolved to http(s) URLs are still
// returned with an empty URL so the URL filter can record why they dropped.
func (e *LinkExtractor) Extract(resp *types.Response) ([]*types.Candidate, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}

	anchors, selector := e.selectAnchors(doc)
	e.logger.Debug("anchors selected",
		"url", resp.FinalURL,
		"selector", selector,
		"count", anchors.Length(),
	)

	base := resp.BaseURL()
	seen := make(map[string]*types.Candidate)
	var out []*types.Candidate

	anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(out) >= e.cap {
			return false
		}

		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return true
		}

		abs, _ := CanonicalizeURL(base, href)
		key := abs
		if key == "" {
			key = href
		}
		text := CollapseSpace(a.Text())

		// Listing pages often link the same story from an image and a headline.
		if prev, ok := seen[key]; ok {
			if len(text) > len(prev.Text) {
				prev.Text = text
			}
			if prev.ListingImage == "" {
				prev.ListingImage = listingImage(a, base)
			}
			return true
		}

		c := &types.Candidate{
			URL:          abs,
			Href:         href,
			Text:         text,
			Context:      linkContext(a),
			ListingImage: listingImage(a, base),
		}
		seen[key] = c
		out = append(out, c)
		return true
	})

	return out, nil
}

// selectAnchors applies the priority list, falling back to every a[href].
func (e *LinkExtractor) selectAnchors(doc *goquery.Document) (*goquery.Selection, string) {
	for _, sel := range e.selectors {
		found := doc.Find(sel).FilterFunction(func(_ int, s *goquery.Selection) bool {
			_, ok := s.Attr("href")
			return ok
		})
		if found.Length() > 0 {
			return found, sel
		}
	}
	return doc.Find("a[href]"), "a[href]"
}

// linkContext recovers a title from the anchor's surroundings: the first
// heading inside the closest container, else that container's text.
func linkContext(a *goquery.Selection) string {
	parent := a.Closest("h1, h2, h3, h4, div, article")
	if parent.Length() == 0 {
		return ""
	}
	if goquery.NodeName(parent) != "div" && goquery.NodeName(parent) != "article" {
		return Truncate(CollapseSpace(parent.Text()), contextLimit)
	}
	if h := parent.Find("h1, h2, h3, h4").First(); h.Length() > 0 {
		if text := CollapseSpace(h.Text()); text != "" {
			return Truncate(text, contextLimit)
		}
	}
	return Truncate(CollapseSpace(parent.Text()), contextLimit)
}

// listingImage looks for an <img> inside the anchor, then up to three
// ancestor levels.
func listingImage(a *goquery.Selection, base *url.URL) string {
	node := a
	for level := 0; level <= 3 && node.Length() > 0; level++ {
		if src := imageSource(node.Find("img").First()); src != "" {
			if abs, err := resolveImage(base, src); err == nil {
				return abs
			}
		}
		node = node.Parent()
	}
	return ""
}

// imageSource returns the first non-empty, non-inline image attribute.
func imageSource(img *goquery.Selection) string {
	if img.Length() == 0 {
		return ""
	}
	for _, attr := range imageAttrs {
		if v, ok := img.Attr(attr); ok {
			v = strings.TrimSpace(v)
			if v != "" && !strings.HasPrefix(v, "data:") {
				return v
			}
		}
	}
	return ""
}
