package parser

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// metaContent returns the content of the first meta tag matching one of the
// property or name keys, in order.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		sel := doc.Find(`meta[property="` + key + `"], meta[name="` + key + `"]`).First()
		if v, ok := sel.Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// OpenGraphImage returns the og:image value.
func OpenGraphImage(doc *goquery.Document) string {
	return metaContent(doc, "og:image", "og:image:url", "og:image:secure_url")
}

// TwitterImage returns the twitter:image value.
func TwitterImage(doc *goquery.Document) string {
	return metaContent(doc, "twitter:image", "twitter:image:src")
}

// PageTitle returns the article headline: og:title, then the first <h1>,
// then <title>.
func PageTitle(doc *goquery.Document) string {
	if t := metaContent(doc, "og:title", "twitter:title"); t != "" {
		return CollapseSpace(t)
	}
	if t := CollapseSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return CollapseSpace(doc.Find("title").First().Text())
}

// jsonLDBlocks parses <script type="application/ld+json"> elements into
// objects. Arrays are flattened and an "@graph" wrapper is unpacked.
// Malformed blocks are skipped.
func jsonLDBlocks(doc *goquery.Document) []map[string]any {
	var results []map[string]any

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			results = append(results, obj)
			if graph, ok := obj["@graph"].([]any); ok {
				for _, g := range graph {
					if m, ok := g.(map[string]any); ok {
						results = append(results, m)
					}
				}
			}
			return
		}

		var arr []map[string]any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			results = append(results, arr...)
		}
	})

	return results
}

// JSONLDImage returns the first image or thumbnailUrl named by any JSON-LD
// block, falling back to the url field of the first block.
func JSONLDImage(doc *goquery.Document) string {
	blocks := jsonLDBlocks(doc)
	for _, block := range blocks {
		for _, key := range []string{"image", "thumbnailUrl"} {
			if v := imageValue(block[key]); v != "" {
				return v
			}
		}
	}
	if len(blocks) > 0 {
		return imageValue(blocks[0]["url"])
	}
	return ""
}

// imageValue unwraps the encodings schema.org allows for an image:
// a string, an ImageObject with url, or a list of either.
func imageValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		if s, ok := val["url"].(string); ok {
			return strings.TrimSpace(s)
		}
		if s, ok := val["contentUrl"].(string); ok {
			return strings.TrimSpace(s)
		}
	case []any:
		for _, item := range val {
			if s := imageValue(item); s != "" {
				return s
			}
		}
	}
	return ""
}

// publishedLayouts are the timestamp layouts seen in article metadata.
var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// PublishedTime extracts the article publication time from meta tags or
// JSON-LD datePublished. It returns nil when none parses.
func PublishedTime(doc *goquery.Document) *time.Time {
	candidates := []string{metaContent(doc, "article:published_time", "og:published_time", "pubdate", "date")}
	for _, block := range jsonLDBlocks(doc) {
		if s, ok := block["datePublished"].(string); ok {
			candidates = append(candidates, s)
		}
	}
	if t, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, t)
	}

	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		for _, layout := range publishedLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}
