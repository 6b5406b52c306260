package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/educatorstribe/tribenews/internal/types"
)

// FeedExtractor turns an RSS/Atom/JSON feed into article candidates.
type FeedExtractor struct {
	parser *gofeed.Parser
	cap    int
	logger *slog.Logger
}

// NewFeedExtractor creates a feed extractor returning at most limit candidates.
func NewFeedExtractor(limit int, logger *slog.Logger) *FeedExtractor {
	return &FeedExtractor{
		parser: gofeed.NewParser(),
		cap:    limit,
		logger: logger.With("component", "feed_extractor"),
	}
}

// Extract parses the feed body. Item links are resolved against the feed URL;
// the item title becomes the anchor text and its image, if any, the listing image.
func (e *FeedExtractor) Extract(resp *types.Response) ([]*types.Candidate, error) {
	feed, err := e.parser.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &types.ParseError{URL: resp.FinalURL, Err: fmt.Errorf("parse feed: %w", err)}
	}

	base := resp.BaseURL()
	seen := make(map[string]bool)
	out := make([]*types.Candidate, 0, min(len(feed.Items), e.cap))

	for _, item := range feed.Items {
		if len(out) >= e.cap {
			break
		}
		href := strings.TrimSpace(item.Link)
		if href == "" {
			continue
		}
		abs, _ := CanonicalizeURL(base, href)
		key := abs
		if key == "" {
			key = href
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		c := &types.Candidate{
			URL:     abs,
			Href:    href,
			Text:    CollapseSpace(item.Title),
			Context: Truncate(CollapseSpace(item.Description), contextLimit),
		}
		if img := feedItemImage(item); img != "" {
			if u, err := resolveImage(base, img); err == nil {
				c.ListingImage = u
			}
		}
		if item.PublishedParsed != nil {
			t := item.PublishedParsed.UTC()
			c.PublishedAt = &t
		}
		out = append(out, c)
	}

	e.logger.Debug("feed parsed", "url", resp.FinalURL, "title", feed.Title, "items", len(feed.Items), "candidates", len(out))
	return out, nil
}

func feedItemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}
