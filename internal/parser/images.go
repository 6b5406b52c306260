package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/educatorstribe/tribenews/internal/types"
)

// Image resolution stages, in the order they are tried.
const (
	StageOpenGraph = "og:image"
	StageTwitter   = "twitter:image"
	StageJSONLD    = "json-ld"
	StageFeatured  = "featured"
	StageContent   = "content"
)

// FeaturedImageSelectors are common containers for an article's lead image.
var FeaturedImageSelectors = []string{
	".featured-image img",
	".post-featured-image img",
	".article-featured-image img",
	".entry-featured-image img",
	"article img:first-of-type",
	".article-content img:first-of-type",
	".post-content img:first-of-type",
	"figure img",
	"picture img",
}

// mainContentXPaths locate the main content region, most specific first.
var mainContentXPaths = []string{
	"//article",
	"//main",
	"//div[contains(@class, 'article') or contains(@class, 'content')]",
}

// decorativeHints mark image filenames that are almost never article images.
var decorativeHints = []string{"logo", "icon", "avatar", "button"}

// minContentImageSize is the width and height a content image must exceed.
const minContentImageSize = 200

// ImageResolver finds a representative image on an article page.
type ImageResolver struct {
	logger *slog.Logger
}

// NewImageResolver creates a new image resolver.
func NewImageResolver(logger *slog.Logger) *ImageResolver {
	return &ImageResolver{
		logger: logger.With("component", "image_resolver"),
	}
}

// Resolve walks the fallback chain and returns the first image URL made
// absolute against the article's own URL, plus the stage that produced it.
// It returns "", "" when no stage succeeds.
func (r *ImageResolver) Resolve(resp *types.Response) (string, string) {
	base := resp.BaseURL()

	doc, err := resp.Document()
	if err != nil {
		r.logger.Debug("image resolver: unparseable page", "url", resp.FinalURL, "error", err)
		return "", ""
	}

	stages := []struct {
		name string
		find func() string
	}{
		{StageOpenGraph, func() string { return OpenGraphImage(doc) }},
		{StageTwitter, func() string { return TwitterImage(doc) }},
		{StageJSONLD, func() string { return JSONLDImage(doc) }},
		{StageFeatured, func() string { return featuredImage(doc) }},
		{StageContent, func() string { return contentImage(resp.Body) }},
	}

	for _, stage := range stages {
		raw := stage.find()
		if raw == "" {
			continue
		}
		abs, err := resolveImage(base, raw)
		if err != nil {
			r.logger.Debug("image candidate rejected", "stage", stage.name, "src", raw, "error", err)
			continue
		}
		return abs, stage.name
	}

	return "", ""
}

// featuredImage tries the featured-image selectors in priority order,
// skipping images that look decorative.
func featuredImage(doc *goquery.Document) string {
	for _, sel := range FeaturedImageSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, img *goquery.Selection) bool {
			if src := imageSource(img); src != "" && !isDecorative(src) {
				found = src
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// contentImage picks an image from the main content region: the first one
// declared larger than 200x200, else the first that does not look decorative.
func contentImage(body []byte) string {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var region *html.Node
	for _, expr := range mainContentXPaths {
		if n, err := htmlquery.Query(root, expr); err == nil && n != nil {
			region = n
			break
		}
	}
	if region == nil {
		return ""
	}

	imgs, err := htmlquery.QueryAll(region, ".//img")
	if err != nil || len(imgs) == 0 {
		return ""
	}

	for _, img := range imgs {
		src := nodeImageSource(img)
		if src == "" || isDecorative(src) {
			continue
		}
		w, wok := dimension(htmlquery.SelectAttr(img, "width"))
		h, hok := dimension(htmlquery.SelectAttr(img, "height"))
		if wok && hok && w > minContentImageSize && h > minContentImageSize {
			return src
		}
	}

	for _, img := range imgs {
		if src := nodeImageSource(img); src != "" && !isDecorative(src) {
			return src
		}
	}
	return ""
}

func nodeImageSource(n *html.Node) string {
	for _, attr := range imageAttrs {
		v := strings.TrimSpace(htmlquery.SelectAttr(n, attr))
		if v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

// dimension parses a width/height attribute such as "300" or "300px".
func dimension(v string) (int, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDecorative(src string) bool {
	lower := strings.ToLower(src)
	for _, hint := range decorativeHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// resolveImage makes src absolute against base and requires http(s).
func resolveImage(base *url.URL, src string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}
	if !IsAbsoluteHTTP(u.String()) || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an http(s) URL", types.ErrInvalidURL, src)
	}
	return u.String(), nil
}
