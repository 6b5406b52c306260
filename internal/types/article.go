package types

import (
	"net/url"
	"strings"
	"time"
)

// Article is the persisted unit produced by an ingestion run.
type Article struct {
	ID           string     `json:"id"                     bson:"_id"`
	Title        string     `json:"title"                  bson:"title"`
	CanonicalURL string     `json:"canonical_url"          bson:"canonical_url"`
	Domain       string     `json:"domain"                 bson:"domain"`
	ImageURL     string     `json:"image_url,omitempty"    bson:"image_url,omitempty"`
	Category     string     `json:"category"               bson:"category"`
	Source       string     `json:"source"                 bson:"source"`
	PublishedAt  *time.Time `json:"published_at,omitempty" bson:"published_at,omitempty"`
	FetchedAt    time.Time  `json:"fetched_at"             bson:"fetched_at"`
	IsRelevant   bool       `json:"is_relevant"            bson:"is_relevant"`
}

// HasImage reports whether the article carries a representative image.
func (a *Article) HasImage() bool {
	return strings.TrimSpace(a.ImageURL) != ""
}

// Candidate is a link discovered on a source page, carried through the
// classification stages until it is either dropped or written.
type Candidate struct {
	// Source is the configured source name the link was found on.
	Source string

	// ListingURL is the page the link was found on.
	ListingURL string

	// URL is the absolute canonical URL of the linked article.
	URL string

	// Href is the raw href attribute as it appeared on the listing page.
	Href string

	// Text is the anchor's own text.
	Text string

	// Context is the text of the nearest heading or parent container,
	// used when Text is too short to serve as a title.
	Context string

	// Title is the resolved display title.
	Title string

	// ListingImage is an image found next to the link on the listing page.
	ListingImage string

	// ImageURL is the final resolved image.
	ImageURL string

	// Body is the article's main text, when the detail page was fetched.
	Body string

	// Lang is the lang attribute of the detail page's <html> element.
	Lang string

	// Page is the fetched detail page, kept for the image resolver and
	// released once the image is resolved.
	Page *Response

	// Fetched records that the detail page was retrieved.
	Fetched bool

	// Trusted marks links from a source path that may look like a listing.
	Trusted bool

	PublishedAt *time.Time
}

// BodyFetched reports whether the article detail page was retrieved.
func (c *Candidate) BodyFetched() bool {
	return c.Fetched
}

// Domain returns the publisher domain of the candidate URL.
func (c *Candidate) Domain() string {
	return DomainOf(c.URL)
}

// DomainOf returns the lowercase hostname of rawURL without a leading
// "www.", or "" when it cannot be parsed.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
