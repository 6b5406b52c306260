package classify

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/educatorstribe/tribenews/internal/parser"
	"github.com/educatorstribe/tribenews/internal/types"
)

// Drop reasons reported by the classifier.
const (
	ReasonNoURL        = "url:unresolvable"
	ReasonSelfLink     = "url:self"
	ReasonNonArticle   = "url:non-article"
	ReasonPagination   = "url:pagination"
	ReasonListing      = "url:listing"
	ReasonShortTitle   = "title:too-short"
	ReasonNonEnglish   = "lang:non-english"
	ReasonExcluded     = "topic:excluded"
	ReasonForeign      = "topic:non-african-region"
	ReasonNoAfrica     = "topic:no-african-context"
	ReasonNoEducation  = "topic:no-education"
	ReasonTopicMatched = "topic:relevant"
)

// minAnchorText is the shortest anchor text used as a title before falling
// back to the link's surrounding context.
const minAnchorText = 10

// Options tune the classifier thresholds.
type Options struct {
	MinTitleLength   int
	MaxTitleLength   int
	EnglishThreshold float64
	BodySample       int
}

// Classifier applies the URL, title, language and topic rules of a Policy.
// It is safe for concurrent use.
type Classifier struct {
	policy *Policy
	opts   Options

	african   *table
	education *table
	exclude   *table
	carveOuts *table
	regions   *table

	logger *slog.Logger
}

// New compiles policy into a Classifier.
func New(policy *Policy, opts Options, logger *slog.Logger) *Classifier {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if opts.MinTitleLength <= 0 {
		opts.MinTitleLength = 15
	}
	if opts.MaxTitleLength <= 0 {
		opts.MaxTitleLength = 500
	}
	if opts.EnglishThreshold <= 0 {
		opts.EnglishThreshold = 0.85
	}
	if opts.BodySample <= 0 {
		opts.BodySample = 500
	}

	c := &Classifier{
		policy:    policy,
		opts:      opts,
		african:   compile(policy.AfricanContext),
		education: compile(policy.Education),
		exclude:   compile(policy.Exclude),
		carveOuts: compile(policy.CarveOuts),
		regions:   compile(policy.NonAfricanRegions),
		logger:    logger.With("component", "classifier"),
	}
	c.logger.Debug("policy compiled",
		"name", policy.Name,
		"revision", policy.Revision,
		"african", len(c.african.raw),
		"education", len(c.education.raw),
		"exclude", len(c.exclude.raw),
	)
	return c
}

// Policy returns the policy the classifier was built from.
func (c *Classifier) Policy() *Policy {
	return c.policy
}

// Options returns the effective thresholds.
func (c *Classifier) Options() Options {
	return c.opts
}

// CheckURL returns "" when the candidate URL may lead to an article, or a
// drop reason otherwise. sourceURL is the listing page the link came from.
func (c *Classifier) CheckURL(cand *types.Candidate, sourceURL string) string {
	if cand.URL == "" {
		return ReasonNoURL
	}
	u, err := url.Parse(cand.URL)
	if err != nil {
		return ReasonNoURL
	}
	if src, err := url.Parse(sourceURL); err == nil {
		if strings.EqualFold(src.Host, u.Host) && strings.TrimSuffix(src.Path, "/") == strings.TrimSuffix(u.Path, "/") && u.RawQuery == "" {
			return ReasonSelfLink
		}
	}

	path := strings.ToLower(u.Path)
	for _, p := range c.policy.NonArticlePaths {
		if strings.Contains(path, p) {
			return ReasonNonArticle
		}
	}

	query := u.Query()
	for _, param := range c.policy.PaginationParams {
		if query.Has(param) {
			return ReasonPagination
		}
	}

	if !cand.Trusted {
		for _, p := range c.policy.ListingPaths {
			if strings.Contains(path, p) {
				return ReasonListing
			}
		}
	}
	return ""
}

// ResolveTitle picks the display title for cand: the anchor text, or the
// surrounding context when the anchor text is under ten characters. It
// returns ok=false when the result is shorter than the minimum title length.
// Accepted titles are cut to the maximum length.
func (c *Classifier) ResolveTitle(cand *types.Candidate) (string, bool) {
	title := parser.CollapseSpace(cand.Text)
	if len([]rune(title)) < minAnchorText {
		title = parser.CollapseSpace(cand.Context)
	}
	if len([]rune(title)) < c.opts.MinTitleLength {
		return "", false
	}
	return parser.Truncate(title, c.opts.MaxTitleLength), true
}

// TitleIsEnglish runs the language heuristic on a title.
func (c *Classifier) TitleIsEnglish(title string) bool {
	return IsEnglish(title, "", c.opts.EnglishThreshold)
}

// BodyIsEnglish runs the language check on the leading body sample,
// trusting the page's lang attribute when present.
func (c *Classifier) BodyIsEnglish(body, lang string) bool {
	return IsEnglish(parser.Truncate(body, c.opts.BodySample), lang, c.opts.EnglishThreshold)
}

// TopicResult explains a topic decision.
type TopicResult struct {
	Relevant  bool     `json:"relevant"`
	Reason    string   `json:"reason"`
	African   []string `json:"african,omitempty"`
	Education []string `json:"education,omitempty"`
	Excluded  []string `json:"excluded,omitempty"`
	Regions   []string `json:"regions,omitempty"`
}

// Topic decides whether title and body together cover education in an
// African context. Words are matched whole after Unicode normalization.
//
// An excluded word rejects unless it sits inside a carve-out phrase such
// as "education policy". A non-African place rejects when there is no
// African context. Otherwise the text needs at least one education word
// and at least one African context word.
func (c *Classifier) Topic(title, body string) TopicResult {
	tokens := tokenize(title + " " + body)

	res := TopicResult{
		African:   c.african.match(tokens, nil),
		Education: c.education.match(tokens, nil),
	}
	hasAfrica := len(res.African) > 0

	res.Excluded = c.exclude.match(tokens, c.carveOuts.spans(tokens))
	if len(res.Excluded) > 0 {
		res.Reason = ReasonExcluded
		return res
	}

	if !hasAfrica {
		res.Regions = c.regions.match(tokens, nil)
		if len(res.Regions) > 0 && len(res.Education) > 0 {
			res.Reason = ReasonForeign
			return res
		}
		res.Reason = ReasonNoAfrica
		return res
	}

	if len(res.Education) == 0 {
		res.Reason = ReasonNoEducation
		return res
	}

	res.Relevant = true
	res.Reason = ReasonTopicMatched
	return res
}

// IsRelevant is Topic reduced to its verdict.
func (c *Classifier) IsRelevant(title, body string) bool {
	return c.Topic(title, body).Relevant
}
