package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/educatorstribe/tribenews/internal/classify"
	"github.com/educatorstribe/tribenews/internal/fetcher"
	"github.com/educatorstribe/tribenews/internal/parser"
	"github.com/educatorstribe/tribenews/internal/types"
)

// URLStage drops links that cannot lead to a single article.
type URLStage struct {
	Classifier *classify.Classifier
}

func (s *URLStage) Name() string { return "url" }

func (s *URLStage) Process(_ context.Context, cand *types.Candidate) (*types.Candidate, error) {
	if reason := s.Classifier.CheckURL(cand, cand.ListingURL); reason != "" {
		return nil, Reject(reason)
	}
	return cand, nil
}

// TitleStage resolves the display title from anchor text or context.
type TitleStage struct {
	Classifier *classify.Classifier
}

func (s *TitleStage) Name() string { return "title" }

func (s *TitleStage) Process(_ context.Context, cand *types.Candidate) (*types.Candidate, error) {
	title, ok := s.Classifier.ResolveTitle(cand)
	if !ok {
		return nil, Reject(classify.ReasonShortTitle)
	}
	cand.Title = title
	return cand, nil
}

// TitleLanguageStage drops candidates whose title is not English.
type TitleLanguageStage struct {
	Classifier *classify.Classifier
}

func (s *TitleLanguageStage) Name() string { return "title_language" }

func (s *TitleLanguageStage) Process(_ context.Context, cand *types.Candidate) (*types.Candidate, error) {
	if !s.Classifier.TitleIsEnglish(cand.Title) {
		return nil, Reject(classify.ReasonNonEnglish)
	}
	return cand, nil
}

// DetailStage fetches the article page. A failed fetch leaves the candidate
// to be judged on its title alone.
type DetailStage struct {
	Fetcher fetcher.Fetcher
	Content *parser.ContentExtractor
	Logger  *slog.Logger
}

func (s *DetailStage) Name() string { return "detail" }

func (s *DetailStage) Process(ctx context.Context, cand *types.Candidate) (*types.Candidate, error) {
	req, err := types.NewRequest(cand.URL, types.TagArticle)
	if err != nil {
		s.Logger.Debug("article url rejected by fetcher", "url", cand.URL, "error", err)
		return cand, nil
	}

	resp, err := s.Fetcher.Fetch(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !types.IsSkip(err) && !errors.Is(err, types.ErrInvalidURL) {
			return nil, err
		}
		s.Logger.Debug("article fetch skipped, judging on title", "url", cand.URL, "error", err)
		return cand, nil
	}

	cand.Page = resp
	cand.Fetched = true
	cand.Body = s.Content.Text(resp)
	cand.Lang = parser.HTMLLang(resp)
	if cand.PublishedAt == nil {
		if doc, err := resp.Document(); err == nil {
			cand.PublishedAt = parser.PublishedTime(doc)
		}
	}
	return cand, nil
}

// BodyLanguageStage drops fetched articles whose body is not English.
type BodyLanguageStage struct {
	Classifier *classify.Classifier
}

func (s *BodyLanguageStage) Name() string { return "body_language" }

func (s *BodyLanguageStage) Process(_ context.Context, cand *types.Candidate) (*types.Candidate, error) {
	if !cand.BodyFetched() || (cand.Body == "" && cand.Lang == "") {
		return cand, nil
	}
	if !s.Classifier.BodyIsEnglish(cand.Body, cand.Lang) {
		return nil, Reject(classify.ReasonNonEnglish)
	}
	return cand, nil
}

// TopicStage keeps only African education coverage.
type TopicStage struct {
	Classifier *classify.Classifier
	Logger     *slog.Logger
}

func (s *TopicStage) Name() string { return "topic" }

func (s *TopicStage) Process(_ context.Context, cand *types.Candidate) (*types.Candidate, error) {
	res := s.Classifier.Topic(cand.Title, cand.Body)
	if !res.Relevant {
		return nil, Reject(res.Reason)
	}
	s.Logger.Debug("candidate relevant",
		"url", cand.URL,
		"african", res.African,
		"education", res.Education,
	)
	return cand, nil
}

// ImageStage picks the article image: the listing thumbnail if there was
// one, otherwise the first hit from the detail page resolver. It never
// drops a candidate. The detail page is released afterwards.
type ImageStage struct {
	Resolver *parser.ImageResolver
	Logger   *slog.Logger
}

func (s *ImageStage) Name() string { return "image" }

func (s *ImageStage) Process(_ context.Context, cand *types.Candidate) (*types.Candidate, error) {
	defer func() { cand.Page = nil }()

	if parser.IsAbsoluteHTTP(cand.ListingImage) {
		cand.ImageURL = cand.ListingImage
		return cand, nil
	}
	if cand.Page == nil {
		return cand, nil
	}
	if img, stage := s.Resolver.Resolve(cand.Page); img != "" {
		cand.ImageURL = img
		s.Logger.Debug("image resolved", "url", cand.URL, "stage", stage)
	}
	return cand, nil
}

// Deps are the collaborators of the standard candidate chain.
type Deps struct {
	Classifier *classify.Classifier
	Fetcher    fetcher.Fetcher
	Content    *parser.ContentExtractor
	Images     *parser.ImageResolver
	Logger     *slog.Logger
}

// NewStandard builds the chain every candidate goes through: URL filter,
// title, title language, detail fetch, body language, topic, image.
func NewStandard(d Deps) *Pipeline {
	logger := d.Logger.With("component", "stages")
	return New(d.Logger).
		Use(&URLStage{Classifier: d.Classifier}).
		Use(&TitleStage{Classifier: d.Classifier}).
		Use(&TitleLanguageStage{Classifier: d.Classifier}).
		Use(&DetailStage{Fetcher: d.Fetcher, Content: d.Content, Logger: logger}).
		Use(&BodyLanguageStage{Classifier: d.Classifier}).
		Use(&TopicStage{Classifier: d.Classifier, Logger: logger}).
		Use(&ImageStage{Resolver: d.Images, Logger: logger})
}
