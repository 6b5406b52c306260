package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/educatorstribe/tribenews/internal/classify"
	"github.com/educatorstribe/tribenews/internal/parser"
	"github.com/educatorstribe/tribenews/internal/pipeline"
	"github.com/educatorstribe/tribenews/internal/types"
)

var (
	classifyTitle string
	classifyBody  string
	classifyLang  string
)

// classifyCmd creates the "classify" subcommand: a dry run that never
// writes to storage.
func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [url]",
		Short: "Dry-run the relevance classifier on a URL or a title and body",
		Long: `Classify an article without storing it.

With a URL, the page is fetched and run through the same stages as an
ingestion run. With --title (and optionally --body), only the keyword and
language checks run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runClassify,
	}
	cmd.Flags().StringVarP(&classifyTitle, "title", "t", "", "headline to classify")
	cmd.Flags().StringVarP(&classifyBody, "body", "b", "", "article text to classify")
	cmd.Flags().StringVar(&classifyLang, "lang", "", "declared page language, e.g. en or fr")
	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && classifyTitle == "" {
		return errors.New("give a URL or --title")
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	c, err := e.classifier()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return classifyText(cmd.OutOrStdout(), c, classifyTitle, classifyBody, classifyLang)
	}
	return classifyURL(cmd.Context(), cmd.OutOrStdout(), e, c, args[0])
}

func classifyText(w io.Writer, c *classify.Classifier, title, body, lang string) error {
	title = strings.TrimSpace(title)
	out := map[string]any{
		"title":         title,
		"title_english": c.TitleIsEnglish(title),
	}
	if body != "" || lang != "" {
		out["body_english"] = c.BodyIsEnglish(body, lang)
	}
	out["topic"] = c.Topic(title, body)
	return printJSON(w, out)
}

func classifyURL(ctx context.Context, w io.Writer, e *env, c *classify.Classifier, rawURL string) error {
	f, err := e.openFetcher()
	if err != nil {
		return err
	}

	cand := &types.Candidate{URL: rawURL, Text: classifyTitle, Source: "cli"}
	if cand.Text == "" {
		// No listing page: take the headline from the article itself.
		req, err := types.NewRequest(rawURL, types.TagArticle)
		if err != nil {
			return err
		}
		resp, err := f.Fetch(ctx, req)
		if err != nil {
			return err
		}
		doc, err := resp.Document()
		if err != nil {
			return err
		}
		cand.Text = parser.PageTitle(doc)
	}

	p := pipeline.NewStandard(pipeline.Deps{
		Classifier: c,
		Fetcher:    f,
		Content:    parser.NewContentExtractor(e.logger),
		Images:     parser.NewImageResolver(e.logger),
		Logger:     e.logger,
	})
	accepted, drop, err := p.Process(ctx, cand)
	if err != nil {
		return err
	}

	out := map[string]any{
		"url":      rawURL,
		"title":    cand.Title,
		"accepted": accepted != nil,
		"fetched":  cand.BodyFetched(),
		"topic":    c.Topic(cand.Title, cand.Body),
	}
	if drop != nil {
		out["stage"] = drop.Stage
		out["reason"] = drop.Reason
	}
	if accepted != nil {
		out["image_url"] = accepted.ImageURL
	}
	return printJSON(w, out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
