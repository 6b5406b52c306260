package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/parser"
	"github.com/educatorstribe/tribenews/internal/storage"
	"github.com/educatorstribe/tribenews/internal/types"
)

// Writer turns accepted candidates into one storage batch per source.
type Writer struct {
	store  storage.Store
	cfg    config.IngestConfig
	logger *slog.Logger
}

// NewWriter creates a Writer over store.
func NewWriter(store storage.Store, cfg config.IngestConfig, logger *slog.Logger) *Writer {
	return &Writer{
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "writer"),
	}
}

// Write inserts unseen candidates, backfills images on stored articles that
// lack one and, when nothing new landed, refreshes the source domain's most
// recent articles.
func (w *Writer) Write(ctx context.Context, src config.SourceConfig, accepted []*types.Candidate, now time.Time) (*storage.BatchResult, error) {
	batch := &storage.Batch{
		Domain:         types.DomainOf(src.URL),
		TouchLimit:     w.cfg.TouchLimit,
		MinTitleLength: w.cfg.MinTitleLength,
		Now:            now,
	}

	seen := make(map[string]bool, len(accepted))
	for _, c := range accepted {
		if c.URL == "" || seen[c.URL] {
			continue
		}
		seen[c.URL] = true

		title := parser.Truncate(strings.TrimSpace(c.Title), w.cfg.MaxTitleLength)
		if len([]rune(title)) < w.cfg.MinTitleLength {
			w.logger.Debug("title below minimum, not written", "url", c.URL, "title", title)
			continue
		}

		image := c.ImageURL
		if !parser.IsAbsoluteHTTP(image) {
			image = ""
		}

		existing, err := w.store.FindByURL(ctx, c.URL)
		switch {
		case errors.Is(err, types.ErrNotFound):
			batch.Inserts = append(batch.Inserts, &types.Article{
				ID:           uuid.NewString(),
				Title:        title,
				CanonicalURL: c.URL,
				Domain:       c.Domain(),
				ImageURL:     image,
				Category:     w.cfg.Category,
				Source:       src.Name,
				PublishedAt:  c.PublishedAt,
				FetchedAt:    now,
				IsRelevant:   true,
			})
		case err != nil:
			return nil, fmt.Errorf("lookup %s: %w", c.URL, err)
		default:
			if !existing.HasImage() && image != "" {
				batch.Backfills = append(batch.Backfills, storage.Backfill{CanonicalURL: c.URL, ImageURL: image})
			}
		}
	}

	res, err := w.store.ApplyBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	return res, nil
}
