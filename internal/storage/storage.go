package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/types"
)

// Store is the interface for all article backends.
//
// Canonical URLs are unique: inserting a URL that already exists is a no-op.
// fetched_at only ever moves forward.
type Store interface {
	// FindByURL returns the article with the given canonical URL, or
	// types.ErrNotFound.
	FindByURL(ctx context.Context, canonicalURL string) (*types.Article, error)

	// ApplyBatch writes one source's accepted articles as a unit.
	ApplyBatch(ctx context.Context, b *Batch) (*BatchResult, error)

	// ListArticles returns relevant articles, newest first.
	ListArticles(ctx context.Context, q ListQuery) ([]*types.Article, error)

	// CountArticles counts the articles ListArticles would page through.
	CountArticles(ctx context.Context, q ListQuery) (int, error)

	// Close releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}

// Migrator is implemented by stores with an explicit schema step. Open
// runs it; calling it again is a no-op when the schema is current.
type Migrator interface {
	Migrate(ctx context.Context) (string, error)
}

var (
	_ Migrator = (*SQLiteStore)(nil)
	_ Migrator = (*MongoStore)(nil)
)

// Batch is the set of writes produced by one source in one run.
type Batch struct {
	// Domain is the source's publisher domain, used for touching.
	Domain string

	// Inserts are new articles. Existing canonical URLs are skipped.
	Inserts []*types.Article

	// Backfills set an image on stored articles that have none.
	Backfills []Backfill

	// TouchLimit is how many recent articles from Domain get their
	// fetched_at advanced when no insert landed. Zero disables touching.
	TouchLimit int

	// MinTitleLength bounds which articles count as titled for touching.
	MinTitleLength int

	// Now is the timestamp written to fetched_at.
	Now time.Time
}

// Backfill adds an image to an article that lacks one.
type Backfill struct {
	CanonicalURL string
	ImageURL     string
}

// BatchResult counts what a batch changed.
type BatchResult struct {
	Inserted   int `json:"inserted"`
	Backfilled int `json:"backfilled"`
	Touched    int `json:"touched"`
}

// ListQuery selects a page of relevant articles.
type ListQuery struct {
	Limit          int
	Offset         int
	RequireImage   bool
	Domain         string
	MinTitleLength int
}

// Open builds the store selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Storage.Driver {
	case "", "sqlite":
		s, err := OpenSQLite(ctx, cfg.Storage.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "mongo", "mongodb":
		m := cfg.Storage.Mongo
		s, err := OpenMongo(ctx, m.URI, m.Database, m.Collection, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
