package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/types"
)

// Fetcher is the interface for all page fetcher implementations.
//
// Fetch returns a *types.FetchError for every transport failure and for any
// status other than 200; callers treat that as "skip this page".
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// New builds the fetcher selected by cfg.Fetcher.Type, wrapped in a
// RobotsFetcher when fetcher.respect_robots is set.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	f, err := newBase(cfg, logger)
	if err != nil || !cfg.Fetcher.RespectRobots {
		return f, err
	}

	// robots.txt is plain text; a browser would wrap it in markup.
	var robots Fetcher = f
	if f.Type() != "http" {
		hf, err := NewHTTPFetcher(cfg, logger)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		robots = hf
	}
	return NewRobotsFetcher(f, robots, cfg.Fetcher.RobotsAgent, logger), nil
}

func newBase(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "", "http":
		f, err := NewHTTPFetcher(cfg, logger)
		if err != nil {
			return nil, err
		}
		return f, nil
	case "browser":
		f, err := NewBrowserFetcher(cfg, logger)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown fetcher type %q", cfg.Fetcher.Type)
	}
}

// timeoutFor picks the per-request timeout, falling back by request tag.
func timeoutFor(req *types.Request, cfg *config.FetcherConfig) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	if req.Tag == types.TagListing {
		return cfg.ListingTimeout
	}
	return cfg.ArticleTimeout
}
