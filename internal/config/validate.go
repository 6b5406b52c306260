package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Ingest.Interval <= 0 {
		return fmt.Errorf("ingest.interval must be > 0")
	}
	if cfg.Ingest.CandidateCap < 1 {
		return fmt.Errorf("ingest.candidate_cap must be >= 1, got %d", cfg.Ingest.CandidateCap)
	}
	if cfg.Ingest.TouchLimit < 0 {
		return fmt.Errorf("ingest.touch_limit must be >= 0, got %d", cfg.Ingest.TouchLimit)
	}
	if cfg.Ingest.MinTitleLength < 1 {
		return fmt.Errorf("ingest.min_title_length must be >= 1, got %d", cfg.Ingest.MinTitleLength)
	}
	if cfg.Ingest.MaxTitleLength < cfg.Ingest.MinTitleLength {
		return fmt.Errorf("ingest.max_title_length (%d) must be >= ingest.min_title_length (%d)",
			cfg.Ingest.MaxTitleLength, cfg.Ingest.MinTitleLength)
	}
	if cfg.Ingest.Category == "" {
		return fmt.Errorf("ingest.category must not be empty")
	}

	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	names := make(map[string]bool, len(cfg.Sources))
	for i, src := range cfg.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name must not be empty", i)
		}
		if names[src.Name] {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		names[src.Name] = true
		if err := ValidateURL(src.URL); err != nil {
			return fmt.Errorf("sources[%d] (%s): %w", i, src.Name, err)
		}
		if src.Kind != SourceHTML && src.Kind != SourceRSS {
			return fmt.Errorf("sources[%d].kind must be 'html' or 'rss', got %q", i, src.Kind)
		}
	}

	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.ListingTimeout <= 0 || cfg.Fetcher.ArticleTimeout <= 0 {
		return fmt.Errorf("fetcher.listing_timeout and fetcher.article_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.Type == "browser" && cfg.Fetcher.Browser.MaxPages < 1 {
		return fmt.Errorf("fetcher.browser.max_pages must be >= 1, got %d", cfg.Fetcher.Browser.MaxPages)
	}

	if cfg.Classifier.EnglishThreshold <= 0 || cfg.Classifier.EnglishThreshold > 1 {
		return fmt.Errorf("classifier.english_threshold must be in (0, 1], got %v", cfg.Classifier.EnglishThreshold)
	}
	if cfg.Classifier.BodySample < 0 {
		return fmt.Errorf("classifier.body_sample must be >= 0, got %d", cfg.Classifier.BodySample)
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path must not be empty")
		}
	case "mongo", "mongodb":
		if cfg.Storage.Mongo.URI == "" || cfg.Storage.Mongo.Database == "" || cfg.Storage.Mongo.Collection == "" {
			return fmt.Errorf("storage.mongo.uri, database and collection must be set")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported (valid: sqlite, mongo, mongodb)", cfg.Storage.Driver)
	}

	for i, key := range cfg.Server.APIKeys {
		if key.Key == "" {
			return fmt.Errorf("server.api_keys[%d].key must not be empty", i)
		}
		if key.Role != "member" && key.Role != "admin" {
			return fmt.Errorf("server.api_keys[%d].role must be 'member' or 'admin', got %q", i, key.Role)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Path == "" || cfg.Metrics.Path[0] != '/') {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}

// ValidateURL checks if a URL string is valid for fetching.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
