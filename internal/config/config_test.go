package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero interval", func(c *Config) { c.Ingest.Interval = 0 }, "ingest.interval"},
		{"zero cap", func(c *Config) { c.Ingest.CandidateCap = 0 }, "candidate_cap"},
		{"title bounds", func(c *Config) { c.Ingest.MaxTitleLength = 5 }, "max_title_length"},
		{"no sources", func(c *Config) { c.Sources = nil }, "at least one source"},
		{"bad source url", func(c *Config) { c.Sources[0].URL = "ftp://x" }, "scheme"},
		{"bad source kind", func(c *Config) { c.Sources[0].Kind = "atom" }, "kind"},
		{"duplicate source", func(c *Config) { c.Sources = append(c.Sources, c.Sources[0]) }, "duplicate"},
		{"fetcher type", func(c *Config) { c.Fetcher.Type = "curl" }, "fetcher.type"},
		{"threshold", func(c *Config) { c.Classifier.EnglishThreshold = 1.5 }, "english_threshold"},
		{"storage driver", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.driver"},
		{"api key role", func(c *Config) {
			c.Server.APIKeys = []APIKeyConfig{{Key: "k", Role: "root"}}
		}, "role"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateAcceptsStorageDrivers(t *testing.T) {
	for _, driver := range []string{"sqlite", "mongo", "mongodb"} {
		cfg := DefaultConfig()
		cfg.Storage.Driver = driver
		if err := Validate(cfg); err != nil {
			t.Errorf("driver %q: %v", driver, err)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tribenews.yaml")
	content := `
ingest:
  interval: 30m
  touch_limit: 10
sources:
  - name: guardian-ng
    url: https://guardian.ng/category/education/
  - name: edu-feed
    url: https://example.org/feed.xml
    kind: rss
storage:
  driver: sqlite
  sqlite:
    path: /tmp/news.db
server:
  api_keys:
    - key: secret
      role: admin
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Ingest.Interval != 30*time.Minute {
		t.Errorf("interval = %v, want 30m", cfg.Ingest.Interval)
	}
	if cfg.Ingest.TouchLimit != 10 {
		t.Errorf("touch_limit = %d, want 10", cfg.Ingest.TouchLimit)
	}
	if cfg.Ingest.CandidateCap != 300 {
		t.Errorf("candidate_cap default lost: %d", cfg.Ingest.CandidateCap)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Sources))
	}
	if cfg.Sources[0].Kind != SourceHTML {
		t.Errorf("missing kind should default to html, got %q", cfg.Sources[0].Kind)
	}
	if cfg.Sources[1].Kind != SourceRSS {
		t.Errorf("kind = %q, want rss", cfg.Sources[1].Kind)
	}
	if len(cfg.Server.APIKeys) != 1 || cfg.Server.APIKeys[0].Role != "admin" {
		t.Errorf("api keys not loaded: %+v", cfg.Server.APIKeys)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TRIBENEWS_LOGGING_LEVEL", "debug")
	t.Setenv("TRIBENEWS_INGEST_CANDIDATE_CAP", "50")

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("metrics:\n  enabled: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Ingest.CandidateCap != 50 {
		t.Errorf("candidate_cap = %d, want 50", cfg.Ingest.CandidateCap)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].URL != "https://apnews.com/education" {
		t.Errorf("default source should survive when file has none: %+v", cfg.Sources)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
