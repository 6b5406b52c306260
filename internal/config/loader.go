package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("TRIBENEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tribenews")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tribenews"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// A configured source list replaces the default one instead of merging into it.
	if v.InConfig("sources") {
		cfg.Sources = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i := range cfg.Sources {
		if cfg.Sources[i].Kind == "" {
			cfg.Sources[i].Kind = SourceHTML
		}
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env vars can override them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("ingest.interval", cfg.Ingest.Interval)
	v.SetDefault("ingest.run_on_start", cfg.Ingest.RunOnStart)
	v.SetDefault("ingest.candidate_cap", cfg.Ingest.CandidateCap)
	v.SetDefault("ingest.touch_limit", cfg.Ingest.TouchLimit)
	v.SetDefault("ingest.min_title_length", cfg.Ingest.MinTitleLength)
	v.SetDefault("ingest.max_title_length", cfg.Ingest.MaxTitleLength)
	v.SetDefault("ingest.category", cfg.Ingest.Category)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.listing_timeout", cfg.Fetcher.ListingTimeout)
	v.SetDefault("fetcher.article_timeout", cfg.Fetcher.ArticleTimeout)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.browser.control_url", cfg.Fetcher.Browser.ControlURL)
	v.SetDefault("fetcher.browser.stealth", cfg.Fetcher.Browser.Stealth)
	v.SetDefault("fetcher.browser.max_pages", cfg.Fetcher.Browser.MaxPages)
	v.SetDefault("fetcher.respect_robots", cfg.Fetcher.RespectRobots)
	v.SetDefault("fetcher.robots_agent", cfg.Fetcher.RobotsAgent)

	v.SetDefault("classifier.policy_file", cfg.Classifier.PolicyFile)
	v.SetDefault("classifier.english_threshold", cfg.Classifier.EnglishThreshold)
	v.SetDefault("classifier.body_sample", cfg.Classifier.BodySample)

	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.sqlite.path", cfg.Storage.SQLite.Path)
	v.SetDefault("storage.mongo.uri", cfg.Storage.Mongo.URI)
	v.SetDefault("storage.mongo.database", cfg.Storage.Mongo.Database)
	v.SetDefault("storage.mongo.collection", cfg.Storage.Mongo.Collection)

	v.SetDefault("server.addr", cfg.Server.Addr)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
