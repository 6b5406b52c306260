package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultUserAgent is the browser-like User-Agent sent to news sites.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config is the root configuration for tribenews.
type Config struct {
	Ingest     IngestConfig     `mapstructure:"ingest"     yaml:"ingest"`
	Sources    []SourceConfig   `mapstructure:"sources"    yaml:"sources"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Server     ServerConfig     `mapstructure:"server"     yaml:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// IngestConfig controls ingestion runs.
type IngestConfig struct {
	Interval       time.Duration `mapstructure:"interval"         yaml:"interval"`
	RunOnStart     bool          `mapstructure:"run_on_start"     yaml:"run_on_start"`
	CandidateCap   int           `mapstructure:"candidate_cap"    yaml:"candidate_cap"`
	TouchLimit     int           `mapstructure:"touch_limit"      yaml:"touch_limit"`
	MinTitleLength int           `mapstructure:"min_title_length" yaml:"min_title_length"`
	MaxTitleLength int           `mapstructure:"max_title_length" yaml:"max_title_length"`
	Category       string        `mapstructure:"category"         yaml:"category"`
}

// Source kinds.
const (
	SourceHTML = "html"
	SourceRSS  = "rss"
)

// SourceConfig is one polled listing page or feed.
type SourceConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url"  yaml:"url"`
	Kind string `mapstructure:"kind" yaml:"kind"`
	// TrustedPaths are path prefixes on this source whose links are accepted
	// even when they look like category or listing pages.
	TrustedPaths []string `mapstructure:"trusted_paths" yaml:"trusted_paths"`
	// Selectors override the link selector priority list for html sources.
	Selectors []string `mapstructure:"selectors" yaml:"selectors,omitempty"`
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"`
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	ListingTimeout  time.Duration `mapstructure:"listing_timeout"   yaml:"listing_timeout"`
	ArticleTimeout  time.Duration `mapstructure:"article_timeout"   yaml:"article_timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	Browser         BrowserConfig `mapstructure:"browser"           yaml:"browser"`
	// RespectRobots skips URLs disallowed by the host's robots.txt.
	RespectRobots bool   `mapstructure:"respect_robots" yaml:"respect_robots"`
	RobotsAgent   string `mapstructure:"robots_agent"   yaml:"robots_agent"`
}

// BrowserConfig controls the headless browser fetcher.
type BrowserConfig struct {
	// ControlURL connects to an already running browser; empty launches one.
	ControlURL string `mapstructure:"control_url" yaml:"control_url"`
	Stealth    bool   `mapstructure:"stealth"     yaml:"stealth"`
	MaxPages   int    `mapstructure:"max_pages"   yaml:"max_pages"`
}

// ClassifierConfig controls the relevance classifier.
type ClassifierConfig struct {
	// PolicyFile overrides the embedded keyword policy.
	PolicyFile string `mapstructure:"policy_file" yaml:"policy_file"`
	// EnglishThreshold is the minimum ASCII share of letters, digits and spaces.
	EnglishThreshold float64 `mapstructure:"english_threshold" yaml:"english_threshold"`
	// BodySample is how many leading body characters the language check reads.
	BodySample int `mapstructure:"body_sample" yaml:"body_sample"`
}

// StorageConfig controls the article store.
type StorageConfig struct {
	Driver string       `mapstructure:"driver" yaml:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
	Mongo  MongoConfig  `mapstructure:"mongo"  yaml:"mongo"`
}

// SQLiteConfig configures the sqlite driver.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MongoConfig configures the mongo driver.
type MongoConfig struct {
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr        string         `mapstructure:"addr"         yaml:"addr"`
	APIKeys     []APIKeyConfig `mapstructure:"api_keys"     yaml:"api_keys"`
	CORSOrigins []string       `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// APIKeyConfig maps a static API key to a role name (member or admin).
type APIKeyConfig struct {
	Key  string `mapstructure:"key"  yaml:"key"`
	Role string `mapstructure:"role" yaml:"role"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Interval:       time.Hour,
			RunOnStart:     true,
			CandidateCap:   300,
			TouchLimit:     30,
			MinTitleLength: 15,
			MaxTitleLength: 500,
			Category:       "Education",
		},
		Sources: []SourceConfig{
			{Name: "apnews-education", URL: "https://apnews.com/education", Kind: SourceHTML},
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			UserAgent:       DefaultUserAgent,
			ListingTimeout:  15 * time.Second,
			ArticleTimeout:  10 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    20,
			Browser: BrowserConfig{
				Stealth:  true,
				MaxPages: 2,
			},
			RobotsAgent: "tribenews",
		},
		Classifier: ClassifierConfig{
			EnglishThreshold: 0.85,
			BodySample:       500,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "./data/tribenews.db"},
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "tribenews",
				Collection: "articles",
			},
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
