// Package config loads and validates trending-digest configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. TRENDING_CRAWLER_LIMIT.
const EnvPrefix = "TRENDING"

// DefaultUserAgent identifies the crawler to GitHub.
const DefaultUserAgent = "trending-digest/1.0 (+https://github.com/JakeFAU/trending-digest)"

// Fetcher modes accepted by crawler.fetcher.
const (
	FetcherColly    = "colly"
	FetcherRetry    = "retry"
	FetcherHeadless = "headless"
	FetcherAuto     = "auto"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlerConfig governs the trending crawl.
type CrawlerConfig struct {
	ListingURL         string        `mapstructure:"listing_url"`
	BaseURL            string        `mapstructure:"base_url"`
	RawBaseURL         string        `mapstructure:"raw_base_url"`
	Limit              int           `mapstructure:"limit"`
	UserAgent          string        `mapstructure:"user_agent"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RunTimeout         time.Duration `mapstructure:"run_timeout"`
	MinRequestInterval time.Duration `mapstructure:"min_request_interval"`
	Concurrency        int           `mapstructure:"concurrency"`
	Fetcher            string        `mapstructure:"fetcher"`
	FetchReadme        bool          `mapstructure:"fetch_readme"`
	MaxPageBytes       int           `mapstructure:"max_page_bytes"`
}

// HTTPConfig configures the retrying HTTP fetcher.
type HTTPConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
}

// HeadlessConfig configures the chromedp fetcher.
type HeadlessConfig struct {
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	MaxParallel int           `mapstructure:"max_parallel"`
}

// DetectorConfig tunes when the auto fetcher promotes a page to headless.
type DetectorConfig struct {
	MinHTMLBytes   int      `mapstructure:"min_html_bytes"`
	ReadySelectors []string `mapstructure:"ready_selectors"`
}

// StorageConfig selects where report artifacts are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	Prefix    string `mapstructure:"prefix"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PublisherConfig controls run-completed announcements.
type PublisherConfig struct {
	Backend   string `mapstructure:"backend"`
	Topic     string `mapstructure:"topic"`
	ProjectID string `mapstructure:"project_id"`
}

// NotifyConfig controls the email digest.
type NotifyConfig struct {
	Recipient  string     `mapstructure:"recipient"`
	From       string     `mapstructure:"from"`
	ArchiveDir string     `mapstructure:"archive_dir"`
	SMTP       SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig holds mail server credentials.
type SMTPConfig struct {
	Server   string `mapstructure:"server"`
	Port     int    `mapstructure:"port"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	Prepare(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// Prepare installs defaults and environment bindings on v.
func Prepare(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	// The bare SMTP_* names are what mail tooling usually exports.
	_ = v.BindEnv("notify.smtp.server", EnvPrefix+"_NOTIFY_SMTP_SERVER", "SMTP_SERVER")
	_ = v.BindEnv("notify.smtp.port", EnvPrefix+"_NOTIFY_SMTP_PORT", "SMTP_PORT")
	_ = v.BindEnv("notify.smtp.email", EnvPrefix+"_NOTIFY_SMTP_EMAIL", "SMTP_EMAIL")
	_ = v.BindEnv("notify.smtp.password", EnvPrefix+"_NOTIFY_SMTP_PASSWORD", "SMTP_PASSWORD")
}

// SetDefaults registers every key so environment overrides can reach it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)

	v.SetDefault("crawler.listing_url", "https://github.com/trending")
	v.SetDefault("crawler.base_url", "https://github.com")
	v.SetDefault("crawler.raw_base_url", "https://raw.githubusercontent.com")
	v.SetDefault("crawler.limit", 5)
	v.SetDefault("crawler.user_agent", DefaultUserAgent)
	v.SetDefault("crawler.request_timeout", "10s")
	v.SetDefault("crawler.run_timeout", "2m")
	v.SetDefault("crawler.min_request_interval", "1s")
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.fetcher", FetcherColly)
	v.SetDefault("crawler.fetch_readme", true)
	v.SetDefault("crawler.max_page_bytes", 5*1024*1024)

	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial", "250ms")
	v.SetDefault("http.backoff_max", "2s")

	v.SetDefault("headless.nav_timeout", "30s")
	v.SetDefault("headless.max_parallel", 1)

	v.SetDefault("detector.min_html_bytes", 2048)
	v.SetDefault("detector.ready_selectors", []string{"article.Box-row", `a[href$="/stargazers"]`})

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", ".")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.gcs_bucket", "")

	v.SetDefault("publisher.backend", "memory")
	v.SetDefault("publisher.topic", "trending-runs")
	v.SetDefault("publisher.project_id", "")

	v.SetDefault("notify.recipient", "")
	v.SetDefault("notify.from", "github-trending@noreply.com")
	v.SetDefault("notify.archive_dir", ".")
	v.SetDefault("notify.smtp.server", "")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.email", "")
	v.SetDefault("notify.smtp.password", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	urls := []struct{ key, raw string }{
		{"crawler.listing_url", c.Crawler.ListingURL},
		{"crawler.base_url", c.Crawler.BaseURL},
		{"crawler.raw_base_url", c.Crawler.RawBaseURL},
	}
	for _, u := range urls {
		if !isHTTPURL(u.raw) {
			return fmt.Errorf("%s must be an absolute http(s) URL, got %q", u.key, u.raw)
		}
	}
	if c.Crawler.Limit <= 0 {
		return fmt.Errorf("crawler.limit must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.RunTimeout < 0 {
		return fmt.Errorf("crawler.run_timeout must be >= 0")
	}
	if c.Crawler.MinRequestInterval < 0 {
		return fmt.Errorf("crawler.min_request_interval must be >= 0")
	}
	if c.Crawler.MaxPageBytes <= 0 {
		return fmt.Errorf("crawler.max_page_bytes must be > 0")
	}
	if !slices.Contains([]string{FetcherColly, FetcherRetry, FetcherHeadless, FetcherAuto}, c.Crawler.Fetcher) {
		return fmt.Errorf("crawler.fetcher must be one of colly, retry, headless, auto; got %q", c.Crawler.Fetcher)
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.UsesHeadless() && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when crawler.fetcher is %s", c.Crawler.Fetcher)
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set when storage.backend is local")
		}
	case "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend must be one of local, memory, gcs; got %q", c.Storage.Backend)
	}
	switch c.Publisher.Backend {
	case "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic must be set when publisher.backend is pubsub")
		}
	default:
		return fmt.Errorf("publisher.backend must be one of memory, pubsub; got %q", c.Publisher.Backend)
	}
	if c.Notify.SMTP.Port <= 0 {
		return fmt.Errorf("notify.smtp.port must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// UsesHeadless reports whether the configured fetcher mode needs Chrome.
func (c Config) UsesHeadless() bool {
	return c.Crawler.Fetcher == FetcherHeadless || c.Crawler.Fetcher == FetcherAuto
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
