// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

// EnvPrefix namespaces environment overrides, e.g. HARVESTER_FETCH_API_KEY.
const EnvPrefix = "HARVESTER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Browser BrowserConfig `mapstructure:"browser"`
	Output  OutputConfig  `mapstructure:"output"`
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ScrapeConfig describes the listing traversal.
type ScrapeConfig struct {
	StartURL string        `mapstructure:"start_url"`
	BaseURL  string        `mapstructure:"base_url"`
	MaxPages int           `mapstructure:"max_pages"`
	JobDelay time.Duration `mapstructure:"job_delay"`
}

// FetchConfig configures the remote scraping proxy and its retry policy.
type FetchConfig struct {
	APIURL            string        `mapstructure:"api_url"`
	APIKey            string        `mapstructure:"api_key"`
	RenderJS          bool          `mapstructure:"render_js"`
	PremiumProxy      bool          `mapstructure:"premium_proxy"`
	CountryCode       string        `mapstructure:"country_code"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// BrowserConfig configures the remote browser session pool.
type BrowserConfig struct {
	WSURL         string        `mapstructure:"ws_url"`
	Token         string        `mapstructure:"token"`
	TokenParam    string        `mapstructure:"token_param"`
	Sessions      int           `mapstructure:"sessions"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	NavTimeout    time.Duration `mapstructure:"nav_timeout"`
	OpTimeout     time.Duration `mapstructure:"op_timeout"`
	CookieWait    time.Duration `mapstructure:"cookie_wait"`
}

// OutputConfig locates the CSV sink.
type OutputConfig struct {
	CSVPath string `mapstructure:"csv_path"`
}

// ServerConfig controls the ops HTTP server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig controls the optional Postgres mirror. An empty DSN disables it.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// StorageConfig sets the optional GCS export target.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds the optional record notification topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from a .env file, the optional config file at path,
// and the environment. Environment values win over the file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Browser.MaxConcurrent == 0 {
		cfg.Browser.MaxConcurrent = cfg.Browser.Sessions
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("scrape.start_url", "https://www.stepstone.de/jobs/in-deutschland?radius=5&action=facet_selected%3bage%3bage_1&ag=age_1")
	v.SetDefault("scrape.base_url", "https://www.stepstone.de")
	v.SetDefault("scrape.max_pages", 0)
	v.SetDefault("scrape.job_delay", time.Second)

	v.SetDefault("fetch.api_url", "https://app.scrapingbee.com/api/v1/")
	v.SetDefault("fetch.api_key", "")
	v.SetDefault("fetch.render_js", false)
	v.SetDefault("fetch.premium_proxy", false)
	v.SetDefault("fetch.country_code", "")
	v.SetDefault("fetch.user_agent", "stepstone-harvester/0.1")
	v.SetDefault("fetch.timeout", 60*time.Second)
	v.SetDefault("fetch.max_attempts", crawler.DefaultMaxAttempts)
	v.SetDefault("fetch.retry_delay", crawler.DefaultRetryDelay)
	v.SetDefault("fetch.requests_per_second", 0.0)
	v.SetDefault("fetch.burst", 1)

	v.SetDefault("browser.ws_url", "wss://api.browsercat.com/connect")
	v.SetDefault("browser.token", "")
	v.SetDefault("browser.token_param", "apiKey")
	v.SetDefault("browser.sessions", 3)
	v.SetDefault("browser.max_concurrent", 0)
	v.SetDefault("browser.nav_timeout", 60*time.Second)
	v.SetDefault("browser.op_timeout", 15*time.Second)
	v.SetDefault("browser.cookie_wait", time.Second)

	v.SetDefault("output.csv_path", "jobs.csv")
	v.SetDefault("server.port", 0)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "job_records")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "harvests")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_id", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch {
	case c.Scrape.StartURL == "":
		return errors.New("scrape.start_url is required")
	case c.Scrape.BaseURL == "":
		return errors.New("scrape.base_url is required")
	case c.Scrape.MaxPages < 0:
		return errors.New("scrape.max_pages must be >= 0")
	case c.Fetch.APIURL == "":
		return errors.New("fetch.api_url is required")
	case c.Fetch.APIKey == "":
		return errors.New("fetch.api_key is required")
	case c.Fetch.MaxAttempts <= 0:
		return errors.New("fetch.max_attempts must be > 0")
	case c.Fetch.RequestsPerSecond < 0:
		return errors.New("fetch.requests_per_second must be >= 0")
	case c.Browser.WSURL == "":
		return errors.New("browser.ws_url is required")
	case c.Browser.Sessions <= 0:
		return errors.New("browser.sessions must be > 0")
	case c.Browser.MaxConcurrent <= 0 || c.Browser.MaxConcurrent > c.Browser.Sessions:
		return fmt.Errorf("browser.max_concurrent must be between 1 and %d", c.Browser.Sessions)
	case c.Output.CSVPath == "":
		return errors.New("output.csv_path is required")
	case c.Server.Port < 0:
		return errors.New("server.port must be >= 0")
	case (c.PubSub.ProjectID == "") != (c.PubSub.TopicID == ""):
		return errors.New("pubsub.project_id and pubsub.topic_id must be set together")
	}
	return nil
}

// FetchOptions returns the default per-request proxy options.
func (c Config) FetchOptions() crawler.FetchOptions {
	return crawler.FetchOptions{
		RenderJS:     c.Fetch.RenderJS,
		PremiumProxy: c.Fetch.PremiumProxy,
		CountryCode:  c.Fetch.CountryCode,
	}
}
