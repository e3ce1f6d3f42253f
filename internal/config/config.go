// Package config loads and validates the crawler's run configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"match-crawler/internal/riot"
)

// Config is every run parameter of one crawl. It is read once at startup and
// passed explicitly to the components that need it.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Output  OutputConfig  `mapstructure:"output"`
	Mirror  MirrorConfig  `mapstructure:"mirror"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig controls access to the Riot API.
type APIConfig struct {
	Key                   string        `mapstructure:"key"`
	HostTemplate          string        `mapstructure:"host_template"`
	Queue                 string        `mapstructure:"queue"`
	RankedQueueID         int           `mapstructure:"ranked_queue_id"`
	DefaultRetryAfter     time.Duration `mapstructure:"default_retry_after"`
	Timeout               time.Duration `mapstructure:"timeout"`
	RequestsPerSecond     int           `mapstructure:"requests_per_second"`
	RequestsPerTwoMinutes int           `mapstructure:"requests_per_two_minutes"`
}

// CrawlConfig is the iteration space and its quotas.
type CrawlConfig struct {
	TargetMatches      int           `mapstructure:"target_matches"`
	DivisionCap        int           `mapstructure:"division_cap"`
	HistoryCount       int           `mapstructure:"history_count"`
	PacingDelay        time.Duration `mapstructure:"pacing_delay"`
	BatchSize          int           `mapstructure:"batch_size"`
	MinDurationSeconds int           `mapstructure:"min_duration_seconds"`
	SnapshotMinute     int           `mapstructure:"snapshot_minute"`
	EmptyPageLimit     int           `mapstructure:"empty_page_limit"`
	Tiers              []string      `mapstructure:"tiers"`
	Divisions          []string      `mapstructure:"divisions"`
	Regions            []riot.Region `mapstructure:"regions"`
}

// OutputConfig locates the CSV destination.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// MirrorConfig enables optional database copies of flushed rows.
type MirrorConfig struct {
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// NotifyConfig configures run notifications.
type NotifyConfig struct {
	DiscordWebhookURL string `mapstructure:"discord_webhook_url"`
}

// MetricsConfig controls the optional metrics endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// envFiles are tried in order; the first one found wins.
var envFiles = []string{".env", "../.env", "../../.env"}

// LoadDotEnv loads the first .env file found into the process environment
// and returns its path, or "" when none exists.
func LoadDotEnv() string {
	for _, path := range envFiles {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Load builds a Config from defaults, an optional YAML file and the
// environment (CRAWLER_ prefix; RIOT_API_KEY is accepted for the key).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.key", "CRAWLER_API_KEY", "RIOT_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

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
	cfg.API.Key = strings.Trim(strings.TrimSpace(cfg.API.Key), "\"")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host_template", riot.DefaultHostTemplate)
	v.SetDefault("api.queue", riot.DefaultQueue)
	v.SetDefault("api.ranked_queue_id", riot.DefaultRankedQueueID)
	v.SetDefault("api.default_retry_after", riot.DefaultRetryAfter)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.requests_per_second", riot.DefaultRequestsPerSecond)
	v.SetDefault("api.requests_per_two_minutes", riot.DefaultRequestsPerTwoMinutes)
	v.SetDefault("crawl.target_matches", 30000)
	v.SetDefault("crawl.division_cap", 1500)
	v.SetDefault("crawl.history_count", 20)
	v.SetDefault("crawl.pacing_delay", 1200*time.Millisecond)
	v.SetDefault("crawl.batch_size", 50)
	v.SetDefault("crawl.min_duration_seconds", 910)
	v.SetDefault("crawl.snapshot_minute", 15)
	v.SetDefault("crawl.empty_page_limit", 2)
	v.SetDefault("crawl.tiers", []string{"DIAMOND", "EMERALD"})
	v.SetDefault("crawl.divisions", []string{"I", "II", "III", "IV"})
	v.SetDefault("crawl.regions", []map[string]any{
		{"id": "NA1", "route": "americas"},
		{"id": "EUN1", "route": "europe"},
		{"id": "EUW1", "route": "europe"},
	})
	v.SetDefault("output.path", "league_dataset_diamond_emerald.csv")
	// Optional integrations are off unless set. Registering the empty defaults
	// lets environment overrides reach Unmarshal.
	v.SetDefault("mirror.sqlite_path", "")
	v.SetDefault("mirror.postgres_dsn", "")
	v.SetDefault("notify.discord_webhook_url", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. It does not
// require api.key so that offline commands can run without one; use
// RequireKey before talking to the API.
func (c Config) Validate() error {
	if c.Crawl.TargetMatches <= 0 {
		return fmt.Errorf("crawl.target_matches must be > 0")
	}
	if c.Crawl.DivisionCap <= 0 {
		return fmt.Errorf("crawl.division_cap must be > 0")
	}
	if c.Crawl.HistoryCount <= 0 || c.Crawl.HistoryCount > 100 {
		return fmt.Errorf("crawl.history_count must be between 1 and 100")
	}
	if c.Crawl.PacingDelay < 0 {
		return fmt.Errorf("crawl.pacing_delay must be >= 0")
	}
	if c.Crawl.BatchSize <= 0 {
		return fmt.Errorf("crawl.batch_size must be > 0")
	}
	if c.Crawl.SnapshotMinute <= 0 {
		return fmt.Errorf("crawl.snapshot_minute must be > 0")
	}
	if c.Crawl.MinDurationSeconds < c.Crawl.SnapshotMinute*60 {
		return fmt.Errorf("crawl.min_duration_seconds must cover crawl.snapshot_minute")
	}
	if c.Crawl.EmptyPageLimit <= 0 {
		return fmt.Errorf("crawl.empty_page_limit must be > 0")
	}
	if len(c.Crawl.Tiers) == 0 {
		return fmt.Errorf("crawl.tiers must not be empty")
	}
	for _, tier := range c.Crawl.Tiers {
		if !riot.IsLadderTier(tier) {
			return fmt.Errorf("crawl.tiers: unknown tier %q", tier)
		}
	}
	if len(c.Crawl.Divisions) == 0 {
		return fmt.Errorf("crawl.divisions must not be empty")
	}
	for _, division := range c.Crawl.Divisions {
		if !riot.IsDivision(division) {
			return fmt.Errorf("crawl.divisions: unknown division %q", division)
		}
	}
	for _, tier := range c.Crawl.Tiers {
		if !riot.IsApexTier(tier) {
			continue
		}
		for _, division := range c.Crawl.Divisions {
			if division != "I" {
				return fmt.Errorf("crawl.divisions: apex tier %s only has division I, got %q", tier, division)
			}
		}
	}
	if len(c.Crawl.Regions) == 0 {
		return fmt.Errorf("crawl.regions must not be empty")
	}
	for i, region := range c.Crawl.Regions {
		if region.ID == "" || region.Route == "" {
			return fmt.Errorf("crawl.regions[%d] needs both id and route", i)
		}
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path must be set")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.API.DefaultRetryAfter <= 0 {
		return fmt.Errorf("api.default_retry_after must be > 0")
	}
	return nil
}

// ErrMissingKey is returned by RequireKey when no API key is configured.
var ErrMissingKey = errors.New("api.key must be set (CRAWLER_API_KEY or RIOT_API_KEY)")

// RequireKey checks that an API key is configured.
func (c Config) RequireKey() error {
	if c.API.Key == "" {
		return ErrMissingKey
	}
	return nil
}
