// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Run modes for the crawler.
const (
	ModeInProcess = "inprocess"
	ModePubSub    = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Redis   RedisConfig   `mapstructure:"redis"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	DB      DBConfig      `mapstructure:"db"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
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

// CrawlerConfig governs the crawl pipeline: run mode, worker pool size,
// frontier capacity, fetch behavior and per-crawl limit defaults.
type CrawlerConfig struct {
	Mode                 string `mapstructure:"mode"`
	Concurrency          int    `mapstructure:"concurrency"`
	QueueCapacity        int    `mapstructure:"queue_capacity"`
	UserAgent            string `mapstructure:"user_agent"`
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`
	MaxDistanceDefault   int    `mapstructure:"max_distance_default"`
	MaxURLsDefault       int    `mapstructure:"max_urls_default"`
	MaxTimeMillisDefault int64  `mapstructure:"max_time_millis_default"`

	// Per-host politeness limits. A non-positive RPS disables throttling.
	PerHostRPS   float64 `mapstructure:"per_host_rps"`
	PerHostBurst int     `mapstructure:"per_host_burst"`
}

// RedisConfig locates the shared state store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PubSubConfig holds the broker-backed frontier settings, used when the
// crawler runs in pubsub mode.
type PubSubConfig struct {
	ProjectID      string `mapstructure:"project_id"`
	TopicID        string `mapstructure:"topic_id"`
	SubscriptionID string `mapstructure:"subscription_id"`

	// NotifyTopicID, when set, receives a message per finished crawl.
	NotifyTopicID string `mapstructure:"notify_topic_id"`
}

// DBConfig controls access to the search index database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig sets paths and content types for page archiving. An
// empty bucket disables archiving.
type StorageConfig struct {
	Bucket      string `mapstructure:"bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.mode", ModeInProcess)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.queue_capacity", 100_000)
	v.SetDefault("crawler.user_agent", "sitesearch-bot/0.1")
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.max_distance_default", 2)
	v.SetDefault("crawler.max_urls_default", 100)
	v.SetDefault("crawler.max_time_millis_default", 60_000)
	v.SetDefault("crawler.per_host_rps", 2.0)
	v.SetDefault("crawler.per_host_burst", 4)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("db.table", "search_documents")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Crawler.Mode {
	case ModeInProcess:
	case ModePubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.TopicID == "" || c.PubSub.SubscriptionID == "" {
			return fmt.Errorf("pubsub.project_id, pubsub.topic_id and pubsub.subscription_id must be set in pubsub mode")
		}
	default:
		return fmt.Errorf("crawler.mode must be %q or %q", ModeInProcess, ModePubSub)
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.MaxDistanceDefault < 0 {
		return fmt.Errorf("crawler.max_distance_default must be >= 0")
	}
	if c.Crawler.MaxURLsDefault <= 0 {
		return fmt.Errorf("crawler.max_urls_default must be > 0")
	}
	if c.Crawler.MaxTimeMillisDefault <= 0 {
		return fmt.Errorf("crawler.max_time_millis_default must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout converts the fetch timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}
