package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChannel  string `mapstructure:"telegram_channel"`

	AffiliateTag  string `mapstructure:"affiliate_tag"`
	DefaultRegion string `mapstructure:"default_region"`

	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	AnthropicModel  string `mapstructure:"anthropic_model"`
	ContentStyle    string `mapstructure:"content_style"`

	SourcesFile    string `mapstructure:"sources_file"`
	AnnouncersFile string `mapstructure:"announcers_file"`

	MaxDealsPerSource int `mapstructure:"max_deals_per_source"`

	PostIntervalSeconds int64         `mapstructure:"post_interval_seconds"`
	PostInterval        time.Duration `mapstructure:"-"`
	ItemDelaySeconds    int64         `mapstructure:"item_delay_seconds"`
	ItemDelay           time.Duration `mapstructure:"-"`

	DedupLookbackSeconds int64         `mapstructure:"dedup_lookback_seconds"`
	DedupLookback        time.Duration `mapstructure:"-"`

	ValidatorTimeoutSeconds int64         `mapstructure:"validator_timeout_seconds"`
	ValidatorTimeout        time.Duration `mapstructure:"-"`
	ValidatorMaxRetries     int           `mapstructure:"validator_max_retries"`
	MaxConcurrentChecks     int           `mapstructure:"max_concurrent_checks"`

	StorageType          string        `mapstructure:"storage_type"`
	BBoltPath            string        `mapstructure:"bbolt_path"`
	DealRetentionDays    int           `mapstructure:"deal_retention_days"`
	DealRetention        time.Duration `mapstructure:"-"`
	CleanupIntervalHours int64         `mapstructure:"cleanup_interval_hours"`
	CleanupInterval      time.Duration `mapstructure:"-"`

	DashboardAddr string `mapstructure:"dashboard_addr"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "dealwire")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("affiliate_tag", "")
	v.SetDefault("default_region", "US")
	v.SetDefault("anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("content_style", "enthusiastic")
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("announcers_file", "")
	v.SetDefault("max_deals_per_source", 5)
	v.SetDefault("post_interval_seconds", int64((6*time.Minute)/time.Second))
	v.SetDefault("item_delay_seconds", 2)
	v.SetDefault("dedup_lookback_seconds", int64((2*time.Hour)/time.Second))
	v.SetDefault("validator_timeout_seconds", 15)
	v.SetDefault("validator_max_retries", 2)
	v.SetDefault("max_concurrent_checks", 10)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/deals.db")
	v.SetDefault("deal_retention_days", 30)
	v.SetDefault("cleanup_interval_hours", 12)
	v.SetDefault("dashboard_addr", ":5000")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.PostIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid post_interval_seconds (must be positive)")
	}
	if cfg.ItemDelaySeconds < 0 {
		return nil, fmt.Errorf("invalid item_delay_seconds (must not be negative)")
	}
	if cfg.DedupLookbackSeconds <= 0 {
		return nil, fmt.Errorf("invalid dedup_lookback_seconds (must be positive)")
	}
	if cfg.ValidatorTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid validator_timeout_seconds (must be positive)")
	}
	if cfg.MaxConcurrentChecks <= 0 {
		return nil, fmt.Errorf("invalid max_concurrent_checks (must be positive)")
	}
	if cfg.DealRetentionDays <= 0 {
		return nil, fmt.Errorf("invalid deal_retention_days (must be positive)")
	}
	if cfg.CleanupIntervalHours <= 0 {
		return nil, fmt.Errorf("invalid cleanup_interval_hours (must be positive)")
	}

	cfg.PostInterval = time.Duration(cfg.PostIntervalSeconds) * time.Second
	cfg.ItemDelay = time.Duration(cfg.ItemDelaySeconds) * time.Second
	cfg.DedupLookback = time.Duration(cfg.DedupLookbackSeconds) * time.Second
	cfg.ValidatorTimeout = time.Duration(cfg.ValidatorTimeoutSeconds) * time.Second
	cfg.DealRetention = time.Duration(cfg.DealRetentionDays) * 24 * time.Hour
	cfg.CleanupInterval = time.Duration(cfg.CleanupIntervalHours) * time.Hour

	return &cfg, nil
}

// BotConfigured reports whether the Telegram channel client can be built.
func (c *Config) BotConfigured() bool {
	return c.TelegramBotToken != "" && c.TelegramChannel != ""
}

// ContentConfigured reports whether the AI copywriter backend can be built.
func (c *Config) ContentConfigured() bool {
	return c.AnthropicAPIKey != ""
}
