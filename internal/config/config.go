package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Export     ExportConfig     `mapstructure:"export"`
}

// TelegramConfig holds bot transport configuration
type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	PollTimeout int    `mapstructure:"poll_timeout"`
}

// CatalogConfig holds catalog upstream configuration
type CatalogConfig struct {
	TreeURL     string `mapstructure:"tree_url"`
	ProductsURL string `mapstructure:"products_url"`
	UserAgent   string `mapstructure:"user_agent"`
	Timeout     int    `mapstructure:"timeout"`
}

func (c CatalogConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// EnrichmentConfig holds keyword-clustering service configuration
type EnrichmentConfig struct {
	URL          string `mapstructure:"url"`
	Timeout      int    `mapstructure:"timeout"`
	MaxAttempts  int    `mapstructure:"max_attempts"`
	RetryDelayMs int    `mapstructure:"retry_delay_ms"`
}

func (c EnrichmentConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c EnrichmentConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// QueueConfig holds the shared request-queue policy
type QueueConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
	SpacingMs     int `mapstructure:"spacing_ms"`
}

func (c QueueConfig) Spacing() time.Duration {
	return time.Duration(c.SpacingMs) * time.Millisecond
}

// ScraperConfig holds the page-scrape retry and pacing policy. The defaults
// are the production values; tests shorten them.
type ScraperConfig struct {
	MaxAttempts     int `mapstructure:"max_attempts"`
	RateLimitWaitMs int `mapstructure:"rate_limit_wait_ms"`
	PageDelayMs     int `mapstructure:"page_delay_ms"`
	LongPageDelayMs int `mapstructure:"long_page_delay_ms"`
	LongDelayEvery  int `mapstructure:"long_delay_every"`
	MaxPages        int `mapstructure:"max_pages"`
}

func (c ScraperConfig) RateLimitWait() time.Duration {
	return time.Duration(c.RateLimitWaitMs) * time.Millisecond
}

func (c ScraperConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMs) * time.Millisecond
}

func (c ScraperConfig) LongPageDelay() time.Duration {
	return time.Duration(c.LongPageDelayMs) * time.Millisecond
}

// ExportConfig holds report output configuration
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config.yaml file not found in current directory")
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("telegram.token", "")
	viper.SetDefault("telegram.poll_timeout", 30)

	viper.SetDefault("catalog.tree_url", "https://static-basket-01.wbbasket.ru/vol0/data/main-menu-ru-ru-v3.json")
	viper.SetDefault("catalog.products_url", "https://catalog.wb.ru")
	viper.SetDefault("catalog.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	viper.SetDefault("catalog.timeout", 30)

	viper.SetDefault("enrichment.url", "")
	viper.SetDefault("enrichment.timeout", 30)
	viper.SetDefault("enrichment.max_attempts", 3)
	viper.SetDefault("enrichment.retry_delay_ms", 2000)

	viper.SetDefault("queue.max_concurrent", 2)
	viper.SetDefault("queue.spacing_ms", 2000)

	viper.SetDefault("scraper.max_attempts", 6)
	viper.SetDefault("scraper.rate_limit_wait_ms", 30000)
	viper.SetDefault("scraper.page_delay_ms", 2000)
	viper.SetDefault("scraper.long_page_delay_ms", 10000)
	viper.SetDefault("scraper.long_delay_every", 10)
	viper.SetDefault("scraper.max_pages", 50)

	viper.SetDefault("export.dir", "./reports")
}
