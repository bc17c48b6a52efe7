// Package config loads the run configuration from the environment and the
// line-oriented input files (feeds, keywords, topics, recipients).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	ModeTopic  = "topic"
	ModeSource = "source"
)

type Config struct {
	// Telegram settings
	TelegramToken    string
	TelegramChatID   string
	TelegramAPIURL   string
	DeliveryAttempts int           // attempts per (recipient, part); 1 = single call
	SendInterval     time.Duration // pause between parts sent to the same recipient

	// Optional enrichers
	NewsAPIKey   string
	GeminiAPIKey string
	GeminiModel  string

	// Input files
	FeedsPath      string
	KeywordsPath   string
	TopicsPath     string
	RecipientsPath string

	// Pipeline settings
	Lookback      time.Duration
	MaxPerFeed    int // 0 = unlimited
	MaxPerSection int // 0 = unlimited
	TitleBudget   int
	DigestMode    string // "topic" or "source"
	SoftLimit     int    // chunk threshold, leaves headroom under HardLimit
	HardLimit     int    // platform message limit
	FeedTimeout   time.Duration
	FetchWorkers  int

	// App settings
	Debug  bool
	DryRun bool
}

// Load reads the environment on top of defaults. Missing Telegram credentials are
// not an error here: only delivery depends on them.
func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		TelegramAPIURL:   "https://api.telegram.org",
		DeliveryAttempts: 1,
		SendInterval:     time.Second,
		GeminiModel:      "gemini-1.5-flash",
		FeedsPath:        "feeds.txt",
		KeywordsPath:     "keywords.txt",
		TopicsPath:       "topics.txt",
		RecipientsPath:   "recipients.txt",
		Lookback:         24 * time.Hour,
		MaxPerFeed:       10,
		MaxPerSection:    0,
		TitleBudget:      75,
		DigestMode:       ModeTopic,
		SoftLimit:        3800,
		HardLimit:        4096,
		FeedTimeout:      10 * time.Second,
		FetchWorkers:     4,
	}

	// Load from environment
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if cfg.TelegramToken == "" {
		cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	}
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")
	cfg.NewsAPIKey = os.Getenv("NEWS_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	cfg.TelegramAPIURL = getEnvOrDefault("TELEGRAM_API_URL", cfg.TelegramAPIURL)
	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", cfg.GeminiModel)

	cfg.FeedsPath = getEnvOrDefault("FEEDS_FILE", cfg.FeedsPath)
	cfg.KeywordsPath = getEnvOrDefault("KEYWORDS_FILE", cfg.KeywordsPath)
	cfg.TopicsPath = getEnvOrDefault("TOPICS_FILE", cfg.TopicsPath)
	cfg.RecipientsPath = getEnvOrDefault("RECIPIENTS_FILE", cfg.RecipientsPath)

	if v := os.Getenv("LOOKBACK_HOURS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.Lookback = time.Duration(val) * time.Hour
		}
	}
	if v := os.Getenv("MAX_PER_FEED"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= 0 {
			cfg.MaxPerFeed = val
		}
	}
	if v := os.Getenv("MAX_PER_SECTION"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= 0 {
			cfg.MaxPerSection = val
		}
	}
	if v := os.Getenv("TITLE_BUDGET"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 3 {
			cfg.TitleBudget = val
		}
	}
	if mode := os.Getenv("DIGEST_MODE"); mode != "" {
		cfg.DigestMode = mode
	}

	cfg.SoftLimit = getEnvIntOrDefault("MESSAGE_SOFT_LIMIT", cfg.SoftLimit)
	cfg.FetchWorkers = getEnvIntOrDefault("FETCH_WORKERS", cfg.FetchWorkers)
	cfg.DeliveryAttempts = getEnvIntOrDefault("DELIVERY_ATTEMPTS", cfg.DeliveryAttempts)
	cfg.FeedTimeout = getEnvDurationOrDefault("FEED_TIMEOUT", cfg.FeedTimeout)
	cfg.SendInterval = getEnvDurationOrDefault("SEND_INTERVAL", cfg.SendInterval)

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}
	if dry := os.Getenv("DRY_RUN"); dry == "true" {
		cfg.DryRun = true
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("10s") or bare seconds ("10").
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.DigestMode != ModeTopic && c.DigestMode != ModeSource {
		return fmt.Errorf("DIGEST_MODE must be '%s' or '%s'", ModeTopic, ModeSource)
	}
	if c.HardLimit <= 0 || c.SoftLimit <= 0 || c.SoftLimit > c.HardLimit {
		return fmt.Errorf("MESSAGE_SOFT_LIMIT must be in (0, %d]", c.HardLimit)
	}
	if c.FetchWorkers <= 0 {
		return fmt.Errorf("FETCH_WORKERS must be positive")
	}
	if c.DeliveryAttempts <= 0 {
		return fmt.Errorf("DELIVERY_ATTEMPTS must be positive")
	}
	if c.FeedTimeout <= 0 {
		return fmt.Errorf("FEED_TIMEOUT must be positive")
	}
	return nil
}
