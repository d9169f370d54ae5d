package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mixelka/mailarchive/internal/query"
)

// Config application configuration
type Config struct {
	// Storage
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"./data/mailarchive.db"`
	AttachmentsDir string `env:"ATTACHMENTS_DIR" envDefault:"./data/attachments"`

	// IMAP
	IMAPServer      string        `env:"IMAP_SERVER"` // derived from IMAP_USERNAME when empty
	IMAPUsername    string        `env:"IMAP_USERNAME"`
	IMAPPassword    string        `env:"IMAP_PASSWORD"`
	IMAPMailbox     string        `env:"IMAP_MAILBOX" envDefault:"INBOX"`
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`

	// Fetching
	FetchLookback time.Duration `env:"FETCH_LOOKBACK" envDefault:"72h"`
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"5m"`

	// Search
	SearchFields string `env:"SEARCH_FIELDS" envDefault:"body,allheaders,comment"`
	MaxPerPage   int    `env:"MAX_PER_PAGE" envDefault:"50"`

	// Telegram notifications (optional)
	TelegramToken   string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID  int64  `env:"TELEGRAM_CHAT_ID"`
	TelegramTopicID int    `env:"TELEGRAM_TOPIC_ID"`

	// Metrics listen address for watch, e.g. :9090
	MetricsAddr string `env:"METRICS_ADDR"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"

	searchFields []query.Field
}

// TelegramEnabled returns true if notifications are configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// IMAPEnabled returns true if IMAP credentials are configured
func (c *Config) IMAPEnabled() bool {
	return c.IMAPUsername != "" && c.IMAPPassword != ""
}

// Fields returns the validated default search fields
func (c *Config) Fields() []query.Field {
	return c.searchFields
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	fields, err := query.ParseFields(c.SearchFields)
	if err != nil {
		return fmt.Errorf("SEARCH_FIELDS: %w", err)
	}
	if len(fields) == 0 {
		fields = query.DefaultFields
	}
	c.searchFields = fields

	if c.MaxPerPage <= 0 {
		return fmt.Errorf("MAX_PER_PAGE must be positive, got %d", c.MaxPerPage)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.FetchLookback < 0 {
		return fmt.Errorf("FETCH_LOOKBACK must not be negative, got %s", c.FetchLookback)
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == 0) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}
