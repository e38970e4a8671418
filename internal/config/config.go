package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"` // SQLite file path
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// PipelineConfig holds article pipeline settings
type PipelineConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`   // in-flight URL evaluations per fan-out
	ContentLimit int           `mapstructure:"content_limit"` // characters sent to the LLM
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	Timezone    string `mapstructure:"timezone"`     // IANA name, empty for local time
	DefaultTime string `mapstructure:"default_time"` // used when newsletter_time is not set
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	StatusHistory int    `mapstructure:"status_history"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// ArchiveConfig holds Google Sheets newsletter archive settings
type ArchiveConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SheetName          string `mapstructure:"sheet_name"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
	AccessToken        string `mapstructure:"access_token"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".newsletter-agent"))
		}
	}

	v.SetEnvPrefix("NEWSLETTER")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("anthropic.api_key", "NEWSLETTER_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "NEWSLETTER_ANTHROPIC_MODEL")
	v.BindEnv("database.dsn", "NEWSLETTER_DATABASE_DSN")
	v.BindEnv("server.addr", "NEWSLETTER_SERVER_ADDR")
	v.BindEnv("scheduler.timezone", "NEWSLETTER_SCHEDULER_TIMEZONE")
	v.BindEnv("logging.level", "NEWSLETTER_LOGGING_LEVEL")
	v.BindEnv("archive.enabled", "NEWSLETTER_ARCHIVE_ENABLED")
	v.BindEnv("archive.spreadsheet_id", "NEWSLETTER_ARCHIVE_SPREADSHEET_ID")
	v.BindEnv("archive.credentials_file", "NEWSLETTER_ARCHIVE_CREDENTIALS_FILE")
	v.BindEnv("archive.service_account_json", "NEWSLETTER_ARCHIVE_SERVICE_ACCOUNT_JSON")
	v.BindEnv("archive.access_token", "NEWSLETTER_ARCHIVE_ACCESS_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", "./data/newsletter.db")

	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.3)

	v.SetDefault("pipeline.concurrency", 5)
	v.SetDefault("pipeline.content_limit", 4000)
	v.SetDefault("pipeline.fetch_timeout", "30s")
	v.SetDefault("pipeline.user_agent", "NewsletterAgent/1.0 (+https://github.com/newsletter-agent)")

	v.SetDefault("scheduler.timezone", "")
	v.SetDefault("scheduler.default_time", "08:00")

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.status_history", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.sheet_name", "Newsletters")
}

// Validate validates the configuration needed to call the LLM
func (c *Config) Validate() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required")
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1")
	}
	if c.Archive.Enabled && c.Archive.SpreadsheetID == "" {
		return fmt.Errorf("archive.spreadsheet_id is required when the archive is enabled")
	}
	return nil
}

// Location resolves the scheduler timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}
