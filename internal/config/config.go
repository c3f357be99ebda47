package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Identity   IdentityConfig   `yaml:"identity"`
	Source     SourceConfig     `yaml:"source"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Report     ReportConfig     `yaml:"report"`
	Publish    PublishConfig    `yaml:"publish"`
	Storage    StorageConfig    `yaml:"storage"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	LogLevel   string           `yaml:"log_level"`
}

type IdentityConfig struct {
	KeyFile string `yaml:"key_file"`
}

type SourceConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Lookback time.Duration `yaml:"lookback"`
	Timeout  time.Duration `yaml:"timeout"`
	Retry    RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type SummarizerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

type ReportConfig struct {
	Heading   string `yaml:"heading"`
	SourceURL string `yaml:"source_url"`
}

type PublishConfig struct {
	Relays     []string      `yaml:"relays"`
	MinAcks    int           `yaml:"min_acks"`
	AckTimeout time.Duration `yaml:"ack_timeout"`
	Deadline   time.Duration `yaml:"deadline"`
	Retry      RetryConfig   `yaml:"retry"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)

	// An empty file means "all defaults"; the decoder reports it as EOF.
	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Identity.KeyFile == "" {
		c.Identity.KeyFile = "nstr_report.key"
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = "https://bnoc.xyz"
	}
	if c.Source.Lookback == 0 {
		c.Source.Lookback = 24 * time.Hour
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 30 * time.Second
	}
	c.Source.Retry.setDefaults()
	if c.Summarizer.BaseURL == "" {
		c.Summarizer.BaseURL = "https://api.anthropic.com"
	}
	if c.Summarizer.Model == "" {
		c.Summarizer.Model = "claude-sonnet-4-20250514"
	}
	if c.Summarizer.MaxTokens == 0 {
		c.Summarizer.MaxTokens = 600
	}
	if c.Summarizer.Timeout == 0 {
		c.Summarizer.Timeout = 60 * time.Second
	}
	if c.Report.Heading == "" {
		c.Report.Heading = "BNOC Daily Summary"
	}
	if c.Report.SourceURL == "" {
		c.Report.SourceURL = c.Source.BaseURL
	}
	if len(c.Publish.Relays) == 0 {
		c.Publish.Relays = []string{
			"wss://relay.damus.io",
			"wss://relay.primal.net",
			"wss://nos.lol",
			"wss://relay.bitcoindistrict.org",
		}
	}
	if c.Publish.MinAcks == 0 {
		c.Publish.MinAcks = 1
	}
	if c.Publish.AckTimeout == 0 {
		c.Publish.AckTimeout = 10 * time.Second
	}
	if c.Publish.Deadline == 0 {
		c.Publish.Deadline = 2 * time.Minute
	}
	c.Publish.Retry.setDefaults()
	if c.Storage.Path == "" {
		c.Storage.Path = "nstr_report.db"
	}
	if c.Schedule.Interval == 0 {
		c.Schedule.Interval = 24 * time.Hour
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (r *RetryConfig) setDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 3
	}
	if r.InitialBackoff == 0 {
		r.InitialBackoff = 1 * time.Second
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = 30 * time.Second
	}
}

func (c *Config) Validate() error {
	if len(c.Publish.Relays) == 0 {
		return fmt.Errorf("publish: at least one relay required")
	}
	for _, relay := range c.Publish.Relays {
		if !strings.HasPrefix(relay, "ws://") && !strings.HasPrefix(relay, "wss://") {
			return fmt.Errorf("publish: relay %q must be a ws:// or wss:// URL", relay)
		}
	}
	if c.Publish.MinAcks < 1 {
		return fmt.Errorf("publish: min_acks must be at least 1, got %d", c.Publish.MinAcks)
	}
	if c.Publish.MinAcks > len(c.Publish.Relays) {
		return fmt.Errorf("publish: min_acks %d exceeds relay count %d", c.Publish.MinAcks, len(c.Publish.Relays))
	}
	if c.Source.Lookback < 0 {
		return fmt.Errorf("source: lookback must be positive, got %s", c.Source.Lookback)
	}
	if c.Summarizer.Enabled && c.Summarizer.APIKey == "" {
		return fmt.Errorf("summarizer: api_key required when enabled")
	}
	return nil
}
