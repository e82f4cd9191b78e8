package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Supported generation providers.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// MailboxConfig holds the IMAP session settings and the poll/backoff policy.
type MailboxConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// Password is normally resolved from the keyring; a value here
	// (or UNIHELPER_MAILBOX_PASSWORD) takes precedence.
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`

	PollIntervalSec        int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	RetryDelaySec          int `mapstructure:"retry_delay_sec" yaml:"retry_delay_sec"`
	MaxRetryDelaySec       int `mapstructure:"max_retry_delay_sec" yaml:"max_retry_delay_sec"`
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
}

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	TLS  bool   `mapstructure:"tls" yaml:"tls"`
}

// LocalModelConfig points at a locally running llama.cpp compatible server.
type LocalModelConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Threads  int    `mapstructure:"threads" yaml:"threads"`
}

// AIConfig holds settings for the generation backend.
type AIConfig struct {
	Provider    string           `mapstructure:"provider" yaml:"provider"`
	Model       string           `mapstructure:"model" yaml:"model"`
	MaxTokens   int              `mapstructure:"max_tokens" yaml:"max_tokens"`
	JSONRetries int              `mapstructure:"json_retries" yaml:"json_retries"`
	APIKey      string           `mapstructure:"api_key" yaml:"api_key,omitempty"`
	TimeoutSec  int              `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	Local       LocalModelConfig `mapstructure:"local" yaml:"local"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AttachmentsConfig locates the directory attachments are written to.
type AttachmentsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// NotesConfig locates the folder formatted note files are written to.
// An empty Dir turns the formatted copies off.
type NotesConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ReminderConfig controls the daily assignment reminder job.
type ReminderConfig struct {
	// Time is the daily check time in HH:MM (UTC).
	Time        string `mapstructure:"time" yaml:"time"`
	HoursBefore int    `mapstructure:"hours_before" yaml:"hours_before"`
}

// QueueConfig controls the processing queue.
type QueueConfig struct {
	StopTimeoutSec int `mapstructure:"stop_timeout_sec" yaml:"stop_timeout_sec"`
	PollTimeoutMs  int `mapstructure:"poll_timeout_ms" yaml:"poll_timeout_ms"`
}

// HTTPConfig controls the status server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	LogLevel    string            `mapstructure:"log_level" yaml:"log_level"`
	Mailbox     MailboxConfig     `mapstructure:"mailbox" yaml:"mailbox"`
	SMTP        SMTPConfig        `mapstructure:"smtp" yaml:"smtp"`
	AI          AIConfig          `mapstructure:"ai" yaml:"ai"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Attachments AttachmentsConfig `mapstructure:"attachments" yaml:"attachments"`
	Notes       NotesConfig       `mapstructure:"notes" yaml:"notes"`
	Reminders   ReminderConfig    `mapstructure:"reminders" yaml:"reminders"`
	Queue       QueueConfig       `mapstructure:"queue" yaml:"queue"`
	HTTP        HTTPConfig        `mapstructure:"http" yaml:"http"`
}

// PollInterval returns the mailbox poll interval.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Mailbox.PollIntervalSec) * time.Second
}

// StopTimeout returns how long shutdown waits for the queue consumer.
func (c *AppConfig) StopTimeout() time.Duration {
	return time.Duration(c.Queue.StopTimeoutSec) * time.Second
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/unihelper/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "unihelper", "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		LogLevel: "info",
		Mailbox: MailboxConfig{
			Host:                   "imap.gmail.com",
			Port:                   "993",
			TLS:                    true,
			PollIntervalSec:        60,
			RetryDelaySec:          5,
			MaxRetryDelaySec:       60,
			MaxConsecutiveFailures: 5,
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: "587",
		},
		AI: AIConfig{
			Provider:    ProviderClaude,
			MaxTokens:   1024,
			JSONRetries: 2,
			TimeoutSec:  120,
			Local: LocalModelConfig{
				Endpoint: "http://127.0.0.1:8081",
				Threads:  4,
			},
		},
		Database:    DatabaseConfig{Path: "./data/unihelper.db"},
		Attachments: AttachmentsConfig{Dir: "./data/attachments"},
		Notes:       NotesConfig{Dir: "./data/notes"},
		Reminders: ReminderConfig{
			Time:        "09:00",
			HoursBefore: 24,
		},
		Queue: QueueConfig{
			StopTimeoutSec: 30,
			PollTimeoutMs:  1000,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("mailbox.host", d.Mailbox.Host)
	v.SetDefault("mailbox.port", d.Mailbox.Port)
	v.SetDefault("mailbox.username", "")
	v.SetDefault("mailbox.password", "")
	v.SetDefault("mailbox.tls", d.Mailbox.TLS)
	v.SetDefault("mailbox.poll_interval_sec", d.Mailbox.PollIntervalSec)
	v.SetDefault("mailbox.retry_delay_sec", d.Mailbox.RetryDelaySec)
	v.SetDefault("mailbox.max_retry_delay_sec", d.Mailbox.MaxRetryDelaySec)
	v.SetDefault("mailbox.max_consecutive_failures", d.Mailbox.MaxConsecutiveFailures)
	v.SetDefault("smtp.host", d.SMTP.Host)
	v.SetDefault("smtp.port", d.SMTP.Port)
	v.SetDefault("smtp.tls", d.SMTP.TLS)
	v.SetDefault("ai.provider", d.AI.Provider)
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.max_tokens", d.AI.MaxTokens)
	v.SetDefault("ai.json_retries", d.AI.JSONRetries)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.timeout_sec", d.AI.TimeoutSec)
	v.SetDefault("ai.local.endpoint", d.AI.Local.Endpoint)
	v.SetDefault("ai.local.threads", d.AI.Local.Threads)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("attachments.dir", d.Attachments.Dir)
	v.SetDefault("notes.dir", d.Notes.Dir)
	v.SetDefault("reminders.time", d.Reminders.Time)
	v.SetDefault("reminders.hours_before", d.Reminders.HoursBefore)
	v.SetDefault("queue.stop_timeout_sec", d.Queue.StopTimeoutSec)
	v.SetDefault("queue.poll_timeout_ms", d.Queue.PollTimeoutMs)
	v.SetDefault("http.addr", d.HTTP.Addr)
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// overlaying UNIHELPER_* environment variables. If the file does not exist,
// defaults plus environment are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("unihelper")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults double as the key registry AutomaticEnv needs for Unmarshal.
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. Secrets are never written.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	out := *cfg
	out.Mailbox.Password = ""
	out.AI.APIKey = ""

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("log_level", out.LogLevel)
	v.Set("mailbox", out.Mailbox)
	v.Set("smtp", out.SMTP)
	v.Set("ai", out.AI)
	v.Set("database", out.Database)
	v.Set("attachments", out.Attachments)
	v.Set("notes", out.Notes)
	v.Set("reminders", out.Reminders)
	v.Set("queue", out.Queue)
	v.Set("http", out.HTTP)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Validate reports every configuration problem found. Secrets are expected
// to have been resolved into the config before this is called.
func (c *AppConfig) Validate() []error {
	var errs []error

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Mailbox.Username == "" {
		errs = append(errs, errors.New("mailbox.username is not set"))
	}
	if c.Mailbox.Password == "" {
		errs = append(errs, errors.New("mailbox password is not set"))
	}

	switch c.AI.Provider {
	case ProviderClaude, ProviderOpenAI:
		if c.AI.APIKey == "" {
			errs = append(errs, fmt.Errorf(
				"API key is not set (ai.provider is %q)", c.AI.Provider,
			))
		}
	case ProviderLocal:
		if c.AI.Local.Endpoint == "" {
			errs = append(errs, errors.New(
				"ai.local.endpoint is not set (ai.provider is \"local\")",
			))
		}
	default:
		errs = append(errs, fmt.Errorf(
			"ai.provider must be 'claude', 'openai', or 'local', got %q",
			c.AI.Provider,
		))
	}

	if _, _, err := ParseClock(c.Reminders.Time); err != nil {
		errs = append(errs, fmt.Errorf("reminders.time: %w", err))
	}
	if c.Mailbox.PollIntervalSec <= 0 {
		errs = append(errs, errors.New("mailbox.poll_interval_sec must be positive"))
	}

	return errs
}

// ParseLogLevel maps a log_level value to a zerolog level. An empty
// value means info.
func ParseLogLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("%q is not one of debug, info, warn, error", s)
}

// ParseClock parses an HH:MM time of day.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}
