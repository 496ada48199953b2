// Package config provides configuration management for the server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	TransportStdio    = "stdio"
	TransportTelegram = "telegram"
)

// Config holds all application configuration. It is built once by Load and
// treated as read-only afterwards.
type Config struct {
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	MaxTextLength     int    `yaml:"max_text_length"`
	WorkflowTimeoutMS int    `yaml:"workflow_timeout_ms"`
	PollIntervalMS    int    `yaml:"poll_interval_ms"`
	MaxRetries        int    `yaml:"max_retries"`
	RetryBaseDelayMS  int    `yaml:"retry_base_delay_ms"`
	HTTPTimeoutMS     int    `yaml:"http_timeout_ms"`
	ShutdownGraceMS   int    `yaml:"shutdown_grace_ms"`
	Debug             bool   `yaml:"debug"`
	Transport         string `yaml:"transport"`

	DefaultDialect    string `yaml:"default_dialect"`
	DefaultTone       string `yaml:"default_tone"`
	DefaultStyleGuide string `yaml:"default_style_guide"`

	TelegramToken string `yaml:"telegram_token"`
	OllamaURL     string `yaml:"ollama_url"`
	OllamaModel   string `yaml:"ollama_model"`
}

// Defaults returns the baseline configuration without an API key.
func Defaults() Config {
	return Config{
		BaseURL:           "https://api.markup.ai/v1/style",
		MaxTextLength:     100000,
		WorkflowTimeoutMS: 60000,
		PollIntervalMS:    2000,
		MaxRetries:        3,
		RetryBaseDelayMS:  1000,
		HTTPTimeoutMS:     30000,
		ShutdownGraceMS:   10000,
		Transport:         TransportStdio,
		DefaultDialect:    "american_english",
		DefaultTone:       "formal",
		DefaultStyleGuide: "microsoft",
		OllamaURL:         "http://localhost:11434/api/chat",
		OllamaModel:       "qwen3-coder:30b",
	}
}

// Load reads a .env file if present, overlays the YAML file named by
// NEXTGEN_CONFIG_FILE, then applies environment variables. The result is
// validated before it is returned.
func Load() (*Config, error) {
	// A missing .env is normal; the process environment wins over it.
	_ = godotenv.Load()

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("NEXTGEN_CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	// Decoding into the populated struct keeps defaults for absent keys.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}

	str("NEXTGEN_API_KEY", &c.APIKey)
	str("NEXTGEN_BASE_URL", &c.BaseURL)
	num("NEXTGEN_MAX_TEXT_LENGTH", &c.MaxTextLength)
	num("NEXTGEN_WORKFLOW_TIMEOUT_MS", &c.WorkflowTimeoutMS)
	num("NEXTGEN_POLL_INTERVAL_MS", &c.PollIntervalMS)
	num("NEXTGEN_MAX_RETRIES", &c.MaxRetries)
	num("NEXTGEN_RETRY_BASE_DELAY_MS", &c.RetryBaseDelayMS)
	num("NEXTGEN_HTTP_TIMEOUT_MS", &c.HTTPTimeoutMS)
	num("NEXTGEN_SHUTDOWN_GRACE_MS", &c.ShutdownGraceMS)
	if v, ok := lookup("NEXTGEN_DEBUG"); ok && strings.TrimSpace(v) != "" {
		c.Debug = ParseBool(v)
	}
	str("NEXTGEN_TRANSPORT", &c.Transport)
	str("NEXTGEN_DEFAULT_DIALECT", &c.DefaultDialect)
	str("NEXTGEN_DEFAULT_TONE", &c.DefaultTone)
	str("NEXTGEN_DEFAULT_STYLE_GUIDE", &c.DefaultStyleGuide)
	str("TELEGRAM_BOT_TOKEN", &c.TelegramToken)
	str("OLLAMA_URL", &c.OllamaURL)
	str("OLLAMA_MODEL", &c.OllamaModel)

	return errors.Join(errs...)
}

// Validate reports every problem that prevents startup.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIKey) == "" {
		errs = append(errs, errors.New("NEXTGEN_API_KEY environment variable is required"))
	}
	for _, opt := range []struct {
		key   string
		value int
	}{
		{"max_text_length", c.MaxTextLength},
		{"workflow_timeout_ms", c.WorkflowTimeoutMS},
		{"poll_interval_ms", c.PollIntervalMS},
		{"max_retries", c.MaxRetries},
		{"http_timeout_ms", c.HTTPTimeoutMS},
	} {
		if opt.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", opt.key, opt.value))
		}
	}
	if c.RetryBaseDelayMS < 0 {
		errs = append(errs, fmt.Errorf("retry_base_delay_ms must not be negative, got %d", c.RetryBaseDelayMS))
	}
	switch c.Transport {
	case TransportStdio:
	case TransportTelegram:
		if c.TelegramToken == "" {
			errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required for the telegram transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	return errors.Join(errs...)
}

func (c *Config) WorkflowTimeout() time.Duration {
	return time.Duration(c.WorkflowTimeoutMS) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceMS) * time.Millisecond
}

// ParseBool accepts the usual truthy spellings; anything else is false.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}
