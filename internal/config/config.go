// Package config builds the service configuration from defaults, an
// optional YAML file, a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wehubfusion/Ariadne/pkg/concurrency"
	"github.com/wehubfusion/Ariadne/pkg/notion"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// apiKeyPrefix prefixes the per-workspace API key variables
const apiKeyPrefix = "NOTION_API_KEY_"

// Config is the complete service configuration
type Config struct {
	Notion      NotionConfig              `yaml:"notion"`
	Gateway     concurrency.GatewayConfig `yaml:"gateway"`
	HTTP        HTTPConfig                `yaml:"http"`
	NATS        NATSConfig                `yaml:"nats"`
	Tracing     TracingConfig             `yaml:"tracing"`
	SentryDSN   string                    `yaml:"sentry_dsn"`
	Environment string                    `yaml:"environment"`
}

// NotionConfig holds the upstream API settings
type NotionConfig struct {
	// Workspaces are the selectable workspace names, the first is the default
	Workspaces []string `yaml:"workspaces"`

	// APIKeys maps upper-cased workspace names to integration keys
	APIKeys map[string]string `yaml:"api_keys"`

	// Password, when set, must accompany search requests
	Password string `yaml:"password"`

	BaseURL    string        `yaml:"base_url"`
	Version    string        `yaml:"version"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// HTTPConfig holds the HTTP listener settings
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// NATSConfig holds the worker settings. An empty URL disables the worker.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
}

// TracingConfig holds the OTLP exporter settings. An empty endpoint disables tracing.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Notion: NotionConfig{
			APIKeys:    make(map[string]string),
			BaseURL:    notion.DefaultBaseURL,
			Version:    notion.DefaultVersion,
			Timeout:    notion.DefaultTimeout,
			MaxRetries: notion.DefaultMaxRetries,
		},
		Gateway: concurrency.DefaultGatewayConfig(),
		HTTP:    HTTPConfig{Addr: ":7071"},
		NATS: NATSConfig{
			Subject: "ariadne.extract",
			Queue:   "ariadne",
		},
		Tracing: TracingConfig{
			ServiceName: "ariadne",
			SampleRatio: 1.0,
		},
		Environment: "development",
	}
}

// Load builds the configuration. Priority is environment, then the YAML
// file at path (skipped when path is empty), then defaults. A .env file in
// the working directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		if cfg.Gateway.Source == "" || cfg.Gateway.Source == concurrency.ConfigSourceDefault {
			cfg.Gateway.Source = concurrency.ConfigSourceFile
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	keys := make(map[string]string, len(c.Notion.APIKeys))
	for name, key := range c.Notion.APIKeys {
		keys[normalizeWorkspace(name)] = key
	}
	c.Notion.APIKeys = keys
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NOTION_WORKSPACES"); v != "" {
		c.Notion.Workspaces = splitList(v)
	}
	if c.Notion.APIKeys == nil {
		c.Notion.APIKeys = make(map[string]string)
	}
	for _, ws := range c.Notion.Workspaces {
		name := normalizeWorkspace(ws)
		if key := os.Getenv(apiKeyPrefix + name); key != "" {
			c.Notion.APIKeys[name] = key
		}
	}

	c.Notion.Password = getEnv("NOTION_API_PASSWORD", c.Notion.Password)
	c.Notion.BaseURL = getEnv("NOTION_BASE_URL", c.Notion.BaseURL)
	c.Notion.Version = getEnv("NOTION_VERSION", c.Notion.Version)
	c.Notion.Timeout = getEnvDuration("NOTION_HTTP_TIMEOUT", c.Notion.Timeout)
	c.Notion.MaxRetries = getEnvInt("NOTION_MAX_RETRIES", c.Notion.MaxRetries)

	c.Gateway = concurrency.LoadConfig(c.Gateway)

	c.HTTP.Addr = getEnv("ARIADNE_HTTP_ADDR", c.HTTP.Addr)
	c.NATS.URL = getEnv("ARIADNE_NATS_URL", c.NATS.URL)
	c.NATS.Subject = getEnv("ARIADNE_NATS_SUBJECT", c.NATS.Subject)
	c.NATS.Queue = getEnv("ARIADNE_NATS_QUEUE", c.NATS.Queue)
	c.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
	c.SentryDSN = getEnv("SENTRY_DSN", c.SentryDSN)
	c.Environment = getEnv("ARIADNE_ENVIRONMENT", c.Environment)
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []error
	if len(c.Notion.Workspaces) == 0 {
		errs = append(errs, errors.New("NOTION_WORKSPACES must list at least one workspace"))
	}
	for _, ws := range c.Notion.Workspaces {
		name := normalizeWorkspace(ws)
		if c.Notion.APIKeys[name] == "" {
			errs = append(errs, fmt.Errorf("workspace %q has no %s%s", ws, apiKeyPrefix, name))
		}
	}
	if c.Notion.BaseURL == "" {
		errs = append(errs, errors.New("notion base URL cannot be empty"))
	}
	if c.Notion.MaxRetries < 0 {
		errs = append(errs, errors.New("NOTION_MAX_RETRIES cannot be negative"))
	}
	return errors.Join(errs...)
}

// APIKey returns the key of a workspace, matched case-insensitively.
// An empty name selects the first configured workspace.
func (c *Config) APIKey(workspace string) (string, bool) {
	if workspace == "" {
		if len(c.Notion.Workspaces) == 0 {
			return "", false
		}
		workspace = c.Notion.Workspaces[0]
	}
	key, ok := c.Notion.APIKeys[normalizeWorkspace(workspace)]
	return key, ok && key != ""
}

// NotionClientConfig returns the client settings for one workspace key
func (c *Config) NotionClientConfig(apiKey string) notion.Config {
	return notion.Config{
		BaseURL:    c.Notion.BaseURL,
		APIKey:     apiKey,
		Version:    c.Notion.Version,
		Timeout:    c.Notion.Timeout,
		MaxRetries: c.Notion.MaxRetries,
	}
}

// normalizeWorkspace maps a workspace name to its environment key form
func normalizeWorkspace(name string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(name))
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
