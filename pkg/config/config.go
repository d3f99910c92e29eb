// Package config loads taskmate settings from YAML files and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	apperrors "github.com/odvcencio/taskmate/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g.
// TASKMATE_SERVER_ADDR or TASKMATE_PENDING_TTL.
const EnvPrefix = "TASKMATE"

// DirName is the per-user and per-project config directory.
const DirName = ".taskmate"

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Model     ModelConfig     `yaml:"model"`
	Pending   PendingConfig   `yaml:"pending"`
	Chat      ChatConfig      `yaml:"chat"`
	Parser    ParserConfig    `yaml:"parser"`
	Storage   StorageConfig   `yaml:"storage"`
	Bus       BusConfig       `yaml:"bus"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr            string          `yaml:"addr" split_words:"true"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" split_words:"true"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes" split_words:"true"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" split_words:"true"`
}

// RateLimitConfig bounds requests per authenticated user.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" split_words:"true"`
	Burst             int     `yaml:"burst" split_words:"true"`
}

type AuthConfig struct {
	// Secret signs HS256 bearer tokens.
	Secret   string        `yaml:"secret" split_words:"true"`
	Issuer   string        `yaml:"issuer" split_words:"true"`
	TokenTTL time.Duration `yaml:"token_ttl" split_words:"true"`
}

type ModelConfig struct {
	Provider        string        `yaml:"provider" split_words:"true"`
	APIKey          string        `yaml:"api_key" split_words:"true"`
	Name            string        `yaml:"name" split_words:"true"`
	BaseURL         string        `yaml:"base_url" split_words:"true"`
	Temperature     float32       `yaml:"temperature" split_words:"true"`
	MaxOutputTokens int32         `yaml:"max_output_tokens" split_words:"true"`
	Timeout         time.Duration `yaml:"timeout" split_words:"true"`

	RequestsPerSecond   float64       `yaml:"requests_per_second" split_words:"true"`
	Burst               int           `yaml:"burst" split_words:"true"`
	BreakerMaxFailures  int           `yaml:"breaker_max_failures" split_words:"true"`
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout" split_words:"true"`
}

type PendingConfig struct {
	TTL           time.Duration `yaml:"ttl" split_words:"true"`
	SweepInterval time.Duration `yaml:"sweep_interval" split_words:"true"`
}

type ChatConfig struct {
	// ConfirmThreshold is the minimum confidence that executes a batch.
	ConfirmThreshold float64 `yaml:"confirm_threshold" split_words:"true"`
	// MaxDestructive is the largest number of deletes confirmable without
	// typing DestructiveToken.
	MaxDestructive   int    `yaml:"max_destructive" split_words:"true"`
	DestructiveToken string `yaml:"destructive_token" split_words:"true"`
	MaxHistory       int    `yaml:"max_history" split_words:"true"`
	MaxContextItems  int    `yaml:"max_context_items" split_words:"true"`
	Timezone         string `yaml:"timezone" split_words:"true"`
}

type ParserConfig struct {
	// Repair runs malformed action JSON through jsonrepair before giving up.
	Repair bool `yaml:"repair" split_words:"true"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" split_words:"true"` // sqlite or postgres
	DSN    string `yaml:"dsn" split_words:"true"`
}

type BusConfig struct {
	// URL of a NATS server. Empty keeps events in-process.
	URL     string        `yaml:"url" split_words:"true"`
	Name    string        `yaml:"name" split_words:"true"`
	Prefix  string        `yaml:"prefix" split_words:"true"`
	Timeout time.Duration `yaml:"timeout" split_words:"true"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"` // json or console
}

type TelemetryConfig struct {
	Metrics bool `yaml:"metrics" split_words:"true"`
	Tracing bool `yaml:"tracing" split_words:"true"`
	// TraceFile receives exported spans; empty means stderr.
	TraceFile string `yaml:"trace_file" split_words:"true"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
			RateLimit:       RateLimitConfig{RequestsPerSecond: 2, Burst: 10},
		},
		Auth: AuthConfig{
			Issuer:   "taskmate",
			TokenTTL: 24 * time.Hour,
		},
		Model: ModelConfig{
			Provider:            "gemini",
			Name:                "gemini-2.5-flash",
			Temperature:         0.7,
			MaxOutputTokens:     2048,
			Timeout:             30 * time.Second,
			RequestsPerSecond:   5,
			Burst:               5,
			BreakerMaxFailures:  5,
			BreakerResetTimeout: 30 * time.Second,
		},
		Pending: PendingConfig{
			TTL:           5 * time.Minute,
			SweepInterval: time.Minute,
		},
		Chat: ChatConfig{
			ConfirmThreshold: 0.8,
			MaxDestructive:   5,
			DestructiveToken: "DELETE",
			MaxHistory:       10,
			MaxContextItems:  25,
		},
		Parser: ParserConfig{Repair: true},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    filepath.Join("~", DirName, "taskmate.db"),
		},
		Bus: BusConfig{
			Name:    "taskmate",
			Prefix:  "taskmate",
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{Metrics: true},
	}
}

// Load reads defaults, then ~/.taskmate/config.yaml, then
// ./.taskmate/config.yaml, then the environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		if err := loadAndMerge(cfg, filepath.Join(home, DirName, "config.yaml")); err != nil && !os.IsNotExist(err) {
			return nil, loadError(err, "user config")
		}
	}
	if err := loadAndMerge(cfg, filepath.Join(".", DirName, "config.yaml")); err != nil && !os.IsNotExist(err) {
		return nil, loadError(err, "project config")
	}

	return finish(cfg)
}

// LoadFromPath reads defaults, then path, then the environment. A missing
// file is an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadAndMerge(cfg, path); err != nil {
		return nil, loadError(err, path)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Storage.DSN = expandHome(cfg.Storage.DSN)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAndMerge overlays the keys present in the YAML file onto cfg.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays TASKMATE_* variables, then falls back to
// GEMINI_API_KEY and GOOGLE_API_KEY when no model key is configured.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "invalid environment override").
			WithRemediation("check TASKMATE_* variables")
	}
	if cfg.Model.APIKey == "" {
		for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				cfg.Model.APIKey = v
				break
			}
		}
	}
	return nil
}

func loadError(err error, source string) error {
	return apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "failed to load configuration").
		WithContext("source", source)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
