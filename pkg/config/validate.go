package config

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/odvcencio/taskmate/pkg/errors"
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes must be positive")
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 || c.Server.RateLimit.Burst < 0 {
		add("server.rate_limit must not be negative")
	}
	if c.Auth.TokenTTL <= 0 {
		add("auth.token_ttl must be positive")
	}

	switch c.Model.Provider {
	case "gemini":
	default:
		add("model.provider %q is not supported", c.Model.Provider)
	}
	if c.Model.Name == "" {
		add("model.name is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		add("model.temperature must be between 0 and 2")
	}
	if c.Model.Timeout <= 0 {
		add("model.timeout must be positive")
	}

	if c.Pending.TTL <= 0 {
		add("pending.ttl must be positive")
	}
	if c.Pending.SweepInterval <= 0 {
		add("pending.sweep_interval must be positive")
	}

	if c.Chat.ConfirmThreshold <= 0 || c.Chat.ConfirmThreshold > 1 {
		add("chat.confirm_threshold must be in (0, 1]")
	}
	if c.Chat.MaxDestructive < 0 {
		add("chat.max_destructive must not be negative")
	}
	if strings.TrimSpace(c.Chat.DestructiveToken) == "" {
		add("chat.destructive_token is required")
	}
	if c.Chat.Timezone != "" {
		if _, err := time.LoadLocation(c.Chat.Timezone); err != nil {
			add("chat.timezone %q: %v", c.Chat.Timezone, err)
		}
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		add("storage.driver %q must be sqlite or postgres", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		add("storage.dsn is required")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		add("logging.format %q must be json or console", c.Logging.Format)
	}

	if len(problems) == 0 {
		return nil
	}
	return apperrors.New(apperrors.ErrCodeConfigInvalid, problems[0]).
		WithContext("problems", strings.Join(problems, "; "))
}

// RequireModelKey fails when no API key could be found.
func (c *Config) RequireModelKey() error {
	if c.Model.APIKey != "" {
		return nil
	}
	return apperrors.New(apperrors.ErrCodeConfigInvalid, "model API key is not configured").
		WithRemediation("set GEMINI_API_KEY or TASKMATE_MODEL_API_KEY")
}

// RequireAuthSecret fails when tokens can be neither issued nor verified.
func (c *Config) RequireAuthSecret() error {
	if len(c.Auth.Secret) >= 16 {
		return nil
	}
	return apperrors.New(apperrors.ErrCodeConfigInvalid, "auth secret must be at least 16 bytes").
		WithRemediation("set TASKMATE_AUTH_SECRET")
}

// Location returns the configured timezone or time.Local.
func (c *Config) Location() *time.Location {
	if c.Chat.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Chat.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
