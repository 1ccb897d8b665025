// Package config manages application configuration from environment variables,
// config files, and default values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/edgard/langcoach/internal/errs"
)

const envPrefix = "LANGCOACH"

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadOption adjusts the configuration after all sources are read.
type LoadOption func(v *viper.Viper)

// WithBotToken forces the bot token, overriding every source. Local mode
// uses it with PlaceholderBotToken.
func WithBotToken(token string) LoadOption {
	return func(v *viper.Viper) {
		v.Set("telegram.bot_token", token)
	}
}

// Load reads configuration in this order of precedence: environment, the
// config file, defaults. A .env file in the working directory is loaded into
// the environment first without overriding variables that are already set.
//
// An empty path searches for an optional config.yaml in the working directory;
// a non-empty path must exist.
func Load(path string, opts ...LoadOption) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.NewConfigurationError("failed to load .env file", err)
	}

	v := newViper(true)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errs.NewConfigurationError("failed to read config file", err)
		}
		slog.Debug("No config file found, using defaults and environment")
	}

	for _, opt := range opts {
		opt(v)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.NewConfigurationError("failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("Configuration loaded",
		"config_file", v.ConfigFileUsed(),
		"llm_provider", cfg.LLM.Provider,
		"telegram_mode", cfg.Telegram.Mode,
		"widget_listen", cfg.Widget.Listen,
		"db_path", cfg.Database.Path)

	return cfg, nil
}

// Default returns a configuration populated with default values only.
// The bot token is left empty, so the result does not validate on its own.
func Default() *Config {
	cfg := &Config{}
	if err := newViper(false).Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Validate checks the configuration and returns a ConfigurationError
// describing the first problem found.
func (c *Config) Validate() error {
	if c == nil {
		return errs.NewConfigurationError("configuration is missing", nil)
	}
	if strings.TrimSpace(c.Telegram.BotToken.Reveal()) == "" {
		return errs.NewConfigurationError("telegram.bot_token is required", nil)
	}
	if err := validate.Struct(c); err != nil {
		return errs.NewConfigurationError("invalid configuration", err)
	}
	if c.Telegram.Mode == ModeWebhook {
		if c.Telegram.WebhookURL == "" {
			return errs.NewConfigurationError("telegram.webhook_url is required in webhook mode", nil)
		}
		if c.Telegram.WebhookListen == "" {
			return errs.NewConfigurationError("telegram.webhook_listen is required in webhook mode", nil)
		}
	}
	for name, task := range c.Scheduler.Tasks {
		if task.Enabled && strings.TrimSpace(task.Schedule) == "" {
			return errs.NewConfigurationError(fmt.Sprintf("scheduler.tasks.%s.schedule is required when enabled", name), nil)
		}
	}
	return nil
}

func newViper(withEnv bool) *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if !withEnv {
		return v
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("telegram.bot_token", envPrefix+"_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")

	return v
}
