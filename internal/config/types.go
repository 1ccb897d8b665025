package config

import (
	"log/slog"
	"time"
)

// Telegram transport modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// PlaceholderBotToken is substituted for the real token in local interactive mode.
const PlaceholderBotToken = "fake-token-for-local-testing"

// Secret is a string that never renders its value in logs or fmt output.
// Use Reveal to obtain the raw value when handing it to a client library.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// Reveal returns the raw secret value.
func (s Secret) Reveal() string {
	return string(s)
}

// Config defines the application configuration. Values can be set through
// config.yaml, a .env file, or environment variables prefixed with LANGCOACH_
// (e.g., LANGCOACH_LLM_API_KEY). The bot token is also read from TELEGRAM_BOT_TOKEN.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Widget    WidgetConfig    `mapstructure:"widget"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// LLMConfig selects and tunes the model backend. The model identifier itself
// is compiled into the persona package and is not configurable.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"     validate:"oneof=openai gemini"`
	APIKey      Secret        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"     validate:"omitempty,url"`
	Temperature float32       `mapstructure:"temperature"  validate:"min=0,max=2"`
	Timeout     time.Duration `mapstructure:"timeout"      validate:"min=1s,max=10m"`
	MaxRetries  int           `mapstructure:"max_retries"  validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"  validate:"min=0,max=1m"`
}

type TelegramConfig struct {
	BotToken           Secret           `mapstructure:"bot_token"             validate:"required"`
	Mode               string           `mapstructure:"mode"                  validate:"oneof=polling webhook"`
	WebhookURL         string           `mapstructure:"webhook_url"           validate:"omitempty,url"`
	WebhookListen      string           `mapstructure:"webhook_listen"`
	WebhookSecret      Secret           `mapstructure:"webhook_secret"`
	DropPendingUpdates bool             `mapstructure:"drop_pending_updates"`
	RateLimitPerMinute int              `mapstructure:"rate_limit_per_minute" validate:"min=0"`
	RateLimitBurst     int              `mapstructure:"rate_limit_burst"      validate:"min=0"`
	Messages           TelegramMessages `mapstructure:"messages"`
}

type TelegramMessages struct {
	Welcome     string `mapstructure:"welcome"      validate:"required"`
	Reset       string `mapstructure:"reset"        validate:"required"`
	Error       string `mapstructure:"error"        validate:"required"`
	RateLimited string `mapstructure:"rate_limited" validate:"required"`
}

type WidgetConfig struct {
	Listen             string `mapstructure:"listen"                validate:"required"`
	MaxQuestionLength  int    `mapstructure:"max_question_length"   validate:"min=1"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute" validate:"min=0"`
	RateLimitBurst     int    `mapstructure:"rate_limit_burst"      validate:"min=0"`

	// AllowedOrigins are host patterns accepted for cross-origin websocket
	// connections, e.g. "*.example.com". Same-origin is always allowed.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the TCP peer is the client.
	TrustedProxies []string `mapstructure:"trusted_proxies" validate:"dive,cidr|ip"`
}

type DatabaseConfig struct {
	Path               string        `mapstructure:"path"                 validate:"required"`
	MaxHistoryMessages int           `mapstructure:"max_history_messages" validate:"min=1,max=500"`
	Retention          time.Duration `mapstructure:"retention"            validate:"min=0"`
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}
