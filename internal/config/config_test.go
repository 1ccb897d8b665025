package config_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edgard/langcoach/internal/config"
	"github.com/edgard/langcoach/internal/errs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearTokenEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("LANGCOACH_TELEGRAM_BOT_TOKEN", "")
}

func TestLoadFromFile(t *testing.T) {
	clearTokenEnv(t)

	path := writeConfig(t, `
telegram:
  bot_token: abc123
  mode: polling
llm:
  provider: gemini
  temperature: 1.2
widget:
  listen: "127.0.0.1:9090"
scheduler:
  tasks:
    sql_maintenance:
      enabled: false
      schedule: ""
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Telegram.BotToken.Reveal(); got != "abc123" {
		t.Errorf("BotToken = %q, want %q", got, "abc123")
	}
	if cfg.LLM.Provider != config.ProviderGemini {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, config.ProviderGemini)
	}
	if cfg.LLM.Temperature != 1.2 {
		t.Errorf("LLM.Temperature = %v, want 1.2", cfg.LLM.Temperature)
	}
	if cfg.Widget.Listen != "127.0.0.1:9090" {
		t.Errorf("Widget.Listen = %q, want %q", cfg.Widget.Listen, "127.0.0.1:9090")
	}
	if cfg.LLM.Timeout != 2*time.Minute {
		t.Errorf("LLM.Timeout = %v, want default 2m", cfg.LLM.Timeout)
	}
	if cfg.Database.Path != "langcoach.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
	if task := cfg.Scheduler.Tasks["sql_maintenance"]; task.Enabled {
		t.Errorf("sql_maintenance should be disabled by the file")
	}
	if task := cfg.Scheduler.Tasks["history_retention"]; !task.Enabled || task.Schedule == "" {
		t.Errorf("history_retention = %+v, want enabled default", task)
	}
}

func TestLoadTokenFromEnvironment(t *testing.T) {
	clearTokenEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")

	path := writeConfig(t, "logger:\n  level: debug\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Telegram.BotToken.Reveal(); got != "from-env" {
		t.Errorf("BotToken = %q, want %q", got, "from-env")
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
}

func TestLoadPrefixedEnvironmentWins(t *testing.T) {
	clearTokenEnv(t)
	t.Setenv("LANGCOACH_TELEGRAM_BOT_TOKEN", "prefixed")
	t.Setenv("LANGCOACH_WIDGET_LISTEN", ":7070")

	path := writeConfig(t, "telegram:\n  bot_token: from-file\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Telegram.BotToken.Reveal(); got != "prefixed" {
		t.Errorf("BotToken = %q, want %q", got, "prefixed")
	}
	if cfg.Widget.Listen != ":7070" {
		t.Errorf("Widget.Listen = %q, want %q", cfg.Widget.Listen, ":7070")
	}
}

func TestLoadMissingToken(t *testing.T) {
	clearTokenEnv(t)

	path := writeConfig(t, "telegram:\n  bot_token: \"\"\n")

	_, err := config.Load(path)
	if err == nil {
		t.Fatal("Load() error = nil, want ConfigurationError")
	}
	if !errs.IsConfiguration(err) {
		t.Errorf("Load() error = %v, want ConfigurationError", err)
	}
}

func TestLoadWithPlaceholderToken(t *testing.T) {
	clearTokenEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "real-token")

	path := writeConfig(t, "widget:\n  listen: \"127.0.0.1:9000\"\n")

	cfg, err := config.Load(path, config.WithBotToken(config.PlaceholderBotToken))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Telegram.BotToken.Reveal(); got != config.PlaceholderBotToken {
		t.Errorf("BotToken = %q, want placeholder", got)
	}
	if cfg.Widget.Listen != "127.0.0.1:9000" {
		t.Errorf("Widget.Listen = %q", cfg.Widget.Listen)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearTokenEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "abc123")

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errs.IsConfiguration(err) {
		t.Errorf("Load() error = %v, want ConfigurationError", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{
			name:   "valid token",
			mutate: func(c *config.Config) { c.Telegram.BotToken = "abc123" },
		},
		{
			name:    "empty token",
			mutate:  func(*config.Config) {},
			wantErr: true,
		},
		{
			name:    "whitespace token",
			mutate:  func(c *config.Config) { c.Telegram.BotToken = "   " },
			wantErr: true,
		},
		{
			name: "webhook without url",
			mutate: func(c *config.Config) {
				c.Telegram.BotToken = "abc123"
				c.Telegram.Mode = config.ModeWebhook
			},
			wantErr: true,
		},
		{
			name: "webhook with url",
			mutate: func(c *config.Config) {
				c.Telegram.BotToken = "abc123"
				c.Telegram.Mode = config.ModeWebhook
				c.Telegram.WebhookURL = "https://example.com/telegram"
			},
		},
		{
			name: "unknown provider",
			mutate: func(c *config.Config) {
				c.Telegram.BotToken = "abc123"
				c.LLM.Provider = "llama"
			},
			wantErr: true,
		},
		{
			name: "enabled task without schedule",
			mutate: func(c *config.Config) {
				c.Telegram.BotToken = "abc123"
				c.Scheduler.Tasks = map[string]config.TaskConfig{"sql_maintenance": {Enabled: true}}
			},
			wantErr: true,
		},
		{
			name: "trusted proxies",
			mutate: func(c *config.Config) {
				c.Telegram.BotToken = "abc123"
				c.Widget.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.7"}
			},
		},
		{
			name: "malformed trusted proxy",
			mutate: func(c *config.Config) {
				c.Telegram.BotToken = "abc123"
				c.Widget.TrustedProxies = []string{"proxy.internal"}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errs.IsConfiguration(err) {
				t.Errorf("Validate() error = %v, want ConfigurationError", err)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	t.Parallel()

	var cfg *config.Config
	if err := cfg.Validate(); !errs.IsConfiguration(err) {
		t.Errorf("Validate() on nil = %v, want ConfigurationError", err)
	}
}

func TestSecretNeverRendered(t *testing.T) {
	t.Parallel()

	secret := config.Secret("super-secret-token")

	if got := fmt.Sprint(secret); strings.Contains(got, "super-secret") {
		t.Errorf("fmt.Sprint(secret) = %q, leaks the value", got)
	}

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	log.Info("starting", "bot_token", secret)
	if strings.Contains(buf.String(), "super-secret") {
		t.Errorf("log output leaks the secret: %s", buf.String())
	}

	if secret.Reveal() != "super-secret-token" {
		t.Errorf("Reveal() = %q", secret.Reveal())
	}
	if config.Secret("").String() != "" {
		t.Errorf("empty secret should render empty")
	}
}
