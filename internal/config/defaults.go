package config

import "time"

var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  false,

	"llm.provider":    ProviderOpenAI,
	"llm.temperature": 0.7,
	"llm.timeout":     2 * time.Minute,
	"llm.max_retries": 2,
	"llm.retry_delay": 2 * time.Second,

	"telegram.mode":                  ModePolling,
	"telegram.webhook_listen":        ":8443",
	"telegram.drop_pending_updates":  true,
	"telegram.rate_limit_per_minute": 20,
	"telegram.rate_limit_burst":      5,
	"telegram.messages.welcome":      "👋 Bonjour! I'm LangCoach, your language coach. Send me a message and let's practice together.",
	"telegram.messages.reset":        "🔄 Our conversation has been cleared. Let's start again!",
	"telegram.messages.error":        "❌ Something went wrong. Please try again later.",
	"telegram.messages.rate_limited": "⏱️ You're sending messages too quickly. Please wait a moment.",

	"widget.listen":                ":8080",
	"widget.max_question_length":   4000,
	"widget.rate_limit_per_minute": 30,
	"widget.rate_limit_burst":      5,

	"database.path":                 "langcoach.db",
	"database.max_history_messages": 40,
	"database.retention":            30 * 24 * time.Hour,

	"scheduler.tasks": map[string]any{
		"history_retention": map[string]any{"enabled": true, "schedule": "0 30 3 * * *"},
		"sql_maintenance":   map[string]any{"enabled": true, "schedule": "0 0 4 * * 0"},
	},
}
