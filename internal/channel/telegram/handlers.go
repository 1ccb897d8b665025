package telegram

import (
	"log/slog"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/langcoach/internal/agent"
	"github.com/edgard/langcoach/internal/channel"
	"github.com/edgard/langcoach/internal/config"
	"github.com/edgard/langcoach/internal/metrics"
)

// HandlerDeps provides dependencies for the Telegram update handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Messages config.TelegramMessages
	Agent    *agent.Agent
	Limiter  *channel.RateLimiter
	Metrics  *metrics.Metrics
}

// RegisteredHandler describes a command handler and how it is matched.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands returns the bot commands keyed by their slash name.
// Plain text falls through to the default handler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	return map[string]RegisteredHandler{
		"/start": {
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     "start",
			Handler:     NewStartHandler(deps),
			MatchType:   tgbot.MatchTypeCommandStartOnly,
		},
		"/reset": {
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     "reset",
			Handler:     NewResetHandler(deps),
			MatchType:   tgbot.MatchTypeCommandStartOnly,
		},
	}
}

// applyMiddleware wraps handler so the first middleware is the outermost.
func applyMiddleware(handler tgbot.HandlerFunc, mw []tgbot.Middleware) tgbot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

func registerHandlers(b *tgbot.Bot, log *slog.Logger, handlers map[string]RegisteredHandler) {
	for name, h := range handlers {
		if h.Handler == nil {
			log.Warn("Skipping registration for nil handler", "command", name)
			continue
		}
		b.RegisterHandler(h.HandlerType, h.Pattern, h.MatchType, applyMiddleware(h.Handler, h.Middleware))
		log.Debug("Registered handler", "command", name, "middleware_count", len(h.Middleware))
	}
}
