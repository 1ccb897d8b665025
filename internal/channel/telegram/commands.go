package telegram

import (
	"context"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const resetTimeout = 30 * time.Second

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")
	if update.Message == nil {
		log.WarnContext(ctx, "Start handler received update without message", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.deps.Messages.Welcome}); err != nil {
		log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "chat_id", chatID)
	}
}

// NewResetHandler returns a handler for the /reset command, which forgets
// the chat's conversation history.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return resetHandler{deps}.Handle
}

type resetHandler struct {
	deps HandlerDeps
}

func (h resetHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "reset")
	if update.Message == nil {
		log.WarnContext(ctx, "Reset handler received update without message", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID

	resetCtx, cancel := context.WithTimeout(ctx, resetTimeout)
	defer cancel()

	text := h.deps.Messages.Reset
	if err := h.deps.Agent.Reset(resetCtx, Name, strconv.FormatInt(chatID, 10)); err != nil {
		log.ErrorContext(ctx, "Failed to reset conversation", "error", err, "chat_id", chatID)
		text = h.deps.Messages.Error
	} else {
		log.InfoContext(ctx, "Conversation reset", "chat_id", chatID)
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send reset reply", "error", err, "chat_id", chatID)
	}
}
