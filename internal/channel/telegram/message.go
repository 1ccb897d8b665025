package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/langcoach/internal/agent"
	"github.com/edgard/langcoach/internal/channel"
	"github.com/edgard/langcoach/internal/metrics"
)

const (
	// maxMessageLength is the Bot API limit for a text message.
	maxMessageLength = 4096
	replyTimeout     = 2 * time.Minute
	sendTimeout      = 10 * time.Second
)

// NewMessageHandler returns the default handler: every text message that is
// not a command is answered by the agent.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "message")

	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		log.DebugContext(ctx, "Ignoring update without text", "update_id", update.ID)
		return
	}
	if strings.HasPrefix(msg.Text, "/") {
		log.DebugContext(ctx, "Ignoring unknown command", "update_id", update.ID)
		return
	}

	chatID := msg.Chat.ID
	conversationID := strconv.FormatInt(chatID, 10)
	deps.Metrics.MessageReceived(Name)

	if !deps.Limiter.Allow(agent.ConversationKey(Name, conversationID)) {
		log.WarnContext(ctx, "Rate limited", "chat_id", chatID)
		h.send(ctx, b, chatID, deps.Messages.RateLimited, 0)
		deps.Metrics.Reply(Name, metrics.OutcomeRateLimited)
		return
	}

	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})

	var userID string
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
	}

	replyCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	reply, err := deps.Agent.Respond(replyCtx, agent.Message{
		Channel:        Name,
		ConversationID: conversationID,
		UserID:         userID,
		Text:           msg.Text,
	})
	if err != nil {
		log.ErrorContext(ctx, "Agent failed to reply", "error", err, "chat_id", chatID)
		h.send(ctx, b, chatID, deps.Messages.Error, msg.ID)
		deps.Metrics.Reply(Name, metrics.OutcomeError)
		return
	}

	for i, chunk := range channel.SplitMessage(reply, maxMessageLength) {
		replyTo := 0
		if i == 0 {
			replyTo = msg.ID
		}
		if !h.send(ctx, b, chatID, chunk, replyTo) {
			deps.Metrics.Reply(Name, metrics.OutcomeError)
			return
		}
	}
	deps.Metrics.Reply(Name, metrics.OutcomeOK)
}

func (h messageHandler) send(ctx context.Context, b *bot.Bot, chatID int64, text string, replyTo int) bool {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if replyTo > 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo}
	}
	if _, err := b.SendMessage(sendCtx, params); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
		return false
	}
	return true
}
