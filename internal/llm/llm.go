// Package llm wraps the model provider SDKs behind a single Client interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edgard/langcoach/internal/config"
)

// Roles of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the provider answers without any text.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// Message is one prior turn of a conversation.
type Message struct {
	Role    string
	Content string
}

// Request is a single chat completion request.
type Request struct {
	Model    string
	System   string
	Messages []Message
}

// Client generates a reply for a conversation.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// NewClient builds the client for the configured provider.
func NewClient(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (Client, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAIClient(cfg, log), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
