package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/edgard/langcoach/internal/config"
)

type openAIClient struct {
	client      openai.Client
	temperature float64
	log         *slog.Logger
}

// NewOpenAIClient creates a client for the OpenAI Chat Completions API or any
// compatible endpoint. Without an API key the SDK falls back to OPENAI_API_KEY.
func NewOpenAIClient(cfg config.LLMConfig, log *slog.Logger) Client {
	opts := []option.RequestOption{
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey.Reveal()))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	logger := log.With("component", "openai_client")
	logger.Info("OpenAI client initialized", "base_url", cfg.BaseURL)

	return &openAIClient{
		client:      openai.NewClient(opts...),
		temperature: float64(cfg.Temperature),
		log:         logger,
	}
}

func (c *openAIClient) Name() string { return config.ProviderOpenAI }

func (c *openAIClient) Complete(ctx context.Context, req Request) (string, error) {
	c.log.DebugContext(ctx, "Generating reply", "model", req.Model, "message_count", len(req.Messages))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    toOpenAIMessages(req),
		Temperature: openai.Float(c.temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.log.ErrorContext(ctx, "OpenAI completion failed", "error", err)
		return "", fmt.Errorf("openai completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		c.log.WarnContext(ctx, "OpenAI returned empty content", "finish_reason", resp.Choices[0].FinishReason)
		return "", ErrEmptyResponse
	}
	return text, nil
}

func toOpenAIMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return msgs
}
