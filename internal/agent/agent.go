// Package agent implements the conversational unit shared by every channel:
// a fixed persona and model identifier, an (empty) tool set, a model client,
// and a per-conversation history.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/edgard/langcoach/internal/database"
	"github.com/edgard/langcoach/internal/llm"
	"github.com/edgard/langcoach/internal/metrics"
)

const defaultMaxHistory = 40

// ErrEmptyMessage is returned by Respond for blank input.
var ErrEmptyMessage = errors.New("message text is empty")

// Tool is a capability the agent may call. LangCoach runs with none; the type
// exists so the tool set is explicit in the agent's construction.
type Tool interface {
	Name() string
	Description() string
}

// History stores conversation turns. database.Store satisfies it.
type History interface {
	AppendTurns(ctx context.Context, turns ...*database.Turn) error
	RecentTurns(ctx context.Context, conversationKey string, limit int) ([]database.Turn, error)
	ClearConversation(ctx context.Context, conversationKey string) error
}

// Message is an inbound message from one channel.
type Message struct {
	Channel        string
	ConversationID string
	UserID         string
	Text           string
}

// Key returns the conversation key under which the message's history is stored.
func (m Message) Key() string {
	return ConversationKey(m.Channel, m.ConversationID)
}

// ConversationKey joins a channel name and a channel-local conversation id.
func ConversationKey(channel, conversationID string) string {
	return channel + ":" + conversationID
}

// Agent answers messages with the configured persona. It is safe for
// concurrent use; messages of the same conversation are handled one at a time.
type Agent struct {
	model      string
	persona    string
	tools      []Tool
	client     llm.Client
	history    History
	metrics    *metrics.Metrics
	logger     *slog.Logger
	maxHistory int

	locks keyedMutex
}

// Option customizes an Agent.
type Option func(*Agent)

func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithMaxHistory bounds the number of prior turns sent to the model.
func WithMaxHistory(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxHistory = n
		}
	}
}

// New creates an agent. A nil tool set is normalized to an empty one.
func New(model, persona string, tools []Tool, client llm.Client, history History, opts ...Option) (*Agent, error) {
	if model == "" {
		return nil, errors.New("agent: model name is required")
	}
	if client == nil {
		return nil, errors.New("agent: llm client is required")
	}
	if history == nil {
		return nil, errors.New("agent: history store is required")
	}
	if tools == nil {
		tools = []Tool{}
	}

	a := &Agent{
		model:      model,
		persona:    persona,
		tools:      tools,
		client:     client,
		history:    history,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxHistory: defaultMaxHistory,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "agent")
	return a, nil
}

func (a *Agent) Model() string   { return a.model }
func (a *Agent) Persona() string { return a.persona }

// Tools returns a copy of the agent's tool set.
func (a *Agent) Tools() []Tool {
	out := make([]Tool, len(a.tools))
	copy(out, a.tools)
	return out
}

// Respond produces the agent's reply to msg. Both the user message and the
// reply are recorded in the history only once the model has answered.
func (a *Agent) Respond(ctx context.Context, msg Message) (string, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	key := msg.Key()
	log := a.logger.With("conversation", key)

	unlock := a.locks.lock(key)
	defer unlock()

	past, err := a.history.RecentTurns(ctx, key, a.maxHistory)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	messages := make([]llm.Message, 0, len(past)+1)
	for _, t := range past {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	start := time.Now()
	reply, err := a.client.Complete(ctx, llm.Request{
		Model:    a.model,
		System:   a.persona,
		Messages: messages,
	})
	a.metrics.Completion(a.client.Name(), time.Since(start), err)
	if err != nil {
		log.ErrorContext(ctx, "Model completion failed", "error", err)
		return "", fmt.Errorf("generate reply: %w", err)
	}

	now := time.Now().UTC()
	if err := a.history.AppendTurns(ctx,
		&database.Turn{ConversationKey: key, Role: database.RoleUser, Content: text, CreatedAt: now},
		&database.Turn{ConversationKey: key, Role: database.RoleAssistant, Content: reply, CreatedAt: now},
	); err != nil {
		// The user still gets the reply; the next turn just lacks this context.
		log.WarnContext(ctx, "Failed to save turns", "error", err)
	}

	log.DebugContext(ctx, "Reply generated", "history_turns", len(past), "duration", time.Since(start))
	return reply, nil
}

// Reset forgets one conversation.
func (a *Agent) Reset(ctx context.Context, channel, conversationID string) error {
	key := ConversationKey(channel, conversationID)

	unlock := a.locks.lock(key)
	defer unlock()

	if err := a.history.ClearConversation(ctx, key); err != nil {
		return fmt.Errorf("reset conversation: %w", err)
	}
	return nil
}

// keyedMutex serializes work per key and drops idle entries.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
