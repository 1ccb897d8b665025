// Package channel defines the contract between the assembly and the delivery
// channels (Telegram, web widget) that forward user messages to the agent.
package channel

import (
	"context"
	"log/slog"

	"github.com/edgard/langcoach/internal/agent"
	"github.com/edgard/langcoach/internal/config"
	"github.com/edgard/langcoach/internal/metrics"
)

// Adapter is one delivery channel bound to the shared agent.
type Adapter interface {
	// Name identifies the adapter in logs, errors and conversation keys.
	Name() string

	// Register makes the adapter reachable (token check, webhook, listener).
	// It must not block.
	Register(ctx context.Context) error

	// Serve handles traffic until ctx is done.
	Serve(ctx context.Context) error

	// Close releases whatever Register acquired. It is safe to call more than once.
	Close() error
}

// Credentials are the client credentials shared by every adapter.
type Credentials struct {
	BotToken config.Secret
}

// Deps carries the ambient services handed to adapter factories.
type Deps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Metrics *metrics.Metrics
}

// Factory constructs an adapter around the shared agent. Factories must not
// touch the network; that happens in Register.
type Factory func(a *agent.Agent, creds Credentials, deps Deps) (Adapter, error)
