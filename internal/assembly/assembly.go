// Package assembly binds the LangCoach persona and model to a single agent
// and attaches the channel adapters to it.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/langcoach/internal/agent"
	"github.com/edgard/langcoach/internal/channel"
	"github.com/edgard/langcoach/internal/channel/telegram"
	"github.com/edgard/langcoach/internal/channel/widget"
	"github.com/edgard/langcoach/internal/config"
	"github.com/edgard/langcoach/internal/errs"
	"github.com/edgard/langcoach/internal/llm"
	"github.com/edgard/langcoach/internal/metrics"
	"github.com/edgard/langcoach/internal/persona"
)

// ErrAlreadyInitialized is returned by a second successful Initialize.
var ErrAlreadyInitialized = errors.New("assembly is already initialized")

// ErrNotRunning is returned by Run before a successful Initialize.
var ErrNotRunning = errors.New("assembly is not initialized")

// State is the lifecycle state of an Assembly.
type State int

const (
	StateUnconfigured State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AdapterSpec names a channel adapter and the factory that builds it.
type AdapterSpec struct {
	Name    string
	Factory channel.Factory
}

// DefaultAdapters returns the LangCoach channels: Telegram and the web widget.
func DefaultAdapters() []AdapterSpec {
	return []AdapterSpec{
		{Name: telegram.Name, Factory: telegram.NewFactory()},
		{Name: widget.Name, Factory: widget.Factory},
	}
}

// Runner is a background service driven alongside the adapters.
type Runner interface {
	Run(ctx context.Context) error
}

// Options configures an Assembly.
type Options struct {
	Logger  *slog.Logger
	LLM     llm.Client
	History agent.History
	Metrics *metrics.Metrics
	// Adapters defaults to DefaultAdapters().
	Adapters []AdapterSpec
	// Scheduler is optional.
	Scheduler Runner
	// Local builds the adapters without registering them with their
	// transports, so no network is touched.
	Local bool
}

// Assembly owns the one agent of the process and the adapters bound to it.
type Assembly struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	agent    *agent.Agent
	adapters []channel.Adapter
}

func New(opts Options) *Assembly {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Adapters == nil {
		opts.Adapters = DefaultAdapters()
	}
	return &Assembly{
		opts:   opts,
		logger: opts.Logger.With("component", "assembly"),
	}
}

// Initialize validates cfg, builds the agent with the fixed persona and
// model, and registers every adapter. Registration is all-or-nothing: on any
// failure the adapters built so far are closed and the assembly stays
// unconfigured, so Initialize may be retried. Once it has succeeded, further
// calls return ErrAlreadyInitialized and leave the agent untouched.
func (a *Assembly) Initialize(ctx context.Context, cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateRunning {
		return ErrAlreadyInitialized
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if a.opts.LLM == nil {
		return errs.NewConfigurationError("llm client is not configured", nil)
	}

	history := a.opts.History
	if history == nil {
		history = agent.NewMemoryHistory()
	}

	ag, err := agent.New(persona.ModelName, persona.SystemPrompt, []agent.Tool{}, a.opts.LLM, history,
		agent.WithLogger(a.opts.Logger),
		agent.WithMetrics(a.opts.Metrics),
		agent.WithMaxHistory(cfg.Database.MaxHistoryMessages),
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	a.logger.InfoContext(ctx, "Agent created", "model", ag.Model(), "tools", len(ag.Tools()), "llm", a.opts.LLM.Name())

	creds := channel.Credentials{BotToken: cfg.Telegram.BotToken}
	deps := channel.Deps{Logger: a.opts.Logger, Config: cfg, Metrics: a.opts.Metrics}

	adapters := make([]channel.Adapter, 0, len(a.opts.Adapters))
	for _, spec := range a.opts.Adapters {
		ad, err := a.startAdapter(ctx, spec, ag, creds, deps)
		if err != nil {
			closeAll(a.logger, adapters)
			a.logger.ErrorContext(ctx, "Adapter failed to start", "adapter", spec.Name, "error", err)
			return errs.NewStartupError(spec.Name, err)
		}
		adapters = append(adapters, ad)
	}

	a.agent = ag
	a.adapters = adapters
	a.state = StateRunning
	a.opts.Metrics.SetAdapters(len(adapters))
	a.logger.InfoContext(ctx, "Assembly initialized", "adapters", len(adapters), "local", a.opts.Local)
	return nil
}

func (a *Assembly) startAdapter(ctx context.Context, spec AdapterSpec, ag *agent.Agent, creds channel.Credentials, deps channel.Deps) (channel.Adapter, error) {
	if spec.Factory == nil {
		return nil, errors.New("no factory")
	}
	ad, err := spec.Factory(ag, creds, deps)
	if err != nil {
		return nil, fmt.Errorf("construct: %w", err)
	}
	if a.opts.Local {
		return ad, nil
	}
	if err := ad.Register(ctx); err != nil {
		_ = ad.Close()
		return nil, fmt.Errorf("register: %w", err)
	}
	a.logger.InfoContext(ctx, "Adapter registered", "adapter", ad.Name())
	return ad, nil
}

// Run serves every adapter and the scheduler until ctx is done or one of
// them fails. It returns nil on cancellation and closes the adapters on exit.
func (a *Assembly) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateRunning {
		a.mu.Unlock()
		return ErrNotRunning
	}
	adapters := a.adapters
	a.mu.Unlock()
	defer closeAll(a.logger, adapters)

	g, gCtx := errgroup.WithContext(ctx)
	for _, ad := range adapters {
		g.Go(func() error {
			a.logger.InfoContext(gCtx, "Starting adapter", "adapter", ad.Name())
			if err := ad.Serve(gCtx); err != nil {
				return fmt.Errorf("adapter %s: %w", ad.Name(), err)
			}
			a.logger.InfoContext(gCtx, "Adapter stopped", "adapter", ad.Name())
			return nil
		})
	}
	if a.opts.Scheduler != nil {
		g.Go(func() error {
			return a.opts.Scheduler.Run(gCtx)
		})
	}

	a.logger.InfoContext(ctx, "Assembly running", "adapters", len(adapters))
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Assembly stopped due to error", "error", err)
		return err
	}
	a.logger.Info("Assembly stopped gracefully")
	return nil
}

func (a *Assembly) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Agent returns the shared agent, or nil before Initialize succeeds.
func (a *Assembly) Agent() *agent.Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.agent
}

// Adapters returns the registered adapters in registration order.
func (a *Assembly) Adapters() []channel.Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]channel.Adapter, len(a.adapters))
	copy(out, a.adapters)
	return out
}

func closeAll(log *slog.Logger, adapters []channel.Adapter) {
	for i := len(adapters) - 1; i >= 0; i-- {
		if err := adapters[i].Close(); err != nil {
			log.Warn("Failed to close adapter", "adapter", adapters[i].Name(), "error", err)
		}
	}
}
