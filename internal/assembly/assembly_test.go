package assembly

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/langcoach/internal/agent"
	"github.com/edgard/langcoach/internal/channel"
	"github.com/edgard/langcoach/internal/channel/telegram"
	"github.com/edgard/langcoach/internal/channel/widget"
	"github.com/edgard/langcoach/internal/config"
	"github.com/edgard/langcoach/internal/errs"
	"github.com/edgard/langcoach/internal/llm/llmtest"
	"github.com/edgard/langcoach/internal/metrics"
	"github.com/edgard/langcoach/internal/persona"
)

type fakeAdapter struct {
	name        string
	agent       *agent.Agent
	creds       channel.Credentials
	registerErr error
	serveErr    error

	registered atomic.Bool
	served     atomic.Bool
	closed     atomic.Int32
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Register(context.Context) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered.Store(true)
	return nil
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	f.served.Store(true)
	if f.serveErr != nil {
		return f.serveErr
	}
	<-ctx.Done()
	return nil
}

func (f *fakeAdapter) Close() error {
	f.closed.Add(1)
	return nil
}

// recorder hands out fake adapters and remembers them.
type recorder struct {
	mu       sync.Mutex
	built    []*fakeAdapter
	calls    int
	failures map[string]error
}

func (r *recorder) spec(name string) AdapterSpec {
	return AdapterSpec{Name: name, Factory: func(a *agent.Agent, creds channel.Credentials, _ channel.Deps) (channel.Adapter, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls++
		ad := &fakeAdapter{name: name, agent: a, creds: creds, registerErr: r.failures[name]}
		r.built = append(r.built, ad)
		return ad, nil
	}}
}

func (r *recorder) adapters() []*fakeAdapter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeAdapter(nil), r.built...)
}

func testConfig(token string) *config.Config {
	cfg := config.Default()
	cfg.Telegram.BotToken = config.Secret(token)
	return cfg
}

func newAssembly(rec *recorder, opts ...func(*Options)) *Assembly {
	o := Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		LLM:      &llmtest.Client{Reply: "ok"},
		Metrics:  metrics.New(),
		Adapters: []AdapterSpec{rec.spec("telegram"), rec.spec("widget")},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o)
}

func TestInitializeBindsOneAgentToTwoAdapters(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	asm := newAssembly(rec)
	if err := asm.Initialize(context.Background(), testConfig("abc123")); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if asm.State() != StateRunning {
		t.Fatalf("state = %v", asm.State())
	}
	ag := asm.Agent()
	if ag == nil {
		t.Fatal("no agent")
	}
	if ag.Persona() != persona.SystemPrompt || ag.Model() != persona.ModelName {
		t.Fatalf("agent has persona/model %q/%q", ag.Persona(), ag.Model())
	}
	if len(ag.Tools()) != 0 {
		t.Fatalf("expected no tools, got %d", len(ag.Tools()))
	}

	built := rec.adapters()
	if len(built) != 2 || len(asm.Adapters()) != 2 {
		t.Fatalf("expected two adapters, built %d registered %d", len(built), len(asm.Adapters()))
	}
	for _, ad := range built {
		if ad.agent != ag {
			t.Errorf("adapter %s holds a different agent", ad.name)
		}
		if ad.creds.BotToken.Reveal() != "abc123" {
			t.Errorf("adapter %s got wrong credentials", ad.name)
		}
		if !ad.registered.Load() {
			t.Errorf("adapter %s was not registered", ad.name)
		}
	}
	if got := asm.Adapters()[0].Name(); got != "telegram" {
		t.Errorf("first adapter = %q", got)
	}
}

func TestInitializeRejectsMissingToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{name: "empty token", cfg: testConfig("")},
		{name: "whitespace token", cfg: testConfig("   ")},
		{name: "nil config", cfg: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &recorder{}
			asm := newAssembly(rec)

			err := asm.Initialize(context.Background(), tt.cfg)
			if !errs.IsConfiguration(err) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if errs.Code(err) != errs.CodeConfig {
				t.Fatalf("code = %q", errs.Code(err))
			}
			if rec.calls != 0 || len(asm.Adapters()) != 0 || asm.Agent() != nil {
				t.Fatalf("nothing should be built: calls=%d adapters=%d", rec.calls, len(asm.Adapters()))
			}
			if asm.State() != StateUnconfigured {
				t.Fatalf("state = %v", asm.State())
			}
		})
	}
}

func TestInitializeTwice(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	asm := newAssembly(rec)
	ctx := context.Background()
	if err := asm.Initialize(ctx, testConfig("abc123")); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	first := asm.Agent()

	if err := asm.Initialize(ctx, testConfig("other")); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if asm.Agent() != first {
		t.Fatal("agent was replaced")
	}
	if rec.calls != 2 {
		t.Fatalf("factories called %d times", rec.calls)
	}
}

func TestInitializeRegistrationFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("listen: address in use")
	rec := &recorder{failures: map[string]error{"widget": boom}}
	asm := newAssembly(rec)

	err := asm.Initialize(context.Background(), testConfig("abc123"))
	var startup *errs.StartupError
	if !errors.As(err, &startup) {
		t.Fatalf("expected StartupError, got %v", err)
	}
	if startup.Adapter != "widget" || !errors.Is(err, boom) {
		t.Fatalf("unexpected error: %v", err)
	}
	if asm.State() != StateUnconfigured || len(asm.Adapters()) != 0 || asm.Agent() != nil {
		t.Fatal("assembly must stay unconfigured")
	}
	for _, ad := range rec.adapters() {
		if ad.closed.Load() == 0 {
			t.Errorf("adapter %s was not closed", ad.name)
		}
	}

	// A later attempt with a healthy environment succeeds.
	rec.mu.Lock()
	rec.failures = nil
	rec.mu.Unlock()
	if err := asm.Initialize(context.Background(), testConfig("abc123")); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestInitializeLocalSkipsRegistration(t *testing.T) {
	t.Parallel()

	rec := &recorder{failures: map[string]error{"telegram": errors.New("no network")}}
	asm := newAssembly(rec, func(o *Options) { o.Local = true })
	if err := asm.Initialize(context.Background(), testConfig(config.PlaceholderBotToken)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for _, ad := range rec.adapters() {
		if ad.registered.Load() {
			t.Errorf("adapter %s registered in local mode", ad.name)
		}
	}
	if len(asm.Adapters()) != 2 {
		t.Fatalf("expected two adapters, got %d", len(asm.Adapters()))
	}
}

func TestInitializeDefaultAdaptersLocal(t *testing.T) {
	t.Parallel()

	asm := New(Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		LLM:    &llmtest.Client{Reply: "ok"},
		Local:  true,
	})
	if err := asm.Initialize(context.Background(), testConfig(config.PlaceholderBotToken)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	adapters := asm.Adapters()
	if len(adapters) != 2 || adapters[0].Name() != telegram.Name || adapters[1].Name() != widget.Name {
		t.Fatalf("unexpected adapters: %v", adapters)
	}
}

type fakeScheduler struct{ ran atomic.Bool }

func (s *fakeScheduler) Run(ctx context.Context) error {
	s.ran.Store(true)
	<-ctx.Done()
	return nil
}

func TestRun(t *testing.T) {
	t.Parallel()

	if err := New(Options{}).Run(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}

	rec := &recorder{}
	sched := &fakeScheduler{}
	asm := newAssembly(rec, func(o *Options) { o.Scheduler = sched })
	if err := asm.Initialize(context.Background(), testConfig("abc123")); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- asm.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !sched.ran.Load() || !allServed(rec.adapters()) {
		if time.Now().After(deadline) {
			t.Fatal("adapters or scheduler never started")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	for _, ad := range rec.adapters() {
		if ad.closed.Load() == 0 {
			t.Errorf("adapter %s not closed", ad.name)
		}
	}
}

func TestRunAdapterFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("polling broke")
	asm := New(Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		LLM:    &llmtest.Client{},
		Adapters: []AdapterSpec{{Name: "broken", Factory: func(*agent.Agent, channel.Credentials, channel.Deps) (channel.Adapter, error) {
			return &fakeAdapter{name: "broken", serveErr: boom}, nil
		}}},
	})
	if err := asm.Initialize(context.Background(), testConfig("abc123")); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := asm.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected adapter error, got %v", err)
	}
}

func allServed(ads []*fakeAdapter) bool {
	for _, ad := range ads {
		if !ad.served.Load() {
			return false
		}
	}
	return len(ads) > 0
}
