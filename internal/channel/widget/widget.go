// Package widget serves LangCoach to the embeddable web chat widget over a
// small JSON API and a websocket.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/edgard/langcoach/internal/agent"
	"github.com/edgard/langcoach/internal/channel"
	"github.com/edgard/langcoach/internal/config"
	"github.com/edgard/langcoach/internal/metrics"
)

// Name is the adapter name and the channel part of widget conversation keys.
const Name = "widget"

const shutdownTimeout = 10 * time.Second

// Adapter is the web widget channel adapter.
type Adapter struct {
	cfg     config.WidgetConfig
	agent   *agent.Agent
	logger  *slog.Logger
	metrics *metrics.Metrics
	limiter *channel.RateLimiter
	proxies []netip.Prefix

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// Factory is the channel.Factory for the widget adapter.
func Factory(a *agent.Agent, creds channel.Credentials, deps channel.Deps) (channel.Adapter, error) {
	return New(a, creds, deps)
}

// New builds the adapter. The widget needs no credentials of its own.
func New(a *agent.Agent, _ channel.Credentials, deps channel.Deps) (*Adapter, error) {
	if a == nil {
		return nil, errors.New("widget: agent is required")
	}
	if deps.Config == nil {
		return nil, errors.New("widget: config is required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	cfg := deps.Config.Widget
	proxies, err := parseProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("widget: %w", err)
	}
	return &Adapter{
		cfg:     cfg,
		agent:   a,
		logger:  log.With("component", "widget"),
		metrics: deps.Metrics,
		limiter: channel.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		proxies: proxies,
	}, nil
}

func parseProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (a *Adapter) Name() string { return Name }

// Register binds the HTTP listener.
func (a *Adapter) Register(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Listen, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		_ = ln.Close()
		return errors.New("widget adapter is closed")
	}
	a.listener = ln
	a.logger.InfoContext(ctx, "Widget listener bound", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Register.
func (a *Adapter) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Serve runs the HTTP server until ctx is done, then shuts it down.
func (a *Adapter) Serve(ctx context.Context) error {
	a.mu.Lock()
	ln := a.listener
	a.mu.Unlock()
	if ln == nil {
		return errors.New("widget adapter is not registered")
	}

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Websocket sessions end with ctx since Shutdown does not track hijacked connections.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.InfoContext(ctx, "Serving widget API", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("widget server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown widget server: %w", err)
	}
	a.logger.Info("Widget API stopped")
	return nil
}

// Close releases the listener if Serve never took it over.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.listener != nil {
		if err := a.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	}
	return nil
}
