// Package telegram delivers LangCoach over the Telegram Bot API, either by
// long polling or through a webhook.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/langcoach/internal/agent"
	"github.com/edgard/langcoach/internal/channel"
	"github.com/edgard/langcoach/internal/config"
	"github.com/edgard/langcoach/internal/logger"
)

// Name is the adapter name and the channel part of Telegram conversation keys.
const Name = "telegram"

const shutdownTimeout = 10 * time.Second

// Adapter is the Telegram channel adapter.
type Adapter struct {
	cfg    config.TelegramConfig
	logger *slog.Logger
	bot    *bot.Bot

	mu       sync.Mutex
	me       *models.User
	listener net.Listener
	closed   bool
}

// NewFactory returns a channel.Factory for the Telegram adapter. Extra bot
// options are appended to the adapter's own (tests use bot.WithServerURL).
func NewFactory(opts ...bot.Option) channel.Factory {
	return func(a *agent.Agent, creds channel.Credentials, deps channel.Deps) (channel.Adapter, error) {
		return New(a, creds, deps, opts...)
	}
}

// New builds the adapter. It does not contact Telegram; the token is first
// used in Register.
func New(a *agent.Agent, creds channel.Credentials, deps channel.Deps, opts ...bot.Option) (*Adapter, error) {
	if a == nil {
		return nil, errors.New("telegram: agent is required")
	}
	if creds.BotToken.Reveal() == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	if deps.Config == nil {
		return nil, errors.New("telegram: config is required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "telegram")
	cfg := deps.Config.Telegram

	hDeps := HandlerDeps{
		Logger:   log,
		Messages: cfg.Messages,
		Agent:    a,
		Limiter:  channel.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		Metrics:  deps.Metrics,
	}

	botOpts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithMiddlewares(logger.Middleware(log)),
		bot.WithDefaultHandler(NewMessageHandler(hDeps)),
	}
	if secret := cfg.WebhookSecret.Reveal(); secret != "" {
		botOpts = append(botOpts, bot.WithWebhookSecretToken(secret))
	}
	botOpts = append(botOpts, opts...)

	b, err := bot.New(creds.BotToken.Reveal(), botOpts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	registerHandlers(b, log, RegisterAllCommands(hDeps))

	return &Adapter{cfg: cfg, logger: log, bot: b}, nil
}

func (a *Adapter) Name() string { return Name }

// Me returns the bot account resolved by Register, or nil before that.
func (a *Adapter) Me() *models.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.me
}

// Addr returns the webhook listener address, or nil when none is bound.
func (a *Adapter) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Register validates the token with getMe and prepares update delivery:
// polling clears any webhook, webhook mode binds the listener and installs
// the webhook URL.
func (a *Adapter) Register(ctx context.Context) error {
	me, err := a.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	a.mu.Lock()
	a.me = me
	a.mu.Unlock()
	a.logger.InfoContext(ctx, "Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)

	switch a.cfg.Mode {
	case config.ModeWebhook:
		return a.registerWebhook(ctx)
	default:
		if _, err := a.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: a.cfg.DropPendingUpdates}); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		return nil
	}
}

func (a *Adapter) registerWebhook(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.cfg.WebhookListen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.WebhookListen, err)
	}

	_, err = a.bot.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:                a.cfg.WebhookURL,
		SecretToken:        a.cfg.WebhookSecret.Reveal(),
		DropPendingUpdates: a.cfg.DropPendingUpdates,
	})
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("set webhook: %w", err)
	}

	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()
	a.logger.InfoContext(ctx, "Webhook registered", "listen", ln.Addr().String())
	return nil
}

// Serve processes updates until ctx is done.
func (a *Adapter) Serve(ctx context.Context) error {
	if a.cfg.Mode == config.ModeWebhook {
		return a.serveWebhook(ctx)
	}

	a.logger.InfoContext(ctx, "Starting long polling")
	a.bot.Start(ctx)
	if ctx.Err() == nil {
		return errors.New("telegram listener stopped unexpectedly")
	}
	a.logger.InfoContext(ctx, "Long polling stopped")
	return nil
}

func (a *Adapter) serveWebhook(ctx context.Context) error {
	a.mu.Lock()
	ln := a.listener
	a.mu.Unlock()
	if ln == nil {
		return errors.New("telegram webhook is not registered")
	}

	srv := &http.Server{
		Handler:           a.webhookRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.bot.StartWebhook(gCtx)
		return nil
	})
	g.Go(func() error {
		a.logger.InfoContext(ctx, "Serving webhook", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *Adapter) webhookRouter() http.Handler {
	path := "/"
	if u, err := url.Parse(a.cfg.WebhookURL); err == nil && u.Path != "" {
		path = u.Path
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(path, a.bot.WebhookHandler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// Close releases the webhook listener if Serve never took it over.
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
