package widget

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/edgard/langcoach/internal/agent"
	"github.com/edgard/langcoach/internal/metrics"
	"github.com/edgard/langcoach/internal/persona"
)

const (
	// MimeTypeText is the mime type of reply blocks.
	MimeTypeText     = "text/plain"
	maxSessionIDLen  = 128
	replyTimeout     = 2 * time.Minute
	maxRequestBodyKB = 64
)

// AnswerRequest is the body of POST /answer and of inbound websocket frames.
type AnswerRequest struct {
	Question      string `json:"question"`
	ChatSessionID string `json:"chat_session_id,omitempty"`
}

// Block is one piece of a reply.
type Block struct {
	Text     string `json:"text"`
	MimeType string `json:"mime_type"`
}

// AnswerResponse carries the reply blocks, or Error when the question could
// not be answered.
type AnswerResponse struct {
	ChatSessionID string  `json:"chat_session_id"`
	Blocks        []Block `json:"blocks"`
	Error         string  `json:"error,omitempty"`
}

// Info describes the bot behind the widget.
type Info struct {
	Name    string `json:"name"`
	Model   string `json:"model"`
	Channel string `json:"channel"`
}

// Handler returns the widget HTTP API.
func (a *Adapter) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealth)
	r.Get("/info", a.handleInfo)
	r.Handle("/metrics", a.metrics.Handler())
	r.With(middleware.RequestSize(maxRequestBodyKB<<10)).Post("/answer", a.handleAnswer)
	r.Get("/ws", a.handleWebSocket)
	return r
}

func (a *Adapter) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Info{Name: persona.BotName, Model: a.agent.Model(), Channel: Name})
}

func (a *Adapter) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AnswerResponse{Blocks: []Block{}, Error: "malformed request body"})
		return
	}
	status, resp := a.answer(r.Context(), a.clientKey(r), req)
	writeJSON(w, status, resp)
}

func (a *Adapter) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: a.cfg.AllowedOrigins})
	if err != nil {
		a.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()
	conn.SetReadLimit(maxRequestBodyKB << 10)

	ctx := r.Context()
	client := a.clientKey(r)
	sessionID := r.URL.Query().Get("chat_session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	for {
		var req AnswerRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				_ = conn.Close(websocket.StatusNormalClosure, "")
			default:
				a.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		if req.ChatSessionID == "" {
			req.ChatSessionID = sessionID
		}

		_, resp := a.answer(ctx, client, req)
		if err := wsjson.Write(ctx, conn, resp); err != nil {
			a.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}

// answer validates req, asks the agent, and returns the HTTP status with the
// response body. It is shared by the HTTP and websocket transports.
func (a *Adapter) answer(ctx context.Context, client string, req AnswerRequest) (int, AnswerResponse) {
	a.metrics.MessageReceived(Name)

	resp := AnswerResponse{ChatSessionID: req.ChatSessionID, Blocks: []Block{}}
	reject := func(status int, outcome, msg string) (int, AnswerResponse) {
		a.metrics.Reply(Name, outcome)
		resp.Error = msg
		return status, resp
	}

	question := strings.TrimSpace(req.Question)
	switch {
	case question == "":
		return reject(http.StatusBadRequest, metrics.OutcomeRejected, "question is required")
	case utf8.RuneCountInString(question) > a.cfg.MaxQuestionLength:
		return reject(http.StatusBadRequest, metrics.OutcomeRejected, "question is too long")
	case len(req.ChatSessionID) > maxSessionIDLen:
		return reject(http.StatusBadRequest, metrics.OutcomeRejected, "chat_session_id is too long")
	}
	if resp.ChatSessionID == "" {
		resp.ChatSessionID = uuid.NewString()
	}

	if !a.limiter.Allow(client) {
		a.logger.WarnContext(ctx, "Rate limited", "client", client)
		return reject(http.StatusTooManyRequests, metrics.OutcomeRateLimited, "too many requests")
	}

	replyCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	reply, err := a.agent.Respond(replyCtx, agent.Message{
		Channel:        Name,
		ConversationID: resp.ChatSessionID,
		UserID:         client,
		Text:           question,
	})
	if err != nil {
		if errors.Is(err, agent.ErrEmptyMessage) {
			return reject(http.StatusBadRequest, metrics.OutcomeRejected, "question is required")
		}
		a.logger.ErrorContext(ctx, "Agent failed to reply", "error", err, "session", resp.ChatSessionID)
		return reject(http.StatusBadGateway, metrics.OutcomeError, "the assistant is unavailable, try again later")
	}

	a.metrics.Reply(Name, metrics.OutcomeOK)
	resp.Blocks = append(resp.Blocks, Block{Text: reply, MimeType: MimeTypeText})
	return http.StatusOK, resp
}

// clientKey identifies the caller for rate limiting. Forwarding headers are
// only read when the TCP peer is a trusted proxy; X-Forwarded-For is walked
// right to left past trusted hops.
func (a *Adapter) clientKey(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !a.trustedProxy(peer) {
		return peer
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			return peer
		}
		if !a.trustedProxy(hop) {
			return addr.Unmap().String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}
	return peer
}

func (a *Adapter) trustedProxy(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
