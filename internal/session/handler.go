package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/agent"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/auth"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/metrics"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
)

// InitFailed is sent when the agent for a connection cannot be built.
const InitFailed = "AI Init Failed"

// Authenticator resolves the connection token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// NewAgentFunc builds the agent serving one user's connection.
type NewAgentFunc func(user *models.User) (Agent, error)

// Handler upgrades GET /ws?token=... to a chat session.
type Handler struct {
	auth     Authenticator
	newAgent NewAgentFunc
	origins  []string
	queue    int
	logger   zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithOriginPatterns sets the host patterns allowed to open a connection
// from a browser. Requests without an Origin header are always accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) { h.origins = patterns }
}

// OriginHosts converts allowed origins such as "http://localhost:5173" to
// the host patterns websocket.Accept matches against.
func OriginHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}

// WithQueueSize bounds inbound messages waiting behind a running turn.
func WithQueueSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.queue = n
		}
	}
}

// NewHandler creates a WebSocket handler.
func NewHandler(a Authenticator, newAgent NewAgentFunc, logger zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		auth:     a,
		newAgent: newAgent,
		queue:    DefaultQueueSize,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	user, err := h.auth.Authenticate(ctx, r.URL.Query().Get("token"))
	if err != nil {
		msg := auth.ErrSessionExpired.Message
		var authErr *auth.Error
		if errors.As(err, &authErr) {
			msg = authErr.Message
		} else {
			h.logger.Error().Err(err).Msg("websocket authentication failed")
		}
		h.reject(ctx, conn, websocket.StatusPolicyViolation, msg)
		return
	}

	logger := h.logger.With().Int64("user_id", user.ID).Logger()

	ag, err := h.newAgent(user)
	if err != nil {
		logger.Error().Err(err).Msg("agent init failed")
		h.reject(ctx, conn, websocket.StatusInternalError, InitFailed)
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	logger = logger.With().Str("session_id", id.String()).Logger()

	s := &Session{
		id:     id.String(),
		conn:   conn,
		agent:  ag,
		logger: logger,
		queue:  h.queue,
	}

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	logger.Info().Msg("session opened")
	if err := s.Run(ctx); err != nil {
		logger.Warn().Err(err).Msg("session ended with error")
		if errors.Is(err, ErrQueueFull) {
			conn.Close(websocket.StatusPolicyViolation, err.Error())
			return
		}
		conn.Close(websocket.StatusInternalError, "session error")
		return
	}
	logger.Info().Msg("session closed")
	conn.Close(websocket.StatusNormalClosure, "")
}

// reject reports a failure to the client and closes the connection.
func (h *Handler) reject(ctx context.Context, conn *websocket.Conn, code websocket.StatusCode, msg string) {
	if err := wsjson.Write(ctx, conn, agent.Event{Type: agent.EventError, Content: msg}); err != nil {
		h.logger.Debug().Err(err).Msg("write rejection")
	}
	conn.Close(code, msg)
}
