package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/auth"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/knowledge"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Deps are the collaborators shared by all HTTP handlers.
type Deps struct {
	Store     store.DataStore
	Redis     *store.RedisStore // optional
	Tokens    *auth.Tokens
	Knowledge *knowledge.Service
	ModelName string // empty when no model is configured
	Logger    zerolog.Logger
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store     store.DataStore
	redis     *store.RedisStore
	tokens    *auth.Tokens
	docs      *knowledge.Service
	modelName string
	logger    zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:     d.Store,
		redis:     d.Redis,
		tokens:    d.Tokens,
		docs:      d.Knowledge,
		modelName: d.ModelName,
		logger:    d.Logger.With().Str("component", "http").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	// Must be reasonable length and match RFC 5322 pattern
	if email == "" || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
