package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/auth"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/metrics"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is a user with their tasks.
type UserResponse struct {
	ID    int64         `json:"id"`
	Email string        `json:"email"`
	Todos []models.Task `json:"todos"`
}

// TokenResponse is the OAuth2 password-flow token response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register handles account registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if !isValidEmail(email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if req.Password == "" {
		h.Error(w, http.StatusBadRequest, "password is required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error().Err(err).Msg("hash password")
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user, err := h.store.CreateUser(r.Context(), email, hash)
	if errors.Is(err, store.ErrEmailTaken) {
		h.Error(w, http.StatusBadRequest, "Email already registered")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("create user")
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	metrics.UsersRegistered.Inc()
	h.logger.Info().Int64("user_id", user.ID).Msg("user registered")

	h.JSON(w, http.StatusCreated, UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Todos: []models.Task{},
	})
}

// Token exchanges form-encoded username and password for a bearer token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")

	user, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.logger.Error().Err(err).Msg("lookup user")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		h.Error(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := h.tokens.Issue(user.Email)
	if err != nil {
		h.logger.Error().Err(err).Msg("issue token")
		h.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.JSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}
