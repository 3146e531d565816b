package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/auth"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
)

type contextKey string

const UserContextKey contextKey = "user"

// CredentialsError is the message for every rejected bearer token.
const CredentialsError = "Could not validate credentials"

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware handles bearer token verification for authenticated endpoints.
type AuthMiddleware struct {
	auth   Authenticator
	logger zerolog.Logger
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(a Authenticator, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{auth: a, logger: logger}
}

// RequireAuth middleware verifies the Authorization: Bearer header and puts
// the user in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			unauthorized(w)
			return
		}

		user, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrAuth) {
				m.logger.Error().Err(err).Msg("bearer authentication failed")
				jsonError(w, http.StatusInternalServerError, "internal error")
				return
			}
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	jsonError(w, http.StatusUnauthorized, CredentialsError)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
