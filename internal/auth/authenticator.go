package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
)

// ErrAuth matches every authentication failure.
var ErrAuth = errors.New("authentication failed")

// Error is an authentication failure whose message is safe to show to the client.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is makes errors.Is(err, ErrAuth) hold for every *Error.
func (e *Error) Is(target error) bool { return target == ErrAuth }

var (
	ErrTokenMissing   = &Error{Message: "Authentication token missing."}
	ErrSessionExpired = &Error{Message: "Session expired."}
	ErrUserNotFound   = &Error{Message: "User account not found."}
)

// Authenticator resolves bearer tokens to users.
type Authenticator struct {
	tokens *Tokens
	users  store.UserStore
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(tokens *Tokens, users store.UserStore) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate returns the user a token belongs to. Failures are *Error
// values; any invalid or expired token is reported as ErrSessionExpired.
// A store failure is returned as is.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}

	email, err := a.tokens.Parse(token)
	if err != nil {
		return nil, ErrSessionExpired
	}

	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
