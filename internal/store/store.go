package store

import (
	"context"
	"errors"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
)

var (
	// ErrTaskNotFound is returned when no task matches both the id and the owner.
	// A task owned by someone else is reported the same way.
	ErrTaskNotFound = errors.New("task not found")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
)

// TaskStore defines owner-scoped CRUD over todo items.
// Every operation is atomic on its own and safe for concurrent use.
type TaskStore interface {
	CreateTask(ctx context.Context, ownerID int64, title string, description *string) (*models.Task, error)
	ListTasks(ctx context.Context, ownerID int64) ([]models.Task, error)
	UpdateTask(ctx context.Context, ownerID, id int64, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, ownerID, id int64) error
}

// UserStore defines account lookups used by registration and authentication.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// DataStore defines the interface for persistent storage of users and tasks.
// PostgresStore, SQLiteStore and MemoryStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	UserStore
	TaskStore
}
