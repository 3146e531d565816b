package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/todo.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/todo.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// Single writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		hashed_password TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS todos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		is_completed INTEGER DEFAULT 0,
		owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_todos_owner ON todos(owner_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error) {
	email = strings.ToLower(email)

	existing, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, hashed_password, created_at)
		VALUES (?, ?, ?)
	`, email, passwordHash, time.Now().UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `
		SELECT id, email, hashed_password, created_at
		FROM users WHERE email = ?
	`, strings.ToLower(email))
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `
		SELECT id, email, hashed_password, created_at
		FROM users WHERE id = ?
	`, id)
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CreateTask creates a new task for the owner.
func (s *SQLiteStore) CreateTask(ctx context.Context, ownerID int64, title string, description *string) (*models.Task, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO todos (title, description, is_completed, owner_id, created_at)
		VALUES (?, ?, 0, ?, ?)
	`, title, description, ownerID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.getTask(ctx, ownerID, id)
}

// getTask retrieves an owned task, returning ErrTaskNotFound when absent.
func (s *SQLiteStore) getTask(ctx context.Context, ownerID, id int64) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, is_completed, owner_id, created_at
		FROM todos WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// ListTasks retrieves the owner's tasks in creation order.
func (s *SQLiteStore) ListTasks(ctx context.Context, ownerID int64) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, is_completed, owner_id, created_at
		FROM todos
		WHERE owner_id = ?
		ORDER BY created_at, id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}

// UpdateTask changes only the supplied fields of an owned task.
func (s *SQLiteStore) UpdateTask(ctx context.Context, ownerID, id int64, patch models.TaskPatch) (*models.Task, error) {
	var completed *int
	if patch.IsCompleted != nil {
		v := 0
		if *patch.IsCompleted {
			v = 1
		}
		completed = &v
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE todos
		SET title = COALESCE(?, title),
			description = COALESCE(?, description),
			is_completed = COALESCE(?, is_completed)
		WHERE id = ? AND owner_id = ?
	`, patch.Title, patch.Description, completed, id, ownerID)
	if err != nil {
		return nil, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrTaskNotFound
	}

	return s.getTask(ctx, ownerID, id)
}

// DeleteTask removes an owned task.
func (s *SQLiteStore) DeleteTask(ctx context.Context, ownerID, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM todos WHERE id = ? AND owner_id = ?
	`, id, ownerID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var description sql.NullString
	var isCompletedInt int

	err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&isCompletedInt,
		&task.OwnerID,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		task.Description = &description.String
	}
	task.IsCompleted = isCompletedInt == 1
	return task, nil
}
