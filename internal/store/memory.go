package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
)

// MemoryStore keeps users and tasks in process memory.
// Used for development (STORE=memory) and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[int64]models.User
	emails     map[string]int64
	tasks      map[int64]models.Task
	nextUserID int64
	nextTaskID int64
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[int64]models.User),
		emails: make(map[string]int64),
		tasks:  make(map[int64]models.Task),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// CreateUser creates a new user record.
func (s *MemoryStore) CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error) {
	email = strings.ToLower(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[email]; ok {
		return nil, ErrEmailTaken
	}

	s.nextUserID++
	user := models.User{
		ID:           s.nextUserID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}
	s.users[user.ID] = user
	s.emails[email] = user.ID
	return &user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	user := s.users[id]
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *MemoryStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// CreateTask creates a new task for the owner.
func (s *MemoryStore) CreateTask(ctx context.Context, ownerID int64, title string, description *string) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTaskID++
	task := models.Task{
		ID:        s.nextTaskID,
		Title:     title,
		OwnerID:   ownerID,
		CreatedAt: s.now(),
	}
	if description != nil {
		d := *description
		task.Description = &d
	}
	s.tasks[task.ID] = task

	out := cloneTask(task)
	return &out, nil
}

// ListTasks retrieves the owner's tasks in creation order.
func (s *MemoryStore) ListTasks(ctx context.Context, ownerID int64) ([]models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := []models.Task{}
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			tasks = append(tasks, cloneTask(t))
		}
	}
	// ids are assigned in creation order
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// UpdateTask changes only the supplied fields of an owned task.
func (s *MemoryStore) UpdateTask(ctx context.Context, ownerID, id int64, patch models.TaskPatch) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return nil, ErrTaskNotFound
	}
	patch.Apply(&task)
	s.tasks[id] = task

	out := cloneTask(task)
	return &out, nil
}

// DeleteTask removes an owned task.
func (s *MemoryStore) DeleteTask(ctx context.Context, ownerID, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func cloneTask(t models.Task) models.Task {
	if t.Description != nil {
		d := *t.Description
		t.Description = &d
	}
	return t
}
