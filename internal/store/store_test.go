package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// testDataStore runs the behaviour every DataStore backend must share.
func testDataStore(t *testing.T, open func(t *testing.T) DataStore) {
	t.Run("users", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		u, err := s.CreateUser(ctx, "Alice@Example.com", "hash")
		require.NoError(t, err)
		assert.NotZero(t, u.ID)
		assert.Equal(t, "alice@example.com", u.Email)

		_, err = s.CreateUser(ctx, "alice@example.com", "other")
		assert.ErrorIs(t, err, ErrEmailTaken)

		got, err := s.GetUserByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "hash", got.PasswordHash)

		byID, err := s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, u.Email, byID.Email)

		missing, err := s.GetUserByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, missing)

		missing, err = s.GetUserByID(ctx, u.ID+1000)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("create and list in creation order", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		owner := mustUser(t, s, "list@example.com")

		empty, err := s.ListTasks(ctx, owner)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)

		a, err := s.CreateTask(ctx, owner, "first", nil)
		require.NoError(t, err)
		assert.False(t, a.IsCompleted)
		assert.Nil(t, a.Description)
		assert.Equal(t, owner, a.OwnerID)

		b, err := s.CreateTask(ctx, owner, "second", strPtr("with notes"))
		require.NoError(t, err)
		require.NotNil(t, b.Description)
		assert.Equal(t, "with notes", *b.Description)
		assert.NotEqual(t, a.ID, b.ID)

		tasks, err := s.ListTasks(ctx, owner)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, "first", tasks[0].Title)
		assert.Equal(t, "second", tasks[1].Title)

		again, err := s.ListTasks(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, tasks, again)
	})

	t.Run("partial update", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		owner := mustUser(t, s, "update@example.com")

		task, err := s.CreateTask(ctx, owner, "Buy milk", strPtr("2 liters"))
		require.NoError(t, err)

		updated, err := s.UpdateTask(ctx, owner, task.ID, models.TaskPatch{IsCompleted: boolPtr(true)})
		require.NoError(t, err)
		assert.True(t, updated.IsCompleted)
		assert.Equal(t, "Buy milk", updated.Title)
		require.NotNil(t, updated.Description)
		assert.Equal(t, "2 liters", *updated.Description)

		updated, err = s.UpdateTask(ctx, owner, task.ID, models.TaskPatch{Title: strPtr("Buy oat milk")})
		require.NoError(t, err)
		assert.Equal(t, "Buy oat milk", updated.Title)
		assert.True(t, updated.IsCompleted)

		updated, err = s.UpdateTask(ctx, owner, task.ID, models.TaskPatch{IsCompleted: boolPtr(false)})
		require.NoError(t, err)
		assert.False(t, updated.IsCompleted)

		_, err = s.UpdateTask(ctx, owner, task.ID+1000, models.TaskPatch{Title: strPtr("x")})
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		owner := mustUser(t, s, "delete@example.com")

		task, err := s.CreateTask(ctx, owner, "temporary", nil)
		require.NoError(t, err)

		require.NoError(t, s.DeleteTask(ctx, owner, task.ID))
		assert.ErrorIs(t, s.DeleteTask(ctx, owner, task.ID), ErrTaskNotFound)

		tasks, err := s.ListTasks(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("ownership isolation", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		alice := mustUser(t, s, "alice@example.com")
		bob := mustUser(t, s, "bob@example.com")

		task, err := s.CreateTask(ctx, alice, "alice only", nil)
		require.NoError(t, err)

		bobs, err := s.ListTasks(ctx, bob)
		require.NoError(t, err)
		assert.Empty(t, bobs)

		_, err = s.UpdateTask(ctx, bob, task.ID, models.TaskPatch{Title: strPtr("hijacked")})
		assert.ErrorIs(t, err, ErrTaskNotFound)
		assert.ErrorIs(t, s.DeleteTask(ctx, bob, task.ID), ErrTaskNotFound)

		alices, err := s.ListTasks(ctx, alice)
		require.NoError(t, err)
		require.Len(t, alices, 1)
		assert.Equal(t, "alice only", alices[0].Title)
	})

	t.Run("concurrent creates", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		owner := mustUser(t, s, "busy@example.com")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CreateTask(ctx, owner, "task", nil)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		tasks, err := s.ListTasks(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, tasks, 20)
	})
}

func mustUser(t *testing.T, s DataStore, email string) int64 {
	t.Helper()
	u, err := s.CreateUser(context.Background(), email, "hash")
	require.NoError(t, err)
	return u.ID
}

func TestMemoryStore(t *testing.T) {
	testDataStore(t, func(t *testing.T) DataStore {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	testDataStore(t, func(t *testing.T) DataStore {
		s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "todo.db"))
		require.NoError(t, err)
		t.Cleanup(s.Close)
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	testDataStore(t, func(t *testing.T) DataStore {
		ctx := context.Background()
		require.NoError(t, RunMigrations(ctx, url))
		s, err := NewPostgresStore(ctx, url)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, "TRUNCATE todos, users RESTART IDENTITY CASCADE")
		require.NoError(t, err)
		t.Cleanup(s.Close)
		return s
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, "memory", "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, mem)

	lite, err := Open(ctx, "sqlite", "", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer lite.Close()
	assert.NoError(t, lite.Ping(ctx))

	_, err = Open(ctx, "cassandra", "", "")
	assert.Error(t, err)
}
