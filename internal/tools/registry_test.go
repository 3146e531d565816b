package tools

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
)

type fakeDocs struct {
	answer string
	err    error
	asked  []string
}

func (f *fakeDocs) Search(ctx context.Context, question string) (string, error) {
	f.asked = append(f.asked, question)
	return f.answer, f.err
}

// failingStore returns err from every call.
type failingStore struct{ err error }

func (f failingStore) CreateTask(context.Context, int64, string, *string) (*models.Task, error) {
	return nil, f.err
}
func (f failingStore) ListTasks(context.Context, int64) ([]models.Task, error) { return nil, f.err }
func (f failingStore) UpdateTask(context.Context, int64, int64, models.TaskPatch) (*models.Task, error) {
	return nil, f.err
}
func (f failingStore) DeleteTask(context.Context, int64, int64) error { return f.err }

// panickingStore simulates a bug inside an action.
type panickingStore struct{ failingStore }

func (panickingStore) ListTasks(context.Context, int64) ([]models.Task, error) {
	panic("boom")
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *store.MemoryStore, int64) {
	t.Helper()
	s := store.NewMemoryStore()
	u, err := s.CreateUser(context.Background(), "owner@example.com", "hash")
	require.NoError(t, err)
	return NewRegistry(u.ID, s, nil, opts...), s, u.ID
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 5)

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	assert.Equal(t, []string{CreateTodo, ReadTodos, UpdateTodo, DeleteTodo, SearchDocument}, names)

	update := defs[2]
	assert.Equal(t, []string{"todo_id"}, update.InputSchema.Required)
	assert.Equal(t, "integer", expectedType(update.InputSchema.Properties["todo_id"]))
	assert.Equal(t, "boolean", expectedType(update.InputSchema.Properties["is_completed"]))
	assert.Equal(t, "string", expectedType(update.InputSchema.Properties["title"]))

	assert.Equal(t, []string{"title"}, defs[0].InputSchema.Required)
	assert.Empty(t, defs[1].InputSchema.Required)
}

func TestExecute_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)

	res := r.Execute(ctx, ReadTodos, nil)
	assert.False(t, res.IsError)
	assert.Equal(t, "You have no tasks in your list.", res.Content)

	res = r.Execute(ctx, CreateTodo, map[string]any{"title": "Buy milk"})
	require.False(t, res.IsError, res.Content)
	assert.Regexp(t, `^Success: Created task 'Buy milk' with ID \d+$`, res.Content)

	res = r.Execute(ctx, CreateTodo, map[string]any{"title": "Call mom", "description": "Sunday"})
	require.False(t, res.IsError, res.Content)

	res = r.Execute(ctx, ReadTodos, map[string]any{})
	require.False(t, res.IsError)
	lines := strings.Split(strings.TrimSuffix(res.Content, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Your Todo List:", lines[0])
	assert.Regexp(t, `^ID \d+: \[ \] Buy milk \(Description: None\)$`, lines[1])
	assert.Regexp(t, `^ID \d+: \[ \] Call mom \(Description: Sunday\)$`, lines[2])
}

func TestExecute_ReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)
	r.Execute(ctx, CreateTodo, map[string]any{"title": "one"})

	first := r.Execute(ctx, ReadTodos, nil)
	second := r.Execute(ctx, ReadTodos, nil)
	assert.Equal(t, first, second)
}

func TestExecute_PartialUpdate(t *testing.T) {
	ctx := context.Background()
	r, s, owner := newTestRegistry(t)

	desc := "2 liters"
	task, err := s.CreateTask(ctx, owner, "Buy milk", &desc)
	require.NoError(t, err)

	res := r.Execute(ctx, UpdateTodo, map[string]any{"todo_id": float64(task.ID), "is_completed": true})
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, "Success: Updated task ID "+itoa(task.ID), res.Content)

	tasks, err := s.ListTasks(ctx, owner)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsCompleted)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, "2 liters", *tasks[0].Description)

	// null and empty values leave fields untouched
	res = r.Execute(ctx, UpdateTodo, map[string]any{"todo_id": float64(task.ID), "title": "", "description": nil})
	require.False(t, res.IsError, res.Content)

	res = r.Execute(ctx, ReadTodos, nil)
	assert.Contains(t, res.Content, ": [x] Buy milk (Description: 2 liters)")
}

func TestExecute_Delete(t *testing.T) {
	ctx := context.Background()
	r, s, owner := newTestRegistry(t)

	task, err := s.CreateTask(ctx, owner, "temporary", nil)
	require.NoError(t, err)

	res := r.Execute(ctx, DeleteTodo, map[string]any{"todo_id": float64(task.ID)})
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, "Success: Deleted task ID "+itoa(task.ID), res.Content)

	res = r.Execute(ctx, DeleteTodo, map[string]any{"todo_id": float64(task.ID)})
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: Task with ID "+itoa(task.ID)+" not found. Read the list to check IDs.", res.Content)
}

func TestExecute_OwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	alice, err := s.CreateUser(ctx, "alice@example.com", "h")
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, "bob@example.com", "h")
	require.NoError(t, err)

	task, err := s.CreateTask(ctx, alice.ID, "alice's secret", nil)
	require.NoError(t, err)

	bobTools := NewRegistry(bob.ID, s, nil)

	res := bobTools.Execute(ctx, ReadTodos, nil)
	assert.Equal(t, "You have no tasks in your list.", res.Content)

	res = bobTools.Execute(ctx, UpdateTodo, map[string]any{"todo_id": float64(task.ID), "title": "pwned"})
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: Task with ID "+itoa(task.ID)+" not found. Please use 'read_todos' to verify the ID.", res.Content)

	res = bobTools.Execute(ctx, DeleteTodo, map[string]any{"todo_id": float64(task.ID)})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "not found")

	tasks, err := s.ListTasks(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "alice's secret", tasks[0].Title)
}

func TestExecute_Validation(t *testing.T) {
	ctx := context.Background()
	r, s, owner := newTestRegistry(t)

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"unknown tool", "drop_table", nil, "Error: unknown tool 'drop_table'"},
		{"missing title", CreateTodo, map[string]any{}, "missing required field: title"},
		{"null title", CreateTodo, map[string]any{"title": nil}, "missing required field: title"},
		{"wrong title type", CreateTodo, map[string]any{"title": 42.0}, "field title: expected string"},
		{"empty title", CreateTodo, map[string]any{"title": "  "}, "Error: title must not be empty"},
		{"fractional id", UpdateTodo, map[string]any{"todo_id": 1.5}, "field todo_id: expected integer"},
		{"string id", DeleteTodo, map[string]any{"todo_id": "1"}, "field todo_id: expected integer"},
		{"missing id", DeleteTodo, map[string]any{}, "missing required field: todo_id"},
		{"bad flag", UpdateTodo, map[string]any{"todo_id": 1.0, "is_completed": "yes"}, "field is_completed: expected boolean"},
		{"missing question", SearchDocument, map[string]any{}, "missing required field: question"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Execute(ctx, tt.tool, tt.args)
			assert.True(t, res.IsError)
			assert.True(t, strings.HasPrefix(res.Content, "Error"), res.Content)
			assert.Contains(t, res.Content, tt.want)
		})
	}

	tasks, err := s.ListTasks(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, tasks, "malformed calls must not reach the store")
}

func TestExecute_StoreFailures(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(1, failingStore{err: errors.New("connection refused")}, nil)

	assert.Equal(t, "Error: connection refused", r.Execute(ctx, CreateTodo, map[string]any{"title": "x"}).Content)
	assert.Equal(t, "Error: connection refused", r.Execute(ctx, ReadTodos, nil).Content)
	assert.Equal(t, "Error updating task: connection refused", r.Execute(ctx, UpdateTodo, map[string]any{"todo_id": 1.0}).Content)
	assert.Equal(t, "Error deleting task: connection refused", r.Execute(ctx, DeleteTodo, map[string]any{"todo_id": 1.0}).Content)
}

func TestExecute_RecoversPanics(t *testing.T) {
	r := NewRegistry(1, panickingStore{}, nil)

	res := r.Execute(context.Background(), ReadTodos, nil)
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: internal failure while running read_todos", res.Content)
}

func TestExecute_SearchDocument(t *testing.T) {
	ctx := context.Background()

	r := NewRegistry(1, store.NewMemoryStore(), nil)
	res := r.Execute(ctx, SearchDocument, map[string]any{"question": "refunds?"})
	assert.Equal(t, "Relevant info from document:\nNo document has been uploaded yet.", res.Content)

	docs := &fakeDocs{answer: "Refunds take 30 days."}
	r = NewRegistry(1, store.NewMemoryStore(), docs)
	res = r.Execute(ctx, SearchDocument, map[string]any{"question": "refunds?"})
	assert.False(t, res.IsError)
	assert.Equal(t, "Relevant info from document:\nRefunds take 30 days.", res.Content)
	assert.Equal(t, []string{"refunds?"}, docs.asked)

	docs.err = errors.New("index offline")
	res = r.Execute(ctx, SearchDocument, map[string]any{"question": "refunds?"})
	assert.True(t, res.IsError)
	assert.Equal(t, "Error searching document: index offline", res.Content)
}

func TestReadGuard(t *testing.T) {
	ctx := context.Background()
	r, s, owner := newTestRegistry(t, WithReadGuard())

	task, err := s.CreateTask(ctx, owner, "Buy milk", nil)
	require.NoError(t, err)
	args := map[string]any{"todo_id": float64(task.ID), "is_completed": true}

	r.BeginTurn()
	res := r.Execute(ctx, UpdateTodo, args)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "read_todos")

	r.Execute(ctx, ReadTodos, nil)
	res = r.Execute(ctx, UpdateTodo, args)
	assert.False(t, res.IsError, res.Content)

	// a new turn forgets what was read
	r.BeginTurn()
	res = r.Execute(ctx, DeleteTodo, map[string]any{"todo_id": float64(task.ID)})
	assert.True(t, res.IsError)

	// created ids are known without a read
	created := r.Execute(ctx, CreateTodo, map[string]any{"title": "fresh"})
	require.False(t, created.IsError)
	tasks, err := s.ListTasks(ctx, owner)
	require.NoError(t, err)
	res = r.Execute(ctx, DeleteTodo, map[string]any{"todo_id": float64(tasks[len(tasks)-1].ID)})
	assert.False(t, res.IsError, res.Content)
}

func TestValidate_IntegerForms(t *testing.T) {
	schema := Definitions()[3].InputSchema

	for _, v := range []any{float64(3), 3, int64(3), float32(3)} {
		assert.NoError(t, Validate(map[string]any{"todo_id": v}, schema), "%T", v)
	}
	for _, v := range []any{3.25, "3", true, float32(1e30), float64(1e300), float32(math.Inf(1))} {
		assert.Error(t, Validate(map[string]any{"todo_id": v}, schema), "%T", v)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
