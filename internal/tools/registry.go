// Package tools implements the owner-scoped actions the chat agent can
// invoke against a user's todo list and uploaded document.
package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/metrics"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
)

// Result is what the model sees for one tool call.
// Content always holds a plain string; failures start with "Error".
type Result struct {
	Content string
	IsError bool
}

func success(format string, args ...any) Result {
	return Result{Content: fmt.Sprintf(format, args...)}
}

func failure(format string, args ...any) Result {
	return Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

// DocumentSearcher answers questions against the user's uploaded document.
type DocumentSearcher interface {
	Search(ctx context.Context, question string) (string, error)
}

type action func(ctx context.Context, args map[string]any) Result

// Registry binds the five todo actions to one user.
// It is safe for concurrent use, though a session calls it sequentially.
type Registry struct {
	ownerID int64
	tasks   store.TaskStore
	docs    DocumentSearcher
	logger  zerolog.Logger

	defs    []mcp.Tool
	schemas map[string]mcp.ToolInputSchema
	actions map[string]action

	readGuard bool
	mu        sync.Mutex
	known     map[int64]bool // ids seen by the user this turn
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for execution logs.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithReadGuard rejects update_todo and delete_todo for ids that were not
// listed by read_todos or returned by create_todo earlier in the same turn.
func WithReadGuard() Option {
	return func(r *Registry) {
		r.readGuard = true
	}
}

// NewRegistry creates the tool set for ownerID. docs may be nil, in which
// case search_document reports that no document is available.
func NewRegistry(ownerID int64, tasks store.TaskStore, docs DocumentSearcher, opts ...Option) *Registry {
	r := &Registry{
		ownerID: ownerID,
		tasks:   tasks,
		docs:    docs,
		logger:  zerolog.Nop(),
		defs:    Definitions(),
		schemas: make(map[string]mcp.ToolInputSchema),
		known:   make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "tools").Int64("user_id", ownerID).Logger()

	for _, def := range r.defs {
		r.schemas[def.Name] = def.InputSchema
	}
	r.actions = map[string]action{
		CreateTodo:     r.createTodo,
		ReadTodos:      r.readTodos,
		UpdateTodo:     r.updateTodo,
		DeleteTodo:     r.deleteTodo,
		SearchDocument: r.searchDocument,
	}
	return r
}

// Definitions returns the tool declarations offered to the model.
func (r *Registry) Definitions() []mcp.Tool {
	return append([]mcp.Tool(nil), r.defs...)
}

// BeginTurn resets per-turn state used by the read guard.
func (r *Registry) BeginTurn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.known)
}

// Execute validates args and runs the named tool. It never panics and never
// returns an error: every failure is reported in the Result.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (res Result) {
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("tool", name).Interface("panic", p).Msg("tool panicked")
			res = failure("Error: internal failure while running %s", name)
		}

		outcome := "ok"
		if res.IsError {
			outcome = "error"
		}
		metrics.ToolCallsTotal.WithLabelValues(metricName(name), outcome).Inc()
		r.logger.Info().
			Str("tool", name).
			Str("outcome", outcome).
			Dur("duration", time.Since(start)).
			Msg("tool executed")
	}()

	act, ok := r.actions[name]
	if !ok {
		return failure("Error: unknown tool '%s'", name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := Validate(args, r.schemas[name]); err != nil {
		return failure("Error: invalid arguments for %s: %v", name, err)
	}

	return act(ctx, args)
}

// metricName keeps label cardinality bounded for unknown tool names.
func metricName(name string) string {
	switch name {
	case CreateTodo, ReadTodos, UpdateTodo, DeleteTodo, SearchDocument:
		return name
	default:
		return "unknown"
	}
}

func (r *Registry) remember(ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.known[id] = true
	}
}

func (r *Registry) isKnown(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.known[id]
}
