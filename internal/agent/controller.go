// Package agent runs conversation turns: it feeds history to the model,
// streams text back, dispatches requested tools and loops until the model
// answers without tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/llm"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/metrics"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/tools"
)

const (
	// DefaultMaxModelCalls bounds model invocations within one turn.
	DefaultMaxModelCalls = 12

	eventBuffer = 32
)

// SystemPrompt is the fixed instruction sent with every model invocation.
const SystemPrompt = `You are a smart Todo Assistant.

CRITICAL RULES:
1. When the user asks to Update or Delete a task by NAME (e.g., "Delete the milk task") or by NUMBER (e.g., "Delete task #1"):
   - First, CALL 'read_todos' to see the list.
   - Look for the task that matches the name or the visual number (#1, #2).
   - Find the 'Real ID' associated with it.
   - ONLY then call 'delete_todo' or 'update_todo' using that Real ID.

2. Never guess the ID. Always read the list first.
3. Use 'search_document' for questions about the user's uploaded document.`

var (
	// ErrTurnInProgress is returned when a turn is started while another runs.
	ErrTurnInProgress = errors.New("agent: turn already in progress")

	// ErrStepLimit is reported when a turn needs more model calls than allowed.
	ErrStepLimit = errors.New("agent: too many model calls in one turn")
)

// ToolExecutor runs tools on behalf of the model.
type ToolExecutor interface {
	Definitions() []mcp.Tool
	Execute(ctx context.Context, name string, args map[string]any) tools.Result
}

// turnAware executors are told when a new turn begins.
type turnAware interface {
	BeginTurn()
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxModelCalls sets the per-turn model invocation budget.
func WithMaxModelCalls(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxCalls = n
		}
	}
}

// Controller owns one conversation's history and runs its turns one at a time.
type Controller struct {
	model    llm.Model
	tools    ToolExecutor
	logger   zerolog.Logger
	system   string
	maxCalls int

	mu      sync.Mutex
	history []llm.Message

	state   atomic.Int32
	running atomic.Bool
}

// NewController creates a controller with an empty history.
func NewController(model llm.Model, executor ToolExecutor, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		model:    model,
		tools:    executor,
		logger:   logger.With().Str("component", "agent").Logger(),
		system:   SystemPrompt,
		maxCalls: DefaultMaxModelCalls,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the controller's current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// Messages returns a copy of the conversation history.
func (c *Controller) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Message(nil), c.history...)
}

func (c *Controller) appendHistory(msgs ...llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, msgs...)
}

// Turn starts a turn for the user's text and returns its event stream.
// The stream is start, zero or more tokens, then exactly one end or error,
// and is closed when the turn finishes. If ctx is cancelled the stream is
// closed without a final event.
func (c *Controller) Turn(ctx context.Context, text string) (<-chan Event, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrTurnInProgress
	}

	events := make(chan Event, eventBuffer)
	go c.run(ctx, text, events)
	return events, nil
}

func (c *Controller) run(ctx context.Context, text string, events chan<- Event) {
	start := time.Now()
	outcome := "end"
	modelCalls, toolCalls := 0, 0

	defer func() {
		c.setState(StateIdle)
		c.running.Store(false)
		close(events)

		metrics.TurnsTotal.WithLabelValues(outcome).Inc()
		c.logger.Info().
			Str("outcome", outcome).
			Int("model_calls", modelCalls).
			Int("tool_calls", toolCalls).
			Dur("duration", time.Since(start)).
			Msg("turn finished")
	}()

	if t, ok := c.tools.(turnAware); ok {
		t.BeginTurn()
	}
	c.appendHistory(llm.Message{Role: llm.RoleUser, Content: text})

	if !c.emit(ctx, events, Event{Type: EventStart}) {
		outcome = "cancelled"
		return
	}

	for {
		if modelCalls >= c.maxCalls {
			outcome = "error"
			c.logger.Warn().Int("limit", c.maxCalls).Msg("model call limit reached")
			c.emit(ctx, events, Event{Type: EventError, Content: fmt.Sprintf("%v (limit %d)", ErrStepLimit, c.maxCalls)})
			return
		}

		c.setState(StateAwaitingModel)
		modelCalls++
		msg, err := c.invoke(ctx, events)

		if ctx.Err() != nil {
			outcome = "cancelled"
			return
		}
		if err != nil {
			// Partial output of the failed invocation is dropped from history.
			outcome = "error"
			c.logger.Error().Err(err).Int("model_call", modelCalls).Msg("model invocation failed")
			c.emit(ctx, events, Event{Type: EventError, Content: err.Error()})
			return
		}

		assignCallIDs(msg.ToolCalls)
		c.appendHistory(msg)

		if len(msg.ToolCalls) == 0 {
			c.setState(StateTurnComplete)
			c.emit(ctx, events, Event{Type: EventEnd})
			return
		}

		c.setState(StateDispatchingTools)
		for _, call := range msg.ToolCalls {
			if ctx.Err() != nil {
				outcome = "cancelled"
				return
			}
			res := c.tools.Execute(ctx, call.Name, call.Arguments)
			toolCalls++
			c.appendHistory(llm.Message{
				Role:       llm.RoleTool,
				Content:    res.Content,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}
}

// invoke runs one model call, streaming each text fragment as a token
// event. It returns the complete assistant message.
func (c *Controller) invoke(ctx context.Context, events chan<- Event) (llm.Message, error) {
	start := time.Now()
	defer func() {
		metrics.ModelCallDuration.Observe(time.Since(start).Seconds())
	}()

	req := llm.Request{
		System:   c.system,
		Messages: c.Messages(),
		Tools:    c.tools.Definitions(),
	}

	msg := llm.Message{Role: llm.RoleAssistant}
	var text strings.Builder

	for chunk, err := range c.model.Stream(ctx, req) {
		if err != nil {
			return llm.Message{}, err
		}
		if chunk.Text != "" {
			c.setState(StateStreaming)
			text.WriteString(chunk.Text)
			if !c.emit(ctx, events, Event{Type: EventToken, Content: chunk.Text}) {
				return llm.Message{}, ctx.Err()
			}
			metrics.TokensStreamed.Inc()
		}
		msg.ToolCalls = append(msg.ToolCalls, chunk.ToolCalls...)
	}

	msg.Content = text.String()
	return msg, nil
}

// emit delivers ev unless ctx is cancelled first.
func (c *Controller) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// assignCallIDs gives every call a unique id within the response.
func assignCallIDs(calls []llm.ToolCall) {
	seen := make(map[string]bool, len(calls))
	for i := range calls {
		if calls[i].ID == "" || seen[calls[i].ID] {
			calls[i].ID = ulid.Make().String()
		}
		seen[calls[i].ID] = true
	}
}
