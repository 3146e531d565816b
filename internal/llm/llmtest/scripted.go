// Package llmtest provides a deterministic scripted model for tests.
package llmtest

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/llm"
)

// ErrScriptExhausted is returned when the model is invoked more times than
// it has responses.
var ErrScriptExhausted = errors.New("llmtest: script exhausted")

// Response is one scripted model invocation: its chunks are streamed in
// order, then Err (if set) terminates the stream. With Block set the stream
// waits for context cancellation after the chunks.
type Response struct {
	Chunks []llm.Chunk
	Err    error
	Block  bool
}

// Text scripts a plain answer streamed as the given fragments.
func Text(fragments ...string) Response {
	r := Response{}
	for _, f := range fragments {
		r.Chunks = append(r.Chunks, llm.Chunk{Text: f})
	}
	return r
}

// Calls scripts a response that only requests tools.
func Calls(calls ...llm.ToolCall) Response {
	return Response{Chunks: []llm.Chunk{{ToolCalls: calls}}}
}

// Call builds a tool call.
func Call(id, name string, args map[string]any) llm.ToolCall {
	if args == nil {
		args = map[string]any{}
	}
	return llm.ToolCall{ID: id, Name: name, Arguments: args}
}

// Fail scripts an invocation that errors before producing anything.
func Fail(err error) Response {
	return Response{Err: err}
}

// Scripted replays responses in order and records every request.
type Scripted struct {
	mu        sync.Mutex
	responses []Response
	requests  []llm.Request
}

// NewScripted creates a model that answers with responses in order.
func NewScripted(responses ...Response) *Scripted {
	return &Scripted{responses: responses}
}

// Push appends more responses.
func (s *Scripted) Push(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

// Requests returns a copy of every request received so far.
func (s *Scripted) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.requests...)
}

// Calls reports how many times the model was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Stream implements llm.Model.
func (s *Scripted) Stream(ctx context.Context, req llm.Request) iter.Seq2[llm.Chunk, error] {
	s.mu.Lock()
	req.Messages = append([]llm.Message(nil), req.Messages...)
	s.requests = append(s.requests, req)

	var resp Response
	exhausted := len(s.responses) == 0
	if !exhausted {
		resp = s.responses[0]
		s.responses = s.responses[1:]
	}
	s.mu.Unlock()

	return func(yield func(llm.Chunk, error) bool) {
		if exhausted {
			yield(llm.Chunk{}, ErrScriptExhausted)
			return
		}
		for _, c := range resp.Chunks {
			if err := ctx.Err(); err != nil {
				yield(llm.Chunk{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if resp.Block {
			<-ctx.Done()
			yield(llm.Chunk{}, ctx.Err())
			return
		}
		if resp.Err != nil {
			yield(llm.Chunk{}, resp.Err)
		}
	}
}
