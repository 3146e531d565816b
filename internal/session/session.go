// Package session serves the chat WebSocket: it authenticates the
// connection, then feeds inbound text frames to the user's agent one turn
// at a time and writes every turn event back as a JSON frame.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/agent"
)

// DefaultQueueSize bounds inbound messages waiting for their turn.
const DefaultQueueSize = 8

// ErrQueueFull ends a session whose client sends more messages than can
// wait behind the running turn.
var ErrQueueFull = errors.New("message queue full")

// Agent runs conversation turns.
type Agent interface {
	Turn(ctx context.Context, text string) (<-chan agent.Event, error)
}

// Session is one authenticated chat connection.
type Session struct {
	id     string
	conn   *websocket.Conn
	agent  Agent
	logger zerolog.Logger
	queue  int
}

// Run serves the connection until the client disconnects or ctx is
// cancelled. A clean close by the client returns nil.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	inbound := make(chan string, s.queue)

	g.Go(func() error {
		defer close(inbound)
		return s.readLoop(ctx, inbound)
	})
	g.Go(func() error {
		return s.turnLoop(ctx, inbound)
	})

	err := g.Wait()
	if isClientGone(err) {
		return nil
	}
	return err
}

// readLoop queues text frames. Binary and blank frames are ignored. It never
// waits on the queue, so a disconnect is seen while a turn is running.
func (s *Session) readLoop(ctx context.Context, inbound chan<- string) error {
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			s.logger.Debug().Int("bytes", len(data)).Msg("ignoring binary frame")
			continue
		}

		text := string(data)
		if strings.TrimSpace(text) == "" {
			continue
		}

		select {
		case inbound <- text:
		default:
			s.logger.Warn().Int("queued", len(inbound)).Msg("inbound queue full")
			return ErrQueueFull
		}
	}
}

// turnLoop runs queued messages through the agent sequentially.
func (s *Session) turnLoop(ctx context.Context, inbound <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case text, ok := <-inbound:
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := s.runTurn(ctx, text); err != nil {
				return err
			}
		}
	}
}

func (s *Session) runTurn(ctx context.Context, text string) error {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	events, err := s.agent.Turn(turnCtx, text)
	if err != nil {
		return s.write(ctx, agent.Event{Type: agent.EventError, Content: err.Error()})
	}

	var last agent.EventType
	for ev := range events {
		if err := s.write(ctx, ev); err != nil {
			cancel()
			for range events {
			}
			return err
		}
		last = ev.Type
	}

	s.logger.Info().
		Str("outcome", string(last)).
		Dur("duration", time.Since(start)).
		Msg("turn delivered")
	return nil
}

func (s *Session) write(ctx context.Context, ev agent.Event) error {
	return wsjson.Write(ctx, s.conn, ev)
}

// isClientGone reports whether err only means the peer went away.
func isClientGone(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return true
	}
	return false
}
