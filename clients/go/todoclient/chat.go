package todoclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Event is one frame streamed by the agent.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// AgentError is an error event; the conversation stays usable.
type AgentError struct {
	Message string
}

func (e *AgentError) Error() string { return "agent: " + e.Message }

// Chat is an open conversation with the agent.
type Chat struct {
	conn *websocket.Conn
}

// Chat opens the WebSocket conversation using the cached token.
func (c *Client) Chat(ctx context.Context) (*Chat, error) {
	if c.Token == "" {
		return nil, fmt.Errorf("not logged in")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {c.Token}}.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial chat: %w", err)
	}
	return &Chat{conn: conn}, nil
}

// Send asks one question and calls onToken for every streamed fragment.
// It returns when the turn ends; an error event is returned as *AgentError.
func (ch *Chat) Send(ctx context.Context, text string, onToken func(string)) error {
	if err := ch.conn.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
		return err
	}

	for {
		var ev Event
		if err := wsjson.Read(ctx, ch.conn, &ev); err != nil {
			return err
		}
		switch ev.Type {
		case "start":
		case "token":
			if onToken != nil {
				onToken(ev.Content)
			}
		case "end":
			return nil
		case "error":
			return &AgentError{Message: ev.Content}
		}
	}
}

// Close ends the conversation.
func (ch *Chat) Close() error {
	return ch.conn.Close(websocket.StatusNormalClosure, "bye")
}
