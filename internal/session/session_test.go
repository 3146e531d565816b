package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/agent"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/auth"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/knowledge"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/llm"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/llm/llmtest"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/metrics"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/tools"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose stats worker starts at package init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type testServer struct {
	url   string
	store *store.MemoryStore
	owner int64
	token string
	model *llmtest.Scripted
	wg    sync.WaitGroup
}

func newTestServer(t *testing.T, model llm.Model) *testServer {
	t.Helper()
	ctx := context.Background()

	s := store.NewMemoryStore()
	u, err := s.CreateUser(ctx, "user@example.com", "hash")
	require.NoError(t, err)

	tokens := auth.NewTokens("test-secret", time.Minute)
	tok, err := tokens.Issue(u.Email)
	require.NoError(t, err)

	deps := AgentDeps{
		Model:     model,
		Tasks:     s,
		Knowledge: knowledge.NewService(knowledge.NewMemoryIndex(), zerolog.Nop()),
		Logger:    zerolog.Nop(),
	}
	h := NewHandler(auth.NewAuthenticator(tokens, s), deps.Factory(), zerolog.Nop())

	ts := &testServer{
		store: s,
		owner: u.ID,
		token: tok,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.wg.Add(1)
		defer ts.wg.Done()
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	ts.url = "ws" + strings.TrimPrefix(srv.URL, "http")

	if scripted, ok := model.(*llmtest.Scripted); ok {
		ts.model = scripted
	}
	return ts
}

func (ts *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := ts.url
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.Dial(testContext(t), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.CloseNow()
		ts.waitDone(t)
	})
	return conn
}

func (ts *testServer) waitDone(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		ts.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return")
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func readEvents(t *testing.T, conn *websocket.Conn, n int) []agent.Event {
	t.Helper()
	ctx := testContext(t)
	out := make([]agent.Event, 0, n)
	for range n {
		var ev agent.Event
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		out = append(out, ev)
	}
	return out
}

func send(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.Write(testContext(t), websocket.MessageText, []byte(text)))
}

func TestHandler_RejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"missing", "", "Authentication token missing."},
		{"invalid", "not.a.jwt", "Session expired."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, llmtest.NewScripted())
			conn := ts.dial(t, tt.token)

			events := readEvents(t, conn, 1)
			assert.Equal(t, agent.Event{Type: agent.EventError, Content: tt.want}, events[0])

			_, _, err := conn.Read(testContext(t))
			assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
			ts.waitDone(t)
			assert.Zero(t, ts.model.Calls())
		})
	}
}

func TestHandler_UnknownUser(t *testing.T) {
	ts := newTestServer(t, llmtest.NewScripted())
	ghost, err := auth.NewTokens("test-secret", time.Minute).Issue("ghost@example.com")
	require.NoError(t, err)

	conn := ts.dial(t, ghost)
	events := readEvents(t, conn, 1)
	assert.Equal(t, "User account not found.", events[0].Content)

	_, _, err = conn.Read(testContext(t))
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
}

func TestHandler_AgentInitFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t, ts.token)

	events := readEvents(t, conn, 1)
	assert.Equal(t, agent.Event{Type: agent.EventError, Content: InitFailed}, events[0])

	_, _, err := conn.Read(testContext(t))
	assert.Equal(t, websocket.StatusInternalError, websocket.CloseStatus(err))
}

func TestSession_StreamsTurn(t *testing.T) {
	ts := newTestServer(t, llmtest.NewScripted(llmtest.Text("Hello", " there")))
	conn := ts.dial(t, ts.token)

	send(t, conn, "hi")
	events := readEvents(t, conn, 4)
	assert.Equal(t, []agent.Event{
		{Type: agent.EventStart},
		{Type: agent.EventToken, Content: "Hello"},
		{Type: agent.EventToken, Content: " there"},
		{Type: agent.EventEnd},
	}, events)
}

func TestSession_ToolsActOnConnectedUser(t *testing.T) {
	ts := newTestServer(t, llmtest.NewScripted(
		llmtest.Calls(llmtest.Call("c1", tools.CreateTodo, map[string]any{"title": "Buy milk"})),
		llmtest.Text("Added."),
	))
	conn := ts.dial(t, ts.token)

	send(t, conn, "add buy milk")
	events := readEvents(t, conn, 3)
	assert.Equal(t, agent.EventEnd, events[2].Type)

	tasks, err := ts.store.ListTasks(context.Background(), ts.owner)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
}

func TestSession_IgnoresBinaryAndBlankFrames(t *testing.T) {
	ts := newTestServer(t, llmtest.NewScripted(llmtest.Text("ok")))
	conn := ts.dial(t, ts.token)
	ctx := testContext(t)

	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02}))
	send(t, conn, "   ")
	send(t, conn, "hi")

	events := readEvents(t, conn, 3)
	assert.Equal(t, agent.EventStart, events[0].Type)
	assert.Equal(t, "ok", events[1].Content)
	assert.Equal(t, 1, ts.model.Calls())
}

func TestSession_QueuedMessagesRunInOrder(t *testing.T) {
	ts := newTestServer(t, llmtest.NewScripted(llmtest.Text("first"), llmtest.Text("second")))
	conn := ts.dial(t, ts.token)

	send(t, conn, "one")
	send(t, conn, "two")

	events := readEvents(t, conn, 6)
	assert.Equal(t, "first", events[1].Content)
	assert.Equal(t, agent.EventEnd, events[2].Type)
	assert.Equal(t, agent.EventStart, events[3].Type)
	assert.Equal(t, "second", events[4].Content)

	reqs := ts.model.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Messages, 3)
	assert.Equal(t, "two", reqs[1].Messages[2].Content)
}

func TestSession_ModelFailureKeepsConnection(t *testing.T) {
	ts := newTestServer(t, llmtest.NewScripted(
		llmtest.Fail(assert.AnError),
		llmtest.Text("recovered"),
	))
	conn := ts.dial(t, ts.token)

	send(t, conn, "one")
	events := readEvents(t, conn, 2)
	assert.Equal(t, agent.Event{Type: agent.EventError, Content: assert.AnError.Error()}, events[1])

	send(t, conn, "two")
	events = readEvents(t, conn, 3)
	assert.Equal(t, "recovered", events[1].Content)
}

func TestSession_DisconnectCancelsTurn(t *testing.T) {
	blocked := llmtest.Text("thinking")
	blocked.Block = true
	ts := newTestServer(t, llmtest.NewScripted(blocked))
	conn := ts.dial(t, ts.token)

	send(t, conn, "hi")
	events := readEvents(t, conn, 2)
	assert.Equal(t, "thinking", events[1].Content)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActiveSessions))

	conn.CloseNow()
	ts.waitDone(t)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ActiveSessions))
}

func TestOriginHosts(t *testing.T) {
	assert.Equal(t,
		[]string{"localhost:5173", "app.example.com", "*.example.org"},
		OriginHosts([]string{"http://localhost:5173", "https://app.example.com", "*.example.org"}),
	)
}

func TestSession_QueueOverflowClosesAndCancelsTurn(t *testing.T) {
	blocked := llmtest.Text("thinking")
	blocked.Block = true
	ts := newTestServer(t, llmtest.NewScripted(blocked))
	conn := ts.dial(t, ts.token)

	send(t, conn, "first")
	events := readEvents(t, conn, 2)
	assert.Equal(t, agent.EventStart, events[0].Type)

	ctx := testContext(t)
	for range DefaultQueueSize + 1 {
		if err := conn.Write(ctx, websocket.MessageText, []byte("more")); err != nil {
			break
		}
	}

	var err error
	for err == nil {
		_, _, err = conn.Read(ctx)
	}
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	ts.waitDone(t)
	assert.Equal(t, 1, ts.model.Calls(), "queued messages never reached the model")
}

func TestSession_DisconnectWithFullQueueCancelsTurn(t *testing.T) {
	blocked := llmtest.Text("thinking")
	blocked.Block = true
	ts := newTestServer(t, llmtest.NewScripted(blocked))
	conn := ts.dial(t, ts.token)

	send(t, conn, "first")
	readEvents(t, conn, 2)
	for range DefaultQueueSize {
		send(t, conn, "waiting")
	}

	conn.CloseNow()
	ts.waitDone(t)
}
