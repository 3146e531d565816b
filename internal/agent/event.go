package agent

// EventType is the kind of an outbound turn event.
type EventType string

const (
	EventStart EventType = "start"
	EventToken EventType = "token"
	EventEnd   EventType = "end"
	EventError EventType = "error"
)

// Event is one item of a turn's output stream, written to the client as
// {"type": ..., "content": ...}.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
}

// State is the controller's position in a turn.
type State int32

const (
	StateIdle State = iota
	StateAwaitingModel
	StateStreaming
	StateDispatchingTools
	StateTurnComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateStreaming:
		return "streaming"
	case StateDispatchingTools:
		return "dispatching_tools"
	case StateTurnComplete:
		return "turn_complete"
	default:
		return "unknown"
	}
}
