package chat

import "encoding/json"

// Inbound event types pushed by the backend over the websocket. One JSON
// object per frame, discriminated by "type".
const (
	EventMessageStart    = "message_start"
	EventTextDelta       = "text_delta"
	EventThinkingDelta   = "thinking_delta"
	EventToolUseStart    = "tool_use_start"
	EventToolResult      = "tool_result"
	EventMessageComplete = "message_complete"
	EventInputRequired   = "input_required"
	EventSessionCreated  = "session_created"
	EventSessionRenamed  = "session_renamed"
	EventCancelled       = "cancelled"
	EventPong            = "pong"
	EventError           = "error"
	EventTaskReplay      = "task_replay"
)

// Event is the decoded form of a backend frame. The backend sends flat objects
// so a single struct with per-type fields mirrors the wire exactly; fields not
// relevant to a given type are zero.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`

	// text_delta / thinking_delta
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`

	// tool_use_start / tool_result
	ToolID   string         `json:"tool_id,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
	Output   string         `json:"output,omitempty"`
	IsError  bool           `json:"is_error,omitempty"`

	// message_complete
	ResultText string             `json:"result_text,omitempty"`
	Usage      map[string]float64 `json:"usage,omitempty"`
	CostUSD    float64            `json:"cost_usd,omitempty"`

	// session_renamed
	Name string `json:"name,omitempty"`

	// error
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`

	// task_replay
	Events     []Event `json:"events,omitempty"`
	IsComplete bool    `json:"is_complete,omitempty"`
}

// ParseEvent decodes one inbound frame. A frame that is not a JSON object with
// a string "type" is an error; the transport drops such frames.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Global reports whether the event carries no session id and therefore cannot
// be applied to any session log (e.g. an error before routing).
func (e Event) Global() bool {
	return e.SessionID == ""
}
