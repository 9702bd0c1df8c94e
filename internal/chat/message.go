package chat

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// QuestionToolName is the interactive tool the agent uses to pause a turn and
// ask the user a structured question. A ToolUse with this name stays open until
// the user answers (see Log.RecordOutgoing).
const QuestionToolName = "AskUserQuestion"

// ToolUse is one agent-invoked action nested inside an assistant message. The
// tool id is server-issued and unique within the message.
type ToolUse struct {
	ToolID     string
	ToolName   string
	Input      map[string]any
	Output     string
	IsError    bool
	IsComplete bool
}

// Message is one entry in a session's chat log. Assistant messages mutate in
// place while streaming; once IsComplete is true no field changes again.
type Message struct {
	ID          string
	Role        Role
	Content     string
	Thinking    string
	ToolUses    []ToolUse
	IsStreaming bool
	IsComplete  bool
	Timestamp   time.Time
	Usage       map[string]float64
	CostUSD     float64
}

// OpenToolUses reports whether the message still has tool uses awaiting
// completion.
func (m *Message) OpenToolUses() bool {
	for i := range m.ToolUses {
		if !m.ToolUses[i].IsComplete {
			return true
		}
	}
	return false
}

func (m *Message) completeToolUses() {
	for i := range m.ToolUses {
		m.ToolUses[i].IsComplete = true
	}
}

func (m *Message) findToolUse(toolID string) *ToolUse {
	for i := range m.ToolUses {
		if m.ToolUses[i].ToolID == toolID {
			return &m.ToolUses[i]
		}
	}
	return nil
}
