package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Log holds every session's message history plus the per-session streaming and
// waiting-for-input flags. All mutation goes through Apply, RecordOutgoing,
// RecordSendFailure and DeleteSession; callers must serialize access (the
// store does, under its own lock).
//
// Events for one session must be applied in backend-emission order. Across
// sessions there is no ordering requirement — each session is an independent
// map entry.
type Log struct {
	messages  map[string][]*Message
	streaming map[string]bool
	waiting   map[string]bool
	lastEvent map[string]time.Time

	// Debugf, when set, receives protocol anomalies that are tolerated but
	// worth recording (e.g. a tool_result for an unknown tool id).
	Debugf func(msg string, fields map[string]any)
}

func NewLog() *Log {
	return &Log{
		messages:  make(map[string][]*Message),
		streaming: make(map[string]bool),
		waiting:   make(map[string]bool),
		lastEvent: make(map[string]time.Time),
	}
}

// Apply folds one inbound event into the log. Events without a session id and
// session-list events (session_created, session_renamed) are not log events
// and are ignored here; the store routes those separately.
func (l *Log) Apply(ev Event) {
	sid := ev.SessionID
	if sid == "" {
		return
	}

	switch ev.Type {
	case EventMessageStart:
		l.touch(sid)
		// A backend turn can end without an explicit completion (e.g. after
		// an answered question), so close out whatever is still open first.
		if prev := l.lastAssistant(sid); prev != nil && !prev.IsComplete {
			prev.IsComplete = true
			prev.IsStreaming = false
			prev.completeToolUses()
		}
		l.messages[sid] = append(l.messages[sid], &Message{
			ID:          uuid.NewString(),
			Role:        RoleAssistant,
			IsStreaming: true,
			Timestamp:   time.Now(),
		})
		l.streaming[sid] = true
		l.waiting[sid] = false

	case EventTextDelta:
		l.touch(sid)
		if last := l.lastAssistant(sid); last != nil {
			// Text arriving after tool calls means they have all finished.
			last.completeToolUses()
			last.Content += ev.Text
		}

	case EventThinkingDelta:
		l.touch(sid)
		if last := l.lastAssistant(sid); last != nil {
			last.Thinking += ev.Thinking
		}

	case EventToolUseStart:
		l.touch(sid)
		if last := l.lastAssistant(sid); last != nil {
			// A new tool starting supersedes any still-open predecessors; the
			// backend does not promise explicit results for them.
			last.completeToolUses()
			last.ToolUses = append(last.ToolUses, ToolUse{
				ToolID:   ev.ToolID,
				ToolName: ev.ToolName,
				Input:    ev.Input,
			})
		}

	case EventToolResult:
		l.touch(sid)
		if last := l.lastAssistant(sid); last != nil {
			if tool := last.findToolUse(ev.ToolID); tool != nil {
				tool.Output = ev.Output
				tool.IsError = ev.IsError
				tool.IsComplete = true
			} else {
				l.debugf("tool_result for unknown tool id", map[string]any{
					"session_id": sid,
					"tool_id":    ev.ToolID,
				})
			}
		}

	case EventInputRequired:
		l.touch(sid)
		// The question tool stays open and the message stays incomplete so
		// the UI keeps the question actionable.
		if last := l.lastAssistant(sid); last != nil {
			last.IsStreaming = false
		}
		l.streaming[sid] = false
		l.waiting[sid] = true

	case EventMessageComplete:
		l.touch(sid)
		if last := l.lastAssistant(sid); last != nil {
			last.IsStreaming = false
			last.IsComplete = true
			last.Usage = ev.Usage
			last.CostUSD = ev.CostUSD
			last.completeToolUses()
		}
		l.streaming[sid] = false
		l.waiting[sid] = false

	case EventCancelled:
		l.touch(sid)
		if last := l.lastAssistant(sid); last != nil {
			last.IsStreaming = false
			last.IsComplete = true
			last.completeToolUses()
		}
		l.streaming[sid] = false
		l.waiting[sid] = false

	case EventError:
		l.touch(sid)
		if last := l.lastAssistant(sid); last != nil && last.IsStreaming {
			last.IsStreaming = false
			last.IsComplete = true
			last.completeToolUses()
		}
		l.streaming[sid] = false
		l.waiting[sid] = false
		l.messages[sid] = append(l.messages[sid], &Message{
			ID:         uuid.NewString(),
			Role:       RoleAssistant,
			Content:    fmt.Sprintf("Error: %s", ev.Error),
			IsComplete: true,
			Timestamp:  time.Now(),
		})

	case EventTaskReplay:
		for _, sub := range ev.Events {
			l.Apply(sub)
		}
		if ev.IsComplete {
			// The server has declared the replayed turn over even if the
			// recorded stream stopped mid-message.
			if last := l.lastAssistant(sid); last != nil && !last.IsComplete {
				last.IsStreaming = false
				last.IsComplete = true
				last.completeToolUses()
			}
			l.streaming[sid] = false
			l.waiting[sid] = false
		}
	}
}

// RecordOutgoing appends the user's sent message after a successful transmit
// and flips the session to streaming. If the previous assistant message still
// has an unanswered interactive question, it is closed out with the user's
// text as its answer so the question card never stays live once the user has
// moved on. displayText, when non-empty, is what the log shows; text is what
// went over the wire.
func (l *Log) RecordOutgoing(sessionID, text, displayText string) {
	if last := l.lastAssistant(sessionID); last != nil {
		for i := range last.ToolUses {
			tool := &last.ToolUses[i]
			if tool.ToolName == QuestionToolName && !tool.IsComplete {
				tool.IsComplete = true
				tool.Output = text
			}
		}
		if !last.IsComplete {
			last.IsComplete = true
			last.IsStreaming = false
		}
	}

	content := text
	if displayText != "" {
		content = displayText
	}
	l.messages[sessionID] = append(l.messages[sessionID], &Message{
		ID:         uuid.NewString(),
		Role:       RoleUser,
		Content:    content,
		IsComplete: true,
		Timestamp:  time.Now(),
	})
	l.streaming[sessionID] = true
	l.waiting[sessionID] = false
	l.touch(sessionID)
}

// RecordSendFailure appends a synthetic assistant message explaining why the
// user's text never went out. Session flags are left alone — nothing is in
// flight.
func (l *Log) RecordSendFailure(sessionID, reason string) {
	l.messages[sessionID] = append(l.messages[sessionID], &Message{
		ID:         uuid.NewString(),
		Role:       RoleAssistant,
		Content:    reason,
		IsComplete: true,
		Timestamp:  time.Now(),
	})
}

// Seed replaces a session's history with messages fetched over REST. It is a
// no-op when the session already has local messages, so a live stream is never
// clobbered by a slower history fetch.
func (l *Log) Seed(sessionID string, msgs []*Message) {
	if len(l.messages[sessionID]) > 0 {
		return
	}
	l.messages[sessionID] = msgs
}

// DeleteSession purges a session's history and flags. Later events for the
// same id start from a fresh empty entry.
func (l *Log) DeleteSession(sessionID string) {
	delete(l.messages, sessionID)
	delete(l.streaming, sessionID)
	delete(l.waiting, sessionID)
	delete(l.lastEvent, sessionID)
}

// Messages returns a snapshot of a session's log. Tool-use slices are copied
// so the caller's view is stable while streaming continues.
func (l *Log) Messages(sessionID string) []Message {
	src := l.messages[sessionID]
	out := make([]Message, len(src))
	for i, m := range src {
		cp := *m
		cp.ToolUses = append([]ToolUse(nil), m.ToolUses...)
		out[i] = cp
	}
	return out
}

func (l *Log) IsStreaming(sessionID string) bool { return l.streaming[sessionID] }

func (l *Log) IsWaitingForInput(sessionID string) bool { return l.waiting[sessionID] }

// LastEventAt reports when the session last saw any event. Zero time means
// never. Presentation layers derive staleness from this; the log itself never
// times anything out.
func (l *Log) LastEventAt(sessionID string) time.Time { return l.lastEvent[sessionID] }

func (l *Log) lastAssistant(sessionID string) *Message {
	msgs := l.messages[sessionID]
	if len(msgs) == 0 {
		return nil
	}
	last := msgs[len(msgs)-1]
	if last.Role != RoleAssistant {
		return nil
	}
	return last
}

func (l *Log) touch(sessionID string) {
	l.lastEvent[sessionID] = time.Now()
}

func (l *Log) debugf(msg string, fields map[string]any) {
	if l.Debugf != nil {
		l.Debugf(msg, fields)
	}
}
