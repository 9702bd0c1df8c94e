package state

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"agentdeck/internal/api"
	"agentdeck/internal/chat"
	"agentdeck/internal/transport"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   []any
	open   bool
	status transport.Status
}

func (c *fakeConn) Send(v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return false
	}
	c.sent = append(c.sent, v)
	return true
}

func (c *fakeConn) Status() transport.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *fakeConn) sentCommands() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.sent...)
}

type memTokens struct{}

func (memTokens) Token() string { return "tok" }
func (memTokens) Clear() error  { return nil }

func newTestStore(conn *fakeConn, handler http.Handler) (*Store, func()) {
	srv := httptest.NewServer(handler)
	client := api.NewClient(srv.URL, memTokens{}, nil)
	s := NewStore(conn, client, nil, DefaultModel, 0)
	return s, srv.Close
}

func okJSON(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func TestSendMessageTransmitsAndRecords(t *testing.T) {
	conn := &fakeConn{open: true, status: transport.StatusConnected}
	s, closeSrv := newTestStore(conn, http.NotFoundHandler())
	defer closeSrv()

	sid, err := s.SendMessage("hello there", "p1", "s1", "")
	if err != nil {
		t.Fatal(err)
	}
	if sid != "s1" {
		t.Fatalf("session id = %q", sid)
	}

	sent := conn.sentCommands()
	if len(sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(sent))
	}
	cmd, ok := sent[0].(chat.SendMessageCommand)
	if !ok {
		t.Fatalf("sent %T", sent[0])
	}
	if cmd.Message != "hello there" || cmd.ProjectID != "p1" || cmd.Model != DefaultModel {
		t.Fatalf("command = %+v", cmd)
	}

	msgs := s.Messages("s1")
	if len(msgs) != 1 || msgs[0].Role != chat.RoleUser || msgs[0].Content != "hello there" {
		t.Fatalf("messages = %+v", msgs)
	}
	if !s.IsStreaming("s1") {
		t.Fatalf("session not streaming after send")
	}
}

func TestSendMessageFailurePath(t *testing.T) {
	conn := &fakeConn{open: false, status: transport.StatusReconnecting}
	s, closeSrv := newTestStore(conn, http.NotFoundHandler())
	defer closeSrv()

	if _, err := s.SendMessage("hello", "p1", "s1", ""); err != nil {
		t.Fatal(err)
	}

	msgs := s.Messages("s1")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want exactly one synthetic error", len(msgs))
	}
	if msgs[0].Role != chat.RoleAssistant || !msgs[0].IsComplete {
		t.Fatalf("synthetic message = %+v", msgs[0])
	}
	if s.IsStreaming("s1") {
		t.Fatalf("send failure set the streaming flag")
	}
	if len(conn.sentCommands()) != 0 {
		t.Fatalf("command recorded as sent")
	}
}

func TestSendMessageValidation(t *testing.T) {
	conn := &fakeConn{open: true}
	s, closeSrv := newTestStore(conn, http.NotFoundHandler())
	defer closeSrv()

	if _, err := s.SendMessage("   ", "p1", "s1", ""); err == nil {
		t.Fatalf("blank message accepted")
	}
	if len(s.Messages("s1")) != 0 {
		t.Fatalf("rejected send mutated the log")
	}
}

func TestSendMessageDisplayText(t *testing.T) {
	conn := &fakeConn{open: true}
	s, closeSrv := newTestStore(conn, http.NotFoundHandler())
	defer closeSrv()

	_, _ = s.SendMessage("@file ctx\n\nfix it", "p1", "s1", "fix it")

	cmd := conn.sentCommands()[0].(chat.SendMessageCommand)
	if cmd.Message != "@file ctx\n\nfix it" {
		t.Fatalf("wire payload = %q", cmd.Message)
	}
	if got := s.Messages("s1")[0].Content; got != "fix it" {
		t.Fatalf("displayed content = %q", got)
	}
}

func TestDraftModeGeneratesSessionID(t *testing.T) {
	conn := &fakeConn{open: true}
	s, closeSrv := newTestStore(conn, http.NotFoundHandler())
	defer closeSrv()

	s.EnterDraftMode()
	if s.ActiveSessionID() != "" || !s.IsDraftMode() {
		t.Fatalf("draft mode state wrong")
	}

	sid, err := s.SendMessage("first message", "p1", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if sid == "" {
		t.Fatalf("no session id generated in draft mode")
	}
	if s.ActiveSessionID() != sid {
		t.Fatalf("draft session not activated: %q vs %q", s.ActiveSessionID(), sid)
	}
	if s.IsDraftMode() {
		t.Fatalf("still in draft mode after first send")
	}
	cmd := conn.sentCommands()[0].(chat.SendMessageCommand)
	if cmd.SessionID != sid {
		t.Fatalf("wire session id = %q, want %q", cmd.SessionID, sid)
	}
}

func TestAnsweringQuestionFoldsIntoToolUse(t *testing.T) {
	conn := &fakeConn{open: true}
	s, closeSrv := newTestStore(conn, http.NotFoundHandler())
	defer closeSrv()

	s.HandleEvent(chat.Event{Type: chat.EventMessageStart, SessionID: "s1"})
	s.HandleEvent(chat.Event{Type: chat.EventToolUseStart, SessionID: "s1", ToolID: "q1", ToolName: chat.QuestionToolName})
	s.HandleEvent(chat.Event{Type: chat.EventInputRequired, SessionID: "s1"})

	if !s.IsWaitingForInput("s1") || s.IsStreaming("s1") {
		t.Fatalf("flags before answer: waiting=%v streaming=%v",
			s.IsWaitingForInput("s1"), s.IsStreaming("s1"))
	}

	_, _ = s.SendMessage("option A", "p1", "s1", "")

	msgs := s.Messages("s1")
	question := msgs[0]
	if !question.IsComplete || question.ToolUses[0].Output != "option A" {
		t.Fatalf("question not folded: %+v", question.ToolUses[0])
	}
	if s.IsWaitingForInput("s1") || !s.IsStreaming("s1") {
		t.Fatalf("flags after answer wrong")
	}
}

func TestCancelRequestMutatesNothingLocally(t *testing.T) {
	conn := &fakeConn{open: true}
	s, closeSrv := newTestStore(conn, http.NotFoundHandler())
	defer closeSrv()

	s.HandleEvent(chat.Event{Type: chat.EventMessageStart, SessionID: "s1"})
	s.CancelRequest("s1")

	if !s.IsStreaming("s1") {
		t.Fatalf("cancel flipped streaming before the backend confirmed")
	}
	cmds := conn.sentCommands()
	if len(cmds) != 1 {
		t.Fatalf("sent %d commands", len(cmds))
	}
	if c, ok := cmds[0].(chat.CancelCommand); !ok || c.SessionID != "s1" {
		t.Fatalf("cancel command = %+v", cmds[0])
	}

	// Backend confirmation is what clears the flag.
	s.HandleEvent(chat.Event{Type: chat.EventCancelled, SessionID: "s1"})
	if s.IsStreaming("s1") {
		t.Fatalf("cancelled event did not clear streaming")
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	conn := &fakeConn{open: true}
	s, closeSrv := newTestStore(conn, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okJSON(w, map[string]any{"deleted": true})
	}))
	defer closeSrv()

	s.HandleEvent(chat.Event{Type: chat.EventMessageStart, SessionID: "s1"})
	s.HandleEvent(chat.Event{Type: chat.EventTextDelta, SessionID: "s1", Text: "hi"})
	s.SetActiveSession("s1")

	if err := s.DeleteSession(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}
	if len(s.Messages("s1")) != 0 || s.IsStreaming("s1") || s.IsWaitingForInput("s1") {
		t.Fatalf("delete left residue")
	}
	if s.ActiveSessionID() == "s1" {
		t.Fatalf("active session still points at deleted id")
	}

	// Events for the deleted id land in a fresh entry without panicking.
	s.HandleEvent(chat.Event{Type: chat.EventMessageStart, SessionID: "s1"})
	if len(s.Messages("s1")) != 1 {
		t.Fatalf("post-delete event not applied")
	}
}

func TestSessionRenamedUpdatesListInPlace(t *testing.T) {
	conn := &fakeConn{open: true}
	calls := 0
	s, closeSrv := newTestStore(conn, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		okJSON(w, api.SessionList{Sessions: []api.Session{{ID: "s1", Name: "old"}}, Total: 1})
	}))
	defer closeSrv()

	if err := s.FetchSessions(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	s.HandleEvent(chat.Event{Type: chat.EventSessionRenamed, SessionID: "s1", Name: "Fix the login bug"})

	sessions, _, _ := s.Sessions()
	if sessions[0].Name != "Fix the login bug" {
		t.Fatalf("session name = %q", sessions[0].Name)
	}
	if calls != 1 {
		t.Fatalf("rename triggered a refetch: %d calls", calls)
	}
}

func TestGlobalErrorIsSurfacedOutsideTheLog(t *testing.T) {
	conn := &fakeConn{open: true}
	s, closeSrv := newTestStore(conn, http.NotFoundHandler())
	defer closeSrv()

	s.HandleEvent(chat.Event{Type: chat.EventError, Error: "backend unavailable"})

	if got := s.GlobalError(); got != "backend unavailable" {
		t.Fatalf("global error = %q", got)
	}
	if len(s.Messages("")) != 0 {
		t.Fatalf("global error leaked into a session log")
	}
	s.ClearGlobalError()
	if s.GlobalError() != "" {
		t.Fatalf("global error not cleared")
	}
}

func TestHandleReconnectResubscribesActiveSession(t *testing.T) {
	conn := &fakeConn{open: true}
	s, closeSrv := newTestStore(conn, http.NotFoundHandler())
	defer closeSrv()

	s.HandleReconnect() // no active session, nothing to do
	if len(conn.sentCommands()) != 0 {
		t.Fatalf("subscribed with no active session")
	}

	s.SetActiveSession("s1")
	s.HandleReconnect()
	cmds := conn.sentCommands()
	if len(cmds) != 1 {
		t.Fatalf("sent %d commands", len(cmds))
	}
	if sub, ok := cmds[0].(chat.SubscribeCommand); !ok || sub.SessionID != "s1" || sub.Type != "subscribe" {
		t.Fatalf("subscribe = %+v", cmds[0])
	}
}

func TestSubscribersNotifiedOnMutation(t *testing.T) {
	conn := &fakeConn{open: true}
	s, closeSrv := newTestStore(conn, http.NotFoundHandler())
	defer closeSrv()

	var mu sync.Mutex
	notified := 0
	unsub := s.Subscribe(func() {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	s.HandleEvent(chat.Event{Type: chat.EventMessageStart, SessionID: "s1"})
	mu.Lock()
	n := notified
	mu.Unlock()
	if n == 0 {
		t.Fatalf("subscriber not notified")
	}

	unsub()
	s.HandleEvent(chat.Event{Type: chat.EventTextDelta, SessionID: "s1", Text: "x"})
	mu.Lock()
	defer mu.Unlock()
	if notified != n {
		t.Fatalf("unsubscribed listener still notified")
	}
}

func TestLoadSessionHistorySeedsEmptySessions(t *testing.T) {
	conn := &fakeConn{open: true}
	s, closeSrv := newTestStore(conn, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okJSON(w, api.MessageList{
			Messages: []api.StoredMessage{
				{ID: "m1", SessionID: "s1", Role: "user", Content: "hi", CreatedAt: "2026-08-30T10:00:00Z"},
				{ID: "m2", SessionID: "s1", Role: "assistant", Content: "hello", CreatedAt: "2026-08-30T10:00:05Z"},
			},
			Total: 2,
		})
	}))
	defer closeSrv()

	if err := s.LoadSessionHistory(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}
	msgs := s.Messages("s1")
	if len(msgs) != 2 || msgs[0].Role != chat.RoleUser || msgs[1].Role != chat.RoleAssistant {
		t.Fatalf("history = %+v", msgs)
	}
	if !msgs[1].IsComplete {
		t.Fatalf("historical message not complete")
	}
}
