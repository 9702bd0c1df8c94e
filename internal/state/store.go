// Package state is the single reactive store behind every view: it composes
// the session event log, project/session CRUD results and UI-only fields
// (active session, draft mode, selected model), and notifies subscribers after
// each mutation. It owns all writes; views only read snapshots.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentdeck/internal/api"
	"agentdeck/internal/chat"
	"agentdeck/internal/transport"
)

const sendFailureNotice = "Unable to send message: not connected to the server. Waiting for reconnection."

// Conn is what the store needs from the connection manager.
type Conn interface {
	Send(v any) bool
	Status() transport.Status
}

// Logger is the subset of the app logger the store uses.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type Store struct {
	conn         Conn
	api          *api.Client
	logger       Logger
	maxBudgetUSD float64

	mu  sync.Mutex
	log *chat.Log

	projects        []api.Project
	projectsTotal   int
	projectsLoading bool
	currentProject  *api.Project

	sessions        []api.Session
	sessionsTotal   int
	sessionsLoading bool

	activeSessionID string
	draftMode       bool
	selectedModel   string
	globalError     string

	subs    map[int]func()
	nextSub int
}

func NewStore(conn Conn, client *api.Client, logger Logger, model string, maxBudgetUSD float64) *Store {
	if model == "" {
		model = DefaultModel
	}
	s := &Store{
		conn:          conn,
		api:           client,
		logger:        logger,
		maxBudgetUSD:  maxBudgetUSD,
		log:           chat.NewLog(),
		selectedModel: model,
		subs:          make(map[int]func()),
	}
	s.log.Debugf = func(msg string, fields map[string]any) {
		if logger != nil {
			logger.Debug(msg, fields)
		}
	}
	return s
}

// Subscribe registers a change listener, called after every mutation. The
// returned func unsubscribes.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// HandleEvent is the single inbound-event entry point, registered as the
// connection manager's handler. Session-list events and global errors are
// store concerns; everything else folds into the log.
func (s *Store) HandleEvent(ev chat.Event) {
	switch ev.Type {
	case chat.EventSessionCreated:
		s.mu.Lock()
		proj := s.currentProject
		s.mu.Unlock()
		if proj != nil {
			// Refresh off the read loop; the handler must never block on REST.
			go func(id string) {
				_ = s.FetchSessions(context.Background(), id)
			}(proj.ID)
		}
		return

	case chat.EventSessionRenamed:
		s.mu.Lock()
		for i := range s.sessions {
			if s.sessions[i].ID == ev.SessionID {
				s.sessions[i].Name = ev.Name
			}
		}
		s.mu.Unlock()
		s.notify()
		return

	case chat.EventError:
		if ev.Global() {
			if s.logger != nil {
				s.logger.Error("backend error", map[string]any{"error": ev.Error, "code": ev.Code})
			}
			s.mu.Lock()
			s.globalError = ev.Error
			s.mu.Unlock()
			s.notify()
			return
		}
	}

	if ev.Global() {
		return
	}
	s.mu.Lock()
	s.log.Apply(ev)
	s.mu.Unlock()
	s.notify()
}

// HandleReconnect re-establishes server-side interest in the active session
// after a recovered connection; the backend does not replay subscriptions on
// its own.
func (s *Store) HandleReconnect() {
	s.mu.Lock()
	sid := s.activeSessionID
	s.mu.Unlock()
	if sid == "" {
		return
	}
	cmd, err := chat.NewSubscribe(sid)
	if err != nil {
		return
	}
	if !s.conn.Send(cmd) && s.logger != nil {
		s.logger.Error("resubscribe after reconnect failed", map[string]any{"session_id": sid})
	}
}

// SendMessage transmits the user's text for the given session. In draft mode
// (empty sessionID) a fresh session id is generated client-side and returned;
// the backend acknowledges it with session_created. displayText, when set, is
// what the log shows instead of the wire payload.
//
// On transport failure exactly one synthetic assistant error message is
// appended and no flag changes; the text is never silently dropped from view,
// but it was not delivered either.
func (s *Store) SendMessage(text, projectID, sessionID, displayText string) (string, error) {
	s.mu.Lock()
	model := s.selectedModel
	draft := s.draftMode
	if sessionID == "" && draft {
		sessionID = uuid.NewString()
	}
	s.mu.Unlock()

	cmd, err := chat.NewSendMessage(text, sessionID, projectID, model, s.maxBudgetUSD)
	if err != nil {
		return sessionID, err
	}

	sent := s.conn.Send(cmd)

	s.mu.Lock()
	if !sent {
		s.log.RecordSendFailure(sessionID, sendFailureNotice)
	} else {
		s.log.RecordOutgoing(sessionID, cmd.Message, displayText)
		if draft {
			s.activeSessionID = sessionID
			s.draftMode = false
		}
	}
	s.mu.Unlock()
	s.notify()
	return sessionID, nil
}

// CancelRequest asks the backend to stop the in-flight turn. No local state
// changes: the resulting cancelled event keeps the log consistent, avoiding a
// window where the UI shows idle while deltas are still arriving.
func (s *Store) CancelRequest(sessionID string) {
	cmd, err := chat.NewCancel(sessionID)
	if err != nil {
		return
	}
	if !s.conn.Send(cmd) && s.logger != nil {
		s.logger.Error("cancel not sent", map[string]any{"session_id": sessionID})
	}
}

// --- Projects ---

func (s *Store) FetchProjects(ctx context.Context) error {
	s.mu.Lock()
	s.projectsLoading = true
	s.mu.Unlock()
	s.notify()

	list, err := s.api.ListProjects(ctx, 0, 50)
	s.mu.Lock()
	s.projectsLoading = false
	if err == nil {
		s.projects = list.Projects
		s.projectsTotal = list.Total
	}
	s.mu.Unlock()
	s.notify()
	return err
}

func (s *Store) FetchProject(ctx context.Context, id string) error {
	proj, err := s.api.GetProject(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.currentProject = &proj
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) CreateProject(ctx context.Context, name, description string) (api.Project, error) {
	proj, err := s.api.CreateProject(ctx, api.ProjectCreate{Name: name, Description: description})
	if err != nil {
		return api.Project{}, err
	}
	s.mu.Lock()
	s.projects = append([]api.Project{proj}, s.projects...)
	s.projectsTotal++
	s.mu.Unlock()
	s.notify()
	return proj, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := s.api.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	kept := s.projects[:0]
	for _, p := range s.projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.projects = kept
	s.projectsTotal--
	if s.currentProject != nil && s.currentProject.ID == id {
		s.currentProject = nil
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// --- Sessions ---

func (s *Store) FetchSessions(ctx context.Context, projectID string) error {
	s.mu.Lock()
	s.sessionsLoading = true
	s.mu.Unlock()
	s.notify()

	list, err := s.api.ListSessions(ctx, projectID)
	s.mu.Lock()
	s.sessionsLoading = false
	if err == nil {
		s.sessions = list.Sessions
		s.sessionsTotal = list.Total
	}
	s.mu.Unlock()
	s.notify()
	return err
}

func (s *Store) CreateSession(ctx context.Context, projectID, name string) (api.Session, error) {
	sess, err := s.api.CreateSession(ctx, api.SessionCreate{ProjectID: projectID, Name: name})
	if err != nil {
		return api.Session{}, err
	}
	s.mu.Lock()
	s.sessions = append([]api.Session{sess}, s.sessions...)
	s.sessionsTotal++
	s.activeSessionID = sess.ID
	s.draftMode = false
	s.mu.Unlock()
	s.notify()
	return sess, nil
}

// DeleteSession removes the session server-side, then purges its message log
// and flag entries so a reused id starts clean.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.api.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ID != id {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
	s.sessionsTotal--
	if s.activeSessionID == id {
		s.activeSessionID = ""
		if len(s.sessions) > 0 {
			s.activeSessionID = s.sessions[0].ID
		}
	}
	s.log.DeleteSession(id)
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) RenameSession(ctx context.Context, id, name string) error {
	if _, err := s.api.UpdateSession(ctx, id, api.SessionUpdate{Name: name}); err != nil {
		return err
	}
	s.mu.Lock()
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			s.sessions[i].Name = name
		}
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// LoadSessionHistory fetches persisted messages for a session and seeds the
// log with them. Sessions that already have local messages are untouched.
func (s *Store) LoadSessionHistory(ctx context.Context, id string) error {
	list, err := s.api.ListSessionMessages(ctx, id)
	if err != nil {
		return err
	}
	msgs := make([]*chat.Message, 0, len(list.Messages))
	for _, m := range list.Messages {
		role := chat.RoleUser
		if m.Role != string(chat.RoleUser) {
			role = chat.RoleAssistant
		}
		ts, _ := time.Parse(time.RFC3339, m.CreatedAt)
		msgs = append(msgs, &chat.Message{
			ID:         m.ID,
			Role:       role,
			Content:    m.Content,
			Thinking:   m.Thinking,
			IsComplete: true,
			Timestamp:  ts,
		})
	}
	s.mu.Lock()
	s.log.Seed(id, msgs)
	s.mu.Unlock()
	s.notify()
	return nil
}

// --- UI state ---

func (s *Store) SetActiveSession(id string) {
	s.mu.Lock()
	s.activeSessionID = id
	if id != "" {
		s.draftMode = false
	}
	s.mu.Unlock()
	s.notify()
}

// EnterDraftMode represents a conversation that does not exist server-side
// yet; the first message sent establishes it.
func (s *Store) EnterDraftMode() {
	s.mu.Lock()
	s.activeSessionID = ""
	s.draftMode = true
	s.mu.Unlock()
	s.notify()
}

func (s *Store) SetSelectedModel(model string) {
	s.mu.Lock()
	s.selectedModel = model
	s.mu.Unlock()
	s.notify()
}

func (s *Store) ClearGlobalError() {
	s.mu.Lock()
	s.globalError = ""
	s.mu.Unlock()
	s.notify()
}

// --- Read snapshots ---

func (s *Store) Projects() ([]api.Project, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Project(nil), s.projects...), s.projectsTotal, s.projectsLoading
}

func (s *Store) CurrentProject() *api.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentProject == nil {
		return nil
	}
	cp := *s.currentProject
	return &cp
}

func (s *Store) Sessions() ([]api.Session, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Session(nil), s.sessions...), s.sessionsTotal, s.sessionsLoading
}

func (s *Store) ActiveSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSessionID
}

func (s *Store) IsDraftMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftMode
}

func (s *Store) SelectedModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedModel
}

func (s *Store) GlobalError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalError
}

func (s *Store) Messages(sessionID string) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Messages(sessionID)
}

// ActiveMessages returns the active session's log, or nil when in draft mode
// with no session selected.
func (s *Store) ActiveMessages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeSessionID == "" {
		return nil
	}
	return s.log.Messages(s.activeSessionID)
}

func (s *Store) IsStreaming(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.IsStreaming(sessionID)
}

func (s *Store) IsWaitingForInput(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.IsWaitingForInput(sessionID)
}

// LastEventAt supports staleness hints in the presentation layer: time since
// the session last saw any event.
func (s *Store) LastEventAt(sessionID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.LastEventAt(sessionID)
}

func (s *Store) ConnectionStatus() transport.Status {
	return s.conn.Status()
}
