package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agentdeck/internal/state"
	"agentdeck/internal/transport"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Messages pumped into the program from outside the update loop.
type (
	// stateChangedMsg means the store mutated; re-read snapshots.
	stateChangedMsg struct{}
	// connStatusMsg carries a transport status transition.
	connStatusMsg transport.Status
	// authFailedMsg means credentials were fatally rejected.
	authFailedMsg struct{}
	tickMsg       time.Time
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Model is the chat surface: one project, its sessions, and the active
// session's streamed log. All state lives in the store; the model only holds
// view concerns.
type Model struct {
	store     *state.Store
	projectID string

	input    textarea.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	status     transport.Status
	everLive   bool
	spinner    int
	now        time.Time
	fatalAuth  bool
	notice     string
	modelIndex int
}

func New(store *state.Store, projectID string) *Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message… (Enter to send, Esc to cancel a running turn)"
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetHeight(3)
	ta.Prompt = "▍ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	idx := 0
	for i, opt := range state.ModelOptions() {
		if opt.ID == store.SelectedModel() {
			idx = i
		}
	}

	return &Model{
		store:      store,
		projectID:  projectID,
		input:      ta,
		status:     store.ConnectionStatus(),
		now:        time.Now(),
		modelIndex: idx,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 4)
		vpHeight := msg.Height - 9
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = vpHeight
		}
		m.refreshViewport()
		return m, nil

	case stateChangedMsg:
		m.refreshViewport()
		return m, nil

	case connStatusMsg:
		m.status = transport.Status(msg)
		if m.status == transport.StatusConnected {
			m.everLive = true
		}
		return m, nil

	case authFailedMsg:
		m.fatalAuth = true
		return m, tea.Quit

	case tickMsg:
		m.now = time.Time(msg)
		m.spinner = (m.spinner + 1) % len(spinnerFrames)
		return m, tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "enter":
			return m, m.sendCurrentInput()

		case "esc":
			if sid := m.store.ActiveSessionID(); sid != "" && m.store.IsStreaming(sid) {
				m.store.CancelRequest(sid)
				m.notice = "cancel requested"
			}
			return m, nil

		case "ctrl+n":
			m.store.EnterDraftMode()
			m.notice = "new conversation"
			return m, nil

		case "ctrl+s":
			m.cycleSession()
			return m, nil

		case "ctrl+o":
			m.cycleModel()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) sendCurrentInput() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	sid := m.store.ActiveSessionID()
	if sid == "" && !m.store.IsDraftMode() {
		m.store.EnterDraftMode()
	}
	if _, err := m.store.SendMessage(text, m.projectID, sid, ""); err != nil {
		m.notice = err.Error()
		return nil
	}
	m.input.Reset()
	m.notice = ""
	return nil
}

func (m *Model) cycleSession() {
	sessions, _, _ := m.store.Sessions()
	if len(sessions) == 0 {
		return
	}
	active := m.store.ActiveSessionID()
	next := 0
	for i, sess := range sessions {
		if sess.ID == active {
			next = (i + 1) % len(sessions)
			break
		}
	}
	sid := sessions[next].ID
	m.store.SetActiveSession(sid)
	if len(m.store.Messages(sid)) == 0 {
		go func() {
			_ = m.store.LoadSessionHistory(context.Background(), sid)
		}()
	}
}

func (m *Model) cycleModel() {
	opts := state.ModelOptions()
	m.modelIndex = (m.modelIndex + 1) % len(opts)
	m.store.SetSelectedModel(opts[m.modelIndex].ID)
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(renderMessages(m.store.ActiveMessages(), m.viewport.Width-2))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) View() string {
	if m.fatalAuth {
		return errorStyle.Render("Authentication rejected. Run: agentdeck login <token>") + "\n"
	}
	if !m.ready {
		return "loading…"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderActivity())
	b.WriteString(inputStyle.Width(m.width - 2).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • esc cancel • ctrl+n new • ctrl+s next session • ctrl+o model • ctrl+c quit"))
	return b.String()
}

func (m *Model) renderHeader() string {
	title := "agentdeck"
	if proj := m.store.CurrentProject(); proj != nil {
		title = proj.Name
	}

	session := "draft"
	if sid := m.store.ActiveSessionID(); sid != "" {
		session = sid
		sessions, _, _ := m.store.Sessions()
		for _, sess := range sessions {
			if sess.ID == sid && sess.Name != "" {
				session = sess.Name
			}
		}
	}

	left := fmt.Sprintf("%s / %s", title, truncate(session, 40))
	right := fmt.Sprintf("%s  %s", m.store.SelectedModel(), m.renderStatus())
	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return headerStyle.Width(m.width - 2).Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) renderStatus() string {
	switch m.status {
	case transport.StatusConnected:
		return statusConnectedStyle.Render("● connected")
	case transport.StatusReconnecting:
		return statusReconnectingStyle.Render("● reconnecting")
	case transport.StatusConnecting:
		// Suppress the scary color during normal startup.
		if !m.everLive {
			return mutedStyle.Render("● connecting")
		}
		return statusReconnectingStyle.Render("● connecting")
	default:
		return statusDisconnectedStyle.Render("● disconnected")
	}
}

func (m *Model) renderActivity() string {
	var parts []string

	if gerr := m.store.GlobalError(); gerr != "" {
		parts = append(parts, errorStyle.Render("server: "+gerr))
	}

	sid := m.store.ActiveSessionID()
	if sid != "" {
		switch {
		case m.store.IsWaitingForInput(sid):
			parts = append(parts, questionStyle.Render("waiting for your answer"))
		case m.store.IsStreaming(sid):
			line := statusConnectedStyle.Render(spinnerFrames[m.spinner] + " working")
			if hint := staleHint(true, m.store.LastEventAt(sid), m.now); hint != "" {
				line += "  " + statusReconnectingStyle.Render(hint)
			}
			parts = append(parts, line)
		}
	}

	if m.notice != "" {
		parts = append(parts, mutedStyle.Render(m.notice))
	}

	if len(parts) == 0 {
		return ""
	}
	return helpStyle.Render(strings.Join(parts, "  ")) + "\n"
}
