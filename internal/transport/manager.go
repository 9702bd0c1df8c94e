// Package transport owns the single websocket connection to the backend:
// dialing, reconnection with jittered exponential backoff, heartbeats, auth
// token attachment, and delivery of parsed inbound events to one handler.
package transport

import (
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"agentdeck/internal/chat"
)

// Status is the process-wide connection state. There is one transport shared
// by every session, so this is not per-session.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusReconnecting Status = "reconnecting"
)

const (
	DefaultReconnectBase = 1 * time.Second
	DefaultReconnectMax  = 30 * time.Second
	DefaultPingInterval  = 25 * time.Second

	jitterMax = time.Second
)

// closeCodeAuthFailure is how the backend rejects a bad or expired token
// (policy violation close). It is fatal: the stored token is cleared and no
// reconnect is attempted.
const closeCodeAuthFailure = websocket.ClosePolicyViolation

// Conn is the slice of a websocket connection the manager uses. gorilla's
// *websocket.Conn satisfies it; tests inject scripted fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a connection to the given ws:// or wss:// URL.
type Dialer func(rawURL string) (Conn, error)

// DefaultDialer dials with gorilla's default websocket dialer.
func DefaultDialer(rawURL string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// TokenSource supplies the bearer token attached to every connection attempt
// and clears it when the backend declares it invalid.
type TokenSource interface {
	Token() string
	Clear() error
}

// Logger is the subset of the app logger the transport needs.
type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// Options configures a Manager. URL is required; zero durations fall back to
// the defaults above.
type Options struct {
	URL           string
	Tokens        TokenSource
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	PingInterval  time.Duration
	Dial          Dialer
	Logger        Logger

	// OnAuthFailure runs after a fatal auth close, once the token has been
	// cleared. The process-level "redirect to login".
	OnAuthFailure func()
}

// Manager maintains at most one live connection. Connect is idempotent; an
// unexpected close schedules a reconnect; an explicit Disconnect never does.
type Manager struct {
	opts Options

	mu             sync.Mutex
	conn           Conn
	status         Status
	attempt        int
	epoch          int
	reconnectTimer *time.Timer
	pingStop       chan struct{}
	handler        func(chat.Event)
	statusSubs     map[int]func(Status)
	reconnectSubs  map[int]func()
	nextSub        int
	pending        []statusNote

	writeMu sync.Mutex
}

func NewManager(opts Options) *Manager {
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = DefaultReconnectBase
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = DefaultReconnectMax
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.Dial == nil {
		opts.Dial = DefaultDialer
	}
	return &Manager{
		opts:          opts,
		status:        StatusDisconnected,
		statusSubs:    make(map[int]func(Status)),
		reconnectSubs: make(map[int]func()),
	}
}

// Connect opens the connection if one is not already open or opening. With no
// token available it settles on disconnected without dialing; the caller owns
// sending the user to login.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.status == StatusConnecting || m.status == StatusConnected {
		m.mu.Unlock()
		return
	}
	m.setStatusLocked(StatusConnecting)

	token := ""
	if m.opts.Tokens != nil {
		token = m.opts.Tokens.Token()
	}
	if token == "" {
		m.setStatusLocked(StatusDisconnected)
		m.mu.Unlock()
		m.flushStatus()
		return
	}
	epoch := m.epoch
	m.mu.Unlock()
	m.flushStatus()

	go m.dialAndRun(token, epoch)
}

// Disconnect closes the connection and cancels any pending reconnect. It
// never triggers a reconnect itself.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.epoch++
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.stopPingLocked()
	c := m.conn
	m.conn = nil
	m.setStatusLocked(StatusDisconnected)
	m.mu.Unlock()
	m.flushStatus()

	if c != nil {
		_ = c.Close()
	}
}

// Send marshals and transmits v if the connection is open right now. It never
// queues; false means the message did not go out and the caller must surface
// that.
func (m *Manager) Send(v any) bool {
	m.mu.Lock()
	c := m.conn
	open := m.status == StatusConnected && c != nil
	m.mu.Unlock()
	if !open {
		return false
	}

	m.writeMu.Lock()
	err := c.WriteJSON(v)
	m.writeMu.Unlock()
	if err != nil {
		m.logError("websocket write failed", map[string]any{"error": err.Error()})
		return false
	}
	return true
}

// OnEvent registers the single inbound-event handler. Re-registering replaces
// the previous handler. pong frames never reach it.
func (m *Manager) OnEvent(handler func(chat.Event)) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// OnStatusChange subscribes to status transitions. The current value is read
// via Status, not pushed on subscribe.
func (m *Manager) OnStatusChange(fn func(Status)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.statusSubs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.statusSubs, id)
		m.mu.Unlock()
	}
}

// OnReconnect subscribes to recoveries: it fires when a connection opens after
// at least one reconnect was scheduled in the current down episode, and never
// on the first-ever connect. Subscribers use it to re-establish server-side
// session interest the backend will not replay on its own.
func (m *Manager) OnReconnect(fn func()) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.reconnectSubs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.reconnectSubs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) dialAndRun(token string, epoch int) {
	conn, err := m.opts.Dial(m.urlWithToken(token))

	m.mu.Lock()
	if m.epoch != epoch {
		// Disconnected while dialing; the attempt no longer matters.
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.logError("websocket dial failed", map[string]any{"error": err.Error()})
		m.setStatusLocked(StatusReconnecting)
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		m.flushStatus()
		return
	}

	m.conn = conn
	wasReconnect := m.attempt > 0
	m.attempt = 0
	m.setStatusLocked(StatusConnected)
	m.startPingLocked()
	var recon []func()
	if wasReconnect {
		for _, fn := range m.reconnectSubs {
			recon = append(recon, fn)
		}
	}
	m.mu.Unlock()
	m.flushStatus()

	for _, fn := range recon {
		fn()
	}
	m.readLoop(conn, epoch)
}

func (m *Manager) readLoop(conn Conn, epoch int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(err, epoch)
			return
		}
		ev, perr := chat.ParseEvent(data)
		if perr != nil {
			// Malformed frames must not take down the pipeline.
			continue
		}
		if ev.Type == chat.EventPong {
			continue
		}
		m.mu.Lock()
		h := m.handler
		m.mu.Unlock()
		if h != nil {
			h(ev)
		}
	}
}

func (m *Manager) handleClose(err error, epoch int) {
	m.mu.Lock()
	if m.epoch != epoch {
		// Explicit Disconnect already cleaned up.
		m.mu.Unlock()
		return
	}
	m.stopPingLocked()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}

	if websocket.IsCloseError(err, closeCodeAuthFailure) {
		m.logError("websocket closed: authentication rejected", nil)
		m.setStatusLocked(StatusDisconnected)
		onAuth := m.opts.OnAuthFailure
		m.mu.Unlock()
		m.flushStatus()
		if m.opts.Tokens != nil {
			_ = m.opts.Tokens.Clear()
		}
		if onAuth != nil {
			onAuth()
		}
		return
	}

	m.logError("websocket closed", map[string]any{"error": err.Error()})
	m.setStatusLocked(StatusReconnecting)
	m.scheduleReconnectLocked()
	m.mu.Unlock()
	m.flushStatus()
}

func (m *Manager) scheduleReconnectLocked() {
	delay := Backoff(m.attempt, m.opts.ReconnectBase, m.opts.ReconnectMax)
	m.attempt++
	m.reconnectTimer = time.AfterFunc(delay, m.Connect)
}

func (m *Manager) startPingLocked() {
	stop := make(chan struct{})
	m.pingStop = stop
	interval := m.opts.PingInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				// No acknowledgement tracking; a dead link surfaces through
				// the read loop's close error, not a missed pong.
				m.Send(chat.NewPing())
			}
		}
	}()
}

func (m *Manager) stopPingLocked() {
	if m.pingStop != nil {
		close(m.pingStop)
		m.pingStop = nil
	}
}

type statusNote struct {
	status Status
	subs   []func(Status)
}

// setStatusLocked records the transition and queues subscriber notification.
// Callers hold m.mu and must call flushStatus after unlocking, so subscribers
// run outside the lock and may safely call back into the manager.
func (m *Manager) setStatusLocked(s Status) {
	if m.status == s {
		return
	}
	m.status = s
	subs := make([]func(Status), 0, len(m.statusSubs))
	for _, fn := range m.statusSubs {
		subs = append(subs, fn)
	}
	m.pending = append(m.pending, statusNote{status: s, subs: subs})
}

func (m *Manager) flushStatus() {
	m.mu.Lock()
	notes := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, n := range notes {
		for _, fn := range n.subs {
			fn(n.status)
		}
	}
}

func (m *Manager) urlWithToken(token string) string {
	return m.opts.URL + "?token=" + url.QueryEscape(token)
}

func (m *Manager) logError(msg string, fields map[string]any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Error(msg, fields)
	}
}

// Backoff computes the delay before reconnect attempt n: base doubled per
// attempt plus up to one second of jitter, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	d += time.Duration(rand.Int63n(int64(jitterMax)))
	if d > max {
		d = max
	}
	return d
}
