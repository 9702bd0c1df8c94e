// Package app wires the process together: config, logging, token store, REST
// client, the websocket connection manager and the reactive store. There is
// exactly one Application per process; the connection it owns is the single
// transport shared by every session.
package app

import (
	"sync"

	"agentdeck/internal/api"
	"agentdeck/internal/auth"
	"agentdeck/internal/state"
	"agentdeck/internal/transport"
)

type Application struct {
	Config Config
	Logger *Logger
	Tokens *auth.TokenStore
	API    *api.Client
	Conn   *transport.Manager
	Store  *state.Store

	authFailed   chan struct{}
	authFailOnce sync.Once
}

// NewApplication builds and wires all long-lived components. Nothing connects
// yet; the caller decides when to call Conn.Connect.
func NewApplication(cfg Config) *Application {
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = DefaultLogPath()
	}

	a := &Application{
		Config:     cfg,
		Logger:     NewFileLogger(logPath),
		Tokens:     auth.NewTokenStore(auth.DefaultTokenPath()),
		authFailed: make(chan struct{}),
	}

	// REST 401 and websocket close 1008 land in the same place: token is
	// cleared and the process is told to send the user back to login.
	a.API = api.NewClient(cfg.ServerURL, a.Tokens, a.signalAuthFailure)

	a.Conn = transport.NewManager(transport.Options{
		URL:           cfg.WebSocketURL(),
		Tokens:        a.Tokens,
		ReconnectBase: cfg.ReconnectBase(),
		ReconnectMax:  cfg.ReconnectMax(),
		PingInterval:  cfg.PingInterval(),
		Logger:        a.Logger,
		OnAuthFailure: a.signalAuthFailure,
	})

	a.Store = state.NewStore(a.Conn, a.API, a.Logger, cfg.Model, cfg.MaxBudgetUSD)
	a.Conn.OnEvent(a.Store.HandleEvent)
	a.Conn.OnReconnect(a.Store.HandleReconnect)

	return a
}

// AuthFailed is closed once when the backend fatally rejects credentials,
// over REST or over the websocket. The UI exits to its login surface.
func (a *Application) AuthFailed() <-chan struct{} {
	return a.authFailed
}

func (a *Application) signalAuthFailure() {
	a.authFailOnce.Do(func() {
		a.Logger.Error("authentication rejected, login required", nil)
		close(a.authFailed)
	})
}

// Shutdown closes the transport. Explicit disconnect never reconnects.
func (a *Application) Shutdown() {
	a.Conn.Disconnect()
}
