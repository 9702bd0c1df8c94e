package tui

import (
	"context"
	"fmt"

	"agentdeck/internal/app"
	"agentdeck/internal/transport"

	"github.com/charmbracelet/bubbletea"
)

// Run starts the chat surface for one project and blocks until the user quits
// or authentication fails. The model never polls: store mutations and
// transport status changes are pushed into the program as messages.
func Run(a *app.Application, projectID string) error {
	if a.Tokens.Token() == "" {
		return fmt.Errorf("no saved token, run: agentdeck login <token>")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Store.FetchProject(ctx, projectID); err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if err := a.Store.FetchSessions(ctx, projectID); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	p := tea.NewProgram(New(a.Store, projectID), tea.WithAltScreen())

	unsubStore := a.Store.Subscribe(func() {
		p.Send(stateChangedMsg{})
	})
	defer unsubStore()

	unsubStatus := a.Conn.OnStatusChange(func(st transport.Status) {
		p.Send(connStatusMsg(st))
	})
	defer unsubStatus()

	go func() {
		select {
		case <-a.AuthFailed():
			p.Send(authFailedMsg{})
		case <-ctx.Done():
		}
	}()

	a.Conn.Connect()
	defer a.Shutdown()

	_, err := p.Run()
	return err
}
