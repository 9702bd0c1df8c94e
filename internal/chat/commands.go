package chat

import (
	"errors"
	"strings"
)

// Outbound commands sent to the backend. Builders validate shape only;
// whether a command makes sense right now (e.g. sending while a turn is in
// flight) is the store's business.

type SendMessageCommand struct {
	Type         string  `json:"type"`
	Message      string  `json:"message"`
	SessionID    string  `json:"session_id"`
	ProjectID    string  `json:"project_id"`
	Model        string  `json:"model,omitempty"`
	MaxBudgetUSD float64 `json:"max_budget_usd,omitempty"`
}

type CancelCommand struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type SubscribeCommand struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type PingCommand struct {
	Type string `json:"type"`
}

var (
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrMissingSessionID = errors.New("session id is required")
	ErrMissingProjectID = errors.New("project id is required")
)

// NewSendMessage builds a send_message command. The text is trimmed; an empty
// result is rejected. maxBudgetUSD of zero omits the field.
func NewSendMessage(text, sessionID, projectID, model string, maxBudgetUSD float64) (SendMessageCommand, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendMessageCommand{}, ErrEmptyMessage
	}
	if sessionID == "" {
		return SendMessageCommand{}, ErrMissingSessionID
	}
	if projectID == "" {
		return SendMessageCommand{}, ErrMissingProjectID
	}
	return SendMessageCommand{
		Type:         "send_message",
		Message:      text,
		SessionID:    sessionID,
		ProjectID:    projectID,
		Model:        model,
		MaxBudgetUSD: maxBudgetUSD,
	}, nil
}

func NewCancel(sessionID string) (CancelCommand, error) {
	if sessionID == "" {
		return CancelCommand{}, ErrMissingSessionID
	}
	return CancelCommand{Type: "cancel", SessionID: sessionID}, nil
}

func NewSubscribe(sessionID string) (SubscribeCommand, error) {
	if sessionID == "" {
		return SubscribeCommand{}, ErrMissingSessionID
	}
	return SubscribeCommand{Type: "subscribe", SessionID: sessionID}, nil
}

func NewUnsubscribe(sessionID string) (SubscribeCommand, error) {
	if sessionID == "" {
		return SubscribeCommand{}, ErrMissingSessionID
	}
	return SubscribeCommand{Type: "unsubscribe", SessionID: sessionID}, nil
}

func NewPing() PingCommand {
	return PingCommand{Type: "ping"}
}
