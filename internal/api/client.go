// Package api is the REST client for the backend's project/session CRUD
// surface. Responses use a uniform {success, data, error} envelope; a 401
// clears the stored token and invokes the fatal-auth callback, the same path a
// fatal websocket close takes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnauthorized is returned after the token has been cleared and the
// fatal-auth callback has run.
var ErrUnauthorized = errors.New("unauthorized")

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
	Clear() error
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource

	// onAuthFailure runs once per 401 response, after the token is cleared.
	onAuthFailure func()
}

func NewClient(baseURL string, tokens TokenSource, onAuthFailure func()) *Client {
	return &Client{
		baseURL:       baseURL,
		http:          &http.Client{Timeout: 30 * time.Second},
		tokens:        tokens,
		onAuthFailure: onAuthFailure,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if c.tokens != nil {
			_ = c.tokens.Clear()
		}
		if c.onAuthFailure != nil {
			c.onAuthFailure()
		}
		return ErrUnauthorized
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	if resp.StatusCode >= 400 || !env.Success {
		if env.Error != "" {
			return errors.New(env.Error)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	if out != nil {
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return errors.New("empty response data")
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

func (c *Client) ListProjects(ctx context.Context, offset, limit int) (ProjectList, error) {
	var out ProjectList
	path := fmt.Sprintf("/api/projects?offset=%d&limit=%d", offset, limit)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var out Project
	err := c.do(ctx, http.MethodGet, "/api/projects/"+id, nil, &out)
	return out, err
}

func (c *Client) CreateProject(ctx context.Context, in ProjectCreate) (Project, error) {
	var out Project
	err := c.do(ctx, http.MethodPost, "/api/projects", in, &out)
	return out, err
}

func (c *Client) UpdateProject(ctx context.Context, id string, in ProjectUpdate) (Project, error) {
	var out Project
	err := c.do(ctx, http.MethodPatch, "/api/projects/"+id, in, &out)
	return out, err
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+id, nil, nil)
}

func (c *Client) ListSessions(ctx context.Context, projectID string) (SessionList, error) {
	var out SessionList
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/sessions", nil, &out)
	return out, err
}

func (c *Client) CreateSession(ctx context.Context, in SessionCreate) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/sessions", in, &out)
	return out, err
}

func (c *Client) UpdateSession(ctx context.Context, id string, in SessionUpdate) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPatch, "/api/sessions/"+id, in, &out)
	return out, err
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+id, nil, nil)
}

func (c *Client) ListSessionMessages(ctx context.Context, id string) (MessageList, error) {
	var out MessageList
	err := c.do(ctx, http.MethodGet, "/api/sessions/"+id+"/messages", nil, &out)
	return out, err
}
