package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type memTokens struct {
	mu      sync.Mutex
	token   string
	cleared bool
}

func (t *memTokens) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

func (t *memTokens) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
	t.cleared = true
	return nil
}

func respond(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
		"error":   nil,
	})
}

func TestListProjectsDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		respond(w, ProjectList{
			Projects: []Project{{ID: "p1", Name: "demo"}},
			Total:    1,
		})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, &memTokens{token: "tok"}, nil)
	list, err := c.ListProjects(context.Background(), 0, 50)
	if err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Projects[0].ID != "p1" {
		t.Fatalf("list = %+v", list)
	}
}

func TestEnvelopeErrorIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"data":    nil,
			"error":   "Project not found",
		})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, &memTokens{token: "tok"}, nil)
	_, err := c.GetProject(context.Background(), "missing")
	if err == nil || err.Error() != "Project not found" {
		t.Fatalf("err = %v", err)
	}
}

func TestUnauthorizedClearsTokenAndSignals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	tokens := &memTokens{token: "expired"}
	signalled := false
	c := NewClient(srv.URL, tokens, func() { signalled = true })

	_, err := c.ListProjects(context.Background(), 0, 50)
	if err != ErrUnauthorized {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if !tokens.cleared {
		t.Fatalf("token not cleared on 401")
	}
	if !signalled {
		t.Fatalf("auth-failure callback not invoked")
	}
}

func TestCreateSessionPostsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/sessions" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var in SessionCreate
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode body: %v", err)
		}
		respond(w, Session{ID: "s1", ProjectID: in.ProjectID, Name: in.Name})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, &memTokens{token: "tok"}, nil)
	sess, err := c.CreateSession(context.Background(), SessionCreate{ProjectID: "p1", Name: "new chat"})
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID != "s1" || sess.ProjectID != "p1" || sess.Name != "new chat" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestDeleteSessionToleratesEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		respond(w, map[string]any{"deleted": true})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, &memTokens{token: "tok"}, nil)
	if err := c.DeleteSession(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}
}
