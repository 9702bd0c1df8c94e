// Package auth stores the backend bearer token on disk, the terminal
// equivalent of the browser's local storage: read on every connect attempt,
// cleared when the backend rejects it.
package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenStore reads and writes the token file. The zero value is not usable;
// construct with NewTokenStore.
type TokenStore struct {
	path string

	mu     sync.Mutex
	cached string
	loaded bool
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// DefaultTokenPath places the token next to the config file under the user
// config dir.
func DefaultTokenPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "agentdeck", "token")
}

// Token returns the stored token, or "" when none is saved. The file is read
// once and cached; Save and Clear keep the cache in sync.
func (s *TokenStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cached
	}
	s.loaded = true
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.cached = ""
		return ""
	}
	s.cached = strings.TrimSpace(string(data))
	return s.cached
}

func (s *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return err
	}
	s.mu.Lock()
	s.cached = token
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *TokenStore) Clear() error {
	s.mu.Lock()
	s.cached = ""
	s.loaded = true
	s.mu.Unlock()
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// StaticToken is a fixed in-memory token source for tests and one-off
// commands.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

func (t StaticToken) Clear() error { return nil }
