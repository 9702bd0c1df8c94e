package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_FileValues(t *testing.T) {
	t.Setenv("AGENTDECK_SERVER_URL", "")
	t.Setenv("AGENTDECK_MODEL", "")

	path := writeConfig(t, "server_url: https://agent.example.com/\nmodel: claude-sonnet-4-6\nmax_budget_usd: 2.5\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServerURL != "https://agent.example.com" {
		t.Errorf("ServerURL = %q, want trailing slash trimmed", cfg.ServerURL)
	}
	if cfg.Model != "claude-sonnet-4-6" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.MaxBudgetUSD != 2.5 {
		t.Errorf("MaxBudgetUSD = %v", cfg.MaxBudgetUSD)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("AGENTDECK_SERVER_URL", "http://env-host:9000")
	t.Setenv("AGENTDECK_MODEL", "claude-haiku-4-5")

	path := writeConfig(t, "server_url: http://file-host:8000\nmodel: claude-opus-4-6\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServerURL != "http://env-host:9000" {
		t.Errorf("ServerURL = %q, want env value", cfg.ServerURL)
	}
	if cfg.Model != "claude-haiku-4-5" {
		t.Errorf("Model = %q, want env value", cfg.Model)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AGENTDECK_SERVER_URL", "")
	t.Setenv("AGENTDECK_MODEL", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	if cfg.ServerURL != want.ServerURL || cfg.Model != want.Model {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadConfig_ClampsBadTimings(t *testing.T) {
	t.Setenv("AGENTDECK_SERVER_URL", "")
	t.Setenv("AGENTDECK_MODEL", "")

	path := writeConfig(t, "reconnect_base_ms: -5\nreconnect_max_ms: 1\nping_interval_ms: 0\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ReconnectBase() != time.Second {
		t.Errorf("ReconnectBase = %v", cfg.ReconnectBase())
	}
	if cfg.ReconnectMax() != 30*time.Second {
		t.Errorf("ReconnectMax = %v", cfg.ReconnectMax())
	}
	if cfg.PingInterval() != 25*time.Second {
		t.Errorf("PingInterval = %v", cfg.PingInterval())
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws/chat"},
		{"https://agent.example.com", "wss://agent.example.com/ws/chat"},
	}
	for _, tc := range tests {
		cfg := DefaultConfig()
		cfg.ServerURL = tc.server
		if got := cfg.WebSocketURL(); got != tc.want {
			t.Errorf("WebSocketURL(%q) = %q, want %q", tc.server, got, tc.want)
		}
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("AGENTDECK_SERVER_URL", "")
	t.Setenv("AGENTDECK_MODEL", "")

	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	cfg := DefaultConfig()
	cfg.ServerURL = "http://saved:8000"
	cfg.MaxBudgetUSD = 1.25

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.ServerURL != "http://saved:8000" || got.MaxBudgetUSD != 1.25 {
		t.Errorf("round trip = %+v", got)
	}
}
