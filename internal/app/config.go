package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerURL       string  `yaml:"server_url"`
	Model           string  `yaml:"model"`
	MaxBudgetUSD    float64 `yaml:"max_budget_usd"`
	ReconnectBaseMS int     `yaml:"reconnect_base_ms"`
	ReconnectMaxMS  int     `yaml:"reconnect_max_ms"`
	PingIntervalMS  int     `yaml:"ping_interval_ms"`
	LogFile         string  `yaml:"log_file"`
}

func DefaultConfig() Config {
	return Config{
		ServerURL:       "http://localhost:8000",
		Model:           "claude-opus-4-6",
		ReconnectBaseMS: 1000,
		ReconnectMaxMS:  30000,
		PingIntervalMS:  25000,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if env := os.Getenv("AGENTDECK_SERVER_URL"); env != "" {
		cfg.ServerURL = env
	}
	if env := os.Getenv("AGENTDECK_MODEL"); env != "" {
		cfg.Model = env
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:8000"
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if cfg.ReconnectBaseMS <= 0 {
		cfg.ReconnectBaseMS = 1000
	}
	if cfg.ReconnectMaxMS < cfg.ReconnectBaseMS {
		cfg.ReconnectMaxMS = 30000
	}
	if cfg.PingIntervalMS <= 0 {
		cfg.PingIntervalMS = 25000
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return errors.New("no config path available")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "agentdeck", "config.yml")
}

func (c Config) ReconnectBase() time.Duration {
	return time.Duration(c.ReconnectBaseMS) * time.Millisecond
}

func (c Config) ReconnectMax() time.Duration {
	return time.Duration(c.ReconnectMaxMS) * time.Millisecond
}

func (c Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMS) * time.Millisecond
}

// WebSocketURL derives the chat websocket endpoint from the configured server
// URL (http → ws, https → wss).
func (c Config) WebSocketURL() string {
	u := c.ServerURL
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return strings.TrimRight(u, "/") + "/ws/chat"
}
