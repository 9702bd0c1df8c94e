package app

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Logger writes JSON lines. The TUI owns stdout, so the application logs to a
// file under the user config dir by default.
type Logger struct {
	out io.Writer
}

type LogEvent struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func NewLogger(out io.Writer) *Logger {
	return &Logger{out: out}
}

// NewFileLogger appends to the given path, creating parent directories as
// needed. An unopenable path degrades to a discard logger rather than failing
// startup.
func NewFileLogger(path string) *Logger {
	if path == "" {
		return &Logger{out: io.Discard}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Logger{out: io.Discard}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &Logger{out: io.Discard}
	}
	return &Logger{out: f}
}

func DefaultLogPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "agentdeck", "agentdeck.log")
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.write("debug", message, fields)
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write("info", message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write("error", message, fields)
}

func (l *Logger) write(level, message string, fields map[string]any) {
	evt := LogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Message:   message,
		Fields:    fields,
	}
	payload, _ := json.Marshal(evt)
	payload = append(payload, '\n')
	_, _ = l.out.Write(payload)
}
