package tui

import (
	"fmt"
	"strings"
	"time"

	"agentdeck/internal/chat"
)

// staleAfter is how long a streaming session may stay silent before the view
// shows a stall hint. Derived state only; nothing in the core times out.
const staleAfter = 30 * time.Second

var markdown = newMarkdownRenderer()

// renderMessages formats a session's log for the viewport.
func renderMessages(msgs []chat.Message, width int) string {
	if len(msgs) == 0 {
		return mutedStyle.Render("No messages yet. Type below to start the conversation.")
	}
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderMessage(msg, width))
	}
	return b.String()
}

func renderMessage(msg chat.Message, width int) string {
	var b strings.Builder

	ts := msg.Timestamp.Format("15:04:05")
	switch msg.Role {
	case chat.RoleUser:
		b.WriteString(userHeaderStyle.Render(fmt.Sprintf("You • %s", ts)))
	default:
		header := fmt.Sprintf("Agent • %s", ts)
		if msg.IsStreaming {
			header += " …"
		}
		b.WriteString(assistantHeaderStyle.Render(header))
	}
	b.WriteString("\n")

	if msg.Thinking != "" {
		b.WriteString(thinkingStyle.Render(truncateLines(msg.Thinking, 3)))
		b.WriteString("\n")
	}

	for _, tool := range msg.ToolUses {
		b.WriteString(renderToolUse(tool))
		b.WriteString("\n")
	}

	if msg.Content != "" {
		if msg.Role == chat.RoleAssistant && msg.IsComplete {
			b.WriteString(markdown.Render(msg.Content, width))
		} else {
			// Plain text while streaming; half-open markdown constructs
			// render badly mid-delta.
			b.WriteString(wrapText(msg.Content, width))
		}
		b.WriteString("\n")
	}

	if msg.IsComplete && msg.CostUSD > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("cost $%.4f", msg.CostUSD)))
		b.WriteString("\n")
	}

	return b.String()
}

func renderToolUse(tool chat.ToolUse) string {
	if tool.ToolName == chat.QuestionToolName && !tool.IsComplete {
		return questionStyle.Render("? " + questionPrompt(tool) + " (type your answer below)")
	}

	marker := "⚙"
	style := toolStyle
	switch {
	case tool.IsError:
		marker = "✗"
		style = toolErrorStyle
	case tool.IsComplete:
		marker = "✓"
	}

	line := fmt.Sprintf("%s %s", marker, tool.ToolName)
	if summary := toolInputSummary(tool.Input); summary != "" {
		line += " " + summary
	}
	out := style.Render(line)
	if tool.IsComplete && tool.Output != "" {
		out += "\n" + mutedStyle.Render("  "+truncateLines(tool.Output, 4))
	}
	return out
}

// questionPrompt pulls a human-readable question out of the interactive
// tool's input payload, falling back to the tool name.
func questionPrompt(tool chat.ToolUse) string {
	if q, ok := tool.Input["question"].(string); ok && q != "" {
		return q
	}
	if qs, ok := tool.Input["questions"].([]any); ok && len(qs) > 0 {
		if m, ok := qs[0].(map[string]any); ok {
			if q, ok := m["question"].(string); ok && q != "" {
				return q
			}
		}
	}
	return "The agent is waiting for your input"
}

func toolInputSummary(input map[string]any) string {
	for _, key := range []string{"command", "file_path", "path", "pattern", "url"} {
		if v, ok := input[key].(string); ok && v != "" {
			return truncate(v, 60)
		}
	}
	return ""
}

// staleHint returns a stall warning when a streaming session has been silent
// past the threshold, else "".
func staleHint(streaming bool, lastEvent time.Time, now time.Time) string {
	if !streaming || lastEvent.IsZero() {
		return ""
	}
	silent := now.Sub(lastEvent)
	if silent < staleAfter {
		return ""
	}
	return fmt.Sprintf("no output for %ds", int(silent.Seconds()))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func truncateLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	kept := lines[:n]
	return strings.Join(kept, "\n") + "\n…"
}

func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		for len(line) > width {
			cut := strings.LastIndex(line[:width], " ")
			if cut <= 0 {
				cut = width
			}
			out = append(out, line[:cut])
			line = strings.TrimLeft(line[cut:], " ")
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
