package format

import (
	"fmt"
	"strings"

	"pkt.systems/avorun/schema"
)

// PlainRenderer formats run messages as plain text lines.
type PlainRenderer struct{}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// FormatMessage converts a run message into user-facing lines. Heartbeats
// render as nothing; terminal messages render as a result line.
func (p *PlainRenderer) FormatMessage(m schema.Message) ([]string, error) {
	if m.Finished() {
		return p.formatResult(m), nil
	}
	switch m.Status {
	case schema.StatusStarted:
		return []string{"started"}, nil
	case schema.StatusRunning:
		if m.Type == "" {
			return nil, nil
		}
	}
	switch m.Type {
	case schema.PayloadStderr:
		return markLines("stderr: ", splitLines(strings.TrimRight(m.Text, "\n"))), nil
	case schema.PayloadLog:
		return markLines("log: ", splitLines(strings.TrimRight(m.Text, "\n"))), nil
	case schema.PayloadWhiteboard:
		return formatWhiteboard(m), nil
	default:
		return nil, nil
	}
}

func (p *PlainRenderer) formatResult(m schema.Message) []string {
	line := fmt.Sprintf("result: %s", m.Status)
	if m.FailReason != "" {
		line = fmt.Sprintf("%s (%s)", line, m.FailReason)
	}
	lines := []string{line}
	if m.FailClass != "" {
		lines = append(lines, fmt.Sprintf("fail class: %s", m.FailClass))
	}
	if m.Traceback != "" {
		lines = append(lines, splitLines(strings.TrimRight(m.Traceback, "\n"))...)
	}
	return lines
}

func formatWhiteboard(m schema.Message) []string {
	lines := splitLines(strings.TrimRight(m.Text, "\n"))
	if len(lines) == 0 {
		return []string{"whiteboard updated"}
	}
	out := []string{"whiteboard:"}
	for _, line := range lines {
		out = append(out, "  "+line)
	}
	return out
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func markLines(marker string, lines []string) []string {
	if marker == "" || len(lines) == 0 {
		return lines
	}
	marked := make([]string, 0, len(lines))
	for _, line := range lines {
		marked = append(marked, marker+line)
	}
	return marked
}
