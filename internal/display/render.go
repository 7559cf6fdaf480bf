package display

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/baaaaaaaka/claude_code_reader/internal/transcript"
)

// Title is the heading shown for a unit in terminal views.
func (u Unit) Title() string {
	switch u.Kind {
	case KindUser:
		return "User"
	case KindAssistant:
		if u.Model != "" {
			return "Assistant (" + u.Model + ")"
		}
		return "Assistant"
	case KindToolResult:
		return "Tool result"
	case KindCompactSummary:
		return "Compacted summary"
	case KindSystem:
		if u.SystemLabel != "" {
			return "System: " + u.SystemLabel
		}
		return "System"
	}
	return string(u.Kind)
}

// Lines renders the unit's content blocks as plain text. Tool inputs are
// shown compacted on one line.
func (u Unit) Lines() []string {
	var out []string
	addText := func(s string) {
		out = append(out, strings.Split(strings.TrimRight(s, "\n"), "\n")...)
	}
	for _, raw := range u.Content {
		block, err := transcript.ParseObject(raw)
		if err != nil {
			continue
		}
		kind, _ := block.String("type")
		switch kind {
		case "text":
			s, _ := block.String("text")
			addText(s)
		case "thinking":
			out = append(out, "[thinking]")
			if s, ok := block.String("thinking"); ok {
				addText(s)
			} else if s, ok := block.String("text"); ok {
				addText(s)
			}
		case "redacted_thinking":
			out = append(out, "[redacted thinking]")
		case "tool_use":
			name, _ := block.String("name")
			line := "[tool: " + name + "]"
			if input, ok := block.Get("input"); ok {
				var compact bytes.Buffer
				if json.Compact(&compact, input) == nil {
					line += " " + compact.String()
				}
			}
			out = append(out, line)
		case "tool_result":
			if block.Bool("is_error") {
				out = append(out, "[error]")
			}
			if s, ok := block.String("content"); ok {
				addText(s)
			} else if items, ok := block.Array("content"); ok {
				for _, item := range items {
					obj, err := transcript.ParseObject(item)
					if err != nil {
						continue
					}
					if s, ok := obj.String("text"); ok {
						addText(s)
					} else if t, _ := obj.String("type"); t != "" {
						out = append(out, "["+t+"]")
					}
				}
			}
		default:
			if s, ok := block.String("text"); ok {
				addText(s)
			} else if kind != "" {
				out = append(out, "["+kind+"]")
			}
		}
	}
	return out
}
