package display

import "encoding/json"

type Kind string

const (
	KindUser           Kind = "user"
	KindAssistant      Kind = "assistant"
	KindToolResult     Kind = "tool_result"
	KindCompactSummary Kind = "compact_summary"
	KindSystem         Kind = "system"
)

// Unit is one renderable projection of a transcript record. BlockIndexMap[i]
// is the position in the record's message.content array of Content[i], so
// edits made against a unit can be written back to the right block.
type Unit struct {
	SourceID       string            `json:"sourceUuid"`
	ID             string            `json:"displayId"`
	Kind           Kind              `json:"displayType"`
	Timestamp      string            `json:"timestamp"`
	Content        []json.RawMessage `json:"content"`
	Editable       bool              `json:"editable"`
	BlockIndexMap  []int             `json:"blockIndexMap"`
	Model          string            `json:"model,omitempty"`
	Usage          json.RawMessage   `json:"usage,omitempty"`
	ToolUseResult  json.RawMessage   `json:"toolUseResult,omitempty"`
	Todos          json.RawMessage   `json:"todos,omitempty"`
	SystemLabel    string            `json:"systemLabel,omitempty"`
	PlanSourcePath string            `json:"planSourcePath,omitempty"`
	Cwd            string            `json:"cwd,omitempty"`
}

type ToolUse struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type TokenStats struct {
	InputTokens              int64 `json:"inputTokens"`
	OutputTokens             int64 `json:"outputTokens"`
	CacheCreationInputTokens int64 `json:"cacheCreationInputTokens"`
	CacheReadInputTokens     int64 `json:"cacheReadInputTokens"`
}

func (s TokenStats) Total() int64 {
	return s.InputTokens + s.OutputTokens + s.CacheCreationInputTokens + s.CacheReadInputTokens
}

func (s *TokenStats) add(o TokenStats) {
	s.InputTokens += o.InputTokens
	s.OutputTokens += o.OutputTokens
	s.CacheCreationInputTokens += o.CacheCreationInputTokens
	s.CacheReadInputTokens += o.CacheReadInputTokens
}

// Bundle is the display form of a whole session. SearchText and SearchLower
// are aligned with Units.
type Bundle struct {
	Units       []Unit             `json:"units"`
	ToolUses    map[string]ToolUse `json:"toolUses"`
	Stats       TokenStats         `json:"tokenStats"`
	SearchText  []string           `json:"-"`
	SearchLower []string           `json:"-"`
}

func (b *Bundle) Unit(id string) (Unit, bool) {
	if b == nil {
		return Unit{}, false
	}
	for _, u := range b.Units {
		if u.ID == id {
			return u, true
		}
	}
	return Unit{}, false
}
