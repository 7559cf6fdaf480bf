package display

import (
	"bytes"
	"encoding/json"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/baaaaaaaka/claude_code_reader/internal/transcript"
)

const minFanOutChunk = 64

type toolUseEntry struct {
	id string
	ToolUse
}

type recordResult struct {
	toolUses []toolUseEntry
	usage    TokenStats
	units    []Unit
}

// Transform projects a session's records into display units, indexes tool
// invocations and sums token usage. Records are processed in parallel; the
// output keeps record order. Transform does not modify records.
func Transform(records []*transcript.Record) *Bundle {
	results := make([]recordResult, len(records))
	fanOut(len(records), func(i int) {
		results[i] = projectRecord(records[i])
	})

	b := &Bundle{
		Units:    make([]Unit, 0, len(records)),
		ToolUses: map[string]ToolUse{},
	}
	for _, r := range results {
		for _, tu := range r.toolUses {
			b.ToolUses[tu.id] = tu.ToolUse
		}
		b.Stats.add(r.usage)
		b.Units = append(b.Units, r.units...)
	}

	b.SearchText = make([]string, len(b.Units))
	b.SearchLower = make([]string, len(b.Units))
	fanOut(len(b.Units), func(i int) {
		text := searchText(b.Units[i].Content)
		b.SearchText[i] = text
		b.SearchLower[i] = strings.ToLower(text)
	})
	return b
}

// fanOut runs fn for every index in [0, n) across GOMAXPROCS goroutines.
// Each index is handled exactly once, so fn may write to its own slot of a
// preallocated slice without locking.
func fanOut(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	chunk := max((n+workers-1)/workers, minFanOutChunk)
	if chunk >= n {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var g errgroup.Group
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func projectRecord(rec *transcript.Record) recordResult {
	c := Classify(rec)
	var res recordResult
	if c.Class == ClassAssistant {
		res.toolUses = toolUses(rec)
		res.usage = usageOf(rec)
	}
	res.units = units(rec, c)
	return res
}

func units(rec *transcript.Record, c Classification) []Unit {
	base := Unit{
		SourceID:  rec.UUID(),
		ID:        rec.UUID(),
		Timestamp: rec.Timestamp(),
		Cwd:       rec.Cwd(),
	}

	switch c.Class {
	case ClassAssistant:
		u := base
		u.Kind = KindAssistant
		u.Content, u.BlockIndexMap = contentBlocks(rec)
		u.Editable = true
		u.Model = rec.Model()
		if usage, ok := rec.Usage(); ok {
			u.Usage = usage
		}
		u.ToolUseResult = nonNull(rec, "toolUseResult")
		if todos, ok := rec.Raw("todos"); ok {
			if _, isArray := transcript.ParseArray(todos); isArray {
				u.Todos = todos
			}
		}
		return []Unit{u}

	case ClassCompactSummary:
		u := base
		u.Kind = KindCompactSummary
		u.Content = []json.RawMessage{textBlock(rec.Text())}
		u.BlockIndexMap = []int{0}
		return []Unit{u}

	case ClassSlashCommand:
		u := base
		u.Kind = KindUser
		u.Content = []json.RawMessage{textBlock(c.Command)}
		u.BlockIndexMap = []int{0}
		return []Unit{u}

	case ClassSystem:
		u := base
		u.Kind = KindSystem
		u.Content, u.BlockIndexMap = contentBlocks(rec)
		u.SystemLabel = c.Label
		u.PlanSourcePath = c.PlanSourcePath
		return []Unit{u}

	case ClassUser:
		return userUnits(rec, base)
	}
	return nil
}

// userUnits splits a user record: the non tool_result blocks form one user
// unit, followed by one unit per tool_result block.
func userUnits(rec *transcript.Record, base Unit) []Unit {
	content, ok := rec.Content()
	if !ok {
		return nil
	}
	if content.IsString {
		u := base
		u.Kind = KindUser
		u.Content = []json.RawMessage{textBlock(content.Text)}
		u.BlockIndexMap = []int{0}
		u.Editable = true
		return []Unit{u}
	}

	var (
		userBlocks []json.RawMessage
		userIdx    []int
		toolBlocks []json.RawMessage
		toolIdx    []int
	)
	for i, block := range content.Blocks {
		if transcript.BlockType(block) == "tool_result" {
			toolBlocks = append(toolBlocks, block)
			toolIdx = append(toolIdx, i)
			continue
		}
		userBlocks = append(userBlocks, block)
		userIdx = append(userIdx, i)
	}

	out := make([]Unit, 0, len(toolBlocks)+1)
	if len(userBlocks) > 0 {
		u := base
		u.Kind = KindUser
		u.Content = userBlocks
		u.BlockIndexMap = userIdx
		u.Editable = true
		out = append(out, u)
	}
	toolUseResult := nonNull(rec, "toolUseResult")
	for seq, block := range toolBlocks {
		u := base
		u.ID = ToolResultID(base.SourceID, seq)
		u.Kind = KindToolResult
		u.Content = []json.RawMessage{block}
		u.BlockIndexMap = []int{toolIdx[seq]}
		u.Editable = true
		u.ToolUseResult = toolUseResult
		out = append(out, u)
	}
	return out
}

// ToolResultID is the display id of the seq-th tool_result block of a record.
func ToolResultID(recordID string, seq int) string {
	return recordID + "-tool-" + strconv.Itoa(seq)
}

func contentBlocks(rec *transcript.Record) ([]json.RawMessage, []int) {
	content, ok := rec.Content()
	if !ok {
		return []json.RawMessage{}, []int{}
	}
	if content.IsString {
		return []json.RawMessage{textBlock(content.Text)}, []int{0}
	}
	idx := make([]int, len(content.Blocks))
	for i := range idx {
		idx[i] = i
	}
	return content.Blocks, idx
}

func textBlock(text string) json.RawMessage {
	o := transcript.NewObject()
	_ = o.SetValue("type", "text")
	_ = o.SetValue("text", text)
	raw, _ := o.MarshalJSON()
	return raw
}

func toolUses(rec *transcript.Record) []toolUseEntry {
	content, ok := rec.Content()
	if !ok || content.IsString {
		return nil
	}
	var out []toolUseEntry
	for _, raw := range content.Blocks {
		block, err := transcript.ParseObject(raw)
		if err != nil {
			continue
		}
		if t, _ := block.String("type"); t != "tool_use" {
			continue
		}
		id, ok := block.String("id")
		if !ok {
			continue
		}
		name, ok := block.String("name")
		if !ok {
			name = "unknown"
		}
		input, ok := block.Get("input")
		if !ok {
			input = json.RawMessage(`{}`)
		}
		out = append(out, toolUseEntry{id: id, ToolUse: ToolUse{Name: name, Input: input}})
	}
	return out
}

func usageOf(rec *transcript.Record) TokenStats {
	raw, ok := rec.Usage()
	if !ok {
		return TokenStats{}
	}
	var u struct {
		InputTokens              int64 `json:"input_tokens"`
		OutputTokens             int64 `json:"output_tokens"`
		CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
		CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return TokenStats{}
	}
	return TokenStats{
		InputTokens:              u.InputTokens,
		OutputTokens:             u.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens,
	}
}

func nonNull(rec *transcript.Record, key string) json.RawMessage {
	raw, ok := rec.Raw(key)
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

// searchText collects the human-readable text of a unit's blocks, one value
// per line.
func searchText(blocks []json.RawMessage) string {
	var b strings.Builder
	add := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	for _, raw := range blocks {
		block, err := transcript.ParseObject(raw)
		if err != nil {
			continue
		}
		if s, ok := block.String("text"); ok {
			add(s)
		}
		if s, ok := block.String("thinking"); ok {
			add(s)
		}
		if s, ok := block.String("content"); ok {
			add(s)
		} else if items, ok := block.Array("content"); ok {
			for _, item := range items {
				obj, err := transcript.ParseObject(item)
				if err != nil {
					continue
				}
				if s, ok := obj.String("text"); ok {
					add(s)
				}
			}
		}
		if t, _ := block.String("type"); t == "tool_use" {
			if input, ok := block.Get("input"); ok {
				var compact bytes.Buffer
				if err := json.Compact(&compact, input); err == nil {
					add(compact.String())
				} else {
					add(string(input))
				}
			}
		}
	}
	return b.String()
}
