package fixers

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/baaaaaaaka/claude_code_reader/internal/transcript"
)

func stripThinking() Fixer {
	return Fixer{
		Definition: Definition{
			ID:   "strip_thinking",
			Name: "400 error on resume (thinking block)",
			Description: "API Error: 400 invalid_request_error: messages.N.content.0: Invalid `signature` in `thinking` block.\n\n" +
				"Resuming fails when the session holds thinking blocks whose signatures are stale or invalid.",
			FixMethod: "Remove every thinking and redacted_thinking content block. All other content is kept as is.",
			Tags:      []string{"thinking", "redacted_thinking", "400", "invalid_request_error", "signature", "resume"},
			Tier:      TierRecord,
		},
		Exec: RecordFunc(func(records *[]*transcript.Record) (Result, error) {
			if len(*records) == 0 {
				return Result{Success: true, Message: "session is empty, nothing to fix"}, nil
			}
			affected := 0
			for _, rec := range *records {
				changed, err := filterBlocks(rec, func(block json.RawMessage) bool {
					switch transcript.BlockType(block) {
					case "thinking", "redacted_thinking":
						return false
					}
					return true
				})
				if err != nil {
					return Result{}, err
				}
				if changed {
					affected++
				}
			}
			if affected == 0 {
				return Result{Success: true, Message: "no thinking blocks found, nothing to fix"}, nil
			}
			return Result{
				Success:  true,
				Message:  fmt.Sprintf("removed thinking blocks from %d messages", affected),
				Affected: affected,
			}, nil
		}),
	}
}

func stripOrphanToolResults() Fixer {
	return Fixer{
		Definition: Definition{
			ID:   "strip_orphan_tool_results",
			Name: "400 error on resume (unexpected tool_use_id)",
			Description: "API Error: 400 invalid_request_error: unexpected `tool_use_id` found in `tool_result` blocks.\n\n" +
				"Happens when a tool result outlives the tool call that produced it, usually after messages were deleted.",
			FixMethod: "Remove tool_result blocks that have no earlier matching tool_use. Messages left empty are removed and their replies are attached to the removed message's parent.",
			Tags:      []string{"tool_result", "tool_use_id", "400", "invalid_request_error", "resume"},
			Tier:      TierRecord,
		},
		Exec: RecordFunc(func(records *[]*transcript.Record) (Result, error) {
			seen := map[string]bool{}
			removedParent := map[string]json.RawMessage{}
			affected := 0
			kept := make([]*transcript.Record, 0, len(*records))

			for _, rec := range *records {
				if rec.Type() == "assistant" {
					for _, id := range toolUseIDs(rec) {
						seen[id] = true
					}
				}
				content, ok := rec.Content()
				before := content.Len()
				changed := false
				if ok && !content.IsString {
					var err error
					changed, err = filterBlocks(rec, func(block json.RawMessage) bool {
						if transcript.BlockType(block) != "tool_result" {
							return true
						}
						obj, err := transcript.ParseObject(block)
						if err != nil {
							return true
						}
						id, _ := obj.String("tool_use_id")
						return seen[id]
					})
					if err != nil {
						return Result{}, err
					}
				}
				if !changed {
					kept = append(kept, rec)
					continue
				}
				affected++
				if after, _ := rec.Content(); before > 0 && after.Len() == 0 && rec.UUID() != "" {
					parent, ok := rec.Raw("parentUuid")
					if !ok {
						parent = json.RawMessage("null")
					}
					removedParent[rec.UUID()] = parent
					continue
				}
				kept = append(kept, rec)
			}

			if len(removedParent) > 0 {
				for _, rec := range kept {
					parentID := rec.ParentUUID()
					if _, ok := removedParent[parentID]; !ok {
						continue
					}
					if err := rec.Set("parentUuid", resolveParent(removedParent, parentID)); err != nil {
						return Result{}, err
					}
				}
			}
			*records = kept

			if affected == 0 {
				return Result{Success: true, Message: "no orphaned tool results found, nothing to fix"}, nil
			}
			return Result{
				Success:  true,
				Message:  fmt.Sprintf("removed orphaned tool results from %d messages (%d messages dropped)", affected, len(removedParent)),
				Affected: affected,
			}, nil
		}),
	}
}

// resolveParent follows removed records up to the first surviving ancestor.
func resolveParent(removed map[string]json.RawMessage, id string) json.RawMessage {
	visited := map[string]bool{}
	for {
		parent, ok := removed[id]
		if !ok || visited[id] {
			return parent
		}
		visited[id] = true
		var next string
		if err := json.Unmarshal(parent, &next); err != nil {
			return parent
		}
		if _, again := removed[next]; !again {
			return parent
		}
		id = next
	}
}

func repairUUIDs() Fixer {
	return Fixer{
		Definition: Definition{
			ID:          "repair_uuids",
			Name:        "Missing or duplicate message ids",
			Description: "Messages without a uuid, or sharing one with an earlier message, cannot be edited or deleted individually.",
			FixMethod:   "Give each user, assistant and system message that lacks a unique uuid a freshly generated one.",
			Tags:        []string{"uuid", "duplicate", "edit", "delete"},
			Tier:        TierRecord,
		},
		Exec: RecordFunc(func(records *[]*transcript.Record) (Result, error) {
			seen := map[string]bool{}
			affected := 0
			for _, rec := range *records {
				switch rec.Type() {
				case "user", "assistant", "system":
				default:
					continue
				}
				id := rec.UUID()
				if id != "" && !seen[id] {
					seen[id] = true
					continue
				}
				fresh := uuid.NewString()
				for seen[fresh] {
					fresh = uuid.NewString()
				}
				if err := rec.SetValue("uuid", fresh); err != nil {
					return Result{}, err
				}
				seen[fresh] = true
				affected++
			}
			if affected == 0 {
				return Result{Success: true, Message: "all message ids are unique, nothing to fix"}, nil
			}
			return Result{
				Success:  true,
				Message:  fmt.Sprintf("assigned new ids to %d messages", affected),
				Affected: affected,
			}, nil
		}),
	}
}

// filterBlocks keeps the content blocks for which keep reports true and
// reports whether any block was dropped.
func filterBlocks(rec *transcript.Record, keep func(json.RawMessage) bool) (bool, error) {
	content, ok := rec.Content()
	if !ok || content.IsString {
		return false, nil
	}
	filtered := make([]json.RawMessage, 0, len(content.Blocks))
	for _, block := range content.Blocks {
		if keep(block) {
			filtered = append(filtered, block)
		}
	}
	if len(filtered) == len(content.Blocks) {
		return false, nil
	}
	if err := rec.SetContent(transcript.Content{Blocks: filtered}); err != nil {
		return false, err
	}
	return true, nil
}

func toolUseIDs(rec *transcript.Record) []string {
	content, ok := rec.Content()
	if !ok || content.IsString {
		return nil
	}
	var ids []string
	for _, block := range content.Blocks {
		if transcript.BlockType(block) != "tool_use" {
			continue
		}
		obj, err := transcript.ParseObject(block)
		if err != nil {
			continue
		}
		if id, ok := obj.String("id"); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
