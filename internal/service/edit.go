package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/baaaaaaaka/claude_code_reader/internal/display"
	"github.com/baaaaaaaka/claude_code_reader/internal/transcript"
)

// BlockEdit replaces the editable text of one content block. Index is the
// block's position in message.content.
type BlockEdit struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// EditMessage rewrites content blocks of the record with the given uuid.
// Edits whose index is out of range are ignored.
func (s *Service) EditMessage(ctx context.Context, path, uuid string, edits []BlockEdit) (*display.Bundle, error) {
	return s.mutate(ctx, path, "edit_message", func(records []*transcript.Record) ([]*transcript.Record, bool, error) {
		for _, rec := range records {
			if uuid == "" || rec.UUID() != uuid {
				continue
			}
			changed, err := applyEdits(rec, edits)
			if err != nil {
				return nil, false, err
			}
			return records, changed, nil
		}
		return nil, false, fmt.Errorf("%w: %s", ErrRecordNotFound, uuid)
	})
}

// DeleteMessages drops every record whose uuid is listed. Records without a
// uuid are always kept.
func (s *Service) DeleteMessages(ctx context.Context, path string, uuids ...string) (*display.Bundle, error) {
	drop := make(map[string]struct{}, len(uuids))
	for _, id := range uuids {
		if id != "" {
			drop[id] = struct{}{}
		}
	}
	return s.mutate(ctx, path, "delete_messages", func(records []*transcript.Record) ([]*transcript.Record, bool, error) {
		kept := make([]*transcript.Record, 0, len(records))
		for _, rec := range records {
			if _, ok := drop[rec.UUID()]; ok && rec.UUID() != "" {
				continue
			}
			kept = append(kept, rec)
		}
		return kept, len(kept) != len(records), nil
	})
}

func applyEdits(rec *transcript.Record, edits []BlockEdit) (bool, error) {
	if len(edits) == 0 {
		return false, nil
	}
	content, ok := rec.Content()
	if !ok {
		return false, fmt.Errorf("%w: message has no editable content", ErrInvalidEdit)
	}
	if content.IsString {
		content.Text = edits[0].Text
		return true, rec.SetContent(content)
	}

	changed := false
	for _, e := range edits {
		if e.Index < 0 || e.Index >= len(content.Blocks) {
			continue
		}
		raw, ok, err := editBlock(content.Blocks[e.Index], e.Text)
		if err != nil {
			return false, fmt.Errorf("block %d: %w", e.Index, err)
		}
		if ok {
			content.Blocks[e.Index] = raw
			changed = true
		}
	}
	if !changed {
		return false, nil
	}
	return true, rec.SetContent(content)
}

func editBlock(raw json.RawMessage, text string) (json.RawMessage, bool, error) {
	block, err := transcript.ParseObject(raw)
	if err != nil {
		return nil, false, nil
	}
	kind, _ := block.String("type")
	switch kind {
	case "text":
		err = block.SetValue("text", text)
	case "thinking":
		if block.Has("thinking") {
			err = block.SetValue("thinking", text)
		} else {
			err = block.SetValue("text", text)
		}
	case "tool_use":
		var compact bytes.Buffer
		if cerr := json.Compact(&compact, []byte(text)); cerr != nil {
			return nil, false, fmt.Errorf("%w: tool input is not valid JSON: %v", ErrInvalidEdit, cerr)
		}
		block.Set("input", compact.Bytes())
	case "tool_result":
		err = block.SetValue("content", text)
	default:
		if !block.Has("text") {
			return nil, false, nil
		}
		err = block.SetValue("text", text)
	}
	if err != nil {
		return nil, false, err
	}
	out, err := block.MarshalJSON()
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}
