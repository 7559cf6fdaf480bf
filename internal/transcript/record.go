package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Record is one decoded transcript line. The original bytes are kept and
// re-emitted verbatim until the record is modified.
type Record struct {
	Line  int
	raw   []byte
	obj   *Object
	dirty bool
}

// Content is the message.content union: a plain string or an array of
// content blocks.
type Content struct {
	IsString bool
	Text     string
	Blocks   []json.RawMessage
}

func (c Content) Len() int {
	if c.IsString {
		return 1
	}
	return len(c.Blocks)
}

var ErrNotObject = errors.New("transcript: record is not a JSON object")

// ParseRecord decodes a single line. Any JSON value is accepted; only
// objects expose fields.
func ParseRecord(line []byte) (*Record, error) {
	line = bytes.TrimSpace(line)
	if !json.Valid(line) {
		return nil, errors.New("transcript: invalid JSON")
	}
	raw := make([]byte, len(line))
	copy(raw, line)
	rec := &Record{raw: raw}
	if line[0] == '{' {
		obj, err := ParseObject(raw)
		if err != nil {
			return nil, err
		}
		rec.obj = obj
	}
	return rec, nil
}

// Bytes returns the encoded record without a trailing newline.
func (r *Record) Bytes() []byte {
	if !r.dirty || r.obj == nil {
		return r.raw
	}
	b, err := r.obj.MarshalJSON()
	if err != nil {
		return r.raw
	}
	return b
}

func (r *Record) MarshalJSON() ([]byte, error) {
	return r.Bytes(), nil
}

func (r *Record) Clone() *Record {
	c := &Record{Line: r.Line, raw: r.raw, dirty: r.dirty}
	c.obj = r.obj.Clone()
	return c
}

func (r *Record) Has(key string) bool { return r.obj.Has(key) }

func (r *Record) Raw(key string) (json.RawMessage, bool) { return r.obj.Get(key) }

func (r *Record) String(key string) string {
	s, _ := r.obj.String(key)
	return s
}

func (r *Record) Type() string       { return r.String("type") }
func (r *Record) UUID() string       { return r.String("uuid") }
func (r *Record) ParentUUID() string { return r.String("parentUuid") }
func (r *Record) Timestamp() string  { return r.String("timestamp") }
func (r *Record) Cwd() string        { return r.String("cwd") }
func (r *Record) SessionID() string  { return r.String("sessionId") }

func (r *Record) IsMeta() bool           { return r.obj.Bool("isMeta") }
func (r *Record) IsCompactSummary() bool { return r.obj.Bool("isCompactSummary") }

func (r *Record) Set(key string, value json.RawMessage) error {
	if r.obj == nil {
		return ErrNotObject
	}
	r.obj.Set(key, value)
	r.dirty = true
	return nil
}

func (r *Record) SetValue(key string, value any) error {
	raw, err := MarshalValue(value)
	if err != nil {
		return err
	}
	return r.Set(key, raw)
}

func (r *Record) Delete(key string) bool {
	if r.obj == nil || !r.obj.Delete(key) {
		return false
	}
	r.dirty = true
	return true
}

// Message returns a copy of the nested message object.
func (r *Record) Message() (*Object, bool) {
	return r.obj.Object("message")
}

func (r *Record) Model() string {
	msg, ok := r.Message()
	if !ok {
		return ""
	}
	s, _ := msg.String("model")
	return s
}

func (r *Record) Usage() (json.RawMessage, bool) {
	msg, ok := r.Message()
	if !ok {
		return nil, false
	}
	raw, ok := msg.Get("usage")
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

// Content returns message.content when it is a string or an array.
func (r *Record) Content() (Content, bool) {
	msg, ok := r.Message()
	if !ok {
		return Content{}, false
	}
	raw, ok := msg.Get("content")
	if !ok {
		return Content{}, false
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Content{}, false
		}
		return Content{IsString: true, Text: s}, true
	}
	blocks, ok := ParseArray(trimmed)
	if !ok {
		return Content{}, false
	}
	return Content{Blocks: blocks}, true
}

// SetContent replaces message.content, leaving every other member of the
// message untouched.
func (r *Record) SetContent(c Content) error {
	msg, ok := r.Message()
	if !ok {
		return errors.New("transcript: record has no message object")
	}
	if c.IsString {
		if err := msg.SetValue("content", c.Text); err != nil {
			return err
		}
	} else {
		msg.Set("content", JoinArray(c.Blocks))
	}
	raw, err := msg.MarshalJSON()
	if err != nil {
		return err
	}
	return r.Set("message", raw)
}

// Text joins the textual content of the record: the string content, or the
// text of every text block separated by newlines.
func (r *Record) Text() string {
	c, ok := r.Content()
	if !ok {
		return ""
	}
	if c.IsString {
		return c.Text
	}
	var parts []string
	for _, raw := range c.Blocks {
		block, err := ParseObject(raw)
		if err != nil {
			continue
		}
		if t, _ := block.String("type"); t != "text" {
			continue
		}
		if s, ok := block.String("text"); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// BlockType returns the "type" member of a content block.
func BlockType(raw json.RawMessage) string {
	if !isObject(raw) {
		return ""
	}
	block, err := ParseObject(raw)
	if err != nil {
		return ""
	}
	t, _ := block.String("type")
	return t
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
