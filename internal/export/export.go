package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/baaaaaaaka/claude_code_reader/internal/transcript"
)

type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

var Formats = []Format{FormatMarkdown, FormatJSON, FormatYAML}

var ErrUnsupportedFormat = errors.New("unsupported export format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMarkdown, FormatJSON, FormatYAML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Render exports records in the given format. title and now are only used
// by markdown.
func Render(format Format, records []*transcript.Record, title string, now time.Time) (string, error) {
	switch format {
	case FormatMarkdown:
		return Markdown(records, title, now), nil
	case FormatJSON:
		return JSON(records)
	case FormatYAML:
		return YAML(records)
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Markdown renders the user and assistant turns as a readable document.
// Only text content is included.
func Markdown(records []*transcript.Record, title string, now time.Time) string {
	lines := []string{
		"# " + title,
		"",
		"Exported at: " + now.UTC().Format(time.RFC3339),
		"",
		"---",
		"",
	}
	for _, rec := range records {
		var role string
		switch rec.Type() {
		case "user":
			role = "User"
		case "assistant":
			role = "Assistant"
		default:
			continue
		}
		ts := rec.Timestamp()
		if ts == "" {
			ts = "unknown time"
		}
		lines = append(lines, fmt.Sprintf("## %s (%s)", role, ts), "")
		if text := rec.Text(); text != "" {
			lines = append(lines, text)
		}
		lines = append(lines, "", "---", "")
	}
	return strings.Join(lines, "\n")
}

// JSON renders every record as a pretty-printed array. Member order and
// string escapes are kept from the file.
func JSON(records []*transcript.Record) (string, error) {
	if len(records) == 0 {
		return "[]", nil
	}
	raw := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		raw = append(raw, rec.Bytes())
	}
	var out bytes.Buffer
	if err := json.Indent(&out, transcript.JoinArray(raw), "", "  "); err != nil {
		return "", fmt.Errorf("indent json: %w", err)
	}
	return out.String(), nil
}

// YAML renders every record as one item of a top-level sequence, keeping
// member order.
func YAML(records []*transcript.Record) (string, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, rec := range records {
		n, err := jsonToNode(rec.Bytes())
		if err != nil {
			return "", fmt.Errorf("convert line %d: %w", rec.Line, err)
		}
		seq.Content = append(seq.Content, n)
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{seq}}

	var out bytes.Buffer
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	return out.String(), nil
}

func jsonToNode(raw []byte) (*yaml.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	n, err := decodeNode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after value")
	}
	return n, nil
}

func decodeNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				val, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, stringNode(key), val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				val, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", v)
	case string:
		return stringNode(v), nil
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(v.String(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.String()}, nil
	case bool:
		if v {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"}, nil
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "false"}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func stringNode(s string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	if strings.Contains(s, "\n") {
		n.Style = yaml.LiteralStyle
	}
	return n
}
