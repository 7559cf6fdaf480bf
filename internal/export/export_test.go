package export

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/baaaaaaaka/claude_code_reader/internal/transcript"
)

var exportNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func records(t *testing.T, lines ...string) []*transcript.Record {
	t.Helper()
	recs, stats := transcript.Decode([]byte(strings.Join(lines, "\n") + "\n"))
	if stats.Dropped != 0 {
		t.Fatalf("invalid fixture")
	}
	return recs
}

func TestMarkdown(t *testing.T) {
	recs := records(t,
		`{"type":"user","timestamp":"t1","message":{"content":"hello"}}`,
		`{"type":"summary","summary":"skip me"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"a"},{"type":"tool_use","id":"x"},{"type":"text","text":"b"}]}}`,
		`{"type":"assistant","timestamp":"t3","message":{"content":[{"type":"tool_use","id":"y"}]}}`,
	)
	got := Markdown(recs, "My Session", exportNow)
	want := strings.Join([]string{
		"# My Session",
		"",
		"Exported at: 2026-03-04T05:06:07Z",
		"",
		"---",
		"",
		"## User (t1)",
		"",
		"hello",
		"",
		"---",
		"",
		"## Assistant (unknown time)",
		"",
		"a\nb",
		"",
		"---",
		"",
		"## Assistant (t3)",
		"",
		"",
		"---",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected markdown:\n got: %q\nwant: %q", got, want)
	}
}

func TestJSON(t *testing.T) {
	recs := records(t, `{"z":1,"a":"<&>","n":null}`, `[1]`)
	got, err := JSON(recs)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	want := "[\n  {\n    \"z\": 1,\n    \"a\": \"<&>\",\n    \"n\": null\n  },\n  [\n    1\n  ]\n]"
	if got != want {
		t.Fatalf("unexpected json:\n got: %s\nwant: %s", got, want)
	}

	empty, err := JSON(nil)
	if err != nil || empty != "[]" {
		t.Fatalf("unexpected empty export %q err=%v", empty, err)
	}
}

func TestYAMLKeepsKeyOrder(t *testing.T) {
	recs := records(t,
		`{"type":"user","uuid":"u1","message":{"role":"user","content":"line one\nline two"},"n":1.5,"ok":true,"nil":null}`,
	)
	got, err := YAML(recs)
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(got), &doc); err != nil {
		t.Fatalf("yaml output does not parse: %v\n%s", err, got)
	}
	seq := doc.Content[0]
	if seq.Kind != yaml.SequenceNode || len(seq.Content) != 1 {
		t.Fatalf("expected a one-item sequence, got:\n%s", got)
	}
	var keys []string
	m := seq.Content[0]
	for i := 0; i < len(m.Content); i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	if strings.Join(keys, ",") != "type,uuid,message,n,ok,nil" {
		t.Fatalf("unexpected key order %v", keys)
	}

	var decoded []map[string]any
	if err := yaml.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	msg := decoded[0]["message"].(map[string]any)
	if msg["content"] != "line one\nline two" {
		t.Fatalf("unexpected content %q", msg["content"])
	}
	if decoded[0]["n"] != 1.5 || decoded[0]["ok"] != true || decoded[0]["nil"] != nil {
		t.Fatalf("unexpected scalars %#v", decoded[0])
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"markdown": FormatMarkdown, "MD": FormatMarkdown, "json": FormatJSON, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q)=%q err=%v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Render("pdf", nil, "", exportNow); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat from Render, got %v", err)
	}
}
