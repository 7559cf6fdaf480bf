package display

import (
	"strings"
	"testing"
)

func TestUnitLines(t *testing.T) {
	b := Transform(decode(t,
		`{"type":"assistant","uuid":"a1","message":{"model":"claude-x","content":[{"type":"thinking","thinking":"plan\nsteps"},{"type":"text","text":"done"},{"type":"tool_use","id":"t","name":"Bash","input":{ "cmd" : "ls" }},{"type":"image"}]}}`,
		`{"type":"user","uuid":"u1","message":{"content":[{"type":"tool_result","tool_use_id":"t","is_error":true,"content":[{"type":"text","text":"boom"},{"type":"image"}]}]}}`,
	))

	a, _ := b.Unit("a1")
	if a.Title() != "Assistant (claude-x)" {
		t.Fatalf("unexpected title %q", a.Title())
	}
	want := "[thinking]\nplan\nsteps\ndone\n[tool: Bash] {\"cmd\":\"ls\"}\n[image]"
	if got := strings.Join(a.Lines(), "\n"); got != want {
		t.Fatalf("unexpected lines:\n%s", got)
	}

	r, _ := b.Unit("u1-tool-0")
	if r.Title() != "Tool result" {
		t.Fatalf("unexpected title %q", r.Title())
	}
	if got := strings.Join(r.Lines(), "\n"); got != "[error]\nboom\n[image]" {
		t.Fatalf("unexpected lines:\n%s", got)
	}
}
