package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baaaaaaaka/claude_code_reader/internal/guard"
	"github.com/baaaaaaaka/claude_code_reader/internal/search"
)

const sessionFixture = `{"type":"summary","summary":"s"}
{"type":"user","uuid":"u1","timestamp":"2026-01-01T00:00:00Z","cwd":"/work/app","message":{"role":"user","content":"hello world"}}
{"type":"assistant","uuid":"a1","parentUuid":"u1","message":{"role":"assistant","content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"Hi there"},{"type":"tool_use","id":"t1","name":"Bash","input":{"cmd":"ls"}}],"usage":{"input_tokens":3,"output_tokens":4}}}
{"type":"user","uuid":"u2","parentUuid":"a1","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"file.txt"}]}}
`

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	claudeDir := filepath.Join(t.TempDir(), "claude")
	dir := filepath.Join(claudeDir, "projects", "-work-app")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, "0f3c9a1e-1111-2222-3333-444455556666.jsonl")
	if err := os.WriteFile(path, []byte(sessionFixture), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	svc, err := New(Options{
		ClaudeDir: claudeDir,
		TempDir:   t.TempDir(),
		Now:       func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc, path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func TestScanAndResolve(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	projects, err := svc.ScanProjects(ctx)
	if err != nil {
		t.Fatalf("ScanProjects: %v", err)
	}
	if len(projects) != 1 || len(projects[0].Sessions) != 1 {
		t.Fatalf("unexpected projects %#v", projects)
	}
	if projects[0].Path != "/work/app" {
		t.Fatalf("unexpected decoded path %q", projects[0].Path)
	}

	for _, ref := range []string{"0f3c9a1e-1111-2222-3333-444455556666", "0f3c", path} {
		sess, _, err := svc.ResolveSession(ctx, ref)
		if err != nil {
			t.Fatalf("ResolveSession(%s): %v", ref, err)
		}
		if sess.FilePath != path {
			t.Fatalf("ResolveSession(%s) = %s", ref, sess.FilePath)
		}
	}
	if _, _, err := svc.ResolveSession(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLoadSessionIsCached(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	b1, err := svc.LoadSession(ctx, path)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got := len(b1.Units); got != 3 {
		t.Fatalf("expected 3 units, got %d", got)
	}
	if b1.Stats.Total() != 7 {
		t.Fatalf("unexpected stats %+v", b1.Stats)
	}
	b2, err := svc.LoadSession(ctx, path)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if b1 != b2 {
		t.Fatalf("expected cached bundle")
	}
	if hits, _ := svc.sessions.Stats(); hits != 1 {
		t.Fatalf("expected one cache hit, got %d", hits)
	}
}

func TestLoadMissingSessionIsEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	b, err := svc.LoadSession(context.Background(), filepath.Join(svc.ClaudeDir(), "projects", "-x", "gone.jsonl"))
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if len(b.Units) != 0 {
		t.Fatalf("expected no units, got %d", len(b.Units))
	}
}

func TestEditMessage(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	b, err := svc.EditMessage(ctx, path, "a1", []BlockEdit{
		{Index: 0, Text: "deep thought"},
		{Index: 1, Text: "Hello again"},
		{Index: 2, Text: "{\n  \"cmd\": \"pwd\"\n}"},
		{Index: 9, Text: "ignored"},
	})
	if err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	got := readFile(t, path)
	want := `{"type":"assistant","uuid":"a1","parentUuid":"u1","message":{"role":"assistant","content":[{"type":"thinking","thinking":"deep thought"},{"type":"text","text":"Hello again"},{"type":"tool_use","id":"t1","name":"Bash","input":{"cmd":"pwd"}}],"usage":{"input_tokens":3,"output_tokens":4}}}`
	if !strings.Contains(got, want+"\n") {
		t.Fatalf("edit not written:\n%s", got)
	}
	if !strings.HasPrefix(got, `{"type":"summary","summary":"s"}`+"\n") {
		t.Fatalf("untouched record changed:\n%s", got)
	}
	if u, ok := b.Unit("a1"); !ok || len(u.Content) != 3 {
		t.Fatalf("returned bundle does not reflect edit: %#v", u)
	}
	if len(svc.Backups()) != 1 || svc.Backups()[0].Op != "edit_message" {
		t.Fatalf("expected one edit backup, got %#v", svc.Backups())
	}

	if _, err := svc.EditMessage(ctx, path, "u1", []BlockEdit{{Index: 5, Text: "replaced"}}); err != nil {
		t.Fatalf("EditMessage string content: %v", err)
	}
	if !strings.Contains(readFile(t, path), `"content":"replaced"`) {
		t.Fatalf("string content not replaced")
	}

	if _, err := svc.EditMessage(ctx, path, "u2", []BlockEdit{{Index: 0, Text: "other.txt"}}); err != nil {
		t.Fatalf("EditMessage tool result: %v", err)
	}
	if !strings.Contains(readFile(t, path), `"tool_use_id":"t1","content":"other.txt"`) {
		t.Fatalf("tool result not replaced")
	}
}

func TestEditMessageErrorsLeaveFileUntouched(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	if _, err := svc.EditMessage(ctx, path, "missing", []BlockEdit{{Index: 0, Text: "x"}}); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if _, err := svc.EditMessage(ctx, path, "a1", []BlockEdit{{Index: 2, Text: "{not json"}}); !errors.Is(err, ErrInvalidEdit) {
		t.Fatalf("expected ErrInvalidEdit, got %v", err)
	}
	if readFile(t, path) != sessionFixture {
		t.Fatalf("file changed after failed edits")
	}
	if len(svc.Backups()) != 0 {
		t.Fatalf("unexpected backups %#v", svc.Backups())
	}
}

func TestEditOutsideRootIsRejected(t *testing.T) {
	svc, _ := newTestService(t)
	outside := filepath.Join(t.TempDir(), "x.jsonl")
	if err := os.WriteFile(outside, []byte(sessionFixture), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := svc.EditMessage(context.Background(), outside, "u1", []BlockEdit{{Text: "x"}})
	var perr *guard.PathError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PathError, got %v", err)
	}
	if readFile(t, outside) != sessionFixture {
		t.Fatalf("outside file changed")
	}
}

func TestDeleteMessages(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	if _, err := svc.DeleteMessages(ctx, path, "nope"); err != nil {
		t.Fatalf("DeleteMessages: %v", err)
	}
	if len(svc.Backups()) != 0 || readFile(t, path) != sessionFixture {
		t.Fatalf("no-op delete wrote the file")
	}

	b, err := svc.DeleteMessages(ctx, path, "u2", "a1", "")
	if err != nil {
		t.Fatalf("DeleteMessages: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(readFile(t, path), "\n"), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"summary"`) || !strings.Contains(lines[1], `"u1"`) {
		t.Fatalf("unexpected file after delete: %q", lines)
	}
	if len(b.Units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(b.Units))
	}
}

func TestSearchSessionUsesCacheAndInvalidatesOnWrite(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	ids, err := svc.SearchSession(ctx, path, search.Query{Text: "HELLO"})
	if err != nil {
		t.Fatalf("SearchSession: %v", err)
	}
	if strings.Join(ids, ",") != "u1" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if svc.searches.Len() != 1 {
		t.Fatalf("expected cached search")
	}

	if _, err := svc.EditMessage(ctx, path, "u1", []BlockEdit{{Text: "bye"}}); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if svc.searches.Len() != 0 {
		t.Fatalf("search cache not invalidated")
	}
	ids, err = svc.SearchSession(ctx, path, search.Query{Text: "hello"})
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no match after edit, got %v err=%v", ids, err)
	}

	ids, err = svc.SearchSession(ctx, path, search.Query{Text: "   "})
	if err != nil || ids == nil || len(ids) != 0 {
		t.Fatalf("empty query: ids=%v err=%v", ids, err)
	}
	if _, err := svc.SearchSession(ctx, path, search.Query{Text: "(", Regex: true}); err == nil {
		t.Fatalf("expected regex error")
	}
}

func TestSearchAfterConcurrentEditSeesNewContent(t *testing.T) {
	ctx := context.Background()
	q := search.Query{Text: `(n|x)+e+(e|y)*dle`, Regex: true}

	for i := 0; i < 20; i++ {
		svc, path := newTestService(t)
		var b strings.Builder
		b.WriteString(sessionFixture)
		for j := 0; j < 2000; j++ {
			fmt.Fprintf(&b, `{"type":"user","uuid":"f%d","message":{"role":"user","content":"filler line %d"}}`+"\n", j, j)
		}
		b.WriteString(`{"type":"user","uuid":"target","message":{"role":"user","content":"a needle here"}}` + "\n")
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := svc.SearchSession(ctx, path, q); err != nil {
				t.Errorf("SearchSession: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := svc.EditMessage(ctx, path, "target", []BlockEdit{{Text: "gone"}}); err != nil {
				t.Errorf("EditMessage: %v", err)
			}
		}()
		wg.Wait()

		ids, err := svc.SearchSession(ctx, path, q)
		if err != nil {
			t.Fatalf("SearchSession: %v", err)
		}
		if len(ids) != 0 {
			t.Fatalf("round %d: search served pre-edit matches %v", i, ids)
		}
	}
}

func TestExportSession(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	md, err := svc.ExportSession(ctx, path, "markdown", "Demo")
	if err != nil {
		t.Fatalf("ExportSession: %v", err)
	}
	if !strings.HasPrefix(md, "# Demo\n\nExported at: 2026-02-03T04:05:06Z\n") {
		t.Fatalf("unexpected markdown header:\n%s", md)
	}
	if !strings.Contains(md, "## Assistant (unknown time)\n\nHi there\n") {
		t.Fatalf("assistant turn missing:\n%s", md)
	}
	if _, err := svc.ExportSession(ctx, path, "pdf", ""); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestRunFixerEvictsSession(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	if _, err := svc.LoadSession(ctx, path); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	res, err := svc.RunFixer(ctx, "strip_thinking", path)
	if err != nil {
		t.Fatalf("RunFixer: %v", err)
	}
	if !res.Success || res.Affected != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if svc.sessions.Len() != 0 {
		t.Fatalf("session not evicted")
	}
	b, err := svc.LoadSession(ctx, path)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	u, _ := b.Unit("a1")
	if len(u.Content) != 2 {
		t.Fatalf("thinking block still present: %d blocks", len(u.Content))
	}
	if len(svc.ListFixers()) == 0 {
		t.Fatalf("no fixers listed")
	}
}

func TestDeleteSessionAndRestore(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	if err := svc.DeleteSession(ctx, path); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("session still exists: %v", err)
	}
	projects, err := svc.ScanProjects(ctx)
	if err != nil {
		t.Fatalf("ScanProjects: %v", err)
	}
	if len(projects) != 1 || len(projects[0].Sessions) != 0 {
		t.Fatalf("project list not refreshed: %#v", projects)
	}

	backups, err := svc.SessionBackups(path)
	if err != nil || len(backups) != 1 {
		t.Fatalf("SessionBackups: %v %#v", err, backups)
	}
	if _, err := svc.RestoreBackup(ctx, backups[0].Path, ""); err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}
	if readFile(t, path) != sessionFixture {
		t.Fatalf("restored content differs")
	}
}

func TestPersistentBackupOption(t *testing.T) {
	svc, path := newTestService(t)
	on := true
	svc.guard.Persistent = func() bool { return on }

	if _, err := svc.DeleteMessages(context.Background(), path, "u2"); err != nil {
		t.Fatalf("DeleteMessages: %v", err)
	}
	siblings, err := guard.SiblingBackups(path)
	if err != nil || len(siblings) != 1 {
		t.Fatalf("expected one sibling backup: %v %#v", err, siblings)
	}
	if readFile(t, siblings[0].Path) != sessionFixture {
		t.Fatalf("sibling backup does not hold the previous content")
	}
}
