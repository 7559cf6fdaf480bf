package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSearchCmdJSON(t *testing.T) {
	f := newCLIFixture(t)
	out := f.mustRun(t, "search", testSessionID, "HELLO", "--json")

	var payload struct {
		Matches []string `json:"matches"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if len(payload.Matches) != 1 || payload.Matches[0] != "u1" {
		t.Fatalf("unexpected matches %v", payload.Matches)
	}
}

func TestSearchCmdCaseSensitiveAndRegex(t *testing.T) {
	f := newCLIFixture(t)
	out, errOut, err := f.run(t, "search", testSessionID, "HELLO", "-c")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if strings.TrimSpace(out) != "" || !strings.Contains(errOut, "0 matching messages") {
		t.Fatalf("expected no matches, got stdout=%q stderr=%q", out, errOut)
	}

	out = f.mustRun(t, "search", testSessionID, `sec\w+`, "-e")
	if !strings.Contains(out, "u2  User") || !strings.Contains(out, "second question") {
		t.Fatalf("expected regex match on u2, got:\n%s", out)
	}

	if _, _, err := f.run(t, "search", testSessionID, "(", "-e"); err == nil {
		t.Fatalf("expected invalid pattern error")
	}
}

func TestEditCmdRewritesBlock(t *testing.T) {
	f := newCLIFixture(t)
	out := f.mustRun(t, "edit", testSessionID, "a1", "--block", "1=Goodbye")
	if !strings.Contains(out, "Edited message a1") {
		t.Fatalf("unexpected output %q", out)
	}
	got := f.session(t)
	if !strings.Contains(got, `"text":"Goodbye"`) || strings.Contains(got, "Hi there") {
		t.Fatalf("expected block 1 rewritten, got:\n%s", got)
	}
	if !strings.Contains(got, `"thinking":"hmm"`) {
		t.Fatalf("expected block 0 untouched, got:\n%s", got)
	}
}

func TestEditCmdReadsTextFromFile(t *testing.T) {
	f := newCLIFixture(t)
	textFile := filepath.Join(t.TempDir(), "text.txt")
	if err := os.WriteFile(textFile, []byte("from a file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.mustRun(t, "edit", testSessionID, "u1", "-b", "0=@"+textFile)
	if !strings.Contains(f.session(t), `"content":"from a file"`) {
		t.Fatalf("expected string content replaced, got:\n%s", f.session(t))
	}
}

func TestEditCmdUnknownMessage(t *testing.T) {
	f := newCLIFixture(t)
	before := f.session(t)
	if _, _, err := f.run(t, "edit", testSessionID, "nope", "-b", "0=x"); err == nil {
		t.Fatalf("expected unknown message error")
	}
	if f.session(t) != before {
		t.Fatalf("expected session untouched")
	}
}

func TestParseBlockEdits(t *testing.T) {
	edits, err := parseBlockEdits([]string{"0=a=b", " 2 =c"})
	if err != nil {
		t.Fatalf("parseBlockEdits: %v", err)
	}
	if len(edits) != 2 || edits[0].Index != 0 || edits[0].Text != "a=b" || edits[1].Index != 2 || edits[1].Text != "c" {
		t.Fatalf("unexpected edits %#v", edits)
	}
	for _, bad := range []string{"nope", "-1=x", "x=y", "0=@/definitely/missing/file"} {
		if _, err := parseBlockEdits([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestDeleteCmdRemovesMessages(t *testing.T) {
	f := newCLIFixture(t)
	out := f.mustRun(t, "delete", testSessionID, "u2", "missing")
	if !strings.Contains(out, "Deleted 1 messages") {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.Contains(f.session(t), `"uuid":"u2"`) {
		t.Fatalf("expected u2 removed")
	}
}

func TestDeleteSessionRequiresConfirmation(t *testing.T) {
	f := newCLIFixture(t)
	if _, _, err := f.run(t, "delete-session", testSessionID); err == nil {
		t.Fatalf("expected confirmation error without a terminal")
	}
	if _, err := os.Stat(f.sessionPath); err != nil {
		t.Fatalf("expected session to survive: %v", err)
	}

	f.mustRun(t, "delete-session", testSessionID, "--yes")
	if _, err := os.Stat(f.sessionPath); !os.IsNotExist(err) {
		t.Fatalf("expected session removed, got %v", err)
	}
}

func TestPersistentBackupThenRestore(t *testing.T) {
	f := newCLIFixture(t)
	original := f.session(t)
	f.mustRun(t, "config", "set", "persistentBackup", "true")
	f.mustRun(t, "delete", testSessionID, "u2")

	out := f.mustRun(t, "backups", "list", testSessionID, "--json")
	var backups []struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(out), &backups); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if len(backups) != 1 || !strings.HasPrefix(filepath.Base(backups[0].Path), testSessionID+".jsonl.ccbak") {
		t.Fatalf("unexpected backups %#v", backups)
	}

	f.mustRun(t, "backups", "restore", backups[0].Path)
	if f.session(t) != original {
		t.Fatalf("expected original content restored")
	}
}

func TestExportCmd(t *testing.T) {
	f := newCLIFixture(t)
	out := f.mustRun(t, "export", testSessionID, "--title", "Demo")
	if !strings.HasPrefix(out, "# Demo") || !strings.Contains(out, "hello world") {
		t.Fatalf("unexpected markdown:\n%s", out)
	}

	dest := filepath.Join(t.TempDir(), "out.json")
	f.mustRun(t, "export", testSessionID, "-f", "json", "-o", dest)
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("expected valid JSON export, got:\n%s", data)
	}

	if _, _, err := f.run(t, "export", testSessionID, "-f", "pdf"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestFixersCmds(t *testing.T) {
	f := newCLIFixture(t)
	out := f.mustRun(t, "fixers", "list")
	if !strings.Contains(out, "strip_thinking") {
		t.Fatalf("expected strip_thinking in list:\n%s", out)
	}
	long := f.mustRun(t, "fixers", "list", "--long")
	if !strings.Contains(long, "Fix: ") {
		t.Fatalf("expected fix methods in long list:\n%s", long)
	}

	f.mustRun(t, "fixers", "run", "strip_thinking", testSessionID)
	if strings.Contains(f.session(t), `"thinking"`) {
		t.Fatalf("expected thinking blocks stripped:\n%s", f.session(t))
	}

	if _, _, err := f.run(t, "fixers", "run", "no_such_fixer", testSessionID); err == nil {
		t.Fatalf("expected unknown fixer error")
	}
}

func TestConfigCmds(t *testing.T) {
	f := newCLIFixture(t)
	f.mustRun(t, "config", "set", "--", "resume.flags", "--verbose, --debug")
	if got := strings.TrimSpace(f.mustRun(t, "config", "get", "resume.flags")); got != "--verbose,--debug" {
		t.Fatalf("unexpected resume.flags %q", got)
	}
	if out := f.mustRun(t, "config", "show"); !strings.Contains(out, f.configPath) || !strings.Contains(out, "persistentBackup") {
		t.Fatalf("unexpected config show:\n%s", out)
	}
	if _, _, err := f.run(t, "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestResumeDryRun(t *testing.T) {
	f := newCLIFixture(t)
	f.mustRun(t, "config", "set", "--", "resume.flags", "--verbose")

	out := f.mustRun(t, "resume", testSessionID, "--dry-run", "--yolo", "--claude-path", "/opt/claude", "--", "--model", "opus")
	want := "cd " + f.cwd + "\n/opt/claude --permission-mode bypassPermissions --resume " + testSessionID + " --verbose --model opus\n"
	if out != want {
		t.Fatalf("unexpected dry run:\n%q\nwant:\n%q", out, want)
	}
}

func TestResumeRejectsStrayArgs(t *testing.T) {
	f := newCLIFixture(t)
	if _, _, err := f.run(t, "resume", testSessionID, "--model"); err == nil {
		t.Fatalf("expected error for claude flags without --")
	}
	if _, _, err := f.run(t, "resume", testSessionID, "extra", "--dry-run"); err == nil {
		t.Fatalf("expected error for extra args")
	}
}

func TestTuiRequiresTerminal(t *testing.T) {
	if isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		t.Skip("running attached to a terminal")
	}
	f := newCLIFixture(t)
	if _, _, err := f.run(t, "tui"); err == nil || !strings.Contains(err.Error(), "terminal") {
		t.Fatalf("expected terminal error, got %v", err)
	}
}
