package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/baaaaaaaka/claude_code_reader/internal/claudehistory"
)

func TestBuildVersion(t *testing.T) {
	prevVersion := version
	prevCommit := commit
	prevDate := date
	t.Cleanup(func() {
		version = prevVersion
		commit = prevCommit
		date = prevDate
	})

	version = "1.2.3"
	commit = "abc123"
	date = "2026-01-01"

	got := buildVersion()
	want := "1.2.3 (abc123) 2026-01-01"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNewRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "claude-dir", "verbose"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Fatalf("expected persistent flag %q", name)
		}
	}
}

func TestExecuteVersion(t *testing.T) {
	prevArgs := os.Args
	t.Cleanup(func() { os.Args = prevArgs })
	os.Args = []string{"ccr", "--version"}
	if code := Execute(); code != 0 {
		t.Fatalf("expected Execute to return 0 for --version, got %d", code)
	}
}

func TestExecuteInvalidArgs(t *testing.T) {
	prevArgs := os.Args
	t.Cleanup(func() { os.Args = prevArgs })
	os.Args = []string{"ccr", "--not-a-flag"}
	if code := Execute(); code != 1 {
		t.Fatalf("expected Execute to return 1 for invalid args, got %d", code)
	}
}

func TestNewRootCmdUnknownCommand(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"definitely-not-a-command"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected unknown command to return error")
	}
}

const testSessionID = "0f3c9a1e-1111-2222-3333-444455556666"

type cliFixture struct {
	claudeDir   string
	configPath  string
	cwd         string
	sessionPath string
}

// newCLIFixture writes one session under a temp Claude dir. The session
// records a real temp dir as its cwd so resume can use it.
func newCLIFixture(t *testing.T) cliFixture {
	t.Helper()
	f := cliFixture{
		claudeDir:  filepath.Join(t.TempDir(), "claude"),
		configPath: filepath.Join(t.TempDir(), "config.json"),
		cwd:        t.TempDir(),
	}
	dir := filepath.Join(f.claudeDir, "projects", claudehistory.EncodeProjectPath(f.cwd))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cwdJSON, _ := json.Marshal(f.cwd)
	lines := []string{
		`{"type":"user","uuid":"u1","timestamp":"2026-01-01T00:00:00Z","cwd":` + string(cwdJSON) + `,"message":{"role":"user","content":"hello world"}}`,
		`{"type":"assistant","uuid":"a1","parentUuid":"u1","message":{"role":"assistant","model":"claude-test","content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"Hi there"}],"usage":{"input_tokens":3,"output_tokens":4}}}`,
		`{"type":"user","uuid":"u2","parentUuid":"a1","message":{"role":"user","content":"second question"}}`,
	}
	f.sessionPath = filepath.Join(dir, testSessionID+".jsonl")
	if err := os.WriteFile(f.sessionPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write session: %v", err)
	}
	return f
}

func (f cliFixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--claude-dir=" + f.claudeDir, "--config=" + f.configPath}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func (f cliFixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := f.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\nstderr: %s", args, err, errOut)
	}
	return out
}

func (f cliFixture) session(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.sessionPath)
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	return string(data)
}
