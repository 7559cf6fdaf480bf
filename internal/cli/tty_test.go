//go:build !windows

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/creack/pty"
)

func withPseudoTTY(t *testing.T, fn func()) {
	t.Helper()
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("pty not available: %v", err)
		return
	}
	oldStdout := os.Stdout
	oldStderr := os.Stderr
	oldStdin := os.Stdin
	os.Stdout = slave
	os.Stderr = slave
	os.Stdin = slave
	t.Cleanup(func() {
		os.Stdout = oldStdout
		os.Stderr = oldStderr
		os.Stdin = oldStdin
		_ = slave.Close()
		_ = master.Close()
	})
	fn()
}

func writeTTYProbeScript(t *testing.T, outFile string) string {
	t.Helper()
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "claude")
	script := fmt.Sprintf(`#!/bin/sh
out=%q
if [ -t 1 ]; then echo "stdout=tty" >> "$out"; else echo "stdout=notty" >> "$out"; fi
if [ -t 2 ]; then echo "stderr=tty" >> "$out"; else echo "stderr=notty" >> "$out"; fi
echo "pwd=$(pwd)" >> "$out"
echo "args=$*" >> "$out"
echo "claude_dir=$CLAUDE_DIR" >> "$out"
`, outFile)
	if err := os.WriteFile(scriptPath, []byte(script), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return scriptPath
}

func readTTYStatus(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read tty status: %v", err)
	}
	return string(data)
}

func TestRunTargetPreservesTTY(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "tty.txt")
	scriptPath := writeTTYProbeScript(t, outFile)
	cwd := t.TempDir()

	withPseudoTTY(t, func() {
		if err := runTarget(context.Background(), []string{scriptPath, "--resume", "sess-tty"}, cwd, []string{"CLAUDE_DIR=/tmp/claude-tty"}); err != nil {
			t.Fatalf("runTarget error: %v", err)
		}
	})

	got := readTTYStatus(t, outFile)
	for _, want := range []string{"stdout=tty", "stderr=tty", "args=--resume sess-tty", "claude_dir=/tmp/claude-tty"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in probe output, got %q", want, got)
		}
	}
}

func TestResumeRunsClaudeInSessionDir(t *testing.T) {
	f := newCLIFixture(t)
	outFile := filepath.Join(t.TempDir(), "tty.txt")
	scriptPath := writeTTYProbeScript(t, outFile)

	withPseudoTTY(t, func() {
		f.mustRun(t, "resume", testSessionID, "--claude-path", scriptPath)
	})

	got := readTTYStatus(t, outFile)
	wantDir, _ := filepath.EvalSymlinks(f.cwd)
	if !strings.Contains(got, "args=--resume "+testSessionID) {
		t.Fatalf("expected resume args, got %q", got)
	}
	if !strings.Contains(got, "pwd="+f.cwd) && !strings.Contains(got, "pwd="+wantDir) {
		t.Fatalf("expected to run in %s, got %q", f.cwd, got)
	}
	if !strings.Contains(got, "claude_dir="+f.claudeDir) {
		t.Fatalf("expected CLAUDE_DIR to be passed, got %q", got)
	}
}

func TestRunTargetMissingCommand(t *testing.T) {
	if err := runTarget(context.Background(), nil, "", nil); err == nil {
		t.Fatalf("expected error for empty command")
	}
}
