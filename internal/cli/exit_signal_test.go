//go:build !windows

package cli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"testing"
)

func TestRunTargetReportsCrash(t *testing.T) {
	for _, sig := range []syscall.Signal{syscall.SIGSEGV, syscall.SIGABRT, syscall.SIGBUS} {
		t.Run(sig.String(), func(t *testing.T) {
			err := runTarget(context.Background(), []string{"sh", "-c", fmt.Sprintf("kill -%d $$", sig)}, t.TempDir(), nil)
			if err == nil || !strings.Contains(err.Error(), "sh crashed") {
				t.Fatalf("expected crash report for %v, got %v", sig, err)
			}
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				t.Fatalf("expected wrapped exit error, got %T", err)
			}
		})
	}
}

func TestRunTargetPlainExitIsNotACrash(t *testing.T) {
	for _, script := range []string{"kill -TERM $$", "exit 3"} {
		err := runTarget(context.Background(), []string{"sh", "-c", script}, t.TempDir(), nil)
		if err == nil {
			t.Fatalf("%q: expected exit error", script)
		}
		if strings.Contains(err.Error(), "crashed") || exitDueToFatalSignal(err) {
			t.Fatalf("%q: unexpected crash report %v", script, err)
		}
	}
	if exitDueToFatalSignal(errors.New("not an exit error")) {
		t.Fatalf("expected plain errors not to be fatal signals")
	}
}
