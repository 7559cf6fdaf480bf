//go:build !windows

package cli

import (
	"errors"
	"os/exec"
	"syscall"
)

// exitDueToFatalSignal reports whether the process behind err was killed by
// a crash signal rather than asked to stop.
func exitDueToFatalSignal(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return false
	}
	switch status.Signal() {
	case syscall.SIGSEGV, syscall.SIGBUS, syscall.SIGILL, syscall.SIGABRT, syscall.SIGFPE, syscall.SIGTRAP, syscall.SIGSYS:
		return true
	}
	return false
}
