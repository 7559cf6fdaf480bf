//go:build windows

package cli

func exitDueToFatalSignal(error) bool { return false }
