package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/claude_code_reader/internal/tui"
)

func newTuiCmd(root *rootOptions) *cobra.Command {
	opts := &resumeOptions{}

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse, search and trim Claude Code sessions in a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTuiWith(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.claudePath, "claude-path", "", "Override Claude CLI path (default: config resume.claudePath, then PATH)")
	cmd.Flags().BoolVar(&opts.yolo, "yolo", false, "Start with YOLO mode on")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the resume command instead of running it")
	return cmd
}

func runTui(cmd *cobra.Command, root *rootOptions) error {
	return runTuiWith(cmd, root, &resumeOptions{})
}

func runTuiWith(cmd *cobra.Command, root *rootOptions, opts *resumeOptions) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return errors.New("the session browser needs a terminal; see `ccr --help` for the non-interactive commands")
	}
	e, err := openEnv(cmd, root)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if e.cfg.WatchEnabled() {
		go func() {
			if err := e.svc.Watch(ctx); err != nil {
				e.logf("tui: file watch stopped: %v", err)
			}
		}()
	}

	cwd, _ := os.Getwd()
	selection, err := tui.SelectSession(ctx, tui.Options{
		Backend:    e.svc,
		Version:    version,
		DefaultCwd: cwd,
		Yolo:       opts.yolo || e.cfg.Resume.Yolo,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if selection == nil {
		return nil
	}
	cancel()

	// The browser starts from the configured default, so its toggle wins.
	resume := *opts
	resume.yolo = selection.Yolo
	e.cfg.Resume.Yolo = false
	sessionCwd := ""
	if records, err := e.svc.Records(cmd.Context(), selection.Session.FilePath); err == nil {
		sessionCwd = sessionWorkingDir(records)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Resuming %s\n", selection.Session.SessionID)
	return runClaudeSession(cmd.Context(), e, selection.Session, selection.Project, sessionCwd, &resume, nil, cmd.OutOrStdout())
}
