package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/claude_code_reader/internal/claudehistory"
	"github.com/baaaaaaaka/claude_code_reader/internal/config"
	"github.com/baaaaaaaka/claude_code_reader/internal/transcript"
)

type resumeOptions struct {
	claudePath string
	yolo       bool
	dryRun     bool
}

func newResumeCmd(root *rootOptions) *cobra.Command {
	opts := &resumeOptions{}

	cmd := &cobra.Command{
		Use:   "resume <session> [-- extra claude args...]",
		Short: "Resume a session in Claude Code from its working directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := []string{}
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				if dash != 1 {
					return fmt.Errorf("unexpected args before -- (only the session is allowed)")
				}
				extra = args[dash:]
			} else if len(args) > 1 {
				return fmt.Errorf("unexpected args %q; pass claude flags after --", args[1:])
			}

			e, err := openEnv(cmd, root)
			if err != nil {
				return err
			}
			sess, project, err := e.svc.ResolveSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cwd := ""
			if records, err := e.svc.Records(cmd.Context(), sess.FilePath); err == nil {
				cwd = sessionWorkingDir(records)
			}
			return runClaudeSession(cmd.Context(), e, sess, project, cwd, opts, extra, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.claudePath, "claude-path", "", "Override Claude CLI path (default: config resume.claudePath, then PATH)")
	cmd.Flags().BoolVar(&opts.yolo, "yolo", false, "Start with --permission-mode bypassPermissions")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the command and working dir instead of running it")
	return cmd
}

// sessionWorkingDir is the cwd recorded on the first record that has one.
func sessionWorkingDir(records []*transcript.Record) string {
	for _, rec := range records {
		if cwd := strings.TrimSpace(rec.Cwd()); cwd != "" {
			return cwd
		}
	}
	return ""
}

func buildClaudeResumeCommand(
	claudePath string,
	session claudehistory.Session,
	project claudehistory.Project,
	cwd string,
	resume config.ResumeConfig,
	yolo bool,
	extra []string,
) (string, []string, string, error) {
	if session.SessionID == "" {
		return "", nil, "", fmt.Errorf("missing session id")
	}

	if strings.TrimSpace(cwd) == "" {
		cwd = project.Path
	}
	if cwd == "" {
		return "", nil, "", fmt.Errorf("cannot determine session working directory")
	}
	cwd, err := normalizeWorkingDir(cwd)
	if err != nil {
		return "", nil, "", err
	}

	path := claudePath
	if path == "" {
		path = resume.ClaudePath
	}
	if path == "" {
		var err error
		path, err = exec.LookPath("claude")
		if err != nil {
			return "", nil, "", fmt.Errorf("claude CLI not found in PATH")
		}
	}

	args := []string{"--resume", session.SessionID}
	if yolo || resume.Yolo {
		args = append([]string{"--permission-mode", "bypassPermissions"}, args...)
	}
	args = append(args, resume.Flags...)
	args = append(args, strings.Fields(resume.CustomArgs)...)
	args = append(args, extra...)
	return path, args, cwd, nil
}

func normalizeWorkingDir(cwd string) (string, error) {
	cwd = strings.TrimSpace(cwd)
	if cwd == "" {
		return "", fmt.Errorf("missing working directory")
	}
	if !filepath.IsAbs(cwd) {
		cwd, _ = filepath.Abs(cwd)
	}
	if st, err := os.Stat(cwd); err != nil || !st.IsDir() {
		if err != nil {
			return "", fmt.Errorf("working directory not found: %w", err)
		}
		return "", fmt.Errorf("working directory is not a directory: %s", cwd)
	}
	return cwd, nil
}

func runClaudeSession(
	ctx context.Context,
	e *env,
	session claudehistory.Session,
	project claudehistory.Project,
	cwd string,
	opts *resumeOptions,
	extra []string,
	out io.Writer,
) error {
	path, args, dir, err := buildClaudeResumeCommand(opts.claudePath, session, project, cwd, e.cfg.Resume, opts.yolo, extra)
	if err != nil {
		return err
	}
	if opts.dryRun {
		_, _ = fmt.Fprintf(out, "cd %s\n%s\n", dir, strings.Join(append([]string{path}, args...), " "))
		return nil
	}

	extraEnv := []string{}
	if claudeDir := e.svc.ClaudeDir(); claudeDir != "" {
		extraEnv = append(extraEnv, claudehistory.EnvClaudeDir+"="+claudeDir)
	}
	e.logf("resume: running %s %s in %s", path, strings.Join(args, " "), dir)
	return runTarget(ctx, append([]string{path}, args...), dir, extraEnv)
}

// runTarget runs cmdArgs attached to the current terminal until it exits or
// ctx is cancelled.
func runTarget(ctx context.Context, cmdArgs []string, dir string, extraEnv []string) error {
	if len(cmdArgs) == 0 {
		return fmt.Errorf("missing command")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if exitDueToFatalSignal(err) {
			return fmt.Errorf("%s crashed: %w", filepath.Base(cmdArgs[0]), err)
		}
		return err
	case <-ctx.Done():
		_ = terminateProcess(cmd.Process, done, 2*time.Second)
		return ctx.Err()
	}
}

// terminateProcess interrupts p and kills it if it has not exited within
// grace. done receives the result of Wait.
func terminateProcess(p *os.Process, done <-chan error, grace time.Duration) error {
	if p == nil {
		return nil
	}
	_ = p.Signal(os.Interrupt)
	select {
	case <-done:
		return nil
	case <-time.After(grace):
	}
	err := p.Kill()
	<-done
	return err
}
