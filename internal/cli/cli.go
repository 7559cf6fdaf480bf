package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/claude_code_reader/internal/config"
	"github.com/baaaaaaaka/claude_code_reader/internal/service"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

type rootOptions struct {
	configPath string
	claudeDir  string
	verbose    bool
}

func Execute() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "ccr",
		Short:         "Read, search, edit and repair Claude Code session transcripts",
		SilenceErrors: false,
		SilenceUsage:  true,
		Version:       buildVersion(),
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Default behavior: equivalent to `ccr tui`.
			return runTui(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Override config file path (default: OS user config dir)")
	cmd.PersistentFlags().StringVar(&opts.claudeDir, "claude-dir", "", "Override Claude Code data dir (default: $CLAUDE_DIR or ~/.claude)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log cache, scan and write activity to stderr")

	cmd.AddCommand(
		newProjectsCmd(opts),
		newShowCmd(opts),
		newSearchCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newDeleteSessionCmd(opts),
		newExportCmd(opts),
		newFixersCmd(opts),
		newBackupsCmd(opts),
		newConfigCmd(opts),
		newTuiCmd(opts),
		newResumeCmd(opts),
	)

	return cmd
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}

// env bundles what a subcommand needs: the loaded config, its store and a
// service built from both.
type env struct {
	store *config.Store
	cfg   config.Config
	svc   *service.Service
	log   io.Writer
}

func openEnv(cmd *cobra.Command, root *rootOptions) (*env, error) {
	store, err := config.NewStore(root.configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}

	var log io.Writer
	if root.verbose {
		log = cmd.ErrOrStderr()
	}
	claudeDir := strings.TrimSpace(root.claudeDir)
	if claudeDir == "" {
		claudeDir = cfg.ClaudeDir
	}

	svc, err := service.New(service.Options{
		ClaudeDir: claudeDir,
		// Re-read so a toggle made from another process applies to the next write.
		PersistentBackup: func() bool {
			current, err := store.Load()
			if err != nil {
				return cfg.PersistentBackup
			}
			return current.PersistentBackup
		},
		ProjectTTL:       cfg.ProjectCacheTTL(),
		SessionCacheSize: cfg.SessionCacheCapacity(),
		ScanWorkers:      cfg.Workers(),
		Log:              log,
	})
	if err != nil {
		return nil, err
	}
	return &env{store: store, cfg: cfg, svc: svc, log: log}, nil
}

func (e *env) logf(format string, args ...any) {
	if e.log == nil {
		return
	}
	_, _ = fmt.Fprintf(e.log, format+"\n", args...)
}
