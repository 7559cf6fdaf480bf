package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/claude_code_reader/internal/fixers"
	"github.com/baaaaaaaka/claude_code_reader/internal/guard"
)

func newFixersCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixers",
		Short: "List and run repairs for broken sessions",
	}
	cmd.AddCommand(newFixersListCmd(root), newFixersRunCmd(root))
	return cmd
}

func newFixersListCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	var long bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available fixers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd, root)
			if err != nil {
				return err
			}
			defs := e.svc.ListFixers()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), defs)
			}
			writeFixers(cmd.OutOrStdout(), defs, long)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Include the error each fixer addresses and how it fixes it")
	return cmd
}

func writeFixers(w io.Writer, defs []fixers.Definition, long bool) {
	if !long {
		rows := make([][]string, 0, len(defs))
		for _, d := range defs {
			rows = append(rows, []string{d.ID, string(d.Tier), d.Name})
		}
		writeTable(w, outputWidth(w), []string{"ID", "TIER", "NAME"}, rows)
		return
	}
	for i, d := range defs {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "%s  [%s]\n  %s\n", d.ID, d.Tier, d.Name)
		for _, line := range strings.Split(d.Description, "\n") {
			_, _ = fmt.Fprintln(w, "  "+line)
		}
		_, _ = fmt.Fprintf(w, "  Fix: %s\n", d.FixMethod)
		if len(d.Tags) > 0 {
			_, _ = fmt.Fprintf(w, "  Tags: %s\n", strings.Join(d.Tags, ", "))
		}
	}
}

func newFixersRunCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <fixer-id> <session>",
		Short: "Run a fixer against a session (a backup is kept)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, root)
			if err != nil {
				return err
			}
			sess, _, err := e.svc.ResolveSession(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			res, err := e.svc.RunFixer(cmd.Context(), args[0], sess.FilePath)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			if !res.Success {
				return fmt.Errorf("fixer %s did not succeed", args[0])
			}
			return nil
		},
	}
	return cmd
}

func newBackupsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List and restore session backups",
	}
	cmd.AddCommand(newBackupsListCmd(root), newBackupsRestoreCmd(root))
	return cmd
}

func newBackupsListCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list [session]",
		Short: "List persistent backups of a session, or of every session",
		Long: "Temporary backups only live as long as the process that made them, so a separate\n" +
			"invocation lists the <session>.ccbak<unix> copies kept when persistentBackup is on.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, root)
			if err != nil {
				return err
			}
			var backups []guard.Backup
			if len(args) == 1 {
				sess, _, err := e.svc.ResolveSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				backups, err = e.svc.SessionBackups(sess.FilePath)
				if err != nil {
					return err
				}
			} else {
				projects, err := e.svc.ScanProjects(cmd.Context())
				if err != nil {
					return err
				}
				for _, p := range projects {
					for _, s := range p.Sessions {
						found, err := e.svc.SessionBackups(s.FilePath)
						if err != nil {
							return err
						}
						backups = append(backups, found...)
					}
				}
			}
			if asJSON {
				if backups == nil {
					backups = []guard.Backup{}
				}
				return writeJSON(cmd.OutOrStdout(), backups)
			}
			rows := make([][]string, 0, len(backups))
			for _, b := range backups {
				rows = append(rows, []string{relTime(b.CreatedAt), b.Path})
			}
			writeTable(cmd.OutOrStdout(), outputWidth(cmd.OutOrStdout()), []string{"CREATED", "PATH"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newBackupsRestoreCmd(root *rootOptions) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "restore <backup>",
		Short: "Write a backup back over the session it was taken from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, root)
			if err != nil {
				return err
			}
			b, err := e.svc.RestoreBackup(cmd.Context(), args[0], target)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", b.Original, b.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "Session file to restore into (required for temporary backups)")
	return cmd
}
