package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/claude_code_reader/internal/claudehistory"
	"github.com/baaaaaaaka/claude_code_reader/internal/display"
)

func newProjectsCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	var withSessions bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects and their sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd, root)
			if err != nil {
				return err
			}
			projects, err := e.svc.ScanProjects(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"projects": projects})
			}
			writeProjects(cmd.OutOrStdout(), projects, withSessions)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().BoolVarP(&withSessions, "sessions", "s", false, "List the sessions of every project")
	return cmd
}

func writeProjects(w io.Writer, projects []claudehistory.Project, withSessions bool) {
	width := outputWidth(w)
	if !withSessions {
		rows := make([][]string, 0, len(projects))
		for _, p := range projects {
			rows = append(rows, []string{
				strconv.Itoa(len(p.Sessions)),
				relTime(p.LastActivity()),
				p.DisplayName(),
			})
		}
		writeTable(w, width, []string{"SESSIONS", "LAST ACTIVITY", "PROJECT"}, rows)
		return
	}
	for i, p := range projects {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintln(w, runewidth.Truncate(p.DisplayName(), width, "…"))
		rows := make([][]string, 0, len(p.Sessions))
		for _, s := range p.Sessions {
			rows = append(rows, []string{
				"  " + s.SessionID,
				relTime(s.ModifiedAt),
				humanize.IBytes(uint64(max(s.Size, 0))),
			})
		}
		writeTable(w, width, []string{"  SESSION", "MODIFIED", "SIZE"}, rows)
	}
}

func newShowCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Print a session as display units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, root)
			if err != nil {
				return err
			}
			sess, project, err := e.svc.ResolveSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			bundle, err := e.svc.LoadSession(cmd.Context(), sess.FilePath)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), bundle)
			}
			writeSession(cmd.OutOrStdout(), sess, project, bundle)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the display bundle as JSON")
	return cmd
}

func writeSession(w io.Writer, sess claudehistory.Session, project claudehistory.Project, b *display.Bundle) {
	_, _ = fmt.Fprintf(w, "Session: %s\n", sess.SessionID)
	_, _ = fmt.Fprintf(w, "Project: %s\n", project.DisplayName())
	_, _ = fmt.Fprintf(w, "File:    %s (%s, modified %s)\n", sess.FilePath, humanize.IBytes(uint64(max(sess.Size, 0))), relTime(sess.ModifiedAt))
	_, _ = fmt.Fprintf(w, "Tokens:  %s (in %s, out %s, cache write %s, cache read %s)\n",
		humanize.Comma(b.Stats.Total()),
		humanize.Comma(b.Stats.InputTokens),
		humanize.Comma(b.Stats.OutputTokens),
		humanize.Comma(b.Stats.CacheCreationInputTokens),
		humanize.Comma(b.Stats.CacheReadInputTokens),
	)
	for _, u := range b.Units {
		writeUnit(w, u)
	}
}

func writeUnit(w io.Writer, u display.Unit) {
	ts := u.Timestamp
	if ts == "" {
		ts = "unknown time"
	}
	_, _ = fmt.Fprintf(w, "\n── %s · %s · %s\n", u.Title(), u.ID, ts)
	for _, line := range u.Lines() {
		_, _ = fmt.Fprintln(w, line)
	}
}
