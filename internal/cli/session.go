package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/claude_code_reader/internal/export"
	"github.com/baaaaaaaka/claude_code_reader/internal/search"
	"github.com/baaaaaaaka/claude_code_reader/internal/service"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	var q search.Query
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <session> <query>",
		Short: "Find the messages of a session that match a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, root)
			if err != nil {
				return err
			}
			sess, _, err := e.svc.ResolveSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			q.Text = args[1]
			ids, err := e.svc.SearchSession(cmd.Context(), sess.FilePath, q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"query": q, "matches": ids})
			}
			bundle, err := e.svc.LoadSession(cmd.Context(), sess.FilePath)
			if err != nil {
				return err
			}
			matcher, err := search.Compile(q)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			width := outputWidth(w)
			for _, id := range ids {
				u, ok := bundle.Unit(id)
				if !ok {
					continue
				}
				_, _ = fmt.Fprintf(w, "%s  %s\n", id, u.Title())
				for _, line := range u.Lines() {
					if matcher.MatchString(line) {
						_, _ = fmt.Fprintln(w, "    "+runewidth.Truncate(strings.TrimSpace(line), max(width-4, 10), "…"))
					}
				}
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d matching messages (%s)\n", len(ids), q.Mode())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&q.CaseSensitive, "case-sensitive", "c", false, "Match case exactly")
	cmd.Flags().BoolVarP(&q.WholeWord, "word", "w", false, "Match whole words only")
	cmd.Flags().BoolVarP(&q.Regex, "regex", "e", false, "Treat the query as a regular expression")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print matching message ids as JSON")
	return cmd
}

func newEditCmd(root *rootOptions) *cobra.Command {
	var blocks []string

	cmd := &cobra.Command{
		Use:   "edit <session> <uuid>",
		Short: "Replace the text of content blocks of one message",
		Long: "Each --block takes INDEX=TEXT, where INDEX is the position of the block in the message content.\n" +
			"Use INDEX=@FILE to read the text from a file. Tool inputs must be valid JSON.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			edits, err := parseBlockEdits(blocks)
			if err != nil {
				return err
			}
			e, err := openEnv(cmd, root)
			if err != nil {
				return err
			}
			sess, _, err := e.svc.ResolveSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if _, err := e.svc.EditMessage(cmd.Context(), sess.FilePath, args[1], edits); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Edited message %s in %s\n", args[1], sess.SessionID)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&blocks, "block", "b", nil, "Block edit as INDEX=TEXT or INDEX=@FILE (repeatable)")
	_ = cmd.MarkFlagRequired("block")
	return cmd
}

func parseBlockEdits(raw []string) ([]service.BlockEdit, error) {
	edits := make([]service.BlockEdit, 0, len(raw))
	for _, arg := range raw {
		idx, text, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --block %q: expected INDEX=TEXT", arg)
		}
		n, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid --block index %q", idx)
		}
		if strings.HasPrefix(text, "@") {
			data, err := os.ReadFile(text[1:])
			if err != nil {
				return nil, fmt.Errorf("read block %d text: %w", n, err)
			}
			text = string(data)
		}
		edits = append(edits, service.BlockEdit{Index: n, Text: text})
	}
	return edits, nil
}

func newDeleteCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <session> <uuid>...",
		Short: "Delete messages from a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, root)
			if err != nil {
				return err
			}
			sess, _, err := e.svc.ResolveSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			before, err := e.svc.Records(cmd.Context(), sess.FilePath)
			if err != nil {
				return err
			}
			n := len(before)
			if _, err := e.svc.DeleteMessages(cmd.Context(), sess.FilePath, args[1:]...); err != nil {
				return err
			}
			after, err := e.svc.Records(cmd.Context(), sess.FilePath)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d messages from %s\n", n-len(after), sess.SessionID)
			return nil
		},
	}
	return cmd
}

func newDeleteSessionCmd(root *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-session <session>",
		Short: "Delete a whole session file (a backup is kept)",
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
			if !yes {
				if !isTerminal(cmd.InOrStdin()) {
					return errors.New("refusing to delete without confirmation; pass --yes")
				}
				label := fmt.Sprintf("Delete session %s of %s?", sess.SessionID, project.DisplayName())
				if !promptYesNo(bufio.NewReader(cmd.InOrStdin()), cmd.ErrOrStderr(), label, false) {
					return nil
				}
			}
			if err := e.svc.DeleteSession(cmd.Context(), sess.FilePath); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", sess.SessionID)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var format string
	var outPath string
	var title string

	cmd := &cobra.Command{
		Use:   "export <session>",
		Short: "Export a session as markdown, json or yaml",
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
			if title == "" {
				title = fmt.Sprintf("%s (%s)", project.DisplayName(), sess.SessionID)
			}
			out, err := e.svc.ExportSession(cmd.Context(), sess.FilePath, format, title)
			if err != nil {
				return err
			}
			if outPath == "" || outPath == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), strings.TrimSuffix(out, "\n")+"\n")
				return err
			}
			if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", sess.SessionID, outPath)
			return nil
		},
	}
	names := make([]string, 0, len(export.Formats))
	for _, f := range export.Formats {
		names = append(names, string(f))
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatMarkdown), "Export format: "+strings.Join(names, ", "))
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().StringVar(&title, "title", "", "Markdown document title (default: project and session id)")
	return cmd
}

func promptYesNo(r *bufio.Reader, w io.Writer, label string, def bool) bool {
	defStr := "n"
	if def {
		defStr = "y"
	}
	for {
		_, _ = fmt.Fprintf(w, "%s (y/n) [%s]: ", label, defStr)
		s, err := r.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		case "":
			return def
		}
		if err != nil {
			return def
		}
	}
}
