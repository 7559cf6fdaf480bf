package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const defaultTableWidth = 120

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// outputWidth is the terminal width of w, or a fixed width when w is not a
// terminal.
func outputWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 20 {
			return width
		}
	}
	return defaultTableWidth
}

// writeTable prints rows in aligned columns. The last column is truncated
// to fit width.
func writeTable(w io.Writer, width int, header []string, rows [][]string) {
	if len(header) == 0 {
		return
	}
	cols := make([]int, len(header))
	all := append([][]string{header}, rows...)
	for _, row := range all {
		for i, cell := range row {
			if i < len(cols) {
				cols[i] = max(cols[i], runewidth.StringWidth(cell))
			}
		}
	}
	for _, row := range all {
		var b strings.Builder
		used := 0
		for i, cell := range row {
			if i >= len(cols) {
				break
			}
			if i == len(cols)-1 {
				b.WriteString(runewidth.Truncate(cell, max(width-used, 1), "…"))
				break
			}
			b.WriteString(runewidth.FillRight(cell, cols[i]))
			b.WriteString("  ")
			used += cols[i] + 2
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}

func relTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
