package claudehistory

import (
	"os"
	"strings"
)

// isDir follows symlinks, so a linked project directory still counts.
func isDir(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
