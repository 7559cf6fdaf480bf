package claudehistory

import (
	"os"
	"path/filepath"
	"strings"
)

const sessionFileExt = ".jsonl"

type sessionFile struct {
	path string
	info os.FileInfo
}

// collectSessionFiles lists the regular transcript files directly inside dir,
// skipping sub-agent transcripts.
func collectSessionFiles(dir string) ([]sessionFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]sessionFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !isSessionFileName(name) {
			continue
		}
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, sessionFile{path: path, info: info})
	}
	return files, nil
}

func isSessionFileName(name string) bool {
	return strings.HasSuffix(name, sessionFileExt) && !isAgentSessionFileName(name)
}

func isAgentSessionFileName(name string) bool {
	return strings.HasPrefix(name, "agent-") && strings.HasSuffix(name, sessionFileExt)
}
