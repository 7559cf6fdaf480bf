package claudehistory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

const EnvClaudeDir = "CLAUDE_DIR"

const defaultScanWorkers = 8

type ScanOptions struct {
	// Workers bounds how many project directories are read at once.
	Workers int
	Log     io.Writer
}

func ResolveClaudeDir(override string) (string, error) {
	if v := strings.TrimSpace(override); v != "" {
		return filepath.Clean(os.ExpandEnv(v)), nil
	}
	if v := strings.TrimSpace(os.Getenv(EnvClaudeDir)); v != "" {
		return filepath.Clean(os.ExpandEnv(v)), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude"), nil
}

func ProjectsDir(claudeDir string) string {
	return filepath.Join(claudeDir, "projects")
}

// DiscoverProjects scans <claudeDir>/projects. Sessions are ordered newest
// first; projects by their newest session, with empty projects last. A
// missing data dir yields no projects and no error.
func DiscoverProjects(ctx context.Context, claudeDir string, opts ScanOptions) ([]Project, error) {
	root, err := ResolveClaudeDir(claudeDir)
	if err != nil {
		return nil, err
	}
	projectsDir := ProjectsDir(root)
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Project{}, nil
		}
		return nil, fmt.Errorf("read projects dir: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || isDir(filepath.Join(projectsDir, entry.Name())) {
			keys = append(keys, entry.Name())
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultScanWorkers
	}
	projects := make([]Project, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			projects[i] = scanProject(projectsDir, key, opts.Log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortProjects(projects)
	return projects, nil
}

func scanProject(projectsDir, key string, log io.Writer) Project {
	dir := filepath.Join(projectsDir, key)
	project := Project{
		Key:      key,
		Path:     DecodeProjectPath(key),
		Dir:      dir,
		Sessions: []Session{},
	}
	files, err := collectSessionFiles(dir)
	if err != nil {
		if log != nil {
			_, _ = fmt.Fprintf(log, "scan: skip project %s: %v\n", key, err)
		}
		return project
	}
	for _, f := range files {
		project.Sessions = append(project.Sessions, Session{
			SessionID:  SessionIDFromPath(f.path),
			FilePath:   f.path,
			ProjectKey: key,
			ModifiedAt: f.info.ModTime(),
			Size:       f.info.Size(),
		})
	}
	sort.Slice(project.Sessions, func(i, j int) bool {
		a, b := project.Sessions[i], project.Sessions[j]
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.After(b.ModifiedAt)
		}
		return a.SessionID < b.SessionID
	})
	return project
}

func sortProjects(projects []Project) {
	sort.Slice(projects, func(i, j int) bool {
		a, b := projects[i], projects[j]
		ae, be := len(a.Sessions) == 0, len(b.Sessions) == 0
		if ae != be {
			return be
		}
		if ta, tb := a.LastActivity(), b.LastActivity(); !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.Key < b.Key
	})
}

// ProjectForDir finds the project whose directory name encodes dir.
func ProjectForDir(projects []Project, dir string) (Project, bool) {
	key := EncodeProjectPath(dir)
	for _, p := range projects {
		if p.Key == key {
			return p, true
		}
	}
	return Project{}, false
}
