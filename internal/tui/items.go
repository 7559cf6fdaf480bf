package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"

	"github.com/baaaaaaaka/claude_code_reader/internal/claudehistory"
)

type projectItem struct {
	label         string
	project       claudehistory.Project
	isCurrent     bool
	alwaysVisible bool
}

type sessionItem struct {
	label   string
	session claudehistory.Session
}

type row struct {
	label    string
	selected bool
	focused  bool
	bold     bool
	dim      bool
}

// buildProjectItems lists projects in scan order with the project for
// defaultCwd, if any, moved to the top.
func buildProjectItems(projects []claudehistory.Project, defaultCwd string) []projectItem {
	items := make([]projectItem, 0, len(projects))
	currentResolved := normalizePathForCompare(strings.TrimSpace(defaultCwd))
	currentIdx := -1

	for _, project := range projects {
		label := project.DisplayName()
		if len(project.Sessions) > 0 {
			label = fmt.Sprintf("%s  (%d)", label, len(project.Sessions))
		}
		isCurrent := currentResolved != "" && isSamePath(project.Path, currentResolved)
		if isCurrent {
			label = "[current] " + label
		}
		items = append(items, projectItem{
			label:         label,
			project:       project,
			isCurrent:     isCurrent,
			alwaysVisible: isCurrent,
		})
		if isCurrent && currentIdx == -1 {
			currentIdx = len(items) - 1
		}
	}

	if currentIdx > 0 {
		cur := items[currentIdx]
		items = append([]projectItem{cur}, append(items[:currentIdx], items[currentIdx+1:]...)...)
	}
	return items
}

func buildSessionItems(project claudehistory.Project) []sessionItem {
	items := make([]sessionItem, 0, len(project.Sessions))
	for _, s := range project.Sessions {
		label := fmt.Sprintf("%s  %s  %s", s.ModifiedAt.Local().Format("2006-01-02 15:04"), s.SessionID, humanize.IBytes(uint64(max(s.Size, 0))))
		items = append(items, sessionItem{label: label, session: s})
	}
	return items
}

func selectedProject(items []projectItem, idx int) claudehistory.Project {
	if idx < 0 || idx >= len(items) {
		return claudehistory.Project{}
	}
	return items[idx].project
}

func selectedSessionItem(items []sessionItem, idx int) *claudehistory.Session {
	if idx < 0 || idx >= len(items) {
		return nil
	}
	s := items[idx].session
	return &s
}

type projectSource []projectItem

func (s projectSource) String(i int) string { return s[i].label }
func (s projectSource) Len() int            { return len(s) }

type sessionSource []sessionItem

func (s sessionSource) String(i int) string { return s[i].label }
func (s sessionSource) Len() int            { return len(s) }

// filterProjects keeps the items that fuzzy-match needle, best match first.
// The current project stays on top whether it matches or not.
func filterProjects(items []projectItem, needle string) []projectItem {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return items
	}
	out := make([]projectItem, 0, len(items))
	for _, it := range items {
		if it.alwaysVisible {
			out = append(out, it)
		}
	}
	for _, m := range fuzzy.FindFrom(needle, projectSource(items)) {
		if !items[m.Index].alwaysVisible {
			out = append(out, items[m.Index])
		}
	}
	return out
}

func filterSessions(items []sessionItem, needle string) []sessionItem {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return items
	}
	matches := fuzzy.FindFrom(needle, sessionSource(items))
	out := make([]sessionItem, 0, len(matches))
	for _, m := range matches {
		out = append(out, items[m.Index])
	}
	return out
}

func normalizePathForCompare(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

func isSamePath(path string, currentResolved string) bool {
	if strings.TrimSpace(path) == "" || currentResolved == "" {
		return false
	}
	return normalizePathForCompare(path) == currentResolved
}

func renderProjectRows(items []projectItem, focused bool, state listState, viewH int) []row {
	rows := make([]row, 0, min(len(items), max(0, viewH)))
	start := clamp(state.scroll, 0, max(0, len(items)))
	end := min(len(items), start+max(0, viewH))
	for i := start; i < end; i++ {
		rows = append(rows, row{label: items[i].label, bold: items[i].isCurrent, dim: len(items[i].project.Sessions) == 0})
	}
	return applySelection(rows, focused, listState{selected: state.selected - start})
}

func renderSessionRows(items []sessionItem, focused bool, state listState, viewH int) []row {
	rows := make([]row, 0, min(len(items), max(0, viewH)))
	start := clamp(state.scroll, 0, max(0, len(items)))
	end := min(len(items), start+max(0, viewH))
	for i := start; i < end; i++ {
		rows = append(rows, row{label: items[i].label})
	}
	return applySelection(rows, focused, listState{selected: state.selected - start})
}

func applySelection(rows []row, focused bool, state listState) []row {
	if len(rows) == 0 {
		return rows
	}
	state.clamp(len(rows))
	rows[state.selected].selected = true
	rows[state.selected].focused = focused
	rows[state.selected].dim = false
	return rows
}
