package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/baaaaaaaka/claude_code_reader/internal/claudehistory"
	"github.com/baaaaaaaka/claude_code_reader/internal/display"
	"github.com/baaaaaaaka/claude_code_reader/internal/search"
)

var errQuit = errors.New("quit")

// Backend is the part of the session service the browser uses.
type Backend interface {
	ScanProjects(ctx context.Context) ([]claudehistory.Project, error)
	LoadSession(ctx context.Context, path string) (*display.Bundle, error)
	SearchSession(ctx context.Context, path string, q search.Query) ([]string, error)
	DeleteMessages(ctx context.Context, path string, uuids ...string) (*display.Bundle, error)
	InvalidateProjects()
}

type Selection struct {
	Project claudehistory.Project
	Session claudehistory.Session
	Yolo    bool
}

type Options struct {
	Backend    Backend
	Version    string
	DefaultCwd string
	Yolo       bool
}

type uiEvent struct {
	when time.Time
	kind string
}

func (e *uiEvent) When() time.Time { return e.when }

type previewEvent struct {
	path   string
	bundle *display.Bundle
	err    error
}

type listState struct {
	selected int
	scroll   int
}

type previewState struct {
	scroll int
}

type uiState struct {
	projects      []claudehistory.Project
	loadError     error
	focus         string
	lastListFocus string
	inputMode     string
	inputBuffer   string
	projectFilter string
	sessionFilter string
	projectState  listState
	sessionState  listState
	previewState  previewState
	yolo          bool

	previews       map[string]*display.Bundle
	previewError   map[string]string
	previewLoading map[string]bool

	query       search.Query
	matches     []string
	matchIdx    int
	matchKey    string
	searchError string

	pendingDelete string
	notice        string
}

func newState(projects []claudehistory.Project, loadErr error, yolo bool) *uiState {
	return &uiState{
		projects:       projects,
		loadError:      loadErr,
		focus:          "projects",
		lastListFocus:  "projects",
		yolo:           yolo,
		previews:       map[string]*display.Bundle{},
		previewError:   map[string]string{},
		previewLoading: map[string]bool{},
	}
}

// SelectSession runs the browser until the user picks a session to resume
// or quits. A nil selection with a nil error means the user quit.
func SelectSession(ctx context.Context, opts Options) (*Selection, error) {
	if opts.Backend == nil {
		return nil, errors.New("Backend is required")
	}

	projects, err := opts.Backend.ScanProjects(ctx)
	state := newState(projects, err, opts.Yolo)

	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	defer screen.Fini()

	return run(ctx, screen, state, opts)
}

func run(ctx context.Context, screen tcell.Screen, state *uiState, opts Options) (*Selection, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	previewCh := make(chan previewEvent, 8)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = screen.PostEvent(&uiEvent{when: time.Now(), kind: "quit"})
		case <-stop:
		}
	}()

	for {
		draw(ctx, screen, state, opts, previewCh)
		ev := screen.PollEvent()

		switch tev := ev.(type) {
		case nil:
			return nil, nil
		case *uiEvent:
			switch tev.kind {
			case "quit":
				return nil, ctx.Err()
			case "preview":
				drainPreviews(state, previewCh)
			}
		case *tcell.EventResize:
			screen.Sync()
		case *tcell.EventKey:
			selection, err := handleKey(ctx, screen, state, opts, tev)
			if err != nil {
				if errors.Is(err, errQuit) {
					return nil, nil
				}
				return nil, err
			}
			if selection != nil {
				return selection, nil
			}
		}
	}
}

func drainPreviews(state *uiState, previewCh <-chan previewEvent) {
	for {
		select {
		case ev := <-previewCh:
			if ev.err != nil {
				state.previewError[ev.path] = ev.err.Error()
			} else {
				state.previews[ev.path] = ev.bundle
				delete(state.previewError, ev.path)
			}
			state.previewLoading[ev.path] = false
		default:
			return
		}
	}
}

func ensurePreview(ctx context.Context, screen tcell.Screen, state *uiState, opts Options, session claudehistory.Session, previewCh chan<- previewEvent) {
	path := session.FilePath
	if path == "" {
		return
	}
	if _, ok := state.previews[path]; ok {
		return
	}
	if state.previewLoading[path] || state.previewError[path] != "" {
		return
	}
	state.previewLoading[path] = true

	go func() {
		b, err := opts.Backend.LoadSession(ctx, path)
		select {
		case previewCh <- previewEvent{path: path, bundle: b, err: err}:
		case <-ctx.Done():
			return
		}
		_ = screen.PostEvent(&uiEvent{when: time.Now(), kind: "preview"})
	}()
}

// view is what the current state selects, recomputed for every key and
// frame.
type view struct {
	layout   layout
	projects []projectItem
	sessions []sessionItem
	project  claudehistory.Project
	session  *claudehistory.Session
}

func currentView(screen tcell.Screen, state *uiState, opts Options) view {
	v := view{layout: computeLayout(screen)}
	v.projects = filterProjects(buildProjectItems(state.projects, opts.DefaultCwd), state.projectFilter)
	state.projectState.clamp(len(v.projects))
	v.project = selectedProject(v.projects, state.projectState.selected)

	v.sessions = filterSessions(buildSessionItems(v.project), state.sessionFilter)
	state.sessionState.clamp(len(v.sessions))
	v.session = selectedSessionItem(v.sessions, state.sessionState.selected)
	return v
}

func handleKey(
	ctx context.Context,
	screen tcell.Screen,
	state *uiState,
	opts Options,
	ev *tcell.EventKey,
) (*Selection, error) {
	state.notice = ""
	if state.inputMode != "" {
		return nil, handleInput(ctx, screen, state, opts, ev)
	}

	v := currentView(screen, state, opts)

	if state.pendingDelete != "" {
		id := state.pendingDelete
		state.pendingDelete = ""
		if ev.Key() == tcell.KeyRune && (ev.Rune() == 'y' || ev.Rune() == 'Y') && v.session != nil {
			deleteMessage(ctx, state, opts, *v.session, id)
		} else {
			state.notice = "Delete cancelled"
		}
		return nil, nil
	}

	switch ev.Key() {
	case tcell.KeyCtrlR:
		refreshState(ctx, state, opts)
		return nil, nil
	case tcell.KeyCtrlY:
		state.yolo = !state.yolo
		return nil, nil
	case tcell.KeyCtrlC, tcell.KeyESC:
		return nil, errQuit
	case tcell.KeyTab, tcell.KeyRight:
		focusNext(state)
		return nil, nil
	case tcell.KeyLeft:
		focusPrev(state)
		return nil, nil
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return nil, errQuit
		case 'r', 'R':
			refreshState(ctx, state, opts)
			return nil, nil
		case '/':
			startInput(state)
			return nil, nil
		case 'h', 'H':
			focusPrev(state)
			return nil, nil
		case 'l', 'L':
			focusNext(state)
			return nil, nil
		case 'n', 'N':
			if state.focus == "preview" && len(state.matches) > 0 {
				step := 1
				if ev.Rune() == 'N' {
					step = -1
				}
				state.matchIdx = (state.matchIdx + step + len(state.matches)) % len(state.matches)
				scrollToMatch(state, v, opts)
				return nil, nil
			}
		case 'x', 'X':
			if state.focus == "preview" && v.session != nil {
				if id, ok := currentMatchSource(state, v.session.FilePath); ok {
					state.pendingDelete = id
				} else {
					state.notice = "Search and select a message (n/N) to delete it"
				}
				return nil, nil
			}
		}
	}

	enterPressed := ev.Key() == tcell.KeyEnter || ev.Key() == tcell.KeyCtrlJ || ev.Key() == tcell.KeyCtrlM
	if ev.Key() == tcell.KeyRune && (ev.Rune() == '\n' || ev.Rune() == '\r') {
		enterPressed = true
	}
	if enterPressed {
		if v.session != nil {
			return &Selection{Project: v.project, Session: *v.session, Yolo: state.yolo}, nil
		}
		if state.focus == "projects" && len(v.sessions) > 0 {
			focusNext(state)
		}
		return nil, nil
	}

	listFocus := state.focus
	if v.layout.mode == "1col" && state.focus == "preview" {
		listFocus = state.lastListFocus
	}

	if state.focus == "preview" && isPreviewNavKey(ev) {
		lines, _ := previewLines(state, v, opts, max(0, v.layout.preview.w-2))
		applyPreviewNavigation(&state.previewState, len(lines), max(0, v.layout.preview.h-2), ev)
		return nil, nil
	}

	switch listFocus {
	case "projects":
		prev := state.projectState.selected
		applyListNavigation(&state.projectState, len(v.projects), v.layout.projects.h-2, ev)
		if state.projectState.selected != prev {
			state.sessionState = listState{}
			state.previewState = previewState{}
		}
	case "sessions":
		prev := state.sessionState.selected
		applyListNavigation(&state.sessionState, len(v.sessions), v.layout.sessions.h-2, ev)
		if state.sessionState.selected != prev {
			state.previewState = previewState{}
		}
	}
	return nil, nil
}

func handleInput(ctx context.Context, screen tcell.Screen, state *uiState, opts Options, ev *tcell.EventKey) error {
	switch ev.Key() {
	case tcell.KeyESC:
		state.inputMode = ""
		state.inputBuffer = ""
	case tcell.KeyEnter:
		text := strings.TrimSpace(state.inputBuffer)
		switch state.inputMode {
		case "projects":
			state.projectFilter = text
			state.projectState = listState{}
		case "sessions":
			state.sessionFilter = text
			state.sessionState = listState{}
		case "preview":
			state.query.Text = state.inputBuffer
			state.matchKey = ""
			state.matchIdx = 0
			v := currentView(screen, state, opts)
			updateMatches(ctx, state, opts, v)
			scrollToMatch(state, v, opts)
		}
		state.inputMode = ""
		state.inputBuffer = ""
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if r := []rune(state.inputBuffer); len(r) > 0 {
			state.inputBuffer = string(r[:len(r)-1])
		}
	case tcell.KeyCtrlT:
		if state.inputMode == "preview" {
			state.query.CaseSensitive = !state.query.CaseSensitive
		}
	case tcell.KeyCtrlW:
		if state.inputMode == "preview" {
			state.query.WholeWord = !state.query.WholeWord
		}
	case tcell.KeyCtrlX:
		if state.inputMode == "preview" {
			state.query.Regex = !state.query.Regex
		}
	case tcell.KeyRune:
		if ch := ev.Rune(); ch >= 32 {
			state.inputBuffer += string(ch)
		}
	}
	return nil
}

func startInput(state *uiState) {
	state.inputMode = state.focus
	switch state.focus {
	case "projects":
		state.inputBuffer = state.projectFilter
	case "sessions":
		state.inputBuffer = state.sessionFilter
	case "preview":
		state.inputBuffer = state.query.Text
	}
}

func focusNext(state *uiState) {
	switch state.focus {
	case "projects":
		state.focus = "sessions"
		state.lastListFocus = "sessions"
	case "sessions":
		state.focus = "preview"
	default:
		state.focus = "projects"
		state.lastListFocus = "projects"
	}
}

func focusPrev(state *uiState) {
	if state.focus == "preview" {
		state.focus = state.lastListFocus
		return
	}
	state.focus = "projects"
	state.lastListFocus = "projects"
}

func refreshState(ctx context.Context, state *uiState, opts Options) {
	opts.Backend.InvalidateProjects()
	projects, err := opts.Backend.ScanProjects(ctx)
	if err != nil {
		state.loadError = err
		return
	}
	state.loadError = nil
	state.projects = projects
	state.projectState = listState{}
	state.sessionState = listState{}
	state.previewState = previewState{}
	state.previews = map[string]*display.Bundle{}
	state.previewError = map[string]string{}
	state.previewLoading = map[string]bool{}
	state.matchKey = ""
}

// updateMatches runs the preview search against the selected session once
// per session and query.
func updateMatches(ctx context.Context, state *uiState, opts Options, v view) {
	if state.query.Empty() || v.session == nil {
		state.matches = nil
		state.searchError = ""
		return
	}
	key := v.session.FilePath + "\x00" + state.query.Key() + "\x00" + state.query.Mode().String()
	if key == state.matchKey {
		return
	}
	if _, ok := state.previews[v.session.FilePath]; !ok {
		return
	}
	state.matchKey = key
	ids, err := opts.Backend.SearchSession(ctx, v.session.FilePath, state.query)
	if err != nil {
		state.matches = nil
		state.searchError = err.Error()
		return
	}
	state.searchError = ""
	state.matches = ids
	state.matchIdx = clamp(state.matchIdx, 0, max(0, len(ids)-1))
}

func currentMatchSource(state *uiState, path string) (string, bool) {
	if len(state.matches) == 0 {
		return "", false
	}
	b := state.previews[path]
	u, ok := b.Unit(state.matches[state.matchIdx])
	if !ok || u.SourceID == "" {
		return "", false
	}
	return u.SourceID, true
}

func deleteMessage(ctx context.Context, state *uiState, opts Options, session claudehistory.Session, id string) {
	b, err := opts.Backend.DeleteMessages(ctx, session.FilePath, id)
	if err != nil {
		state.notice = "Delete failed: " + err.Error()
		return
	}
	state.previews[session.FilePath] = b
	state.matchKey = ""
	state.notice = "Deleted message " + id
}

func scrollToMatch(state *uiState, v view, opts Options) {
	if len(state.matches) == 0 {
		return
	}
	_, starts := previewLines(state, v, opts, max(0, v.layout.preview.w-2))
	if line, ok := starts[state.matches[state.matchIdx]]; ok {
		state.previewState.scroll = previewScrollToMatch(line, max(0, v.layout.preview.h-2))
	}
}

func isPreviewNavKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyUp, tcell.KeyDown, tcell.KeyPgUp, tcell.KeyPgDn, tcell.KeyHome, tcell.KeyEnd:
		return true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'j', 'J', 'k', 'K', 'g', 'G':
			return true
		}
	}
	return false
}

func applyListNavigation(state *listState, nItems int, viewH int, ev *tcell.EventKey) {
	if nItems <= 0 {
		state.selected = 0
		state.scroll = 0
		return
	}
	switch ev.Key() {
	case tcell.KeyUp:
		state.selected = clamp(state.selected-1, 0, nItems-1)
	case tcell.KeyDown:
		state.selected = clamp(state.selected+1, 0, nItems-1)
	case tcell.KeyPgUp:
		state.selected = clamp(state.selected-max(1, viewH), 0, nItems-1)
	case tcell.KeyPgDn:
		state.selected = clamp(state.selected+max(1, viewH), 0, nItems-1)
	case tcell.KeyHome:
		state.selected = 0
	case tcell.KeyEnd:
		state.selected = nItems - 1
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'k', 'K':
			state.selected = clamp(state.selected-1, 0, nItems-1)
		case 'j', 'J':
			state.selected = clamp(state.selected+1, 0, nItems-1)
		case 'g':
			state.selected = 0
		case 'G':
			state.selected = nItems - 1
		default:
			return
		}
	default:
		return
	}
	state.ensureVisible(viewH, nItems)
}

func applyPreviewNavigation(state *previewState, nLines int, viewH int, ev *tcell.EventKey) {
	if nLines <= 0 || viewH <= 0 {
		state.scroll = 0
		return
	}
	limit := max(0, nLines-viewH)
	switch ev.Key() {
	case tcell.KeyUp:
		state.scroll = clamp(state.scroll-1, 0, limit)
	case tcell.KeyDown:
		state.scroll = clamp(state.scroll+1, 0, limit)
	case tcell.KeyPgUp:
		state.scroll = clamp(state.scroll-max(1, viewH), 0, limit)
	case tcell.KeyPgDn:
		state.scroll = clamp(state.scroll+max(1, viewH), 0, limit)
	case tcell.KeyHome:
		state.scroll = 0
	case tcell.KeyEnd:
		state.scroll = limit
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'k', 'K':
			state.scroll = clamp(state.scroll-1, 0, limit)
		case 'j', 'J':
			state.scroll = clamp(state.scroll+1, 0, limit)
		case 'g':
			state.scroll = 0
		case 'G':
			state.scroll = limit
		}
	}
}

func (s *listState) clamp(nItems int) {
	if nItems <= 0 {
		s.selected = 0
		s.scroll = 0
		return
	}
	s.selected = clamp(s.selected, 0, nItems-1)
	s.scroll = clamp(s.scroll, 0, max(0, nItems-1))
}

func (s *listState) ensureVisible(viewH int, nItems int) {
	if nItems <= 0 || viewH <= 0 {
		s.scroll = 0
		return
	}
	maxScroll := max(0, nItems-viewH)
	if s.selected < s.scroll {
		s.scroll = s.selected
	} else if s.selected >= s.scroll+viewH {
		s.scroll = s.selected - viewH + 1
	}
	s.scroll = clamp(s.scroll, 0, maxScroll)
}

func previewScrollToMatch(matchLine int, viewH int) int {
	vh := max(1, viewH)
	return max(0, matchLine-(vh/2))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
