package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

type rect struct {
	x int
	y int
	w int
	h int
}

type layout struct {
	projects rect
	sessions rect
	preview  rect
	mode     string
}

func computeLayout(screen tcell.Screen) layout {
	maxX, maxY := screen.Size()
	usableH := max(1, maxY-1)

	if maxX >= 120 && usableH >= 10 {
		leftW := min(40, max(24, maxX/4))
		midW := min(60, max(32, maxX/3))
		rightW := max(20, maxX-leftW-midW)
		return layout{
			projects: rect{y: 0, x: 0, h: usableH, w: leftW},
			sessions: rect{y: 0, x: leftW, h: usableH, w: midW},
			preview:  rect{y: 0, x: leftW + midW, h: usableH, w: rightW},
			mode:     "3col",
		}
	}

	if maxX >= 80 && usableH >= 10 {
		leftW := min(40, max(24, maxX/3))
		rightW := maxX - leftW
		convH := max(6, int(float64(usableH)*0.4))
		prevH := max(3, usableH-convH)
		return layout{
			projects: rect{y: 0, x: 0, h: usableH, w: leftW},
			sessions: rect{y: 0, x: leftW, h: convH, w: rightW},
			preview:  rect{y: convH, x: leftW, h: prevH, w: rightW},
			mode:     "2col",
		}
	}

	listH := max(1, int(float64(usableH)*0.4))
	if usableH > 1 {
		listH = clamp(listH, 1, usableH-1)
	}
	return layout{
		projects: rect{y: 0, x: 0, h: listH, w: maxX},
		sessions: rect{y: 0, x: 0, h: listH, w: maxX},
		preview:  rect{y: listH, x: 0, h: usableH - listH, w: maxX},
		mode:     "1col",
	}
}

func draw(ctx context.Context, screen tcell.Screen, state *uiState, opts Options, previewCh chan<- previewEvent) {
	screen.Clear()

	v := currentView(screen, state, opts)
	state.projectState.ensureVisible(v.layout.projects.h-2, len(v.projects))
	state.sessionState.ensureVisible(v.layout.sessions.h-2, len(v.sessions))

	listFocus := state.focus
	if v.layout.mode == "1col" && state.focus == "preview" {
		listFocus = state.lastListFocus
	}

	projectFilter := state.projectFilter
	sessionFilter := state.sessionFilter
	if state.inputMode == "projects" {
		projectFilter = state.inputBuffer
	}
	if state.inputMode == "sessions" {
		sessionFilter = state.inputBuffer
	}

	if v.layout.mode == "1col" {
		title := "Projects"
		listFilter := projectFilter
		rows := renderProjectRows(v.projects, listFocus == "projects", state.projectState, v.layout.projects.h-2)
		if listFocus == "sessions" {
			title = "Sessions"
			listFilter = sessionFilter
			rows = renderSessionRows(v.sessions, true, state.sessionState, v.layout.projects.h-2)
		}
		drawBox(screen, v.layout.projects, title, state.focus != "preview", listFilter)
		drawList(screen, v.layout.projects, rows)
	} else {
		drawBox(screen, v.layout.projects, "Projects", state.focus == "projects", projectFilter)
		drawList(
			screen,
			v.layout.projects,
			renderProjectRows(v.projects, state.focus == "projects", state.projectState, v.layout.projects.h-2),
		)

		drawBox(screen, v.layout.sessions, "Sessions", state.focus == "sessions", sessionFilter)
		drawList(
			screen,
			v.layout.sessions,
			renderSessionRows(v.sessions, state.focus == "sessions", state.sessionState, v.layout.sessions.h-2),
		)
	}

	if v.session != nil {
		ensurePreview(ctx, screen, state, opts, *v.session, previewCh)
		before := state.matchKey
		updateMatches(ctx, state, opts, v)
		if state.matchKey != before {
			scrollToMatch(state, v, opts)
		}
	}

	previewFilter := state.query.Text
	if state.inputMode == "preview" {
		previewFilter = state.inputBuffer
	}
	if previewFilter != "" {
		previewFilter += queryFlags(state)
	}
	drawBox(screen, v.layout.preview, "Preview", state.focus == "preview", previewFilter)

	innerW := max(0, v.layout.preview.w-2)
	viewH := max(0, v.layout.preview.h-2)
	lines, starts := previewLines(state, v, opts, innerW)
	state.previewState.scroll = clamp(state.previewState.scroll, 0, max(0, len(lines)-viewH))

	lineAttrs := map[int]tcell.Style{}
	for i, id := range state.matches {
		line, ok := starts[id]
		if !ok {
			continue
		}
		if i == state.matchIdx {
			lineAttrs[line] = tcell.StyleDefault.Reverse(true)
		} else {
			lineAttrs[line] = tcell.StyleDefault.Bold(true)
		}
	}
	drawPreview(screen, v.layout.preview, lines, state.previewState.scroll, lineAttrs)

	drawStatus(screen, statusLine(state, v), rightLabel(state, opts), state.yolo)
	screen.Show()
}

func queryFlags(state *uiState) string {
	flags := ""
	if state.query.CaseSensitive {
		flags += "C"
	}
	if state.query.WholeWord {
		flags += "W"
	}
	if state.query.Regex {
		flags += "R"
	}
	if flags == "" {
		return ""
	}
	return " [" + flags + "]"
}

func statusLine(state *uiState, v view) string {
	switch {
	case state.pendingDelete != "":
		return fmt.Sprintf("Delete message %s? y: delete  any other key: cancel", state.pendingDelete)
	case state.inputMode == "preview":
		return "Type to search. Enter: apply  Esc: cancel  Ctrl+T: case  Ctrl+W: word  Ctrl+X: regex"
	case state.inputMode != "":
		return "Type to filter. Enter: apply  Esc: cancel"
	case state.notice != "":
		return state.notice
	case state.loadError != nil:
		return fmt.Sprintf("Load error: %v", state.loadError)
	case state.searchError != "":
		return "Search error: " + state.searchError
	}
	openLabel := ""
	if v.session != nil {
		openLabel = "  Enter: resume"
	}
	if state.focus == "preview" {
		status := "Up/Down PgUp/PgDn: scroll  /: search" + openLabel + "  Tab/Left/Right: switch  q: quit"
		if !state.query.Empty() {
			status = fmt.Sprintf("%d matches  n/N: next/prev  x: delete  ", len(state.matches)) + status
		}
		return status
	}
	return "Tab/Left/Right: switch  /: filter" + openLabel + "  r: refresh  Ctrl+Y: yolo  q: quit"
}

func rightLabel(state *uiState, opts Options) string {
	label := versionLabel(opts.Version)
	if state.yolo {
		label = "YOLO  " + label
	}
	return label
}

// previewLines renders the selected session wrapped to width. starts maps
// each display unit id to the line its heading is on.
func previewLines(state *uiState, v view, opts Options, width int) ([]string, map[string]int) {
	starts := map[string]int{}
	if width <= 0 {
		return nil, starts
	}
	if state.loadError != nil {
		return wrapText(fmt.Sprintf("Load error: %v", state.loadError), width), starts
	}
	if len(state.projects) == 0 {
		return buildWrappedLines([]string{"No Claude Code sessions found."}, width), starts
	}

	lines := []string{}
	if v.project.Path != "" {
		lines = append(lines, "Project:", "  "+v.project.Path)
	}
	if v.session == nil {
		lines = append(lines, "", "Select a session to preview.")
		return buildWrappedLines(lines, width), starts
	}
	s := v.session
	lines = append(lines, "", "Session:", "  ID: "+s.SessionID)
	if !s.ModifiedAt.IsZero() {
		lines = append(lines, "  Modified: "+s.ModifiedAt.Local().Format("2006-01-02 15:04:05")+" ("+humanize.Time(s.ModifiedAt)+")")
	}
	lines = append(lines, "  Size: "+humanize.IBytes(uint64(max(s.Size, 0))))

	path := s.FilePath
	if msg := state.previewError[path]; msg != "" {
		lines = append(lines, "", "Preview failed: "+msg)
		return buildWrappedLines(lines, width), starts
	}
	b, ok := state.previews[path]
	if !ok {
		if state.previewLoading[path] {
			lines = append(lines, "", "Loading preview…")
		}
		return buildWrappedLines(lines, width), starts
	}

	stats := b.Stats
	lines = append(lines,
		fmt.Sprintf("  Messages: %d", len(b.Units)),
		fmt.Sprintf("  Tokens: %s (in %s, out %s, cache %s/%s)",
			humanize.Comma(stats.Total()),
			humanize.Comma(stats.InputTokens),
			humanize.Comma(stats.OutputTokens),
			humanize.Comma(stats.CacheCreationInputTokens),
			humanize.Comma(stats.CacheReadInputTokens)),
	)
	out := buildWrappedLines(lines, width)
	for _, u := range b.Units {
		out = append(out, "")
		starts[u.ID] = len(out)
		head := "── " + u.Title()
		if u.Timestamp != "" {
			head += " · " + u.Timestamp
		}
		out = append(out, wrapText(head, width)...)
		out = append(out, buildWrappedLines(u.Lines(), width)...)
	}
	return out, starts
}

func drawBox(screen tcell.Screen, r rect, title string, focused bool, filter string) {
	if r.w <= 0 || r.h <= 0 {
		return
	}
	borderStyle := tcell.StyleDefault
	if focused {
		borderStyle = borderStyle.Bold(true)
	} else {
		borderStyle = borderStyle.Dim(true)
	}
	for x := r.x + 1; x < r.x+r.w-1; x++ {
		screen.SetContent(x, r.y, tcell.RuneHLine, nil, borderStyle)
		screen.SetContent(x, r.y+r.h-1, tcell.RuneHLine, nil, borderStyle)
	}
	for y := r.y + 1; y < r.y+r.h-1; y++ {
		screen.SetContent(r.x, y, tcell.RuneVLine, nil, borderStyle)
		screen.SetContent(r.x+r.w-1, y, tcell.RuneVLine, nil, borderStyle)
	}
	screen.SetContent(r.x, r.y, tcell.RuneULCorner, nil, borderStyle)
	screen.SetContent(r.x+r.w-1, r.y, tcell.RuneURCorner, nil, borderStyle)
	screen.SetContent(r.x, r.y+r.h-1, tcell.RuneLLCorner, nil, borderStyle)
	screen.SetContent(r.x+r.w-1, r.y+r.h-1, tcell.RuneLRCorner, nil, borderStyle)

	titleStyle := tcell.StyleDefault.Reverse(true)
	if focused {
		titleStyle = titleStyle.Bold(true)
		title = "> " + title + " <"
	} else {
		title = " " + title + " "
	}
	maxTitleWidth := max(0, r.w-2)
	title = truncate(title, maxTitleWidth)
	titleX := r.x + 1
	if maxTitleWidth > 0 {
		titleX = r.x + 1 + max(0, (maxTitleWidth-displayWidth(title))/2)
	}
	writeText(screen, titleX, r.y, title, titleStyle)

	if filter != "" && r.h >= 2 {
		writeText(screen, r.x+1, r.y+r.h-1, truncate("/"+filter, r.w-2), borderStyle.Dim(true))
	}
}

func drawList(screen tcell.Screen, r rect, rows []row) {
	if r.h < 3 || r.w < 4 {
		return
	}
	innerH := r.h - 2
	innerW := r.w - 2
	for i := 0; i < innerH; i++ {
		y := r.y + 1 + i
		if i >= len(rows) {
			writeText(screen, r.x+1, y, padRight("", innerW), tcell.StyleDefault)
			continue
		}
		row := rows[i]
		style := tcell.StyleDefault
		if row.bold {
			style = style.Bold(true)
		}
		if row.selected {
			style = style.Reverse(true)
			if row.focused {
				style = style.Bold(true)
			} else {
				style = style.Dim(true)
			}
		} else if row.dim {
			style = style.Dim(true)
		}
		writeText(screen, r.x+1, y, padRight(truncate(row.label, innerW), innerW), style)
	}
}

func drawPreview(screen tcell.Screen, r rect, lines []string, scroll int, lineAttrs map[int]tcell.Style) {
	if r.h < 3 || r.w < 4 {
		return
	}
	innerH := r.h - 2
	innerW := r.w - 2
	scroll = clamp(scroll, 0, max(0, len(lines)-innerH))
	for i := 0; i < innerH; i++ {
		y := r.y + 1 + i
		idx := scroll + i
		if idx >= len(lines) {
			writeText(screen, r.x+1, y, padRight("", innerW), tcell.StyleDefault)
			continue
		}
		style := tcell.StyleDefault
		if attr, ok := lineAttrs[idx]; ok {
			style = attr
		}
		writeText(screen, r.x+1, y, padRight(truncate(lines[idx], innerW), innerW), style)
	}
}

func drawStatus(screen tcell.Screen, left string, right string, rightBold bool) {
	w, h := screen.Size()
	if h <= 0 {
		return
	}
	y := h - 1
	writeText(screen, 0, y, padRight(truncate(left, w), w), tcell.StyleDefault.Reverse(true))
	if right == "" {
		return
	}
	r := truncate(right, w)
	x := max(0, w-displayWidth(r))
	style := tcell.StyleDefault.Reverse(true)
	if rightBold {
		style = style.Bold(true)
	}
	writeText(screen, x, y, r, style)
}

func writeText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	offset := 0
	for _, ch := range text {
		width := runewidth.RuneWidth(ch)
		if width == 0 {
			continue
		}
		screen.SetContent(x+offset, y, ch, nil, style)
		offset += width
	}
}

func buildWrappedLines(lines []string, width int) []string {
	if width <= 0 {
		return nil
	}
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		out = append(out, wrapText(ln, width)...)
	}
	return out
}

func wrapText(s string, width int) []string {
	if width <= 0 {
		return nil
	}
	if s == "" {
		return []string{""}
	}
	out := []string{}
	for _, ln := range strings.Split(s, "\n") {
		if ln == "" {
			out = append(out, "")
			continue
		}
		var buf strings.Builder
		curWidth := 0
		for _, ch := range strings.ReplaceAll(ln, "\t", "    ") {
			chWidth := runewidth.RuneWidth(ch)
			if chWidth == 0 {
				buf.WriteRune(ch)
				continue
			}
			if curWidth+chWidth > width && curWidth > 0 {
				out = append(out, buf.String())
				buf.Reset()
				curWidth = 0
			}
			buf.WriteRune(ch)
			curWidth += chWidth
		}
		out = append(out, buf.String())
	}
	return out
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if displayWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "")
}

func padRight(s string, width int) string {
	if displayWidth(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-displayWidth(s))
}

func displayWidth(s string) int {
	return runewidth.StringWidth(s)
}

func versionLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		v = "dev"
	}
	if strings.EqualFold(v, "dev") {
		return v
	}
	if strings.HasPrefix(strings.ToLower(v), "v") {
		return v
	}
	return "v" + v
}
