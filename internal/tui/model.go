// Package tui is the terminal front end: it draws the session's layout and
// turns keys and mouse drags into session calls.
package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/cj3636/kahva/internal/config"
	"github.com/cj3636/kahva/internal/export"
	"github.com/cj3636/kahva/internal/gesture"
	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/layout"
	"github.com/cj3636/kahva/internal/ops"
	"github.com/cj3636/kahva/internal/reconcile"
	"github.com/cj3636/kahva/internal/render"
	"github.com/cj3636/kahva/internal/session"
)

const (
	// headerLines is the number of lines above the graph.
	headerLines = 1
	trashLabel  = " ✕ abandon "
)

// Model represents the application state
type Model struct {
	session *session.Session
	config  *config.Config
	styles  *Styles
	keys    keyMap
	help    help.Model
	editor  textinput.Model

	ctx       context.Context
	changes   <-chan struct{}
	clipboard io.Writer
	now       func() time.Time
	logger    *slog.Logger

	viewport   Viewport
	width      int
	height     int
	showHelp   bool
	selected   graph.CommitID
	editing    bool
	editTarget graph.CommitID
	editBody   string
	notice     string
	noticeErr  bool
}

// Viewport controls the visible portion of the graph
type Viewport struct {
	offset int // First visible graph line
	height int // Available height for graph lines
}

// Option configures a Model.
type Option func(*Model)

// WithChanges refreshes whenever ch fires.
func WithChanges(ch <-chan struct{}) Option {
	return func(m *Model) { m.changes = ch }
}

// WithClipboard sets where OSC 52 sequences are written. Defaults to stderr.
func WithClipboard(w io.Writer) Option {
	return func(m *Model) { m.clipboard = w }
}

// WithClock sets the time relative timestamps are measured from.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithContext sets the parent context of queries and operations.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

type refreshDoneMsg struct{ result session.RefreshResult }

type opDoneMsg struct{ completion reconcile.Completion }

type repoChangedMsg struct{}

// NewModel creates a new TUI model
func NewModel(s *session.Session, cfg *config.Config, opts ...Option) Model {
	editor := textinput.New()
	editor.Prompt = "describe: "
	m := Model{
		session:   s,
		config:    cfg,
		styles:    createStyles(cfg.Theme),
		keys:      newKeyMap(cfg.Keybindings),
		help:      help.New(),
		editor:    editor,
		ctx:       context.Background(),
		clipboard: os.Stderr,
		now:       time.Now,
		viewport:  Viewport{offset: 0, height: 20},
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

// Init starts the first query and the repository watch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), waitForChange(m.changes))
}

func (m Model) refresh() tea.Cmd {
	return runRefresh(m.session.Refresh(m.ctx))
}

func runRefresh(t *session.RefreshTask) tea.Cmd {
	return func() tea.Msg { return refreshDoneMsg{t.Run()} }
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return repoChangedMsg{}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.handleEditorKey(msg)
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.session.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.editor.Width = max(msg.Width-runewidth.StringWidth(m.editor.Prompt)-1, 10)
		m.updateViewportHeight()

	case refreshDoneMsg:
		if m.session.ApplyRefresh(msg.result) {
			m.afterRefresh()
		}

	case opDoneMsg:
		return m, m.complete(msg.completion)

	case repoChangedMsg:
		m.logger.Debug("repository changed")
		return m, tea.Batch(m.refresh(), waitForChange(m.changes))

	default:
		if m.editing {
			var cmd tea.Cmd
			m.editor, cmd = m.editor.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.session.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.updateViewportHeight()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()
	case key.Matches(msg, m.keys.TogglePreset):
		task := m.session.TogglePreset(m.ctx)
		m.setNotice("preset "+m.session.Preset().String(), false)
		m.syncSurface()
		return m, runRefresh(task)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.PageDown):
		m.moveSelection(max(m.rowsPerPage()/2, 1))
	case key.Matches(msg, m.keys.PageUp):
		m.moveSelection(-max(m.rowsPerPage()/2, 1))
	case key.Matches(msg, m.keys.Top):
		m.moveSelection(-m.session.View().Len())
	case key.Matches(msg, m.keys.Bottom):
		m.moveSelection(m.session.View().Len())
	case key.Matches(msg, m.keys.Describe):
		return m, m.startDescribe()
	case key.Matches(msg, m.keys.Abandon):
		if m.selected != "" {
			return m, m.submit(ops.Candidate{Kind: ops.Abandon, Source: m.selected})
		}
	case key.Matches(msg, m.keys.YankChange):
		m.yank(true)
	case key.Matches(msg, m.keys.YankCommit):
		m.yank(false)
	case key.Matches(msg, m.keys.Cancel):
		if out := m.session.CancelDrag(); out.Kind == gesture.Cancelled {
			m.setNotice("drag cancelled", false)
		} else {
			m.session.ClearErr()
			m.notice = ""
		}
	}
	return m, nil
}

func (m Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		desc := strings.TrimSpace(m.editor.Value()) + m.editBody
		target := m.editTarget
		m.stopEditing()
		return m, m.submit(ops.Candidate{Kind: ops.Describe, Source: target, Description: desc})
	case tea.KeyEsc:
		m.stopEditing()
		return m, nil
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.scroll(-m.rowHeight())
		return m, nil
	case tea.MouseButtonWheelDown:
		m.scroll(m.rowHeight())
		return m, nil
	}

	ev, ok := m.pointerEvent(msg)
	if !ok {
		return m, nil
	}
	if ev.Kind == gesture.PointerDown {
		if hit := m.session.HitTest(ev.X, ev.Y); hit.Commit != "" {
			m.selected = hit.Commit
		}
	}
	out, d, err := m.session.Pointer(ev)
	switch {
	case err != nil:
		m.setNotice(err.Error(), true)
	case d != nil:
		return m, m.dispatch(d)
	case out.Kind == gesture.Cancelled && out.Err != nil:
		m.setNotice(out.Err.Error(), true)
	case out.Kind == gesture.Abandoned:
		m.setNotice("drag abandoned", false)
	}
	return m, nil
}

// pointerEvent converts a mouse message to layout coordinates.
func (m Model) pointerEvent(msg tea.MouseMsg) (gesture.Event, bool) {
	ev := gesture.Event{X: msg.X, Y: msg.Y - headerLines + m.viewport.offset}
	if msg.Shift {
		ev.Mods |= gesture.Shift
	}
	if msg.Alt {
		ev.Mods |= gesture.Alt
	}
	if msg.Ctrl {
		ev.Mods |= gesture.Ctrl
	}
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return ev, false
		}
		ev.Kind = gesture.PointerDown
	case tea.MouseActionMotion:
		ev.Kind = gesture.PointerMove
	case tea.MouseActionRelease:
		ev.Kind = gesture.PointerUp
	default:
		return ev, false
	}
	return ev, true
}

func (m *Model) submit(c ops.Candidate) tea.Cmd {
	d, err := m.session.Submit(c)
	if err != nil {
		m.setNotice(err.Error(), true)
		return nil
	}
	return m.dispatch(d)
}

func (m *Model) dispatch(d *session.Dispatch) tea.Cmd {
	m.setNotice(d.Request.Summary()+"…", false)
	m.syncSurface()
	ctx := m.ctx
	return func() tea.Msg { return opDoneMsg{d.Run(ctx)} }
}

func (m *Model) complete(c reconcile.Completion) tea.Cmd {
	out := m.session.Complete(c)
	m.clampScroll()
	if out.Err != nil {
		m.notice = ""
		return nil
	}
	if out.Request != nil {
		m.setNotice(out.Request.Summary()+": "+out.Status.String(), out.Status == ops.Conflicted)
	}
	if out.Refresh {
		return m.refresh()
	}
	return nil
}

func (m *Model) afterRefresh() {
	view := m.session.View()
	if !view.Has(m.selected) {
		m.selected = defaultSelection(view, m.session.Layout())
	}
	if d := m.session.Drift(); d != nil && d.HasChanges() && d.From > 0 {
		m.setNotice("history changed: "+d.Summary(), false)
	}
	m.clampScroll()
	m.syncSurface()
}

// defaultSelection prefers the working copy, then the first row.
func defaultSelection(s *graph.Snapshot, r *layout.Result) graph.CommitID {
	for _, n := range s.Nodes() {
		if n.WorkingCopy {
			return n.ID
		}
	}
	if len(r.Order) > 0 {
		return r.Order[0]
	}
	return ""
}

func (m *Model) startDescribe() tea.Cmd {
	n, ok := m.session.View().Node(m.selected)
	if !ok {
		return nil
	}
	if !m.session.Preset().Editable() {
		m.setNotice(session.ErrReadOnly.Error(), true)
		return nil
	}
	title, body := n.Description, ""
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title, body = title[:i], title[i:]
	}
	m.editing = true
	m.editTarget = n.ID
	m.editBody = body
	m.editor.SetValue(title)
	m.editor.CursorEnd()
	m.updateViewportHeight()
	return m.editor.Focus()
}

func (m *Model) stopEditing() {
	m.editing = false
	m.editTarget = ""
	m.editBody = ""
	m.editor.Blur()
	m.updateViewportHeight()
}

func (m *Model) yank(change bool) {
	n, ok := m.session.View().Node(m.selected)
	if !ok {
		return
	}
	text, what := string(n.ID), "commit id"
	if change {
		text, what = string(n.ChangeID), "change id"
	}
	if err := export.CopyToClipboard(text, m.clipboard); err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	m.setNotice("copied "+what+" "+text, false)
}

func (m *Model) setNotice(s string, isErr bool) {
	m.notice = s
	m.noticeErr = isErr
}

// View renders the UI
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "kahva: waiting for the terminal size\n"
	}

	sections := []string{m.renderTitle(), m.renderGraph()}
	if m.showHelp {
		sections = append(sections, m.renderHelpPanel())
	}
	if m.editing {
		sections = append(sections, m.editor.View())
	}
	sections = append(sections, m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderTitle renders the title bar with errors in its right corner.
func (m Model) renderTitle() string {
	left := fmt.Sprintf(" kahva  %s: %s  gen %d", m.session.Preset(), m.session.Revset(), m.session.Generation())
	if m.session.Loading() {
		left += "  loading…"
	}
	right := ""
	if err := m.session.Err(); err != nil {
		right = " " + firstLine(err.Error()) + " "
	}
	return m.bar(m.styles.title, left, m.styles.reject.Background(m.styles.title.GetBackground()), right)
}

func (m Model) renderGraph() string {
	view, lay := m.session.View(), m.session.Layout()
	rows := render.Rows(view, lay, m.now())
	drag := m.session.Drag()

	lines := make([]string, m.viewport.height)
	for i := range lines {
		y := m.viewport.offset + i
		switch {
		case y < len(rows):
			lines[i] = m.renderRow(rows[y], drag)
		case i == 0 && view.Len() == 0:
			lines[i] = m.styles.help.Render("No commits in " + m.session.Revset())
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRow(row render.Row, drag *gesture.DragState) string {
	var bg lipgloss.TerminalColor
	target := drag != nil && row.Commit != "" && drag.Target.Role != gesture.RoleNone && drag.Target.Commit == row.Commit
	switch {
	case target:
		bg = m.styles.dropTargetBg
	case row.Commit != "" && row.Commit == m.selected:
		bg = m.styles.selectedBg
	}

	w := &lineWriter{width: m.width, bg: bg}
	for _, r := range row.Graph {
		w.write(m.styles.glyph(r), string(r))
	}
	for _, seg := range row.Segments {
		st := m.styles.segment(seg)
		switch {
		case target && drag.Rejected != nil && seg.Kind == render.ChangeID:
			st = m.styles.reject
		case drag != nil && row.Commit == drag.Source && seg.Kind == render.Title:
			st = st.Faint(true)
		}
		w.write(st, seg.Text)
	}
	return w.String()
}

// lineWriter clips styled text to one terminal line.
type lineWriter struct {
	b     strings.Builder
	width int
	used  int
	bg    lipgloss.TerminalColor
}

func (w *lineWriter) write(st lipgloss.Style, s string) {
	room := w.width - w.used
	if room <= 0 || s == "" {
		return
	}
	if runewidth.StringWidth(s) > room {
		s = runewidth.Truncate(s, room, "")
	}
	w.used += runewidth.StringWidth(s)
	if _, plain := st.GetBackground().(lipgloss.NoColor); plain && w.bg != nil {
		st = st.Background(w.bg)
	}
	w.b.WriteString(st.Render(s))
}

func (w *lineWriter) String() string {
	if w.bg != nil && w.used < w.width {
		w.write(lipgloss.NewStyle(), strings.Repeat(" ", w.width-w.used))
	}
	return w.b.String()
}

// renderStatusBar renders the status bar. The trash zone sits at its right
// edge.
func (m Model) renderStatusBar() string {
	left := " " + m.notice
	leftStyle := m.styles.statusBar
	if m.noticeErr {
		leftStyle = m.styles.reject.Background(m.styles.statusBar.GetBackground())
	}
	if d := m.session.Drag(); d != nil {
		left = " " + dragText(d)
		if d.Rejected != nil {
			leftStyle = m.styles.reject.Background(m.styles.statusBar.GetBackground())
		} else {
			leftStyle = m.styles.statusBar
		}
	}
	if n := len(m.session.InFlight()); n > 0 {
		left = fmt.Sprintf(" [%d running]", n) + left
	}

	right, rightStyle := " read-only ", m.styles.help.Background(m.styles.statusBar.GetBackground())
	if m.session.Preset().Editable() {
		right, rightStyle = trashLabel, m.styles.trash
		if d := m.session.Drag(); d != nil && d.Target.Role == gesture.RoleTrash {
			rightStyle = m.styles.trashActive
		}
	}
	return m.bar(leftStyle, left, rightStyle, right)
}

func dragText(d *gesture.DragState) string {
	switch {
	case d.Rejected != nil:
		return "✗ " + d.Rejected.Error()
	case d.Kind != ops.None:
		return "drop: " + d.Candidate.String()
	case d.Role == gesture.RoleBookmark:
		return "dragging bookmark " + d.Bookmark
	}
	return "dragging " + d.Source.Short(8)
}

// bar lays out a full-width line with right-aligned text.
func (m Model) bar(leftStyle lipgloss.Style, left string, rightStyle lipgloss.Style, right string) string {
	if runewidth.StringWidth(right) > m.width {
		right = runewidth.Truncate(right, m.width, "…")
	}
	lw := m.width - runewidth.StringWidth(right)
	left = runewidth.FillRight(runewidth.Truncate(left, lw, "…"), lw)
	return leftStyle.Render(left) + rightStyle.Render(right)
}

// renderHelpPanel renders the help panel below the graph
func (m Model) renderHelpPanel() string {
	rules := make([]string, 0, len(m.config.DropRules))
	for _, r := range m.config.DropRules {
		src := r.Source
		if len(r.Modifiers) > 0 {
			src = strings.Join(r.Modifiers, "+") + "+" + src
		}
		rules = append(rules, fmt.Sprintf("%s → %s: %s", src, r.Target, r.Kind))
	}

	helpStyle := m.styles.help.
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.border).
		Padding(0, 1).
		Width(max(m.width-2, 0))

	body := m.help.FullHelpView(m.keys.FullHelp()) + "\n\nDrag: " + strings.Join(rules, " • ")
	return helpStyle.Render(body)
}

func (m Model) rowHeight() int {
	if h := m.session.Layout().Geometry.RowHeight; h > 0 {
		return h
	}
	return 1
}

func (m Model) rowsPerPage() int {
	return m.viewport.height / m.rowHeight()
}

func (m *Model) moveSelection(delta int) {
	lay := m.session.Layout()
	if len(lay.Order) == 0 {
		return
	}
	row := lay.Row(m.selected)
	if row < 0 {
		row = 0
	} else {
		row += delta
	}
	row = min(max(row, 0), len(lay.Order)-1)
	m.selected = lay.Order[row]

	top := row * m.rowHeight()
	bottom := top + m.rowHeight()
	if top < m.viewport.offset {
		m.viewport.offset = top
	} else if bottom > m.viewport.offset+m.viewport.height {
		m.viewport.offset = bottom - m.viewport.height
	}
	m.clampScroll()
	m.syncSurface()
}

func (m *Model) scroll(lines int) {
	m.viewport.offset += lines
	m.clampScroll()
	m.syncSurface()
}

func (m *Model) clampScroll() {
	maxOffset := max(0, m.session.Layout().Height()-m.viewport.height)
	m.viewport.offset = min(max(m.viewport.offset, 0), maxOffset)
}

// updateViewportHeight calculates the graph height from the screen size and
// the panels shown below it.
func (m *Model) updateViewportHeight() {
	h := m.height - headerLines - 1
	if m.showHelp {
		h -= lipgloss.Height(m.renderHelpPanel())
	}
	if m.editing {
		h--
	}
	m.viewport.height = max(h, 1)
	m.clampScroll()
	m.syncSurface()
}

// syncSurface tells the gesture resolver which layout area is on screen and
// where the trash zone is.
func (m *Model) syncSurface() {
	if m.width == 0 || m.height == 0 {
		return
	}
	surface := layout.Box{X: 0, Y: m.viewport.offset, W: m.width, H: m.viewport.height}
	var trash layout.Box
	if m.session.Preset().Editable() {
		w := runewidth.StringWidth(trashLabel)
		trash = layout.Box{X: max(m.width-w, 0), Y: m.height - 1 - headerLines + m.viewport.offset, W: w, H: 1}
	}
	m.session.SetSurface(surface, trash)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
