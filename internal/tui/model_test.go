package tui

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cj3636/kahva/internal/config"
	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/ops"
	"github.com/cj3636/kahva/internal/session"
)

func rec(id string, parents ...string) graph.Record {
	ps := make([]graph.CommitID, len(parents))
	for i, p := range parents {
		ps[i] = graph.CommitID(p)
	}
	return graph.Record{ID: graph.CommitID(id), ChangeID: graph.ChangeID("k" + id), Parents: ps}
}

func linear() graph.History {
	c := rec("C", "B")
	c.WorkingCopy = true
	c.Description = "wip\n\nbody"
	return graph.History{Records: []graph.Record{c, rec("B", "A"), rec("A")}}
}

type fakeReader struct {
	histories map[string]graph.History
	errs      map[string]error
}

func (f *fakeReader) Query(ctx context.Context, revset string) (graph.History, error) {
	if err := f.errs[revset]; err != nil {
		return graph.History{}, err
	}
	h := f.histories[revset]
	h.Revset = revset
	return h, nil
}

type fakeTool struct {
	calls []string
}

func (f *fakeTool) record(s string) (ops.Result, error) {
	f.calls = append(f.calls, s)
	return ops.Result{}, nil
}

func (f *fakeTool) Rebase(_ context.Context, s, d ops.Revision) (ops.Result, error) {
	return f.record("rebase " + s.Ref() + " " + d.Ref())
}

func (f *fakeTool) Squash(_ context.Context, s, d ops.Revision) (ops.Result, error) {
	return f.record("squash " + s.Ref() + " " + d.Ref())
}

func (f *fakeTool) MoveBookmark(_ context.Context, name string, to ops.Revision) (ops.Result, error) {
	return f.record("bookmark " + name + " " + to.Ref())
}

func (f *fakeTool) Abandon(_ context.Context, r ops.Revision) (ops.Result, error) {
	return f.record("abandon " + r.Ref())
}

func (f *fakeTool) Describe(_ context.Context, r ops.Revision, msg string) (ops.Result, error) {
	return f.record("describe " + r.Ref() + " " + msg)
}

// run executes cmd and every command that follows from it.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		if msg == nil {
			continue
		}
		next, more := m.Update(msg)
		m = next.(Model)
		queue = append(queue, more)
	}
	return m
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	return run(t, next.(Model), cmd)
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func mouse(action tea.MouseAction, x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft}
}

func newModel(t *testing.T, h graph.History, height int, opts ...Option) (Model, *fakeReader, *fakeTool) {
	t.Helper()
	reader := &fakeReader{histories: map[string]graph.History{"::@": h}, errs: map[string]error{}}
	tool := &fakeTool{}
	s := session.New(reader, tool, session.Revsets{KahvaLog: "::@", Log: "::@"})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	m := NewModel(s, config.DefaultConfig(), opts...)
	m = send(t, m, tea.WindowSizeMsg{Width: 80, Height: height})
	m = run(t, m, m.Init())
	return m, reader, tool
}

func TestInitialRefreshSelectsWorkingCopy(t *testing.T) {
	m, _, _ := newModel(t, linear(), 20)
	if m.session.Generation() != 1 {
		t.Fatalf("generation = %d", m.session.Generation())
	}
	if m.selected != "C" {
		t.Fatalf("selected = %q, want the working copy", m.selected)
	}
	view := m.View()
	for _, want := range []string{"kahva", "kahva-log: ::@", "kC", "wip", trashLabel} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}
	if got := strings.Count(view, "\n") + 1; got != 20 {
		t.Errorf("view has %d lines, want 20", got)
	}
}

func TestKeyboardSelection(t *testing.T) {
	m, _, _ := newModel(t, linear(), 20)
	steps := []struct {
		key  string
		want graph.CommitID
	}{
		{"k", "C"},
		{"j", "B"},
		{"G", "A"},
		{"j", "A"},
		{"g", "C"},
	}
	for _, st := range steps {
		m = send(t, m, keyMsg(st.key))
		if m.selected != st.want {
			t.Fatalf("after %q selected = %q, want %q", st.key, m.selected, st.want)
		}
	}
}

func TestDragRebase(t *testing.T) {
	m, reader, tool := newModel(t, linear(), 20)

	m = send(t, m, mouse(tea.MouseActionPress, 1, 1))
	if d := m.session.Drag(); d == nil || d.Source != "C" {
		t.Fatalf("drag = %+v", d)
	}
	m = send(t, m, mouse(tea.MouseActionMotion, 1, 5))
	if !strings.Contains(m.View(), "drop: rebase C -> A") {
		t.Fatalf("status does not preview the drop:\n%s", m.View())
	}

	rebased := linear()
	rebased.Records[0].Parents = []graph.CommitID{"A"}
	reader.histories["::@"] = rebased
	m = send(t, m, mouse(tea.MouseActionRelease, 1, 5))

	if !reflect.DeepEqual(tool.calls, []string{"rebase kC kA"}) {
		t.Fatalf("tool calls = %v", tool.calls)
	}
	if m.session.Generation() != 2 || m.session.View().Provisional() {
		t.Fatalf("generation %d provisional %v", m.session.Generation(), m.session.View().Provisional())
	}
	if m.notice != "rebase C onto A: succeeded" {
		t.Fatalf("notice = %q", m.notice)
	}
}

func TestDropOnTrashAbandons(t *testing.T) {
	m, _, tool := newModel(t, linear(), 20)
	m = send(t, m, mouse(tea.MouseActionPress, 1, 3))
	m = send(t, m, mouse(tea.MouseActionMotion, 75, 19))
	if !strings.Contains(m.View(), "drop: abandon B") {
		t.Fatalf("trash zone not targeted:\n%s", m.View())
	}
	m = send(t, m, mouse(tea.MouseActionRelease, 75, 19))
	if !reflect.DeepEqual(tool.calls, []string{"abandon kB"}) {
		t.Fatalf("tool calls = %v", tool.calls)
	}
}

func TestDragOffSurfaceIsAbandoned(t *testing.T) {
	m, _, tool := newModel(t, linear(), 20)
	m = send(t, m, mouse(tea.MouseActionPress, 1, 1))
	m = send(t, m, mouse(tea.MouseActionMotion, 1, 0))
	if m.session.Drag() != nil || m.notice != "drag abandoned" {
		t.Fatalf("drag = %+v notice %q", m.session.Drag(), m.notice)
	}
	m = send(t, m, mouse(tea.MouseActionRelease, 1, 5))
	if len(tool.calls) != 0 {
		t.Fatalf("tool calls = %v", tool.calls)
	}
}

func TestEscCancelsDrag(t *testing.T) {
	m, _, _ := newModel(t, linear(), 20)
	m = send(t, m, mouse(tea.MouseActionPress, 1, 1))
	m = send(t, m, keyMsg("esc"))
	if m.session.Drag() != nil || m.notice != "drag cancelled" {
		t.Fatalf("drag = %+v notice %q", m.session.Drag(), m.notice)
	}
}

func TestDescribeKeepsBody(t *testing.T) {
	m, _, tool := newModel(t, linear(), 20)
	next, _ := m.Update(keyMsg("e"))
	m = next.(Model)
	if !m.editing || m.editor.Value() != "wip" {
		t.Fatalf("editing %v value %q", m.editing, m.editor.Value())
	}
	if !strings.Contains(m.View(), "describe: ") {
		t.Fatalf("editor not shown:\n%s", m.View())
	}

	m.editor.SetValue("retitled ")
	m = send(t, m, keyMsg("enter"))
	if m.editing {
		t.Fatal("still editing")
	}
	if !reflect.DeepEqual(tool.calls, []string{"describe kC retitled\n\nbody"}) {
		t.Fatalf("tool calls = %q", tool.calls)
	}
}

func TestDescribeEscDiscards(t *testing.T) {
	m, _, tool := newModel(t, linear(), 20)
	next, _ := m.Update(keyMsg("e"))
	m = send(t, next.(Model), keyMsg("esc"))
	if m.editing || len(tool.calls) != 0 {
		t.Fatalf("editing %v calls %v", m.editing, tool.calls)
	}
}

func TestAbandonKeyAndRejection(t *testing.T) {
	h := linear()
	h.Records[2].Immutable = true
	m, _, tool := newModel(t, h, 20)

	m = send(t, m, keyMsg("G"))
	m = send(t, m, keyMsg("a"))
	if len(tool.calls) != 0 || !m.noticeErr || !strings.Contains(m.notice, "immutable") {
		t.Fatalf("calls %v notice %q", tool.calls, m.notice)
	}

	m = send(t, m, keyMsg("k"))
	m = send(t, m, keyMsg("a"))
	if !reflect.DeepEqual(tool.calls, []string{"abandon kB"}) {
		t.Fatalf("tool calls = %v", tool.calls)
	}
}

func TestYank(t *testing.T) {
	t.Setenv("TMUX", "")
	t.Setenv("TERM", "xterm-256color")
	var clip bytes.Buffer
	m, _, _ := newModel(t, linear(), 20, WithClipboard(&clip))

	m = send(t, m, keyMsg("y"))
	if !strings.Contains(clip.String(), base64.StdEncoding.EncodeToString([]byte("kC"))) {
		t.Fatalf("clipboard = %q", clip.String())
	}
	if m.notice != "copied change id kC" {
		t.Fatalf("notice = %q", m.notice)
	}

	clip.Reset()
	send(t, m, keyMsg("Y"))
	if !strings.Contains(clip.String(), base64.StdEncoding.EncodeToString([]byte("C"))) {
		t.Fatalf("clipboard = %q", clip.String())
	}
}

func TestReadOnlyPreset(t *testing.T) {
	m, _, tool := newModel(t, linear(), 20)
	m = send(t, m, keyMsg("R"))
	if m.session.Preset() != session.Log || m.session.Generation() != 2 {
		t.Fatalf("preset %v generation %d", m.session.Preset(), m.session.Generation())
	}
	if !strings.Contains(m.View(), "read-only") {
		t.Fatalf("read-only marker missing:\n%s", m.View())
	}

	m = send(t, m, keyMsg("a"))
	if len(tool.calls) != 0 || m.notice != session.ErrReadOnly.Error() {
		t.Fatalf("calls %v notice %q", tool.calls, m.notice)
	}
	m = send(t, m, mouse(tea.MouseActionPress, 1, 1))
	if m.session.Drag() != nil {
		t.Fatal("drag started under a read-only preset")
	}
}

func TestQueryErrorInCorner(t *testing.T) {
	m, reader, _ := newModel(t, linear(), 20)
	reader.errs["::@"] = errors.New("revset parse failed\ndetails")
	m = send(t, m, keyMsg("r"))

	title := strings.SplitN(m.View(), "\n", 2)[0]
	if !strings.HasSuffix(title, " revset parse failed ") {
		t.Fatalf("title = %q", title)
	}
	if !strings.Contains(m.View(), "kC") {
		t.Fatal("last snapshot not kept on screen")
	}

	m = send(t, m, keyMsg("esc"))
	if m.session.Err() != nil {
		t.Fatal("esc did not dismiss the error")
	}
}

func TestExternalChangeNotice(t *testing.T) {
	m, reader, _ := newModel(t, linear(), 20)
	h := linear()
	h.Records = append([]graph.Record{rec("D", "C")}, h.Records...)
	reader.histories["::@"] = h

	m = send(t, m, repoChangedMsg{})
	if m.session.Generation() != 2 || m.notice != "history changed: +1 -0 rows" {
		t.Fatalf("generation %d notice %q", m.session.Generation(), m.notice)
	}
	if m.selected != "C" {
		t.Fatalf("selection moved to %q", m.selected)
	}
}

func TestWaitForChange(t *testing.T) {
	if waitForChange(nil) != nil {
		t.Fatal("nil channel produced a command")
	}
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	if _, ok := waitForChange(ch)().(repoChangedMsg); !ok {
		t.Fatal("change not reported")
	}
	close(ch)
	if msg := waitForChange(ch)(); msg != nil {
		t.Fatalf("closed channel produced %T", msg)
	}
}

func TestWheelScrollShiftsHitTesting(t *testing.T) {
	var h graph.History
	for i := 19; i >= 0; i-- {
		r := rec(fmt.Sprintf("c%02d", i))
		if i > 0 {
			r.Parents = []graph.CommitID{graph.CommitID(fmt.Sprintf("c%02d", i-1))}
		}
		h.Records = append(h.Records, r)
	}
	m, _, _ := newModel(t, h, 10)

	m = send(t, m, tea.MouseMsg{X: 1, Y: 1, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	if m.viewport.offset != 2 {
		t.Fatalf("offset = %d", m.viewport.offset)
	}
	m = send(t, m, mouse(tea.MouseActionPress, 1, 1))
	if want := m.session.Layout().Order[1]; m.selected != want {
		t.Fatalf("selected = %q, want %q", m.selected, want)
	}

	m = send(t, m, keyMsg("G"))
	if last := m.session.Layout().Height() - m.viewport.height; m.viewport.offset != last {
		t.Fatalf("offset = %d, want %d", m.viewport.offset, last)
	}
}
