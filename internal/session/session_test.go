package session

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/cj3636/kahva/internal/gesture"
	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/ops"
	"github.com/cj3636/kahva/internal/plan"
	"github.com/cj3636/kahva/internal/reconcile"
)

func rec(id string, parents ...string) graph.Record {
	ps := make([]graph.CommitID, len(parents))
	for i, p := range parents {
		ps[i] = graph.CommitID(p)
	}
	return graph.Record{ID: graph.CommitID(id), ChangeID: graph.ChangeID("k" + id), Parents: ps}
}

func linear() graph.History {
	return graph.History{Records: []graph.Record{rec("C", "B"), rec("B", "A"), rec("A")}}
}

type fakeReader struct {
	histories map[string]graph.History
	errs      map[string]error
	calls     []string
}

func (f *fakeReader) Query(ctx context.Context, revset string) (graph.History, error) {
	f.calls = append(f.calls, revset)
	if err := ctx.Err(); err != nil {
		return graph.History{}, err
	}
	if err := f.errs[revset]; err != nil {
		return graph.History{}, err
	}
	h := f.histories[revset]
	h.Revset = revset
	return h, nil
}

type fakeTool struct {
	calls []string
	err   error
	res   ops.Result
}

func (f *fakeTool) Rebase(_ context.Context, s, d ops.Revision) (ops.Result, error) {
	f.calls = append(f.calls, "rebase "+s.Ref()+" "+d.Ref())
	return f.res, f.err
}

func (f *fakeTool) Squash(_ context.Context, s, d ops.Revision) (ops.Result, error) {
	f.calls = append(f.calls, "squash "+s.Ref()+" "+d.Ref())
	return f.res, f.err
}

func (f *fakeTool) MoveBookmark(_ context.Context, name string, to ops.Revision) (ops.Result, error) {
	f.calls = append(f.calls, "bookmark "+name+" "+to.Ref())
	return f.res, f.err
}

func (f *fakeTool) Abandon(_ context.Context, r ops.Revision) (ops.Result, error) {
	f.calls = append(f.calls, "abandon "+r.Ref())
	return f.res, f.err
}

func (f *fakeTool) Describe(_ context.Context, r ops.Revision, msg string) (ops.Result, error) {
	f.calls = append(f.calls, "describe "+r.Ref()+" "+msg)
	return f.res, f.err
}

func newSession(t *testing.T, opts ...Option) (*Session, *fakeReader, *fakeTool) {
	t.Helper()
	reader := &fakeReader{histories: map[string]graph.History{"::@": linear()}, errs: map[string]error{}}
	tool := &fakeTool{}
	s := New(reader, tool, Revsets{KahvaLog: "::@", Log: "::@"}, opts...)
	s.SetWidth(40)
	if !s.ApplyRefresh(s.Refresh(context.Background()).Run()) {
		t.Fatal("initial refresh dropped")
	}
	return s, reader, tool
}

func TestRefreshAssignsGenerations(t *testing.T) {
	s, _, _ := newSession(t)
	if s.Generation() != 1 || s.View().Len() != 3 || s.Layout().Generation != 1 {
		t.Fatalf("generation %d, %d commits, layout generation %d", s.Generation(), s.View().Len(), s.Layout().Generation)
	}
	if s.Loading() {
		t.Fatal("still loading after the refresh was applied")
	}
	s.ApplyRefresh(s.Refresh(context.Background()).Run())
	if s.Generation() != 2 || s.View().Generation() != 2 {
		t.Fatalf("generation = %d", s.Generation())
	}
}

func TestLatestRefreshWins(t *testing.T) {
	t.Run("superseded query is cancelled", func(t *testing.T) {
		s, _, _ := newSession(t)
		first := s.Refresh(context.Background())
		second := s.Refresh(context.Background())

		r1 := first.Run()
		if !errors.Is(r1.Err, context.Canceled) {
			t.Fatalf("first query err = %v, want cancelled", r1.Err)
		}
		if s.ApplyRefresh(r1) {
			t.Fatal("cancelled result applied")
		}
		if !s.ApplyRefresh(second.Run()) {
			t.Fatal("latest result dropped")
		}
		if s.Generation() != 2 {
			t.Fatalf("generation = %d", s.Generation())
		}
	})

	t.Run("late result is ignored", func(t *testing.T) {
		s, reader, _ := newSession(t)
		first := s.Refresh(context.Background())
		r1 := first.Run()
		second := s.Refresh(context.Background())
		reader.histories["::@"] = graph.History{Records: []graph.Record{rec("B", "A"), rec("A")}}
		if !s.ApplyRefresh(second.Run()) {
			t.Fatal("latest result dropped")
		}
		if s.ApplyRefresh(r1) {
			t.Fatal("superseded result applied")
		}
		if s.View().Len() != 2 || s.Generation() != 2 {
			t.Fatalf("view has %d commits at generation %d", s.View().Len(), s.Generation())
		}
	})
}

func TestQueryErrorKeepsLastSnapshot(t *testing.T) {
	s, reader, _ := newSession(t)
	good := s.View()
	queryErr := errors.New("Failed to parse revset")
	reader.errs["::@"] = queryErr

	if !s.ApplyRefresh(s.Refresh(context.Background()).Run()) {
		t.Fatal("failure not applied")
	}
	if s.View() != good || s.Generation() != 1 {
		t.Fatal("failed query replaced the snapshot")
	}
	if !errors.Is(s.Err(), queryErr) {
		t.Fatalf("Err = %v", s.Err())
	}

	delete(reader.errs, "::@")
	s.ApplyRefresh(s.Refresh(context.Background()).Run())
	if s.Err() != nil {
		t.Fatalf("error kept after a successful refresh: %v", s.Err())
	}
}

func TestPresets(t *testing.T) {
	reader := &fakeReader{histories: map[string]graph.History{"mine()": linear(), "::@": linear()}}
	s := New(reader, &fakeTool{}, Revsets{KahvaLog: "mine()", Log: "::@"})
	s.SetWidth(40)
	pending := s.Refresh(context.Background())
	if pending.Revset != "mine()" {
		t.Fatalf("editable preset revset = %q", pending.Revset)
	}

	task := s.TogglePreset(context.Background())
	if pending.ctx.Err() == nil {
		t.Fatal("switching presets did not cancel the running query")
	}
	if task.Revset != "::@" || s.Preset() != Log || task.Preset != Log {
		t.Fatalf("task = %+v", task)
	}
	s.ApplyRefresh(task.Run())

	if _, err := s.Submit(ops.Candidate{Kind: ops.Rebase, Source: "C", Target: "A"}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Submit err = %v, want read-only", err)
	}
	if out, _, _ := s.Pointer(gesture.Event{Kind: gesture.PointerDown, X: 1, Y: 0}); out.Kind != gesture.Ignored {
		t.Fatalf("pointer down under the log preset = %v", out.Kind)
	}

	s.TogglePreset(context.Background())
	if s.Preset() != KahvaLog || s.Revset() != "mine()" {
		t.Fatalf("preset = %v revset %q", s.Preset(), s.Revset())
	}

	fallback := New(reader, nil, Revsets{Log: "::@"})
	if fallback.Revset() != "::@" {
		t.Fatalf("fallback revset = %q", fallback.Revset())
	}
}

func TestParsePreset(t *testing.T) {
	for in, want := range map[string]Preset{"": KahvaLog, "kahva-log": KahvaLog, "log": Log} {
		got, err := ParsePreset(in)
		if err != nil || got != want {
			t.Errorf("ParsePreset(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePreset("all"); err == nil {
		t.Error("expected an error")
	}
}

func TestDragToCompletion(t *testing.T) {
	s, reader, tool := newSession(t)

	s.Pointer(gesture.Event{Kind: gesture.PointerDown, X: 1, Y: 0})
	s.Pointer(gesture.Event{Kind: gesture.PointerMove, X: 1, Y: 4})
	out, d, err := s.Pointer(gesture.Event{Kind: gesture.PointerUp, X: 1, Y: 4})
	if err != nil || out.Kind != gesture.Dropped || d == nil {
		t.Fatalf("drop = %v, %v, %v", out.Kind, d, err)
	}
	if d.Request.Kind != ops.Rebase || d.Request.Source.Commit != "C" || d.Request.Target.Commit != "A" {
		t.Fatalf("request = %+v", d.Request)
	}
	if !s.View().Provisional() || !reflect.DeepEqual(s.View().Parents("C"), []graph.CommitID{"A"}) {
		t.Fatal("optimistic rebase not shown")
	}
	if s.Layout().Row("C") != 0 {
		t.Fatal("layout not recomputed for the optimistic view")
	}

	res := s.Complete(d.Run(context.Background()))
	if !reflect.DeepEqual(tool.calls, []string{"rebase kC kA"}) {
		t.Fatalf("tool calls = %v", tool.calls)
	}
	if res.Status != ops.Succeeded || !res.Refresh {
		t.Fatalf("outcome = %+v", res)
	}

	reader.histories["::@"] = graph.History{Records: []graph.Record{rec("C", "A"), rec("B", "A"), rec("A")}}
	s.ApplyRefresh(s.Refresh(context.Background()).Run())
	if s.View().Provisional() || !reflect.DeepEqual(s.View().Parents("C"), []graph.CommitID{"A"}) {
		t.Fatal("authoritative snapshot not installed")
	}
	if s.Drift().HasChanges() {
		t.Fatalf("confirmed edit reported as drift: %s", s.Drift().Summary())
	}
}

func TestBusyAndFailure(t *testing.T) {
	s, _, tool := newSession(t)
	before := s.View()

	d, err := s.Submit(ops.Candidate{Kind: ops.Rebase, Source: "C", Target: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit(ops.Candidate{Kind: ops.Describe, Source: "C", Description: "again"}); !errors.Is(err, reconcile.ErrBusy) {
		t.Fatalf("overlapping submit err = %v, want busy", err)
	}
	if len(s.InFlight()) != 1 {
		t.Fatalf("in flight = %d", len(s.InFlight()))
	}

	tool.err = errors.New("exit status 1")
	out := s.Complete(d.Run(context.Background()))
	if out.Status != ops.Failed || out.Refresh {
		t.Fatalf("outcome = %+v", out)
	}
	if s.View() != before {
		t.Fatal("failed operation not rolled back")
	}
	var opErr *reconcile.OperationError
	if !errors.As(s.Err(), &opErr) {
		t.Fatalf("Err = %v", s.Err())
	}
}

func TestRejectedCandidate(t *testing.T) {
	s, _, _ := newSession(t)
	if _, err := s.Submit(ops.Candidate{Kind: ops.Rebase, Source: "A", Target: "C"}); !errors.Is(err, plan.ErrCycle) {
		t.Fatalf("err = %v, want cycle", err)
	}
	if s.View().Provisional() {
		t.Fatal("rejected candidate changed the view")
	}
}

func TestExternalDriftIsReported(t *testing.T) {
	s, reader, _ := newSession(t)
	reader.histories["::@"] = graph.History{Records: []graph.Record{rec("D", "C"), rec("C", "B"), rec("B", "A"), rec("A")}}
	s.ApplyRefresh(s.Refresh(context.Background()).Run())

	drift := s.Drift()
	if !drift.HasChanges() || drift.From != 1 || drift.To != 2 {
		t.Fatalf("drift = %+v", drift)
	}
	if added, removed, _ := drift.Stats(); added != 1 || removed != 0 {
		t.Fatalf("drift stats = +%d -%d", added, removed)
	}
}

func TestGenerationChangeAbandonsDrag(t *testing.T) {
	s, _, _ := newSession(t)
	s.Pointer(gesture.Event{Kind: gesture.PointerDown, X: 1, Y: 0})
	if s.Drag() == nil {
		t.Fatal("drag not started")
	}
	s.ApplyRefresh(s.Refresh(context.Background()).Run())
	if s.Drag() != nil {
		t.Fatal("drag survived a new generation")
	}
}
