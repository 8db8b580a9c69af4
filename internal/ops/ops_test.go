package ops

import (
	"context"
	"testing"
)

type recordingTool struct {
	calls []string
}

func (r *recordingTool) Rebase(_ context.Context, s, d Revision) (Result, error) {
	r.calls = append(r.calls, "rebase "+s.Ref()+" "+d.Ref())
	return Result{}, nil
}

func (r *recordingTool) Squash(_ context.Context, s, d Revision) (Result, error) {
	r.calls = append(r.calls, "squash "+s.Ref()+" "+d.Ref())
	return Result{}, nil
}

func (r *recordingTool) MoveBookmark(_ context.Context, name string, to Revision) (Result, error) {
	r.calls = append(r.calls, "bookmark "+name+" "+to.Ref())
	return Result{}, nil
}

func (r *recordingTool) Abandon(_ context.Context, rev Revision) (Result, error) {
	r.calls = append(r.calls, "abandon "+rev.Ref())
	return Result{}, nil
}

func (r *recordingTool) Describe(_ context.Context, rev Revision, msg string) (Result, error) {
	r.calls = append(r.calls, "describe "+rev.Ref()+" "+msg)
	return Result{}, nil
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"rebase", Rebase, false},
		{"Rebase-Onto", Rebase, false},
		{" squash ", Squash, false},
		{"squash-into", Squash, false},
		{"move-bookmark", MoveBookmark, false},
		{"abandon", Abandon, false},
		{"describe", Describe, false},
		{"merge", None, true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseKind(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestDispatchRoutesByKind(t *testing.T) {
	src := Revision{Commit: "c1", Change: "kx"}
	dst := Revision{Commit: "c2"}
	tests := []struct {
		req  Request
		want string
	}{
		{Request{Kind: Rebase, Source: src, Target: dst}, "rebase kx c2"},
		{Request{Kind: Squash, Source: src, Target: dst}, "squash kx c2"},
		{Request{Kind: MoveBookmark, Bookmark: "main", Target: dst}, "bookmark main c2"},
		{Request{Kind: Abandon, Source: src}, "abandon kx"},
		{Request{Kind: Describe, Source: src, Description: "msg"}, "describe kx msg"},
	}
	for _, tt := range tests {
		tool := &recordingTool{}
		if _, err := Dispatch(context.Background(), tool, &tt.req); err != nil {
			t.Fatalf("%s: %v", tt.req.Kind, err)
		}
		if len(tool.calls) != 1 || tool.calls[0] != tt.want {
			t.Errorf("%s: calls = %v, want %q", tt.req.Kind, tool.calls, tt.want)
		}
	}

	if _, err := Dispatch(context.Background(), &recordingTool{}, &Request{Kind: None}); err == nil {
		t.Error("dispatching None should fail")
	}
}

func TestArgStringIsSorted(t *testing.T) {
	r := &Request{Args: map[string]string{"source": "a", "dest": "b", "mode": "x"}}
	if got := r.ArgString(); got != "dest=b mode=x source=a" {
		t.Fatalf("ArgString() = %q", got)
	}
}
