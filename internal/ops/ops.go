// Package ops holds the operation vocabulary shared by the gesture resolver,
// the planner and the executor.
package ops

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cj3636/kahva/internal/graph"
)

// Kind is the kind of a history operation.
type Kind int

const (
	None Kind = iota
	Rebase
	Squash
	MoveBookmark
	Abandon
	Describe
)

var kindNames = map[Kind]string{
	None:         "none",
	Rebase:       "rebase",
	Squash:       "squash",
	MoveBookmark: "move-bookmark",
	Abandon:      "abandon",
	Describe:     "describe",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a configured name into a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "rebase", "rebase-onto":
		return Rebase, nil
	case "squash", "squash-into":
		return Squash, nil
	case "move-bookmark", "bookmark":
		return MoveBookmark, nil
	case "abandon":
		return Abandon, nil
	case "describe":
		return Describe, nil
	}
	return None, fmt.Errorf("unknown operation kind %q", s)
}

// Candidate is a tentative operation before validation.
type Candidate struct {
	Kind        Kind
	Source      graph.CommitID
	Target      graph.CommitID
	Bookmark    string
	Description string
}

func (c Candidate) String() string {
	switch c.Kind {
	case MoveBookmark:
		return fmt.Sprintf("%s %s -> %s", c.Kind, c.Bookmark, c.Target.Short(8))
	case Abandon, Describe:
		return fmt.Sprintf("%s %s", c.Kind, c.Source.Short(8))
	}
	return fmt.Sprintf("%s %s -> %s", c.Kind, c.Source.Short(8), c.Target.Short(8))
}

// Revision names a commit by both of its identities. Tools address the change
// id so that a request stays valid if the commit was rewritten in between.
type Revision struct {
	Commit graph.CommitID `json:"commit"`
	Change graph.ChangeID `json:"change"`
}

// Ref returns the identity a tool should address.
func (r Revision) Ref() string {
	if r.Change != "" {
		return string(r.Change)
	}
	return string(r.Commit)
}

// Request is a validated operation ready for dispatch.
type Request struct {
	ID          string
	Kind        Kind
	Source      Revision
	Target      Revision
	Bookmark    string
	Description string
	// Touches is every commit the operation may rewrite, plus the commits
	// its result is built on.
	Touches []graph.CommitID
	// Args are the tool-neutral arguments of the request.
	Args    map[string]string
	Created time.Time
}

// Summary renders the request for status lines and logs.
func (r *Request) Summary() string {
	switch r.Kind {
	case MoveBookmark:
		return fmt.Sprintf("move %s to %s", r.Bookmark, r.Target.Commit.Short(8))
	case Abandon:
		return fmt.Sprintf("abandon %s", r.Source.Commit.Short(8))
	case Describe:
		return fmt.Sprintf("describe %s", r.Source.Commit.Short(8))
	case Squash:
		return fmt.Sprintf("squash %s into %s", r.Source.Commit.Short(8), r.Target.Commit.Short(8))
	}
	return fmt.Sprintf("rebase %s onto %s", r.Source.Commit.Short(8), r.Target.Commit.Short(8))
}

// ArgString renders Args in a stable order.
func (r *Request) ArgString() string {
	keys := make([]string, 0, len(r.Args))
	for k := range r.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + r.Args[k]
	}
	return strings.Join(parts, " ")
}

// Status is the state of a request in the executor.
type Status int

const (
	Pending Status = iota
	Dispatched
	Succeeded
	Failed
	Conflicted
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Dispatched:
		return "dispatched"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Conflicted:
		return "conflicted"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether s ends the request's life.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed || s == Conflicted
}

// Result is what a tool reports for a finished mutation.
type Result struct {
	NewHead graph.CommitID
	// Conflicts lists the conflicted change ids, or paths when the tool
	// only reports those.
	Conflicts []string
}

// Conflicted reports whether the tool left conflicts behind.
func (r Result) Conflicted() bool {
	return len(r.Conflicts) > 0
}

// Tool is the capability interface over the version-control tool. Every call
// is treated as atomic: once invoked it runs to completion.
type Tool interface {
	Rebase(ctx context.Context, source, dest Revision) (Result, error)
	Squash(ctx context.Context, source, into Revision) (Result, error)
	MoveBookmark(ctx context.Context, name string, to Revision) (Result, error)
	Abandon(ctx context.Context, rev Revision) (Result, error)
	Describe(ctx context.Context, rev Revision, message string) (Result, error)
}

// Dispatch invokes the tool method matching req.Kind.
func Dispatch(ctx context.Context, tool Tool, req *Request) (Result, error) {
	switch req.Kind {
	case Rebase:
		return tool.Rebase(ctx, req.Source, req.Target)
	case Squash:
		return tool.Squash(ctx, req.Source, req.Target)
	case MoveBookmark:
		return tool.MoveBookmark(ctx, req.Bookmark, req.Target)
	case Abandon:
		return tool.Abandon(ctx, req.Source)
	case Describe:
		return tool.Describe(ctx, req.Source, req.Description)
	}
	return Result{}, fmt.Errorf("dispatch: unsupported kind %s", req.Kind)
}
