package graph

import (
	"errors"
	"fmt"
	"time"
)

// CommitID is the content-addressed identity of a commit.
type CommitID string

// Short returns the first n characters of the id.
func (id CommitID) Short(n int) string {
	if len(id) <= n {
		return string(id)
	}
	return string(id[:n])
}

// ChangeID identifies a change across rewrites.
type ChangeID string

// Short returns the first n characters of the id.
func (id ChangeID) Short(n int) string {
	if len(id) <= n {
		return string(id)
	}
	return string(id[:n])
}

// Signature is an author or committer line.
type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	When  time.Time `json:"when"`
}

// Record is one commit as reported by the history reader.
type Record struct {
	ID          CommitID   `json:"id"`
	ChangeID    ChangeID   `json:"change_id"`
	Parents     []CommitID `json:"parents"`
	Author      Signature  `json:"author"`
	Committed   time.Time  `json:"committed"`
	Description string     `json:"description"`
	Bookmarks   []string   `json:"bookmarks,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Immutable   bool       `json:"immutable"`
	Conflict    bool       `json:"conflict"`
	WorkingCopy bool       `json:"working_copy"`
	Empty       bool       `json:"empty"`
	Root        bool       `json:"root"`
}

// History is the raw result of evaluating one revision set.
type History struct {
	Revset  string
	OpID    string
	Records []Record
	// Boundary lists commits outside the revision set that are parents of
	// commits inside it. Parents found here are external roots, not errors.
	Boundary []CommitID
}

// Node is a commit inside a snapshot.
type Node struct {
	Record

	// External holds parents that exist outside the revision set.
	External []CommitID `json:"external,omitempty"`
	// Unresolved holds parents that could not be found at all, or whose
	// edge was dropped to break a cycle.
	Unresolved []CommitID `json:"unresolved,omitempty"`

	HasConflict bool `json:"has_conflict"`
	Provisional bool `json:"provisional"`
}

// ParentsUnresolved reports whether the node is degraded.
func (n Node) ParentsUnresolved() bool {
	return len(n.Unresolved) > 0
}

// Title returns the first line of the description or a placeholder.
func (n Node) Title() string {
	if n.Description == "" {
		return "(no description set)"
	}
	return n.Description
}

// EdgeKind classifies an edge.
type EdgeKind int

const (
	// Direct edges connect two commits of the same snapshot.
	Direct EdgeKind = iota
	// External edges point at a parent outside the snapshot.
	External
)

func (k EdgeKind) String() string {
	if k == External {
		return "external"
	}
	return "direct"
}

// Edge is a derived (parent, child) pair. Index is the position of the
// parent in the child's parent list; index 0 is the primary parent.
type Edge struct {
	Parent CommitID `json:"parent"`
	Child  CommitID `json:"child"`
	Kind   EdgeKind `json:"kind"`
	Index  int      `json:"index"`
}

var (
	// ErrDanglingParent marks a parent id that is neither in the snapshot nor
	// known to exist outside it.
	ErrDanglingParent = errors.New("dangling parent")
	// ErrCycle marks an edge that closes a cycle.
	ErrCycle = errors.New("cycle in commit graph")
	// ErrDuplicateCommit marks a commit reported more than once.
	ErrDuplicateCommit = errors.New("duplicate commit")
)

// IntegrityError describes a problem confined to a single node.
type IntegrityError struct {
	Commit CommitID
	Parent CommitID
	Err    error
}

func (e *IntegrityError) Error() string {
	if e.Parent != "" {
		return fmt.Sprintf("commit %s: parent %s: %v", e.Commit.Short(12), e.Parent.Short(12), e.Err)
	}
	return fmt.Sprintf("commit %s: %v", e.Commit.Short(12), e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}
