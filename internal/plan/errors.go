package plan

import (
	"errors"
	"fmt"

	"github.com/cj3636/kahva/internal/ops"
)

// Sentinel reasons for a rejection.
var (
	ErrImmutable         = errors.New("commit is immutable")
	ErrCycle             = errors.New("destination is a descendant of the source")
	ErrNotAncestor       = errors.New("destination is not an ancestor of the source")
	ErrPinnedBookmark    = errors.New("bookmark is pinned to an immutable commit")
	ErrProtectedBookmark = errors.New("bookmark is protected")
	ErrSameCommit        = errors.New("source and destination are the same commit")
	ErrUnknownCommit     = errors.New("commit is not in the current view")
	ErrUnknownBookmark   = errors.New("bookmark does not exist")
	ErrNoop              = errors.New("operation would not change anything")
)

// Rejection is returned when a candidate fails validation. Nothing has been
// executed when it is returned.
type Rejection struct {
	Kind   ops.Kind
	Reason string
	Err    error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejected: %s", r.Kind, r.Reason)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

func reject(kind ops.Kind, err error, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}
