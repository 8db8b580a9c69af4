// Package reconcile tracks dispatched operations, keeps the optimistic view
// in step with them and folds authoritative snapshots back in.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/ops"
)

// ErrBusy rejects a request that touches commits an in-flight request is
// already rewriting.
var ErrBusy = errors.New("busy")

// BusyError names the request that blocks a new one.
type BusyError struct {
	Request  *ops.Request
	Blocking *ops.Request
	Overlap  []graph.CommitID
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("busy: %s is still running", e.Blocking.Summary())
}

func (e *BusyError) Unwrap() error {
	return ErrBusy
}

// OperationError is a failure reported by the tool.
type OperationError struct {
	Request *ops.Request
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Request.Summary(), e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Op is a request tracked by the reconciler.
type Op struct {
	Request *ops.Request
	Status  ops.Status
	Result  ops.Result
	Err     error
	// seq orders dispatches; done is the clock value at completion.
	seq  uint64
	done uint64
}

// Completion is produced off the owner goroutine when the tool returns.
type Completion struct {
	ID     string
	Result ops.Result
	Err    error
}

// Outcome reports what a completion did to the view.
type Outcome struct {
	Request *ops.Request
	Status  ops.Status
	Result  ops.Result
	// Refresh is set when an authoritative re-read should follow.
	Refresh bool
	Err     error
}

// Reconciler is owned by a single goroutine. Only Execute may run elsewhere.
type Reconciler struct {
	authoritative *graph.Snapshot
	view          *graph.Snapshot

	inflight map[string]*Op
	// settled holds finished ops whose effect the authoritative snapshot
	// may not show yet.
	settled []*Op
	clock   uint64
	logger  *slog.Logger
}

// New creates a Reconciler around the current authoritative snapshot.
func New(s *graph.Snapshot, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		authoritative: s,
		view:          s,
		inflight:      make(map[string]*Op),
		logger:        logger,
	}
}

// View is the snapshot to lay out: authoritative plus optimistic edits.
func (r *Reconciler) View() *graph.Snapshot { return r.view }

// Authoritative is the last snapshot read from the tool.
func (r *Reconciler) Authoritative() *graph.Snapshot { return r.authoritative }

// Stamp returns the current clock. A refresh records it when issued so that
// Accept knows which completions the result already reflects.
func (r *Reconciler) Stamp() uint64 { return r.clock }

// InFlight returns the dispatched requests in dispatch order.
func (r *Reconciler) InFlight() []*ops.Request {
	list := r.sortedInflight()
	out := make([]*ops.Request, len(list))
	for i, op := range list {
		out[i] = op.Request
	}
	return out
}

// Busy reports whether any request is dispatched.
func (r *Reconciler) Busy() bool { return len(r.inflight) > 0 }

// Begin moves req from Pending to Dispatched and applies its optimistic edit.
// A request whose touched commits overlap a dispatched one is rejected with
// a *BusyError and nothing changes.
func (r *Reconciler) Begin(req *ops.Request) (*Op, error) {
	op := &Op{Request: req, Status: ops.Pending}
	for _, other := range r.sortedInflight() {
		if overlap := intersect(req.Touches, other.Request.Touches); len(overlap) > 0 {
			r.logger.Debug("request rejected: busy", "id", req.ID, "blocking", other.Request.ID)
			return nil, &BusyError{Request: req, Blocking: other.Request, Overlap: overlap}
		}
	}

	r.clock++
	op.seq = r.clock
	op.Status = ops.Dispatched
	r.inflight[req.ID] = op
	r.view = r.view.Edit(func(e *graph.Editor) { apply(e, op) })

	r.logger.Info("operation dispatched", "id", req.ID, "op", req.Summary(), "args", req.ArgString())
	return op, nil
}

// Execute runs req against the tool. It may run on any goroutine. The tool
// call is not cancelled with ctx: once sent it runs to completion.
func Execute(ctx context.Context, tool ops.Tool, req *ops.Request) Completion {
	res, err := ops.Dispatch(context.WithoutCancel(ctx), tool, req)
	return Completion{ID: req.ID, Result: res, Err: err}
}

// Complete folds a tool result into the view.
func (r *Reconciler) Complete(c Completion) Outcome {
	op, ok := r.inflight[c.ID]
	if !ok {
		r.logger.Warn("completion for unknown request", "id", c.ID)
		return Outcome{Status: ops.Failed, Err: fmt.Errorf("unknown request %s", c.ID)}
	}
	delete(r.inflight, c.ID)
	r.clock++
	op.done = r.clock
	op.Result = c.Result

	switch {
	case c.Err != nil:
		op.Status = ops.Failed
		op.Err = &OperationError{Request: op.Request, Err: c.Err}
		r.view = r.recompute()
		r.logger.Warn("operation failed", "id", op.Request.ID, "op", op.Request.Summary(), "error", c.Err)
		return Outcome{Request: op.Request, Status: op.Status, Err: op.Err}

	case c.Result.Conflicted():
		op.Status = ops.Conflicted
		r.settled = append(r.settled, op)
		r.view = r.view.Edit(func(e *graph.Editor) { markConflicts(e, op) })
		r.logger.Info("operation left conflicts", "id", op.Request.ID, "op", op.Request.Summary(),
			"conflicts", strings.Join(c.Result.Conflicts, ","))
		return Outcome{Request: op.Request, Status: op.Status, Result: op.Result}

	default:
		op.Status = ops.Succeeded
		r.settled = append(r.settled, op)
		r.logger.Info("operation succeeded", "id", op.Request.ID, "op", op.Request.Summary(), "head", c.Result.NewHead)
		return Outcome{Request: op.Request, Status: op.Status, Result: op.Result, Refresh: true}
	}
}

// Accept installs a new authoritative snapshot read after stamp was taken.
// Finished operations up to stamp are considered part of s; everything else
// is re-applied on top of it. The returned view is what should be laid out.
func (r *Reconciler) Accept(s *graph.Snapshot, stamp uint64) *graph.Snapshot {
	r.authoritative = s
	kept := r.settled[:0]
	for _, op := range r.settled {
		if op.done > stamp {
			kept = append(kept, op)
		}
	}
	r.settled = kept
	r.view = r.recompute()
	return r.view
}

// recompute rebuilds the view from the authoritative snapshot. With nothing
// pending it is the authoritative snapshot itself.
func (r *Reconciler) recompute() *graph.Snapshot {
	pending := append(append([]*Op(nil), r.settled...), r.sortedInflight()...)
	if len(pending) == 0 {
		return r.authoritative
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	return r.authoritative.Edit(func(e *graph.Editor) {
		for _, op := range pending {
			apply(e, op)
			if op.Status == ops.Conflicted {
				markConflicts(e, op)
			}
		}
	})
}

func (r *Reconciler) sortedInflight() []*Op {
	out := make([]*Op, 0, len(r.inflight))
	for _, op := range r.inflight {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// apply performs the local equivalent of op on e.
func apply(e *graph.Editor, op *Op) {
	req := op.Request
	src, srcOK := e.Resolve(req.Source.Commit, req.Source.Change)
	dst, dstOK := e.Resolve(req.Target.Commit, req.Target.Change)

	switch req.Kind {
	case ops.Rebase:
		if srcOK && dstOK {
			e.Reparent(src, dst)
		}
	case ops.Squash:
		if srcOK && dstOK {
			e.Remove(src)
			e.MarkProvisional(dst)
		}
	case ops.MoveBookmark:
		if dstOK {
			e.MoveBookmark(req.Bookmark, dst)
		}
	case ops.Abandon:
		if srcOK {
			e.Remove(src)
		}
	case ops.Describe:
		if srcOK {
			e.SetDescription(src, req.Description)
		}
	}
}

// markConflicts flags the commits the tool reported. Paths do not name
// commits, so when nothing matches the source is flagged.
func markConflicts(e *graph.Editor, op *Op) {
	marked := false
	for _, c := range op.Result.Conflicts {
		if id, ok := e.Resolve(graph.CommitID(c), graph.ChangeID(c)); ok {
			e.MarkConflict(id)
			marked = true
		}
	}
	if marked {
		return
	}
	target := op.Request.Source
	if op.Request.Kind == ops.Squash {
		target = op.Request.Target
	}
	if id, ok := e.Resolve(target.Commit, target.Change); ok {
		e.MarkConflict(id)
	}
}

func intersect(a, b []graph.CommitID) []graph.CommitID {
	set := make(map[graph.CommitID]bool, len(b))
	for _, id := range b {
		set[id] = true
	}
	var out []graph.CommitID
	for _, id := range a {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}
