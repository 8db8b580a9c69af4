package session

import (
	"context"

	"github.com/cj3636/kahva/internal/gesture"
	"github.com/cj3636/kahva/internal/ops"
	"github.com/cj3636/kahva/internal/reconcile"
)

// Dispatch is an accepted request waiting to be sent to the tool.
type Dispatch struct {
	Request *ops.Request
	tool    ops.Tool
}

// Run sends the request. It may run on any goroutine and is not stopped by
// cancelling ctx.
func (d *Dispatch) Run(ctx context.Context) reconcile.Completion {
	return reconcile.Execute(ctx, d.tool, d.Request)
}

// Pointer feeds a pointer event to the gesture resolver. A drop that
// resolves to a valid candidate is submitted at once.
func (s *Session) Pointer(ev gesture.Event) (gesture.Outcome, *Dispatch, error) {
	out := s.resolver.Handle(ev)
	if out.Kind != gesture.Dropped {
		return out, nil, nil
	}
	d, err := s.Submit(out.Candidate)
	return out, d, err
}

// CancelDrag ends the drag in progress without emitting anything.
func (s *Session) CancelDrag() gesture.Outcome {
	return s.resolver.Cancel()
}

// Submit plans c against the view and, if accepted, applies its optimistic
// edit. The returned Dispatch must be run and its completion passed to
// Complete.
func (s *Session) Submit(c ops.Candidate) (*Dispatch, error) {
	if !s.preset.Editable() {
		return nil, ErrReadOnly
	}
	req, err := s.planner.Plan(s.rec.View(), c)
	if err != nil {
		s.logger.Debug("candidate rejected", "candidate", c.String(), "error", err)
		return nil, err
	}
	if _, err := s.rec.Begin(req); err != nil {
		return nil, err
	}
	s.relayout()
	return &Dispatch{Request: req, tool: s.tool}, nil
}

// Complete folds a finished dispatch into the view. When the outcome asks
// for it the caller should start a Refresh.
func (s *Session) Complete(c reconcile.Completion) reconcile.Outcome {
	out := s.rec.Complete(c)
	s.relayout()
	if out.Err != nil {
		s.lastErr = out.Err
	}
	return out
}
