// Package gesture turns pointer events over a laid-out graph into candidate
// operations.
package gesture

import (
	"log/slog"

	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/layout"
	"github.com/cj3636/kahva/internal/ops"
)

// EventKind is the kind of a pointer event.
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	PointerLeave
)

// Event is a pointer event in layout coordinates.
type Event struct {
	Kind EventKind
	X, Y int
	Mods Modifiers
}

// Hit is what lies under a point.
type Hit struct {
	Role     Role
	Commit   graph.CommitID
	Bookmark string
}

// DragState exists only while a drag is in progress.
type DragState struct {
	Role       Role
	Source     graph.CommitID
	Bookmark   string
	X, Y       int
	Target     Hit
	Kind       ops.Kind
	Candidate  ops.Candidate
	Rejected   error
	Generation uint64
}

// Droppable reports whether releasing now would emit a candidate.
func (d *DragState) Droppable() bool {
	return d.Kind != ops.None && d.Rejected == nil
}

// OutcomeKind tells the caller what an event did.
type OutcomeKind int

const (
	Ignored OutcomeKind = iota
	Started
	Updated
	// Dropped carries a candidate for the planner.
	Dropped
	// Cancelled ends a drag without a valid target.
	Cancelled
	// Abandoned ends a drag because the pointer left the surface or the
	// layout changed underneath it.
	Abandoned
)

func (k OutcomeKind) String() string {
	return [...]string{"ignored", "started", "updated", "dropped", "cancelled", "abandoned"}[k]
}

// Outcome is the result of handling one event.
type Outcome struct {
	Kind      OutcomeKind
	Candidate ops.Candidate
	// Err is the rejection of the last hovered target, if any.
	Err error
}

// Validator checks a candidate without side effects.
type Validator func(ops.Candidate) error

// Resolver is driven from a single goroutine; it never blocks.
type Resolver struct {
	rules    []Rule
	validate Validator
	logger   *slog.Logger

	layout  *layout.Result
	surface layout.Box
	trash   layout.Box
	enabled bool
	drag    *DragState
}

// NewResolver creates a resolver. A nil validator accepts every candidate and
// nil rules mean DefaultRules.
func NewResolver(rules []Rule, validate Validator, logger *slog.Logger) *Resolver {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{rules: rules, validate: validate, logger: logger, enabled: true}
}

// SetValidator replaces the validator.
func (r *Resolver) SetValidator(v Validator) {
	r.validate = v
}

// SetLayout installs the layout events are tested against. A drag started
// on another generation is abandoned; the return value reports that.
func (r *Resolver) SetLayout(l *layout.Result) bool {
	r.layout = l
	if r.drag != nil && (l == nil || l.Generation != r.drag.Generation) {
		r.logger.Debug("drag abandoned: layout changed", "source", r.drag.Source, "generation", r.drag.Generation)
		r.drag = nil
		return true
	}
	return false
}

// SetSurface sets the interactive area and the trash zone. A zero surface is
// unbounded; a zero trash box disables the trash zone.
func (r *Resolver) SetSurface(surface, trash layout.Box) {
	r.surface = surface
	r.trash = trash
}

// SetEnabled turns gestures on or off. Disabling drops any active drag.
func (r *Resolver) SetEnabled(on bool) {
	r.enabled = on
	if !on {
		r.drag = nil
	}
}

// Enabled reports whether drags can start.
func (r *Resolver) Enabled() bool {
	return r.enabled
}

// Drag returns the active drag, or nil.
func (r *Resolver) Drag() *DragState {
	if r.drag == nil {
		return nil
	}
	d := *r.drag
	return &d
}

// Cancel discards the active drag.
func (r *Resolver) Cancel() Outcome {
	if r.drag == nil {
		return Outcome{Kind: Ignored}
	}
	r.drag = nil
	return Outcome{Kind: Cancelled}
}

// Handle processes one pointer event.
func (r *Resolver) Handle(ev Event) Outcome {
	switch ev.Kind {
	case PointerDown:
		return r.down(ev)
	case PointerMove:
		return r.move(ev)
	case PointerUp:
		return r.up(ev)
	case PointerLeave:
		return r.abandon("pointer left the surface")
	}
	return Outcome{Kind: Ignored}
}

func (r *Resolver) down(ev Event) Outcome {
	r.drag = nil
	if !r.enabled || r.layout == nil {
		return Outcome{Kind: Ignored}
	}
	h := r.HitTest(ev.X, ev.Y)
	d := &DragState{X: ev.X, Y: ev.Y, Generation: r.layout.Generation}
	switch h.Role {
	case RoleBookmark:
		d.Role, d.Source, d.Bookmark = RoleBookmark, h.Commit, h.Bookmark
	case RoleCommit:
		d.Role, d.Source = RoleCommit, h.Commit
	default:
		return Outcome{Kind: Ignored}
	}
	r.drag = d
	r.logger.Debug("drag started", "role", d.Role, "source", d.Source, "bookmark", d.Bookmark)
	return Outcome{Kind: Started}
}

func (r *Resolver) move(ev Event) Outcome {
	if r.drag == nil {
		return Outcome{Kind: Ignored}
	}
	if !r.onSurface(ev.X, ev.Y) {
		return r.abandon("pointer left the surface")
	}
	r.hover(ev)
	return Outcome{Kind: Updated, Err: r.drag.Rejected}
}

func (r *Resolver) up(ev Event) Outcome {
	if r.drag == nil {
		return Outcome{Kind: Ignored}
	}
	if !r.onSurface(ev.X, ev.Y) {
		return r.abandon("released outside the surface")
	}
	r.hover(ev)
	d := r.drag
	r.drag = nil
	if !d.Droppable() {
		if d.Rejected != nil {
			r.logger.Debug("drop rejected", "candidate", d.Candidate.String(), "reason", d.Rejected)
		}
		return Outcome{Kind: Cancelled, Err: d.Rejected}
	}
	r.logger.Debug("drop", "candidate", d.Candidate.String())
	return Outcome{Kind: Dropped, Candidate: d.Candidate}
}

func (r *Resolver) abandon(reason string) Outcome {
	if r.drag == nil {
		return Outcome{Kind: Ignored}
	}
	r.logger.Debug("drag abandoned", "source", r.drag.Source, "reason", reason)
	r.drag = nil
	return Outcome{Kind: Abandoned}
}

// hover updates the target and kind of the active drag for the point ev.
func (r *Resolver) hover(ev Event) {
	d := r.drag
	d.X, d.Y = ev.X, ev.Y
	d.Target = r.HitTest(ev.X, ev.Y)
	d.Kind = ops.None
	d.Candidate = ops.Candidate{}
	d.Rejected = nil

	if d.Target.Role == RoleNone || r.isSource(d.Target) {
		d.Target = Hit{}
		return
	}
	for _, rule := range r.rules {
		if rule.matches(d.Role, d.Target.Role, ev.Mods) {
			d.Kind = rule.Kind
			break
		}
	}
	if d.Kind == ops.None {
		return
	}
	d.Candidate = candidate(d)
	if r.validate != nil {
		d.Rejected = r.validate(d.Candidate)
	}
}

func (r *Resolver) isSource(h Hit) bool {
	d := r.drag
	switch d.Role {
	case RoleBookmark:
		return h.Role == RoleBookmark && h.Bookmark == d.Bookmark
	case RoleCommit:
		return h.Role == RoleCommit && h.Commit == d.Source
	}
	return false
}

func candidate(d *DragState) ops.Candidate {
	c := ops.Candidate{Kind: d.Kind, Source: d.Source, Target: d.Target.Commit}
	switch {
	case d.Role == RoleBookmark:
		c.Bookmark = d.Bookmark
	case d.Target.Role == RoleBookmark && d.Kind == ops.MoveBookmark:
		// The hovered bookmark moves onto the dragged commit.
		c.Bookmark = d.Target.Bookmark
		c.Source, c.Target = d.Target.Commit, d.Source
	}
	return c
}

func (r *Resolver) onSurface(x, y int) bool {
	if r.surface.W == 0 && r.surface.H == 0 {
		return true
	}
	return r.surface.Contains(x, y) || r.trash.Contains(x, y)
}

// HitTest returns what lies under (x, y). Bookmark labels sit on top of
// their commit row and win over it.
func (r *Resolver) HitTest(x, y int) Hit {
	if r.trash.W > 0 && r.trash.Contains(x, y) {
		return Hit{Role: RoleTrash}
	}
	if r.layout == nil {
		return Hit{}
	}
	if l, ok := r.layout.HitLabel(x, y); ok {
		return Hit{Role: RoleBookmark, Commit: l.Commit, Bookmark: l.Bookmark}
	}
	if id, ok := r.layout.HitNode(x, y); ok {
		return Hit{Role: RoleCommit, Commit: id}
	}
	return Hit{}
}
