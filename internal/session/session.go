// Package session owns the interactive state: the current snapshot and its
// layout, the revision set preset, and the flow from gestures to operations.
// A Session is not safe for concurrent use; only the tasks it hands out run
// elsewhere.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cj3636/kahva/internal/diff"
	"github.com/cj3636/kahva/internal/gesture"
	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/layout"
	"github.com/cj3636/kahva/internal/ops"
	"github.com/cj3636/kahva/internal/plan"
	"github.com/cj3636/kahva/internal/reconcile"
)

// ErrReadOnly rejects operations while a read-only preset is shown.
var ErrReadOnly = errors.New("read-only view")

// Reader evaluates a revision set.
type Reader interface {
	Query(ctx context.Context, revset string) (graph.History, error)
}

// Preset selects which configured revision set is shown.
type Preset int

const (
	// KahvaLog is the editable view.
	KahvaLog Preset = iota
	// Log mirrors the tool's own log and accepts no gestures.
	Log
)

func (p Preset) String() string {
	if p == Log {
		return "log"
	}
	return "kahva-log"
}

// Editable reports whether gestures may modify history under p.
func (p Preset) Editable() bool { return p == KahvaLog }

// ParsePreset reads a preset name.
func ParsePreset(s string) (Preset, error) {
	switch s {
	case "", "kahva-log", "kahva":
		return KahvaLog, nil
	case "log":
		return Log, nil
	}
	return KahvaLog, fmt.Errorf("unknown preset %q", s)
}

// Revsets holds the revision set of each preset.
type Revsets struct {
	KahvaLog string
	Log      string
}

func (r Revsets) of(p Preset) string {
	if p == Log {
		return r.Log
	}
	return r.KahvaLog
}

// Session is the single owner of what is on screen.
type Session struct {
	reader   Reader
	tool     ops.Tool
	builder  *graph.Builder
	engine   *layout.Engine
	planner  *plan.Planner
	resolver *gesture.Resolver
	rec      *reconcile.Reconciler
	logger   *slog.Logger

	revsets    Revsets
	preset     Preset
	generation uint64
	layout     *layout.Result
	lastErr    error
	drift      *diff.Report

	token  uint64
	cancel context.CancelFunc
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	logger   *slog.Logger
	geometry layout.Geometry
	rules    []gesture.Rule
	planner  []plan.Option
	preset   Preset
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *sessionOptions) { o.logger = l }
}

// WithGeometry sets the cell metrics used for layout and hit testing.
func WithGeometry(g layout.Geometry) Option {
	return func(o *sessionOptions) { o.geometry = g }
}

// WithRules replaces the drop rules.
func WithRules(rules []gesture.Rule) Option {
	return func(o *sessionOptions) { o.rules = rules }
}

// WithPlannerOptions configures the planner.
func WithPlannerOptions(opts ...plan.Option) Option {
	return func(o *sessionOptions) { o.planner = append(o.planner, opts...) }
}

// WithPreset selects the preset shown first.
func WithPreset(p Preset) Option {
	return func(o *sessionOptions) { o.preset = p }
}

// New creates a session. Nothing is read until the first Refresh task runs.
func New(reader Reader, tool ops.Tool, revsets Revsets, opts ...Option) *Session {
	o := sessionOptions{geometry: layout.DefaultGeometry()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if revsets.KahvaLog == "" {
		revsets.KahvaLog = revsets.Log
	}

	s := &Session{
		reader:  reader,
		tool:    tool,
		builder: graph.NewBuilder(o.logger),
		engine:  layout.New(o.geometry, o.logger),
		planner: plan.New(append(o.planner, plan.WithLogger(o.logger))...),
		rec:     reconcile.New(graph.Empty(), o.logger),
		logger:  o.logger,
		revsets: revsets,
		preset:  o.preset,
	}
	s.resolver = gesture.NewResolver(o.rules, func(c ops.Candidate) error {
		return s.planner.Check(s.rec.View(), c)
	}, o.logger)
	s.resolver.SetEnabled(s.preset.Editable())
	s.relayout()
	return s
}

// View is the snapshot on screen, optimistic edits included.
func (s *Session) View() *graph.Snapshot { return s.rec.View() }

// Layout is the layout of View.
func (s *Session) Layout() *layout.Result { return s.layout }

// Generation is the generation of the last accepted snapshot.
func (s *Session) Generation() uint64 { return s.generation }

// Preset is the preset on screen.
func (s *Session) Preset() Preset { return s.preset }

// Revset is the revision set of the current preset.
func (s *Session) Revset() string { return s.revsets.of(s.preset) }

// Err is the last error, kept until the next successful refresh.
func (s *Session) Err() error { return s.lastErr }

// ClearErr dismisses the last error.
func (s *Session) ClearErr() { s.lastErr = nil }

// Drift compares the view before and after the last accepted snapshot.
func (s *Session) Drift() *diff.Report { return s.drift }

// Drag is the gesture in progress, if any.
func (s *Session) Drag() *gesture.DragState { return s.resolver.Drag() }

// InFlight lists dispatched operations.
func (s *Session) InFlight() []*ops.Request { return s.rec.InFlight() }

// Loading reports whether a refresh is outstanding.
func (s *Session) Loading() bool { return s.cancel != nil }

// SetWidth relays out for a new surface width.
func (s *Session) SetWidth(w int) {
	s.engine.SetWidth(w)
	s.relayout()
}

// SetSurface bounds the gesture surface and places the trash zone.
func (s *Session) SetSurface(surface, trash layout.Box) {
	s.resolver.SetSurface(surface, trash)
}

// HitTest reports what lies under a cell.
func (s *Session) HitTest(x, y int) gesture.Hit { return s.resolver.HitTest(x, y) }

func (s *Session) relayout() {
	s.layout = s.engine.Layout(s.rec.View(), s.layout)
	if s.resolver.SetLayout(s.layout) {
		s.logger.Debug("drag abandoned: graph changed", "generation", s.layout.Generation)
	}
}

// Close cancels any outstanding query.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
