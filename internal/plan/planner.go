// Package plan validates candidate operations against a snapshot and
// compiles them into requests for the executor.
package plan

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/ops"
)

// SquashMode selects which destinations a squash accepts.
type SquashMode int

const (
	// SquashAncestor accepts any ancestor of the source in the view.
	SquashAncestor SquashMode = iota
	// SquashParent accepts only a direct parent of the source.
	SquashParent
)

func (m SquashMode) String() string {
	if m == SquashParent {
		return "parent"
	}
	return "ancestor"
}

// ParseSquashMode reads a configured squash mode. Empty means ancestor.
func ParseSquashMode(s string) (SquashMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ancestor":
		return SquashAncestor, nil
	case "parent":
		return SquashParent, nil
	}
	return SquashAncestor, fmt.Errorf("unknown squash mode %q", s)
}

// Planner validates and compiles candidates. It never mutates anything.
type Planner struct {
	squash    SquashMode
	protected []string
	newID     func() string
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithSquashMode sets the squash semantics.
func WithSquashMode(m SquashMode) Option {
	return func(p *Planner) { p.squash = m }
}

// WithProtectedBookmarks sets glob patterns of bookmarks that may not be
// moved by a drop.
func WithProtectedBookmarks(patterns ...string) Option {
	return func(p *Planner) { p.protected = append(p.protected, patterns...) }
}

// WithIDGenerator replaces the request id source.
func WithIDGenerator(f func() string) Option {
	return func(p *Planner) { p.newID = f }
}

// WithClock replaces the time source.
func WithClock(f func() time.Time) Option {
	return func(p *Planner) { p.now = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// New creates a Planner.
func New(opts ...Option) *Planner {
	p := &Planner{
		newID:  uuid.NewString,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ValidatePatterns reports the first malformed protected pattern.
func ValidatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("invalid bookmark pattern %q", pat)
		}
	}
	return nil
}

// Check validates c against s.
func (p *Planner) Check(s *graph.Snapshot, c ops.Candidate) error {
	_, err := p.touches(s, c)
	return err
}

// Plan validates c and compiles it into a request. Failures are *Rejection.
func (p *Planner) Plan(s *graph.Snapshot, c ops.Candidate) (*ops.Request, error) {
	touched, err := p.touches(s, c)
	if err != nil {
		p.logger.Debug("candidate rejected", "candidate", c.String(), "error", err)
		return nil, err
	}

	req := &ops.Request{
		ID:          p.newID(),
		Kind:        c.Kind,
		Bookmark:    c.Bookmark,
		Description: c.Description,
		Touches:     touched,
		Created:     p.now(),
	}
	if c.Source != "" {
		req.Source = revision(s, c.Source)
	}
	if c.Target != "" {
		req.Target = revision(s, c.Target)
	}
	req.Args = args(req, p.squash)

	p.logger.Debug("request planned", "id", req.ID, "kind", req.Kind.String(), "args", req.ArgString())
	return req, nil
}

// touches validates c and returns the commits it may rewrite or builds on.
func (p *Planner) touches(s *graph.Snapshot, c ops.Candidate) ([]graph.CommitID, error) {
	switch c.Kind {
	case ops.Rebase:
		return p.rebase(s, c)
	case ops.Squash:
		return p.squashInto(s, c)
	case ops.MoveBookmark:
		return p.moveBookmark(s, c)
	case ops.Abandon:
		return p.abandon(s, c)
	case ops.Describe:
		return p.describe(s, c)
	}
	return nil, reject(c.Kind, ErrNoop, "no operation selected")
}

func (p *Planner) rebase(s *graph.Snapshot, c ops.Candidate) ([]graph.CommitID, error) {
	src, dst, err := pair(s, c)
	if err != nil {
		return nil, err
	}
	if err := mutable(c.Kind, src); err != nil {
		return nil, err
	}
	if s.IsAncestor(src.ID, dst.ID) {
		return nil, reject(c.Kind, ErrCycle, "cannot rebase %s onto its descendant %s", short(src), short(dst))
	}
	if len(src.Parents) == 1 && src.Parents[0] == dst.ID {
		return nil, reject(c.Kind, ErrNoop, "%s is already on %s", short(src), short(dst))
	}
	touched := subtree(s, src.ID)
	if err := allMutable(s, c.Kind, touched); err != nil {
		return nil, err
	}
	// The destination is not rewritten but the result depends on it.
	return union(touched, []graph.CommitID{dst.ID}), nil
}

func (p *Planner) squashInto(s *graph.Snapshot, c ops.Candidate) ([]graph.CommitID, error) {
	src, dst, err := pair(s, c)
	if err != nil {
		return nil, err
	}
	if err := mutable(c.Kind, src); err != nil {
		return nil, err
	}
	if err := mutable(c.Kind, dst); err != nil {
		return nil, err
	}
	switch p.squash {
	case SquashParent:
		if !containsID(s.Parents(src.ID), dst.ID) {
			return nil, reject(c.Kind, ErrNotAncestor, "%s is not a parent of %s", short(dst), short(src))
		}
	default:
		if !s.IsAncestor(dst.ID, src.ID) {
			return nil, reject(c.Kind, ErrNotAncestor, "%s is not an ancestor of %s", short(dst), short(src))
		}
	}
	touched := union(subtree(s, src.ID), subtree(s, dst.ID))
	if err := allMutable(s, c.Kind, touched); err != nil {
		return nil, err
	}
	return touched, nil
}

func (p *Planner) moveBookmark(s *graph.Snapshot, c ops.Candidate) ([]graph.CommitID, error) {
	if c.Bookmark == "" {
		return nil, reject(c.Kind, ErrUnknownBookmark, "no bookmark named")
	}
	cur, ok := s.BookmarkTarget(c.Bookmark)
	if !ok {
		return nil, reject(c.Kind, ErrUnknownBookmark, "bookmark %s does not exist", c.Bookmark)
	}
	dst, ok := s.Node(c.Target)
	if !ok {
		return nil, reject(c.Kind, ErrUnknownCommit, "destination %s is not in the view", c.Target.Short(8))
	}
	if cur == dst.ID {
		return nil, reject(c.Kind, ErrNoop, "%s already points at %s", c.Bookmark, short(dst))
	}
	if n, _ := s.Node(cur); n.Immutable {
		return nil, reject(c.Kind, ErrPinnedBookmark, "%s points at immutable commit %s", c.Bookmark, short(n))
	}
	for _, pat := range p.protected {
		if ok, _ := doublestar.Match(pat, c.Bookmark); ok {
			return nil, reject(c.Kind, ErrProtectedBookmark, "%s matches protected pattern %q", c.Bookmark, pat)
		}
	}
	return []graph.CommitID{cur, dst.ID}, nil
}

func (p *Planner) abandon(s *graph.Snapshot, c ops.Candidate) ([]graph.CommitID, error) {
	src, ok := s.Node(c.Source)
	if !ok {
		return nil, reject(c.Kind, ErrUnknownCommit, "%s is not in the view", c.Source.Short(8))
	}
	if err := mutable(c.Kind, src); err != nil {
		return nil, err
	}
	return subtree(s, src.ID), nil
}

func (p *Planner) describe(s *graph.Snapshot, c ops.Candidate) ([]graph.CommitID, error) {
	src, ok := s.Node(c.Source)
	if !ok {
		return nil, reject(c.Kind, ErrUnknownCommit, "%s is not in the view", c.Source.Short(8))
	}
	if err := mutable(c.Kind, src); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Description) == strings.TrimSpace(src.Description) {
		return nil, reject(c.Kind, ErrNoop, "description of %s is unchanged", short(src))
	}
	return subtree(s, src.ID), nil
}

func pair(s *graph.Snapshot, c ops.Candidate) (graph.Node, graph.Node, error) {
	src, ok := s.Node(c.Source)
	if !ok {
		return graph.Node{}, graph.Node{}, reject(c.Kind, ErrUnknownCommit, "%s is not in the view", c.Source.Short(8))
	}
	dst, ok := s.Node(c.Target)
	if !ok {
		return graph.Node{}, graph.Node{}, reject(c.Kind, ErrUnknownCommit, "%s is not in the view", c.Target.Short(8))
	}
	if src.ID == dst.ID {
		return graph.Node{}, graph.Node{}, reject(c.Kind, ErrSameCommit, "%s onto itself", short(src))
	}
	return src, dst, nil
}

func mutable(kind ops.Kind, n graph.Node) error {
	if n.Immutable || n.Root {
		return reject(kind, ErrImmutable, "%s is immutable", short(n))
	}
	return nil
}

func allMutable(s *graph.Snapshot, kind ops.Kind, ids []graph.CommitID) error {
	for _, id := range ids {
		if n, _ := s.Node(id); n.Immutable || n.Root {
			return reject(kind, ErrImmutable, "would rewrite immutable commit %s", short(n))
		}
	}
	return nil
}

// subtree returns id followed by its descendants.
func subtree(s *graph.Snapshot, id graph.CommitID) []graph.CommitID {
	return append([]graph.CommitID{id}, s.Descendants(id)...)
}

func union(a, b []graph.CommitID) []graph.CommitID {
	out := append([]graph.CommitID(nil), a...)
	for _, id := range b {
		if !containsID(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func containsID(ids []graph.CommitID, id graph.CommitID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func revision(s *graph.Snapshot, id graph.CommitID) ops.Revision {
	n, _ := s.Node(id)
	return ops.Revision{Commit: id, Change: n.ChangeID}
}

func short(n graph.Node) string {
	if n.ChangeID != "" {
		return n.ChangeID.Short(8)
	}
	return n.ID.Short(8)
}

func args(req *ops.Request, mode SquashMode) map[string]string {
	switch req.Kind {
	case ops.Rebase:
		return map[string]string{"source": req.Source.Ref(), "destination": req.Target.Ref()}
	case ops.Squash:
		return map[string]string{"from": req.Source.Ref(), "into": req.Target.Ref(), "mode": mode.String()}
	case ops.MoveBookmark:
		return map[string]string{"bookmark": req.Bookmark, "to": req.Target.Ref()}
	case ops.Abandon:
		return map[string]string{"revision": req.Source.Ref()}
	case ops.Describe:
		return map[string]string{"revision": req.Source.Ref(), "message": req.Description}
	}
	return nil
}
