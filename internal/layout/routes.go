package layout

import "github.com/cj3636/kahva/internal/graph"

// cell is a lane column on one drawn line. Row r owns line 2r, where its node
// sits, and line 2r+1, the connector line below it.
type cell struct {
	lane, line int
}

// router reserves the vertical runs of edges. A run never passes a node and
// shares cells only with runs into the same parent, where the lines join.
type router struct {
	nodes map[Position]bool
	runs  map[cell]graph.CommitID
	lanes int
}

func newRouter(r *Result) *router {
	rt := &router{
		nodes: make(map[Position]bool, len(r.Order)),
		runs:  make(map[cell]graph.CommitID),
		lanes: r.Lanes,
	}
	for _, p := range r.Positions {
		rt.nodes[p] = true
	}
	return rt
}

// fits reports whether a run down lane from the connector line of the child
// row to the connector line above the parent row is clear for parent. When
// the run ends outside the parent's lane it also needs the turn cell above
// the parent.
func (rt *router) fits(lane int, c, p Position, parent graph.CommitID) bool {
	for line := 2*c.Row + 1; line <= 2*p.Row-1; line++ {
		if !rt.clear(cell{lane, line}, parent) {
			return false
		}
	}
	return lane == p.Lane || rt.clear(cell{p.Lane, 2*p.Row - 1}, parent)
}

func (rt *router) clear(at cell, parent graph.CommitID) bool {
	if at.line%2 == 0 && rt.nodes[Position{Lane: at.lane, Row: at.line / 2}] {
		return false
	}
	owner, taken := rt.runs[at]
	return !taken || owner == parent
}

func (rt *router) reserve(lane int, c, p Position, parent graph.CommitID) {
	for line := 2*c.Row + 1; line <= 2*p.Row-1; line++ {
		rt.runs[cell{lane, line}] = parent
	}
	if lane != p.Lane {
		rt.runs[cell{p.Lane, 2*p.Row - 1}] = parent
	}
	rt.lanes = max(rt.lanes, lane+1)
}

// route draws the edge c -> p in its natural lane when that is clear, and
// otherwise gives the vertical run a lane of its own: it leaves the child on
// the connector line, runs down the spare lane and turns into the parent on
// the line above it.
func (rt *router) route(child, parent graph.CommitID, c, p Position, primary bool) Path {
	path := Path{Child: child, Parent: parent}
	lane := p.Lane
	switch {
	case c.Lane == p.Lane:
		path.Kind = Straight
		path.Points = []Position{c, p}
	case primary:
		path.Kind = Fork
		lane = c.Lane
		path.Points = []Position{c, {Lane: c.Lane, Row: p.Row}, p}
	default:
		path.Kind = Merge
		path.Points = []Position{c, {Lane: p.Lane, Row: c.Row}, p}
	}
	if rt.fits(lane, c, p, parent) {
		rt.reserve(lane, c, p, parent)
		return path
	}

	lane = 0
	for lane == c.Lane || lane == p.Lane || !rt.fits(lane, c, p, parent) {
		lane++
	}
	rt.reserve(lane, c, p, parent)
	path.Kind = Merge
	if primary {
		path.Kind = Fork
	}
	path.Points = []Position{c, {Lane: lane, Row: c.Row}, {Lane: lane, Row: p.Row}, p}
	return path
}
