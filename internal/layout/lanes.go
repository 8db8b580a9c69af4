package layout

import (
	"sort"

	"github.com/cj3636/kahva/internal/graph"
)

// chain is a run of commits drawn in one lane, top to bottom. Each commit
// after the first is the primary parent of the one before it.
type chain struct {
	nodes []graph.CommitID
	// lead counts the leading commits that had no lane in the previous result.
	lead int
}

// segment is a run of chain commits waiting for a lane.
type segment struct {
	nodes  []graph.CommitID
	lo, hi int
	// attach is the lane the segment continues when it sits on top of an
	// already placed chain, or -1.
	attach int
}

type assigner struct {
	s     *graph.Snapshot
	order []graph.CommitID
	rows  map[graph.CommitID]int
	prev  *Result

	occ   [][]bool
	lanes map[graph.CommitID]int
}

func newAssigner(s *graph.Snapshot, order []graph.CommitID, rows map[graph.CommitID]int, prev *Result) *assigner {
	return &assigner{
		s:     s,
		order: order,
		rows:  rows,
		prev:  prev,
		lanes: make(map[graph.CommitID]int, len(order)),
	}
}

// prevLane looks up the lane a commit had in the previous result. Change ids
// survive rewrites, so they are preferred over commit ids.
func (a *assigner) prevLane(id graph.CommitID) (int, bool) {
	if a.prev == nil {
		return 0, false
	}
	if n, ok := a.s.Node(id); ok && n.ChangeID != "" {
		l, ok := a.prev.ChangeLanes[n.ChangeID]
		return l, ok
	}
	p, ok := a.prev.Positions[id]
	return p.Lane, ok
}

func (a *assigner) existed(id graph.CommitID) bool {
	_, ok := a.prevLane(id)
	return ok
}

func (a *assigner) assign() map[graph.CommitID]int {
	chains := a.chains(a.heirs())

	var fixed []*chain
	var floating []segment
	for _, c := range chains {
		for c.lead < len(c.nodes) && !a.existed(c.nodes[c.lead]) {
			c.lead++
		}
		if c.lead == len(c.nodes) {
			floating = append(floating, a.segment(c.nodes, -1))
			continue
		}
		fixed = append(fixed, c)
	}

	// Commits that already had a lane keep it when the rows they need, judged
	// by relationships that also existed before, are still free.
	type want struct {
		c      *chain
		lane   int
		lo, hi int
	}
	wants := make([]want, 0, len(fixed))
	for _, c := range fixed {
		core := c.nodes[c.lead:]
		lane, _ := a.prevLane(core[0])
		lo, hi := a.span(core, a.bothExisted)
		wants = append(wants, want{c: c, lane: lane, lo: lo, hi: hi})
	}
	sort.SliceStable(wants, func(i, j int) bool { return wants[i].lo < wants[j].lo })

	var placed []want
	for _, w := range wants {
		if !a.free(w.lane, w.lo, w.hi) {
			floating = append(floating, a.segment(w.c.nodes, -1))
			continue
		}
		a.place(w.c.nodes[w.c.lead:], w.lane, w.lo, w.hi)
		placed = append(placed, w)
		if w.c.lead > 0 {
			floating = append(floating, a.segment(w.c.nodes[:w.c.lead], w.lane))
		}
	}
	// Rows needed only because of new relationships are claimed where free.
	for _, w := range placed {
		lo, hi := a.span(w.c.nodes[w.c.lead:], always)
		a.claim(w.lane, lo, hi)
	}

	sort.SliceStable(floating, func(i, j int) bool {
		if floating[i].lo != floating[j].lo {
			return floating[i].lo < floating[j].lo
		}
		return a.rows[floating[i].nodes[0]] < a.rows[floating[j].nodes[0]]
	})
	for _, seg := range floating {
		lane := -1
		switch {
		case seg.attach >= 0:
			if a.free(seg.attach, seg.lo, seg.hi) {
				lane = seg.attach
			}
		default:
			bottom := seg.nodes[len(seg.nodes)-1]
			if p, ok := a.s.PrimaryParent(bottom); ok {
				if l, done := a.lanes[p]; done && a.free(l, seg.lo, seg.hi) {
					lane = l
				}
			}
		}
		if lane < 0 {
			lane = a.lowestFree(seg.lo, seg.hi)
		}
		a.place(seg.nodes, lane, seg.lo, seg.hi)
	}
	return a.lanes
}

// heirs picks, for every parent, the child that continues the parent's lane.
// A child that already shared the parent's lane keeps it. Otherwise the most
// recently committed candidate wins; when a previous layout exists only new
// children compete, so an existing child is never pulled out of its lane.
func (a *assigner) heirs() map[graph.CommitID]graph.CommitID {
	heir := make(map[graph.CommitID]graph.CommitID)
	for _, p := range a.order {
		var cands []graph.CommitID
		for _, c := range a.s.Children(p) {
			if pp, ok := a.s.PrimaryParent(c); ok && pp == p {
				cands = append(cands, c)
			}
		}
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(i, j int) bool { return a.rows[cands[i]] < a.rows[cands[j]] })
		if h, ok := a.pickHeir(p, cands); ok {
			heir[p] = h
		}
	}
	return heir
}

func (a *assigner) pickHeir(p graph.CommitID, cands []graph.CommitID) (graph.CommitID, bool) {
	pl, ok := a.prevLane(p)
	if !ok {
		return a.newest(cands), true
	}
	var fresh []graph.CommitID
	for _, c := range cands {
		cl, existed := a.prevLane(c)
		if !existed {
			fresh = append(fresh, c)
			continue
		}
		if cl == pl {
			return c, true
		}
	}
	if len(fresh) == 0 {
		return "", false
	}
	return a.newest(fresh), true
}

// newest returns the most recently committed id; cands are sorted by row so
// ties go to the topmost.
func (a *assigner) newest(cands []graph.CommitID) graph.CommitID {
	best := cands[0]
	bn, _ := a.s.Node(best)
	for _, c := range cands[1:] {
		n, _ := a.s.Node(c)
		if n.Committed.After(bn.Committed) {
			best, bn = c, n
		}
	}
	return best
}

func (a *assigner) chains(heir map[graph.CommitID]graph.CommitID) []*chain {
	var out []*chain
	seen := make(map[graph.CommitID]bool, len(a.order))
	for _, id := range a.order {
		if seen[id] {
			continue
		}
		c := &chain{}
		cur := id
		for {
			c.nodes = append(c.nodes, cur)
			seen[cur] = true
			p, ok := a.s.PrimaryParent(cur)
			if !ok || heir[p] != cur {
				break
			}
			cur = p
		}
		out = append(out, c)
	}
	return out
}

func always(graph.CommitID, graph.CommitID) bool { return true }

func (a *assigner) bothExisted(child, parent graph.CommitID) bool {
	return a.existed(child) && a.existed(parent)
}

// span returns the rows nodes occupy in their lane: their own rows, the line
// down to the primary parent of the last one, and the rows above the first
// one that merge edges into it run through. Merges into lower nodes cannot
// use the lane without passing the nodes above them, so they are routed
// elsewhere. keep filters the relationships counted.
func (a *assigner) span(nodes []graph.CommitID, keep func(child, parent graph.CommitID) bool) (int, int) {
	top, bottom := nodes[0], nodes[len(nodes)-1]
	lo, hi := a.rows[top], a.rows[bottom]

	if p, ok := a.s.PrimaryParent(bottom); ok && keep(bottom, p) {
		hi = max(hi, a.rows[p]-1)
	}
	for _, c := range a.s.Children(top) {
		if pp, ok := a.s.PrimaryParent(c); ok && pp == top {
			continue
		}
		if keep(c, top) {
			lo = min(lo, a.rows[c])
		}
	}
	return lo, hi
}

func (a *assigner) segment(nodes []graph.CommitID, attach int) segment {
	lo, hi := a.span(nodes, always)
	return segment{nodes: nodes, lo: lo, hi: hi, attach: attach}
}

func (a *assigner) free(lane, lo, hi int) bool {
	if lane >= len(a.occ) {
		return true
	}
	for r := lo; r <= hi; r++ {
		if a.occ[lane][r] {
			return false
		}
	}
	return true
}

func (a *assigner) lowestFree(lo, hi int) int {
	for l := 0; ; l++ {
		if a.free(l, lo, hi) {
			return l
		}
	}
}

func (a *assigner) grow(lane int) {
	for len(a.occ) <= lane {
		a.occ = append(a.occ, make([]bool, len(a.order)))
	}
}

// claim marks rows lo..hi of lane as taken.
func (a *assigner) claim(lane, lo, hi int) {
	a.grow(lane)
	for r := lo; r <= hi; r++ {
		a.occ[lane][r] = true
	}
}

func (a *assigner) place(nodes []graph.CommitID, lane, lo, hi int) {
	a.claim(lane, lo, hi)
	for _, id := range nodes {
		a.lanes[id] = lane
	}
}
