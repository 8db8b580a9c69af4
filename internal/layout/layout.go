// Package layout assigns rows and lanes to the commits of a snapshot and
// derives edge paths and hit boxes from them.
//
// Rows follow a topological order with descendants above ancestors. Lanes are
// assigned to chains: a chain is a commit followed by its primary parent, that
// parent's primary parent, and so on, for as long as each commit is the heir
// of its parent. When a previous result is supplied, chains keep the lane
// their commits had before (looked up by change id) unless that lane is no
// longer free.
package layout

import (
	"log/slog"

	"github.com/cj3636/kahva/internal/graph"
)

// Position is the grid coordinate of a commit.
type Position struct {
	Lane int `json:"lane"`
	Row  int `json:"row"`
}

// PathKind classifies how an edge is drawn.
type PathKind int

const (
	// Straight edges stay in one lane.
	Straight PathKind = iota
	// Fork edges run down the child's lane and turn into the parent's lane
	// just above the parent.
	Fork
	// Merge edges turn into the parent's lane just below the child and run
	// down to the parent.
	Merge
	// Elided edges point at a parent outside the revision set.
	Elided
	// Missing edges point at a parent that could not be resolved.
	Missing
)

func (k PathKind) String() string {
	switch k {
	case Straight:
		return "straight"
	case Fork:
		return "fork"
	case Merge:
		return "merge"
	case Elided:
		return "elided"
	case Missing:
		return "missing"
	}
	return "unknown"
}

// Path is the rendered route of one edge. Points are grid coordinates from
// the child to the parent; Elided and Missing paths carry only the child.
// A Fork or Merge whose natural lane would pass another node runs down a
// spare lane instead and has four points: the child, the spare lane at the
// child's row, the spare lane at the parent's row, and the parent.
type Path struct {
	Child  graph.CommitID `json:"child"`
	Parent graph.CommitID `json:"parent"`
	Kind   PathKind       `json:"kind"`
	Points []Position     `json:"points"`
}

// Box is a rectangle in terminal cells.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Contains reports whether the cell (x, y) lies inside the box.
func (b Box) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.W && y >= b.Y && y < b.Y+b.H
}

// NodeBox is the hit area of a commit row.
type NodeBox struct {
	Box
	Commit graph.CommitID `json:"commit"`
}

// LabelBox is the hit area of a bookmark label.
type LabelBox struct {
	Box
	Commit   graph.CommitID `json:"commit"`
	Bookmark string         `json:"bookmark"`
}

// Result is the layout of one snapshot.
type Result struct {
	Generation  uint64                      `json:"generation"`
	Lanes       int                         `json:"lanes"`
	Rows        int                         `json:"rows"`
	Order       []graph.CommitID            `json:"order"`
	Positions   map[graph.CommitID]Position `json:"positions"`
	ChangeLanes map[graph.ChangeID]int      `json:"change_lanes"`
	Paths       []Path                      `json:"paths"`
	Nodes       []NodeBox                   `json:"nodes"`
	Labels      []LabelBox                  `json:"labels"`
	Geometry    Geometry                    `json:"geometry"`
}

// Lane returns the lane of id, or -1.
func (r *Result) Lane(id graph.CommitID) int {
	if p, ok := r.Positions[id]; ok {
		return p.Lane
	}
	return -1
}

// Row returns the row of id, or -1.
func (r *Result) Row(id graph.CommitID) int {
	if p, ok := r.Positions[id]; ok {
		return p.Row
	}
	return -1
}

// TextX is the first column after the graph lanes.
func (r *Result) TextX() int {
	return r.Geometry.textX(r.Lanes)
}

// Height is the number of terminal lines the layout occupies.
func (r *Result) Height() int {
	return r.Rows * r.Geometry.RowHeight
}

// Engine computes layouts.
type Engine struct {
	geometry Geometry
	logger   *slog.Logger
}

// New creates an Engine. A nil logger discards output.
func New(g Geometry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{geometry: g.normalized(), logger: logger}
}

// Geometry returns the cell metrics used for boxes.
func (e *Engine) Geometry() Geometry {
	return e.geometry
}

// SetWidth updates the surface width used to size node boxes.
func (e *Engine) SetWidth(w int) {
	e.geometry.Width = w
}

// Layout lays s out. prev is the result for the previous snapshot, or nil on
// the first run. The result depends only on s, prev and the geometry.
func (e *Engine) Layout(s *graph.Snapshot, prev *Result) *Result {
	order := topoOrder(s)
	rows := make(map[graph.CommitID]int, len(order))
	for i, id := range order {
		rows[id] = i
	}

	a := newAssigner(s, order, rows, prev)
	lanes := a.assign()

	res := &Result{
		Generation:  s.Generation(),
		Rows:        len(order),
		Order:       order,
		Positions:   make(map[graph.CommitID]Position, len(order)),
		ChangeLanes: make(map[graph.ChangeID]int, len(order)),
		Geometry:    e.geometry,
	}
	for _, id := range order {
		l := lanes[id]
		res.Positions[id] = Position{Lane: l, Row: rows[id]}
		if l+1 > res.Lanes {
			res.Lanes = l + 1
		}
		if n, ok := s.Node(id); ok && n.ChangeID != "" {
			res.ChangeLanes[n.ChangeID] = l
		}
	}
	res.Paths = paths(s, res)
	res.Nodes, res.Labels = boxes(s, res)

	e.logger.Debug("layout computed",
		"generation", res.Generation,
		"rows", res.Rows,
		"lanes", res.Lanes,
		"incremental", prev != nil)
	return res
}

// paths routes every edge. Edges to primary parents are routed first so
// chains keep their lanes; merge edges then take their parent's lane where it
// is clear and a spare lane where it is not.
func paths(s *graph.Snapshot, r *Result) []Path {
	byChild := make(map[graph.CommitID][]graph.Edge)
	for _, e := range s.Edges() {
		byChild[e.Child] = append(byChild[e.Child], e)
	}

	rt := newRouter(r)
	routed := make(map[graph.Edge]Path)
	for _, primary := range []bool{true, false} {
		for _, id := range r.Order {
			for _, e := range byChild[id] {
				if e.Kind == graph.External || (e.Index == 0) != primary {
					continue
				}
				routed[e] = rt.route(id, e.Parent, r.Positions[id], r.Positions[e.Parent], primary)
			}
		}
	}
	r.Lanes = max(r.Lanes, rt.lanes)

	var out []Path
	for _, id := range r.Order {
		n, _ := s.Node(id)
		c := r.Positions[id]
		for _, e := range byChild[id] {
			if e.Kind == graph.External {
				out = append(out, Path{Child: id, Parent: e.Parent, Kind: Elided, Points: []Position{c}})
				continue
			}
			out = append(out, routed[e])
		}
		for _, u := range n.Unresolved {
			out = append(out, Path{Child: id, Parent: u, Kind: Missing, Points: []Position{c}})
		}
	}
	return out
}
