package layout

import (
	"github.com/mattn/go-runewidth"

	"github.com/cj3636/kahva/internal/graph"
)

// Geometry holds the cell metrics of a rendered row. A row starts with the
// lane columns, then the change id, then one label per bookmark.
type Geometry struct {
	// CellWidth is the number of columns per lane.
	CellWidth int `json:"cell_width" yaml:"cell_width"`
	// RowHeight is the number of lines per commit: the node line plus
	// connector lines below it.
	RowHeight int `json:"row_height" yaml:"row_height"`
	// ChangeIDWidth is the number of change id characters shown.
	ChangeIDWidth int `json:"change_id_width" yaml:"change_id_width"`
	// LabelPadding is the blank space on each side of a bookmark name.
	LabelPadding int `json:"label_padding" yaml:"label_padding"`
	// Width is the surface width. Zero means node boxes end after the labels.
	Width int `json:"width" yaml:"-"`
}

// DefaultGeometry returns the metrics used by the terminal UI.
func DefaultGeometry() Geometry {
	return Geometry{CellWidth: 2, RowHeight: 2, ChangeIDWidth: 8, LabelPadding: 1}
}

func (g Geometry) normalized() Geometry {
	d := DefaultGeometry()
	if g.CellWidth < 1 {
		g.CellWidth = d.CellWidth
	}
	if g.RowHeight < 2 {
		g.RowHeight = d.RowHeight
	}
	if g.ChangeIDWidth < 1 {
		g.ChangeIDWidth = d.ChangeIDWidth
	}
	if g.LabelPadding < 0 {
		g.LabelPadding = 0
	}
	return g
}

func (g Geometry) textX(lanes int) int {
	if lanes == 0 {
		return 0
	}
	return (lanes-1)*g.CellWidth + 2
}

// LaneX is the column of a lane.
func (g Geometry) LaneX(lane int) int {
	return lane * g.CellWidth
}

// LabelWidth is the width of the label box for a bookmark name.
func (g Geometry) LabelWidth(name string) int {
	return runewidth.StringWidth(name) + 2*g.LabelPadding
}

func boxes(s *graph.Snapshot, r *Result) ([]NodeBox, []LabelBox) {
	g := r.Geometry
	textX := g.textX(r.Lanes)
	nodes := make([]NodeBox, 0, len(r.Order))
	var labels []LabelBox

	for row, id := range r.Order {
		n, _ := s.Node(id)
		y := row * g.RowHeight
		end := textX + g.ChangeIDWidth
		x := end + 1
		for _, b := range n.Bookmarks {
			w := g.LabelWidth(b)
			labels = append(labels, LabelBox{
				Box:      Box{X: x, Y: y, W: w, H: 1},
				Commit:   id,
				Bookmark: b,
			})
			end = x + w
			x = end + 1
		}

		x0 := g.LaneX(r.Positions[id].Lane)
		right := end
		if g.Width > right {
			right = g.Width
		}
		nodes = append(nodes, NodeBox{
			Box:    Box{X: x0, Y: y, W: max(right-x0, 1), H: g.RowHeight},
			Commit: id,
		})
	}
	return nodes, labels
}

// HitNode returns the commit whose row box contains (x, y).
func (r *Result) HitNode(x, y int) (graph.CommitID, bool) {
	if r.Geometry.RowHeight <= 0 || y < 0 {
		return "", false
	}
	row := y / r.Geometry.RowHeight
	if row >= len(r.Nodes) {
		return "", false
	}
	if b := r.Nodes[row]; b.Contains(x, y) {
		return b.Commit, true
	}
	return "", false
}

// HitLabel returns the bookmark label containing (x, y).
func (r *Result) HitLabel(x, y int) (LabelBox, bool) {
	for _, l := range r.Labels {
		if l.Contains(x, y) {
			return l, true
		}
	}
	return LabelBox{}, false
}
