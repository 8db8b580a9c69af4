// Package render draws a layout result as text: box-drawing lane columns
// followed by row segments the caller styles.
package render

import (
	"strings"

	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/layout"
)

const (
	up = 1 << iota
	down
	left
	right
)

var boxRunes = [16]rune{
	0:                        ' ',
	up:                       '│',
	down:                     '│',
	up | down:                '│',
	left:                     '─',
	right:                    '─',
	left | right:             '─',
	up | left:                '╯',
	up | right:               '╰',
	down | left:              '╮',
	down | right:             '╭',
	up | down | left:         '┤',
	up | down | right:        '├',
	up | left | right:        '┴',
	down | left | right:      '┬',
	up | down | left | right: '┼',
}

// Node glyphs.
const (
	GlyphWorkingCopy = '@'
	GlyphImmutable   = '◆'
	GlyphConflict    = '×'
	GlyphDefault     = '○'
	GlyphElided      = '~'
	GlyphMissing     = '?'
)

// Glyph returns the node marker for n.
func Glyph(n graph.Node) rune {
	switch {
	case n.WorkingCopy:
		return GlyphWorkingCopy
	case n.HasConflict:
		return GlyphConflict
	case n.Immutable:
		return GlyphImmutable
	}
	return GlyphDefault
}

type canvas struct {
	width int
	bits  [][]uint8
	marks map[[2]int]rune
	nodes map[[2]int]rune
}

func newCanvas(width, height int) *canvas {
	c := &canvas{
		width: width,
		bits:  make([][]uint8, height),
		marks: make(map[[2]int]rune),
		nodes: make(map[[2]int]rune),
	}
	for i := range c.bits {
		c.bits[i] = make([]uint8, width)
	}
	return c
}

func (c *canvas) inside(x, y int) bool {
	return y >= 0 && y < len(c.bits) && x >= 0 && x < c.width
}

// line connects two cells sharing a row or a column.
func (c *canvas) line(x1, y1, x2, y2 int) {
	switch {
	case x1 == x2:
		if y1 > y2 {
			y1, y2 = y2, y1
		}
		for y := y1; y < y2; y++ {
			if c.inside(x1, y) && c.inside(x1, y+1) {
				c.bits[y][x1] |= down
				c.bits[y+1][x1] |= up
			}
		}
	case y1 == y2:
		if x1 > x2 {
			x1, x2 = x2, x1
		}
		for x := x1; x < x2; x++ {
			if c.inside(x, y1) && c.inside(x+1, y1) {
				c.bits[y1][x] |= right
				c.bits[y1][x+1] |= left
			}
		}
	}
}

func (c *canvas) polyline(pts ...[2]int) {
	for i := 1; i < len(pts); i++ {
		c.line(pts[i-1][0], pts[i-1][1], pts[i][0], pts[i][1])
	}
}

func (c *canvas) lines() []string {
	out := make([]string, len(c.bits))
	var b strings.Builder
	for y, row := range c.bits {
		b.Reset()
		for x, bits := range row {
			key := [2]int{x, y}
			if r, ok := c.nodes[key]; ok {
				b.WriteRune(r)
				continue
			}
			if r, ok := c.marks[key]; ok && bits == 0 {
				b.WriteRune(r)
				continue
			}
			b.WriteRune(boxRunes[bits])
		}
		out[y] = b.String()
	}
	return out
}

// Graph draws the lane columns of every terminal line of r. Each string is
// r.TextX() cells wide.
func Graph(s *graph.Snapshot, r *layout.Result) []string {
	g := r.Geometry
	width := max(r.TextX(), r.Lanes*g.CellWidth)
	c := newCanvas(width, r.Height())

	at := func(p layout.Position) (int, int) {
		return g.LaneX(p.Lane), p.Row * g.RowHeight
	}
	for _, p := range r.Paths {
		xc, yc := at(p.Points[0])
		switch p.Kind {
		case layout.Elided, layout.Missing:
			mark := GlyphElided
			if p.Kind == layout.Missing {
				mark = GlyphMissing
			}
			c.marks[[2]int{xc, yc + 1}] = mark
			continue
		}
		xp, yp := at(p.Points[len(p.Points)-1])
		if len(p.Points) == 4 {
			// Detour through a spare lane.
			xv, _ := at(p.Points[1])
			c.polyline([2]int{xc, yc}, [2]int{xc, yc + 1}, [2]int{xv, yc + 1},
				[2]int{xv, yp - 1}, [2]int{xp, yp - 1}, [2]int{xp, yp})
			continue
		}
		switch p.Kind {
		case layout.Straight:
			c.polyline([2]int{xc, yc}, [2]int{xp, yp})
		case layout.Fork:
			c.polyline([2]int{xc, yc}, [2]int{xc, yp - 1}, [2]int{xp, yp - 1}, [2]int{xp, yp})
		case layout.Merge:
			c.polyline([2]int{xc, yc}, [2]int{xc, yc + 1}, [2]int{xp, yc + 1}, [2]int{xp, yp})
		}
	}
	for _, id := range r.Order {
		n, _ := s.Node(id)
		x, y := at(r.Positions[id])
		c.nodes[[2]int{x, y}] = Glyph(n)
	}
	return c.lines()
}
