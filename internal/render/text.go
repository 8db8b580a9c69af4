package render

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/layout"
)

// SegmentKind tells the caller how to style a segment.
type SegmentKind int

const (
	Space SegmentKind = iota
	ChangeID
	CommitID
	Bookmark
	Tag
	Title
	Author
	Timestamp
	Marker
)

// Segment is a run of row text.
type Segment struct {
	Kind SegmentKind
	Text string
	// Name is the bookmark name for Bookmark segments.
	Name string
}

// Row is one terminal line: lane columns plus text segments. Commit is set on
// every line that belongs to a commit row.
type Row struct {
	Graph    string
	Segments []Segment
	Commit   graph.CommitID
	NodeLine bool
}

// Text returns the segments as plain text.
func (r Row) Text() string {
	var b strings.Builder
	for _, s := range r.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// String returns the full line with bookmark labels bracketed.
func (r Row) String() string {
	var b strings.Builder
	b.WriteString(r.Graph)
	for _, s := range r.Segments {
		if s.Kind == Bookmark && len(s.Text) >= 2 && s.Text[0] == ' ' && s.Text[len(s.Text)-1] == ' ' {
			b.WriteString("[" + s.Text[1:len(s.Text)-1] + "]")
			continue
		}
		b.WriteString(s.Text)
	}
	return strings.TrimRight(b.String(), " ")
}

// Rows renders every line of r. now anchors relative timestamps.
func Rows(s *graph.Snapshot, r *layout.Result, now time.Time) []Row {
	lanes := Graph(s, r)
	g := r.Geometry
	out := make([]Row, len(lanes))
	for y, line := range lanes {
		out[y] = Row{Graph: line}
		row := y / g.RowHeight
		if row >= len(r.Order) {
			continue
		}
		id := r.Order[row]
		n, _ := s.Node(id)
		out[y].Commit = id
		switch y % g.RowHeight {
		case 0:
			out[y].NodeLine = true
			out[y].Segments = nodeSegments(n, g)
		case 1:
			out[y].Segments = detailSegments(n, now)
		}
	}
	return out
}

// PlainLines renders r as plain text lines.
func PlainLines(s *graph.Snapshot, r *layout.Result, now time.Time) []string {
	rows := Rows(s, r, now)
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.String()
	}
	return out
}

// nodeSegments lays the node line out exactly as layout.boxes measures it:
// the change id, then every bookmark label separated by one space.
func nodeSegments(n graph.Node, g layout.Geometry) []Segment {
	segs := []Segment{{Kind: ChangeID, Text: fit(string(n.ChangeID), g.ChangeIDWidth)}}
	pad := strings.Repeat(" ", g.LabelPadding)
	for _, b := range n.Bookmarks {
		segs = append(segs,
			Segment{Kind: Space, Text: " "},
			Segment{Kind: Bookmark, Text: pad + b + pad, Name: b})
	}
	for _, t := range n.Tags {
		segs = append(segs, Segment{Kind: Space, Text: " "}, Segment{Kind: Tag, Text: t})
	}
	segs = append(segs, Segment{Kind: Space, Text: " "}, Segment{Kind: Title, Text: firstLine(n.Title())})
	for _, m := range markers(n) {
		segs = append(segs, Segment{Kind: Space, Text: " "}, Segment{Kind: Marker, Text: m})
	}
	return segs
}

func detailSegments(n graph.Node, now time.Time) []Segment {
	segs := []Segment{{Kind: CommitID, Text: n.ID.Short(12)}}
	if who := n.Author.Email; who != "" {
		segs = append(segs, Segment{Kind: Space, Text: " "}, Segment{Kind: Author, Text: who})
	} else if n.Author.Name != "" {
		segs = append(segs, Segment{Kind: Space, Text: " "}, Segment{Kind: Author, Text: n.Author.Name})
	}
	if !n.Committed.IsZero() {
		segs = append(segs, Segment{Kind: Space, Text: " "},
			Segment{Kind: Timestamp, Text: humanize.RelTime(n.Committed, now, "ago", "from now")})
	}
	return segs
}

func markers(n graph.Node) []string {
	var out []string
	if n.HasConflict {
		out = append(out, "(conflict)")
	}
	if n.Empty {
		out = append(out, "(empty)")
	}
	if n.ParentsUnresolved() {
		out = append(out, "(parents unresolved)")
	}
	if n.Provisional {
		out = append(out, "(pending)")
	}
	return out
}

// fit truncates or right-pads s to exactly w cells.
func fit(s string, w int) string {
	if runewidth.StringWidth(s) > w {
		s = runewidth.Truncate(s, w, "")
	}
	return runewidth.FillRight(s, w)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
