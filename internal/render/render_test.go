package render

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/layout"
)

func rec(id string, parents ...string) graph.Record {
	ps := make([]graph.CommitID, len(parents))
	for i, p := range parents {
		ps[i] = graph.CommitID(p)
	}
	return graph.Record{ID: graph.CommitID(id), ChangeID: graph.ChangeID("z" + id), Parents: ps}
}

func build(recs ...graph.Record) (*graph.Snapshot, *layout.Result) {
	s := graph.NewBuilder(nil).Build(1, graph.History{Records: recs})
	return s, layout.New(layout.DefaultGeometry(), nil).Layout(s, nil)
}

func TestGraphDrawsMergeAndFork(t *testing.T) {
	m := rec("m", "b", "c")
	b := rec("b", "a")
	b.Committed = time.Unix(200, 0)
	c := rec("c", "a")
	c.Committed = time.Unix(100, 0)
	s, r := build(m, b, c, rec("a"))

	want := []string{
		"○   ",
		"├─╮ ",
		"○ │ ",
		"│ │ ",
		"│ ○ ",
		"├─╯ ",
		"○   ",
		"    ",
	}
	if got := Graph(s, r); !reflect.DeepEqual(got, want) {
		t.Fatalf("Graph() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestGraphRoutesMergeAroundChain(t *testing.T) {
	s, r := build(rec("m", "x", "b"), rec("x", "a"), rec("d", "c"), rec("c", "b"), rec("b", "a"), rec("a"))

	want := []string{
		"○     ",
		"├───╮ ",
		"○   │ ",
		"│   │ ",
		"│ ○ │ ",
		"│ │ │ ",
		"│ ○ │ ",
		"│ ├─╯ ",
		"│ ○   ",
		"├─╯   ",
		"○     ",
		"      ",
	}
	if got := Graph(s, r); !reflect.DeepEqual(got, want) {
		t.Fatalf("Graph() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestGraphMarksElidedParents(t *testing.T) {
	s := graph.NewBuilder(nil).Build(1, graph.History{
		Records:  []graph.Record{rec("b", "a"), rec("a", "outside")},
		Boundary: []graph.CommitID{"outside"},
	})
	r := layout.New(layout.DefaultGeometry(), nil).Layout(s, nil)
	got := Graph(s, r)
	if got[3] != "~ " {
		t.Fatalf("line 3 = %q, want elision marker", got[3])
	}
}

func TestGlyph(t *testing.T) {
	tests := []struct {
		name string
		node graph.Node
		want rune
	}{
		{"plain", graph.Node{}, GlyphDefault},
		{"working copy wins", graph.Node{Record: graph.Record{WorkingCopy: true, Immutable: true}}, GlyphWorkingCopy},
		{"immutable", graph.Node{Record: graph.Record{Immutable: true}}, GlyphImmutable},
		{"conflict", graph.Node{HasConflict: true, Record: graph.Record{Immutable: true}}, GlyphConflict},
	}
	for _, tt := range tests {
		if got := Glyph(tt.node); got != tt.want {
			t.Errorf("%s: Glyph() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRowsAlignWithLabelBoxes(t *testing.T) {
	a := rec("a")
	a.Bookmarks = []string{"main", "dev"}
	a.Description = "initial\nbody"
	s, r := build(rec("b", "a"), a)

	rows := Rows(s, r, time.Now())
	line := rows[2]
	if !line.NodeLine || line.Commit != "a" {
		t.Fatalf("row 2 = %+v", line)
	}

	full := []rune(line.Graph + line.Text())
	for _, l := range r.Labels {
		got := string(full[l.X : l.X+l.W])
		if strings.TrimSpace(got) != l.Bookmark {
			t.Errorf("label box %+v covers %q", l.Box, got)
		}
	}

	if got, want := line.String(), "○ za       [main] [dev] initial"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDetailLineShowsCommitAndTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := rec("abcdef0123456789")
	a.Author = graph.Signature{Name: "Ada", Email: "ada@example.com"}
	a.Committed = now.Add(-3 * time.Hour)
	s, r := build(a)

	rows := Rows(s, r, now)
	if got, want := rows[1].Text(), "abcdef012345 ada@example.com 3 hours ago"; got != want {
		t.Fatalf("detail = %q, want %q", got, want)
	}
}

func TestMarkers(t *testing.T) {
	n := graph.Node{HasConflict: true, Provisional: true, Unresolved: []graph.CommitID{"x"}}
	want := []string{"(conflict)", "(parents unresolved)", "(pending)"}
	if got := markers(n); !reflect.DeepEqual(got, want) {
		t.Fatalf("markers = %v", got)
	}
}
