package graph

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func rec(id string, parents ...string) Record {
	ps := make([]CommitID, len(parents))
	for i, p := range parents {
		ps[i] = CommitID(p)
	}
	return Record{
		ID:          CommitID(id),
		ChangeID:    ChangeID("ch-" + id),
		Parents:     ps,
		Description: "commit " + id,
		Committed:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildEdgesMatchParents(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
	}{
		{
			name:    "linear",
			records: []Record{rec("c", "b"), rec("b", "a"), rec("a")},
		},
		{
			name:    "fork",
			records: []Record{rec("d", "b"), rec("c", "b"), rec("b", "a"), rec("a")},
		},
		{
			name:    "merge",
			records: []Record{rec("m", "b", "c"), rec("c", "a"), rec("b", "a"), rec("a")},
		},
		{
			name:    "two roots",
			records: []Record{rec("y", "x"), rec("b", "a"), rec("x"), rec("a")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewBuilder(nil).Build(1, History{Records: tt.records})
			if err := s.Err(); err != nil {
				t.Fatalf("unexpected integrity error: %v", err)
			}

			want := map[[2]CommitID]bool{}
			for _, r := range tt.records {
				for _, p := range r.Parents {
					want[[2]CommitID{p, r.ID}] = true
				}
			}
			got := map[[2]CommitID]bool{}
			for _, e := range s.Edges() {
				if e.Kind != Direct {
					t.Errorf("edge %v kind = %v, want direct", e, e.Kind)
				}
				got[[2]CommitID{e.Parent, e.Child}] = true
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("edges = %v, want %v", got, want)
			}
		})
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	h := History{
		Revset:   "all()",
		OpID:     "op1",
		Records:  []Record{rec("m", "b", "c"), rec("c", "a"), rec("b", "a", "gone"), rec("a", "outside")},
		Boundary: []CommitID{"outside"},
	}
	first := NewBuilder(nil).Build(3, h)
	second := NewBuilder(nil).Build(3, h)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical input produced different snapshots")
	}

	other := NewBuilder(nil).Build(9, h)
	if other.Generation() != 9 {
		t.Fatalf("generation = %d, want 9", other.Generation())
	}
	if !reflect.DeepEqual(first.Nodes(), other.Nodes()) || !reflect.DeepEqual(first.Edges(), other.Edges()) {
		t.Fatal("generation should be the only difference")
	}
}

func TestBuildDanglingParentDegradesNode(t *testing.T) {
	h := History{
		Records:  []Record{rec("c", "b"), rec("b", "missing"), rec("a", "outside")},
		Boundary: []CommitID{"outside"},
	}
	s := NewBuilder(nil).Build(1, h)

	b, _ := s.Node("b")
	if !b.ParentsUnresolved() {
		t.Fatal("b should be marked as having unresolved parents")
	}
	a, _ := s.Node("a")
	if a.ParentsUnresolved() {
		t.Fatal("a points at a boundary commit and should not be degraded")
	}
	if !reflect.DeepEqual(a.External, []CommitID{"outside"}) {
		t.Fatalf("a.External = %v", a.External)
	}
	c, _ := s.Node("c")
	if c.ParentsUnresolved() {
		t.Fatal("c should be unaffected")
	}

	issues := s.Issues()
	if len(issues) != 1 {
		t.Fatalf("issues = %v, want 1", issues)
	}
	if !errors.Is(issues[0], ErrDanglingParent) || issues[0].Commit != "b" {
		t.Fatalf("unexpected issue %v", issues[0])
	}

	var external int
	for _, e := range s.Edges() {
		if e.Kind == External {
			external++
		}
	}
	if external != 1 {
		t.Fatalf("external edges = %d, want 1", external)
	}
}

func TestBuildBreaksCycles(t *testing.T) {
	h := History{Records: []Record{rec("a", "b"), rec("b", "c"), rec("c", "a")}}
	s := NewBuilder(nil).Build(1, h)

	if !errors.Is(s.Err(), ErrCycle) {
		t.Fatalf("Err() = %v, want cycle", s.Err())
	}
	// a -> b -> c -> a: the edge closing the loop is c -> a.
	c, _ := s.Node("c")
	if !reflect.DeepEqual(c.Unresolved, []CommitID{"a"}) {
		t.Fatalf("c.Unresolved = %v", c.Unresolved)
	}
	if got := s.Parents("c"); len(got) != 0 {
		t.Fatalf("Parents(c) = %v, want none", got)
	}
	if len(s.Edges()) != 2 {
		t.Fatalf("edges = %v, want 2", s.Edges())
	}
}

func TestBuildDuplicateKeepsFirst(t *testing.T) {
	first := rec("a")
	second := rec("a")
	second.Description = "later"
	s := NewBuilder(nil).Build(1, History{Records: []Record{first, second}})
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	n, _ := s.Node("a")
	if n.Description != "commit a" {
		t.Fatalf("kept %q", n.Description)
	}
	if !errors.Is(s.Err(), ErrDuplicateCommit) {
		t.Fatalf("Err() = %v", s.Err())
	}
}

func TestAncestryQueries(t *testing.T) {
	s := NewBuilder(nil).Build(1, History{Records: []Record{
		rec("d", "c"), rec("c", "b"), rec("x", "a"), rec("b", "a"), rec("a"),
	}})

	tests := []struct {
		anc, desc CommitID
		want      bool
	}{
		{"a", "d", true},
		{"b", "d", true},
		{"d", "a", false},
		{"x", "d", false},
		{"a", "a", false},
		{"a", "nope", false},
	}
	for _, tt := range tests {
		if got := s.IsAncestor(tt.anc, tt.desc); got != tt.want {
			t.Errorf("IsAncestor(%s, %s) = %v, want %v", tt.anc, tt.desc, got, tt.want)
		}
	}

	if got := s.Descendants("b"); !reflect.DeepEqual(got, []CommitID{"c", "d"}) {
		t.Errorf("Descendants(b) = %v", got)
	}
	if got := s.Descendants("a"); !reflect.DeepEqual(got, []CommitID{"x", "b", "c", "d"}) {
		t.Errorf("Descendants(a) = %v", got)
	}
	if got := s.Heads(); !reflect.DeepEqual(got, []CommitID{"d", "x"}) {
		t.Errorf("Heads() = %v", got)
	}
	if p, ok := s.PrimaryParent("d"); !ok || p != "c" {
		t.Errorf("PrimaryParent(d) = %v, %v", p, ok)
	}
	if _, ok := s.PrimaryParent("a"); ok {
		t.Error("root should have no primary parent")
	}
}

func TestPrimaryParentOutsideSnapshot(t *testing.T) {
	s := NewBuilder(nil).Build(1, History{
		Records:  []Record{rec("m", "outside", "a"), rec("a")},
		Boundary: []CommitID{"outside"},
	})
	if _, ok := s.PrimaryParent("m"); ok {
		t.Fatal("primary parent is external and should not be reported")
	}
	if got := s.Parents("m"); !reflect.DeepEqual(got, []CommitID{"a"}) {
		t.Fatalf("Parents(m) = %v", got)
	}
}
