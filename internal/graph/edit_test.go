package graph

import (
	"reflect"
	"testing"
)

func TestEditLeavesOriginalUntouched(t *testing.T) {
	h := History{Records: []Record{rec("c", "b"), rec("b", "a"), rec("a")}}
	orig := NewBuilder(nil).Build(4, h)
	pristine := NewBuilder(nil).Build(4, h)

	edited := orig.Edit(func(e *Editor) {
		e.Reparent("c", "a")
		e.SetDescription("b", "changed")
	})

	if !reflect.DeepEqual(orig, pristine) {
		t.Fatal("Edit modified the source snapshot")
	}
	if !edited.Provisional() || orig.Provisional() {
		t.Fatal("only the edited copy should be provisional")
	}
	if edited.Generation() != 4 {
		t.Fatalf("generation = %d, want 4", edited.Generation())
	}
	if got := edited.Parents("c"); !reflect.DeepEqual(got, []CommitID{"a"}) {
		t.Fatalf("Parents(c) = %v", got)
	}
	c, _ := edited.Node("c")
	if !c.Provisional {
		t.Fatal("reparented node should be provisional")
	}
}

func TestEditRemoveReparentsChildren(t *testing.T) {
	a := rec("a")
	b := rec("b", "a")
	b.Bookmarks = []string{"feature"}
	s := NewBuilder(nil).Build(1, History{Records: []Record{rec("d", "b"), rec("c", "b"), b, a}})

	out := s.Edit(func(e *Editor) { e.Remove("b") })

	if out.Has("b") {
		t.Fatal("b should be gone")
	}
	for _, id := range []CommitID{"c", "d"} {
		if got := out.Parents(id); !reflect.DeepEqual(got, []CommitID{"a"}) {
			t.Errorf("Parents(%s) = %v, want [a]", id, got)
		}
	}
	if _, ok := out.BookmarkTarget("feature"); ok {
		t.Error("bookmark on removed commit should be deleted")
	}
	if err := out.Err(); err != nil {
		t.Errorf("unexpected issues: %v", err)
	}
}

func TestEditMoveBookmark(t *testing.T) {
	b := rec("b", "a")
	b.Bookmarks = []string{"main", "dev"}
	s := NewBuilder(nil).Build(1, History{Records: []Record{rec("c", "b"), b, rec("a")}})

	out := s.Edit(func(e *Editor) { e.MoveBookmark("main", "c") })

	if id, _ := out.BookmarkTarget("main"); id != "c" {
		t.Fatalf("main -> %s, want c", id)
	}
	nb, _ := out.Node("b")
	if !reflect.DeepEqual(nb.Bookmarks, []string{"dev"}) {
		t.Fatalf("b bookmarks = %v", nb.Bookmarks)
	}
	ob, _ := s.Node("b")
	if !reflect.DeepEqual(ob.Bookmarks, []string{"main", "dev"}) {
		t.Fatalf("original bookmarks changed: %v", ob.Bookmarks)
	}
}

func TestEditMarkConflictAndMissingIDs(t *testing.T) {
	s := NewBuilder(nil).Build(1, History{Records: []Record{rec("b", "a"), rec("a")}})
	out := s.Edit(func(e *Editor) {
		e.MarkConflict("b")
		e.Reparent("zzz", "a")
		e.Remove("zzz")
	})
	n, _ := out.Node("b")
	if !n.HasConflict {
		t.Fatal("b should be marked conflicted")
	}
	if out.Len() != 2 {
		t.Fatalf("Len() = %d", out.Len())
	}
}
