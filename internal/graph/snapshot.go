package graph

import "errors"

// Snapshot is an immutable view of the commit graph at one generation.
// Nodes are stored in an arena indexed by commit id; relationships are id
// lookups, never pointers.
type Snapshot struct {
	generation  uint64
	opID        string
	revset      string
	provisional bool

	nodes    []Node
	index    map[CommitID]int
	byChange map[ChangeID]int
	parents  map[CommitID][]CommitID
	children map[CommitID][]CommitID
	edges    []Edge
	boundary []CommitID
	issues   []*IntegrityError
}

// Empty returns a snapshot with no commits at generation zero.
func Empty() *Snapshot {
	return build(0, "", "", nil, nil)
}

// Generation is the monotonically increasing counter assigned on acceptance.
func (s *Snapshot) Generation() uint64 { return s.generation }

// OpID is the tool operation the snapshot was read at, if known.
func (s *Snapshot) OpID() string { return s.opID }

// Revset is the expression the snapshot was built from.
func (s *Snapshot) Revset() string { return s.revset }

// Provisional reports whether the snapshot carries optimistic edits.
func (s *Snapshot) Provisional() bool { return s.provisional }

// Len returns the number of nodes.
func (s *Snapshot) Len() int { return len(s.nodes) }

// Nodes returns the nodes in reader order.
func (s *Snapshot) Nodes() []Node {
	out := make([]Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// At returns the node at position i in reader order.
func (s *Snapshot) At(i int) Node {
	return s.nodes[i]
}

// IndexOf returns the reader-order position of id, or -1.
func (s *Snapshot) IndexOf(id CommitID) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// Node looks a commit up by id.
func (s *Snapshot) Node(id CommitID) (Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return Node{}, false
	}
	return s.nodes[i], true
}

// Has reports whether id is part of the snapshot.
func (s *Snapshot) Has(id CommitID) bool {
	_, ok := s.index[id]
	return ok
}

// ByChange looks a commit up by change id.
func (s *Snapshot) ByChange(id ChangeID) (Node, bool) {
	i, ok := s.byChange[id]
	if !ok {
		return Node{}, false
	}
	return s.nodes[i], true
}

// Parents returns the in-snapshot parents of id in parent order.
func (s *Snapshot) Parents(id CommitID) []CommitID {
	return s.parents[id]
}

// PrimaryParent returns the first parent of id when it is in the snapshot.
func (s *Snapshot) PrimaryParent(id CommitID) (CommitID, bool) {
	n, ok := s.Node(id)
	if !ok || len(n.Parents) == 0 {
		return "", false
	}
	first := n.Parents[0]
	for _, p := range s.parents[id] {
		if p == first {
			return first, true
		}
	}
	return "", false
}

// Children returns the in-snapshot children of id in reader order.
func (s *Snapshot) Children(id CommitID) []CommitID {
	return s.children[id]
}

// Edges returns every derived edge, direct and external.
func (s *Snapshot) Edges() []Edge {
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// Heads returns commits without children in the snapshot.
func (s *Snapshot) Heads() []CommitID {
	var heads []CommitID
	for _, n := range s.nodes {
		if len(s.children[n.ID]) == 0 {
			heads = append(heads, n.ID)
		}
	}
	return heads
}

// Issues returns the integrity problems found while building.
func (s *Snapshot) Issues() []*IntegrityError {
	return s.issues
}

// Err joins all integrity problems into one error, or returns nil.
func (s *Snapshot) Err() error {
	if len(s.issues) == 0 {
		return nil
	}
	errs := make([]error, len(s.issues))
	for i, issue := range s.issues {
		errs[i] = issue
	}
	return errors.Join(errs...)
}

// BookmarkTarget returns the commit a local bookmark points at.
func (s *Snapshot) BookmarkTarget(name string) (CommitID, bool) {
	for _, n := range s.nodes {
		for _, b := range n.Bookmarks {
			if b == name {
				return n.ID, true
			}
		}
	}
	return "", false
}

// IsAncestor reports whether anc is a strict ancestor of desc using edges
// inside the snapshot.
func (s *Snapshot) IsAncestor(anc, desc CommitID) bool {
	if anc == desc || !s.Has(anc) || !s.Has(desc) {
		return false
	}
	seen := map[CommitID]bool{desc: true}
	queue := []CommitID{desc}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range s.parents[cur] {
			if p == anc {
				return true
			}
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return false
}

// Descendants returns the strict descendants of id, breadth first.
func (s *Snapshot) Descendants(id CommitID) []CommitID {
	var out []CommitID
	seen := map[CommitID]bool{id: true}
	queue := []CommitID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range s.children[cur] {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
				queue = append(queue, c)
			}
		}
	}
	return out
}
