// Package graph turns raw history records into immutable commit graph
// snapshots and provides the editor used for optimistic changes.
package graph

import (
	"log/slog"
)

// Builder converts history query results into snapshots.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder. A nil logger discards output.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{logger: logger}
}

// Build produces a snapshot for h. Integrity problems never fail the build:
// the offending nodes are degraded and the problems are reported through
// Snapshot.Issues. Identical input yields a structurally identical snapshot.
func (b *Builder) Build(generation uint64, h History) *Snapshot {
	nodes := make([]Node, len(h.Records))
	for i, rec := range h.Records {
		nodes[i] = Node{Record: copyRecord(rec), HasConflict: rec.Conflict}
	}

	s := build(generation, h.OpID, h.Revset, nodes, h.Boundary)
	for _, issue := range s.issues {
		b.logger.Warn("graph integrity", "generation", generation, "error", issue.Error())
	}
	b.logger.Debug("snapshot built", "generation", generation, "commits", len(s.nodes), "edges", len(s.edges))
	return s
}

func build(generation uint64, opID, revset string, nodes []Node, boundary []CommitID) *Snapshot {
	s := &Snapshot{
		generation: generation,
		opID:       opID,
		revset:     revset,
		index:      make(map[CommitID]int, len(nodes)),
		byChange:   make(map[ChangeID]int, len(nodes)),
		parents:    make(map[CommitID][]CommitID),
		children:   make(map[CommitID][]CommitID),
	}

	for _, n := range nodes {
		if _, dup := s.index[n.ID]; dup {
			s.issues = append(s.issues, &IntegrityError{Commit: n.ID, Err: ErrDuplicateCommit})
			continue
		}
		n.External = nil
		n.Unresolved = nil
		s.index[n.ID] = len(s.nodes)
		if n.ChangeID != "" {
			if _, taken := s.byChange[n.ChangeID]; !taken {
				s.byChange[n.ChangeID] = len(s.nodes)
			}
		}
		s.nodes = append(s.nodes, n)
	}

	known := make(map[CommitID]bool, len(boundary))
	for _, id := range boundary {
		if _, inside := s.index[id]; inside {
			continue
		}
		if !known[id] {
			known[id] = true
			s.boundary = append(s.boundary, id)
		}
	}

	direct := make(map[CommitID][]CommitID)
	for i := range s.nodes {
		n := &s.nodes[i]
		for _, p := range n.Parents {
			switch {
			case s.Has(p):
				direct[n.ID] = appendUnique(direct[n.ID], p)
			case known[p]:
				n.External = appendUnique(n.External, p)
			default:
				n.Unresolved = appendUnique(n.Unresolved, p)
				s.issues = append(s.issues, &IntegrityError{Commit: n.ID, Parent: p, Err: ErrDanglingParent})
			}
		}
	}

	for _, back := range findBackEdges(s.nodes, direct) {
		direct[back.Child] = remove(direct[back.Child], back.Parent)
		n := &s.nodes[s.index[back.Child]]
		n.Unresolved = appendUnique(n.Unresolved, back.Parent)
		s.issues = append(s.issues, &IntegrityError{Commit: back.Child, Parent: back.Parent, Err: ErrCycle})
	}

	for _, n := range s.nodes {
		ps := direct[n.ID]
		if len(ps) > 0 {
			s.parents[n.ID] = ps
		}
		for idx, p := range n.Parents {
			switch {
			case contains(ps, p):
				s.edges = append(s.edges, Edge{Parent: p, Child: n.ID, Kind: Direct, Index: idx})
			case contains(n.External, p):
				s.edges = append(s.edges, Edge{Parent: p, Child: n.ID, Kind: External, Index: idx})
			}
		}
		for _, p := range ps {
			s.children[p] = append(s.children[p], n.ID)
		}
	}

	return s
}

// findBackEdges runs an iterative depth-first search over parent edges in
// reader order and returns the edges that close a cycle.
func findBackEdges(nodes []Node, direct map[CommitID][]CommitID) []Edge {
	const (
		white = iota
		gray
		black
	)
	color := make(map[CommitID]int, len(nodes))
	type frame struct {
		id   CommitID
		next int
	}
	var back []Edge

	for _, start := range nodes {
		if color[start.ID] != white {
			continue
		}
		stack := []frame{{id: start.ID}}
		color[start.ID] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			ps := direct[top.id]
			if top.next >= len(ps) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			p := ps[top.next]
			top.next++
			switch color[p] {
			case white:
				color[p] = gray
				stack = append(stack, frame{id: p})
			case gray:
				back = append(back, Edge{Parent: p, Child: top.id, Kind: Direct})
			}
		}
	}
	return back
}

func copyRecord(r Record) Record {
	r.Parents = cloneIDs(r.Parents)
	r.Bookmarks = cloneStrings(r.Bookmarks)
	r.Tags = cloneStrings(r.Tags)
	return r
}

func cloneIDs(ids []CommitID) []CommitID {
	if ids == nil {
		return nil
	}
	out := make([]CommitID, len(ids))
	copy(out, ids)
	return out
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}

func appendUnique(ids []CommitID, id CommitID) []CommitID {
	if contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func contains(ids []CommitID, id CommitID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func remove(ids []CommitID, id CommitID) []CommitID {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
