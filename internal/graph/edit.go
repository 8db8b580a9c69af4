package graph

// Editor applies local changes to a copy of a snapshot. Edits that name
// commits missing from the copy are ignored.
type Editor struct {
	nodes []Node
}

// Edit returns a provisional copy of s with fn applied. s itself is never
// modified. The copy keeps the generation of s.
func (s *Snapshot) Edit(fn func(e *Editor)) *Snapshot {
	e := &Editor{nodes: make([]Node, len(s.nodes))}
	for i, n := range s.nodes {
		n.Record = copyRecord(n.Record)
		e.nodes[i] = n
	}
	fn(e)
	out := build(s.generation, s.opID, s.revset, e.nodes, s.boundary)
	out.provisional = true
	return out
}

func (e *Editor) find(id CommitID) int {
	for i := range e.nodes {
		if e.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// Has reports whether id is still present.
func (e *Editor) Has(id CommitID) bool {
	return e.find(id) >= 0
}

// Node returns the current state of id.
func (e *Editor) Node(id CommitID) (Node, bool) {
	i := e.find(id)
	if i < 0 {
		return Node{}, false
	}
	return e.nodes[i], true
}

// Resolve finds the current commit for a revision: the commit id when it is
// still present, otherwise the commit now carrying the change.
func (e *Editor) Resolve(id CommitID, change ChangeID) (CommitID, bool) {
	if e.find(id) >= 0 {
		return id, true
	}
	if change == "" {
		return "", false
	}
	for i := range e.nodes {
		if e.nodes[i].ChangeID == change {
			return e.nodes[i].ID, true
		}
	}
	return "", false
}

// Reparent replaces the parents of id.
func (e *Editor) Reparent(id CommitID, parents ...CommitID) {
	i := e.find(id)
	if i < 0 {
		return
	}
	e.nodes[i].Parents = cloneIDs(parents)
	e.nodes[i].Provisional = true
}

// Remove drops id from the graph. Its children take over its parents and
// the local bookmarks pointing at it are deleted.
func (e *Editor) Remove(id CommitID) {
	i := e.find(id)
	if i < 0 {
		return
	}
	gone := e.nodes[i]
	e.nodes = append(e.nodes[:i], e.nodes[i+1:]...)

	for j := range e.nodes {
		n := &e.nodes[j]
		if !contains(n.Parents, id) {
			continue
		}
		var next []CommitID
		for _, p := range n.Parents {
			if p != id {
				next = appendUnique(next, p)
				continue
			}
			for _, gp := range gone.Parents {
				next = appendUnique(next, gp)
			}
		}
		n.Parents = next
		n.Provisional = true
	}
}

// MoveBookmark points the local bookmark name at to.
func (e *Editor) MoveBookmark(name string, to CommitID) {
	target := e.find(to)
	if target < 0 {
		return
	}
	for i := range e.nodes {
		n := &e.nodes[i]
		kept := n.Bookmarks[:0:0]
		for _, b := range n.Bookmarks {
			if b != name {
				kept = append(kept, b)
			}
		}
		if len(kept) != len(n.Bookmarks) {
			n.Bookmarks = kept
			n.Provisional = true
		}
	}
	e.nodes[target].Bookmarks = append(e.nodes[target].Bookmarks, name)
	e.nodes[target].Provisional = true
}

// SetDescription replaces the description of id.
func (e *Editor) SetDescription(id CommitID, description string) {
	i := e.find(id)
	if i < 0 {
		return
	}
	e.nodes[i].Description = description
	e.nodes[i].Provisional = true
}

// MarkConflict flags id as conflicted.
func (e *Editor) MarkConflict(id CommitID) {
	if i := e.find(id); i >= 0 {
		e.nodes[i].HasConflict = true
	}
}

// MarkProvisional flags id as carrying an unconfirmed change.
func (e *Editor) MarkProvisional(id CommitID) {
	if i := e.find(id); i >= 0 {
		e.nodes[i].Provisional = true
	}
}
