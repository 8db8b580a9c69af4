// Package diff reports how the visible history changed between two
// snapshots.
package diff

import (
	"fmt"
	"strings"

	"github.com/cj3636/kahva/internal/graph"
	"github.com/pmezard/go-difflib/difflib"
)

// Line is one row of a drift report.
type Line struct {
	Type    LineType
	Content string
	Old     int // Row in the old snapshot, 1-based (0 if not applicable)
	New     int // Row in the new snapshot, 1-based (0 if not applicable)
}

// LineType defines the type of report line
type LineType int

const (
	Equal LineType = iota
	Added
	Removed
)

// Report compares two snapshots row by row.
type Report struct {
	Lines []Line
	From  uint64
	To    uint64

	old, new []string
}

// SnapshotLines describes every commit of s on one line, in snapshot order.
// Only what a user sees in a row is included.
func SnapshotLines(s *graph.Snapshot) []string {
	if s == nil {
		return nil
	}
	lines := make([]string, 0, s.Len())
	for _, n := range s.Nodes() {
		var b strings.Builder
		b.WriteString(n.ChangeID.Short(12))
		for _, bm := range n.Bookmarks {
			b.WriteString(" [" + bm + "]")
		}
		if n.HasConflict {
			b.WriteString(" (conflict)")
		}
		parents := make([]string, len(n.Parents))
		for i, p := range n.Parents {
			if q, ok := s.Node(p); ok {
				parents[i] = q.ChangeID.Short(12)
			} else {
				parents[i] = p.Short(12)
			}
		}
		fmt.Fprintf(&b, " <- %s | %s", strings.Join(parents, ","), firstLine(n.Title()))
		lines = append(lines, b.String())
	}
	return lines
}

// Compare builds the drift report from old to new.
func Compare(old, new *graph.Snapshot) *Report {
	r := Lines(SnapshotLines(old), SnapshotLines(new))
	if old != nil {
		r.From = old.Generation()
	}
	if new != nil {
		r.To = new.Generation()
	}
	return r
}

// Lines compares two slices of rows.
func Lines(old, new []string) *Report {
	r := &Report{old: old, new: new}

	opcodes, err := generateOpCodes(old, new)
	if err != nil {
		r.Lines = simpleDiff(old, new)
		return r
	}

	o, n := 1, 1
	for _, op := range opcodes {
		switch op.Tag {
		case 'e':
			for i := op.I1; i < op.I2; i++ {
				r.Lines = append(r.Lines, Line{Type: Equal, Content: old[i], Old: o, New: n})
				o++
				n++
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				r.Lines = append(r.Lines, Line{Type: Removed, Content: old[i], Old: o})
				o++
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				r.Lines = append(r.Lines, Line{Type: Added, Content: new[j], New: n})
				n++
			}
		case 'r':
			for i := op.I1; i < op.I2; i++ {
				r.Lines = append(r.Lines, Line{Type: Removed, Content: old[i], Old: o})
				o++
			}
			for j := op.J1; j < op.J2; j++ {
				r.Lines = append(r.Lines, Line{Type: Added, Content: new[j], New: n})
				n++
			}
		}
	}
	return r
}

func generateOpCodes(old, new []string) (opcodes []difflib.OpCode, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("matcher failed: %v", r)
		}
	}()

	return difflib.NewMatcher(old, new).GetOpCodes(), nil
}

func simpleDiff(old, new []string) []Line {
	var lines []Line
	for i := 0; i < max(len(old), len(new)); i++ {
		hasOld, hasNew := i < len(old), i < len(new)
		switch {
		case hasOld && hasNew && old[i] == new[i]:
			lines = append(lines, Line{Type: Equal, Content: old[i], Old: i + 1, New: i + 1})
		default:
			if hasOld {
				lines = append(lines, Line{Type: Removed, Content: old[i], Old: i + 1})
			}
			if hasNew {
				lines = append(lines, Line{Type: Added, Content: new[i], New: i + 1})
			}
		}
	}
	return lines
}

// Stats returns line counts by type.
func (r *Report) Stats() (added, removed, unchanged int) {
	for _, line := range r.Lines {
		switch line.Type {
		case Added:
			added++
		case Removed:
			removed++
		case Equal:
			unchanged++
		}
	}
	return
}

// HasChanges returns true if there are any differences
func (r *Report) HasChanges() bool {
	for _, line := range r.Lines {
		if line.Type != Equal {
			return true
		}
	}
	return false
}

// Summary is a one-line description for the status bar.
func (r *Report) Summary() string {
	added, removed, _ := r.Stats()
	if added == 0 && removed == 0 {
		return "no changes"
	}
	return fmt.Sprintf("+%d -%d rows", added, removed)
}

// Unified renders the report as a unified diff with context lines around
// each change.
func (r *Report) Unified(context int) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(r.old),
		B:        withNewlines(r.new),
		FromFile: fmt.Sprintf("generation %d", r.From),
		ToFile:   fmt.Sprintf("generation %d", r.To),
		Context:  context,
	})
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
