// Package export renders a laid-out graph without the interactive UI.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/layout"
	"github.com/cj3636/kahva/internal/render"
)

// Format represents the desired export format.
type Format string

const (
	// FormatText emits the graph as plain text.
	FormatText Format = "text"
	// FormatMarkdown emits a Markdown code block.
	FormatMarkdown Format = "markdown"
	// FormatANSI emits an ANSI-colored string.
	FormatANSI Format = "ansi"
	// FormatJSON emits the snapshot and its layout.
	FormatJSON Format = "json"
)

// Options control how a graph is exported.
type Options struct {
	// Title will be shown in Markdown and ANSI outputs when provided.
	Title string
	// Now anchors relative timestamps. Zero means time.Now.
	Now time.Time
}

// ParseFormat reads a format name.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(raw) {
	case "", string(FormatText), "txt", "plain":
		return FormatText, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	case string(FormatANSI), "color":
		return FormatANSI, nil
	case string(FormatJSON):
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", raw)
	}
}

// Render returns the graph in the requested format.
func Render(s *graph.Snapshot, r *layout.Result, format Format, opts Options) (string, error) {
	if s == nil || r == nil {
		return "", errors.New("nothing to export")
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	switch format {
	case FormatText:
		return renderText(s, r, opts), nil
	case FormatMarkdown:
		return renderMarkdown(s, r, opts), nil
	case FormatANSI:
		return renderANSI(s, r, opts), nil
	case FormatJSON:
		return renderJSON(s, r)
	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func renderText(s *graph.Snapshot, r *layout.Result, opts Options) string {
	return strings.Join(trimTrailing(render.PlainLines(s, r, opts.Now)), "\n") + "\n"
}

func renderMarkdown(s *graph.Snapshot, r *layout.Result, opts Options) string {
	var b strings.Builder

	if opts.Title != "" {
		b.WriteString("# ")
		b.WriteString(opts.Title)
		b.WriteString("\n\n")
	}

	b.WriteString("```text\n")
	for _, line := range trimTrailing(render.PlainLines(s, r, opts.Now)) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("```\n")
	return b.String()
}

func renderANSI(s *graph.Snapshot, r *layout.Result, opts Options) string {
	var b strings.Builder
	if opts.Title != "" {
		fmt.Fprintf(&b, "%s\n\n", opts.Title)
	}

	rows := render.Rows(s, r, opts.Now)
	for len(rows) > 0 && strings.TrimSpace(rows[len(rows)-1].String()) == "" {
		rows = rows[:len(rows)-1]
	}
	const reset = "\u001b[0m"
	for _, row := range rows {
		b.WriteString("\u001b[90m" + row.Graph + reset)
		for _, seg := range row.Segments {
			if seg.Kind == render.Space {
				b.WriteString(seg.Text)
				continue
			}
			b.WriteString(ansiColor(seg.Kind) + seg.Text + reset)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func ansiColor(k render.SegmentKind) string {
	switch k {
	case render.ChangeID:
		return "\u001b[35m"
	case render.CommitID:
		return "\u001b[34m"
	case render.Bookmark:
		return "\u001b[30;45m"
	case render.Tag:
		return "\u001b[33m"
	case render.Author:
		return "\u001b[33m"
	case render.Timestamp:
		return "\u001b[36m"
	case render.Marker:
		return "\u001b[31m"
	default:
		return "\u001b[37m"
	}
}

type jsonExport struct {
	Generation uint64           `json:"generation"`
	Revset     string           `json:"revset"`
	OpID       string           `json:"op_id,omitempty"`
	Commits    []graph.Node     `json:"commits"`
	Edges      []graph.Edge     `json:"edges"`
	Heads      []graph.CommitID `json:"heads"`
	Issues     []string         `json:"issues,omitempty"`
	Layout     *layout.Result   `json:"layout"`
}

func renderJSON(s *graph.Snapshot, r *layout.Result) (string, error) {
	out := jsonExport{
		Generation: s.Generation(),
		Revset:     s.Revset(),
		OpID:       s.OpID(),
		Commits:    s.Nodes(),
		Edges:      s.Edges(),
		Heads:      s.Heads(),
		Layout:     r,
	}
	for _, issue := range s.Issues() {
		out.Issues = append(out.Issues, issue.Error())
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func trimTrailing(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
