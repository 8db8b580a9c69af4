package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/cj3636/kahva/internal/config"
	"github.com/cj3636/kahva/internal/render"
)

// Styles holds all the lipgloss styles
type Styles struct {
	node        lipgloss.Style
	workingCopy lipgloss.Style
	immutable   lipgloss.Style
	conflict    lipgloss.Style
	edge        lipgloss.Style
	changeID    lipgloss.Style
	commitID    lipgloss.Style
	bookmark    lipgloss.Style
	tag         lipgloss.Style
	author      lipgloss.Style
	timestamp   lipgloss.Style
	marker      lipgloss.Style
	pending     lipgloss.Style
	reject      lipgloss.Style
	title       lipgloss.Style
	help        lipgloss.Style
	statusBar   lipgloss.Style
	trash       lipgloss.Style
	trashActive lipgloss.Style

	selectedBg   lipgloss.Color
	dropTargetBg lipgloss.Color
	border       lipgloss.Color
}

// createStyles initializes all lipgloss styles based on theme
func createStyles(theme config.Theme) *Styles {
	return &Styles{
		node:        lipgloss.NewStyle().Foreground(theme.NodeFg),
		workingCopy: lipgloss.NewStyle().Foreground(theme.WorkingCopyFg).Bold(true),
		immutable:   lipgloss.NewStyle().Foreground(theme.ImmutableFg),
		conflict:    lipgloss.NewStyle().Foreground(theme.ConflictFg).Bold(true),
		edge:        lipgloss.NewStyle().Foreground(theme.EdgeFg),
		changeID:    lipgloss.NewStyle().Foreground(theme.ChangeIDFg).Bold(true),
		commitID:    lipgloss.NewStyle().Foreground(theme.CommitIDFg),
		bookmark: lipgloss.NewStyle().
			Foreground(theme.BookmarkFg).
			Background(theme.BookmarkBg),
		tag:       lipgloss.NewStyle().Foreground(theme.TagFg),
		author:    lipgloss.NewStyle().Foreground(theme.AuthorFg),
		timestamp: lipgloss.NewStyle().Foreground(theme.TimestampFg),
		marker:    lipgloss.NewStyle().Foreground(theme.HelpFg),
		pending:   lipgloss.NewStyle().Foreground(theme.PendingFg).Italic(true),
		reject:    lipgloss.NewStyle().Foreground(theme.RejectFg).Bold(true),
		title: lipgloss.NewStyle().
			Foreground(theme.TitleFg).
			Background(theme.TitleBg).
			Bold(true),
		help: lipgloss.NewStyle().
			Foreground(theme.HelpFg).
			Italic(true),
		statusBar: lipgloss.NewStyle().
			Foreground(theme.TitleFg).
			Background(theme.TitleBg),
		trash: lipgloss.NewStyle().
			Foreground(theme.RejectFg).
			Background(theme.TitleBg),
		trashActive: lipgloss.NewStyle().
			Foreground(theme.TitleFg).
			Background(theme.RejectFg).
			Bold(true),

		selectedBg:   theme.SelectedBg,
		dropTargetBg: theme.DropTargetBg,
		border:       theme.BorderFg,
	}
}

// glyph styles a node glyph; everything else in the lane columns is an edge.
func (s *Styles) glyph(r rune) lipgloss.Style {
	switch r {
	case render.GlyphWorkingCopy:
		return s.workingCopy
	case render.GlyphImmutable:
		return s.immutable
	case render.GlyphConflict:
		return s.conflict
	case render.GlyphDefault, render.GlyphElided, render.GlyphMissing:
		return s.node
	}
	return s.edge
}

func (s *Styles) segment(seg render.Segment) lipgloss.Style {
	switch seg.Kind {
	case render.ChangeID:
		return s.changeID
	case render.CommitID:
		return s.commitID
	case render.Bookmark:
		return s.bookmark
	case render.Tag:
		return s.tag
	case render.Author:
		return s.author
	case render.Timestamp:
		return s.timestamp
	case render.Marker:
		switch seg.Text {
		case "(conflict)":
			return s.conflict
		case "(pending)":
			return s.pending
		}
		return s.marker
	}
	return lipgloss.NewStyle()
}
