package config

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/cj3636/kahva/internal/layout"
)

// Config holds the application configuration
type Config struct {
	Theme              Theme
	ThemePreset        ThemePreset
	HighContrast       bool
	Keybindings        Keybindings
	DropRules          []DropRule
	Squash             string
	ProtectedBookmarks []string
	Geometry           layout.Geometry
	LogFile            string
	JJPath             string
}

// ThemePreset describes a named theme configuration.
type ThemePreset string

const (
	PresetDefault  ThemePreset = "default"
	PresetSolarize ThemePreset = "solarized"
	PresetDracula  ThemePreset = "dracula"
)

// Keybindings maps semantic actions to one or more key sequences.
type Keybindings map[string][]string

// DropRule is the configured form of a gesture rule. Rules are tried in
// order and the first match decides the operation.
type DropRule struct {
	Source    string   `yaml:"source"`
	Target    string   `yaml:"target"`
	Modifiers []string `yaml:"modifiers,omitempty"`
	Kind      string   `yaml:"kind"`
}

// Theme defines the color scheme for the application
type Theme struct {
	NodeFg        lipgloss.Color
	WorkingCopyFg lipgloss.Color
	ImmutableFg   lipgloss.Color
	ConflictFg    lipgloss.Color
	EdgeFg        lipgloss.Color
	ChangeIDFg    lipgloss.Color
	CommitIDFg    lipgloss.Color
	BookmarkFg    lipgloss.Color
	BookmarkBg    lipgloss.Color
	TagFg         lipgloss.Color
	AuthorFg      lipgloss.Color
	TimestampFg   lipgloss.Color
	SelectedBg    lipgloss.Color
	DropTargetBg  lipgloss.Color
	RejectFg      lipgloss.Color
	PendingFg     lipgloss.Color
	BorderFg      lipgloss.Color
	TitleFg       lipgloss.Color
	TitleBg       lipgloss.Color
	HelpFg        lipgloss.Color
}

// Squash semantics accepted by the planner.
const (
	SquashAncestor = "ancestor"
	SquashParent   = "parent"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ThemePreset:  PresetDefault,
		Theme:        ThemeForPreset(PresetDefault, false),
		HighContrast: false,
		Keybindings:  DefaultKeybindings(),
		DropRules:    DefaultDropRules(),
		Squash:       SquashAncestor,
		Geometry:     layout.DefaultGeometry(),
	}
}

// DefaultTheme returns the default color theme
func DefaultTheme() Theme {
	return Theme{
		NodeFg:        lipgloss.Color("#B0B0B0"),
		WorkingCopyFg: lipgloss.Color("#A8E6A3"),
		ImmutableFg:   lipgloss.Color("#5FAFFF"),
		ConflictFg:    lipgloss.Color("#E6A3A3"),
		EdgeFg:        lipgloss.Color("#666666"),
		ChangeIDFg:    lipgloss.Color("#D787D7"),
		CommitIDFg:    lipgloss.Color("#5F87AF"),
		BookmarkFg:    lipgloss.Color("#FFFFFF"),
		BookmarkBg:    lipgloss.Color("#5F5FAF"),
		TagFg:         lipgloss.Color("#D7AF5F"),
		AuthorFg:      lipgloss.Color("#D7D787"),
		TimestampFg:   lipgloss.Color("#5FAFAF"),
		SelectedBg:    lipgloss.Color("#2D2D4A"),
		DropTargetBg:  lipgloss.Color("#2D4A2B"),
		RejectFg:      lipgloss.Color("#FF5F5F"),
		PendingFg:     lipgloss.Color("#888888"),
		BorderFg:      lipgloss.Color("#3A3A3A"),
		TitleFg:       lipgloss.Color("#FFFFFF"),
		TitleBg:       lipgloss.Color("#5F5FAF"),
		HelpFg:        lipgloss.Color("#888888"),
	}
}

// ThemeForPreset resolves a preset name to a concrete Theme, optionally
// applying a high-contrast variation.
func ThemeForPreset(preset ThemePreset, highContrast bool) Theme {
	switch preset {
	case PresetSolarize:
		return applyContrast(Theme{
			NodeFg:        lipgloss.Color("#93A1A1"),
			WorkingCopyFg: lipgloss.Color("#859900"),
			ImmutableFg:   lipgloss.Color("#268BD2"),
			ConflictFg:    lipgloss.Color("#DC322F"),
			EdgeFg:        lipgloss.Color("#586E75"),
			ChangeIDFg:    lipgloss.Color("#D33682"),
			CommitIDFg:    lipgloss.Color("#2AA198"),
			BookmarkFg:    lipgloss.Color("#EEE8D5"),
			BookmarkBg:    lipgloss.Color("#586E75"),
			TagFg:         lipgloss.Color("#B58900"),
			AuthorFg:      lipgloss.Color("#B58900"),
			TimestampFg:   lipgloss.Color("#2AA198"),
			SelectedBg:    lipgloss.Color("#073642"),
			DropTargetBg:  lipgloss.Color("#1E3A1E"),
			RejectFg:      lipgloss.Color("#CB4B16"),
			PendingFg:     lipgloss.Color("#657B83"),
			BorderFg:      lipgloss.Color("#657B83"),
			TitleFg:       lipgloss.Color("#EEE8D5"),
			TitleBg:       lipgloss.Color("#586E75"),
			HelpFg:        lipgloss.Color("#93A1A1"),
		}, highContrast)
	case PresetDracula:
		return applyContrast(Theme{
			NodeFg:        lipgloss.Color("#F8F8F2"),
			WorkingCopyFg: lipgloss.Color("#50FA7B"),
			ImmutableFg:   lipgloss.Color("#8BE9FD"),
			ConflictFg:    lipgloss.Color("#FF5555"),
			EdgeFg:        lipgloss.Color("#6272A4"),
			ChangeIDFg:    lipgloss.Color("#FF79C6"),
			CommitIDFg:    lipgloss.Color("#8BE9FD"),
			BookmarkFg:    lipgloss.Color("#F8F8F2"),
			BookmarkBg:    lipgloss.Color("#6272A4"),
			TagFg:         lipgloss.Color("#FFB86C"),
			AuthorFg:      lipgloss.Color("#F1FA8C"),
			TimestampFg:   lipgloss.Color("#8BE9FD"),
			SelectedBg:    lipgloss.Color("#44475A"),
			DropTargetBg:  lipgloss.Color("#244443"),
			RejectFg:      lipgloss.Color("#FF5555"),
			PendingFg:     lipgloss.Color("#6272A4"),
			BorderFg:      lipgloss.Color("#44475A"),
			TitleFg:       lipgloss.Color("#F8F8F2"),
			TitleBg:       lipgloss.Color("#6272A4"),
			HelpFg:        lipgloss.Color("#BD93F9"),
		}, highContrast)
	default:
		return applyContrast(DefaultTheme(), highContrast)
	}
}

// DefaultKeybindings returns the built-in keybinding map.
func DefaultKeybindings() Keybindings {
	return Keybindings{
		"quit":          {"ctrl+c", "q"},
		"toggle_help":   {"?", "h"},
		"refresh":       {"r", "f5"},
		"toggle_preset": {"R"},
		"scroll_down":   {"j", "down"},
		"scroll_up":     {"k", "up"},
		"page_down":     {"d", "pgdown"},
		"page_up":       {"u", "pgup"},
		"go_top":        {"g", "home"},
		"go_bottom":     {"G", "end"},
		"describe":      {"e"},
		"abandon":       {"a"},
		"yank_change":   {"y"},
		"yank_commit":   {"Y"},
		"cancel_drag":   {"esc"},
	}
}

// MergeKeybindings overlays user overrides onto defaults.
func MergeKeybindings(overrides Keybindings) Keybindings {
	defaults := DefaultKeybindings()
	for action, keys := range overrides {
		if len(keys) == 0 {
			continue
		}
		defaults[action] = keys
	}
	return defaults
}

// DefaultDropRules returns the built-in gesture precedence.
func DefaultDropRules() []DropRule {
	return []DropRule{
		{Source: "commit", Target: "bookmark", Kind: "move-bookmark"},
		{Source: "commit", Target: "commit", Modifiers: []string{"alt"}, Kind: "squash"},
		{Source: "commit", Target: "commit", Kind: "rebase"},
		{Source: "commit", Target: "trash", Kind: "abandon"},
		{Source: "bookmark", Target: "commit", Kind: "move-bookmark"},
	}
}

func applyContrast(theme Theme, highContrast bool) Theme {
	if !highContrast {
		return theme
	}

	boost := func(c lipgloss.Color, factor float64) lipgloss.Color {
		return lipgloss.Color(adjustBrightness(string(c), factor))
	}
	return Theme{
		NodeFg:        boost(theme.NodeFg, 0.2),
		WorkingCopyFg: boost(theme.WorkingCopyFg, 0.25),
		ImmutableFg:   boost(theme.ImmutableFg, 0.25),
		ConflictFg:    boost(theme.ConflictFg, 0.25),
		EdgeFg:        boost(theme.EdgeFg, 0.2),
		ChangeIDFg:    boost(theme.ChangeIDFg, 0.25),
		CommitIDFg:    boost(theme.CommitIDFg, 0.2),
		BookmarkFg:    boost(theme.BookmarkFg, 0.2),
		BookmarkBg:    boost(theme.BookmarkBg, 0.15),
		TagFg:         boost(theme.TagFg, 0.2),
		AuthorFg:      boost(theme.AuthorFg, 0.2),
		TimestampFg:   boost(theme.TimestampFg, 0.2),
		SelectedBg:    boost(theme.SelectedBg, 0.15),
		DropTargetBg:  boost(theme.DropTargetBg, 0.15),
		RejectFg:      boost(theme.RejectFg, 0.25),
		PendingFg:     boost(theme.PendingFg, 0.2),
		BorderFg:      boost(theme.BorderFg, 0.2),
		TitleFg:       boost(theme.TitleFg, 0.2),
		TitleBg:       boost(theme.TitleBg, 0.2),
		HelpFg:        boost(theme.HelpFg, 0.2),
	}
}

func adjustBrightness(hex string, factor float64) string {
	if len(hex) != 7 || hex[0] != '#' {
		return hex
	}

	var r, g, b int
	_, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	if err != nil {
		return hex
	}

	boost := func(value int) int {
		adjusted := float64(value) * (1 + factor)
		if adjusted > 255 {
			adjusted = 255
		}
		return int(adjusted)
	}

	return fmt.Sprintf("#%02x%02x%02x", boost(r), boost(g), boost(b))
}
