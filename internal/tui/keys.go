package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/cj3636/kahva/internal/config"
)

type keyMap struct {
	Quit         key.Binding
	Help         key.Binding
	Refresh      key.Binding
	TogglePreset key.Binding
	Down         key.Binding
	Up           key.Binding
	PageDown     key.Binding
	PageUp       key.Binding
	Top          key.Binding
	Bottom       key.Binding
	Describe     key.Binding
	Abandon      key.Binding
	YankChange   key.Binding
	YankCommit   key.Binding
	Cancel       key.Binding
}

func newKeyMap(kb config.Keybindings) keyMap {
	bind := func(action, desc string) key.Binding {
		keys := kb[action]
		return key.NewBinding(key.WithKeys(keys...), key.WithHelp(strings.Join(keys, "/"), desc))
	}
	return keyMap{
		Quit:         bind("quit", "quit"),
		Help:         bind("toggle_help", "toggle help"),
		Refresh:      bind("refresh", "refresh"),
		TogglePreset: bind("toggle_preset", "kahva-log / log"),
		Down:         bind("scroll_down", "next commit"),
		Up:           bind("scroll_up", "previous commit"),
		PageDown:     bind("page_down", "half page down"),
		PageUp:       bind("page_up", "half page up"),
		Top:          bind("go_top", "first commit"),
		Bottom:       bind("go_bottom", "last commit"),
		Describe:     bind("describe", "edit description"),
		Abandon:      bind("abandon", "abandon commit"),
		YankChange:   bind("yank_change", "copy change id"),
		YankCommit:   bind("yank_commit", "copy commit id"),
		Cancel:       bind("cancel_drag", "cancel drag / dismiss"),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Refresh, k.TogglePreset, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Down, k.Up, k.PageDown, k.PageUp, k.Top, k.Bottom},
		{k.Describe, k.Abandon, k.YankChange, k.YankCommit, k.Cancel},
		{k.Refresh, k.TogglePreset, k.Help, k.Quit},
	}
}
