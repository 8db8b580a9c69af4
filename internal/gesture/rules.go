package gesture

import (
	"fmt"
	"strings"

	"github.com/cj3636/kahva/internal/ops"
)

// Modifiers is a set of held modifier keys.
type Modifiers uint8

const (
	Shift Modifiers = 1 << iota
	Alt
	Ctrl
)

// Has reports whether every modifier in m is held.
func (held Modifiers) Has(m Modifiers) bool {
	return held&m == m
}

func (held Modifiers) String() string {
	var parts []string
	if held&Shift != 0 {
		parts = append(parts, "shift")
	}
	if held&Alt != 0 {
		parts = append(parts, "alt")
	}
	if held&Ctrl != 0 {
		parts = append(parts, "ctrl")
	}
	return strings.Join(parts, "+")
}

// Role is what a point on the surface represents.
type Role int

const (
	RoleNone Role = iota
	RoleCommit
	RoleBookmark
	RoleTrash
)

func (r Role) String() string {
	switch r {
	case RoleCommit:
		return "commit"
	case RoleBookmark:
		return "bookmark"
	case RoleTrash:
		return "trash"
	}
	return "none"
}

func parseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "commit":
		return RoleCommit, nil
	case "bookmark", "label":
		return RoleBookmark, nil
	case "trash":
		return RoleTrash, nil
	}
	return RoleNone, fmt.Errorf("unknown drop role %q", s)
}

// Rule maps a drag from a source role onto a target role to an operation
// kind. A rule applies when all of its modifiers are held; rules are tried
// in order and the first match wins.
type Rule struct {
	Source    Role
	Target    Role
	Modifiers Modifiers
	Kind      ops.Kind
}

func (r Rule) matches(source, target Role, held Modifiers) bool {
	return r.Source == source && r.Target == target && held.Has(r.Modifiers)
}

// DefaultRules returns the built-in drop rules. Rules carrying modifiers come
// before the plain rule for the same roles so they can take precedence.
func DefaultRules() []Rule {
	return []Rule{
		{Source: RoleCommit, Target: RoleBookmark, Kind: ops.MoveBookmark},
		{Source: RoleCommit, Target: RoleCommit, Modifiers: Alt, Kind: ops.Squash},
		{Source: RoleCommit, Target: RoleCommit, Kind: ops.Rebase},
		{Source: RoleCommit, Target: RoleTrash, Kind: ops.Abandon},
		{Source: RoleBookmark, Target: RoleCommit, Kind: ops.MoveBookmark},
	}
}

// ParseRule builds a rule from its configured form.
func ParseRule(source, target string, modifiers []string, kind string) (Rule, error) {
	var r Rule
	var err error
	if r.Source, err = parseRole(source); err != nil {
		return Rule{}, err
	}
	if r.Source == RoleTrash {
		return Rule{}, fmt.Errorf("trash cannot be dragged")
	}
	if r.Target, err = parseRole(target); err != nil {
		return Rule{}, err
	}
	for _, m := range modifiers {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case "shift":
			r.Modifiers |= Shift
		case "alt", "option", "meta":
			r.Modifiers |= Alt
		case "ctrl", "control":
			r.Modifiers |= Ctrl
		default:
			return Rule{}, fmt.Errorf("unknown modifier %q", m)
		}
	}
	if r.Kind, err = ops.ParseKind(kind); err != nil {
		return Rule{}, err
	}
	if r.Kind == ops.Describe {
		return Rule{}, fmt.Errorf("describe cannot be bound to a drop")
	}
	return r, nil
}
