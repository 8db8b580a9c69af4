package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cj3636/kahva/internal/gesture"
	"github.com/cj3636/kahva/internal/layout"
	"github.com/cj3636/kahva/internal/plan"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// fileConfig is the on-disk form. Fields left out of the file keep their
// defaults.
type fileConfig struct {
	Theme              ThemePreset     `yaml:"theme"`
	HighContrast       bool            `yaml:"high_contrast"`
	Keybindings        Keybindings     `yaml:"keybindings"`
	DropRules          []DropRule      `yaml:"drop_rules"`
	Squash             string          `yaml:"squash"`
	ProtectedBookmarks []string        `yaml:"protected_bookmarks"`
	Geometry           layout.Geometry `yaml:"geometry"`
	LogFile            string          `yaml:"log_file"`
	JJPath             string          `yaml:"jj_path"`
}

// DefaultPath is $XDG_CONFIG_HOME/kahva/config.yml, falling back to
// ~/.config.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "kahva", "config.yml")
}

// Load reads the configuration at path, or at DefaultPath when path is
// empty. A missing default file yields the defaults; a missing explicit
// file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	d := DefaultConfig()
	fc := fileConfig{
		Theme:     d.ThemePreset,
		DropRules: d.DropRules,
		Squash:    d.Squash,
		Geometry:  d.Geometry,
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		ThemePreset:        fc.Theme,
		Theme:              ThemeForPreset(fc.Theme, fc.HighContrast),
		HighContrast:       fc.HighContrast,
		Keybindings:        MergeKeybindings(fc.Keybindings),
		DropRules:          fc.DropRules,
		Squash:             fc.Squash,
		ProtectedBookmarks: fc.ProtectedBookmarks,
		Geometry:           fc.Geometry,
		LogFile:            fc.LogFile,
		JJPath:             fc.JJPath,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting the rest of the program parses later.
func (c *Config) Validate() error {
	switch c.ThemePreset {
	case PresetDefault, PresetSolarize, PresetDracula:
	default:
		return fmt.Errorf("%w: unknown theme %q", ErrInvalid, c.ThemePreset)
	}
	if _, err := plan.ParseSquashMode(c.Squash); err != nil {
		return fmt.Errorf("%w: squash: %v", ErrInvalid, err)
	}
	if err := plan.ValidatePatterns(c.ProtectedBookmarks); err != nil {
		return fmt.Errorf("%w: protected_bookmarks: %v", ErrInvalid, err)
	}
	if _, err := c.GestureRules(); err != nil {
		return err
	}
	return nil
}

// GestureRules converts the drop rules for the gesture resolver.
func (c *Config) GestureRules() ([]gesture.Rule, error) {
	rules := make([]gesture.Rule, 0, len(c.DropRules))
	for i, dr := range c.DropRules {
		r, err := gesture.ParseRule(dr.Source, dr.Target, dr.Modifiers, dr.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: drop_rules[%d]: %v", ErrInvalid, i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// PlannerOptions returns the planner settings carried by the config.
func (c *Config) PlannerOptions() ([]plan.Option, error) {
	mode, err := plan.ParseSquashMode(c.Squash)
	if err != nil {
		return nil, fmt.Errorf("%w: squash: %v", ErrInvalid, err)
	}
	return []plan.Option{
		plan.WithSquashMode(mode),
		plan.WithProtectedBookmarks(c.ProtectedBookmarks...),
	}, nil
}
