// Package config loads and saves the player settings file. The file is
// YAML; a missing file yields the defaults, and unknown keys are ignored
// so older files keep working.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings holds everything tunable about playback outside of the script
// itself: timing, directory layout, resource limits and the alias table
// the sugar expander consults.
type Settings struct {
	// PlaybackSpeed scales every timed wait; 2.0 plays twice as fast.
	// Values below 0.01 are clamped to 0.01 at use sites.
	PlaybackSpeed float64 `yaml:"playback_speed"`
	// MouseWaitMS is the press/release pause inside click commands.
	MouseWaitMS int `yaml:"mouse_wait_ms"`
	// KeyWaitMS is the press/release pause inside key commands.
	KeyWaitMS int `yaml:"key_wait_ms"`
	// MacrosDir is where CALL resolves script filenames, relative to the
	// base directory the host chooses.
	MacrosDir string `yaml:"macros_dir"`
	// TemplatesDir is where IMAGE_MATCH resolves template filenames.
	TemplatesDir string `yaml:"templates_dir"`
	// MaxIterations is the hard ceiling for WHILE and REPEAT loops.
	MaxIterations int `yaml:"max_iterations"`
	// MaxCallDepth bounds CALL nesting.
	MaxCallDepth int `yaml:"max_call_depth"`
	// Aliases maps user command aliases to canonical command names,
	// e.g. pos: MOUSE_POS. Case-insensitive on both sides.
	Aliases map[string]string `yaml:"aliases"`
}

// Default returns the settings used when no file exists.
func Default() *Settings {
	return &Settings{
		PlaybackSpeed: 1.0,
		MouseWaitMS:   50,
		KeyWaitMS:     30,
		MacrosDir:     "macros",
		TemplatesDir:  "templates",
		MaxIterations: 100_000,
		MaxCallDepth:  16,
		Aliases:       map[string]string{},
	}
}

// Load reads settings from path. A missing file is not an error; defaults
// are returned. Zero or negative limits fall back to the defaults so a
// hand-edited file cannot disable the safety ceilings.
func Load(path string) (*Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	def := Default()
	if s.PlaybackSpeed <= 0 {
		s.PlaybackSpeed = def.PlaybackSpeed
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = def.MaxIterations
	}
	if s.MaxCallDepth <= 0 {
		s.MaxCallDepth = def.MaxCallDepth
	}
	if s.Aliases == nil {
		s.Aliases = map[string]string{}
	}
	return s, nil
}

// Save writes the settings to path, creating parent directories as needed.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings %s: %w", path, err)
	}
	return nil
}

// Sugar returns the alias table with both sides upper-cased, the form the
// sugar expander expects.
func (s *Settings) Sugar() map[string]string {
	out := make(map[string]string, len(s.Aliases))
	for alias, canonical := range s.Aliases {
		out[strings.ToUpper(alias)] = strings.ToUpper(canonical)
	}
	return out
}
