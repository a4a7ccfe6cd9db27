// Package display holds the user-facing rendering configuration the trace
// engine consumes: per-command colors and durations plus the memory topology
// of the traced system. Config files live as JSON in the user config
// directory and can be exported to or imported from YAML for sharing.
package display

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const storeFile = "ramwiz-config.json"

// CommandConfig maps command ids to rendering hints. Both maps may be
// partial; the engine substitutes defaults for missing ids.
type CommandConfig struct {
	Colors       map[uint8]string  `json:"colors" yaml:"colors"`
	ClockPeriods map[uint8]float32 `json:"clockPeriods" yaml:"clockPeriods"`
}

// DurationFor implements trace.DisplayConfig.
func (c *CommandConfig) DurationFor(cmdID uint8) (float32, bool) {
	if c == nil {
		return 0, false
	}
	d, ok := c.ClockPeriods[cmdID]
	return d, ok
}

// ColorHexFor implements trace.DisplayConfig.
func (c *CommandConfig) ColorHexFor(cmdID uint8) (string, bool) {
	if c == nil {
		return "", false
	}
	s, ok := c.Colors[cmdID]
	return s, ok
}

// MemoryLayout describes the traced DRAM topology, used by the viewer to
// size its lanes.
type MemoryLayout struct {
	NumChannels   uint8 `json:"numChannels" yaml:"numChannels"`
	NumBankgroups uint8 `json:"numBankgroups" yaml:"numBankgroups"`
	NumBanks      uint8 `json:"numBanks" yaml:"numBanks"`
}

// Config is the full persisted configuration.
type Config struct {
	CommandConfig *CommandConfig `json:"commandConfig,omitempty" yaml:"commandConfig,omitempty"`
	MemoryLayout  *MemoryLayout  `json:"memoryLayout,omitempty" yaml:"memoryLayout,omitempty"`
}

// StorePath returns the JSON store location under the user config directory.
func StorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ramwiz", storeFile), nil
}

// Load reads the JSON store at path. A missing file is not an error; it
// returns an empty config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("display: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the JSON store at path, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// ExportYAML writes the config as YAML, for sharing between users.
func ExportYAML(path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// ImportYAML reads a YAML config file previously produced by ExportYAML.
// Sections absent from the file stay nil so importers can merge selectively.
func ImportYAML(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("display: parse %s: %w", path, err)
	}
	return &cfg, nil
}
