package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadLegacyJSON reads a legacy scripts.json descriptor from scriptFolder.
//
// Open Question recorded in DESIGN.md: the Rust original accepted both JSON and
// YAML in different versions of the config loader. This rewrite resolves
// that ambiguity in the spec's favor — YAML (scripts.yml) is the only format
// Load auto-detects; JSON is supported only via this explicit entry point,
// never silently picked up, so a script folder containing both a
// scripts.yml and a stray scripts.json behaves the same as one containing
// only the YAML file.
func LoadLegacyJSON(scriptFolder string) (*Config, error) {
	path := filepath.Join(scriptFolder, "scripts.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading legacy config %s: %w", path, err)
	}

	var doc RawFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing legacy config %s: %w", path, err)
	}

	cfg, err := build(scriptFolder, doc)
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = path
	return cfg, nil
}
