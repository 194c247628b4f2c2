// Package config loads and validates the scripts.yml descriptor: the set of
// scripts, the watch roots they apply to, and per-script triggers/delays.
// Modeled on the teacher's pkg/workspace.NewManager validation style
// (existence/readability checks with wrapped errors) since the original
// mcp-workspace-manager has no config-file loader of its own to copy
// directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"rusty-hooks/pkg/script"
)

// RawScript mirrors one entry of the scripts.yml `scripts:` list.
type RawScript struct {
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description" json:"description"`
	FileName      string   `yaml:"file_name" json:"file_name"`
	WatchPath     string   `yaml:"watch_path" json:"watch_path"`
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	RunDelay      int      `yaml:"run_delay" json:"run_delay"`
	EventTriggers []string `yaml:"event_triggers" json:"event_triggers"`
	Dependencies  []string `yaml:"dependencies" json:"dependencies"`
}

// RawSyncthing mirrors the optional per-watch-root `syncthing:` block,
// carried over from original_source/src/syncthing/configs.rs. When present
// for a watch root, pkg/syncthing.Poller is used as an additional
// ingress alongside the fsnotify-backed Ingestor for that root.
type RawSyncthing struct {
	Address  string `yaml:"address" json:"address"`
	Port     int    `yaml:"port" json:"port"`
	AuthKey  string `yaml:"auth_key" json:"auth_key"`
	FolderID string `yaml:"folder_id" json:"folder_id"`
}

// RawFile mirrors the top-level scripts.yml document.
type RawFile struct {
	Scripts   []RawScript             `yaml:"scripts" json:"scripts"`
	Syncthing map[string]RawSyncthing `yaml:"syncthing" json:"syncthing"`
}

// Config is the validated, resolved configuration: one ScriptSet per
// distinct enabled watch root, plus any Syncthing ingress configured for
// that root.
type Config struct {
	ScriptFolder string
	ConfigPath   string
	Roots        []WatchRoot
}

// WatchRoot is one distinct enabled watch_path with the ScriptSet bound to
// it and, optionally, a Syncthing event source configuration.
type WatchRoot struct {
	Path      string
	Scripts   script.Set
	Syncthing *RawSyncthing
}

// Load reads exactly one scripts.yml from scriptFolder, validates it per
// spec.md §6, and returns the resolved Config. The legacy scripts.json is
// never read here; only LoadLegacyJSON reads it.
func Load(scriptFolder string) (*Config, error) {
	configPath, err := findConfigFile(scriptFolder)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	}

	var doc RawFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	cfg, err := build(scriptFolder, doc)
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = configPath
	return cfg, nil
}

// findConfigFile requires the script folder to contain exactly one YAML
// file (any name ending in .yml or .yaml, normally scripts.yml). The legacy
// .json variant is handled by LoadLegacyJSON and is never auto-detected
// here — see DESIGN.md's "Open Question decisions".
func findConfigFile(scriptFolder string) (string, error) {
	info, err := os.Stat(scriptFolder)
	if err != nil {
		return "", fmt.Errorf("script folder %s: %w", scriptFolder, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("script folder %s is not a directory", scriptFolder)
	}

	entries, err := os.ReadDir(scriptFolder)
	if err != nil {
		return "", fmt.Errorf("reading script folder %s: %w", scriptFolder, err)
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".yml" || filepath.Ext(e.Name()) == ".yaml" {
			matches = append(matches, e.Name())
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("script folder %s must contain exactly one scripts.yml, found none", scriptFolder)
	case 1:
		return filepath.Join(scriptFolder, matches[0]), nil
	default:
		return "", fmt.Errorf("script folder %s must contain exactly one scripts.yml, found %d", scriptFolder, len(matches))
	}
}

// build validates the raw document per spec.md §6 and resolves it into a
// Config grouped by distinct enabled watch root.
func build(scriptFolder string, doc RawFile) (*Config, error) {
	if len(doc.Scripts) == 0 {
		return nil, fmt.Errorf("scripts.yml declares no scripts")
	}

	byRoot := map[string][]script.Script{}
	order := []string{}
	anyEnabled := false

	for i, rs := range doc.Scripts {
		if !rs.Enabled {
			continue
		}
		anyEnabled = true

		if rs.FileName == "" {
			return nil, fmt.Errorf("scripts[%d] (%s): file_name is required", i, rs.Name)
		}
		filePath := filepath.Join(scriptFolder, rs.FileName)
		if _, err := os.Stat(filePath); err != nil {
			return nil, fmt.Errorf("scripts[%d] (%s): file_name %q not found under script folder: %w", i, rs.Name, rs.FileName, err)
		}

		if rs.WatchPath == "" {
			return nil, fmt.Errorf("scripts[%d] (%s): watch_path is required", i, rs.Name)
		}
		absWatch, err := filepath.Abs(rs.WatchPath)
		if err != nil {
			return nil, fmt.Errorf("scripts[%d] (%s): invalid watch_path %q: %w", i, rs.Name, rs.WatchPath, err)
		}
		if err := validateReadableDir(absWatch); err != nil {
			return nil, fmt.Errorf("scripts[%d] (%s): watch_path %q: %w", i, rs.Name, absWatch, err)
		}

		if rs.RunDelay < 0 || rs.RunDelay > 255 {
			return nil, fmt.Errorf("scripts[%d] (%s): run_delay must be in 0..255, got %d", i, rs.Name, rs.RunDelay)
		}

		if len(rs.EventTriggers) == 0 {
			return nil, fmt.Errorf("scripts[%d] (%s): event_triggers must be non-empty", i, rs.Name)
		}
		kinds := make([]script.EventKind, 0, len(rs.EventTriggers))
		for _, t := range rs.EventTriggers {
			kind, err := script.ParseEventKind(t)
			if err != nil {
				return nil, fmt.Errorf("scripts[%d] (%s): %w", i, rs.Name, err)
			}
			kinds = append(kinds, kind)
		}

		s := script.Script{
			Name:          rs.Name,
			Description:   rs.Description,
			FilePath:      filePath,
			FileName:      rs.FileName,
			WatchPath:     absWatch,
			EventTriggers: kinds,
			RunDelay:      uint8(rs.RunDelay),
			Enabled:       rs.Enabled,
			Dependencies:  rs.Dependencies,
		}

		if _, seen := byRoot[absWatch]; !seen {
			order = append(order, absWatch)
		}
		byRoot[absWatch] = append(byRoot[absWatch], s)
	}

	if !anyEnabled {
		return nil, fmt.Errorf("scripts.yml must enable at least one script")
	}

	roots := make([]WatchRoot, 0, len(order))
	for _, root := range order {
		var st *RawSyncthing
		if cfg, ok := doc.Syncthing[root]; ok {
			cfgCopy := cfg
			st = &cfgCopy
		}
		roots = append(roots, WatchRoot{
			Path:      root,
			Scripts:   script.NewSet(byRoot[root]),
			Syncthing: st,
		})
	}

	return &Config{ScriptFolder: scriptFolder, Roots: roots}, nil
}

func validateReadableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("is not a directory")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("is not readable: %w", err)
	}
	_ = f.Close()
	return nil
}
