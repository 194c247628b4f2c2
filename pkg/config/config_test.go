package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rusty-hooks/pkg/script"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	scriptFolder := t.TempDir()
	watchDir := t.TempDir()
	writeFile(t, scriptFolder, "build.sh", "#!/bin/sh\necho hi\n")

	yml := `
scripts:
  - name: build
    description: builds things
    file_name: build.sh
    watch_path: ` + watchDir + `
    enabled: true
    run_delay: 2
    event_triggers: [Create, Modify]
`
	writeFile(t, scriptFolder, "scripts.yml", yml)

	cfg, err := Load(scriptFolder)
	require.NoError(t, err)
	require.Len(t, cfg.Roots, 1)

	root := cfg.Roots[0]
	absWatch, _ := filepath.Abs(watchDir)
	assert.Equal(t, absWatch, root.Path)
	assert.False(t, root.Scripts.Empty(script.EventCreate))
	assert.NotEmpty(t, cfg.ConfigPath)
}

func TestLoad_RejectsMissingScriptsFile(t *testing.T) {
	scriptFolder := t.TempDir()
	_, err := Load(scriptFolder)
	require.Error(t, err)
}

func TestLoad_RejectsMultipleYamlFiles(t *testing.T) {
	scriptFolder := t.TempDir()
	writeFile(t, scriptFolder, "scripts.yml", "scripts: []\n")
	writeFile(t, scriptFolder, "other.yaml", "scripts: []\n")

	_, err := Load(scriptFolder)
	require.Error(t, err)
}

func TestLoad_RejectsNoScripts(t *testing.T) {
	scriptFolder := t.TempDir()
	writeFile(t, scriptFolder, "scripts.yml", "scripts: []\n")

	_, err := Load(scriptFolder)
	require.Error(t, err)
}

func TestLoad_RejectsMissingFileName(t *testing.T) {
	scriptFolder := t.TempDir()
	watchDir := t.TempDir()
	yml := `
scripts:
  - name: build
    watch_path: ` + watchDir + `
    enabled: true
    event_triggers: [Create]
`
	writeFile(t, scriptFolder, "scripts.yml", yml)

	_, err := Load(scriptFolder)
	require.Error(t, err)
}

func TestLoad_RejectsUnknownTrigger(t *testing.T) {
	scriptFolder := t.TempDir()
	watchDir := t.TempDir()
	writeFile(t, scriptFolder, "build.sh", "")
	yml := `
scripts:
  - name: build
    file_name: build.sh
    watch_path: ` + watchDir + `
    enabled: true
    event_triggers: [Bogus]
`
	writeFile(t, scriptFolder, "scripts.yml", yml)

	_, err := Load(scriptFolder)
	require.Error(t, err)
}

func TestLoad_SkipsDisabledScripts(t *testing.T) {
	scriptFolder := t.TempDir()
	watchDir := t.TempDir()
	writeFile(t, scriptFolder, "build.sh", "")
	yml := `
scripts:
  - name: build
    file_name: build.sh
    watch_path: ` + watchDir + `
    enabled: false
    event_triggers: [Create]
`
	writeFile(t, scriptFolder, "scripts.yml", yml)

	_, err := Load(scriptFolder)
	require.Error(t, err, "a config with only disabled scripts has no enabled scripts")
}

func TestLoad_GroupsMultipleScriptsUnderSameRoot(t *testing.T) {
	scriptFolder := t.TempDir()
	watchDir := t.TempDir()
	writeFile(t, scriptFolder, "a.sh", "")
	writeFile(t, scriptFolder, "b.sh", "")
	yml := `
scripts:
  - name: a
    file_name: a.sh
    watch_path: ` + watchDir + `
    enabled: true
    event_triggers: [Create]
  - name: b
    file_name: b.sh
    watch_path: ` + watchDir + `
    enabled: true
    event_triggers: [Remove]
`
	writeFile(t, scriptFolder, "scripts.yml", yml)

	cfg, err := Load(scriptFolder)
	require.NoError(t, err)
	require.Len(t, cfg.Roots, 1)
}

func TestLoadLegacyJSON(t *testing.T) {
	scriptFolder := t.TempDir()
	watchDir := t.TempDir()
	writeFile(t, scriptFolder, "build.sh", "")

	doc := `{"scripts":[{"name":"build","file_name":"build.sh","watch_path":"` + watchDir + `","enabled":true,"event_triggers":["Create"]}]}`
	writeFile(t, scriptFolder, "scripts.json", doc)

	cfg, err := LoadLegacyJSON(scriptFolder)
	require.NoError(t, err)
	require.Len(t, cfg.Roots, 1)
	assert.Equal(t, filepath.Join(scriptFolder, "scripts.json"), cfg.ConfigPath)
}

func TestLoad_NeverAutoDetectsLegacyJSON(t *testing.T) {
	scriptFolder := t.TempDir()
	watchDir := t.TempDir()
	writeFile(t, scriptFolder, "build.sh", "")
	doc := `{"scripts":[{"name":"build","file_name":"build.sh","watch_path":"` + watchDir + `","enabled":true,"event_triggers":["Create"]}]}`
	writeFile(t, scriptFolder, "scripts.json", doc)

	_, err := Load(scriptFolder)
	require.Error(t, err, "a folder with only scripts.json must not be picked up by Load")
}
