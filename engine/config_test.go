package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uplo-tech/chunkvault/build"
)

// TestLoadConfigFileFillsDefaults tests that fields omitted from the YAML
// file are filled with their documented defaults.
func TestLoadConfigFileFillsDefaults(t *testing.T) {
	t.Parallel()
	dir := build.TempDir(t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("project_id: demo\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ProjectID != "demo" {
		t.Fatalf("expected project_id demo, got %q", cfg.ProjectID)
	}
	if cfg.BaseDir != DefaultBaseDir {
		t.Fatalf("expected default base dir, got %q", cfg.BaseDir)
	}
	if cfg.DebounceDelay != DefaultDebounceDelay {
		t.Fatalf("expected default debounce delay, got %v", cfg.DebounceDelay)
	}
	if cfg.Retention != DefaultRetention {
		t.Fatalf("expected default retention, got %d", cfg.Retention)
	}
}

// TestLoadConfigFileRequiresProjectID tests that a config file without a
// project_id is rejected rather than silently producing an unusable
// engine.
func TestLoadConfigFileRequiresProjectID(t *testing.T) {
	t.Parallel()
	dir := build.TempDir(t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("base_dir: /tmp/whatever\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("expected an error loading a config file with no project_id")
	}
}

// TestLoadConfigFileHonorsExplicitOverrides tests that values explicitly
// set in the YAML file are not clobbered by defaults.
func TestLoadConfigFileHonorsExplicitOverrides(t *testing.T) {
	t.Parallel()
	dir := build.TempDir(t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	contents := "project_id: demo\nbase_dir: " + dir + "\nretention: 3\ndebounce_delay_ms: 2000\n"
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseDir != dir {
		t.Fatalf("expected base dir %q, got %q", dir, cfg.BaseDir)
	}
	if cfg.Retention != 3 {
		t.Fatalf("expected retention 3, got %d", cfg.Retention)
	}
	if cfg.DebounceDelay != 2*time.Second {
		t.Fatalf("expected debounce delay 2s, got %v", cfg.DebounceDelay)
	}
}

// TestNewFromConfig tests that an engine can be constructed from a Config
// loaded via LoadConfigFile.
func TestNewFromConfig(t *testing.T) {
	t.Parallel()
	base := build.TempDir(t.Name())
	cfg := DefaultConfig("demo")
	cfg.BaseDir = base

	e, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Detach()

	if !e.IsActive() {
		t.Fatal("expected engine constructed from config to be active")
	}
}
