package engine

import (
	"os"
	"strconv"
	"time"

	"github.com/uplo-tech/errors"
	"gopkg.in/yaml.v3"

	"github.com/uplo-tech/chunkvault/build"
)

// Config is the engine's construction-time configuration. It can
// be built by hand or loaded from a YAML file with LoadConfigFile, the way
// nishisan-dev-n-backup loads its agent/server configs.
type Config struct {
	// ProjectID is the filename-safe project identifier.
	ProjectID string `yaml:"project_id"`

	// BaseDir is the root directory all projects live under.
	BaseDir string `yaml:"base_dir"`

	// DebounceDelay is how long StageUpdate waits after the last call
	// before flushing to disk. It is not itself a YAML field: yaml.v3
	// decodes time.Duration as a bare integer of nanoseconds, which is not
	// a format anyone should have to hand-write in a config file, so the
	// file instead carries DebounceDelayMS and LoadConfigFile converts it.
	DebounceDelay time.Duration `yaml:"-"`

	// DebounceDelayMS is DebounceDelay expressed in milliseconds, the unit
	// a config file actually spells out (matching CHUNKVAULT_DEBOUNCE_MS's
	// own unit).
	DebounceDelayMS int `yaml:"debounce_delay_ms"`

	// Retention is the default checkpoint retention used when a caller of
	// CreateCheckpoint passes zero.
	Retention int `yaml:"retention"`

	// AutoCheckpoint, if non-nil, configures a scheduler.AutoCheckpointer
	// the caller may wire up after construction; the engine itself never
	// reads this field.
	AutoCheckpoint *AutoCheckpointConfig `yaml:"auto_checkpoint,omitempty"`

	// observer receives status/sync/fault notifications. Not serializable;
	// set via WithObserver, never via a config file.
	observer Observer `yaml:"-"`
}

// AutoCheckpointConfig configures the optional cron-driven auto-checkpoint
// companion.
type AutoCheckpointConfig struct {
	// Schedule is a standard five-field cron expression.
	Schedule string `yaml:"schedule"`

	// Label is used as the checkpoint label for every automatic snapshot.
	Label string `yaml:"label"`

	// Retention overrides Config.Retention for automatic snapshots only.
	Retention int `yaml:"retention"`
}

// DefaultConfig returns a Config with every field set to its documented
// default.
func DefaultConfig(projectID string) Config {
	return Config{
		ProjectID:     projectID,
		BaseDir:       DefaultBaseDir,
		DebounceDelay: DefaultDebounceDelay,
		Retention:     DefaultRetention,
	}
}

// LoadConfigFile reads a YAML config file and fills in any field left at
// its zero value with the documented default, then applies environment
// overrides (build.BaseDir/build.DebounceMS), the way build/env.go layers
// environment variables over file-based configuration.
func LoadConfigFile(path string) (Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.AddContext(err, "could not read config file")
	}
	cfg := DefaultConfig("")
	if err := yaml.Unmarshal(blob, &cfg); err != nil {
		return Config{}, errors.AddContext(err, "could not parse config file")
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = DefaultBaseDir
	}
	if cfg.DebounceDelayMS > 0 {
		cfg.DebounceDelay = time.Duration(cfg.DebounceDelayMS) * time.Millisecond
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	applyEnvOverrides(&cfg)
	if cfg.ProjectID == "" {
		return Config{}, errors.New("config file must set project_id")
	}
	return cfg, nil
}

// applyEnvOverrides layers CHUNKVAULT_* environment variables over a
// loaded config, lowest priority first: file, then environment.
func applyEnvOverrides(cfg *Config) {
	if v := build.BaseDir(); v != "" {
		cfg.BaseDir = v
	}
	if v := build.DebounceMS(); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.DebounceDelay = time.Duration(ms) * time.Millisecond
		}
	}
}
