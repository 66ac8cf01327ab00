package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uplo-tech/errors"
	"github.com/uplo-tech/threadgroup"

	"github.com/uplo-tech/chunkvault/persist"
)

// Chunk is the engine's notion of a structured document: an opaque,
// JSON-serializable value.
type Chunk = map[string]interface{}

// versionFile is the flat shape persisted to version.json: engine_version,
// attached_at, project_id, plus this attachment's instance_id.
type versionFile struct {
	EngineVersion string    `json:"engine_version"`
	AttachedAt    time.Time `json:"attached_at"`
	ProjectID     string    `json:"project_id"`
	InstanceID    string    `json:"instance_id"`
}

// Engine mediates every read, write, checkpoint, and restore against one
// project directory. It is a lifecycle façade composed on top of the
// process lock, the staging buffer and debounce scheduler, the atomic
// chunk writer, the self-healing reader, and the checkpoint manager.
//
// The only lock is the engine mutex (mu): it serializes every mutation of
// the staging buffer, every buffer-checking read, and the entire commit
// batch of a flush. tg is a separate active/inactive guard: every
// mutating public method opens with tg.Add()/defer tg.Done(), and Detach
// calls tg.Stop(), which blocks new Add()s, drains in-flight ones, and
// runs the OnStop hooks registered in Attach.
type Engine struct {
	tg threadgroup.ThreadGroup
	mu sync.Mutex

	layout        layout
	debounceDelay time.Duration
	retention     int

	observer Observer
	log      *persist.Logger

	buffer map[string]Chunk
	timer  *time.Timer

	instanceID string
}

// New creates a brand-new project under baseDir, rooted at a non-colliding
// name derived from projectID (suffixing _1, _2, ... until one is free),
// attaches to it, and returns the engine.
func New(projectID string, opts ...Option) (*Engine, error) {
	cfg := DefaultConfig(projectID)
	for _, o := range opts {
		o(&cfg)
	}
	if err := os.MkdirAll(cfg.BaseDir, dirPermissions); err != nil {
		return nil, errors.AddContext(err, "could not create base directory")
	}

	base := cfg.ProjectID
	if base == "" {
		base = "new_project"
	}
	target := base
	for counter := 1; projectExists(cfg.BaseDir, target); counter++ {
		target = fmt.Sprintf("%s_%d", base, counter)
	}
	cfg.ProjectID = target

	return newEngine(cfg)
}

// Open attaches to an existing project. It returns ErrProjectNotFound if no
// project directory exists, or ErrAlreadyOpen if another live process
// already holds the lock.
func Open(projectID string, opts ...Option) (*Engine, error) {
	cfg := DefaultConfig(projectID)
	for _, o := range opts {
		o(&cfg)
	}
	if !projectExists(cfg.BaseDir, cfg.ProjectID) {
		return nil, ErrProjectNotFound
	}
	e, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	if !e.IsActive() {
		return nil, ErrAlreadyOpen
	}
	return e, nil
}

// Option customizes engine construction.
type Option func(*Config)

// WithDebounceDelay overrides the default debounce window.
func WithDebounceDelay(d time.Duration) Option {
	return func(c *Config) { c.DebounceDelay = d }
}

// WithRetention overrides the default checkpoint retention.
func WithRetention(n int) Option {
	return func(c *Config) { c.Retention = n }
}

// WithObserver attaches a host observer for status/sync/fault
// notifications.
func WithObserver(o Observer) Option {
	return func(c *Config) { c.observer = o }
}

// WithBaseDir overrides the root directory projects live under.
func WithBaseDir(dir string) Option {
	return func(c *Config) { c.BaseDir = dir }
}

// NewFromConfig constructs and attaches an engine from an already-loaded
// Config (see LoadConfigFile).
func NewFromConfig(cfg Config) (*Engine, error) {
	return newEngine(cfg)
}

// newEngine prepares the directory layout and attaches. It returns a nil
// *Engine only if the project directories cannot be created; an engine
// that failed to attach is still returned so the caller can inspect
// IsActive()/the returned error and still call Detach or DeleteProject.
func newEngine(cfg Config) (*Engine, error) {
	l := newLayout(cfg.BaseDir, cfg.ProjectID)

	for _, dir := range []string{l.chunksPath, l.backupPath, l.checkpointPath} {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, errors.AddContext(err, "could not create project directory")
		}
	}

	debounce := cfg.DebounceDelay
	if debounce <= 0 {
		debounce = DefaultDebounceDelay
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	observer := cfg.observer
	if observer == nil {
		observer = noopObserver{}
	}

	e := &Engine{
		layout:        l,
		debounceDelay: debounce,
		retention:     retention,
		observer:      observer,
		buffer:        make(map[string]Chunk),
	}

	e.cleanStaleTemps()

	if err := e.attach(); err != nil {
		return e, err
	}
	return e, nil
}

// cleanStaleTemps removes any chunks/*.tmp artifacts left behind by a
// commit that crashed before the final rename.
func (e *Engine) cleanStaleTemps() {
	entries, err := os.ReadDir(e.layout.chunksPath)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".tmp" {
			continue
		}
		path := filepath.Join(e.layout.chunksPath, entry.Name())
		if err := os.Remove(path); err != nil {
			e.logStatus(fmt.Sprintf("could not remove stale temp file %s: %v", path, err))
		} else {
			e.logStatus(fmt.Sprintf("removed stale temp file %s from crashed commit", path))
		}
	}
}

// logStatus records a status line: to the file logger if one is attached,
// always to the observer.
func (e *Engine) logStatus(message string) {
	if e.log != nil {
		e.log.Println("INFO:", message)
	}
	e.observer.Status(message)
}

// logFault records a fault: a status line plus the fault callback.
func (e *Engine) logFault(message string) {
	if e.log != nil {
		e.log.Println("ERROR:", message)
	}
	e.observer.Fault(message)
}

// ProjectID returns the id of the project this engine is attached to.
func (e *Engine) ProjectID() string {
	return e.layout.projectID
}

// ProjectPath returns the absolute path of the project directory.
func (e *Engine) ProjectPath() string {
	return e.layout.projectPath
}

// HealthReport is the diagnostic summary returned by GetHealthReport.
type HealthReport struct {
	Active           bool   `json:"active"`
	ProjectID        string `json:"project"`
	RootPath         string `json:"root_path"`
	ShardsCount      int    `json:"shards_count"`
	CheckpointsCount int    `json:"checkpoints_count"`
	PendingSyncs     int    `json:"pending_syncs"`
	InstanceID       string `json:"instance_id"`
}

// GetHealthReport returns a diagnostic summary of the project state. It is
// safe to call regardless of whether the engine is active.
func (e *Engine) GetHealthReport() HealthReport {
	e.mu.Lock()
	pending := len(e.buffer)
	e.mu.Unlock()

	shards, _ := filepath.Glob(filepath.Join(e.layout.chunksPath, "*.json"))
	checkpoints, _ := filepath.Glob(filepath.Join(e.layout.checkpointPath, "*.zip"))

	return HealthReport{
		Active:           e.IsActive(),
		ProjectID:        e.layout.projectID,
		RootPath:         e.layout.root,
		ShardsCount:      len(shards),
		CheckpointsCount: len(checkpoints),
		PendingSyncs:     pending,
		InstanceID:       e.instanceID,
	}
}

// ListProjects scans baseDir and returns the names of every subdirectory
// that looks like a chunkvault project (i.e. has a chunks/ subdirectory).
func ListProjects(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var projects []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if info, err := os.Stat(filepath.Join(baseDir, entry.Name(), "chunks")); err == nil && info.IsDir() {
			projects = append(projects, entry.Name())
		}
	}
	return projects, nil
}

// newInstanceID mints a fresh diagnostics-only identifier for this attach.
func newInstanceID() string {
	return uuid.New().String()
}
