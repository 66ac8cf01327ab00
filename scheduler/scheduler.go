// Package scheduler drives periodic checkpoints of a chunkvault engine on a
// cron expression. It is a pure consumer of the engine's public API: it
// never sees an engine's internal lock, buffer, or layout, only
// CreateCheckpoint.
package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/uplo-tech/errors"

	"github.com/uplo-tech/chunkvault/engine"
)

// Checkpointer is the subset of *engine.Engine the scheduler depends on,
// narrowed so tests can supply a fake.
type Checkpointer interface {
	CreateCheckpoint(label, notes string, retention int) (string, error)
}

// AutoCheckpointer wraps a cron.Cron instance that periodically checkpoints
// one engine, per a project's engine.AutoCheckpointConfig.
type AutoCheckpointer struct {
	cron   *cron.Cron
	engine Checkpointer

	mu         sync.Mutex
	lastResult string
	lastErr    error
}

// New builds an AutoCheckpointer from an engine and its auto-checkpoint
// config. The cron expression is validated immediately; a malformed
// schedule is returned as an error rather than discovered later at the
// first missed firing.
func New(e Checkpointer, cfg engine.AutoCheckpointConfig) (*AutoCheckpointer, error) {
	a := &AutoCheckpointer{
		cron:   cron.New(),
		engine: e,
	}

	retention := cfg.Retention
	label := cfg.Label
	if label == "" {
		label = "auto"
	}

	_, err := a.cron.AddFunc(cfg.Schedule, func() {
		a.runOnce(label, retention)
	})
	if err != nil {
		return nil, errors.AddContext(err, "invalid auto-checkpoint schedule")
	}
	return a, nil
}

// Start begins running the scheduler's cron loop in the background. It
// returns immediately.
func (a *AutoCheckpointer) Start() {
	a.cron.Start()
}

// Stop halts the cron loop and waits for any in-flight checkpoint to
// finish.
func (a *AutoCheckpointer) Stop() {
	<-a.cron.Stop().Done()
}

// LastResult returns the filename of the most recently completed automatic
// checkpoint and any error from the most recent attempt.
func (a *AutoCheckpointer) LastResult() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastResult, a.lastErr
}

func (a *AutoCheckpointer) runOnce(label string, retention int) {
	notes := fmt.Sprintf("automatic checkpoint (%s)", label)
	name, err := a.engine.CreateCheckpoint(label, notes, retention)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastErr = err
	if err == nil {
		a.lastResult = name
	}
}
