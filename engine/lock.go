package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/uplo-tech/errors"

	"github.com/uplo-tech/chunkvault/build"
	"github.com/uplo-tech/chunkvault/persist"
)

// IsActive returns true if the engine is healthy and holds the project
// lock.
func (e *Engine) IsActive() bool {
	return !e.tg.IsStopped()
}

// attach claims the project directory by creating a PID-based lock file,
// reclaiming a stale one left by a crashed process first if necessary
// (stale-lock reclamation).
func (e *Engine) attach() error {
	if err := e.reclaimStaleLock(); err != nil {
		// Another live process holds the lock: the engine is permanently
		// inactive. Stopping the (never-started) thread group makes every
		// subsequent Add() fail, which is exactly the "all public
		// operations become no-ops" contract attach failure requires.
		_ = e.tg.Stop()
		e.logStatus("ATTACH_DENIED: project is currently open in another process.")
		return err
	}

	e.instanceID = newInstanceID()
	lockContents := []byte(fmt.Sprintf("PID: %d", os.Getpid()))
	if err := persist.AtomicWriteFile(e.layout.lockPath, lockContents); err != nil {
		_ = e.tg.Stop()
		return errors.AddContext(err, "critical lock failure")
	}

	vf := versionFile{
		EngineVersion: build.Version,
		AttachedAt:    time.Now(),
		ProjectID:     e.layout.projectID,
		InstanceID:    e.instanceID,
	}
	// version.json is part of a project's stable filesystem layout, read by
	// nothing in this engine but potentially by outside tooling, so it is
	// written as the flat document it documents itself as, not wrapped in
	// persist.SaveJSON's header/version envelope.
	if blob, err := json.MarshalIndent(vf, "", "    "); err != nil {
		e.logStatus("could not encode version.json: " + err.Error())
	} else if err := persist.AtomicWriteFile(e.layout.versionPath, blob); err != nil {
		e.logStatus("could not write version.json: " + err.Error())
	}

	logDir := e.layout.projectPath
	if override := build.LogDir(); override != "" {
		logDir = override
		_ = os.MkdirAll(logDir, dirPermissions)
	}
	logFilename := filepath.Join(logDir, e.layout.projectID+"_chunkvault.log")
	if logger, err := persist.NewFileLogger(logFilename); err == nil {
		e.log = logger
	}

	e.tg.OnStop(func() error {
		e.cancelTimer()
		if err := os.Remove(e.layout.lockPath); err != nil && !os.IsNotExist(err) {
			e.logStatus("could not remove lock file: " + err.Error())
		}
		return nil
	})
	e.tg.AfterStop(func() error {
		if e.log != nil {
			return e.log.Close()
		}
		return nil
	})

	e.logStatus(fmt.Sprintf("engine attached to %s successfully.", e.layout.projectID))
	return nil
}

// reclaimStaleLock inspects any existing lock file, removing it if its PID
// no longer corresponds to a live process, and returns ErrAlreadyOpen if
// the owning process is still alive.
func (e *Engine) reclaimStaleLock() error {
	blob, err := os.ReadFile(e.layout.lockPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.AddContext(err, "could not read lock file")
	}

	pid, parseErr := parseLockPID(string(blob))
	if parseErr != nil {
		e.logStatus("lock file unparseable, treating as stale: " + parseErr.Error())
		return os.Remove(e.layout.lockPath)
	}

	alive, err := process.PidExists(int32(pid))
	if err != nil {
		e.logStatus(fmt.Sprintf("could not verify liveness of PID %d, treating as stale: %v", pid, err))
		return os.Remove(e.layout.lockPath)
	}
	if !alive {
		e.logStatus(fmt.Sprintf("removing stale lock file from crashed PID %d", pid))
		return os.Remove(e.layout.lockPath)
	}
	return ErrAlreadyOpen
}

// parseLockPID extracts the integer PID from a lock file's "PID: <n>"
// contents.
func parseLockPID(contents string) (int, error) {
	parts := strings.SplitN(contents, ":", 2)
	if len(parts) != 2 {
		return 0, errors.New("malformed lock file")
	}
	return strconv.Atoi(strings.TrimSpace(parts[1]))
}

// Detach gracefully shuts down the engine, flushing any pending writes and
// releasing the project lock. Detach is idempotent and always returns nil:
// an I/O fault while releasing the lock is logged, not returned, and on an
// engine that is already inactive Detach is a no-op.
func (e *Engine) Detach() error {
	if !e.IsActive() {
		return nil
	}
	e.logStatus("detaching engine. Performing final sync...")
	e.ForceSync()
	_ = e.tg.Stop()
	e.logStatus("engine detached. Lock released.")
	return nil
}
