package engine

import (
	"encoding/json"
	"time"

	"github.com/uplo-tech/errors"
)

// StageUpdate copies value into the in-memory staging buffer under name
// and (re)arms the debounce timer. A chunk name re-staged before the
// previous timer fires simply overwrites the earlier value and restarts
// the window: only the last value staged within a debounce window is
// ever committed (debounce coalescing).
//
// The deep copy is a JSON marshal/unmarshal round trip, which doubles as
// an early serializability check: a value that cannot round-trip is
// rejected here, before it ever reaches the buffer or blocks a commit
// batch (spec's "serialization" error kind never needs to unwind a
// partially-flushed batch because of this).
func (e *Engine) StageUpdate(name string, value Chunk) error {
	if err := e.tg.Add(); err != nil {
		return ErrNotActive
	}
	defer e.tg.Done()

	cloned, err := deepCopyChunk(value)
	if err != nil {
		e.logFault(errors.AddContext(err, "chunk "+name).Error())
		return errors.Compose(ErrSerialization, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffer[name] = cloned
	e.rearmTimerLocked()
	return nil
}

// FetchChunk's buffer-hit path: callers outside this package never see the
// buffer directly, but the reader needs the same lock and precedence.
func (e *Engine) bufferedChunk(name string) (Chunk, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.buffer[name]
	if !ok {
		return nil, false
	}
	cloned, err := deepCopyChunk(v)
	if err != nil {
		// The value was already validated as serializable when staged; a
		// failure here would indicate memory corruption, not user error.
		return v, true
	}
	return cloned, true
}

// rearmTimerLocked cancels any pending flush timer and starts a new one.
// Must be called with e.mu held.
func (e *Engine) rearmTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounceDelay, e.flush)
}

// cancelTimer stops the pending debounce timer, if any.
func (e *Engine) cancelTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// ForceSync cancels any pending timer and flushes the staging buffer
// synchronously on the calling goroutine.
func (e *Engine) ForceSync() {
	if err := e.tg.Add(); err != nil {
		return
	}
	defer e.tg.Done()
	e.cancelTimer()
	e.flush()
}

// flush drains the staging buffer and commits every chunk in the batch. It
// is invoked either by the debounce timer or directly by ForceSync/Detach.
// The engine mutex is held across the entire batch: the
// commit batch is the one place a single critical section spans multiple
// blocking disk operations.
func (e *Engine) flush() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.buffer) == 0 || e.tg.IsStopped() {
		return
	}

	batch := e.buffer
	e.buffer = make(map[string]Chunk)
	e.timer = nil

	var firstFault error
	for name, value := range batch {
		if err := e.commitChunk(name, value); err != nil {
			if firstFault == nil {
				firstFault = errors.AddContext(err, "chunk "+name)
			}
		}
	}

	if firstFault != nil {
		e.logFault("sync failure: " + firstFault.Error())
		return
	}
	e.observer.Sync()
}

// deepCopyChunk clones a Chunk via a JSON round trip. A value that is not
// serializable to JSON surfaces here as an error rather than as a panic or
// a later, harder-to-diagnose write failure.
func deepCopyChunk(v Chunk) (Chunk, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var cloned Chunk
	if err := json.Unmarshal(blob, &cloned); err != nil {
		return nil, err
	}
	return cloned, nil
}
