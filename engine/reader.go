package engine

import (
	"encoding/json"
	"fmt"
	"os"
)

// FetchChunk returns the current value of a chunk, resolving it through the
// precedence chain staging buffer -> primary file -> backup file -> empty
// document. FetchChunk never returns a non-nil error for a missing or
// corrupt chunk: a fault on this path is reported to the Observer, and an
// empty Chunk is handed back so a caller can keep working.
func (e *Engine) FetchChunk(name string) (Chunk, error) {
	if err := e.tg.Add(); err != nil {
		return nil, ErrNotActive
	}
	defer e.tg.Done()

	if v, ok := e.bufferedChunk(name); ok {
		return v, nil
	}

	primary, primaryExisted, primaryOK := e.readChunkFile(e.layout.chunkPrimaryPath(name))
	if primaryOK {
		return primary, nil
	}
	if primaryExisted {
		e.logFault(fmt.Sprintf("primary copy of chunk %q exists but failed to parse, falling back to backup", name))
	}

	backup, backupExisted, backupOK := e.readChunkFile(e.layout.chunkBackupPath(name))
	if backupOK {
		// The primary is broken but the backup is good: repair the primary
		// by re-staging the recovered value, which will be committed on the
		// next debounce flush exactly like any other write.
		if err := e.StageUpdate(name, backup); err != nil {
			e.logFault(fmt.Sprintf("chunk %q recovered from backup but could not be re-staged: %v", name, err))
		} else {
			e.logStatus(fmt.Sprintf("chunk %q repaired from backup copy", name))
		}
		return backup, nil
	}

	if primaryExisted && backupExisted {
		e.logFault(fmt.Sprintf("%v: chunk %q (both primary and backup failed to parse)", ErrTotalLoss, name))
	} else if backupExisted {
		e.logFault(fmt.Sprintf("backup copy of chunk %q exists but failed to parse", name))
	}
	// Neither file existed: the chunk was simply never written, which is
	// not a fault.
	return Chunk{}, nil
}

// readChunkFile reads and parses a chunk file. existed reports whether the
// file was present at all; ok reports whether it was present and parsed
// cleanly. A missing file is existed=false, ok=false and is never a fault;
// a present-but-unparseable file is existed=true, ok=false and is the only
// case FetchChunk treats as worth reporting.
func (e *Engine) readChunkFile(path string) (value Chunk, existed bool, ok bool) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, false
		}
		return nil, true, false
	}
	var v Chunk
	if err := json.Unmarshal(blob, &v); err != nil {
		return nil, true, false
	}
	if v == nil {
		v = Chunk{}
	}
	return v, true, true
}

// ListChunks returns the names of every chunk with a primary file on disk.
// Chunks that exist only in the staging buffer are not yet durable and are
// intentionally excluded.
func (e *Engine) ListChunks() ([]string, error) {
	if err := e.tg.Add(); err != nil {
		return nil, ErrNotActive
	}
	defer e.tg.Done()

	entries, err := os.ReadDir(e.layout.chunksPath)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		const suffix = ".json"
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			names = append(names, name[:len(name)-len(suffix)])
		}
	}
	return names, nil
}
