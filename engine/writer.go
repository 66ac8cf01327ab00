package engine

import (
	"encoding/json"
	"io"
	"os"

	"github.com/uplo-tech/errors"
)

// commitChunk runs the five-step atomic commit protocol for one chunk
// The caller holds e.mu for the duration of the whole batch;
// a fault committing one chunk must not prevent the remaining chunks of
// the same flush from being attempted, so every error here is returned to
// the caller (flush) rather than panicking.
func (e *Engine) commitChunk(name string, value Chunk) error {
	primary := e.layout.chunkPrimaryPath(name)
	backup := e.layout.chunkBackupPath(name)
	temp := e.layout.chunkTempPath(name)

	// 1. Serialize.
	data, err := json.MarshalIndent(value, "", "    ")
	if err != nil {
		return errors.Compose(ErrSerialization, err)
	}

	// 2. Temp write: truncate, write, flush, fsync, close.
	f, err := os.OpenFile(temp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return errors.AddContext(err, "could not open temp file")
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.AddContext(err, "could not write temp file")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.AddContext(err, "could not fsync temp file")
	}
	if err := f.Close(); err != nil {
		return errors.AddContext(err, "could not close temp file")
	}

	// 3. Verify by re-parsing. A failure here is an integrity fault; the
	// temp file is deliberately left in place for diagnostics and will be
	// swept up by cleanStaleTemps on the next Attach.
	if err := verifyChunkFile(temp); err != nil {
		return errors.Compose(ErrIntegrity, err)
	}

	// 4. Rotate backup: copy the current primary over the backup before
	// the swap, skipping if there is no primary yet.
	if _, err := os.Stat(primary); err == nil {
		if err := copyFilePreservingContents(primary, backup); err != nil {
			return errors.AddContext(err, "could not rotate backup")
		}
	} else if !os.IsNotExist(err) {
		return errors.AddContext(err, "could not stat primary")
	}

	// 5. Swap: rename is atomic on POSIX filesystems when source and
	// destination share a directory, which chunks/<name>.tmp and
	// chunks/<name>.json always do.
	if err := os.Rename(temp, primary); err != nil {
		return errors.AddContext(err, "could not swap temp file into place")
	}
	return nil
}

// verifyChunkFile re-parses a just-written chunk file to confirm it
// round-trips, catching any integrity fault before it is ever promoted to
// primary.
func verifyChunkFile(path string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var v Chunk
	return json.Unmarshal(blob, &v)
}

// copyFilePreservingContents copies src to dst, overwriting dst if it
// already exists. Metadata (mode, mtime) is not preserved, matching the
// spec's "desirable, not required" note on backup rotation.
func copyFilePreservingContents(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Compose(err, sf.Close())
	}()

	df, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Compose(err, df.Close())
	}()

	if _, err = io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
