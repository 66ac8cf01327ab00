// Package persist provides the atomic file-write primitive
// (AtomicWriteFile) that the engine's version.json and lock file writes are
// built on, plus an optional envelope-wrapped JSON save/load pair
// (SaveJSON/LoadJSON) for callers that want a self-describing format. Chunk
// primaries do not go through this package: the engine's writer runs its
// own temp-write/fsync/rename sequence with backup rotation.
package persist

import (
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/uplo-tech/errors"
	"github.com/uplo-tech/fastrand"
)

const (
	// randomBytes is the number of bytes used for RandomSuffix/UID.
	randomBytes = 20

	// tempSuffix is the suffix applied to the temporary file used while
	// atomically replacing an envelope file.
	tempSuffix = "_temp"

	// filePermissions is the permission bits used for all files this
	// package writes.
	filePermissions = 0600
)

var (
	// ErrBadHeader indicates that the file opened does not carry the
	// expected envelope header.
	ErrBadHeader = errors.New("wrong header")

	// ErrBadVersion indicates that the envelope's version is not the one
	// the caller expected.
	ErrBadVersion = errors.New("incompatible version")
)

// Metadata identifies the kind and version of an enveloped JSON file, the
// way an on-disk format's magic number and version field would.
type Metadata struct {
	Header  string
	Version string
}

// envelope is the on-disk shape of every file SaveJSON writes.
type envelope struct {
	Header  string          `json:"header"`
	Version string          `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// RandomSuffix returns a 20-character hex suffix with enough entropy that
// collisions between concurrently-minted filenames are not a practical
// concern.
func RandomSuffix() string {
	return hex.EncodeToString(fastrand.Bytes(randomBytes))[:20]
}

// UID returns a hex-encoded string usable as a unique identifier.
func UID() string {
	return hex.EncodeToString(fastrand.Bytes(randomBytes))
}

// AtomicWriteFile writes data to filename via temp-write, flush, fsync,
// rename-over, so that readers never observe a partially written file and a
// crash mid-write leaves the previous contents of filename untouched.
func AtomicWriteFile(filename string, data []byte) error {
	tmp := filename + tempSuffix
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return errors.AddContext(err, "could not create temp file")
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
	if err := os.Rename(tmp, filename); err != nil {
		return errors.AddContext(err, "could not swap temp file into place")
	}
	return nil
}

// SaveJSON atomically writes object to filename, wrapped in an envelope
// carrying meta's header and version.
func SaveJSON(meta Metadata, object interface{}, filename string) error {
	data, err := json.Marshal(object)
	if err != nil {
		return errors.AddContext(err, "could not marshal object")
	}
	env := envelope{Header: meta.Header, Version: meta.Version, Data: data}
	blob, err := json.MarshalIndent(env, "", "    ")
	if err != nil {
		return errors.AddContext(err, "could not marshal envelope")
	}
	return AtomicWriteFile(filename, blob)
}

// LoadJSON reads filename, verifies its envelope matches meta, and
// unmarshals the enclosed data into object.
func LoadJSON(meta Metadata, object interface{}, filename string) error {
	blob, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return errors.AddContext(err, "could not decode envelope")
	}
	if env.Header != meta.Header {
		return ErrBadHeader
	}
	if env.Version != meta.Version {
		return ErrBadVersion
	}
	if err := json.Unmarshal(env.Data, object); err != nil {
		return errors.AddContext(err, "could not decode payload")
	}
	return nil
}

// RemoveFile removes filename along with any leftover temp file from an
// interrupted AtomicWriteFile.
func RemoveFile(filename string) error {
	if err := os.RemoveAll(filename); err != nil {
		return err
	}
	return os.RemoveAll(filename + tempSuffix)
}
