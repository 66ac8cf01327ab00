package engine

import "github.com/uplo-tech/errors"

// The engine's error taxonomy is kind-based, not name-based: callers use
// errors.Contains(err, ErrX) rather than type-asserting a concrete error
// type.
var (
	// ErrNotActive is returned by every mutating entry point when the
	// engine is not currently attached to its project.
	ErrNotActive = errors.New("engine is not active")

	// ErrAlreadyOpen is returned by Open when another live process already
	// owns the project's lock.
	ErrAlreadyOpen = errors.New("project is already open in another process")

	// ErrProjectNotFound is returned by Open when no project exists at the
	// requested path.
	ErrProjectNotFound = errors.New("project not found")

	// ErrSerialization is returned when a staged value cannot be encoded to
	// the chunk document format.
	ErrSerialization = errors.New("value could not be serialized")

	// ErrIntegrity is returned when a freshly written chunk fails to parse
	// back after being written; the temp file is left in place for
	// diagnostics and is swept up on the next Attach.
	ErrIntegrity = errors.New("written chunk failed integrity verification")

	// ErrTotalLoss is reported via the fault callback (never returned, by
	// contract fetch never fails) when both a chunk's primary and backup
	// fail to parse.
	ErrTotalLoss = errors.New("total data loss for chunk")

	// ErrCheckpointNotFound is returned by RestoreCheckpoint when the named
	// archive does not exist.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrDeleteNotConfirmed is returned by DeleteProject when called
	// without the confirmed flag set.
	ErrDeleteNotConfirmed = errors.New("delete project requires explicit confirmation")
)
