package engine

import "time"

const (
	// DefaultBaseDir is the root directory projects live under when the
	// caller does not specify one.
	DefaultBaseDir = "user_projects"

	// DefaultDebounceDelay is how long StageUpdate waits after the last
	// call before flushing to disk.
	DefaultDebounceDelay = time.Second

	// DefaultRetention is the number of checkpoint archives kept per
	// project when CreateCheckpoint's caller does not specify one.
	DefaultRetention = 10

	// maxLabelLength is the truncation length applied to a sanitized
	// checkpoint label.
	maxLabelLength = 30

	// checkpointTimestampLayout renders a checkpoint filename's timestamp
	// suffix as YYYYMMDD_HHMMSS.
	checkpointTimestampLayout = "20060102_150405"

	// dirPermissions is applied to every directory the engine creates.
	dirPermissions = 0700

	// filePermissions is applied to every primary/backup/temp chunk file.
	filePermissions = 0600
)
