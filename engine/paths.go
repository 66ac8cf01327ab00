package engine

import (
	"os"
	"path/filepath"
)

// layout is the deterministic folder/file naming scheme for one project,
// derived mechanically from a root directory and a project id (spec C1).
type layout struct {
	root           string
	projectID      string
	projectPath    string
	chunksPath     string
	backupPath     string
	checkpointPath string
	lockPath       string
	versionPath    string
}

// newLayout derives every path a project needs from its root and id. It
// does not touch the filesystem.
func newLayout(root, projectID string) layout {
	projectPath := filepath.Join(root, projectID)
	return layout{
		root:           root,
		projectID:      projectID,
		projectPath:    projectPath,
		chunksPath:     filepath.Join(projectPath, "chunks"),
		backupPath:     filepath.Join(projectPath, "chunks_bak"),
		checkpointPath: filepath.Join(projectPath, "checkpoints"),
		lockPath:       filepath.Join(projectPath, ".lock"),
		versionPath:    filepath.Join(projectPath, "version.json"),
	}
}

// chunkPrimaryPath returns chunks/<name>.json.
func (l layout) chunkPrimaryPath(name string) string {
	return filepath.Join(l.chunksPath, name+".json")
}

// chunkBackupPath returns chunks_bak/<name>.bak.
func (l layout) chunkBackupPath(name string) string {
	return filepath.Join(l.backupPath, name+".bak")
}

// chunkTempPath returns chunks/<name>.tmp. The name is deterministic (not
// randomized) so that a crashed commit leaves a predictable artifact that
// attach-time cleanup can find by globbing "*.tmp".
func (l layout) chunkTempPath(name string) string {
	return filepath.Join(l.chunksPath, name+".tmp")
}

// projectExists reports whether a directory exists at root/projectID,
// without requiring it to already have the chunks/ subdirectory; used by
// Open to distinguish "not found" from other failures.
func projectExists(root, projectID string) bool {
	info, err := os.Stat(filepath.Join(root, projectID))
	return err == nil && info.IsDir()
}
