package engine

import (
	"encoding/json"
	"os"
	"testing"
	"time"
)

// TestCommitWritesPrimaryAndNoTempLeftover tests that a successful commit
// leaves a clean primary file and no stray temp artifact.
func TestCommitWritesPrimaryAndNoTempLeftover(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, "demo", WithDebounceDelay(time.Hour))

	if err := e.StageUpdate("doc", Chunk{"title": "first"}); err != nil {
		t.Fatal(err)
	}
	e.ForceSync()

	primary := e.layout.chunkPrimaryPath("doc")
	blob, err := os.ReadFile(primary)
	if err != nil {
		t.Fatal(err)
	}
	var v Chunk
	if err := json.Unmarshal(blob, &v); err != nil {
		t.Fatal(err)
	}
	if v["title"] != "first" {
		t.Fatalf("unexpected primary contents: %+v", v)
	}
	if _, err := os.Stat(e.layout.chunkTempPath("doc")); !os.IsNotExist(err) {
		t.Fatal("temp file was left behind after a successful commit")
	}
}

// TestCommitRotatesBackupBeforeOverwritingPrimary tests that the value
// committed just before the most recent one is preserved in the backup
// file (backup lags primary by at most one commit).
func TestCommitRotatesBackupBeforeOverwritingPrimary(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, "demo", WithDebounceDelay(time.Hour))

	if err := e.StageUpdate("doc", Chunk{"title": "v1"}); err != nil {
		t.Fatal(err)
	}
	e.ForceSync()

	if err := e.StageUpdate("doc", Chunk{"title": "v2"}); err != nil {
		t.Fatal(err)
	}
	e.ForceSync()

	if err := e.StageUpdate("doc", Chunk{"title": "v3"}); err != nil {
		t.Fatal(err)
	}
	e.ForceSync()

	primary := readChunkFileForTest(t, e.layout.chunkPrimaryPath("doc"))
	backup := readChunkFileForTest(t, e.layout.chunkBackupPath("doc"))

	if primary["title"] != "v3" {
		t.Fatalf("expected primary to hold the latest commit, got %+v", primary)
	}
	if backup["title"] != "v2" {
		t.Fatalf("expected backup to hold the prior commit, got %+v", backup)
	}
}

// TestCommitWithoutPriorPrimarySkipsBackup tests that the very first commit
// of a chunk does not create a backup file, since there is nothing to
// rotate yet.
func TestCommitWithoutPriorPrimarySkipsBackup(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, "demo", WithDebounceDelay(time.Hour))

	if err := e.StageUpdate("fresh", Chunk{"v": 1}); err != nil {
		t.Fatal(err)
	}
	e.ForceSync()

	if _, err := os.Stat(e.layout.chunkBackupPath("fresh")); !os.IsNotExist(err) {
		t.Fatal("did not expect a backup file for a chunk's first commit")
	}
}

// TestFlushCommitsEveryChunkDespiteOneFailure tests that a fault committing
// one chunk in a batch does not prevent the others from being committed.
func TestFlushCommitsEveryChunkDespiteOneFailure(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, "demo", WithDebounceDelay(time.Hour))

	if err := e.StageUpdate("good-one", Chunk{"ok": true}); err != nil {
		t.Fatal(err)
	}
	if err := e.StageUpdate("good-two", Chunk{"ok": true}); err != nil {
		t.Fatal(err)
	}

	// Put a directory at the good-two temp path so the temp-write
	// step for that chunk fails, without touching good-one's path.
	if err := os.MkdirAll(e.layout.chunkTempPath("good-two"), 0700); err != nil {
		t.Fatal(err)
	}

	e.ForceSync()

	v, err := e.FetchChunk("good-one")
	if err != nil {
		t.Fatal(err)
	}
	if v["ok"] != true {
		t.Fatalf("expected good-one to have committed despite good-two's failure, got %+v", v)
	}
}

func readChunkFileForTest(t *testing.T, path string) Chunk {
	t.Helper()
	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var v Chunk
	if err := json.Unmarshal(blob, &v); err != nil {
		t.Fatal(err)
	}
	return v
}
