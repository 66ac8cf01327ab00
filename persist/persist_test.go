package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/uplo-tech/chunkvault/build"
)

var testMeta = Metadata{Header: "test header", Version: "1.0"}

// TestSaveLoadJSON tests that a value saved with SaveJSON round-trips
// through LoadJSON unchanged.
func TestSaveLoadJSON(t *testing.T) {
	t.Parallel()
	dir := build.TempDir(t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "object.json")

	type payload struct {
		Name  string
		Count int
	}
	want := payload{Name: "first chunk", Count: 7}
	if err := SaveJSON(testMeta, want, path); err != nil {
		t.Fatal(err)
	}

	var got payload
	if err := LoadJSON(testMeta, &got, path); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

// TestLoadJSONBadHeader tests that LoadJSON rejects a file saved under a
// different metadata header.
func TestLoadJSONBadHeader(t *testing.T) {
	t.Parallel()
	dir := build.TempDir(t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "object.json")

	if err := SaveJSON(testMeta, "value", path); err != nil {
		t.Fatal(err)
	}

	other := Metadata{Header: "different header", Version: "1.0"}
	var s string
	err := LoadJSON(other, &s, path)
	if err == nil {
		t.Fatal("expected an error loading with a mismatched header")
	}
}

// TestLoadJSONBadVersion tests that LoadJSON rejects a file saved under a
// different metadata version.
func TestLoadJSONBadVersion(t *testing.T) {
	t.Parallel()
	dir := build.TempDir(t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "object.json")

	if err := SaveJSON(testMeta, "value", path); err != nil {
		t.Fatal(err)
	}

	other := Metadata{Header: testMeta.Header, Version: "2.0"}
	var s string
	err := LoadJSON(other, &s, path)
	if err == nil {
		t.Fatal("expected an error loading with a mismatched version")
	}
}

// TestAtomicWriteFileNoPartial tests that AtomicWriteFile never leaves a
// temp file behind on success, and that the final file contains exactly
// what was written.
func TestAtomicWriteFileNoPartial(t *testing.T) {
	t.Parallel()
	dir := build.TempDir(t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "file.bin")

	data := []byte("hello chunkvault")
	if err := AtomicWriteFile(path, data); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Fatalf("got %q, want %q", got, data)
	}
	if _, err := os.Stat(path + "_temp"); !os.IsNotExist(err) {
		t.Fatal("temp file was left behind after a successful atomic write")
	}
}

// TestAtomicWriteFileOverwrites tests that a second AtomicWriteFile call
// fully replaces the first file's contents rather than appending.
func TestAtomicWriteFileOverwrites(t *testing.T) {
	t.Parallel()
	dir := build.TempDir(t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "file.bin")

	if err := AtomicWriteFile(path, []byte("first version, much longer than the second")); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWriteFile(path, []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("got %q, want %q", got, "second")
	}
}

// TestRemoveFile tests that RemoveFile deletes an existing file and does
// not error on one that is already gone.
func TestRemoveFile(t *testing.T) {
	t.Parallel()
	dir := build.TempDir(t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "file.bin")
	if err := AtomicWriteFile(path, []byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := RemoveFile(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file still exists after RemoveFile")
	}
	if err := RemoveFile(path); err != nil {
		t.Fatal("RemoveFile on an already-missing file should not error:", err)
	}
}

// TestUIDUnique tests that UID produces distinct identifiers across calls.
func TestUIDUnique(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := UID()
		if seen[id] {
			t.Fatalf("UID produced a duplicate: %s", id)
		}
		seen[id] = true
	}
}

// TestEnvelopeIsPlainJSONObject tests that a saved file is itself valid
// JSON with the expected envelope fields, independent of this package's own
// loader, so that an external tool could read it without the Go type.
func TestEnvelopeIsPlainJSONObject(t *testing.T) {
	t.Parallel()
	dir := build.TempDir(t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "object.json")
	if err := SaveJSON(testMeta, map[string]int{"a": 1}, path); err != nil {
		t.Fatal(err)
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(blob, &generic); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"header", "version", "data"} {
		if _, ok := generic[field]; !ok {
			t.Fatalf("envelope missing field %q", field)
		}
	}
}
