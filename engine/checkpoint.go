package engine

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/uplo-tech/errors"

	"github.com/uplo-tech/chunkvault/build"
)

func init() {
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

var labelSanitizer = regexp.MustCompile(`[^\w\-]`)

// checkpointMeta is the shape persisted as checkpoint_meta.json inside every
// checkpoint archive: timestamp, label, notes, engine_ver.
type checkpointMeta struct {
	Timestamp string `json:"timestamp"`
	Label     string `json:"label"`
	Notes     string `json:"notes"`
	EngineVer string `json:"engine_ver"`
}

// CheckpointInfo describes one archive returned by ListCheckpoints.
type CheckpointInfo struct {
	Filename  string `json:"filename"`
	Label     string `json:"label"`
	Notes     string `json:"notes"`
	Timestamp string `json:"timestamp"`
}

// sanitizeLabel replaces everything but word characters and hyphens in a
// checkpoint label with underscores, then truncates it.
func sanitizeLabel(label string) string {
	if label == "" {
		label = "checkpoint"
	}
	clean := labelSanitizer.ReplaceAllString(label, "_")
	if len(clean) > maxLabelLength {
		clean = clean[:maxLabelLength]
	}
	if clean == "" {
		clean = "checkpoint"
	}
	return clean
}

// CreateCheckpoint forces a sync, then snapshots every primary file
// (chunks/*.json, plus metadata) into a single retention-managed zip archive
// under checkpoints/. It returns the archive's filename.
func (e *Engine) CreateCheckpoint(label, notes string, retention int) (string, error) {
	if err := e.tg.Add(); err != nil {
		return "", ErrNotActive
	}
	defer e.tg.Done()

	e.ForceSync()

	if retention <= 0 {
		retention = e.retention
	}

	clean := sanitizeLabel(label)
	stamp := time.Now().Format(checkpointTimestampLayout)
	filename := fmt.Sprintf("cp_%s_%s.zip", clean, stamp)
	archivePath := filepath.Join(e.layout.checkpointPath, filename)

	if err := e.writeCheckpointArchive(archivePath, clean, notes, stamp); err != nil {
		_ = os.Remove(archivePath)
		return "", errors.AddContext(err, "could not create checkpoint")
	}

	if err := e.enforceRetention(retention); err != nil {
		e.logFault("checkpoint retention sweep failed: " + err.Error())
	}

	e.logStatus("checkpoint created: " + filename)
	return filename, nil
}

func (e *Engine) writeCheckpointArchive(archivePath, label, notes, stamp string) (err error) {
	out, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Compose(err, out.Close())
	}()

	zw := zip.NewWriter(out)
	defer func() {
		err = errors.Compose(err, zw.Close())
	}()

	meta := checkpointMeta{
		Timestamp: stamp,
		Label:     label,
		Notes:     notes,
		EngineVer: build.Version,
	}
	metaBlob, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return err
	}
	mw, err := zw.Create("checkpoint_meta.json")
	if err != nil {
		return err
	}
	if _, err := mw.Write(metaBlob); err != nil {
		return err
	}

	entries, err := os.ReadDir(e.layout.chunksPath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := addFileToZip(zw, filepath.Join("chunks", entry.Name()), filepath.Join(e.layout.chunksPath, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func addFileToZip(zw *zip.Writer, archiveName, diskPath string) error {
	blob, err := os.ReadFile(diskPath)
	if err != nil {
		return err
	}
	header := &zip.FileHeader{
		Name:   filepath.ToSlash(archiveName),
		Method: zip.Deflate,
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = w.Write(blob)
	return err
}

// enforceRetention deletes the oldest checkpoint archives, by filesystem
// mtime, until at most retention remain.
func (e *Engine) enforceRetention(retention int) error {
	matches, err := filepath.Glob(filepath.Join(e.layout.checkpointPath, "cp_*.zip"))
	if err != nil {
		return err
	}
	if len(matches) <= retention {
		return nil
	}

	type aged struct {
		path    string
		modTime time.Time
	}
	var archives []aged
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		archives = append(archives, aged{path: m, modTime: info.ModTime()})
	}
	sort.Slice(archives, func(i, j int) bool {
		if archives[i].modTime.Equal(archives[j].modTime) {
			return archives[i].path < archives[j].path
		}
		return archives[i].modTime.Before(archives[j].modTime)
	})

	excess := len(archives) - retention
	var firstErr error
	for i := 0; i < excess; i++ {
		if err := os.Remove(archives[i].path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ListCheckpoints enumerates checkpoint archives newest first, skipping any
// that cannot be read or parsed.
func (e *Engine) ListCheckpoints() ([]CheckpointInfo, error) {
	if err := e.tg.Add(); err != nil {
		return nil, ErrNotActive
	}
	defer e.tg.Done()

	matches, err := filepath.Glob(filepath.Join(e.layout.checkpointPath, "cp_*.zip"))
	if err != nil {
		return nil, err
	}
	var infos []CheckpointInfo
	for _, m := range matches {
		meta, err := readCheckpointMeta(m)
		if err != nil {
			e.logStatus(fmt.Sprintf("skipping unreadable checkpoint %s: %v", m, err))
			continue
		}
		infos = append(infos, CheckpointInfo{
			Filename:  filepath.Base(m),
			Label:     meta.Label,
			Notes:     meta.Notes,
			Timestamp: meta.Timestamp,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp > infos[j].Timestamp
	})
	return infos, nil
}

func readCheckpointMeta(archivePath string) (checkpointMeta, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return checkpointMeta{}, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "checkpoint_meta.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return checkpointMeta{}, err
		}
		defer rc.Close()
		var meta checkpointMeta
		if err := json.NewDecoder(rc).Decode(&meta); err != nil {
			return checkpointMeta{}, err
		}
		return meta, nil
	}
	return checkpointMeta{}, errors.New("checkpoint archive missing checkpoint_meta.json")
}

// RestoreCheckpoint replaces the project's entire chunk set with the
// contents of a previously created archive. It cancels the debounce timer
// and discards any unsaved staged writes: restore is a hard reset.
func (e *Engine) RestoreCheckpoint(filename string) error {
	if err := e.tg.Add(); err != nil {
		return ErrNotActive
	}
	defer e.tg.Done()

	archivePath := filepath.Join(e.layout.checkpointPath, filename)
	if _, err := os.Stat(archivePath); os.IsNotExist(err) {
		return ErrCheckpointNotFound
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.AddContext(err, "could not open checkpoint archive")
	}
	defer r.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.buffer = make(map[string]Chunk)

	if err := clearDir(e.layout.chunksPath); err != nil {
		return errors.AddContext(err, "could not clear chunks directory")
	}
	if err := clearDir(e.layout.backupPath); err != nil {
		return errors.AddContext(err, "could not clear backup directory")
	}

	for _, f := range r.File {
		if f.Name == "checkpoint_meta.json" {
			continue
		}
		if err := extractZipEntry(f, e.layout.projectPath); err != nil {
			return errors.AddContext(err, "could not extract "+f.Name)
		}
	}

	e.logStatus("restored checkpoint " + filename)
	return nil
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// extractZipEntry writes one archive member to disk under destRoot, refusing
// any entry whose name would escape destRoot (zip-slip).
func extractZipEntry(f *zip.File, destRoot string) error {
	cleanName := filepath.Clean(f.Name)
	if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
		return errors.New("checkpoint archive contains an unsafe path: " + f.Name)
	}
	target := filepath.Join(destRoot, cleanName)
	if !strings.HasPrefix(target, filepath.Clean(destRoot)+string(os.PathSeparator)) {
		return errors.New("checkpoint archive entry escapes project directory: " + f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, dirPermissions)
	}
	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return out.Sync()
}
