package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/aluiziolira/go-rank-watch/models"
)

// Manifest logical entry names.
const (
	ManifestLatest   = "latest"
	ManifestPrevious = "previous"
)

const manifestFilename = "manifest.json"

// Manifest maps logical snapshot names to filenames inside the store
// directory. It is the only source of truth for which snapshot is current;
// nothing lists the directory.
type Manifest struct {
	Entries   map[string]string `json:"entries"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store owns a directory of dated snapshot files plus their manifest.
type Store struct {
	dir string
}

// NewStore creates the snapshot directory if needed and returns a store
// over it.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// SnapshotPath returns the dated filename a snapshot captured at t is
// stored under. Two runs on the same day share one path; the later run
// replaces the earlier file.
func (s *Store) SnapshotPath(t time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("rank_base_%s.csv", t.UTC().Format("2006-01-02")))
}

// Write persists the snapshot under its dated filename. The file appears
// atomically: the CSV is written to a temp file in the same directory and
// renamed over the target, so readers never observe a partial snapshot.
func (s *Store) Write(snap *models.Snapshot) (string, error) {
	path := s.SnapshotPath(snap.CapturedAt)

	tmp, err := os.CreateTemp(s.dir, ".rank_base_*.tmp")
	if err != nil {
		return "", WriteError{Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := EncodeCSV(tmp, snap); err != nil {
		tmp.Close()
		return "", WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", WriteError{Path: path, Err: err}
	}
	return path, nil
}

// Load reads and validates a snapshot file.
func (s *Store) Load(path string) (*models.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer f.Close()

	snap, err := DecodeCSV(f)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot %s invalid: %w", path, err)
	}
	return snap, nil
}

// LoadBaseline reads the snapshot a comparison runs against. Only here does
// a missing file mean anything special: it comes back as
// BaselineMissingError, which callers treat as a first run rather than a
// failure.
func (s *Store) LoadBaseline(path string) (*models.Snapshot, error) {
	snap, err := s.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil, BaselineMissingError{Path: path}
	}
	return snap, err
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, manifestFilename)
}

// LoadManifest reads the manifest, returning an empty one when none exists
// yet.
func (s *Store) LoadManifest() (*Manifest, error) {
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Manifest{Entries: make(map[string]string)}, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if manifest.Entries == nil {
		manifest.Entries = make(map[string]string)
	}
	return &manifest, nil
}

// Resolve maps a logical manifest name to an absolute snapshot path. The
// second return is false when the manifest has no such entry.
func (s *Store) Resolve(name string) (string, bool, error) {
	manifest, err := s.LoadManifest()
	if err != nil {
		return "", false, err
	}
	filename, ok := manifest.Entries[name]
	if !ok || filename == "" {
		return "", false, nil
	}
	return filepath.Join(s.dir, filename), true, nil
}

// Baseline returns the snapshot path to diff currentPath against: the
// manifest's latest entry, unless that already names currentPath itself
// (a same-day rerun), in which case the previous entry is used. The second
// return is false when no baseline exists.
func (s *Store) Baseline(currentPath string) (string, bool, error) {
	manifest, err := s.LoadManifest()
	if err != nil {
		return "", false, err
	}

	current := filepath.Base(currentPath)
	for _, name := range []string{ManifestLatest, ManifestPrevious} {
		filename := manifest.Entries[name]
		if filename == "" || filename == current {
			continue
		}
		return filepath.Join(s.dir, filename), true, nil
	}
	return "", false, nil
}

// Rotate commits latestPath as the manifest's latest snapshot, demoting the
// old latest to previous. A same-day rerun keeps previous untouched so the
// baseline stays a genuinely earlier capture. The manifest is replaced
// atomically; callers rotate only after every other artifact of the run has
// been written.
func (s *Store) Rotate(latestPath string) error {
	manifest, err := s.LoadManifest()
	if err != nil {
		return err
	}

	latest := filepath.Base(latestPath)
	if old := manifest.Entries[ManifestLatest]; old != "" && old != latest {
		manifest.Entries[ManifestPrevious] = old
	}
	manifest.Entries[ManifestLatest] = latest
	manifest.UpdatedAt = time.Now().UTC()

	return s.writeManifest(manifest)
}

func (s *Store) writeManifest(manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return WriteError{Path: s.manifestPath(), Err: err}
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".manifest_*.tmp")
	if err != nil {
		return WriteError{Path: s.manifestPath(), Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return WriteError{Path: s.manifestPath(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		return WriteError{Path: s.manifestPath(), Err: err}
	}
	if err := os.Rename(tmp.Name(), s.manifestPath()); err != nil {
		return WriteError{Path: s.manifestPath(), Err: err}
	}
	return nil
}
