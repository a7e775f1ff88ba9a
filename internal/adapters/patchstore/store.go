// Package patchstore manages the on-disk patch artifacts directory: one file
// per patch named by ordinal and subject slug, a hidden backup subdirectory
// holding pre-annotation copies, and the rollback snapshot file.
package patchstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

const (
	// backupDirName is the hidden subdirectory retaining pre-annotation
	// copies. Never pruned by the pipeline.
	backupDirName = ".orig"

	// snapshotFileName persists the rollback snapshot for this run.
	snapshotFileName = ".snapshot"
)

// Store implements domain.PatchStore rooted at a single artifacts directory.
type Store struct {
	dir string

	// now is injectable for deterministic backup suffixes in tests.
	now func() time.Time
}

// New creates a Store rooted at dir. The directory is not touched until
// Prepare is called.
func New(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the artifacts directory root.
func (s *Store) Dir() string {
	return s.dir
}

// Prepare creates a fresh artifacts directory. An existing directory is
// renamed with a timestamp suffix first so prior artifacts are never
// silently deleted.
func (s *Store) Prepare() error {
	if _, err := os.Stat(s.dir); err == nil {
		backup := fmt.Sprintf("%s.bak.%d", s.dir, s.now().Unix())
		if err := os.Rename(s.dir, backup); err != nil {
			return fmt.Errorf("failed to back up existing artifacts dir: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Join(s.dir, backupDirName), 0o755); err != nil {
		return fmt.Errorf("failed to create artifacts dir: %w", err)
	}
	return nil
}

// WritePatch stores one patch under an ordinal-and-slug name and returns its
// path.
func (s *Store) WritePatch(index int, subject, content string) (string, error) {
	name := fmt.Sprintf("%04d-%s.patch", index, Slug(subject))
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write patch %s: %w", name, err)
	}
	return path, nil
}

// ReadPatch returns the current content of a patch file.
func (s *Store) ReadPatch(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read patch: %w", err)
	}
	return string(data), nil
}

// RewritePatch replaces a patch file in place, copying the previous version
// into the hidden backup subdirectory first. The backup keeps the first
// pre-annotation copy: re-annotation must not overwrite it with annotated
// content.
func (s *Store) RewritePatch(path, content string) error {
	backup := filepath.Join(s.dir, backupDirName, filepath.Base(path))
	if _, err := os.Stat(backup); os.IsNotExist(err) {
		prev, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read patch for backup: %w", err)
		}
		if err := os.WriteFile(backup, prev, 0o644); err != nil {
			return fmt.Errorf("failed to back up patch: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to rewrite patch: %w", err)
	}
	return nil
}

// SaveSnapshot persists the rollback snapshot for this run.
func (s *Store) SaveSnapshot(snap domain.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, snapshotFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the persisted rollback snapshot.
func (s *Store) LoadSnapshot() (domain.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, snapshotFileName))
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot unreadable: %w", domain.ErrHistory, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot corrupt: %w", domain.ErrHistory, err)
	}
	return snap, nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug converts a commit subject into a filesystem-safe patch file stem,
// matching git format-patch naming.
func Slug(subject string) string {
	s := strings.ToLower(subject)
	s = slugPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 52 {
		s = strings.Trim(s[:52], "-")
	}
	if s == "" {
		s = "patch"
	}
	return s
}
