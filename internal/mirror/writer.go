package mirror

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sirupsen/logrus"
)

// Outcome describes what a write did to the mirror tree
type Outcome int

const (
	Unchanged Outcome = iota
	Created
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// ChangeStats counts characters inserted and deleted by an update
type ChangeStats struct {
	Inserted int
	Deleted  int
}

// Writer persists files under the mirror root, touching only what changed
type Writer struct {
	root  string
	locks *PathLocks
	dmp   *diffmatchpatch.DiffMatchPatch
}

// NewWriter creates a writer rooted at dir
func NewWriter(dir string) *Writer {
	return &Writer{
		root:  dir,
		locks: NewPathLocks(),
		dmp:   diffmatchpatch.New(),
	}
}

// Root returns the mirror root directory
func (w *Writer) Root() string {
	return w.root
}

// Path returns the absolute location of a mirror-relative path
func (w *Writer) Path(rel string) string {
	return filepath.Join(w.root, rel)
}

// EnsureRoot creates the mirror root if it is missing
func (w *Writer) EnsureRoot() error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("failed to create mirror dir: %w", err)
	}
	return nil
}

// WriteIfChanged stores content at rel unless the file already holds exactly that content
func (w *Writer) WriteIfChanged(rel string, content []byte) (Outcome, error) {
	dest := w.Path(rel)
	unlock := w.locks.Lock(dest)
	defer unlock()

	existing, err := os.ReadFile(dest)
	switch {
	case err == nil && bytes.Equal(existing, content):
		return Unchanged, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return Unchanged, fmt.Errorf("failed to read %s: %w", dest, err)
	}

	if err := writeFile(dest, content); err != nil {
		return Unchanged, err
	}

	if errors.Is(err, fs.ErrNotExist) {
		logrus.Infof("Created %s", rel)
		return Created, nil
	}

	stats := w.diffStats(string(existing), string(content))
	logrus.Infof("Updated %s (+%d/-%d chars)", rel, stats.Inserted, stats.Deleted)
	return Updated, nil
}

// WriteNew stores the result of produce at rel only if nothing exists there yet.
// The existence check, produce and the write happen under the path's lock.
func (w *Writer) WriteNew(rel string, produce func() ([]byte, error)) (bool, error) {
	dest := w.Path(rel)
	unlock := w.locks.Lock(dest)
	defer unlock()

	if _, err := os.Stat(dest); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", dest, err)
	}

	content, err := produce()
	if err != nil {
		return false, err
	}
	if err := writeFile(dest, content); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Writer) diffStats(before, after string) ChangeStats {
	var stats ChangeStats
	for _, d := range w.dmp.DiffMain(before, after, false) {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.Inserted += len([]rune(d.Text))
		case diffmatchpatch.DiffDelete:
			stats.Deleted += len([]rune(d.Text))
		}
	}
	return stats
}

// writeFile replaces dest through a temp file so readers never see a torn write
func writeFile(dest string, content []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", dest, err)
	}
	return nil
}
