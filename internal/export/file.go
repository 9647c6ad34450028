package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultFileMode is the mode of an export that does not replace a file.
const defaultFileMode os.FileMode = 0o644

// AtomicFile is an output file that only replaces its destination on Commit.
// Readers of the destination see either the previous content or the new
// content, never a partial export.
type AtomicFile struct {
	*os.File
	path string
	done bool
}

// CreateAtomic opens a temporary file next to path.
func CreateAtomic(path string) (*AtomicFile, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	return &AtomicFile{File: tmp, path: path}, nil
}

// Path returns the destination path.
func (f *AtomicFile) Path() string {
	return f.path
}

// Commit syncs the temporary file and renames it over the destination. The
// destination keeps its permissions; a new destination gets defaultFileMode.
func (f *AtomicFile) Commit() error {
	if f.done {
		return fmt.Errorf("file %s already closed", f.path)
	}
	f.done = true

	if err := f.Chmod(destinationMode(f.path)); err != nil {
		f.discard()
		return fmt.Errorf("failed to set mode of %s: %w", f.path, err)
	}
	if err := f.Sync(); err != nil {
		f.discard()
		return fmt.Errorf("failed to sync %s: %w", f.path, err)
	}
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("failed to close %s: %w", f.path, err)
	}
	if err := os.Rename(f.Name(), f.path); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}

// Abort removes the temporary file and leaves the destination untouched.
// It is a no-op after Commit.
func (f *AtomicFile) Abort() {
	if f.done {
		return
	}
	f.done = true
	f.discard()
}

func (f *AtomicFile) discard() {
	_ = f.File.Close()
	_ = os.Remove(f.Name())
}

func destinationMode(path string) os.FileMode {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return defaultFileMode
	}
	return info.Mode().Perm()
}
