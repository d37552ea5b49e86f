package utils

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"gitlab.com/tozd/go/errors"
)

// SafeWriteFile writes data to a temp file and atomically renames it into place.
// The parent directory must already exist.
func SafeWriteFile(path string, data []byte) error {
	return WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomic streams fill into a temp file next to path and renames it into place.
// Nothing is left behind on failure.
func WriteAtomic(path string, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return errors.Errorf("target directory %s does not exist", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Errorf("atomic rename: %w", err)
	}
	return nil
}

// ListFiles returns the regular files below dir, relative to dir, sorted.
// A missing dir yields an empty list.
func ListFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sort.Strings(out)
	return out, nil
}

// DirHasEntries reports whether dir exists and contains at least one entry.
func DirHasEntries(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// FileSize returns the size of path and whether it exists as a regular file.
func FileSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}
