package kaggle

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Unzip extracts archive into dest and returns the extracted file paths
// relative to dest. Entries that would land outside dest are rejected.
func Unzip(archive, dest string) ([]string, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, errors.Errorf("open archive %s: %w", archive, err)
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var out []string
	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return out, errors.Errorf("archive entry %q escapes %s", f.Name, dest)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return out, errors.WithStack(err)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return out, err
		}
		rel, _ := filepath.Rel(root, target)
		out = append(out, rel)
	}
	return out, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.WithStack(err)
	}
	rc, err := f.Open()
	if err != nil {
		return errors.Errorf("open %s in archive: %w", f.Name, err)
	}
	defer rc.Close()
	w, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		_ = w.Close()
		return errors.Errorf("extract %s: %w", f.Name, err)
	}
	return errors.WithStack(w.Close())
}
