package workspace

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Markers are checked in this order at every level.
var Markers = []string{".git", ".venv", "venv", "requirements.txt", "setup.py", "README.md", ".gitignore"}

const (
	// MaxAscent is how many ancestors above the start directory are examined.
	MaxAscent = 5
	// FallbackAscent is how far above the start the fallback root sits.
	FallbackAscent = 3
)

// Resolution describes how the project root was chosen.
type Resolution struct {
	Root     string
	Marker   string
	Level    int
	Fallback bool
}

// FindRoot walks up from start looking for the first directory holding any marker.
// If start is empty the working directory is used; if it names a file, its directory.
// It never fails: without a marker the directory FallbackAscent levels up is returned.
func FindRoot(start string, log zerolog.Logger) Resolution {
	dir := normalizeStart(start)
	cur := dir
	for level := 0; level <= MaxAscent; level++ {
		for _, m := range Markers {
			if _, err := os.Lstat(filepath.Join(cur, m)); err == nil {
				log.Debug().Str("root", cur).Str("marker", m).Int("level", level).Msg("project root detected")
				return Resolution{Root: cur, Marker: m, Level: level}
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	fb := dir
	for i := 0; i < FallbackAscent; i++ {
		fb = filepath.Dir(fb)
	}
	log.Debug().Str("root", fb).Str("start", dir).Msg("no project marker found, using fallback root")
	return Resolution{Root: fb, Level: -1, Fallback: true}
}

func normalizeStart(start string) string {
	if start == "" {
		if wd, err := os.Getwd(); err == nil {
			start = wd
		} else {
			start = "."
		}
	}
	if abs, err := filepath.Abs(start); err == nil {
		start = abs
	}
	if info, err := os.Stat(start); err == nil && !info.IsDir() {
		start = filepath.Dir(start)
	}
	return filepath.Clean(start)
}
