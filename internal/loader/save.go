package loader

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/datakit-cli/internal/errs"
	"github.com/KaramelBytes/datakit-cli/internal/table"
	"github.com/KaramelBytes/datakit-cli/internal/utils"
)

// FormatAuto derives the save format from the filename's extension.
const FormatAuto = "auto"

func extOf(path string) string { return strings.ToLower(filepath.Ext(path)) }

// saveFormat resolves the requested format name for filename.
func saveFormat(filename, format string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(format))
	if name == "" || name == FormatAuto {
		ext := extOf(filename)
		if noWriteExt[ext] {
			return nil, &errs.FormatError{Op: "save", Ext: ext, Path: filename}
		}
		if f, ok := byExt[ext]; ok {
			return f, nil
		}
		return byName["csv"], nil
	}
	if alias, ok := saveAlias[name]; ok {
		name = alias
	}
	f, ok := byName[name]
	if !ok {
		return nil, &errs.FormatError{Op: "save", Ext: format, Path: filename}
	}
	return f, nil
}

// Save writes t as filename under the named location ("raw" or "processed")
// and returns the written path. No directories are created.
func (l *Loader) Save(t *table.Table, filename, location, format string) (string, error) {
	dir, err := l.Resolve(location)
	if err != nil {
		return "", err
	}
	f, err := saveFormat(filename, format)
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, filename)
	if err := utils.WriteAtomic(out, func(w io.Writer) error {
		return f.Write(w, t, out)
	}); err != nil {
		return "", err
	}
	rows, cols := t.Shape()
	l.log.Info().Str("path", out).Str("format", f.Name()).Int("rows", rows).Int("cols", cols).Msg("saved")
	return out, nil
}
