package loader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/datakit-cli/internal/config"
	"github.com/KaramelBytes/datakit-cli/internal/errs"
	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

var globMeta = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`)

// FindFile searches dir recursively for files named exactly name. Matches are
// ordered lexicographically by relative path. No match is a LookupError; with
// several, the "pick" policy returns the first and logs a warning while "fail"
// returns a LookupError listing them.
func (l *Loader) FindFile(dir, name string) (string, []string, error) {
	matches, err := FindAll(dir, name)
	if err != nil {
		return "", nil, err
	}
	if len(matches) == 0 {
		return "", nil, &errs.LookupError{Registry: "file search under " + dir, Key: name}
	}
	if len(matches) > 1 {
		if l.ambiguity == config.AmbiguityFail {
			return "", matches, &errs.LookupError{Registry: "ambiguous file search under " + dir, Key: name, Known: matches}
		}
		l.log.Warn().Str("name", name).Strs("matches", matches).Str("picked", matches[0]).Msg("several files match, using the first")
	}
	return filepath.Join(dir, filepath.FromSlash(matches[0])), matches, nil
}

// FindAll returns every file under dir named name, as sorted slash-separated
// paths relative to dir.
func FindAll(dir, name string) ([]string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, errors.Errorf("file name %q must be a bare name", name)
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, errors.Errorf("search %s: %w", dir, err)
	}
	fsys := os.DirFS(dir)
	found, err := doublestar.Glob(fsys, "**/"+globMeta.Replace(name), doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Errorf("search %s for %s: %w", dir, name, err)
	}
	sort.Strings(found)
	return found, nil
}
