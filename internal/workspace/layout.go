package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/datakit-cli/internal/errs"
	"gitlab.com/tozd/go/errors"
)

// StandardDirs is the canonical folder layout, relative to the root, in creation order.
var StandardDirs = []string{
	"data",
	"data/raw",
	"data/processed",
	"data/external",
	"data/interim",
	"notebooks",
	"reports",
	"reports/figures",
	"src",
	"tests",
	"docs",
	"config",
	"scripts",
}

// Layout maps layout entries to absolute paths under a root. It is immutable.
type Layout struct {
	root  string
	paths map[string]string
}

// NewLayout computes the layout for root without touching the filesystem.
func NewLayout(root string) Layout {
	paths := make(map[string]string, len(StandardDirs))
	for _, d := range StandardDirs {
		paths[d] = filepath.Join(root, filepath.FromSlash(d))
	}
	return Layout{root: root, paths: paths}
}

func (l Layout) Root() string { return l.root }

// Dir returns the absolute path for a layout entry such as "data/raw".
func (l Layout) Dir(name string) (string, error) {
	p, ok := l.paths[strings.Trim(filepath.ToSlash(name), "/")]
	if !ok {
		return "", &errs.LookupError{Registry: "layout", Key: name, Known: l.Names()}
	}
	return p, nil
}

// Names lists the layout entries in creation order.
func (l Layout) Names() []string { return append([]string(nil), StandardDirs...) }

func (l Layout) Raw() string       { return l.paths["data/raw"] }
func (l Layout) Processed() string { return l.paths["data/processed"] }
func (l Layout) External() string  { return l.paths["data/external"] }
func (l Layout) Interim() string   { return l.paths["data/interim"] }
func (l Layout) Reports() string   { return l.paths["reports"] }
func (l Layout) Figures() string   { return l.paths["reports/figures"] }
func (l Layout) ConfigDir() string { return l.paths["config"] }

// Check reports, per entry, whether the directory exists.
func (l Layout) Check() map[string]bool {
	out := make(map[string]bool, len(l.paths))
	for name, p := range l.paths {
		info, err := os.Stat(p)
		out[name] = err == nil && info.IsDir()
	}
	return out
}

// EnsureResult partitions the layout entries by what Ensure found.
type EnsureResult struct {
	Existing []string
	Created  []string
}

// Fresh reports whether no layout entry existed beforehand.
func (r EnsureResult) Fresh() bool { return len(r.Existing) == 0 }

// Ensure creates every missing entry. Existing directories are left alone,
// so calling it twice reports nothing created the second time.
func (l Layout) Ensure() (EnsureResult, error) {
	var res EnsureResult
	for _, name := range StandardDirs {
		p := l.paths[name]
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				return res, errors.Errorf("layout entry %s exists but is not a directory", p)
			}
			res.Existing = append(res.Existing, name)
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return res, errors.Errorf("create %s: %w", p, err)
		}
		res.Created = append(res.Created, name)
	}
	return res, nil
}

const treeFilesPerDir = 5

// Tree renders the layout as an indented tree. With showFiles, each data
// sub-folder lists up to five files.
func (l Layout) Tree(showFiles bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/\n", filepath.Base(l.root))
	exists := l.Check()
	mark := func(name string) string {
		if exists[name] {
			return ""
		}
		return "  (missing)"
	}
	top := []string{"data", "notebooks", "reports", "src", "tests", "docs", "config", "scripts"}
	for i, name := range top {
		branch, pad := "├── ", "│   "
		if i == len(top)-1 {
			branch, pad = "└── ", "    "
		}
		fmt.Fprintf(&b, "%s%s/%s\n", branch, name, mark(name))
		var children []string
		for _, d := range StandardDirs {
			if strings.HasPrefix(d, name+"/") {
				children = append(children, d)
			}
		}
		for j, child := range children {
			cb, cpad := "├── ", "│   "
			if j == len(children)-1 {
				cb, cpad = "└── ", "    "
			}
			fmt.Fprintf(&b, "%s%s%s/%s\n", pad, cb, filepath.Base(child), mark(child))
			if showFiles && name == "data" {
				writeFiles(&b, pad+cpad, l.paths[child])
			}
		}
	}
	return b.String()
}

func writeFiles(b *strings.Builder, indent, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for i, f := range files {
		if i == treeFilesPerDir {
			fmt.Fprintf(b, "%s... (%d more)\n", indent, len(files)-treeFilesPerDir)
			return
		}
		fmt.Fprintf(b, "%s%s\n", indent, f)
	}
}
