package loader

import (
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/datakit-cli/internal/table"
)

// Format reads and writes one family of file extensions.
type Format interface {
	Name() string
	Extensions() []string
	Read(path string, opts LoadOptions, d *Diagnostics) (*table.Table, error)
	Write(w io.Writer, t *table.Table, path string) error
}

var (
	formats    []Format
	byExt      = map[string]Format{}
	byName     = map[string]Format{}
	saveAlias  = map[string]string{"xlsx": "excel", "txt": "csv", "tsv": "csv"}
	noWriteExt = map[string]bool{".xls": true}
)

// Register adds a format implementation, claiming its extensions.
func Register(f Format) {
	formats = append(formats, f)
	byName[f.Name()] = f
	for _, ext := range f.Extensions() {
		byExt[ext] = f
	}
}

func init() {
	Register(delimitedFormat{})
	Register(excelFormat{})
	Register(recordsFormat{})
	Register(parquetFormat{})
}

func formatForPath(path string) (Format, string) {
	ext := strings.ToLower(filepath.Ext(path))
	return byExt[ext], ext
}

// SupportedExtensions lists every extension the loader reads, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(byExt))
	for ext := range byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// FormatNames lists the explicit save format names, sorted.
func FormatNames() []string {
	out := make([]string, 0, len(byName))
	for n := range byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
