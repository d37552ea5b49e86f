package loader

import (
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/config"
	"github.com/KaramelBytes/datakit-cli/internal/errs"
	"github.com/KaramelBytes/datakit-cli/internal/table"
	"github.com/KaramelBytes/datakit-cli/internal/workspace"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Tier names the delimited-text parsing path that produced a table.
type Tier string

const (
	TierStrict        Tier = "strict"
	TierEncodingRetry Tier = "encoding_retry"
	TierRobust        Tier = "robust"
)

// Diagnostics describe how a file was read.
type Diagnostics struct {
	Path       string
	Format     string
	Encoding   string
	Confidence float64
	Delimiter  rune
	Tier       Tier
	// SkippedRows counts malformed rows dropped by the robust tier.
	SkippedRows         int
	CorruptionSuspected bool
	CorruptionSample    string
	FromCache           bool
	Orient              string
	Sheet               string
	// Degraded is set whenever the robust tier ran.
	Degraded *errs.ParseDegraded
}

// Result pairs a loaded table with its diagnostics.
type Result struct {
	Table       *table.Table
	Diagnostics Diagnostics
}

// LoadOptions are per-call, format-specific options.
type LoadOptions struct {
	ForceReload bool
	// Delimiter overrides detection for delimited text.
	Delimiter rune
	// Encoding overrides detection for delimited text.
	Encoding string
	// Sheet selects a spreadsheet sheet by name; SheetIndex (1-based) by position.
	Sheet      string
	SheetIndex int
	// Orient forces a JSON orientation: records, index, columns or values.
	Orient string
}

// Options configure a Loader.
type Options struct {
	Layout    workspace.Layout
	Cache     *Cache
	Logger    zerolog.Logger
	Ambiguity string
	// Strict turns a degraded delimited load into an error.
	Strict bool
	Now    func() time.Time
}

// Loader reads tabular files of any supported format and caches them by absolute path.
type Loader struct {
	layout    workspace.Layout
	cache     *Cache
	log       zerolog.Logger
	ambiguity string
	strict    bool
	now       func() time.Time
}

// New builds a loader; a nil cache gets a KeepForever cache.
func New(opts Options) *Loader {
	if opts.Cache == nil {
		opts.Cache = NewCache(nil)
	}
	if opts.Ambiguity == "" {
		opts.Ambiguity = config.AmbiguityPick
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loader{
		layout:    opts.Layout,
		cache:     opts.Cache,
		log:       opts.Logger,
		ambiguity: opts.Ambiguity,
		strict:    opts.Strict,
		now:       opts.Now,
	}
}

// Cache exposes the loader's table cache.
func (l *Loader) Cache() *Cache { return l.cache }

// Load reads path into a table. A cached table for the same absolute path is
// returned as-is unless opts.ForceReload is set.
func (l *Loader) Load(path string, opts LoadOptions) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Errorf("resolve %s: %w", path, err)
	}
	abs = filepath.Clean(abs)

	if !opts.ForceReload {
		if e, ok := l.cache.Get(abs); ok {
			d := e.Diagnostics
			d.FromCache = true
			l.log.Debug().Str("path", abs).Msg("cache hit")
			return &Result{Table: e.Table, Diagnostics: d}, nil
		}
	}

	f, ext := formatForPath(abs)
	if f == nil {
		return nil, &errs.FormatError{Op: "load", Ext: ext, Path: abs}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Errorf("load %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, errors.Errorf("load %s: is a directory", abs)
	}

	d := Diagnostics{Path: abs, Format: f.Name()}
	t, err := f.Read(abs, opts, &d)
	if err != nil {
		l.log.Error().Err(err).Str("path", abs).Str("format", d.Format).Msg("load failed")
		return nil, err
	}
	if d.Degraded != nil {
		l.log.Warn().Str("path", abs).Int("skipped_rows", d.SkippedRows).Msg("loaded with permissive fallback; malformed rows were dropped")
		if l.strict {
			return nil, d.Degraded
		}
	}
	if ok, sample := CheckCorruption(t); ok {
		d.CorruptionSuspected = true
		d.CorruptionSample = sample
		l.log.Warn().Str("path", abs).Str("sample", sample).Msg("possible encoding corruption (UTF-8 read as a single-byte encoding)")
	}

	t.Source = abs
	t.LoadedAt = l.now()
	rows, cols := t.Shape()
	l.log.Info().Str("path", abs).Str("format", d.Format).Int("rows", rows).Int("cols", cols).Msg("loaded")

	l.cache.Put(abs, &Entry{Table: t, Diagnostics: d})
	return &Result{Table: t, Diagnostics: d}, nil
}

// LoadRaw finds name anywhere under data/raw and loads it.
func (l *Loader) LoadRaw(name string, opts LoadOptions) (*Result, error) {
	p, _, err := l.FindFile(l.layout.Raw(), name)
	if err != nil {
		return nil, err
	}
	return l.Load(p, opts)
}

// LoadProcessed loads name from data/processed.
func (l *Loader) LoadProcessed(name string, opts LoadOptions) (*Result, error) {
	return l.Load(filepath.Join(l.layout.Processed(), name), opts)
}

// Resolve maps a location name to its layout directory.
func (l *Loader) Resolve(location string) (string, error) {
	switch location {
	case "raw":
		return l.layout.Raw(), nil
	case "processed":
		return l.layout.Processed(), nil
	}
	return "", &errs.LookupError{Registry: "location", Key: location, Known: []string{"processed", "raw"}}
}
