package config

import (
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/KaramelBytes/datakit-cli/internal/errs"
	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"
)

// Registry sections.
const (
	SectionInputs   = "input_files"
	SectionOutputs  = "output_files"
	SectionDatasets = "kaggle_datasets"
)

// OptionalSections are carried through verbatim as nested objects.
var OptionalSections = []string{"apis", "processing", "visualization"}

const registryExample = `{
  "input_files":     {"sales": "sales_2024.csv"},
  "output_files":    {"sales_clean": "sales_2024_clean.csv"},
  "kaggle_datasets": {"sales": "owner/dataset-name"}
}`

type snapshot struct {
	inputs   map[string]string
	outputs  map[string]string
	datasets map[string]string
	extra    map[string]map[string]any
}

// Registry maps symbolic keys to raw filenames, processed filenames and
// remote dataset identifiers. Keys are case-insensitive.
type Registry struct {
	source string
	snap   atomic.Pointer[snapshot]
}

func defaultSnapshot() *snapshot {
	return &snapshot{
		inputs: map[string]string{
			"hospital": "hospital_data.csv",
			"startups": "startups_investment.csv",
		},
		outputs: map[string]string{
			"hospital_clean": "hospital_data_clean.csv",
			"startups_clean": "startups_investment_clean.csv",
		},
		datasets: map[string]string{
			"hospital": "jaderz/hospital-beds-management",
			"startups": "yanmaksi/big-startup-secsees-fail-dataset-from-crunchbase",
		},
		extra: map[string]map[string]any{},
	}
}

// DefaultRegistry returns a registry holding only the built-in entries.
func DefaultRegistry() *Registry { return NewRegistry("") }

// NewRegistry returns a registry bound to a JSON source, holding the built-in
// entries until Reload succeeds.
func NewRegistry(source string) *Registry {
	r := &Registry{source: source}
	r.snap.Store(defaultSnapshot())
	return r
}

// LoadRegistry binds a registry to path and reads it. The returned registry is
// always usable: when err is non-nil it holds the built-in entries.
func LoadRegistry(path string) (*Registry, error) {
	r := NewRegistry(path)
	return r, r.Reload()
}

// Source is the JSON path the registry reads, or "" for built-ins only.
func (r *Registry) Source() string { return r.source }

// Reload re-reads the JSON source and replaces all mappings at once.
// On failure the previous mappings stay in place.
func (r *Registry) Reload() error {
	if r.source == "" {
		r.snap.Store(defaultSnapshot())
		return nil
	}
	next, err := readSnapshot(r.source)
	if err != nil {
		return err
	}
	r.snap.Store(next)
	return nil
}

func readSnapshot(path string) (*snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &errs.SetupError{
				What:   "project configuration not found",
				Path:   path,
				Remedy: "create it with the sections you need, for example:\n" + registryExample,
				Err:    err,
			}
		}
		return nil, errors.Errorf("stat registry: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, &errs.SetupError{
			What:   "project configuration is not valid JSON",
			Path:   path,
			Remedy: "check the file with a JSON validator (e.g. jsonlint.com or `python -m json.tool`)",
			Err:    err,
		}
	}
	s := defaultSnapshot()
	overlay := func(dst map[string]string, section string) {
		for k, val := range v.GetStringMapString(section) {
			dst[strings.ToLower(k)] = val
		}
	}
	overlay(s.inputs, SectionInputs)
	overlay(s.outputs, SectionOutputs)
	overlay(s.datasets, SectionDatasets)
	for _, name := range OptionalSections {
		if v.IsSet(name) {
			s.extra[name] = v.GetStringMap(name)
		}
	}
	return s, nil
}

func lookup(section string, m map[string]string, key string) (string, error) {
	if val, ok := m[strings.ToLower(key)]; ok {
		return val, nil
	}
	return "", &errs.LookupError{Registry: section, Key: key, Known: sortedKeys(m)}
}

// InputFile returns the raw filename registered under key.
func (r *Registry) InputFile(key string) (string, error) {
	return lookup(SectionInputs, r.snap.Load().inputs, key)
}

// OutputFile returns the processed filename registered under key.
func (r *Registry) OutputFile(key string) (string, error) {
	return lookup(SectionOutputs, r.snap.Load().outputs, key)
}

// KaggleDataset returns the "owner/name" identifier registered under key.
func (r *Registry) KaggleDataset(key string) (string, error) {
	return lookup(SectionDatasets, r.snap.Load().datasets, key)
}

// Entries returns a copy of one of the three string sections.
func (r *Registry) Entries(section string) (map[string]string, error) {
	s := r.snap.Load()
	var m map[string]string
	switch section {
	case SectionInputs:
		m = s.inputs
	case SectionOutputs:
		m = s.outputs
	case SectionDatasets:
		m = s.datasets
	default:
		return nil, &errs.LookupError{Registry: "registry", Key: section, Known: []string{SectionInputs, SectionOutputs, SectionDatasets}}
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

// Keys returns the sorted keys of a string section.
func (r *Registry) Keys(section string) ([]string, error) {
	m, err := r.Entries(section)
	if err != nil {
		return nil, err
	}
	return sortedKeys(m), nil
}

// Section returns an optional nested section, or nil when absent.
func (r *Registry) Section(name string) map[string]any {
	return r.snap.Load().extra[strings.ToLower(name)]
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
