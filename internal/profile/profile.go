// Package profile computes and renders descriptive statistics for a loaded
// table: shape, missing values, duplicates, numeric summaries, correlations,
// category frequencies and a list of likely data problems.
package profile

import (
	"math"
	"sort"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/table"
	"gonum.org/v1/gonum/stat"
)

// Thresholds used when flagging problems.
const (
	HighNullPct          = 50.0
	DuplicateProblemPct  = 5.0
	HighCardinality      = 0.5
	VeryHighCardinality  = 0.8
	StrongCorrelation    = 0.7
	ModerateCorrelation  = 0.4
	RedundantCorrelation = 0.9
	LargeMemoryMB        = 1000.0

	TopPairs         = 10
	MaxCategorical   = 10
	TopCategoryCount = 5
)

// Options controls which optional sections are computed and rendered.
type Options struct {
	// Name labels the report; defaults to "Dataset".
	Name         string
	Correlations bool
	Categories   bool
	// Now stamps the report; defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns options with every section enabled.
func DefaultOptions() Options {
	return Options{Name: "Dataset", Correlations: true, Categories: true}
}

// Quick returns options for a fast profile without correlations or
// category frequencies.
func Quick(name string) Options {
	return Options{Name: name}
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "Dataset"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Profile is the computed, unrendered result of Analyze.
type Profile struct {
	Name        string
	GeneratedAt time.Time
	Options     Options

	Rows, Cols int
	MemoryMB   float64

	Kinds   []KindCount
	Columns []ColumnNulls

	Duplicates   int
	DuplicatePct float64

	Numeric  []NumericStats
	Constant []string

	Pairs       []Pair
	StrongPairs int

	Categorical     []string
	Categories      []Category
	MoreCategorical int

	HighNull     []string
	VeryHighCard []string
	Problems     []string
}

type KindCount struct {
	Kind  table.Kind
	Count int
}

// ColumnNulls is the per-column missing-value breakdown.
type ColumnNulls struct {
	Name    string
	Kind    table.Kind
	NonNull int
	Nulls   int
	NullPct float64
}

// NumericStats mirrors a describe() row plus range and coefficient of variation.
// Std and CV are NaN when undefined.
type NumericStats struct {
	Name                     string
	Count                    int
	Mean, Std                float64
	Min, Q1, Median, Q3, Max float64
	Range                    float64
	CV                       float64
}

// Pair is one correlation between two numeric columns.
type Pair struct {
	A, B string
	R    float64
}

// Strength labels |r| as strong, moderate or weak.
func (p Pair) Strength() string {
	switch a := math.Abs(p.R); {
	case a > StrongCorrelation:
		return "strong"
	case a > ModerateCorrelation:
		return "moderate"
	}
	return "weak"
}

// Category summarises one text column.
type Category struct {
	Name     string
	Distinct int
	Ratio    float64
	High     bool
	Top      []ValueCount
}

type ValueCount struct {
	Value   string
	Missing bool
	Count   int
	Pct     float64
}

// Summary is the small structured result returned to callers.
type Summary struct {
	Name        string
	Rows        int
	Cols        int
	MemoryMB    float64
	Duplicates  int
	NullCols    int
	Problems    int
	ProblemList []string
}

// Summary extracts the key metrics.
func (p *Profile) Summary() Summary {
	return Summary{
		Name:        p.Name,
		Rows:        p.Rows,
		Cols:        p.Cols,
		MemoryMB:    p.MemoryMB,
		Duplicates:  p.Duplicates,
		NullCols:    len(p.HighNull),
		Problems:    len(p.Problems),
		ProblemList: append([]string(nil), p.Problems...),
	}
}

// Empty reports whether the profiled table had no rows or no columns.
func (p *Profile) Empty() bool { return p.Rows == 0 || p.Cols == 0 }

// Analyze computes every section of the profile. t is only read.
func Analyze(t *table.Table, opt Options) *Profile {
	opt = opt.withDefaults()
	p := &Profile{Name: opt.Name, GeneratedAt: opt.Now(), Options: opt}
	p.Rows, p.Cols = t.Shape()
	if p.Empty() {
		return p
	}
	p.MemoryMB = float64(t.MemoryBytes()) / (1024 * 1024)

	kinds := map[table.Kind]int{}
	for _, c := range t.Columns {
		kinds[c.Kind]++
		nulls := c.NullCount()
		cn := ColumnNulls{Name: c.Name, Kind: c.Kind, NonNull: c.Len() - nulls, Nulls: nulls}
		cn.NullPct = pct(nulls, p.Rows)
		p.Columns = append(p.Columns, cn)
		if cn.NullPct > HighNullPct {
			p.HighNull = append(p.HighNull, c.Name)
		}
	}
	for k, n := range kinds {
		p.Kinds = append(p.Kinds, KindCount{Kind: k, Count: n})
	}
	sort.Slice(p.Kinds, func(i, j int) bool {
		if p.Kinds[i].Count != p.Kinds[j].Count {
			return p.Kinds[i].Count > p.Kinds[j].Count
		}
		return p.Kinds[i].Kind < p.Kinds[j].Kind
	})

	p.Duplicates = t.DuplicateRows()
	p.DuplicatePct = pct(p.Duplicates, p.Rows)

	var numeric []*table.Column
	for _, c := range t.Columns {
		if !c.Kind.Numeric() {
			continue
		}
		numeric = append(numeric, c)
		ns := describe(c)
		p.Numeric = append(p.Numeric, ns)
		if ns.Count >= 2 && ns.Range == 0 {
			p.Constant = append(p.Constant, c.Name)
		}
	}

	if opt.Correlations {
		p.Pairs = correlations(numeric)
		for _, pr := range p.Pairs {
			if math.Abs(pr.R) > RedundantCorrelation {
				p.StrongPairs++
			}
		}
	}

	for _, c := range t.Columns {
		if c.Kind != table.Text {
			continue
		}
		p.Categorical = append(p.Categorical, c.Name)
		distinct := distinctCount(c)
		if float64(distinct) > float64(p.Rows)*VeryHighCardinality {
			p.VeryHighCard = append(p.VeryHighCard, c.Name)
		}
		if opt.Categories && len(p.Categories) < MaxCategorical {
			p.Categories = append(p.Categories, categorize(c, distinct, p.Rows))
		}
	}
	if opt.Categories && len(p.Categorical) > MaxCategorical {
		p.MoreCategorical = len(p.Categorical) - MaxCategorical
	}

	p.Problems = problems(p)
	return p
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

func describe(c *table.Column) NumericStats {
	vals := c.Floats()
	ns := NumericStats{Name: c.Name, Count: len(vals)}
	nan := math.NaN()
	if len(vals) == 0 {
		ns.Mean, ns.Std, ns.Min, ns.Q1, ns.Median, ns.Q3, ns.Max, ns.Range, ns.CV = nan, nan, nan, nan, nan, nan, nan, nan, nan
		return ns
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	ns.Mean = stat.Mean(sorted, nil)
	ns.Std = nan
	if len(sorted) > 1 {
		ns.Std = stat.StdDev(sorted, nil)
	}
	ns.Min = sorted[0]
	ns.Max = sorted[len(sorted)-1]
	ns.Q1 = quantile(sorted, 0.25)
	ns.Median = quantile(sorted, 0.5)
	ns.Q3 = quantile(sorted, 0.75)
	ns.Range = ns.Max - ns.Min
	ns.CV = nan
	if ns.Mean != 0 && !math.IsNaN(ns.Std) {
		ns.CV = ns.Std / ns.Mean * 100
	}
	return ns
}

// quantile interpolates linearly between closest ranks of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// correlations computes pairwise Pearson r over rows where both values are
// present, ranked by |r| descending. Undefined pairs are omitted.
func correlations(cols []*table.Column) []Pair {
	var out []Pair
	for a := 1; a < len(cols); a++ {
		for b := 0; b < a; b++ {
			x, y := paired(cols[a], cols[b])
			if len(x) < 2 {
				continue
			}
			r := stat.Correlation(x, y, nil)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			r = math.Max(-1, math.Min(1, r))
			out = append(out, Pair{A: cols[a].Name, B: cols[b].Name, R: r})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return math.Abs(out[i].R) > math.Abs(out[j].R) })
	return out
}

func paired(a, b *table.Column) (x, y []float64) {
	for i := 0; i < a.Len(); i++ {
		fa, okA := a.Float(i)
		fb, okB := b.Float(i)
		if okA && okB {
			x = append(x, fa)
			y = append(y, fb)
		}
	}
	return x, y
}

func distinctCount(c *table.Column) int {
	seen := map[string]struct{}{}
	for i := 0; i < c.Len(); i++ {
		if !c.IsNull(i) {
			seen[c.Text(i)] = struct{}{}
		}
	}
	return len(seen)
}

func categorize(c *table.Column, distinct, rows int) Category {
	cat := Category{Name: c.Name, Distinct: distinct}
	cat.Ratio = float64(distinct) / float64(rows)
	cat.High = cat.Ratio > HighCardinality

	counts := map[string]int{}
	missing := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			missing++
			continue
		}
		counts[c.Text(i)]++
	}
	top := make([]ValueCount, 0, len(counts)+1)
	for v, n := range counts {
		top = append(top, ValueCount{Value: v, Count: n})
	}
	if missing > 0 {
		top = append(top, ValueCount{Missing: true, Count: missing})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		if top[i].Missing != top[j].Missing {
			return !top[i].Missing
		}
		return top[i].Value < top[j].Value
	})
	if len(top) > TopCategoryCount {
		top = top[:TopCategoryCount]
	}
	for i := range top {
		top[i].Pct = pct(top[i].Count, rows)
	}
	cat.Top = top
	return cat
}
