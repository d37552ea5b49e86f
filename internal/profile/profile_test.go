package profile

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stamp = time.Date(2025, 10, 3, 14, 5, 9, 0, time.UTC)

func fixedOptions() Options {
	o := DefaultOptions()
	o.Name = "Employees"
	o.Now = func() time.Time { return stamp }
	return o
}

func employees() *table.Table {
	return table.FromRecords(
		[]string{"id", "age", "salary", "city", "flag", "notes"},
		[][]string{
			{"1", "25", "30000", "Madrid", "7", ""},
			{"2", "35", "50000", "Madrid", "7", ""},
			{"3", "45", "70000", "Sevilla", "7", "x"},
			{"4", "55", "", "Valencia", "7", ""},
			{"4", "55", "", "Valencia", "7", ""},
		},
	)
}

func TestAnalyzeShapeNullsAndDuplicates(t *testing.T) {
	p := Analyze(employees(), fixedOptions())
	assert.Equal(t, 5, p.Rows)
	assert.Equal(t, 6, p.Cols)
	assert.Equal(t, 1, p.Duplicates)
	assert.InDelta(t, 20.0, p.DuplicatePct, 1e-9)
	assert.Equal(t, []string{"notes"}, p.HighNull)

	byName := map[string]ColumnNulls{}
	for _, c := range p.Columns {
		byName[c.Name] = c
	}
	assert.Equal(t, 2, byName["salary"].Nulls)
	assert.InDelta(t, 40.0, byName["salary"].NullPct, 1e-9)
	assert.Equal(t, table.Int, byName["salary"].Kind)
	assert.Equal(t, []KindCount{{Kind: table.Int, Count: 4}, {Kind: table.Text, Count: 2}}, p.Kinds)
}

func TestAnalyzeNumericStats(t *testing.T) {
	p := Analyze(employees(), fixedOptions())
	require.Len(t, p.Numeric, 4)

	age := p.Numeric[1]
	assert.Equal(t, "age", age.Name)
	assert.Equal(t, 5, age.Count)
	assert.InDelta(t, 43.0, age.Mean, 1e-9)
	assert.InDelta(t, 13.0384, age.Std, 1e-3)
	assert.Equal(t, 25.0, age.Min)
	assert.Equal(t, 35.0, age.Q1)
	assert.Equal(t, 45.0, age.Median)
	assert.Equal(t, 55.0, age.Q3)
	assert.Equal(t, 30.0, age.Range)
	assert.InDelta(t, 30.322, age.CV, 1e-2)

	salary := p.Numeric[2]
	assert.Equal(t, 3, salary.Count)
	assert.InDelta(t, 50000.0, salary.Mean, 1e-9)
	assert.InDelta(t, 40000.0, salary.Q1, 1e-9)

	assert.Equal(t, []string{"flag"}, p.Constant)
	assert.True(t, math.IsNaN(p.Numeric[3].CV) || p.Numeric[3].CV == 0)
}

func TestAnalyzeCorrelationsRanked(t *testing.T) {
	p := Analyze(employees(), fixedOptions())
	require.NotEmpty(t, p.Pairs)
	for i := 1; i < len(p.Pairs); i++ {
		assert.GreaterOrEqual(t, math.Abs(p.Pairs[i-1].R), math.Abs(p.Pairs[i].R))
	}
	for _, pr := range p.Pairs {
		assert.NotEqual(t, "flag", pr.A, "zero-variance columns have no defined correlation")
		assert.NotEqual(t, "flag", pr.B)
	}
	var salaryAge *Pair
	for i := range p.Pairs {
		if p.Pairs[i].A == "salary" && p.Pairs[i].B == "age" {
			salaryAge = &p.Pairs[i]
		}
	}
	require.NotNil(t, salaryAge)
	assert.InDelta(t, 1.0, salaryAge.R, 1e-9)
	assert.Equal(t, "strong", salaryAge.Strength())
	assert.GreaterOrEqual(t, p.StrongPairs, 1)
}

func TestAnalyzeCategories(t *testing.T) {
	p := Analyze(employees(), fixedOptions())
	assert.Equal(t, []string{"city", "notes"}, p.Categorical)
	require.Len(t, p.Categories, 2)

	city := p.Categories[0]
	assert.Equal(t, 3, city.Distinct)
	assert.InDelta(t, 0.6, city.Ratio, 1e-9)
	assert.True(t, city.High)
	require.Len(t, city.Top, 3)
	assert.Equal(t, ValueCount{Value: "Madrid", Count: 2, Pct: 40}, city.Top[0])
	assert.Equal(t, "Valencia", city.Top[1].Value)

	notes := p.Categories[1]
	assert.Equal(t, 1, notes.Distinct)
	assert.True(t, notes.Top[0].Missing)
	assert.Equal(t, 4, notes.Top[0].Count)
}

func TestAnalyzeDoesNotMutateInput(t *testing.T) {
	in := employees()
	_, before := in.Records()
	Analyze(in, fixedOptions())
	_, after := in.Records()
	assert.Equal(t, before, after)
	assert.Equal(t, 5, in.Rows())
}

func TestProblems(t *testing.T) {
	p := Analyze(employees(), fixedOptions())
	require.Len(t, p.Problems, 3)
	assert.Contains(t, p.Problems[0], "notes")
	assert.Contains(t, p.Problems[1], "20.0% of rows are duplicates")
	assert.Contains(t, p.Problems[2], "flag")

	s := p.Summary()
	assert.Equal(t, 5, s.Rows)
	assert.Equal(t, 6, s.Cols)
	assert.Equal(t, 1, s.NullCols)
	assert.Equal(t, 3, s.Problems)
	assert.Equal(t, 1, s.Duplicates)
}

func TestVeryHighCardinalityFlaggedEvenInQuickMode(t *testing.T) {
	tb := table.FromRecords([]string{"code"}, [][]string{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}})
	opt := Quick("codes")
	opt.Now = func() time.Time { return stamp }
	p := Analyze(tb, opt)
	assert.Empty(t, p.Categories)
	assert.Empty(t, p.Pairs)
	assert.Equal(t, []string{"code"}, p.VeryHighCard)
	require.Len(t, p.Problems, 1)

	text := p.Text()
	assert.NotContains(t, text, "CORRELATIONS")
	assert.NotContains(t, text, "CATEGORY FREQUENCIES")
	assert.Contains(t, text, "very high cardinality: code")
}

func TestMoreCategoricalThanShown(t *testing.T) {
	header := make([]string, 12)
	row := make([]string, 12)
	for i := range header {
		header[i] = string(rune('a' + i))
		row[i] = "v"
	}
	p := Analyze(table.FromRecords(header, [][]string{row, row}), fixedOptions())
	assert.Len(t, p.Categories, MaxCategorical)
	assert.Equal(t, 2, p.MoreCategorical)
	assert.Contains(t, p.Text(), "... and 2 more text columns")
}

func TestGenerateWritesReport(t *testing.T) {
	var buf bytes.Buffer
	p, err := Generate(&buf, employees(), fixedOptions())
	require.NoError(t, err)
	out := buf.String()
	assert.Equal(t, p.Text(), out)
	assert.Contains(t, out, "DATA PROFILE: EMPLOYEES")
	assert.Contains(t, out, "Generated: 2025-10-03 14:05:09")
	assert.Contains(t, out, "Duplicate rows: 1 (20.00%)")
	assert.Contains(t, out, "salary")
	assert.Contains(t, out, "Madrid")
	assert.Contains(t, out, "<missing>")
	assert.Contains(t, out, "Problems:         3")
}

func TestGenerateEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	p, err := Generate(&buf, table.FromRecords([]string{"a"}, nil), fixedOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, p.Summary().Rows)
	assert.Contains(t, buf.String(), "is empty")
}

func TestSaveReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	p := Analyze(employees(), fixedOptions())

	path, err := SaveReport(dir, "", "Startups 2025", p.Text(), stamp)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data_profile_startups_2025_20251003_140509.txt"), path)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "DATA PROFILE: EMPLOYEES")

	path, err = SaveReport(dir, "custom.txt", "ignored", "body", stamp)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "custom.txt"), path)
}

func TestGroupInt(t *testing.T) {
	assert.Equal(t, "0", groupInt(0))
	assert.Equal(t, "999", groupInt(999))
	assert.Equal(t, "1,000", groupInt(1000))
	assert.Equal(t, "1,234,567", groupInt(1234567))
	assert.Equal(t, "-12,345", groupInt(-12345))
}
