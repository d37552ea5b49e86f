package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/config"
	"github.com/KaramelBytes/datakit-cli/internal/errs"
	"github.com/KaramelBytes/datakit-cli/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *table.Table {
	return table.FromRecords(
		[]string{"city", "population", "area", "capital", "founded"},
		[][]string{
			{"Lima", "9751000", "2672.3", "true", "1535-01-18"},
			{"Cusco", "428450", "385.1", "false", "1100-01-01"},
			{"Arequipa", "1008290", "", "false", "1540-08-15"},
		},
	)
}

func TestSaveCSVRoundTrip(t *testing.T) {
	l, layout := newTestLoader(t)
	in := sampleTable()

	p, err := l.Save(in, "cities.csv", "processed", "csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(layout.Processed(), "cities.csv"), p)

	res, err := l.Load(p, LoadOptions{Encoding: "utf-8"})
	require.NoError(t, err)
	inRows, inCols := in.Shape()
	outRows, outCols := res.Table.Shape()
	assert.Equal(t, inRows, outRows)
	assert.Equal(t, inCols, outCols)

	_, want := in.Records()
	_, got := res.Table.Records()
	assert.Equal(t, want, got)
	for _, c := range in.Columns {
		assert.Equal(t, c.Kind, res.Table.Column(c.Name).Kind, c.Name)
	}
}

func TestSaveParquetRoundTrip(t *testing.T) {
	l, _ := newTestLoader(t)
	in := sampleTable()

	p, err := l.Save(in, "cities.parquet", "processed", FormatAuto)
	require.NoError(t, err)

	res, err := l.Load(p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "parquet", res.Diagnostics.Format)
	assert.Equal(t, in.Names(), res.Table.Names())
	for _, c := range in.Columns {
		got := res.Table.Column(c.Name)
		require.NotNil(t, got)
		assert.Equal(t, c.Kind, got.Kind, c.Name)
		for i := 0; i < c.Len(); i++ {
			assert.Equal(t, c.Value(i), got.Value(i), "%s[%d]", c.Name, i)
		}
	}
	assert.Equal(t, time.Date(1540, 8, 15, 0, 0, 0, 0, time.UTC), res.Table.Column("founded").Value(2))
}

func TestSaveExcelRoundTrip(t *testing.T) {
	l, _ := newTestLoader(t)
	in := table.FromRecords(
		[]string{"name", "age", "score", "active", "joined"},
		[][]string{
			{"Ana", "30", "1.5", "true", "2024-01-02"},
			{"Luis", "25", "2.25", "false", "2023-12-31"},
		},
	)

	p, err := l.Save(in, "people.xlsx", "raw", "excel")
	require.NoError(t, err)

	res, err := l.Load(p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "excel", res.Diagnostics.Format)
	assert.Equal(t, "Sheet1", res.Diagnostics.Sheet)

	_, want := in.Records()
	_, got := res.Table.Records()
	assert.Equal(t, want, got)
	assert.Equal(t, table.Bool, res.Table.Column("active").Kind)
	assert.Equal(t, table.Time, res.Table.Column("joined").Kind)

	_, err = l.Load(p, LoadOptions{ForceReload: true, Sheet: "Missing"})
	assert.Error(t, err)
}

func TestSaveJSONThenLoad(t *testing.T) {
	l, _ := newTestLoader(t)
	in := sampleTable()
	p, err := l.Save(in, "cities.json", "processed", "json")
	require.NoError(t, err)

	res, err := l.Load(p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, OrientRecords, res.Diagnostics.Orient)
	_, want := in.Records()
	_, got := res.Table.Records()
	assert.Equal(t, want, got)
}

func TestSaveErrors(t *testing.T) {
	l, layout := newTestLoader(t)
	in := sampleTable()

	_, err := l.Save(in, "x.feather", "processed", "feather")
	assert.Equal(t, errs.KindFormat, errs.KindOf(err))

	_, err = l.Save(in, "x.xls", "processed", FormatAuto)
	assert.Equal(t, errs.KindFormat, errs.KindOf(err))

	// legacy Excel is read-only, whether asked for by extension or by name
	_, err = l.Save(in, "x.xlsx", "processed", "xls")
	assert.Equal(t, errs.KindFormat, errs.KindOf(err))
	_, statErr := os.Stat(filepath.Join(layout.Processed(), "x.xlsx"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = l.Save(in, "x.csv", "final", "csv")
	assert.Equal(t, errs.KindLookup, errs.KindOf(err))

	require.NoError(t, os.RemoveAll(layout.Processed()))
	_, err = l.Save(in, "x.csv", "processed", "csv")
	require.Error(t, err)
	_, statErr = os.Stat(layout.Processed())
	assert.True(t, os.IsNotExist(statErr), "save must not create directories")
}

func TestSaveAutoWithoutExtensionWritesCSV(t *testing.T) {
	l, _ := newTestLoader(t)
	p, err := l.Save(sampleTable(), "cities", "raw", FormatAuto)
	require.NoError(t, err)
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), "city,population,area,capital,founded\n")
}

func TestLoadJSONOrientations(t *testing.T) {
	l, layout := newTestLoader(t)
	dir := layout.Raw()

	cases := []struct {
		name   string
		body   string
		orient string
		force  string
		names  []string
		rows   int
	}{
		{"records.json", `[{"a": 1, "b": "x"}, {"a": 2, "b": null, "c": true}]`, OrientRecords, "", []string{"a", "b", "c"}, 2},
		{"columns.json", `{"a": {"0": 1, "1": 2}, "b": {"0": "x", "1": "y"}}`, OrientColumns, "", []string{"a", "b"}, 2},
		{"column_arrays.json", `{"a": [1, 2, 3], "b": ["x", "y", "z"]}`, OrientColumns, "", []string{"a", "b"}, 3},
		{"values.json", `[[1, 2], [3, 4], [5, 6]]`, OrientValues, "", []string{"0", "1"}, 3},
		{"index.json", `{"r1": {"a": 1, "b": 2}, "r2": {"a": 3, "b": 4}}`, OrientIndex, OrientIndex, []string{"a", "b"}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := writeFile(t, filepath.Join(dir, tc.name), []byte(tc.body))
			res, err := l.Load(p, LoadOptions{Orient: tc.force})
			require.NoError(t, err)
			assert.Equal(t, tc.orient, res.Diagnostics.Orient)
			assert.Equal(t, tc.names, res.Table.Names())
			assert.Equal(t, tc.rows, res.Table.Rows())
		})
	}
}

func TestLoadJSONColumnArrays(t *testing.T) {
	l, layout := newTestLoader(t)
	p := writeFile(t, filepath.Join(layout.Raw(), "cols.json"), []byte(`{"a": [1, 2, 3], "b": ["x", null, "z"]}`))
	res, err := l.Load(p, LoadOptions{})
	require.NoError(t, err)
	header, rows := res.Table.Records()
	assert.Equal(t, []string{"a", "b"}, header)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "x"}, rows[0])
	assert.Equal(t, "3", rows[2][0])
	assert.True(t, res.Table.Column("b").IsNull(1))

	p = writeFile(t, filepath.Join(layout.Raw(), "ragged.json"), []byte(`{"a": [1, 2, 3], "b": ["x"]}`))
	_, err = l.Load(p, LoadOptions{Orient: OrientColumns})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "b" has 1 values, want 3`)
}

func TestLoadJSONAllOrientationsFail(t *testing.T) {
	l, layout := newTestLoader(t)
	p := writeFile(t, filepath.Join(layout.Raw(), "scalar.json"), []byte(`{"a": 1}`))
	_, err := l.Load(p, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns orientation")

	p = writeFile(t, filepath.Join(layout.Raw(), "broken.json"), []byte(`[{"a": 1},`))
	_, err = l.Load(p, LoadOptions{})
	assert.Error(t, err)
}

func TestFindFile(t *testing.T) {
	l, layout := newTestLoader(t)
	writeFile(t, filepath.Join(layout.Raw(), "b", "sales.csv"), []byte("a\n1\n"))
	writeFile(t, filepath.Join(layout.Raw(), "a", "sales.csv"), []byte("a\n2\n"))
	writeFile(t, filepath.Join(layout.Raw(), "other.csv"), []byte("a\n3\n"))

	p, matches, err := l.FindFile(layout.Raw(), "sales.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/sales.csv", "b/sales.csv"}, matches)
	assert.Equal(t, filepath.Join(layout.Raw(), "a", "sales.csv"), p)

	p, matches, err = l.FindFile(layout.Raw(), "other.csv")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, filepath.Join(layout.Raw(), "other.csv"), p)

	_, _, err = l.FindFile(layout.Raw(), "missing.csv")
	assert.Equal(t, errs.KindLookup, errs.KindOf(err))

	strict, _ := newTestLoader(t, func(o *Options) { o.Ambiguity = config.AmbiguityFail; o.Layout = layout })
	_, matches, err = strict.FindFile(layout.Raw(), "sales.csv")
	require.Error(t, err)
	assert.Equal(t, errs.KindLookup, errs.KindOf(err))
	assert.Len(t, matches, 2)
	assert.Contains(t, err.Error(), "b/sales.csv")
}

func TestFindFileEscapesMeta(t *testing.T) {
	l, layout := newTestLoader(t)
	writeFile(t, filepath.Join(layout.Raw(), "report [v2].csv"), []byte("a\n1\n"))
	writeFile(t, filepath.Join(layout.Raw(), "report v.csv"), []byte("a\n1\n"))

	_, matches, err := l.FindFile(layout.Raw(), "report [v2].csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"report [v2].csv"}, matches)
}

func TestLoadRaw(t *testing.T) {
	l, layout := newTestLoader(t)
	writeFile(t, filepath.Join(layout.Raw(), "kaggle", "startups", "investments.csv"), []byte("name,amount\nAcme,100\n"))

	res, err := l.LoadRaw("investments.csv", LoadOptions{Encoding: "utf-8"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Table.Rows())
	assert.Equal(t, int64(100), res.Table.Column("amount").Value(0))
}

func TestSupportedExtensions(t *testing.T) {
	assert.Equal(t, []string{".csv", ".json", ".parquet", ".tsv", ".txt", ".xls", ".xlsx"}, SupportedExtensions())
	assert.Equal(t, []string{"csv", "excel", "json", "parquet"}, FormatNames())
}
