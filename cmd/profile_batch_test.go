package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileBatch_SameBaseNameDoesNotOverwrite(t *testing.T) {
	root := isolate(t)

	// Prepare two CSV files with the same basename in different directories
	csv := "col1,col2\nA,1\nB,2\nC,3\n"
	writeFile(t, filepath.Join(root, "d1", "metrics.csv"), csv)
	writeFile(t, filepath.Join(root, "d2", "metrics.csv"), csv)

	out := runCmd(t, "profile-batch", filepath.Join(root, "d*", "metrics.csv"), "--quiet", "--root", root)
	assert.Empty(t, out)

	reports, err := filepath.Glob(filepath.Join(root, "reports", "data_profile_metrics_*.txt"))
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		body, err := os.ReadFile(r)
		require.NoError(t, err)
		assert.Contains(t, string(body), "DATA PROFILE: METRICS")
	}
}

func TestProfileBatch_StdoutAndKeepGoing(t *testing.T) {
	root := isolate(t)
	writeFile(t, filepath.Join(root, "in", "a.csv"), "x,y\n1,2\n3,4\n")
	writeFile(t, filepath.Join(root, "in", "b.json"), `[{"x": 1}, {"x": 2}]`)
	writeFile(t, filepath.Join(root, "in", "broken.parquet"), "not parquet")

	out, err := execute(t, "profile-batch", filepath.Join(root, "in", "*"), "--stdout", "--keep-going", "--root", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 files")
	assert.Contains(t, out, "DATA PROFILE: A")
	assert.Contains(t, out, "DATA PROFILE: B")

	_, err = execute(t, "profile-batch", filepath.Join(root, "in", "*.parquet"), "--quiet", "--root", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.parquet")
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.csv"), "a\n1\n")
	writeFile(t, filepath.Join(dir, "a.csv"), "a\n1\n")
	writeFile(t, filepath.Join(dir, "deep", "c.csv"), "a\n1\n")

	files, err := expandInputs([]string{filepath.Join(dir, "*.csv"), filepath.Join(dir, "a.csv")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}, files)

	files, err = expandInputs([]string{filepath.Join(dir, "**", "*.csv")})
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = expandInputs([]string{filepath.Join(dir, "*.xlsx")})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no input files matched"))
}
