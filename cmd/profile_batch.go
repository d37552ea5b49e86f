package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/profile"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	pbQuick     bool
	pbNoCorr    bool
	pbNoCats    bool
	pbStdout    bool
	pbQuiet     bool
	pbKeepGoing bool
	pbDelimiter string
	pbEncoding  string
	pbSheet     string
)

var profileBatchCmd = &cobra.Command{
	Use:   "profile-batch <files...>",
	Short: "Profile several tabular files, saving one report per file under reports/",
	Long: `profile-batch expands each argument as a glob (** is supported), removes
duplicates and profiles the files in sorted order. Every report is saved
under reports/ with a timestamped name.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		lo, err := loadOptions(pbDelimiter, pbEncoding, pbSheet, "")
		if err != nil {
			return err
		}
		ws, err := openWorkspace(false)
		if err != nil {
			return err
		}
		l, err := newLoader(ws, false)
		if err != nil {
			return err
		}

		var bar *progressbar.ProgressBar
		if !pbQuiet && !pbStdout {
			bar = progressbar.NewOptions(len(files),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("profiling"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "█",
					SaucerHead:    "█",
					SaucerPadding: "░",
					BarStart:      "",
					BarEnd:        "",
				}),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
		}

		w := cmd.OutOrStdout()
		var failed int
		total := len(files)
		for i, path := range files {
			if bar != nil {
				bar.Describe(fmt.Sprintf("[%d/%d] %s", i+1, total, filepath.Base(path)))
			}
			res, err := l.Load(path, lo)
			if err != nil {
				if !pbKeepGoing {
					return fmt.Errorf("%s: %w", path, err)
				}
				failed++
				logger.Error().Err(err).Str("path", path).Msg("skipping file")
				if bar != nil {
					_ = bar.Add(1)
				}
				continue
			}
			opt := profileOptions("", path, pbQuick, !pbNoCorr, !pbNoCats)
			p := profile.Analyze(res.Table, opt)
			if pbStdout {
				fmt.Fprint(w, p.Text())
			}
			dir := reportDir(ws)
			out, err := profile.SaveReport(dir, freeReportName(dir, p.Name, time.Now()), p.Name, p.Text(), time.Now())
			if err != nil {
				return err
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			if !pbQuiet {
				s := p.Summary()
				fmt.Fprintf(w, "✓ %s: %d rows x %d columns, %d problems -> %s\n", s.Name, s.Rows, s.Cols, s.Problems, out)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be profiled", failed, total)
		}
		return nil
	},
}

// freeReportName avoids overwriting a report written earlier in the same
// second, e.g. for two files sharing a base name.
func freeReportName(dir, name string, now time.Time) string {
	base := profile.ReportName(name, now)
	if _, err := os.Stat(filepath.Join(dir, base)); os.IsNotExist(err) {
		return base
	}
	stem := strings.TrimSuffix(base, ".txt")
	for idx := 2; ; idx++ {
		cand := fmt.Sprintf("%s__%d.txt", stem, idx)
		if _, err := os.Stat(filepath.Join(dir, cand)); os.IsNotExist(err) {
			return cand
		}
	}
}

// expandInputs expands glob arguments, keeps literal paths that exist, drops
// duplicates and sorts the result.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

func init() {
	rootCmd.AddCommand(profileBatchCmd)
	profileBatchCmd.Flags().BoolVar(&pbQuick, "quick", false, "quick profiles: no correlations, no category frequencies")
	profileBatchCmd.Flags().BoolVar(&pbNoCorr, "no-corr", false, "skip the correlation section")
	profileBatchCmd.Flags().BoolVar(&pbNoCats, "no-cats", false, "skip the category frequency section")
	profileBatchCmd.Flags().BoolVar(&pbStdout, "stdout", false, "also print every report")
	profileBatchCmd.Flags().BoolVar(&pbQuiet, "quiet", false, "suppress progress and non-essential output")
	profileBatchCmd.Flags().BoolVar(&pbKeepGoing, "keep-going", false, "continue past files that fail to load")
	profileBatchCmd.Flags().StringVar(&pbDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (auto-detect if omitted)")
	profileBatchCmd.Flags().StringVar(&pbEncoding, "encoding", "", "text encoding (auto-detect if omitted)")
	profileBatchCmd.Flags().StringVar(&pbSheet, "sheet", "", "XLSX: sheet name or 1-based index")
}
