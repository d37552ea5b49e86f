package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/loader"
	"github.com/KaramelBytes/datakit-cli/internal/profile"
	"github.com/KaramelBytes/datakit-cli/internal/workspace"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	pfRaw        bool
	pfLocation   string
	pfName       string
	pfNoCorr     bool
	pfNoCats     bool
	pfQuick      bool
	pfSaveReport bool
	pfOutput     string
	pfDelimiter  string
	pfEncoding   string
	pfSheet      string
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Print a descriptive profile of a tabular file",
	Long: `profile loads <file> and prints dimensions, types and missing values,
duplicate rows, descriptive statistics, correlations, category frequencies
and a list of potential problems. With --save-report the report is also
written under reports/.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lo, err := loadOptions(pfDelimiter, pfEncoding, pfSheet, "")
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
		res, err := loadFrom(l, args[0], pfRaw, pfLocation, lo)
		if err != nil {
			return err
		}

		opt := profileOptions(pfName, res.Diagnostics.Path, pfQuick, !pfNoCorr, !pfNoCats)
		w := cmd.OutOrStdout()
		p, err := profile.Generate(w, res.Table, opt)
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, summaryBox(p.Summary()))

		if pfSaveReport || pfOutput != "" {
			out, err := saveProfile(ws, p, pfOutput)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "✓ Report saved to %s\n", out)
		}
		return nil
	},
}

// loadFrom loads arg as a plain path, as a name searched under data/raw
// (raw or location "raw"), or as a file in data/processed.
func loadFrom(l *loader.Loader, arg string, raw bool, location string, opts loader.LoadOptions) (*loader.Result, error) {
	switch {
	case raw || location == "raw":
		return l.LoadRaw(arg, opts)
	case location == "processed":
		return l.LoadProcessed(arg, opts)
	case location != "":
		if _, err := l.Resolve(location); err != nil {
			return nil, err
		}
	}
	return l.Load(arg, opts)
}

// profileOptions applies the section flags; the name defaults to the file's base name.
func profileOptions(name, path string, quick, corr, cats bool) profile.Options {
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if quick {
		return profile.Quick(name)
	}
	opt := profile.DefaultOptions()
	opt.Name = name
	opt.Correlations = corr
	opt.Categories = cats
	return opt
}

func reportDir(ws *workspace.Context) string {
	if cfg != nil && cfg.ReportDir != "" {
		return cfg.ReportDir
	}
	return ws.Layout.Reports()
}

func saveProfile(ws *workspace.Context, p *profile.Profile, filename string) (string, error) {
	return profile.SaveReport(reportDir(ws), filename, p.Name, p.Text(), time.Now())
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 2)
	boxTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	boxWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func summaryBox(s profile.Summary) string {
	var b strings.Builder
	b.WriteString(boxTitle.Render(s.Name))
	fmt.Fprintf(&b, "\n%d rows x %d columns, %.2f MB", s.Rows, s.Cols, s.MemoryMB)
	fmt.Fprintf(&b, "\nduplicates: %d, high-null columns: %d", s.Duplicates, s.NullCols)
	if s.Problems == 0 {
		b.WriteString("\n" + boxOK.Render("no significant problems"))
	} else {
		for _, pr := range s.ProblemList {
			b.WriteString("\n" + boxWarn.Render("⚠ "+pr))
		}
	}
	return boxStyle.Render(b.String())
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().BoolVar(&pfRaw, "raw", false, "treat <file> as a name searched under data/raw")
	profileCmd.Flags().StringVar(&pfLocation, "location", "", "load <file> from a location: raw | processed")
	profileCmd.Flags().StringVar(&pfName, "name", "", "dataset name shown in the report (default: file name)")
	profileCmd.Flags().BoolVar(&pfNoCorr, "no-corr", false, "skip the correlation section")
	profileCmd.Flags().BoolVar(&pfNoCats, "no-cats", false, "skip the category frequency section")
	profileCmd.Flags().BoolVar(&pfQuick, "quick", false, "quick profile: no correlations, no category frequencies")
	profileCmd.Flags().BoolVar(&pfSaveReport, "save-report", false, "also save the report under reports/")
	profileCmd.Flags().StringVarP(&pfOutput, "output", "o", "", "report file name (implies --save-report)")
	profileCmd.Flags().StringVar(&pfDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (auto-detect if omitted)")
	profileCmd.Flags().StringVar(&pfEncoding, "encoding", "", "text encoding (auto-detect if omitted)")
	profileCmd.Flags().StringVar(&pfSheet, "sheet", "", "XLSX: sheet name or 1-based index")
}
