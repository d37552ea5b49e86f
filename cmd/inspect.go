package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KaramelBytes/datakit-cli/internal/loader"
	"github.com/KaramelBytes/datakit-cli/internal/table"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	inRaw       bool
	inHead      int
	inDelimiter string
	inEncoding  string
	inSheet     string
	inOrient    string
	inStrict    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Load a tabular file and show how it was read plus its first rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(inDelimiter, inEncoding, inSheet, inOrient)
		if err != nil {
			return err
		}
		ws, err := openWorkspace(false)
		if err != nil {
			return err
		}
		l, err := newLoader(ws, inStrict)
		if err != nil {
			return err
		}
		res, err := loadFrom(l, args[0], inRaw, "", opts)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		printDiagnostics(w, res.Diagnostics)
		rows, cols := res.Table.Shape()
		fmt.Fprintf(w, "Shape: %d rows x %d columns\n\n", rows, cols)
		for _, c := range res.Table.Columns {
			fmt.Fprintf(w, "  %-30s %-8s %d null\n", c.Name, c.Kind, c.NullCount())
		}
		if inHead > 0 && rows > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, headTable(res.Table.Head(inHead)))
		}
		return nil
	},
}

// loadOptions turns the shared load flags into loader options.
func loadOptions(delimiter, encoding, sheet, orient string) (loader.LoadOptions, error) {
	var o loader.LoadOptions
	d := delimiter
	if d != "\t" {
		// a literal tab is whitespace and must survive trimming
		d = strings.ToLower(strings.Trim(d, " "))
	}
	switch d {
	case "":
	case ",", "comma":
		o.Delimiter = ','
	case ";", "semicolon":
		o.Delimiter = ';'
	case "\t", "tab":
		o.Delimiter = '\t'
	case "|", "pipe":
		o.Delimiter = '|'
	default:
		return o, fmt.Errorf("unsupported --delimiter: %s (use ','|';'|'tab'|'|')", delimiter)
	}
	o.Encoding = strings.TrimSpace(encoding)
	if sheet != "" {
		if i, err := strconv.Atoi(sheet); err == nil && i > 0 {
			o.SheetIndex = i
		} else {
			o.Sheet = sheet
		}
	}
	o.Orient = strings.ToLower(strings.TrimSpace(orient))
	return o, nil
}

func printDiagnostics(w io.Writer, d loader.Diagnostics) {
	fmt.Fprintf(w, "File:     %s\n", d.Path)
	fmt.Fprintf(w, "Format:   %s\n", d.Format)
	if d.Encoding != "" {
		fmt.Fprintf(w, "Encoding: %s (confidence %.0f%%)\n", d.Encoding, d.Confidence*100)
	}
	if d.Delimiter != 0 {
		fmt.Fprintf(w, "Delimiter: %q\n", d.Delimiter)
	}
	if d.Tier != "" {
		fmt.Fprintf(w, "Parser:   %s\n", d.Tier)
	}
	if d.Sheet != "" {
		fmt.Fprintf(w, "Sheet:    %s\n", d.Sheet)
	}
	if d.Orient != "" {
		fmt.Fprintf(w, "Orient:   %s\n", d.Orient)
	}
	if d.SkippedRows > 0 {
		fmt.Fprintf(w, "⚠ Warning: %d malformed rows were skipped\n", d.SkippedRows)
	}
	if d.CorruptionSuspected {
		fmt.Fprintf(w, "⚠ Warning: possible encoding corruption, e.g. %q\n", d.CorruptionSample)
	}
}

func headTable(t *table.Table) string {
	header, records := t.Records()
	return lgtable.New().
		Border(lipgloss.RoundedBorder()).
		Headers(header...).
		Rows(records...).
		String()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inRaw, "raw", false, "treat <file> as a name searched under data/raw")
	inspectCmd.Flags().IntVarP(&inHead, "head", "n", 5, "number of rows to show (0 hides the table)")
	inspectCmd.Flags().StringVar(&inDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (auto-detect if omitted)")
	inspectCmd.Flags().StringVar(&inEncoding, "encoding", "", "text encoding (auto-detect if omitted)")
	inspectCmd.Flags().StringVar(&inSheet, "sheet", "", "XLSX: sheet name or 1-based index")
	inspectCmd.Flags().StringVar(&inOrient, "orient", "", "JSON orientation: records | index | columns | values (auto if omitted)")
	inspectCmd.Flags().BoolVar(&inStrict, "strict", false, "fail instead of skipping malformed rows")
}
