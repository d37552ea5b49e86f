package cmd

import (
	"fmt"

	"github.com/KaramelBytes/datakit-cli/internal/loader"
	"github.com/spf13/cobra"
)

var (
	cvRaw       bool
	cvLocation  string
	cvFormat    string
	cvClean     bool
	cvDelimiter string
	cvEncoding  string
	cvSheet     string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file> <out-name>",
	Short: "Load a tabular file and save it under data/processed (or data/raw) in another format",
	Long: `convert loads <file> with format detection, optionally drops empty rows,
empty columns and duplicate rows (--clean), and writes <out-name> into the
chosen location. With --format auto the output format follows the extension
of <out-name>; names without a known extension are written as CSV.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cvDelimiter, cvEncoding, cvSheet, "")
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
		path := args[0]
		if cvRaw {
			p, _, err := l.FindFile(ws.Layout.Raw(), args[0])
			if err != nil {
				return err
			}
			path = p
		}

		var res *loader.Result
		if cvClean {
			var rep loader.CleanReport
			res, rep, err = l.LoadAndClean(path, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Cleaned: %d empty rows, %d empty columns, %d duplicate rows removed (%d x %d -> %d x %d)\n",
				rep.EmptyRows, rep.EmptyCols, rep.DuplicateRows, rep.RowsBefore, rep.ColsBefore, rep.RowsAfter, rep.ColsAfter)
		} else {
			res, err = l.Load(path, opts)
			if err != nil {
				return err
			}
		}
		if res.Diagnostics.SkippedRows > 0 {
			fmt.Printf("⚠ Warning: %d malformed rows were skipped while reading\n", res.Diagnostics.SkippedRows)
		}
		out, err := l.Save(res.Table, args[1], cvLocation, cvFormat)
		if err != nil {
			return err
		}
		rows, cols := res.Table.Shape()
		fmt.Printf("✓ Saved %d rows x %d columns to %s\n", rows, cols, out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().BoolVar(&cvRaw, "raw", false, "treat <file> as a name searched under data/raw")
	convertCmd.Flags().StringVar(&cvLocation, "location", "processed", "output location: processed | raw")
	convertCmd.Flags().StringVar(&cvFormat, "format", loader.FormatAuto, "output format: auto | csv | excel | xlsx | parquet | json")
	convertCmd.Flags().BoolVar(&cvClean, "clean", false, "drop empty rows, empty columns and duplicate rows before saving")
	convertCmd.Flags().StringVar(&cvDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (auto-detect if omitted)")
	convertCmd.Flags().StringVar(&cvEncoding, "encoding", "", "text encoding (auto-detect if omitted)")
	convertCmd.Flags().StringVar(&cvSheet, "sheet", "", "XLSX: sheet name or 1-based index")
}
