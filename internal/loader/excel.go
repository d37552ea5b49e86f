package loader

import (
	"io"
	"strings"

	"github.com/KaramelBytes/datakit-cli/internal/table"
	"github.com/xuri/excelize/v2"
	"gitlab.com/tozd/go/errors"
)

const defaultSheet = "Sheet1"

type excelFormat struct{}

func (excelFormat) Name() string         { return "excel" }
func (excelFormat) Extensions() []string { return []string{".xlsx", ".xls"} }

func (excelFormat) Read(path string, opts LoadOptions, d *Diagnostics) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Errorf("open spreadsheet %s: %w", path, err)
	}
	defer f.Close()

	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}
	d.Sheet = sheet

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &table.Table{}, nil
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	header := make([]string, width)
	copy(header, rows[0])
	return table.FromRecords(header, rows[1:]), nil
}

func pickSheet(f *excelize.File, opts LoadOptions) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.New("no sheets found in spreadsheet")
	}
	switch {
	case opts.Sheet != "":
		for _, s := range sheets {
			if strings.EqualFold(s, opts.Sheet) {
				return s, nil
			}
		}
		return "", errors.Errorf("sheet %q not found (available: %s)", opts.Sheet, strings.Join(sheets, ", "))
	case opts.SheetIndex > 0:
		if opts.SheetIndex > len(sheets) {
			return "", errors.Errorf("sheet index %d out of range (1..%d)", opts.SheetIndex, len(sheets))
		}
		return sheets[opts.SheetIndex-1], nil
	}
	if name := f.GetSheetName(f.GetActiveSheetIndex()); name != "" {
		return name, nil
	}
	return sheets[0], nil
}

func (excelFormat) Write(w io.Writer, t *table.Table, _ string) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		header[j] = c.Name
	}
	if err := f.SetSheetRow(defaultSheet, "A1", &header); err != nil {
		return errors.WithStack(err)
	}
	for i := 0; i < t.Rows(); i++ {
		row := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = excelValue(c, i)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.WithStack(err)
		}
		if err := f.SetSheetRow(defaultSheet, cell, &row); err != nil {
			return errors.WithStack(err)
		}
	}
	if err := f.Write(w); err != nil {
		return errors.Errorf("write spreadsheet: %w", err)
	}
	return nil
}

// Timestamps are written as text so they read back without a date style.
func excelValue(c *table.Column, i int) any {
	v := c.Value(i)
	switch v.(type) {
	case nil:
		return nil
	case int64, float64, bool, string:
		return v
	}
	return table.FormatCell(v)
}
