package loader

// CleanReport counts what LoadAndClean removed.
type CleanReport struct {
	RowsBefore    int
	ColsBefore    int
	EmptyRows     int
	EmptyCols     int
	DuplicateRows int
	RowsAfter     int
	ColsAfter     int
}

// LoadAndClean loads path, then drops fully empty rows, fully empty columns and
// exact duplicate rows. The cleaned table is a new value; the cached table is
// left untouched.
func (l *Loader) LoadAndClean(path string, opts LoadOptions) (*Result, CleanReport, error) {
	res, err := l.Load(path, opts)
	if err != nil {
		return nil, CleanReport{}, err
	}
	var rep CleanReport
	rep.RowsBefore, rep.ColsBefore = res.Table.Shape()

	t, rows, cols := res.Table.DropEmpty()
	rep.EmptyRows, rep.EmptyCols = rows, cols
	t, rep.DuplicateRows = t.DropDuplicates()
	rep.RowsAfter, rep.ColsAfter = t.Shape()

	l.log.Info().
		Int("empty_rows", rep.EmptyRows).
		Int("empty_cols", rep.EmptyCols).
		Int("duplicates", rep.DuplicateRows).
		Int("rows", rep.RowsAfter).
		Int("cols", rep.ColsAfter).
		Msg("cleaned")

	return &Result{Table: t, Diagnostics: res.Diagnostics}, rep, nil
}
