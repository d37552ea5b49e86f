package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

// Kind is the single inferred type of a column.
type Kind int

const (
	Text Kind = iota
	Int
	Float
	Bool
	Time
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Time:
		return "timestamp"
	default:
		return "text"
	}
}

// Numeric reports whether values of this kind take part in statistics.
func (k Kind) Numeric() bool { return k == Int || k == Float }

// Column holds one named, typed series. A nil cell is a missing value;
// otherwise cells hold string, int64, float64, bool or time.Time per Kind.
type Column struct {
	Name  string
	Kind  Kind
	cells []any
}

// NewColumn wraps cells without copying them.
func NewColumn(name string, kind Kind, cells []any) *Column {
	return &Column{Name: name, Kind: kind, cells: cells}
}

func (c *Column) Len() int          { return len(c.cells) }
func (c *Column) Value(i int) any   { return c.cells[i] }
func (c *Column) IsNull(i int) bool { return c.cells[i] == nil }

// Float returns cell i as a float for numeric kinds.
func (c *Column) Float(i int) (float64, bool) {
	switch v := c.cells[i].(type) {
	case int64:
		return float64(v), true
	case float64:
		if math.IsNaN(v) {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// Text renders cell i; missing values render as "".
func (c *Column) Text(i int) string { return FormatCell(c.cells[i]) }

func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.cells {
		if v == nil {
			n++
		}
	}
	return n
}

// Floats returns the non-missing numeric values in row order.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.cells))
	for i := range c.cells {
		if f, ok := c.Float(i); ok {
			out = append(out, f)
		}
	}
	return out
}

func (c *Column) subset(rows []int) *Column {
	cells := make([]any, len(rows))
	for j, i := range rows {
		cells[j] = c.cells[i]
	}
	return &Column{Name: c.Name, Kind: c.Kind, cells: cells}
}

// Table is an in-memory dataset of equally long columns.
type Table struct {
	Columns  []*Column
	Source   string
	LoadedAt time.Time
}

// FromColumns builds a table; all columns must have the same length.
func FromColumns(cols ...*Column) (*Table, error) {
	for _, c := range cols[min(1, len(cols)):] {
		if c.Len() != cols[0].Len() {
			return nil, errors.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), cols[0].Len())
		}
	}
	return &Table{Columns: cols}, nil
}

func (t *Table) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

func (t *Table) Shape() (rows, cols int) { return t.Rows(), len(t.Columns) }

func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Row returns the cells of row i.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.cells[i]
	}
	return out
}

// RowKey is a stable identity for duplicate detection.
func (t *Table) RowKey(i int) string {
	var b strings.Builder
	for j, c := range t.Columns {
		if j > 0 {
			b.WriteByte(0x1f)
		}
		if c.cells[i] == nil {
			b.WriteByte(0x00)
			continue
		}
		b.WriteString(FormatCell(c.cells[i]))
	}
	return b.String()
}

// Head returns a new table with the first n rows.
func (t *Table) Head(n int) *Table {
	if n > t.Rows() {
		n = t.Rows()
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.selectRows(rows)
}

func (t *Table) selectRows(rows []int) *Table {
	cols := make([]*Column, len(t.Columns))
	for j, c := range t.Columns {
		cols[j] = c.subset(rows)
	}
	return &Table{Columns: cols, Source: t.Source, LoadedAt: t.LoadedAt}
}

// MemoryBytes is a deterministic estimate of the in-memory footprint.
func (t *Table) MemoryBytes() int64 {
	var total int64
	for _, c := range t.Columns {
		total += int64(len(c.Name)) + 16
		for _, v := range c.cells {
			switch s := v.(type) {
			case nil:
				total += 16
			case string:
				total += 16 + int64(len(s))
			case time.Time:
				total += 24
			default:
				total += 8 + 16
			}
		}
	}
	return total
}

// Records renders the header and every row as strings, for text writers.
func (t *Table) Records() ([]string, [][]string) {
	rows := make([][]string, t.Rows())
	for i := range rows {
		row := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = FormatCell(c.cells[i])
		}
		rows[i] = row
	}
	return t.Names(), rows
}

// DuplicateRows counts rows identical to an earlier row.
func (t *Table) DuplicateRows() int {
	seen := make(map[string]struct{}, t.Rows())
	dup := 0
	for i := 0; i < t.Rows(); i++ {
		k := t.RowKey(i)
		if _, ok := seen[k]; ok {
			dup++
			continue
		}
		seen[k] = struct{}{}
	}
	return dup
}

// DropEmpty returns a new table without fully empty rows and columns,
// and the number of each removed.
func (t *Table) DropEmpty() (out *Table, rows, cols int) {
	var keepCols []*Column
	for _, c := range t.Columns {
		if c.Len() > 0 && c.NullCount() == c.Len() {
			cols++
			continue
		}
		keepCols = append(keepCols, c)
	}
	tmp := &Table{Columns: keepCols, Source: t.Source, LoadedAt: t.LoadedAt}
	var keep []int
	for i := 0; i < tmp.Rows(); i++ {
		empty := true
		for _, c := range tmp.Columns {
			if c.cells[i] != nil {
				empty = false
				break
			}
		}
		if empty {
			rows++
			continue
		}
		keep = append(keep, i)
	}
	return tmp.selectRows(keep), rows, cols
}

// DropDuplicates returns a new table keeping the first occurrence of each row.
func (t *Table) DropDuplicates() (*Table, int) {
	seen := make(map[string]struct{}, t.Rows())
	var keep []int
	for i := 0; i < t.Rows(); i++ {
		k := t.RowKey(i)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}
	return t.selectRows(keep), t.Rows() - len(keep)
}

// FormatCell is the canonical text form of a cell value.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Location() == time.UTC && x.Equal(x.Truncate(24*time.Hour)) {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
