package loader

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/KaramelBytes/datakit-cli/internal/table"
	"gitlab.com/tozd/go/errors"
)

// JSON orientations, in fallback order.
const (
	OrientRecords = "records"
	OrientIndex   = "index"
	OrientColumns = "columns"
	OrientValues  = "values"
)

// OrientFallbacks is tried in order after the direct parse fails.
var OrientFallbacks = []string{OrientRecords, OrientIndex, OrientColumns, OrientValues}

const defaultOrient = OrientColumns

type recordsFormat struct{}

func (recordsFormat) Name() string         { return "json" }
func (recordsFormat) Extensions() []string { return []string{".json"} }

func (recordsFormat) Read(path string, opts LoadOptions, d *Diagnostics) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	doc, err := decodeOrdered(data)
	if err != nil {
		return nil, errors.Errorf("parse %s: %w", path, err)
	}

	direct := opts.Orient
	if direct == "" {
		direct = defaultOrient
	}
	t, firstErr := fromOrient(doc, direct)
	if firstErr == nil {
		d.Orient = direct
		return t, nil
	}
	if opts.Orient != "" {
		return nil, errors.Errorf("parse %s as %s: %w", path, direct, firstErr)
	}
	for _, o := range OrientFallbacks {
		if t, err := fromOrient(doc, o); err == nil {
			d.Orient = o
			return t, nil
		}
	}
	return nil, errors.Errorf("parse %s: %w", path, firstErr)
}

// object keeps JSON object keys in document order.
type object struct {
	keys []string
	vals map[string]any
}

func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON document")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	switch x := tok.(type) {
	case json.Delim:
		switch x {
		case '{':
			obj := &object{vals: map[string]any{}}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, errors.WithStack(err)
				}
				key, _ := kt.(string)
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.vals[key]; !dup {
					obj.keys = append(obj.keys, key)
				}
				obj.vals[key] = val
			}
			if _, err := dec.Token(); err != nil {
				return nil, errors.WithStack(err)
			}
			return obj, nil
		case '[':
			var arr []any
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, errors.WithStack(err)
			}
			return arr, nil
		}
		return nil, errors.Errorf("unexpected delimiter %v", x)
	default:
		return tok, nil
	}
}

// cellText renders a scalar for kind inference; nested values become compact JSON.
func cellText(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		b, err := json.Marshal(plain(x))
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

func plain(v any) any {
	switch x := v.(type) {
	case *object:
		m := make(map[string]any, len(x.keys))
		for _, k := range x.keys {
			m[k] = plain(x.vals[k])
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	}
	return v
}

// grid collects cells by column name while preserving first-seen column order.
type grid struct {
	names []string
	index map[string]int
	rows  []map[string]any
}

func newGrid() *grid { return &grid{index: map[string]int{}} }

func (g *grid) column(name string) {
	if _, ok := g.index[name]; !ok {
		g.index[name] = len(g.names)
		g.names = append(g.names, name)
	}
}

func (g *grid) table() *table.Table {
	raw := make([][]string, len(g.rows))
	for i, r := range g.rows {
		row := make([]string, len(g.names))
		for j, n := range g.names {
			if s, ok := cellText(r[n]); ok {
				row[j] = s
			}
		}
		raw[i] = row
	}
	return table.FromRecords(g.names, raw)
}

func fromOrient(doc any, orient string) (*table.Table, error) {
	switch orient {
	case OrientRecords:
		arr, ok := doc.([]any)
		if !ok {
			return nil, errors.New("records orientation needs an array of objects")
		}
		g := newGrid()
		for _, e := range arr {
			obj, ok := e.(*object)
			if !ok {
				return nil, errors.New("records orientation needs an array of objects")
			}
			for _, k := range obj.keys {
				g.column(k)
			}
			g.rows = append(g.rows, obj.vals)
		}
		return g.table(), nil

	case OrientIndex:
		top, ok := doc.(*object)
		if !ok {
			return nil, errors.New("index orientation needs an object of objects")
		}
		g := newGrid()
		for _, rk := range top.keys {
			row, ok := top.vals[rk].(*object)
			if !ok {
				return nil, errors.Errorf("index orientation: row %q is not an object", rk)
			}
			for _, k := range row.keys {
				g.column(k)
			}
			g.rows = append(g.rows, row.vals)
		}
		return g.table(), nil

	case OrientColumns:
		top, ok := doc.(*object)
		if !ok {
			return nil, errors.New("columns orientation needs an object of objects or arrays")
		}
		g := newGrid()
		rowIndex := map[string]int{}
		put := func(ck, rk string, v any) {
			i, seen := rowIndex[rk]
			if !seen {
				i = len(g.rows)
				rowIndex[rk] = i
				g.rows = append(g.rows, map[string]any{})
			}
			g.rows[i][ck] = v
		}
		arrayLen := -1
		for _, ck := range top.keys {
			g.column(ck)
			switch col := top.vals[ck].(type) {
			case *object:
				for _, rk := range col.keys {
					put(ck, rk, col.vals[rk])
				}
			case []any:
				// rows keyed by position
				if arrayLen >= 0 && len(col) != arrayLen {
					return nil, errors.Errorf("columns orientation: column %q has %d values, want %d", ck, len(col), arrayLen)
				}
				arrayLen = len(col)
				for j, v := range col {
					put(ck, strconv.Itoa(j), v)
				}
			default:
				return nil, errors.Errorf("columns orientation: column %q is not an object or array", ck)
			}
		}
		return g.table(), nil

	case OrientValues:
		arr, ok := doc.([]any)
		if !ok {
			return nil, errors.New("values orientation needs an array of arrays")
		}
		g := newGrid()
		for _, e := range arr {
			vals, ok := e.([]any)
			if !ok {
				return nil, errors.New("values orientation needs an array of arrays")
			}
			row := map[string]any{}
			for j, v := range vals {
				name := strconv.Itoa(j)
				g.column(name)
				row[name] = v
			}
			g.rows = append(g.rows, row)
		}
		return g.table(), nil
	}
	return nil, errors.Errorf("unknown orientation %q (want one of %v)", orient, OrientFallbacks)
}

func (recordsFormat) Write(w io.Writer, t *table.Table, _ string) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < t.Rows(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  {")
		for j, c := range t.Columns {
			if j > 0 {
				buf.WriteString(", ")
			}
			k, _ := json.Marshal(c.Name)
			buf.Write(k)
			buf.WriteString(": ")
			v, err := json.Marshal(jsonValue(c.Value(i)))
			if err != nil {
				return errors.WithStack(err)
			}
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteString("\n]\n")
	_, err := w.Write(buf.Bytes())
	return errors.WithStack(err)
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case float64:
		if x != x {
			return nil
		}
		return x
	case nil, int64, bool, string:
		return x
	}
	return table.FormatCell(v)
}
