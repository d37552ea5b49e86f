package loader

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/errs"
	"github.com/KaramelBytes/datakit-cli/internal/table"
	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"gitlab.com/tozd/go/errors"
)

type parquetFormat struct{}

func (parquetFormat) Name() string         { return "parquet" }
func (parquetFormat) Extensions() []string { return []string{".parquet"} }

func (parquetFormat) Read(path string, _ LoadOptions, _ *Diagnostics) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	pqReader, err := file.NewParquetReader(f)
	if err != nil {
		return nil, errors.Errorf("open parquet %s: %w", path, err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, errors.Errorf("create arrow reader: %w", err)
	}
	tbl, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, errors.Errorf("read parquet %s: %w", path, err)
	}
	defer tbl.Release()

	cols := make([]*table.Column, 0, tbl.NumCols())
	for i := 0; i < int(tbl.NumCols()); i++ {
		c := tbl.Column(i)
		kind, ok := kindForArrow(c.DataType())
		if !ok {
			return nil, &errs.FormatError{Op: "load column " + c.Name(), Ext: c.DataType().String(), Path: path}
		}
		cols = append(cols, columnFromArrow(c.Name(), kind, c.DataType(), c.Data().Chunks(), int(tbl.NumRows())))
	}
	return table.FromColumns(cols...)
}

func columnFromArrow(name string, kind table.Kind, dt arrow.DataType, chunks []arrow.Array, n int) *table.Column {
	cells := make([]any, 0, n)
	for _, chunk := range chunks {
		for i := 0; i < chunk.Len(); i++ {
			if chunk.IsNull(i) {
				cells = append(cells, nil)
				continue
			}
			cells = append(cells, arrowValue(chunk, dt, i))
		}
	}
	return table.NewColumn(name, kind, cells)
}

func kindForArrow(dt arrow.DataType) (table.Kind, bool) {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return table.Text, true
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return table.Int, true
	case arrow.FLOAT32, arrow.FLOAT64, arrow.UINT64:
		return table.Float, true
	case arrow.BOOL:
		return table.Bool, true
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return table.Time, true
	}
	return table.Text, false
}

func arrowValue(a arrow.Array, dt arrow.DataType, i int) any {
	switch arr := a.(type) {
	case *array.String:
		return arr.Value(i)
	case *array.LargeString:
		return arr.Value(i)
	case *array.Int8:
		return int64(arr.Value(i))
	case *array.Int16:
		return int64(arr.Value(i))
	case *array.Int32:
		return int64(arr.Value(i))
	case *array.Int64:
		return arr.Value(i)
	case *array.Uint8:
		return int64(arr.Value(i))
	case *array.Uint16:
		return int64(arr.Value(i))
	case *array.Uint32:
		return int64(arr.Value(i))
	case *array.Uint64:
		return float64(arr.Value(i))
	case *array.Float32:
		return float64(arr.Value(i))
	case *array.Float64:
		return arr.Value(i)
	case *array.Boolean:
		return arr.Value(i)
	case *array.Timestamp:
		unit := dt.(*arrow.TimestampType).Unit
		return arr.Value(i).ToTime(unit).UTC()
	case *array.Date32:
		return arr.Value(i).ToTime().UTC()
	case *array.Date64:
		return arr.Value(i).ToTime().UTC()
	}
	return nil
}

var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

func arrowType(k table.Kind) arrow.DataType {
	switch k {
	case table.Int:
		return arrow.PrimitiveTypes.Int64
	case table.Float:
		return arrow.PrimitiveTypes.Float64
	case table.Bool:
		return arrow.FixedWidthTypes.Boolean
	case table.Time:
		return timestampType
	default:
		return arrow.BinaryTypes.String
	}
}

// sinkOnly hides Close so the parquet writer leaves the temp file to its owner.
type sinkOnly struct{ io.Writer }

func (parquetFormat) Write(w io.Writer, t *table.Table, _ string) error {
	alloc := memory.DefaultAllocator
	fields := make([]arrow.Field, len(t.Columns))
	for j, c := range t.Columns {
		fields[j] = arrow.Field{Name: c.Name, Type: arrowType(c.Kind), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	arrays := make([]arrow.Array, len(t.Columns))
	for j, c := range t.Columns {
		arr, err := buildArray(alloc, c)
		if err != nil {
			for _, a := range arrays[:j] {
				a.Release()
			}
			return err
		}
		arrays[j] = arr
	}
	rec := array.NewRecord(schema, arrays, int64(t.Rows()))
	defer rec.Release()
	for _, a := range arrays {
		a.Release()
	}

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	fw, err := pqarrow.NewFileWriter(schema, sinkOnly{w}, props, arrowProps)
	if err != nil {
		return errors.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return errors.Errorf("write parquet: %w", err)
	}
	if err := fw.Close(); err != nil {
		return errors.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func buildArray(alloc memory.Allocator, c *table.Column) (arrow.Array, error) {
	switch c.Kind {
	case table.Int:
		b := array.NewInt64Builder(alloc)
		defer b.Release()
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Value(i).(int64); ok {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil
	case table.Float:
		b := array.NewFloat64Builder(alloc)
		defer b.Release()
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Float(i); ok {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil
	case table.Bool:
		b := array.NewBooleanBuilder(alloc)
		defer b.Release()
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Value(i).(bool); ok {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil
	case table.Time:
		b := array.NewTimestampBuilder(alloc, timestampType)
		defer b.Release()
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Value(i).(time.Time); ok {
				b.Append(arrow.Timestamp(v.UnixMicro()))
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil
	case table.Text:
		b := array.NewStringBuilder(alloc)
		defer b.Release()
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(c.Text(i))
			}
		}
		return b.NewArray(), nil
	}
	return nil, errors.Errorf("column %q: unsupported kind %s", c.Name, c.Kind)
}
