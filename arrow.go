package qdb

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func arrowTypeOf(k ValueKind) arrow.DataType {
	switch k {
	case KindInt64:
		return arrow.PrimitiveTypes.Int64
	case KindDouble:
		return arrow.PrimitiveTypes.Float64
	case KindTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ns
	case KindBlob:
		return arrow.BinaryTypes.Binary
	}
	// strings, symbols and all-null columns
	return arrow.BinaryTypes.String
}

func timespecToArrow(ts Timespec) arrow.Timestamp {
	return arrow.Timestamp(ts.Sec*1_000_000_000 + ts.Nsec)
}

// appendArrowValue appends v to a builder created for arrowTypeOf(kind).
func appendArrowValue(b array.Builder, v Value) error {
	if v.IsNull() {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.Int64Builder:
		if x, ok := v.Int64(); ok {
			b.Append(x)
			return nil
		}
	case *array.Float64Builder:
		if x, ok := v.Double(); ok {
			b.Append(x)
			return nil
		}
	case *array.TimestampBuilder:
		if x, ok := v.Timestamp(); ok {
			b.Append(timespecToArrow(x))
			return nil
		}
	case *array.BinaryBuilder:
		if x, ok := v.Blob(); ok {
			b.Append(x)
			return nil
		}
	case *array.StringBuilder:
		if x, ok := v.Text(); ok {
			b.Append(x)
			return nil
		}
	}
	return newLocalError(QDB_E_INCOMPATIBLE_TYPE, fmt.Sprintf("cannot append %v value to %T", v.Kind(), b))
}

// ArrowSchema derives a schema from t. Each column takes the type of its
// first non-null value; columns mixing kinds are rejected by ArrowRecord.
func (t *Table) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(t.ColumnNames))
	for i, name := range t.ColumnNames {
		kind := KindNull
		for _, row := range t.Rows {
			if !row[i].IsNull() {
				kind = row[i].Kind()
				break
			}
		}
		fields[i] = arrow.Field{Name: name, Type: arrowTypeOf(kind), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// ArrowRecord copies t into a record allocated from mem. The caller must
// Release it.
func (t *Table) ArrowRecord(mem memory.Allocator) (arrow.Record, error) {
	schema := t.ArrowSchema()
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	for r, row := range t.Rows {
		if len(row) != len(t.ColumnNames) {
			return nil, newLocalError(QDB_E_INVALID_REPLY, fmt.Sprintf("row %d has %d values for %d columns", r, len(row), len(t.ColumnNames)))
		}
		for i, v := range row {
			if err := appendArrowValue(b.Field(i), v); err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, t.ColumnNames[i], err)
			}
		}
	}
	return b.NewRecord(), nil
}

// PointsArrowRecord copies pts into a two-column record, "timestamp" and
// name. Null sentinels become Arrow nulls.
func PointsArrowRecord[T PointValue](mem memory.Allocator, name string, pts Points[T]) (arrow.Record, error) {
	cells := pts.Cells()
	var zero T
	kind := KindNull
	switch any(zero).(type) {
	case float64:
		kind = KindDouble
	case int64:
		kind = KindInt64
	case Timespec:
		kind = KindTimestamp
	case []byte:
		kind = KindBlob
	case string:
		kind = KindString
	}
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "timestamp", Type: arrow.FixedWidthTypes.Timestamp_ns},
		{Name: name, Type: arrowTypeOf(kind), Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	stamps := b.Field(0).(*array.TimestampBuilder)
	for i, ts := range pts.Timestamps {
		stamps.Append(timespecToArrow(ts))
		if err := appendArrowValue(b.Field(1), cells[i]); err != nil {
			return nil, err
		}
	}
	return b.NewRecord(), nil
}

// WriteArrowFile writes records, which must share one schema, as an Arrow
// IPC file.
func WriteArrowFile(w io.Writer, records ...arrow.Record) error {
	if len(records) == 0 {
		return newLocalError(QDB_E_INVALID_ARGUMENT, "no record to write")
	}
	mem := memory.NewGoAllocator()
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(records[0].Schema()), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create Arrow writer: %w", err)
	}
	for _, rec := range records {
		if err := fw.Write(rec); err != nil {
			_ = fw.Close()
			return fmt.Errorf("failed to write record batch: %w", err)
		}
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close Arrow writer: %w", err)
	}
	return nil
}

// WriteArrow writes every table of r as one record batch each. Tables with
// different columns cannot share a file, so only the first table's schema
// is accepted.
func (r *Result) WriteArrow(w io.Writer) error {
	if len(r.Tables) == 0 {
		return newLocalError(QDB_E_INVALID_ARGUMENT, "empty result")
	}
	mem := memory.NewGoAllocator()
	records := make([]arrow.Record, 0, len(r.Tables))
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	for i := range r.Tables {
		rec, err := r.Tables[i].ArrowRecord(mem)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return WriteArrowFile(w, records...)
}
