package qdb

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"
)

// Result is the outcome of a query, copied into Go memory.
type Result struct {
	Tables            []Table
	ScannedPointCount int64
}

// Table is a rectangular block of a result. Every row has one value per
// column name.
type Table struct {
	Name        string
	ColumnNames []string
	Rows        []Row
}

type Row []Value

// Column returns the index of the column named name, or -1.
func (t *Table) Column(name string) int {
	for i, n := range t.ColumnNames {
		if n == name {
			return i
		}
	}
	return -1
}

// RowCount sums the rows of every table.
func (r *Result) RowCount() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Rows)
	}
	return n
}

// Query runs q and returns a copy of its result. The native result is
// released before Query returns.
func (h *Handle) Query(q string) (*Result, error) {
	if q == "" {
		return nil, newLocalError(QDB_E_INVALID_ARGUMENT, "empty query")
	}
	c, err := h.enter()
	if err != nil {
		return nil, err
	}
	defer c.exit()

	res, err := qdb_query(c.h, q)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer res.Release()

	out, err := assembleResult((*c_qdb_query_result_t)(res.Ptr()))
	if err != nil {
		return nil, err
	}
	h.log.Debug("query",
		zap.Int("rows", out.RowCount()),
		zap.Int64("scanned_points", out.ScannedPointCount))
	return out, nil
}

// assembleResult copies a native query result. The native result holds a
// single block of column names and rows of point results.
func assembleResult(native *c_qdb_query_result_t) (*Result, error) {
	if native == nil {
		return nil, newLocalError(QDB_E_INVALID_REPLY, "null query result")
	}
	if msg := native.ErrorMessage.String(); msg != "" {
		return nil, newLocalError(QDB_E_INVALID_QUERY, msg)
	}
	columns := int(native.ColumnCount)
	out := &Result{ScannedPointCount: int64(native.ScannedPointCount)}
	if columns == 0 {
		return out, nil
	}

	names := nativePoints[c_qdb_string_t](unsafe.Pointer(native.ColumnNames), columns)
	if names == nil {
		return nil, newLocalError(QDB_E_INVALID_REPLY, "query result without column names")
	}
	table := Table{
		ColumnNames: make([]string, columns),
		Rows:        make([]Row, 0, native.RowCount),
	}
	for i, n := range names {
		table.ColumnNames[i] = n.String()
	}

	rows := nativePoints[uintptr](unsafe.Pointer(native.Rows), int(native.RowCount))
	if rows == nil && native.RowCount > 0 {
		return nil, newLocalError(QDB_E_INVALID_REPLY, "query result without rows")
	}
	for r, rowPtr := range rows {
		points := nativePoints[c_qdb_point_result_t](unsafe.Pointer(rowPtr), columns)
		if points == nil {
			return nil, newLocalError(QDB_E_INVALID_REPLY, fmt.Sprintf("query result row %d is null", r))
		}
		row := make(Row, columns)
		for i, p := range points {
			v, err := pointResultValue(p)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, table.ColumnNames[i], err)
			}
			row[i] = v
		}
		table.Rows = append(table.Rows, row)
	}
	out.Tables = []Table{table}
	return out, nil
}

func pointResultValue(p c_qdb_point_result_t) (Value, error) {
	t, ok, err := resultColumnType(ResultType(p.Type))
	if err != nil || !ok {
		return NullValue(), err
	}
	return valueFromNative(t, p.Payload)
}
