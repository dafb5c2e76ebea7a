package qdb

import (
	"fmt"
	"unsafe"
)

// LocalTable reads rows of a time series over a set of columns. It is not
// safe for concurrent use.
type LocalTable struct {
	h        *Handle
	raw      QdbLocalTable
	alias    string
	columns  []Column
	released bool
}

// NewLocalTable opens a reader over cols of the time series alias. The
// column types must match the schema; symbol columns need no symtable here.
func (h *Handle) NewLocalTable(alias string, cols []Column) (*LocalTable, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return nil, err
	}
	defer c.exit()
	if len(cols) == 0 {
		return nil, newLocalError(QDB_E_INVALID_ARGUMENT, "local table needs at least one column")
	}

	native, err := makeSlice[c_qdb_ts_column_info_t](c.f, len(cols))
	if err != nil {
		return nil, err
	}
	for i, col := range cols {
		if col.Type < ColumnDouble || col.Type > ColumnSymbol {
			return nil, incompatibleType("column "+col.Name, col.Type)
		}
		name, err := acquireString(c.f, col.Name)
		if err != nil {
			return nil, err
		}
		native[i] = c_qdb_ts_column_info_t{Name: name.Ptr(), Type: int32(col.Type)}
	}
	raw, err := qdb_ts_local_table_init(c.h, alias, native)
	if err != nil {
		return nil, fmt.Errorf("local table %s: %w", alias, err)
	}
	return &LocalTable{h: h, raw: raw, alias: alias, columns: append([]Column(nil), cols...)}, nil
}

func (t *LocalTable) Alias() string { return t.alias }

func (t *LocalTable) Columns() []Column { return append([]Column(nil), t.columns...) }

func (t *LocalTable) enter() (*call, error) {
	if t.released {
		return nil, ErrTableReleased
	}
	return t.h.enter()
}

// GetRanges positions the reader on the rows within ranges.
func (t *LocalTable) GetRanges(ranges ...TimeRange) error {
	c, err := t.enter()
	if err != nil {
		return err
	}
	defer c.exit()
	native, err := rangesToNative(c.f, ranges)
	if err != nil {
		return err
	}
	return qdb_ts_table_get_ranges(c.h, t.raw, native)
}

// Next reads the next row. ok is false once every row has been read.
func (t *LocalTable) Next() (ts Timespec, row Row, ok bool, err error) {
	c, err := t.enter()
	if err != nil {
		return Timespec{}, nil, false, err
	}
	defer c.exit()

	ts, ok, err = qdb_ts_table_next_row(c.h, t.raw)
	if err != nil || !ok {
		return Timespec{}, nil, false, err
	}
	row = make(Row, len(t.columns))
	for i, col := range t.columns {
		if row[i], err = qdb_ts_row_get(c.h, t.raw, i, col.Type); err != nil {
			return Timespec{}, nil, false, fmt.Errorf("column %q: %w", col.Name, err)
		}
	}
	return ts, row, true, nil
}

// ReadAll drains the reader.
func (t *LocalTable) ReadAll() ([]Timespec, []Row, error) {
	var stamps []Timespec
	var rows []Row
	for {
		ts, row, ok, err := t.Next()
		if err != nil {
			return stamps, rows, err
		}
		if !ok {
			return stamps, rows, nil
		}
		stamps = append(stamps, ts)
		rows = append(rows, row)
	}
}

// Release frees the reader. Later calls are no-ops.
func (t *LocalTable) Release() {
	if t.released {
		return
	}
	t.released = true
	t.h.releaseNative(unsafe.Pointer(t.raw))
	t.raw = nil
}
