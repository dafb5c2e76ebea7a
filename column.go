package qdb

import (
	"fmt"
	"unsafe"
)

// Column describes one time series column.
type Column struct {
	Name string
	Type ColumnType
	// Symtable names the symbol table; set only for ColumnSymbol.
	Symtable string
}

func NewColumn(name string, t ColumnType) Column {
	return Column{Name: name, Type: t}
}

func NewSymbolColumn(name, symtable string) Column {
	return Column{Name: name, Type: ColumnSymbol, Symtable: symtable}
}

func (c Column) validate() error {
	if c.Name == "" {
		return newLocalError(QDB_E_INVALID_ARGUMENT, "column name is empty")
	}
	switch c.Type {
	case ColumnDouble, ColumnBlob, ColumnInt64, ColumnTimestamp, ColumnString:
		if c.Symtable != "" {
			return newLocalError(QDB_E_INVALID_ARGUMENT, fmt.Sprintf("column %q: symtable is only valid for symbol columns", c.Name))
		}
	case ColumnSymbol:
		if c.Symtable == "" {
			return newLocalError(QDB_E_INVALID_ARGUMENT, fmt.Sprintf("column %q: symbol column requires a symtable", c.Name))
		}
	default:
		return incompatibleType("column "+c.Name, c.Type)
	}
	return nil
}

type c_qdb_ts_column_info_ex_t struct {
	Name     uintptr // const char*
	Type     int32   // qdb_ts_column_type_t
	_        [4]byte
	Symtable uintptr // const char* | NULL
}

// columnsToNative validates every descriptor before borrowing any name, so
// a bad schema never reaches the native side.
func columnsToNative(f *frame, cols []Column) ([]c_qdb_ts_column_info_ex_t, error) {
	for _, c := range cols {
		if err := c.validate(); err != nil {
			return nil, err
		}
	}
	out, err := makeSlice[c_qdb_ts_column_info_ex_t](f, len(cols))
	if err != nil {
		return nil, err
	}
	for i, c := range cols {
		name, err := acquireString(f, c.Name)
		if err != nil {
			return nil, err
		}
		symtable, err := acquireOptionalString(f, c.Symtable)
		if err != nil {
			return nil, err
		}
		out[i] = c_qdb_ts_column_info_ex_t{Name: name.Ptr(), Type: int32(c.Type), Symtable: symtable.Ptr()}
	}
	return out, nil
}

// columnsFromNative copies n descriptors out of native memory.
func columnsFromNative(ptr unsafe.Pointer, n int) ([]Column, error) {
	if n == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, newLocalError(QDB_E_INVALID_REPLY, "null column array")
	}
	native := unsafe.Slice((*c_qdb_ts_column_info_ex_t)(ptr), n)
	out := make([]Column, n)
	for i, c := range native {
		t := ColumnType(c.Type)
		switch t {
		case ColumnDouble, ColumnBlob, ColumnInt64, ColumnTimestamp, ColumnString, ColumnSymbol:
		default:
			return nil, incompatibleType("list columns", t)
		}
		out[i] = Column{
			Name:     copyCString(unsafe.Pointer(c.Name)),
			Type:     t,
			Symtable: copyCString(unsafe.Pointer(c.Symtable)),
		}
	}
	return out, nil
}

// BatchColumn selects one column of one table for a batch table.
type BatchColumn struct {
	Table  string
	Column string
	// SizeHint is the expected number of rows; 0 means 1.
	SizeHint int
}

type c_qdb_ts_batch_column_info_t struct {
	Timeseries        uintptr // const char*
	Column            uintptr // const char*
	ElementsCountHint uintptr // qdb_size_t
}

func batchColumnsToNative(f *frame, cols []BatchColumn) ([]c_qdb_ts_batch_column_info_t, error) {
	if len(cols) == 0 {
		return nil, newLocalError(QDB_E_INVALID_ARGUMENT, "batch table needs at least one column")
	}
	out, err := makeSlice[c_qdb_ts_batch_column_info_t](f, len(cols))
	if err != nil {
		return nil, err
	}
	for i, c := range cols {
		table, err := acquireString(f, c.Table)
		if err != nil {
			return nil, err
		}
		column, err := acquireString(f, c.Column)
		if err != nil {
			return nil, err
		}
		hint := c.SizeHint
		if hint <= 0 {
			hint = 1
		}
		out[i] = c_qdb_ts_batch_column_info_t{Timeseries: table.Ptr(), Column: column.Ptr(), ElementsCountHint: uintptr(hint)}
	}
	return out, nil
}
