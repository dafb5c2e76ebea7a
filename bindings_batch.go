package qdb

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// All pin symbols share one shape; data is T** for the column's T.
type c_batch_pin_fn func(
	table unsafe.Pointer,
	index uintptr,
	capacity uintptr,
	shard unsafe.Pointer, // const qdb_timespec_t*
	timeoffsets unsafe.Pointer, // qdb_time_t**
	data unsafe.Pointer, // T**
) qdb_error_t

type c_batch_push_fn func(
	table unsafe.Pointer,
) qdb_error_t

var (
	c_qdb_ts_batch_table_init func(
		handle unsafe.Pointer,
		columns unsafe.Pointer, // const qdb_ts_batch_column_info_t*
		columnCount uintptr,
		table unsafe.Pointer, // qdb_batch_table_t*
	) qdb_error_t

	c_qdb_ts_batch_table_extra_columns func(
		table unsafe.Pointer,
		columns unsafe.Pointer,
		columnCount uintptr,
	) qdb_error_t

	c_qdb_ts_batch_release_columns_memory func(
		table unsafe.Pointer,
	) qdb_error_t

	c_qdb_ts_batch_pin_double_column    c_batch_pin_fn
	c_qdb_ts_batch_pin_int64_column     c_batch_pin_fn
	c_qdb_ts_batch_pin_timestamp_column c_batch_pin_fn
	c_qdb_ts_batch_pin_blob_column      c_batch_pin_fn
	c_qdb_ts_batch_pin_string_column    c_batch_pin_fn

	c_qdb_ts_batch_start_row func(
		table unsafe.Pointer,
		timestamp unsafe.Pointer, // const qdb_timespec_t*
	) qdb_error_t

	c_qdb_ts_batch_row_set_double func(
		table unsafe.Pointer,
		index uintptr,
		value float64,
	) qdb_error_t

	c_qdb_ts_batch_row_set_int64 func(
		table unsafe.Pointer,
		index uintptr,
		value int64,
	) qdb_error_t

	c_qdb_ts_batch_row_set_timestamp func(
		table unsafe.Pointer,
		index uintptr,
		value unsafe.Pointer, // const qdb_timespec_t*
	) qdb_error_t

	c_qdb_ts_batch_row_set_blob func(
		table unsafe.Pointer,
		index uintptr,
		content unsafe.Pointer,
		contentLength uintptr,
	) qdb_error_t

	c_qdb_ts_batch_row_set_string func(
		table unsafe.Pointer,
		index uintptr,
		content unsafe.Pointer,
		contentLength uintptr,
	) qdb_error_t

	c_qdb_ts_batch_push       c_batch_push_fn
	c_qdb_ts_batch_push_async c_batch_push_fn
	c_qdb_ts_batch_push_fast  c_batch_push_fn

	c_qdb_ts_batch_push_truncate func(
		table unsafe.Pointer,
		ranges unsafe.Pointer, // const qdb_ts_range_t*
		rangeCount uintptr,
	) qdb_error_t
)

func register_qdb_batch(handle uintptr) {
	purego.RegisterLibFunc(&c_qdb_ts_batch_table_init, handle, "qdb_ts_batch_table_init")
	purego.RegisterLibFunc(&c_qdb_ts_batch_table_extra_columns, handle, "qdb_ts_batch_table_extra_columns")
	purego.RegisterLibFunc(&c_qdb_ts_batch_release_columns_memory, handle, "qdb_ts_batch_release_columns_memory")
	purego.RegisterLibFunc(&c_qdb_ts_batch_pin_double_column, handle, "qdb_ts_batch_pin_double_column")
	purego.RegisterLibFunc(&c_qdb_ts_batch_pin_int64_column, handle, "qdb_ts_batch_pin_int64_column")
	purego.RegisterLibFunc(&c_qdb_ts_batch_pin_timestamp_column, handle, "qdb_ts_batch_pin_timestamp_column")
	purego.RegisterLibFunc(&c_qdb_ts_batch_pin_blob_column, handle, "qdb_ts_batch_pin_blob_column")
	purego.RegisterLibFunc(&c_qdb_ts_batch_pin_string_column, handle, "qdb_ts_batch_pin_string_column")
	purego.RegisterLibFunc(&c_qdb_ts_batch_start_row, handle, "qdb_ts_batch_start_row")
	purego.RegisterLibFunc(&c_qdb_ts_batch_row_set_double, handle, "qdb_ts_batch_row_set_double")
	purego.RegisterLibFunc(&c_qdb_ts_batch_row_set_int64, handle, "qdb_ts_batch_row_set_int64")
	purego.RegisterLibFunc(&c_qdb_ts_batch_row_set_timestamp, handle, "qdb_ts_batch_row_set_timestamp")
	purego.RegisterLibFunc(&c_qdb_ts_batch_row_set_blob, handle, "qdb_ts_batch_row_set_blob")
	purego.RegisterLibFunc(&c_qdb_ts_batch_row_set_string, handle, "qdb_ts_batch_row_set_string")
	purego.RegisterLibFunc(&c_qdb_ts_batch_push, handle, "qdb_ts_batch_push")
	purego.RegisterLibFunc(&c_qdb_ts_batch_push_async, handle, "qdb_ts_batch_push_async")
	purego.RegisterLibFunc(&c_qdb_ts_batch_push_fast, handle, "qdb_ts_batch_push_fast")
	purego.RegisterLibFunc(&c_qdb_ts_batch_push_truncate, handle, "qdb_ts_batch_push_truncate")
}

// Go wrappers over imported C bindings

func qdb_ts_batch_table_init(h QdbHandle, columns []c_qdb_ts_batch_column_info_t) (QdbBatchTable, error) {
	var table unsafe.Pointer
	code := ErrorCode(c_qdb_ts_batch_table_init(unsafe.Pointer(h), sliceData(columns), uintptr(len(columns)), unsafe.Pointer(&table)))
	if _, err := check(h, code); err != nil {
		return nil, err
	}
	return QdbBatchTable(table), nil
}

func qdb_ts_batch_table_extra_columns(h QdbHandle, t QdbBatchTable, columns []c_qdb_ts_batch_column_info_t) error {
	_, err := check(h, ErrorCode(c_qdb_ts_batch_table_extra_columns(unsafe.Pointer(t), sliceData(columns), uintptr(len(columns)))))
	return err
}

func qdb_ts_batch_release_columns_memory(h QdbHandle, t QdbBatchTable) error {
	_, err := check(h, ErrorCode(c_qdb_ts_batch_release_columns_memory(unsafe.Pointer(t))))
	return err
}

/** Pin column index for one shard and expose the native buffers as slices of
 * exactly capacity elements. The buffers belong to the batch table.
 */
func qdb_ts_batch_pin[T any](h QdbHandle, fn c_batch_pin_fn, t QdbBatchTable, index, capacity int, shard Timespec) (offsets []int64, data []T, err error) {
	nativeShard := shard.native()
	var offsetsPtr, dataPtr unsafe.Pointer
	code := ErrorCode(fn(unsafe.Pointer(t), uintptr(index), uintptr(capacity), unsafe.Pointer(&nativeShard), unsafe.Pointer(&offsetsPtr), unsafe.Pointer(&dataPtr)))
	if _, err := check(h, code); err != nil {
		return nil, nil, err
	}
	if offsetsPtr == nil || dataPtr == nil {
		return nil, nil, newLocalError(QDB_E_INVALID_REPLY, "pin returned a null buffer")
	}
	return unsafe.Slice((*int64)(offsetsPtr), capacity), unsafe.Slice((*T)(dataPtr), capacity), nil
}

func qdb_ts_batch_start_row(h QdbHandle, t QdbBatchTable, ts Timespec) error {
	native := ts.native()
	_, err := check(h, ErrorCode(c_qdb_ts_batch_start_row(unsafe.Pointer(t), unsafe.Pointer(&native))))
	return err
}

/** Set column index of the current row from a payload already converted for ct */
func qdb_ts_batch_row_set(h QdbHandle, t QdbBatchTable, index int, ct ColumnType, p c_payload) error {
	var code qdb_error_t
	switch ct {
	case ColumnDouble:
		code = c_qdb_ts_batch_row_set_double(unsafe.Pointer(t), uintptr(index), *(*float64)(unsafe.Pointer(&p[0])))
	case ColumnInt64:
		code = c_qdb_ts_batch_row_set_int64(unsafe.Pointer(t), uintptr(index), int64(p[0]))
	case ColumnTimestamp:
		code = c_qdb_ts_batch_row_set_timestamp(unsafe.Pointer(t), uintptr(index), unsafe.Pointer(&p))
	case ColumnBlob:
		code = c_qdb_ts_batch_row_set_blob(unsafe.Pointer(t), uintptr(index), unsafe.Pointer(uintptr(p[0])), uintptr(p[1]))
	case ColumnString, ColumnSymbol:
		code = c_qdb_ts_batch_row_set_string(unsafe.Pointer(t), uintptr(index), unsafe.Pointer(uintptr(p[0])), uintptr(p[1]))
	default:
		return incompatibleType("row set", ct)
	}
	_, err := check(h, ErrorCode(code))
	return err
}

func qdb_ts_batch_push(h QdbHandle, fn c_batch_push_fn, t QdbBatchTable) error {
	_, err := check(h, ErrorCode(fn(unsafe.Pointer(t))))
	return err
}

func qdb_ts_batch_push_truncate(h QdbHandle, t QdbBatchTable, ranges []c_qdb_ts_range_t) error {
	_, err := check(h, ErrorCode(c_qdb_ts_batch_push_truncate(unsafe.Pointer(t), sliceData(ranges), uintptr(len(ranges)))))
	return err
}
