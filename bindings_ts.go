package qdb

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// AggregationType is qdb_ts_aggregation_type_t.
type AggregationType int32

const (
	AggNone               AggregationType = -1
	AggFirst              AggregationType = 0
	AggLast               AggregationType = 1
	AggMin                AggregationType = 2
	AggMax                AggregationType = 3
	AggArithmeticMean     AggregationType = 4
	AggHarmonicMean       AggregationType = 5
	AggGeometricMean      AggregationType = 6
	AggQuadraticMean      AggregationType = 7
	AggCount              AggregationType = 8
	AggSum                AggregationType = 9
	AggSumOfSquares       AggregationType = 10
	AggSpread             AggregationType = 11
	AggSampleVariance     AggregationType = 12
	AggSampleStddev       AggregationType = 13
	AggPopulationVariance AggregationType = 14
	AggPopulationStddev   AggregationType = 15
	AggAbsMin             AggregationType = 16
	AggAbsMax             AggregationType = 17
)

type c_qdb_ts_column_info_t struct {
	Name uintptr // const char*
	Type int32
	_    [4]byte
}

type c_qdb_ts_double_aggregation_t struct {
	Type          int32
	_             [4]byte
	FilteredRange c_qdb_ts_filtered_range_t
	Count         uintptr
	Result        c_qdb_ts_double_point
}

// Every typed insert and get_ranges symbol shares one shape, so a single
// Go signature covers all of them.
type c_ts_insert_fn func(
	handle unsafe.Pointer,
	table string,
	column string,
	points unsafe.Pointer,
	count uintptr,
) qdb_error_t

type c_ts_get_ranges_fn func(
	handle unsafe.Pointer,
	table string,
	column string,
	ranges unsafe.Pointer, // const qdb_ts_range_t*
	rangeCount uintptr,
	points unsafe.Pointer, // T**
	count unsafe.Pointer, // qdb_size_t*
) qdb_error_t

type c_row_get_bytes_fn func(
	table unsafe.Pointer,
	index uintptr,
	content unsafe.Pointer, // const void**
	length unsafe.Pointer, // qdb_size_t*
) qdb_error_t

var (
	c_qdb_ts_create_ex func(
		handle unsafe.Pointer,
		alias string,
		shardSize uint64,
		columns unsafe.Pointer, // const qdb_ts_column_info_ex_t*
		columnCount uintptr,
	) qdb_error_t

	c_qdb_ts_insert_columns_ex func(
		handle unsafe.Pointer,
		alias string,
		columns unsafe.Pointer,
		columnCount uintptr,
	) qdb_error_t

	c_qdb_ts_list_columns_ex func(
		handle unsafe.Pointer,
		alias string,
		columns unsafe.Pointer, // qdb_ts_column_info_ex_t**
		columnCount unsafe.Pointer, // qdb_size_t*
	) qdb_error_t

	c_qdb_ts_shard_size func(
		handle unsafe.Pointer,
		alias string,
		shardSize unsafe.Pointer, // qdb_uint_t*
	) qdb_error_t

	c_qdb_ts_double_insert    c_ts_insert_fn
	c_qdb_ts_int64_insert     c_ts_insert_fn
	c_qdb_ts_timestamp_insert c_ts_insert_fn
	c_qdb_ts_blob_insert      c_ts_insert_fn
	c_qdb_ts_string_insert    c_ts_insert_fn

	c_qdb_ts_double_get_ranges    c_ts_get_ranges_fn
	c_qdb_ts_int64_get_ranges     c_ts_get_ranges_fn
	c_qdb_ts_timestamp_get_ranges c_ts_get_ranges_fn
	c_qdb_ts_blob_get_ranges      c_ts_get_ranges_fn
	c_qdb_ts_string_get_ranges    c_ts_get_ranges_fn

	c_qdb_ts_double_aggregate func(
		handle unsafe.Pointer,
		table string,
		column string,
		aggregations unsafe.Pointer, // qdb_ts_double_aggregation_t*
		count uintptr,
	) qdb_error_t

	c_qdb_ts_local_table_init func(
		handle unsafe.Pointer,
		alias string,
		columns unsafe.Pointer, // const qdb_ts_column_info_t*
		columnCount uintptr,
		table unsafe.Pointer, // qdb_local_table_t*
	) qdb_error_t

	c_qdb_ts_table_get_ranges func(
		table unsafe.Pointer,
		ranges unsafe.Pointer,
		rangeCount uintptr,
	) qdb_error_t

	c_qdb_ts_table_next_row func(
		table unsafe.Pointer,
		timestamp unsafe.Pointer, // qdb_timespec_t*
	) qdb_error_t

	c_qdb_ts_row_get_double func(
		table unsafe.Pointer,
		index uintptr,
		value unsafe.Pointer, // double*
	) qdb_error_t

	c_qdb_ts_row_get_int64 func(
		table unsafe.Pointer,
		index uintptr,
		value unsafe.Pointer, // qdb_int_t*
	) qdb_error_t

	c_qdb_ts_row_get_timestamp func(
		table unsafe.Pointer,
		index uintptr,
		value unsafe.Pointer, // qdb_timespec_t*
	) qdb_error_t

	c_qdb_ts_row_get_blob   c_row_get_bytes_fn
	c_qdb_ts_row_get_string c_row_get_bytes_fn
	c_qdb_ts_row_get_symbol c_row_get_bytes_fn
)

func register_qdb_ts(handle uintptr) {
	purego.RegisterLibFunc(&c_qdb_ts_create_ex, handle, "qdb_ts_create_ex")
	purego.RegisterLibFunc(&c_qdb_ts_insert_columns_ex, handle, "qdb_ts_insert_columns_ex")
	purego.RegisterLibFunc(&c_qdb_ts_list_columns_ex, handle, "qdb_ts_list_columns_ex")
	purego.RegisterLibFunc(&c_qdb_ts_shard_size, handle, "qdb_ts_shard_size")
	purego.RegisterLibFunc(&c_qdb_ts_double_insert, handle, "qdb_ts_double_insert")
	purego.RegisterLibFunc(&c_qdb_ts_int64_insert, handle, "qdb_ts_int64_insert")
	purego.RegisterLibFunc(&c_qdb_ts_timestamp_insert, handle, "qdb_ts_timestamp_insert")
	purego.RegisterLibFunc(&c_qdb_ts_blob_insert, handle, "qdb_ts_blob_insert")
	purego.RegisterLibFunc(&c_qdb_ts_string_insert, handle, "qdb_ts_string_insert")
	purego.RegisterLibFunc(&c_qdb_ts_double_get_ranges, handle, "qdb_ts_double_get_ranges")
	purego.RegisterLibFunc(&c_qdb_ts_int64_get_ranges, handle, "qdb_ts_int64_get_ranges")
	purego.RegisterLibFunc(&c_qdb_ts_timestamp_get_ranges, handle, "qdb_ts_timestamp_get_ranges")
	purego.RegisterLibFunc(&c_qdb_ts_blob_get_ranges, handle, "qdb_ts_blob_get_ranges")
	purego.RegisterLibFunc(&c_qdb_ts_string_get_ranges, handle, "qdb_ts_string_get_ranges")
	purego.RegisterLibFunc(&c_qdb_ts_double_aggregate, handle, "qdb_ts_double_aggregate")
	purego.RegisterLibFunc(&c_qdb_ts_local_table_init, handle, "qdb_ts_local_table_init")
	purego.RegisterLibFunc(&c_qdb_ts_table_get_ranges, handle, "qdb_ts_table_get_ranges")
	purego.RegisterLibFunc(&c_qdb_ts_table_next_row, handle, "qdb_ts_table_next_row")
	purego.RegisterLibFunc(&c_qdb_ts_row_get_double, handle, "qdb_ts_row_get_double")
	purego.RegisterLibFunc(&c_qdb_ts_row_get_int64, handle, "qdb_ts_row_get_int64")
	purego.RegisterLibFunc(&c_qdb_ts_row_get_timestamp, handle, "qdb_ts_row_get_timestamp")
	purego.RegisterLibFunc(&c_qdb_ts_row_get_blob, handle, "qdb_ts_row_get_blob")
	purego.RegisterLibFunc(&c_qdb_ts_row_get_string, handle, "qdb_ts_row_get_string")
	purego.RegisterLibFunc(&c_qdb_ts_row_get_symbol, handle, "qdb_ts_row_get_symbol")
}

func sliceData[T any](xs []T) unsafe.Pointer {
	if len(xs) == 0 {
		return nil
	}
	return unsafe.Pointer(&xs[0])
}

// Go wrappers over imported C bindings

/** Create a time series with the given shard size (in milliseconds) and columns */
func qdb_ts_create_ex(h QdbHandle, alias string, shardSize uint64, columns []c_qdb_ts_column_info_ex_t) error {
	_, err := check(h, ErrorCode(c_qdb_ts_create_ex(unsafe.Pointer(h), alias, shardSize, sliceData(columns), uintptr(len(columns)))))
	return err
}

func qdb_ts_insert_columns_ex(h QdbHandle, alias string, columns []c_qdb_ts_column_info_ex_t) error {
	_, err := check(h, ErrorCode(c_qdb_ts_insert_columns_ex(unsafe.Pointer(h), alias, sliceData(columns), uintptr(len(columns)))))
	return err
}

/** List the columns of a time series; the native array is copied and released */
func qdb_ts_list_columns_ex(h QdbHandle, alias string) ([]Column, error) {
	var ptr unsafe.Pointer
	var n uintptr
	if _, err := check(h, ErrorCode(c_qdb_ts_list_columns_ex(unsafe.Pointer(h), alias, unsafe.Pointer(&ptr), unsafe.Pointer(&n)))); err != nil {
		return nil, err
	}
	res := ownNative(h, ptr)
	defer res.Release()
	return columnsFromNative(res.Ptr(), int(n))
}

func qdb_ts_shard_size(h QdbHandle, alias string) (uint64, error) {
	var size uint64
	if _, err := check(h, ErrorCode(c_qdb_ts_shard_size(unsafe.Pointer(h), alias, unsafe.Pointer(&size)))); err != nil {
		return 0, err
	}
	return size, nil
}

/** Insert native points through one of the typed qdb_ts_*_insert symbols */
func qdb_ts_insert[P any](h QdbHandle, fn c_ts_insert_fn, table, column string, points []P) error {
	_, err := check(h, ErrorCode(fn(unsafe.Pointer(h), table, column, sliceData(points), uintptr(len(points)))))
	return err
}

/** Read points through one of the typed qdb_ts_*_get_ranges symbols.
 * The native array is unzipped into Go memory and released before return.
 */
func qdb_ts_get_ranges[P any, T PointValue](h QdbHandle, fn c_ts_get_ranges_fn, table, column string, ranges []c_qdb_ts_range_t, split func(P) (Timespec, T)) (Points[T], error) {
	var ptr unsafe.Pointer
	var n uintptr
	code := ErrorCode(fn(unsafe.Pointer(h), table, column, sliceData(ranges), uintptr(len(ranges)), unsafe.Pointer(&ptr), unsafe.Pointer(&n)))
	if _, err := check(h, code); err != nil {
		return Points[T]{}, err
	}
	res := ownNative(h, ptr)
	defer res.Release()
	return unzip(nativePoints[P](res.Ptr(), int(n)), split), nil
}

/** Compute aggregations in place; the slice is both input and output */
func qdb_ts_double_aggregate(h QdbHandle, table, column string, aggs *CriticalView[c_qdb_ts_double_aggregation_t]) error {
	_, err := check(h, ErrorCode(c_qdb_ts_double_aggregate(unsafe.Pointer(h), table, column, aggs.Ptr(), uintptr(aggs.Len()))))
	return err
}

func qdb_ts_local_table_init(h QdbHandle, alias string, columns []c_qdb_ts_column_info_t) (QdbLocalTable, error) {
	var table unsafe.Pointer
	code := ErrorCode(c_qdb_ts_local_table_init(unsafe.Pointer(h), alias, sliceData(columns), uintptr(len(columns)), unsafe.Pointer(&table)))
	if _, err := check(h, code); err != nil {
		return nil, err
	}
	return QdbLocalTable(table), nil
}

func qdb_ts_table_get_ranges(h QdbHandle, t QdbLocalTable, ranges []c_qdb_ts_range_t) error {
	_, err := check(h, ErrorCode(c_qdb_ts_table_get_ranges(unsafe.Pointer(t), sliceData(ranges), uintptr(len(ranges)))))
	return err
}

/** Advance to the next row. ok is false once the iterator is exhausted. */
func qdb_ts_table_next_row(h QdbHandle, t QdbLocalTable) (ts Timespec, ok bool, err error) {
	var native c_qdb_timespec_t
	code, err := checkAllowed(h, ErrorCode(c_qdb_ts_table_next_row(unsafe.Pointer(t), unsafe.Pointer(&native))), QDB_E_ITERATOR_END)
	if err != nil || code == QDB_E_ITERATOR_END {
		return Timespec{}, false, err
	}
	return Timespec(native), true, nil
}

/** Read the value of column index in the current row as a payload of type ct */
func qdb_ts_row_get(h QdbHandle, t QdbLocalTable, index int, ct ColumnType) (Value, error) {
	var p c_payload
	var code qdb_error_t
	switch ct {
	case ColumnDouble:
		code = c_qdb_ts_row_get_double(unsafe.Pointer(t), uintptr(index), unsafe.Pointer(&p[0]))
	case ColumnInt64:
		code = c_qdb_ts_row_get_int64(unsafe.Pointer(t), uintptr(index), unsafe.Pointer(&p[0]))
	case ColumnTimestamp:
		code = c_qdb_ts_row_get_timestamp(unsafe.Pointer(t), uintptr(index), unsafe.Pointer(&p))
	case ColumnBlob:
		return qdb_ts_row_get_bytes(h, c_qdb_ts_row_get_blob, t, index, ct)
	case ColumnString:
		return qdb_ts_row_get_bytes(h, c_qdb_ts_row_get_string, t, index, ct)
	case ColumnSymbol:
		return qdb_ts_row_get_bytes(h, c_qdb_ts_row_get_symbol, t, index, ct)
	default:
		return Value{}, incompatibleType("row get", ct)
	}
	if _, err := check(h, ErrorCode(code)); err != nil {
		return Value{}, err
	}
	return valueFromNative(ct, p)
}

// Row blob and string getters hand out a native copy that this layer copies
// again and releases.
func qdb_ts_row_get_bytes(h QdbHandle, fn c_row_get_bytes_fn, t QdbLocalTable, index int, ct ColumnType) (Value, error) {
	var ptr unsafe.Pointer
	var n uintptr
	if _, err := check(h, ErrorCode(fn(unsafe.Pointer(t), uintptr(index), unsafe.Pointer(&ptr), unsafe.Pointer(&n)))); err != nil {
		return Value{}, err
	}
	res := ownNative(h, ptr)
	defer res.Release()
	return valueFromNative(ct, c_payload{uint64(uintptr(res.Ptr())), uint64(n)})
}
