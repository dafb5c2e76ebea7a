package qdb

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"
)

// PushMode selects how a batch table is pushed.
type PushMode int

const (
	PushNormal PushMode = iota
	PushAsync
	PushFast
	PushTruncate
)

func (m PushMode) String() string {
	switch m {
	case PushNormal:
		return "normal"
	case PushAsync:
		return "async"
	case PushFast:
		return "fast"
	case PushTruncate:
		return "truncate"
	}
	return fmt.Sprintf("push_mode(%d)", int(m))
}

// ParsePushMode is the inverse of PushMode.String. "" means normal.
func ParsePushMode(s string) (PushMode, error) {
	if s == "" {
		return PushNormal, nil
	}
	for m := PushNormal; m <= PushTruncate; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return PushNormal, newLocalError(QDB_E_INVALID_ARGUMENT, fmt.Sprintf("unknown push mode %q", s))
}

// BatchTable buffers rows for several columns, possibly of several time
// series, and writes them in a single push. It is not safe for concurrent
// use.
type BatchTable struct {
	h       *Handle
	raw     QdbBatchTable
	columns []BatchColumn
	log     *zap.Logger

	// blob and string contents referenced by pinned columns
	refs     refPinner
	released bool
}

// NewBatchTable creates a batch table over cols. The table must be released
// with Release.
func (h *Handle) NewBatchTable(cols []BatchColumn) (*BatchTable, error) {
	c, err := h.enter()
	if err != nil {
		return nil, err
	}
	defer c.exit()

	native, err := batchColumnsToNative(c.f, cols)
	if err != nil {
		return nil, err
	}
	raw, err := qdb_ts_batch_table_init(c.h, native)
	if err != nil {
		return nil, fmt.Errorf("batch table init: %w", err)
	}
	b := &BatchTable{
		h:       h,
		raw:     raw,
		columns: append([]BatchColumn(nil), cols...),
		log:     h.log.With(zap.Int("batch_columns", len(cols))),
	}
	b.log.Debug("batch table created")
	return b, nil
}

// Columns returns the columns of the table, in index order.
func (b *BatchTable) Columns() []BatchColumn {
	return append([]BatchColumn(nil), b.columns...)
}

// ColumnIndex finds the index of table.column, or -1.
func (b *BatchTable) ColumnIndex(table, column string) int {
	for i, c := range b.columns {
		if c.Table == table && c.Column == column {
			return i
		}
	}
	return -1
}

// enter is Handle.enter plus the table's own liveness check.
func (b *BatchTable) enter() (*call, error) {
	if b.released {
		return nil, ErrBatchReleased
	}
	return b.h.enter()
}

func (b *BatchTable) checkIndex(index int) error {
	if index < 0 || index >= len(b.columns) {
		return newLocalError(QDB_E_OUT_OF_BOUNDS, fmt.Sprintf("column index %d out of range [0, %d)", index, len(b.columns)))
	}
	return nil
}

// ExtraColumns appends columns to the table. Their indexes follow the
// existing ones.
func (b *BatchTable) ExtraColumns(cols ...BatchColumn) error {
	c, err := b.enter()
	if err != nil {
		return err
	}
	defer c.exit()

	native, err := batchColumnsToNative(c.f, cols)
	if err != nil {
		return err
	}
	if err := qdb_ts_batch_table_extra_columns(c.h, b.raw, native); err != nil {
		return err
	}
	b.columns = append(b.columns, cols...)
	return nil
}

// ------------------------------- pinning -------------------------------

// pinColumn pins column index for shard and prefills it. Nothing reaches
// native code when the table is released, the index is out of range or
// capacity is not positive.
func pinColumn[T any](b *BatchTable, fn c_batch_pin_fn, kind ColumnType, null T, index int, shard Timespec, capacity int) (*PinnedColumn[T], error) {
	c, err := b.enter()
	if err != nil {
		return nil, err
	}
	defer c.exit()
	if err := b.checkIndex(index); err != nil {
		return nil, err
	}
	if capacity <= 0 {
		return nil, ErrZeroCapacity
	}

	offsets, data, err := qdb_ts_batch_pin[T](c.h, fn, b.raw, index, capacity, shard)
	if err != nil {
		return nil, fmt.Errorf("pin %v column %d: %w", kind, index, err)
	}
	prefill(offsets, data, null)
	b.log.Debug("column pinned",
		zap.Int("index", index),
		zap.Stringer("type", kind),
		zap.Int("capacity", capacity),
		zap.Int64("shard", shard.Sec))
	return &PinnedColumn[T]{Index: index, Shard: shard, TimeOffsets: offsets, Data: data}, nil
}

func (b *BatchTable) PinDoubleColumn(index int, shard Timespec, capacity int) (*PinnedColumn[float64], error) {
	return pinColumn(b, c_qdb_ts_batch_pin_double_column, ColumnDouble, pinnedDoubleNull, index, shard, capacity)
}

func (b *BatchTable) PinInt64Column(index int, shard Timespec, capacity int) (*PinnedColumn[int64], error) {
	return pinColumn(b, c_qdb_ts_batch_pin_int64_column, ColumnInt64, pinnedInt64Null, index, shard, capacity)
}

// PinTimestampColumn exposes the native timespec array directly; Timespec
// has the layout of qdb_timespec_t.
func (b *BatchTable) PinTimestampColumn(index int, shard Timespec, capacity int) (*PinnedColumn[Timespec], error) {
	return pinColumn(b, c_qdb_ts_batch_pin_timestamp_column, ColumnTimestamp, pinnedTimestampNull, index, shard, capacity)
}

// Blob and string columns hold references to Go memory, so they are only
// reachable through SetBlobColumn and SetStringColumn.

func (b *BatchTable) pinBlobColumn(index int, shard Timespec, capacity int) (*PinnedColumn[c_qdb_blob_t], error) {
	return pinColumn(b, c_qdb_ts_batch_pin_blob_column, ColumnBlob, pinnedBlobNull, index, shard, capacity)
}

func (b *BatchTable) pinStringColumn(index int, shard Timespec, capacity int) (*PinnedColumn[c_qdb_string_t], error) {
	return pinColumn(b, c_qdb_ts_batch_pin_string_column, ColumnString, pinnedStringNull, index, shard, capacity)
}

// SetDoubleColumn pins len(values) rows of column index and copies them in.
// NaN values are written as nulls.
func (b *BatchTable) SetDoubleColumn(index int, shard Timespec, offsets []int64, values []float64) error {
	if len(offsets) != len(values) {
		return ErrLengthMismatch
	}
	col, err := b.PinDoubleColumn(index, shard, len(values))
	if err != nil {
		return err
	}
	return copyDoubles(col.TimeOffsets, col.Data, offsets, values)
}

func (b *BatchTable) SetInt64Column(index int, shard Timespec, offsets []int64, values []int64) error {
	if len(offsets) != len(values) {
		return ErrLengthMismatch
	}
	col, err := b.PinInt64Column(index, shard, len(values))
	if err != nil {
		return err
	}
	return copyInt64s(col.TimeOffsets, col.Data, offsets, values)
}

// SetTimestampColumn takes timestamps split into seconds and nanoseconds.
// Rows where both are MinTime are written as nulls.
func (b *BatchTable) SetTimestampColumn(index int, shard Timespec, offsets, secs, nsecs []int64) error {
	if len(secs) != len(nsecs) || len(offsets) != len(secs) {
		return ErrLengthMismatch
	}
	col, err := b.PinTimestampColumn(index, shard, len(secs))
	if err != nil {
		return err
	}
	return copyTimestamps(col.TimeOffsets, col.Data, offsets, secs, nsecs)
}

// SetBlobColumn references values without copying them. They must not be
// modified until the table is pushed or released. Empty values are nulls.
func (b *BatchTable) SetBlobColumn(index int, shard Timespec, offsets []int64, values [][]byte) error {
	if len(offsets) != len(values) {
		return ErrLengthMismatch
	}
	col, err := b.pinBlobColumn(index, shard, len(values))
	if err != nil {
		return err
	}
	return copyBlobs(&b.refs, col.TimeOffsets, col.Data, offsets, values)
}

// SetStringColumn is SetBlobColumn for string and symbol columns.
func (b *BatchTable) SetStringColumn(index int, shard Timespec, offsets []int64, values []string) error {
	if len(offsets) != len(values) {
		return ErrLengthMismatch
	}
	col, err := b.pinStringColumn(index, shard, len(values))
	if err != nil {
		return err
	}
	return copyStrings(&b.refs, col.TimeOffsets, col.Data, offsets, values)
}

// ------------------------------- row API -------------------------------

// StartRow begins a new row at ts. The row is filled with the RowSet
// methods; columns left unset are null.
func (b *BatchTable) StartRow(ts Timespec) error {
	c, err := b.enter()
	if err != nil {
		return err
	}
	defer c.exit()
	return qdb_ts_batch_start_row(c.h, b.raw, ts)
}

// RowSet writes v into column index of the current row, converted for a
// column of type t. A Null value writes the type's null.
func (b *BatchTable) RowSet(index int, t ColumnType, v Value) error {
	c, err := b.enter()
	if err != nil {
		return err
	}
	defer c.exit()
	if err := b.checkIndex(index); err != nil {
		return err
	}
	p, err := v.toNative(t, c.f)
	if err != nil {
		return err
	}
	return qdb_ts_batch_row_set(c.h, b.raw, index, t, p)
}

func (b *BatchTable) RowSetDouble(index int, v float64) error {
	return b.RowSet(index, ColumnDouble, DoubleValue(v))
}

func (b *BatchTable) RowSetInt64(index int, v int64) error {
	return b.RowSet(index, ColumnInt64, Int64Value(v))
}

func (b *BatchTable) RowSetTimestamp(index int, v Timespec) error {
	return b.RowSet(index, ColumnTimestamp, TimestampValue(v))
}

func (b *BatchTable) RowSetBlob(index int, v []byte) error {
	return b.RowSet(index, ColumnBlob, BlobValue(v))
}

func (b *BatchTable) RowSetString(index int, v string) error {
	return b.RowSet(index, ColumnString, StringValue(v))
}

// -------------------------------- pushes --------------------------------

func (b *BatchTable) Push() error {
	return b.push(PushNormal, nil)
}

// PushAsync hands the rows to the cluster without waiting for them to be
// persisted.
func (b *BatchTable) PushAsync() error {
	return b.push(PushAsync, nil)
}

// PushFast skips the deduplication and merge steps of a normal push.
func (b *BatchTable) PushFast() error {
	return b.push(PushFast, nil)
}

// PushTruncate replaces the data of ranges with the content of the table.
func (b *BatchTable) PushTruncate(ranges ...TimeRange) error {
	return b.push(PushTruncate, ranges)
}

// PushWith dispatches on mode. ranges is only used by PushTruncate.
func (b *BatchTable) PushWith(mode PushMode, ranges ...TimeRange) error {
	return b.push(mode, ranges)
}

func (b *BatchTable) push(mode PushMode, ranges []TimeRange) error {
	c, err := b.enter()
	if err != nil {
		return err
	}
	defer c.exit()

	var (
		fn     c_batch_push_fn
		native []c_qdb_ts_range_t
	)
	switch mode {
	case PushNormal:
		fn = c_qdb_ts_batch_push
	case PushAsync:
		fn = c_qdb_ts_batch_push_async
	case PushFast:
		fn = c_qdb_ts_batch_push_fast
	case PushTruncate:
		if native, err = rangesToNative(c.f, ranges); err != nil {
			return err
		}
	default:
		return newLocalError(QDB_E_INVALID_ARGUMENT, fmt.Sprintf("unknown push mode %v", mode))
	}

	// the referenced contents are no longer read once a native push returns
	defer b.refs.Unpin()
	if mode == PushTruncate {
		err = qdb_ts_batch_push_truncate(c.h, b.raw, native)
	} else {
		err = qdb_ts_batch_push(c.h, fn, b.raw)
	}
	if err != nil {
		b.log.Debug("push failed", zap.Stringer("mode", mode), zap.Error(err))
		return fmt.Errorf("push %v: %w", mode, err)
	}
	b.log.Debug("pushed", zap.Stringer("mode", mode))
	return nil
}

// ReleaseColumnsMemory frees the pinned column buffers while keeping the
// table usable. Pinned views taken before must not be used afterwards.
func (b *BatchTable) ReleaseColumnsMemory() error {
	c, err := b.enter()
	if err != nil {
		return err
	}
	defer c.exit()
	defer b.refs.Unpin()
	return qdb_ts_batch_release_columns_memory(c.h, b.raw)
}

// Release frees the table. Later calls are no-ops; any other method then
// fails with ErrBatchReleased.
func (b *BatchTable) Release() {
	if b.released {
		return
	}
	b.released = true
	b.refs.Unpin()
	b.h.releaseNative(unsafe.Pointer(b.raw))
	b.raw = nil
	b.log.Debug("batch table released")
}

func (b *BatchTable) Released() bool { return b.released }
