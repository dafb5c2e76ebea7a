package qdb

import (
	"fmt"
	"time"
)

// DefaultShardSize is used by CreateTimeSeries when no shard size is given.
const DefaultShardSize = 24 * time.Hour

// CreateTimeSeries creates the time series alias with cols. Every column is
// validated before anything is sent.
func (h *Handle) CreateTimeSeries(alias string, shardSize time.Duration, cols []Column) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	if shardSize == 0 {
		shardSize = DefaultShardSize
	}
	if shardSize < time.Millisecond {
		return newLocalError(QDB_E_INVALID_ARGUMENT, fmt.Sprintf("shard size %v below one millisecond", shardSize))
	}
	native, err := columnsToNative(c.f, cols)
	if err != nil {
		return err
	}
	return qdb_ts_create_ex(c.h, alias, uint64(shardSize.Milliseconds()), native)
}

// InsertColumns adds columns to an existing time series.
func (h *Handle) InsertColumns(alias string, cols []Column) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	if len(cols) == 0 {
		return newLocalError(QDB_E_INVALID_ARGUMENT, "no column to insert")
	}
	native, err := columnsToNative(c.f, cols)
	if err != nil {
		return err
	}
	return qdb_ts_insert_columns_ex(c.h, alias, native)
}

func (h *Handle) ListColumns(alias string) ([]Column, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return nil, err
	}
	defer c.exit()
	return qdb_ts_list_columns_ex(c.h, alias)
}

func (h *Handle) ShardSize(alias string) (time.Duration, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return 0, err
	}
	defer c.exit()
	ms, err := qdb_ts_shard_size(c.h, alias)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// --------------------------- column inserts ---------------------------

func insertPoints[T PointValue, P any](h *Handle, fn c_ts_insert_fn, table, column string, pts Points[T], mk func(*frame) func(Timespec, T) (P, error)) error {
	c, err := h.enterAlias(table, column)
	if err != nil {
		return err
	}
	defer c.exit()
	native, err := zip(c.f, pts.Timestamps, pts.Values, mk(c.f))
	if err != nil {
		return err
	}
	if len(native) == 0 {
		return nil
	}
	return qdb_ts_insert(c.h, fn, table, column, native)
}

func frameless[T any, P any](mk func(Timespec, T) (P, error)) func(*frame) func(Timespec, T) (P, error) {
	return func(*frame) func(Timespec, T) (P, error) { return mk }
}

// InsertDoubles appends points to a double column. NaN values are stored
// as nulls.
func (h *Handle) InsertDoubles(table, column string, pts Points[float64]) error {
	return insertPoints(h, c_qdb_ts_double_insert, table, column, pts, frameless(mkDoublePoint))
}

func (h *Handle) InsertInt64s(table, column string, pts Points[int64]) error {
	return insertPoints(h, c_qdb_ts_int64_insert, table, column, pts, frameless(mkInt64Point))
}

func (h *Handle) InsertTimestamps(table, column string, pts Points[Timespec]) error {
	return insertPoints(h, c_qdb_ts_timestamp_insert, table, column, pts, frameless(mkTimestampPoint))
}

func (h *Handle) InsertBlobs(table, column string, pts Points[[]byte]) error {
	return insertPoints(h, c_qdb_ts_blob_insert, table, column, pts, blobPointMaker)
}

// InsertStrings also writes symbol columns.
func (h *Handle) InsertStrings(table, column string, pts Points[string]) error {
	return insertPoints(h, c_qdb_ts_string_insert, table, column, pts, stringPointMaker)
}

// ---------------------------- column reads ----------------------------

func getPoints[P any, T PointValue](h *Handle, fn c_ts_get_ranges_fn, table, column string, ranges []TimeRange, split func(P) (Timespec, T)) (Points[T], error) {
	c, err := h.enterAlias(table, column)
	if err != nil {
		return Points[T]{}, err
	}
	defer c.exit()
	if len(ranges) == 0 {
		ranges = []TimeRange{Forever}
	}
	native, err := rangesToNative(c.f, ranges)
	if err != nil {
		return Points[T]{}, err
	}
	return qdb_ts_get_ranges(c.h, fn, table, column, native, split)
}

// GetDoubles reads the points of a double column within ranges, or all of
// them when no range is given. Null points come back as NaN.
func (h *Handle) GetDoubles(table, column string, ranges ...TimeRange) (Points[float64], error) {
	return getPoints(h, c_qdb_ts_double_get_ranges, table, column, ranges, splitDoublePoint)
}

func (h *Handle) GetInt64s(table, column string, ranges ...TimeRange) (Points[int64], error) {
	return getPoints(h, c_qdb_ts_int64_get_ranges, table, column, ranges, splitInt64Point)
}

func (h *Handle) GetTimestamps(table, column string, ranges ...TimeRange) (Points[Timespec], error) {
	return getPoints(h, c_qdb_ts_timestamp_get_ranges, table, column, ranges, splitTimestampPoint)
}

func (h *Handle) GetBlobs(table, column string, ranges ...TimeRange) (Points[[]byte], error) {
	return getPoints(h, c_qdb_ts_blob_get_ranges, table, column, ranges, splitBlobPoint)
}

func (h *Handle) GetStrings(table, column string, ranges ...TimeRange) (Points[string], error) {
	return getPoints(h, c_qdb_ts_string_get_ranges, table, column, ranges, splitStringPoint)
}

// ----------------------------- aggregation -----------------------------

// Aggregation asks for one aggregate of a double column over a range.
type Aggregation struct {
	Type  AggregationType
	Range TimeRange
}

// AggregationResult is the answer to one Aggregation. Timestamp is set for
// aggregates that select a point, such as first or max.
type AggregationResult struct {
	Aggregation
	Count     int
	Timestamp Timespec
	Value     float64
}

// AggregateDoubles computes aggs over a double column in one call.
func (h *Handle) AggregateDoubles(table, column string, aggs []Aggregation) ([]AggregationResult, error) {
	c, err := h.enterAlias(table, column)
	if err != nil {
		return nil, err
	}
	defer c.exit()
	if len(aggs) == 0 {
		return nil, nil
	}

	native, err := makeSlice[c_qdb_ts_double_aggregation_t](c.f, len(aggs))
	if err != nil {
		return nil, err
	}
	for i, a := range aggs {
		if a.Type < AggFirst || a.Type > AggAbsMax {
			return nil, newLocalError(QDB_E_INVALID_ARGUMENT, fmt.Sprintf("unknown aggregation type %d", a.Type))
		}
		native[i] = c_qdb_ts_double_aggregation_t{
			Type:          int32(a.Type),
			FilteredRange: FilteredRange{Range: a.Range}.native(),
		}
	}
	// nothing may be allocated through c.f from here on
	view, err := acquireCritical(c.f, native)
	if err != nil {
		return nil, err
	}
	err = qdb_ts_double_aggregate(c.h, table, column, view)
	view.Release()
	if err != nil {
		return nil, err
	}

	out := make([]AggregationResult, len(aggs))
	for i, n := range native {
		out[i] = AggregationResult{
			Aggregation: aggs[i],
			Count:       int(n.Count),
			Timestamp:   Timespec(n.Result.Timestamp),
			Value:       n.Result.Value,
		}
	}
	return out, nil
}
