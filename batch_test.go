package qdb

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tradeColumns = []Column{
	NewColumn("price", ColumnDouble),
	NewColumn("volume", ColumnInt64),
	NewColumn("settled", ColumnTimestamp),
	NewColumn("payload", ColumnBlob),
	NewColumn("venue", ColumnString),
	NewSymbolColumn("ticker", "tickers"),
}

func createTrades(t *testing.T, h *Handle, alias string) {
	t.Helper()
	require.NoError(t, h.CreateTimeSeries(alias, time.Hour, tradeColumns))
}

func newTradesBatch(t *testing.T, h *Handle, alias string, hint int) *BatchTable {
	t.Helper()
	cols := make([]BatchColumn, len(tradeColumns))
	for i, c := range tradeColumns {
		cols[i] = BatchColumn{Table: alias, Column: c.Name, SizeHint: hint}
	}
	b, err := h.NewBatchTable(cols)
	require.NoError(t, err)
	t.Cleanup(b.Release)
	return b
}

func valuesOf(pts []fakePoint) []Value {
	out := make([]Value, len(pts))
	for i, p := range pts {
		out[i] = p.v
	}
	return out
}

func TestBatchColumnPush(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")
	b := newTradesBatch(t, h, "trades", 3)

	shard := Timespec{Sec: 1_700_000_000}
	offsets := []int64{0, int64(time.Second), 2 * int64(time.Second)}
	require.NoError(t, b.SetDoubleColumn(0, shard, offsets, []float64{10.5, math.NaN(), 11}))
	require.NoError(t, b.SetInt64Column(1, shard, offsets, []int64{100, Int64Null, 300}))
	require.NoError(t, b.SetTimestampColumn(2, shard, offsets, []int64{1, MinTime, 3}, []int64{0, MinTime, 0}))
	require.NoError(t, b.SetBlobColumn(3, shard, offsets, [][]byte{[]byte("a"), nil, []byte("c")}))
	require.NoError(t, b.SetStringColumn(4, shard, offsets, []string{"nyse", "", "lse"}))
	require.NoError(t, b.SetStringColumn(5, shard, offsets, []string{"ACME", "INIT", ""}))
	require.NoError(t, b.Push())

	prices := f.points("trades", "price")
	require.Len(t, prices, 3)
	assert.Equal(t, shard, prices[0].ts)
	assert.Equal(t, shard.Add(2*time.Second), prices[2].ts)
	assert.Equal(t, []Value{DoubleValue(10.5), NullValue(), DoubleValue(11)}, valuesOf(prices))

	assert.Equal(t, []Value{Int64Value(100), NullValue(), Int64Value(300)}, valuesOf(f.points("trades", "volume")))
	assert.Equal(t, []Value{TimestampValue(Timespec{Sec: 1}), NullValue(), TimestampValue(Timespec{Sec: 3})}, valuesOf(f.points("trades", "settled")))
	assert.Equal(t, []Value{BlobValue([]byte("a")), NullValue(), BlobValue([]byte("c"))}, valuesOf(f.points("trades", "payload")))
	assert.Equal(t, []Value{StringValue("nyse"), NullValue(), StringValue("lse")}, valuesOf(f.points("trades", "venue")))
	assert.Equal(t, []Value{StringValue("ACME"), StringValue("INIT"), NullValue()}, valuesOf(f.points("trades", "ticker")))
	assert.Equal(t, 1, f.called("qdb_ts_batch_push"))
}

func TestPinCheckOrder(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")
	b := newTradesBatch(t, h, "trades", 1)

	// index is checked before capacity
	_, err := b.PinDoubleColumn(len(tradeColumns), Timespec{}, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = b.PinDoubleColumn(0, Timespec{}, 0)
	assert.ErrorIs(t, err, ErrZeroCapacity)
	_, err = b.PinInt64Column(1, Timespec{}, -1)
	assert.ErrorIs(t, err, ErrZeroCapacity)

	assert.Zero(t, f.called("pin"))

	b.Release()
	_, err = b.PinDoubleColumn(len(tradeColumns), Timespec{}, 0)
	assert.ErrorIs(t, err, ErrBatchReleased)
	assert.Zero(t, f.called("pin"))
}

func TestPinnedColumnIsPrefilled(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")
	b := newTradesBatch(t, h, "trades", 4)

	shard := Timespec{Sec: 3600}
	col, err := b.PinInt64Column(1, shard, 4)
	require.NoError(t, err)
	require.Equal(t, 4, col.Len())
	assert.Equal(t, 1, col.Index)
	assert.Equal(t, shard, col.Shard)
	assert.Equal(t, []int64{0, 0, 0, 0}, col.TimeOffsets)
	assert.Equal(t, []int64{Int64Null, Int64Null, Int64Null, Int64Null}, col.Data)

	col.TimeOffsets[0], col.Data[0] = 5, 7
	col.TimeOffsets[1], col.Data[1] = 6, 8
	require.NoError(t, b.Push())

	got := valuesOf(f.points("trades", "volume"))
	require.Len(t, got, 4)
	nulls := 0
	for _, v := range got {
		if v.IsNull() {
			nulls++
		}
	}
	assert.Equal(t, 2, nulls)
}

func TestPinWrongColumnType(t *testing.T) {
	h, _ := openFake(t)
	createTrades(t, h, "trades")
	b := newTradesBatch(t, h, "trades", 1)

	_, err := b.PinDoubleColumn(1, Timespec{}, 1)
	assert.ErrorIs(t, err, ErrIncompatibleType)
	assert.Contains(t, err.Error(), "pin double column 1")
}

func TestSetColumnLengthMismatch(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")
	b := newTradesBatch(t, h, "trades", 1)

	assert.ErrorIs(t, b.SetDoubleColumn(0, Timespec{}, []int64{0, 1}, []float64{1}), ErrLengthMismatch)
	assert.ErrorIs(t, b.SetTimestampColumn(2, Timespec{}, []int64{0}, []int64{1}, nil), ErrLengthMismatch)
	assert.ErrorIs(t, b.SetBlobColumn(3, Timespec{}, nil, [][]byte{nil}), ErrLengthMismatch)
	assert.ErrorIs(t, b.SetStringColumn(4, Timespec{}, []int64{0}, nil), ErrLengthMismatch)
	assert.Zero(t, f.called("pin"))

	// the table stays usable
	require.NoError(t, b.SetDoubleColumn(0, Timespec{}, []int64{0}, []float64{1}))
}

func TestBatchRowAPI(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")
	b := newTradesBatch(t, h, "trades", 2)

	ts := Timespec{Sec: 7200, Nsec: 10}
	require.NoError(t, b.StartRow(ts))
	require.NoError(t, b.RowSetDouble(0, 1.25))
	require.NoError(t, b.RowSetInt64(1, 9))
	require.NoError(t, b.RowSetTimestamp(2, Timespec{Sec: 5}))
	require.NoError(t, b.RowSetBlob(3, []byte{0xCA, 0xFE}))
	require.NoError(t, b.RowSetString(4, "cboe"))
	require.NoError(t, b.RowSet(5, ColumnSymbol, SymbolValue("ACME")))

	require.NoError(t, b.StartRow(ts.Add(time.Second)))
	require.NoError(t, b.RowSet(0, ColumnDouble, NullValue()))

	assert.ErrorIs(t, b.RowSetDouble(1, 2), ErrIncompatibleType)
	assert.ErrorIs(t, b.RowSet(0, ColumnDouble, StringValue("x")), ErrIncompatibleType)
	assert.ErrorIs(t, b.RowSetDouble(-1, 0), ErrOutOfBounds)

	require.NoError(t, b.Push())

	prices := f.points("trades", "price")
	require.Len(t, prices, 2)
	assert.Equal(t, ts, prices[0].ts)
	assert.Equal(t, DoubleValue(1.25), prices[0].v)
	assert.True(t, prices[1].v.IsNull())
	assert.Equal(t, []Value{BlobValue([]byte{0xCA, 0xFE})}, valuesOf(f.points("trades", "payload")))
	assert.Equal(t, []Value{StringValue("ACME")}, valuesOf(f.points("trades", "ticker")))
}

func TestPushModes(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")
	b := newTradesBatch(t, h, "trades", 1)

	require.NoError(t, b.PushAsync())
	require.NoError(t, b.PushFast())
	require.NoError(t, b.PushWith(PushNormal))
	assert.Equal(t, 1, f.called("qdb_ts_batch_push_async"))
	assert.Equal(t, 1, f.called("qdb_ts_batch_push_fast"))
	assert.Equal(t, 1, f.called("qdb_ts_batch_push"))

	err := b.PushTruncate()
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, f.called("qdb_ts_batch_push_truncate"))

	assert.ErrorIs(t, b.PushWith(PushMode(9)), ErrInvalidArgument)
}

func TestRejectedPushKeepsReferences(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")
	b := newTradesBatch(t, h, "trades", 2)

	shard := Timespec{Sec: 1_700_000_000}
	require.NoError(t, b.SetBlobColumn(3, shard, []int64{0, 1}, [][]byte{[]byte("a"), []byte("b")}))
	require.Equal(t, 2, b.refs.Len())

	assert.ErrorIs(t, b.PushTruncate(), ErrInvalidArgument)
	assert.ErrorIs(t, b.PushWith(PushMode(9)), ErrInvalidArgument)
	assert.Equal(t, 2, b.refs.Len())

	require.NoError(t, b.PushTruncate(TimeRange{Begin: shard, End: shard.Add(time.Second)}))
	assert.Zero(t, b.refs.Len())
	assert.Equal(t, 1, f.called("qdb_ts_batch_push_truncate"))
	assert.Equal(t, []Value{BlobValue([]byte("a")), BlobValue([]byte("b"))}, valuesOf(f.points("trades", "payload")))
}

func TestFailedNativePushReleasesReferences(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")
	b := newTradesBatch(t, h, "trades", 1)

	require.NoError(t, b.SetStringColumn(4, Timespec{Sec: 1}, []int64{0}, []string{"nyse"}))
	f.failNext("qdb_ts_batch_push", QDB_E_TIMEOUT)
	require.Error(t, b.Push())
	assert.Zero(t, b.refs.Len())
}

func TestPushTruncateReplacesRange(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")
	shard := Timespec{Sec: 1000}

	first := newTradesBatch(t, h, "trades", 3)
	require.NoError(t, first.SetDoubleColumn(0, shard, []int64{0, 1, 2}, []float64{1, 2, 3}))
	require.NoError(t, first.Push())

	second := newTradesBatch(t, h, "trades", 1)
	require.NoError(t, second.SetDoubleColumn(0, shard, []int64{1}, []float64{20}))
	r := TimeRange{Begin: shard, End: shard.Add(2)}
	require.NoError(t, second.PushTruncate(r))

	assert.Equal(t, []Value{DoubleValue(20), DoubleValue(3)}, valuesOf(f.points("trades", "price")))
}

func TestPushFailure(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")
	b := newTradesBatch(t, h, "trades", 1)

	f.failNext("qdb_ts_batch_push", QDB_E_TIMEOUT)
	err := b.Push()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "push normal")

	// a failed push leaves the table usable
	require.NoError(t, b.Push())
}

func TestBatchRelease(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")

	b, err := h.NewBatchTable([]BatchColumn{{Table: "trades", Column: "price"}})
	require.NoError(t, err)
	require.Equal(t, 1, f.live())

	b.Release()
	b.Release()
	assert.True(t, b.Released())

	ok, bad := f.released()
	assert.Equal(t, 1, ok)
	assert.Zero(t, bad)
	assert.Zero(t, f.live())

	assert.ErrorIs(t, b.Push(), ErrBatchReleased)
	assert.ErrorIs(t, b.StartRow(Timespec{}), ErrBatchReleased)
	assert.ErrorIs(t, b.ReleaseColumnsMemory(), ErrBatchReleased)
	assert.ErrorIs(t, b.ExtraColumns(BatchColumn{Table: "trades", Column: "volume"}), ErrBatchReleased)
}

func TestBatchReleaseAfterClose(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")

	b, err := h.NewBatchTable([]BatchColumn{{Table: "trades", Column: "price"}})
	require.NoError(t, err)
	require.NoError(t, h.Close())

	b.Release()
	ok, bad := f.released()
	assert.Zero(t, ok)
	assert.Zero(t, bad)
	assert.ErrorIs(t, b.Push(), ErrBatchReleased)
}

func TestNewBatchTableErrors(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")

	_, err := h.NewBatchTable(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = h.NewBatchTable([]BatchColumn{{Table: "trades", Column: ""}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = h.NewBatchTable([]BatchColumn{{Table: "missing", Column: "price"}})
	assert.ErrorIs(t, err, ErrAliasNotFound)
	assert.Contains(t, err.Error(), "batch table init")

	assert.Zero(t, f.live())
}

func TestExtraColumnsAndColumnIndex(t *testing.T) {
	h, f := openFake(t)
	createTrades(t, h, "trades")

	b, err := h.NewBatchTable([]BatchColumn{{Table: "trades", Column: "price"}})
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.ExtraColumns(BatchColumn{Table: "trades", Column: "volume", SizeHint: 2}))
	assert.Len(t, b.Columns(), 2)
	assert.Equal(t, 1, b.ColumnIndex("trades", "volume"))
	assert.Equal(t, -1, b.ColumnIndex("trades", "ticker"))

	require.NoError(t, b.SetInt64Column(1, Timespec{}, []int64{0}, []int64{4}))
	require.NoError(t, b.ReleaseColumnsMemory())
	require.NoError(t, b.Push())
	assert.Empty(t, f.points("trades", "volume"))
}

func TestParsePushMode(t *testing.T) {
	for _, m := range []PushMode{PushNormal, PushAsync, PushFast, PushTruncate} {
		got, err := ParsePushMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	m, err := ParsePushMode("")
	require.NoError(t, err)
	assert.Equal(t, PushNormal, m)

	_, err = ParsePushMode("eventual")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
