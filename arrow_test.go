package qdb

import (
	"bytes"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		ColumnNames: []string{"$timestamp", "price", "volume", "venue", "payload", "empty"},
		Rows: []Row{
			{TimestampValue(Timespec{Sec: 1, Nsec: 5}), DoubleValue(1.5), Int64Value(10), StringValue("nyse"), BlobValue([]byte{1}), NullValue()},
			{TimestampValue(Timespec{Sec: 2}), NullValue(), Int64Value(20), SymbolValue("lse"), NullValue(), NullValue()},
		},
	}
}

func TestTableArrowSchema(t *testing.T) {
	table := sampleTable()
	schema := table.ArrowSchema()

	want := []arrow.DataType{
		arrow.FixedWidthTypes.Timestamp_ns,
		arrow.PrimitiveTypes.Float64,
		arrow.PrimitiveTypes.Int64,
		arrow.BinaryTypes.String,
		arrow.BinaryTypes.Binary,
		arrow.BinaryTypes.String,
	}
	require.Equal(t, len(want), schema.NumFields())
	for i, dt := range want {
		assert.True(t, arrow.TypeEqual(dt, schema.Field(i).Type), "field %d", i)
		assert.Equal(t, table.ColumnNames[i], schema.Field(i).Name)
	}
}

func TestTableArrowRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	table := sampleTable()
	rec, err := table.ArrowRecord(mem)
	require.NoError(t, err)
	defer rec.Release()

	assert.EqualValues(t, 2, rec.NumRows())
	stamps := rec.Column(0).(*array.Timestamp)
	assert.Equal(t, arrow.Timestamp(1_000_000_005), stamps.Value(0))

	prices := rec.Column(1).(*array.Float64)
	assert.Equal(t, 1.5, prices.Value(0))
	assert.True(t, prices.IsNull(1))

	venues := rec.Column(3).(*array.String)
	assert.Equal(t, "lse", venues.Value(1))
	assert.Equal(t, 2, rec.Column(5).NullN())
}

func TestTableArrowRecordRejectsMixedKinds(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	table := Table{
		ColumnNames: []string{"v"},
		Rows:        []Row{{Int64Value(1)}, {DoubleValue(2)}},
	}
	_, err := table.ArrowRecord(mem)
	assert.ErrorIs(t, err, ErrIncompatibleType)
	assert.Contains(t, err.Error(), `row 1 column "v"`)

	table.Rows = []Row{{Int64Value(1), Int64Value(2)}}
	_, err = table.ArrowRecord(mem)
	assert.ErrorIs(t, err, ErrInvalidReply)
}

func TestPointsArrowRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	pts, err := NewPoints([]Timespec{{Sec: 1}, {Sec: 2}, {Sec: 3}}, []float64{0.5, math.NaN(), 2})
	require.NoError(t, err)
	rec, err := PointsArrowRecord(mem, "price", pts)
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, "price", rec.ColumnName(1))
	values := rec.Column(1).(*array.Float64)
	assert.Equal(t, 1, values.NullN())
	assert.Equal(t, 2.0, values.Value(2))

	ints, err := NewPoints([]Timespec{{Sec: 1}}, []int64{Int64Null})
	require.NoError(t, err)
	irec, err := PointsArrowRecord(mem, "volume", ints)
	require.NoError(t, err)
	defer irec.Release()
	assert.True(t, irec.Column(1).IsNull(0))
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, irec.Schema().Field(1).Type))
}

func TestResultWriteArrow(t *testing.T) {
	res := &Result{Tables: []Table{sampleTable()}}
	var buf bytes.Buffer
	require.NoError(t, res.WriteArrow(&buf))

	reader, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()), ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, 1, reader.NumRecords())
	assert.Equal(t, "price", reader.Schema().Field(1).Name)
	rec, err := reader.Record(0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rec.NumRows())
	assert.Equal(t, int64(20), rec.Column(2).(*array.Int64).Value(1))

	assert.ErrorIs(t, (&Result{}).WriteArrow(&buf), ErrInvalidArgument)
	assert.ErrorIs(t, WriteArrowFile(&buf), ErrInvalidArgument)
}
