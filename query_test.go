package qdb

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	h, f := openFake(t)
	q := "select price, venue from trades"
	f.setQuery(q, []string{"$timestamp", "price", "venue"}, [][]Value{
		{TimestampValue(Timespec{Sec: 10}), DoubleValue(1.5), StringValue("nyse")},
		{TimestampValue(Timespec{Sec: 20}), NullValue(), BlobValue([]byte{1, 2})},
	}, 1234)

	res, err := h.Query(q)
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, 2, res.RowCount())
	assert.EqualValues(t, 1234, res.ScannedPointCount)

	table := res.Tables[0]
	assert.Equal(t, 1, table.Column("price"))
	assert.Equal(t, -1, table.Column("volume"))
	assert.Equal(t, Row{TimestampValue(Timespec{Sec: 10}), DoubleValue(1.5), StringValue("nyse")}, table.Rows[0])
	assert.True(t, table.Rows[1][1].IsNull())
	assert.Equal(t, BlobValue([]byte{1, 2}), table.Rows[1][2])

	// the native result is gone, the copy remains usable
	assert.Zero(t, f.live())
	ok, bad := f.released()
	assert.Equal(t, 1, ok)
	assert.Zero(t, bad)
}

func TestQueryWithoutColumns(t *testing.T) {
	h, f := openFake(t)
	f.setQuery("drop table trades", nil, nil, 0)

	res, err := h.Query("drop table trades")
	require.NoError(t, err)
	assert.Empty(t, res.Tables)
	assert.Zero(t, res.RowCount())
}

func TestQueryErrors(t *testing.T) {
	h, f := openFake(t)

	_, err := h.Query("")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = h.Query("selec nothing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInput)
	assert.Contains(t, err.Error(), "unknown query: selec nothing")

	// the result carrying the message is released too
	assert.Zero(t, f.live())
	_, bad := f.released()
	assert.Zero(t, bad)
}

func TestAssembleResult(t *testing.T) {
	_, err := assembleResult(nil)
	assert.ErrorIs(t, err, ErrInvalidReply)

	msg := []byte("syntax error at 'form'")
	_, err = assembleResult(&c_qdb_query_result_t{
		ErrorMessage: c_qdb_string_t{Data: uintptr(unsafe.Pointer(&msg[0])), Length: uintptr(len(msg))},
	})
	assert.ErrorIs(t, err, ErrInput)
	assert.Contains(t, err.Error(), "syntax error")

	_, err = assembleResult(&c_qdb_query_result_t{ColumnCount: 2})
	assert.ErrorIs(t, err, ErrInvalidReply)

	name := []byte("v")
	names := []c_qdb_string_t{{Data: uintptr(unsafe.Pointer(&name[0])), Length: 1}}
	_, err = assembleResult(&c_qdb_query_result_t{
		ColumnNames: uintptr(unsafe.Pointer(&names[0])),
		ColumnCount: 1,
		RowCount:    3,
	})
	assert.ErrorIs(t, err, ErrInvalidReply)
	assert.Contains(t, err.Error(), "without rows")

	res, err := assembleResult(&c_qdb_query_result_t{
		ColumnNames: uintptr(unsafe.Pointer(&names[0])),
		ColumnCount: 1,
	})
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, []string{"v"}, res.Tables[0].ColumnNames)
	assert.Zero(t, res.RowCount())
	runtime.KeepAlive(name)
}

func TestPointResultValue(t *testing.T) {
	v, err := pointResultValue(c_qdb_point_result_t{Type: int32(ResultCount), Payload: c_payload{17}})
	require.NoError(t, err)
	assert.Equal(t, Int64Value(17), v)

	v, err = pointResultValue(c_qdb_point_result_t{Type: int32(ResultNone), Payload: c_payload{99, 99}})
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = pointResultValue(c_qdb_point_result_t{Type: 42})
	assert.ErrorIs(t, err, ErrIncompatibleType)
}
