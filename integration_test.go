package qdb

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// openCluster connects to the cluster named by QDB_TEST_CLUSTER_URI, with
// the library found through QDB_LIB_PATH.
func openCluster(t *testing.T) *Handle {
	t.Helper()
	uri := os.Getenv("QDB_TEST_CLUSTER_URI")
	if uri == "" {
		t.Skip("QDB_TEST_CLUSTER_URI not set")
	}
	h, err := Open(uri,
		WithLogger(zaptest.NewLogger(t)),
		WithLibrary(LibraryConfig{Path: os.Getenv("QDB_LIB_PATH")}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func uniqueAlias(t *testing.T) string {
	return fmt.Sprintf("qdbgo.%s.%d", t.Name(), time.Now().UnixNano())
}

func TestClusterBlobRoundTrip(t *testing.T) {
	h := openCluster(t)
	alias := uniqueAlias(t)
	t.Cleanup(func() { _ = h.Remove(alias) })

	require.NoError(t, h.BlobPut(alias, []byte("content"), time.Time{}))
	got, err := h.BlobGet(alias)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), got)

	_, err = h.BlobGet(alias + ".missing")
	assert.ErrorIs(t, err, ErrAliasNotFound)
}

func TestClusterBatchAndQuery(t *testing.T) {
	h := openCluster(t)
	alias := uniqueAlias(t)
	t.Cleanup(func() { _ = h.Remove(alias) })

	require.NoError(t, h.CreateTimeSeries(alias, time.Hour, []Column{
		NewColumn("price", ColumnDouble),
		NewColumn("volume", ColumnInt64),
	}))

	b, err := h.NewBatchTable([]BatchColumn{
		{Table: alias, Column: "price", SizeHint: 3},
		{Table: alias, Column: "volume", SizeHint: 3},
	})
	require.NoError(t, err)
	defer b.Release()

	shard := NewTimespec(time.Unix(1_700_000_000, 0).Truncate(time.Hour))
	offsets := []int64{0, int64(time.Second), int64(2 * time.Second)}
	require.NoError(t, b.SetDoubleColumn(0, shard, offsets, []float64{1, 2, 3}))
	require.NoError(t, b.SetInt64Column(1, shard, offsets, []int64{10, 20, 30}))
	require.NoError(t, b.Push())

	res, err := h.Query(fmt.Sprintf("select count(price) from \"%s\"", alias))
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)
	require.Equal(t, 1, res.RowCount())
	n, ok := res.Tables[0].Rows[0][len(res.Tables[0].ColumnNames)-1].Int64()
	require.True(t, ok)
	assert.EqualValues(t, 3, n)

	pts, err := h.GetInt64s(alias, "volume")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, pts.Values)
}
