package qdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nodeURI = "qdb://127.0.0.1:2836"

func TestParseNodeDocument(t *testing.T) {
	for _, d := range []NodeDocument{NodeStatus, NodeConfig, NodeTopology} {
		got, err := ParseNodeDocument(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	_, err := ParseNodeDocument("metrics")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "node_document(7)", NodeDocument(7).String())
}

func TestGetNodeStatus(t *testing.T) {
	h, f := openFake(t)
	f.docs["status"] = `{
		"node_id": "0-0-0-1",
		"listening_address": "127.0.0.1:2836",
		"engine_version": "3.14.2",
		"partitions_count": 12,
		"startup_seconds": 3600,
		"entries": {"count": 42, "size": 4096},
		"check_ok": true,
		"unknown_field": [1, 2, 3]
	}`

	s, err := h.GetNodeStatus(nodeURI)
	require.NoError(t, err)
	assert.Equal(t, "0-0-0-1", s.NodeID)
	assert.Equal(t, "127.0.0.1:2836", s.Listening)
	assert.Equal(t, 12, s.Partitions)
	assert.EqualValues(t, 3600, s.UptimeSeconds)
	assert.Equal(t, NodeEntriesInfo{Count: 42, Size: 4096}, s.Entries)
	assert.True(t, s.OverallHealthy)
	assert.Empty(t, s.Hostname)
	assert.Zero(t, f.live())
}

func TestGetNodeConfigAndTopology(t *testing.T) {
	h, f := openFake(t)
	f.docs["config"] = `{"local": {"depot": {"root": "/var/lib/qdb"}}, "global": {"cluster": {"replication_factor": 2}}}`
	f.docs["topology"] = `{
		"predecessor": {"reference": "a", "endpoint": "10.0.0.1:2836"},
		"center": {"reference": "b", "endpoint": "10.0.0.2:2836"},
		"successor": {"reference": "c", "endpoint": "10.0.0.3:2836"}
	}`

	cfg, err := h.GetNodeConfig(nodeURI)
	require.NoError(t, err)
	require.Contains(t, cfg, "global")
	global := cfg["global"].(map[string]any)
	assert.EqualValues(t, 2, global["cluster"].(map[string]any)["replication_factor"])

	topo, err := h.GetNodeTopology(nodeURI)
	require.NoError(t, err)
	assert.Equal(t, NodeRef{Reference: "b", Endpoint: "10.0.0.2:2836"}, topo.Center)
	assert.Equal(t, "10.0.0.3:2836", topo.Successor.Endpoint)

	raw, err := h.NodeRaw(nodeURI, NodeConfig)
	require.NoError(t, err)
	assert.JSONEq(t, f.docs["config"], string(raw))
}

func TestNodeErrors(t *testing.T) {
	h, f := openFake(t)

	_, err := h.NodeRaw("", NodeStatus)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = h.NodeRaw(nodeURI, NodeDocument(5))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = h.GetNodeStatus(nodeURI)
	assert.ErrorIs(t, err, ErrHostNotFound)
	assert.Contains(t, err.Error(), "node "+nodeURI+" status")

	f.docs["status"] = `{"node_id": `
	_, err = h.GetNodeStatus(nodeURI)
	assert.ErrorContains(t, err, "decode node status")
	assert.Zero(t, f.live())
}

func TestNodeStop(t *testing.T) {
	h, f := openFake(t)

	assert.ErrorIs(t, h.NodeStop("", "maintenance"), ErrInvalidArgument)
	require.NoError(t, h.NodeStop(nodeURI, "maintenance"))
	assert.Equal(t, 1, f.called("qdb_node_stop"))
}
