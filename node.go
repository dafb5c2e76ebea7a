package qdb

import (
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// NodeDocument selects one of the JSON documents a node serves.
type NodeDocument int

const (
	NodeStatus NodeDocument = iota
	NodeConfig
	NodeTopology
)

func (d NodeDocument) String() string {
	switch d {
	case NodeStatus:
		return "status"
	case NodeConfig:
		return "config"
	case NodeTopology:
		return "topology"
	}
	return fmt.Sprintf("node_document(%d)", int(d))
}

// ParseNodeDocument is the inverse of NodeDocument.String.
func ParseNodeDocument(s string) (NodeDocument, error) {
	for d := NodeStatus; d <= NodeTopology; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, newLocalError(QDB_E_INVALID_ARGUMENT, fmt.Sprintf("unknown node document %q", s))
}

func (d NodeDocument) fn() c_node_document_fn {
	switch d {
	case NodeConfig:
		return c_qdb_node_config
	case NodeTopology:
		return c_qdb_node_topology
	}
	return c_qdb_node_status
}

// NodeRaw returns document d of the node at uri as raw JSON.
func (h *Handle) NodeRaw(uri string, d NodeDocument) (json.RawMessage, error) {
	if uri == "" {
		return nil, newLocalError(QDB_E_INVALID_ARGUMENT, "empty node uri")
	}
	if d < NodeStatus || d > NodeTopology {
		return nil, newLocalError(QDB_E_INVALID_ARGUMENT, fmt.Sprintf("unknown node document %d", int(d)))
	}
	c, err := h.enter()
	if err != nil {
		return nil, err
	}
	defer c.exit()
	doc, err := qdb_node_document(c.h, d.fn(), uri)
	if err != nil {
		return nil, fmt.Errorf("node %s %v: %w", uri, d, err)
	}
	return doc, nil
}

// NodeDecode decodes document d of the node at uri into v.
func (h *Handle) NodeDecode(uri string, d NodeDocument, v any) error {
	raw, err := h.NodeRaw(uri, d)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode node %v: %w", d, err)
	}
	return nil
}

// NodeStatusInfo is a subset of the status document.
type NodeStatusInfo struct {
	NodeID         string          `json:"node_id"`
	Listening      string          `json:"listening_address"`
	EngineVersion  string          `json:"engine_version"`
	EngineBuild    string          `json:"engine_build_date"`
	Hostname       string          `json:"hostname"`
	OperatingSys   string          `json:"operating_system"`
	Partitions     int             `json:"partitions_count"`
	UptimeSeconds  int64           `json:"startup_seconds"`
	CurrentTime    string          `json:"timestamp"`
	Entries        NodeEntriesInfo `json:"entries"`
	OverallHealthy bool            `json:"check_ok"`
}

type NodeEntriesInfo struct {
	Count int64 `json:"count"`
	Size  int64 `json:"size"`
}

// NodeTopologyInfo is the ring position of a node and its neighbours.
type NodeTopologyInfo struct {
	Predecessor NodeRef `json:"predecessor"`
	Center      NodeRef `json:"center"`
	Successor   NodeRef `json:"successor"`
}

type NodeRef struct {
	Reference string `json:"reference"`
	Endpoint  string `json:"endpoint"`
}

// GetNodeStatus decodes the status document. Fields missing from the
// document keep their zero value.
func (h *Handle) GetNodeStatus(uri string) (NodeStatusInfo, error) {
	var s NodeStatusInfo
	err := h.NodeDecode(uri, NodeStatus, &s)
	return s, err
}

// GetNodeConfig returns the configuration document as a generic map.
func (h *Handle) GetNodeConfig(uri string) (map[string]any, error) {
	var m map[string]any
	err := h.NodeDecode(uri, NodeConfig, &m)
	return m, err
}

func (h *Handle) GetNodeTopology(uri string) (NodeTopologyInfo, error) {
	var t NodeTopologyInfo
	err := h.NodeDecode(uri, NodeTopology, &t)
	return t, err
}

// NodeStop asks the node at uri to shut down, recording reason in its log.
func (h *Handle) NodeStop(uri, reason string) error {
	if uri == "" {
		return newLocalError(QDB_E_INVALID_ARGUMENT, "empty node uri")
	}
	c, err := h.enter()
	if err != nil {
		return err
	}
	defer c.exit()
	h.log.Warn("stopping node", zap.String("node", uri), zap.String("reason", reason))
	return qdb_node_stop(c.h, uri, reason)
}
