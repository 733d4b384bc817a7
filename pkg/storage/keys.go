// Package storage implements the storage manager of spec §4.1: five
// ordered key-value trees over a Badger keyspace, each scoped by a
// (schema, graph) prefix, mapping nodes, edges, adjacency and property
// indexes onto ordered byte-keyed ranges.
//
// The key scheme generalizes the teacher's single-keyspace, byte-prefix
// convention (pkg/storage/badger.go's prefixNode/prefixEdge/... bytes) from
// a single fixed graph to the spec's many (schema, graph) pairs by
// inserting an 8-byte graph prefix between the tree tag and the
// tree-specific suffix.
package storage

import (
	"encoding/binary"

	"github.com/orneryd/graphlite/pkg/types"
)

// Tree tags. A single byte selects which of the five graph-scoped trees
// (or the reserved catalog tree) a key belongs to.
const (
	TreeNode    byte = 0x01
	TreeEdge    byte = 0x02
	TreeAdjOut  byte = 0x03
	TreeAdjIn   byte = 0x04
	TreeIndex   byte = 0x05
	TreeCatalog byte = 0xFF // reserved range outside any schema/graph namespace (spec §6)
)

// GraphPrefix identifies the (schema, graph) pair a key belongs to, as a
// pair of catalog-assigned small integer ids. Using fixed-width integer
// ids keeps every key's prefix a constant 8 bytes regardless of how long
// schema/graph names are.
type GraphPrefix struct {
	SchemaID uint32
	GraphID  uint32
}

func (p GraphPrefix) bytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], p.SchemaID)
	binary.BigEndian.PutUint32(b[4:8], p.GraphID)
	return b
}

func appendKey(tree byte, prefix GraphPrefix, parts ...[]byte) []byte {
	size := 1 + 8
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, tree)
	buf = append(buf, prefix.bytes()...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

// NodeKey builds the nodes-tree key: tree ‖ graph_prefix ‖ node_id.
func NodeKey(gp GraphPrefix, id types.NodeID) []byte {
	return appendKey(TreeNode, gp, id[:])
}

// EdgeKey builds the edges-tree key: tree ‖ graph_prefix ‖ edge_id.
func EdgeKey(gp GraphPrefix, id types.EdgeID) []byte {
	return appendKey(TreeEdge, gp, id[:])
}

// AdjOutKey builds an outgoing-adjacency key: tree ‖ graph_prefix ‖ src_id ‖ edge_id.
func AdjOutKey(gp GraphPrefix, src types.NodeID, edge types.EdgeID) []byte {
	return appendKey(TreeAdjOut, gp, src[:], edge[:])
}

// AdjOutPrefix builds the scan prefix for all outgoing edges of src.
func AdjOutPrefix(gp GraphPrefix, src types.NodeID) []byte {
	return appendKey(TreeAdjOut, gp, src[:])
}

// AdjInKey builds an incoming-adjacency key: tree ‖ graph_prefix ‖ dst_id ‖ edge_id.
func AdjInKey(gp GraphPrefix, dst types.NodeID, edge types.EdgeID) []byte {
	return appendKey(TreeAdjIn, gp, dst[:], edge[:])
}

// AdjInPrefix builds the scan prefix for all incoming edges of dst.
func AdjInPrefix(gp GraphPrefix, dst types.NodeID) []byte {
	return appendKey(TreeAdjIn, gp, dst[:])
}

// IndexKey builds a property-index key:
// tree ‖ graph_prefix ‖ label ‖ 0x00 ‖ property ‖ 0x00 ‖ value ‖ node_id.
func IndexKey(gp GraphPrefix, label, property string, value types.Value, node types.NodeID) []byte {
	return appendKey(TreeIndex, gp,
		[]byte(label), []byte{0}, []byte(property), []byte{0},
		types.OrderedKeyBytes(value), node[:])
}

// IndexStripePrefix builds the scan prefix for a full (label, property)
// index stripe, used for range predicates and for maintaining per-stripe
// cardinality statistics.
func IndexStripePrefix(gp GraphPrefix, label, property string) []byte {
	return appendKey(TreeIndex, gp, []byte(label), []byte{0}, []byte(property), []byte{0})
}

// IndexEqualityPrefix builds the scan prefix for an equality lookup within
// a (label, property, value) stripe.
func IndexEqualityPrefix(gp GraphPrefix, label, property string, value types.Value) []byte {
	return appendKey(TreeIndex, gp, []byte(label), []byte{0}, []byte(property), []byte{0}, types.OrderedKeyBytes(value))
}

// TreePrefix builds a bare tree‖graph_prefix scan prefix for an arbitrary
// tree tag, used by the catalog package to delete every key of a dropped
// graph across the adjacency and index trees.
func TreePrefix(tree byte, gp GraphPrefix) []byte {
	return appendKey(tree, gp)
}

// NodeScanPrefix builds the scan prefix for a full node-tree scan within a
// single graph (used by the full-scan and label-scan fallback paths).
func NodeScanPrefix(gp GraphPrefix) []byte {
	return appendKey(TreeNode, gp)
}

// EdgeScanPrefix builds the scan prefix for a full edge-tree scan.
func EdgeScanPrefix(gp GraphPrefix) []byte {
	return appendKey(TreeEdge, gp)
}

// NodeIDFromKey extracts the trailing node id from a nodes-tree key.
func NodeIDFromKey(key []byte) types.NodeID {
	var id types.NodeID
	copy(id[:], key[len(key)-16:])
	return id
}

// EdgeIDFromKey extracts the trailing edge id from an edges-tree key.
func EdgeIDFromKey(key []byte) types.EdgeID {
	var id types.EdgeID
	copy(id[:], key[len(key)-16:])
	return id
}

// AdjEdgeIDFromKey extracts the trailing edge id from an adjacency key of
// the form tree ‖ graph_prefix ‖ this_id ‖ edge_id; the
// adjacency value itself holds the "other" node id, so this only pulls the
// edge id back out of the key.
func AdjEdgeIDFromKey(key []byte) types.EdgeID {
	var id types.EdgeID
	copy(id[:], key[len(key)-16:])
	return id
}
