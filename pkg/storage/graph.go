package storage

import (
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/types"
)

// indexable reports whether a property value of v's kind is written into
// the index tree.
// Lists, maps and entity-valued properties are never indexed, mirroring
// types.OrderedKeyBytes's "only scalar-ish kinds" contract.
func indexable(v types.Value) bool {
	switch v.Kind {
	case types.KindList, types.KindMap, types.KindNode, types.KindEdge, types.KindPath:
		return false
	default:
		return true
	}
}

// indexEntries enumerates the (label, property, value) index keys a node
// occupies, generalizing the teacher's label-only index
// (pkg/storage/badger.go's labelIndexKey) to the spec's per-property
// index tree (§4.1).
func indexEntries(gp GraphPrefix, n *types.Node) [][]byte {
	var keys [][]byte
	for _, label := range n.Labels {
		for prop, val := range n.Properties {
			if !indexable(val) {
				continue
			}
			keys = append(keys, IndexKey(gp, label, prop, val, n.ID))
		}
	}
	return keys
}

// PutNode writes n, replacing any existing record with the same id and
// reconciling its index entries (spec §4.1's "encode/decode nodes ...
// indexes"). Existing adjacency is untouched; callers manage edges
// separately via PutEdge/DeleteEdge.
func (t *Transaction) PutNode(gp GraphPrefix, n *types.Node) error {
	key := NodeKey(gp, n.ID)
	if existing, found, err := t.GetNode(gp, n.ID); err != nil {
		return err
	} else if found {
		for _, k := range indexEntries(gp, existing) {
			t.delete(k)
		}
	}

	data, err := encodeNodeRecord(nodeRecord{Labels: n.Labels, Properties: n.Properties})
	if err != nil {
		return gqlerr.Internal(err, "encode node %s", n.ID)
	}
	t.put(key, data)
	for _, k := range indexEntries(gp, n) {
		t.put(k, []byte{})
	}
	return nil
}

// GetNode reads the node with the given id, returning found=false rather
// than an error if it doesn't exist.
func (t *Transaction) GetNode(gp GraphPrefix, id types.NodeID) (*types.Node, bool, error) {
	data, found, err := t.get(NodeKey(gp, id))
	if err != nil {
		return nil, false, gqlerr.StorageUnavailable(err)
	}
	if !found {
		return nil, false, nil
	}
	rec, err := decodeNodeRecord(data)
	if err != nil {
		return nil, false, gqlerr.Corruption(id.String(), err)
	}
	return nodeFromRecord(id, rec), true, nil
}

// DeleteNode removes a node's record and index entries. It does not touch
// adjacency or incident edges; callers enforce referential integrity and
// perform DETACH DELETE's edge cleanup before calling this (spec §4.5.5).
func (t *Transaction) DeleteNode(gp GraphPrefix, id types.NodeID) error {
	existing, found, err := t.GetNode(gp, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	for _, k := range indexEntries(gp, existing) {
		t.delete(k)
	}
	t.delete(NodeKey(gp, id))
	return nil
}

// ScanNodes visits every node in the graph whose labels include label (or
// every node, if label is ""), in node-id order. This is the physical
// LabelScan/FullScan fallback of spec §4.4 when no usable index exists.
func (t *Transaction) ScanNodes(gp GraphPrefix, label string, visit func(*types.Node) error) error {
	return t.scanPrefix(NodeScanPrefix(gp), func(key, value []byte) error {
		rec, err := decodeNodeRecord(value)
		if err != nil {
			return gqlerr.Corruption("node", err)
		}
		if label != "" && !hasLabel(rec.Labels, label) {
			return nil
		}
		return visit(nodeFromRecord(NodeIDFromKey(key), rec))
	})
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// ScanIndexEquality visits every node id found in the (label, property,
// value) index stripe — the physical IndexScan of spec §4.4.
func (t *Transaction) ScanIndexEquality(gp GraphPrefix, label, property string, value types.Value, visit func(types.NodeID) error) error {
	prefix := IndexEqualityPrefix(gp, label, property, value)
	return t.scanPrefix(prefix, func(key, _ []byte) error {
		return visit(NodeIDFromKey(key))
	})
}

// ScanIndexStripe visits the node id of every entry in a (label,
// property) index stripe in value order, used for range predicates and
// for cardinality estimation (spec §4.4).
func (t *Transaction) ScanIndexStripe(gp GraphPrefix, label, property string, visit func(types.NodeID) error) error {
	prefix := IndexStripePrefix(gp, label, property)
	return t.scanPrefix(prefix, func(key, _ []byte) error {
		return visit(NodeIDFromKey(key))
	})
}

// PutEdge writes e and its two adjacency entries.
func (t *Transaction) PutEdge(gp GraphPrefix, e *types.Edge) error {
	data, err := encodeEdgeRecord(edgeRecord{Type: e.Type, Src: e.Src, Dst: e.Dst, Properties: e.Properties})
	if err != nil {
		return gqlerr.Internal(err, "encode edge %s", e.ID)
	}
	t.put(EdgeKey(gp, e.ID), data)
	t.put(AdjOutKey(gp, e.Src, e.ID), e.Dst[:])
	t.put(AdjInKey(gp, e.Dst, e.ID), e.Src[:])
	return nil
}

// GetEdge reads the edge with the given id.
func (t *Transaction) GetEdge(gp GraphPrefix, id types.EdgeID) (*types.Edge, bool, error) {
	data, found, err := t.get(EdgeKey(gp, id))
	if err != nil {
		return nil, false, gqlerr.StorageUnavailable(err)
	}
	if !found {
		return nil, false, nil
	}
	rec, err := decodeEdgeRecord(data)
	if err != nil {
		return nil, false, gqlerr.Corruption(id.String(), err)
	}
	return edgeFromRecord(id, rec), true, nil
}

// DeleteEdge removes an edge's record and both adjacency entries.
func (t *Transaction) DeleteEdge(gp GraphPrefix, id types.EdgeID) error {
	existing, found, err := t.GetEdge(gp, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	t.delete(EdgeKey(gp, id))
	t.delete(AdjOutKey(gp, existing.Src, id))
	t.delete(AdjInKey(gp, existing.Dst, id))
	return nil
}

// ScanEdges visits every edge in the graph in edge-id order.
func (t *Transaction) ScanEdges(gp GraphPrefix, visit func(*types.Edge) error) error {
	return t.scanPrefix(EdgeScanPrefix(gp), func(key, value []byte) error {
		rec, err := decodeEdgeRecord(value)
		if err != nil {
			return gqlerr.Corruption("edge", err)
		}
		return visit(edgeFromRecord(EdgeIDFromKey(key), rec))
	})
}

// ScanAdjOut visits every (edge id, destination) pair for src's outgoing
// edges, optionally restricted to a single relationship type.
func (t *Transaction) ScanAdjOut(gp GraphPrefix, src types.NodeID, edgeType string, visit func(*types.Edge) error) error {
	return t.scanAdj(AdjOutPrefix(gp, src), gp, edgeType, visit)
}

// ScanAdjIn visits every (edge id, source) pair for dst's incoming edges,
// optionally restricted to a single relationship type.
func (t *Transaction) ScanAdjIn(gp GraphPrefix, dst types.NodeID, edgeType string, visit func(*types.Edge) error) error {
	return t.scanAdj(AdjInPrefix(gp, dst), gp, edgeType, visit)
}

func (t *Transaction) scanAdj(prefix []byte, gp GraphPrefix, edgeType string, visit func(*types.Edge) error) error {
	return t.scanPrefix(prefix, func(key, _ []byte) error {
		edgeID := AdjEdgeIDFromKey(key)
		edge, found, err := t.GetEdge(gp, edgeID)
		if err != nil || !found {
			return err
		}
		if edgeType != "" && edge.Type != edgeType {
			return nil
		}
		return visit(edge)
	})
}
