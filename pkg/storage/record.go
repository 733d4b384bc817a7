package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/orneryd/graphlite/pkg/types"
)

// nodeRecord is the on-disk envelope for a node, persisted under
// TreeNode. Labels are stored in the order the caller gives them; they are
// not sorted.
type nodeRecord struct {
	Labels     []string
	Properties map[string]types.Value
}

// edgeRecord is the on-disk envelope for an edge, persisted under
// TreeEdge.
type edgeRecord struct {
	Type       string
	Src        types.NodeID
	Dst        types.NodeID
	Properties map[string]types.Value
}

func init() {
	// types.Value contains only concrete fields (no interfaces), so no
	// gob.Register calls are required for it; nodeRecord/edgeRecord are
	// registered defensively in case a future caller gob-encodes them
	// through an interface{} value (e.g. a generic cache).
	gob.Register(nodeRecord{})
	gob.Register(edgeRecord{})
}

func encodeNodeRecord(r nodeRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&r); err != nil {
		return nil, fmt.Errorf("encode node record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeNodeRecord(b []byte) (nodeRecord, error) {
	var r nodeRecord
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return r, fmt.Errorf("decode node record: %w", err)
	}
	return r, nil
}

func encodeEdgeRecord(r edgeRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&r); err != nil {
		return nil, fmt.Errorf("encode edge record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeEdgeRecord(b []byte) (edgeRecord, error) {
	var r edgeRecord
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return r, fmt.Errorf("decode edge record: %w", err)
	}
	return r, nil
}

func nodeFromRecord(id types.NodeID, r nodeRecord) *types.Node {
	return &types.Node{ID: id, Labels: r.Labels, Properties: r.Properties}
}

func edgeFromRecord(id types.EdgeID, r edgeRecord) *types.Edge {
	return &types.Edge{ID: id, Type: r.Type, Src: r.Src, Dst: r.Dst, Properties: r.Properties}
}
