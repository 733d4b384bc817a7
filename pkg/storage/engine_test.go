package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestCloseTwiceReturnsError(t *testing.T) {
	e, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.Error(t, e.Close())
}

func TestPutNodeAndGetNodeRoundTrips(t *testing.T) {
	e := newTestEngine(t)
	gp := GraphPrefix{SchemaID: 1, GraphID: 1}
	tx := e.Begin()

	n := &types.Node{
		ID:     types.NewNodeID(),
		Labels: []string{"Person"},
		Properties: map[string]types.Value{
			"name": types.String("alice"),
			"age":  types.Int(30),
		},
	}
	require.NoError(t, tx.PutNode(gp, n))
	require.NoError(t, tx.Commit())

	tx2 := e.Begin()
	got, found, err := tx2.GetNode(gp, n.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, n.Labels, got.Labels)
	assert.Equal(t, "alice", got.Properties["name"].Str)
}

func TestGetNodeMissingReturnsFoundFalse(t *testing.T) {
	e := newTestEngine(t)
	gp := GraphPrefix{SchemaID: 1, GraphID: 1}
	tx := e.Begin()

	_, found, err := tx.GetNode(gp, types.NewNodeID())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTransactionSeesItsOwnUncommittedWrites(t *testing.T) {
	e := newTestEngine(t)
	gp := GraphPrefix{SchemaID: 1, GraphID: 1}
	tx := e.Begin()

	n := &types.Node{ID: types.NewNodeID(), Labels: []string{"Person"}, Properties: map[string]types.Value{}}
	require.NoError(t, tx.PutNode(gp, n))

	_, found, err := tx.GetNode(gp, n.ID)
	require.NoError(t, err)
	assert.True(t, found, "a transaction must see its own staged writes before commit")

	tx2 := e.Begin()
	_, found, err = tx2.GetNode(gp, n.ID)
	require.NoError(t, err)
	assert.False(t, found, "an uncommitted write must be invisible to a concurrent transaction")
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	e := newTestEngine(t)
	gp := GraphPrefix{SchemaID: 1, GraphID: 1}
	tx := e.Begin()

	n := &types.Node{ID: types.NewNodeID(), Labels: []string{"Person"}, Properties: map[string]types.Value{}}
	require.NoError(t, tx.PutNode(gp, n))
	require.NoError(t, tx.Rollback())

	tx2 := e.Begin()
	_, found, err := tx2.GetNode(gp, n.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteNodeRemovesRecordAndIndexEntries(t *testing.T) {
	e := newTestEngine(t)
	gp := GraphPrefix{SchemaID: 1, GraphID: 1}
	tx := e.Begin()

	n := &types.Node{ID: types.NewNodeID(), Labels: []string{"Person"}, Properties: map[string]types.Value{"name": types.String("alice")}}
	require.NoError(t, tx.PutNode(gp, n))
	require.NoError(t, tx.Commit())

	tx2 := e.Begin()
	require.NoError(t, tx2.DeleteNode(gp, n.ID))
	require.NoError(t, tx2.Commit())

	tx3 := e.Begin()
	_, found, err := tx3.GetNode(gp, n.ID)
	require.NoError(t, err)
	assert.False(t, found)

	var matches int
	require.NoError(t, tx3.ScanIndexEquality(gp, "Person", "name", types.String("alice"), func(types.NodeID) error {
		matches++
		return nil
	}))
	assert.Zero(t, matches, "deleting a node must also remove its index entries")
}

func TestScanNodesFiltersByLabel(t *testing.T) {
	e := newTestEngine(t)
	gp := GraphPrefix{SchemaID: 1, GraphID: 1}
	tx := e.Begin()

	require.NoError(t, tx.PutNode(gp, &types.Node{ID: types.NewNodeID(), Labels: []string{"Person"}, Properties: map[string]types.Value{}}))
	require.NoError(t, tx.PutNode(gp, &types.Node{ID: types.NewNodeID(), Labels: []string{"Company"}, Properties: map[string]types.Value{}}))
	require.NoError(t, tx.Commit())

	tx2 := e.Begin()
	var persons int
	require.NoError(t, tx2.ScanNodes(gp, "Person", func(*types.Node) error { persons++; return nil }))
	assert.Equal(t, 1, persons)

	var all int
	require.NoError(t, tx2.ScanNodes(gp, "", func(*types.Node) error { all++; return nil }))
	assert.Equal(t, 2, all)
}

func TestScanIndexEqualityFindsNodeByProperty(t *testing.T) {
	e := newTestEngine(t)
	gp := GraphPrefix{SchemaID: 1, GraphID: 1}
	tx := e.Begin()

	n1 := &types.Node{ID: types.NewNodeID(), Labels: []string{"Person"}, Properties: map[string]types.Value{"age": types.Int(30)}}
	n2 := &types.Node{ID: types.NewNodeID(), Labels: []string{"Person"}, Properties: map[string]types.Value{"age": types.Int(25)}}
	require.NoError(t, tx.PutNode(gp, n1))
	require.NoError(t, tx.PutNode(gp, n2))
	require.NoError(t, tx.Commit())

	tx2 := e.Begin()
	var found []types.NodeID
	require.NoError(t, tx2.ScanIndexEquality(gp, "Person", "age", types.Int(30), func(id types.NodeID) error {
		found = append(found, id)
		return nil
	}))
	require.Len(t, found, 1)
	assert.Equal(t, n1.ID, found[0])
}

func TestPutNodeReplacesStaleIndexEntryOnUpdate(t *testing.T) {
	e := newTestEngine(t)
	gp := GraphPrefix{SchemaID: 1, GraphID: 1}
	id := types.NewNodeID()
	tx := e.Begin()
	require.NoError(t, tx.PutNode(gp, &types.Node{ID: id, Labels: []string{"Person"}, Properties: map[string]types.Value{"age": types.Int(30)}}))
	require.NoError(t, tx.Commit())

	tx2 := e.Begin()
	require.NoError(t, tx2.PutNode(gp, &types.Node{ID: id, Labels: []string{"Person"}, Properties: map[string]types.Value{"age": types.Int(31)}}))
	require.NoError(t, tx2.Commit())

	tx3 := e.Begin()
	var oldMatches, newMatches int
	require.NoError(t, tx3.ScanIndexEquality(gp, "Person", "age", types.Int(30), func(types.NodeID) error { oldMatches++; return nil }))
	require.NoError(t, tx3.ScanIndexEquality(gp, "Person", "age", types.Int(31), func(types.NodeID) error { newMatches++; return nil }))
	assert.Zero(t, oldMatches, "the stale index entry for age=30 must be gone after the update")
	assert.Equal(t, 1, newMatches)
}

func TestPutEdgeAndAdjacencyScans(t *testing.T) {
	e := newTestEngine(t)
	gp := GraphPrefix{SchemaID: 1, GraphID: 1}
	tx := e.Begin()

	src := types.NewNodeID()
	dst := types.NewNodeID()
	edge := &types.Edge{ID: types.NewEdgeID(), Type: "KNOWS", Src: src, Dst: dst, Properties: map[string]types.Value{}}
	require.NoError(t, tx.PutEdge(gp, edge))
	require.NoError(t, tx.Commit())

	tx2 := e.Begin()
	got, found, err := tx2.GetEdge(gp, edge.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "KNOWS", got.Type)

	var out []*types.Edge
	require.NoError(t, tx2.ScanAdjOut(gp, src, "", func(e *types.Edge) error { out = append(out, e); return nil }))
	require.Len(t, out, 1)
	assert.Equal(t, dst, out[0].Dst)

	var in []*types.Edge
	require.NoError(t, tx2.ScanAdjIn(gp, dst, "", func(e *types.Edge) error { in = append(in, e); return nil }))
	require.Len(t, in, 1)
	assert.Equal(t, src, in[0].Src)

	var wrongType []*types.Edge
	require.NoError(t, tx2.ScanAdjOut(gp, src, "LIKES", func(e *types.Edge) error { wrongType = append(wrongType, e); return nil }))
	assert.Empty(t, wrongType, "a type filter must exclude edges of a different type")
}

func TestDeleteEdgeRemovesBothAdjacencyEntries(t *testing.T) {
	e := newTestEngine(t)
	gp := GraphPrefix{SchemaID: 1, GraphID: 1}
	src, dst := types.NewNodeID(), types.NewNodeID()
	edge := &types.Edge{ID: types.NewEdgeID(), Type: "KNOWS", Src: src, Dst: dst, Properties: map[string]types.Value{}}

	tx := e.Begin()
	require.NoError(t, tx.PutEdge(gp, edge))
	require.NoError(t, tx.Commit())

	tx2 := e.Begin()
	require.NoError(t, tx2.DeleteEdge(gp, edge.ID))
	require.NoError(t, tx2.Commit())

	tx3 := e.Begin()
	var out, in int
	require.NoError(t, tx3.ScanAdjOut(gp, src, "", func(*types.Edge) error { out++; return nil }))
	require.NoError(t, tx3.ScanAdjIn(gp, dst, "", func(*types.Edge) error { in++; return nil }))
	assert.Zero(t, out)
	assert.Zero(t, in)
}

func TestGraphPrefixIsolatesDifferentGraphs(t *testing.T) {
	e := newTestEngine(t)
	gpA := GraphPrefix{SchemaID: 1, GraphID: 1}
	gpB := GraphPrefix{SchemaID: 1, GraphID: 2}

	tx := e.Begin()
	n := &types.Node{ID: types.NewNodeID(), Labels: []string{"Person"}, Properties: map[string]types.Value{}}
	require.NoError(t, tx.PutNode(gpA, n))
	require.NoError(t, tx.Commit())

	tx2 := e.Begin()
	_, found, err := tx2.GetNode(gpB, n.ID)
	require.NoError(t, err)
	assert.False(t, found, "a node written under one graph prefix must not be visible under another")
}

func TestRawPutGetDeleteRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	key := []byte("catalog-key")
	tx.RawPut(key, []byte("value"))

	v, found, err := tx.RawGet(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "value", string(v))

	require.NoError(t, tx.Commit())

	tx2 := e.Begin()
	tx2.RawDelete(key)
	require.NoError(t, tx2.Commit())

	tx3 := e.Begin()
	_, found, err = tx3.RawGet(key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteSetTracksTouchedKeysOnly(t *testing.T) {
	e := newTestEngine(t)
	gp := GraphPrefix{SchemaID: 1, GraphID: 1}
	tx := e.Begin()
	n := &types.Node{ID: types.NewNodeID(), Labels: []string{"Person"}, Properties: map[string]types.Value{}}
	require.NoError(t, tx.PutNode(gp, n))

	assert.Contains(t, tx.WriteSet(), string(NodeKey(gp, n.ID)))
	assert.Contains(t, tx.ReadSet(), string(NodeKey(gp, n.ID)), "PutNode checks for an existing record first, which records a read")
}

func TestDoubleCommitFails(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.Commit())
	assert.True(t, gqlerr.Is(tx.Commit(), gqlerr.KindInternal))
}
