package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphlite/pkg/catalog"
	"github.com/orneryd/graphlite/pkg/storage"
	"github.com/orneryd/graphlite/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, *catalog.Catalog, *storage.Engine) {
	t.Helper()
	engine, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	cat, err := catalog.Open(engine)
	require.NoError(t, err)
	_, err = cat.CreateSchema("/social")
	require.NoError(t, err)
	_, err = cat.CreateGraph("/social", "main")
	require.NoError(t, err)
	require.NoError(t, cat.CreateRole("admin", []catalog.Grant{{OpClass: catalog.OpAdmin, Pattern: "**"}}))
	require.NoError(t, cat.CreateUser("alice", "hunter2", []string{"admin"}))

	mgr := NewManager(cat, engine, Options{
		Mode:               Instance,
		DefaultSchema:      "/social",
		DefaultGraph:       "main",
		IdleTimeout:        time.Hour,
		TransactionTimeout: time.Hour,
	})
	return mgr, cat, engine
}

func TestCreateSessionAuthenticatesAndPartitions(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	s, err := mgr.CreateSession("alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "/social", s.CurrentSchema())

	got, err := mgr.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = mgr.CreateSession("alice", "wrong-password")
	assert.Error(t, err)
}

func TestCloseSessionRemovesFromPartitionAndRollsBackTxn(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	s, err := mgr.CreateSession("alice", "hunter2")
	require.NoError(t, err)

	_, err = mgr.Begin(s, ReadCommitted)
	require.NoError(t, err)
	require.NotNil(t, s.Txn())

	require.NoError(t, mgr.CloseSession(s.ID))
	_, err = mgr.GetSession(s.ID)
	assert.Error(t, err)
}

func TestBeginFailsWhenAlreadyActive(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	s, err := mgr.CreateSession("alice", "hunter2")
	require.NoError(t, err)

	_, err = mgr.Begin(s, ReadCommitted)
	require.NoError(t, err)

	_, err = mgr.Begin(s, ReadCommitted)
	assert.Error(t, err)
}

func TestCommitBumpsGraphDataVersion(t *testing.T) {
	mgr, cat, _ := newTestManager(t)
	s, err := mgr.CreateSession("alice", "hunter2")
	require.NoError(t, err)

	g, err := cat.GetGraph("/social", "main")
	require.NoError(t, err)
	before := g.DataVersion

	tx, err := mgr.Begin(s, ReadCommitted)
	require.NoError(t, err)

	node := &types.Node{ID: types.NewNodeID(), Labels: []string{"Person"}}
	require.NoError(t, tx.Storage.PutNode(catalog.GraphPrefix(g), node))
	require.NoError(t, mgr.Commit(s, tx))

	assert.Equal(t, TxCommitted, tx.State())
	assert.Nil(t, s.Txn())
	assert.Greater(t, g.DataVersion, before)
}

func TestRollbackDiscardsWritesAndClearsSessionTxn(t *testing.T) {
	mgr, cat, _ := newTestManager(t)
	s, err := mgr.CreateSession("alice", "hunter2")
	require.NoError(t, err)

	g, err := cat.GetGraph("/social", "main")
	require.NoError(t, err)

	tx, err := mgr.Begin(s, ReadCommitted)
	require.NoError(t, err)
	id := types.NewNodeID()
	require.NoError(t, tx.Storage.PutNode(catalog.GraphPrefix(g), &types.Node{ID: id, Labels: []string{"Person"}}))
	require.NoError(t, mgr.Rollback(s, tx))

	assert.Equal(t, TxAborted, tx.State())
	assert.Nil(t, s.Txn())

	verify := mgr.engine.Begin()
	_, found, err := verify.GetNode(catalog.GraphPrefix(g), id)
	require.NoError(t, err)
	assert.False(t, found, "a rolled-back write must not be visible")
}

func TestSerializableDetectsWriteWriteConflict(t *testing.T) {
	mgr, cat, _ := newTestManager(t)
	s1, err := mgr.CreateSession("alice", "hunter2")
	require.NoError(t, err)
	s2, err := mgr.CreateSession("alice", "hunter2")
	require.NoError(t, err)

	g, err := cat.GetGraph("/social", "main")
	require.NoError(t, err)
	id := types.NewNodeID()

	tx1, err := mgr.Begin(s1, Serializable)
	require.NoError(t, err)
	tx2, err := mgr.Begin(s2, Serializable)
	require.NoError(t, err)

	require.NoError(t, tx1.Storage.PutNode(catalog.GraphPrefix(g), &types.Node{ID: id, Labels: []string{"Person"}}))
	require.NoError(t, tx2.Storage.PutNode(catalog.GraphPrefix(g), &types.Node{ID: id, Labels: []string{"Person"}, Properties: map[string]types.Value{"name": types.String("dup")}}))

	require.NoError(t, mgr.Commit(s1, tx1))

	err = mgr.Commit(s2, tx2)
	assert.Error(t, err, "a later-beginning Serializable transaction writing the same key must conflict")
}

func TestWithStatementAutoCommitsAndAutoRollsBack(t *testing.T) {
	mgr, cat, _ := newTestManager(t)
	s, err := mgr.CreateSession("alice", "hunter2")
	require.NoError(t, err)

	g, err := cat.GetGraph("/social", "main")
	require.NoError(t, err)

	id := types.NewNodeID()
	err = mgr.WithStatement(s, func(tx *Transaction) error {
		return tx.Storage.PutNode(catalog.GraphPrefix(g), &types.Node{ID: id, Labels: []string{"Person"}})
	})
	require.NoError(t, err)
	assert.Nil(t, s.Txn(), "an implicit transaction must not remain attached to the session")

	verify := mgr.engine.Begin()
	_, found, err := verify.GetNode(catalog.GraphPrefix(g), id)
	require.NoError(t, err)
	assert.True(t, found)

	failErr := assert.AnError
	err = mgr.WithStatement(s, func(tx *Transaction) error { return failErr })
	assert.ErrorIs(t, err, failErr)
	assert.Nil(t, s.Txn())
}

func TestWithStatementReusesExplicitTransaction(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	s, err := mgr.CreateSession("alice", "hunter2")
	require.NoError(t, err)

	tx, err := mgr.Begin(s, ReadCommitted)
	require.NoError(t, err)

	var seen *Transaction
	require.NoError(t, mgr.WithStatement(s, func(t *Transaction) error {
		seen = t
		return nil
	}))
	assert.Same(t, tx, seen)
	assert.Same(t, tx, s.Txn(), "WithStatement must leave an explicit transaction for its caller to finalize")
}

func TestSweepIdleClosesIdleSessionsAndRollsBackExpiredTxns(t *testing.T) {
	mgr, cat, _ := newTestManager(t)
	mgr.idleTimeout = time.Millisecond
	mgr.txnTimeout = time.Millisecond

	s, err := mgr.CreateSession("alice", "hunter2")
	require.NoError(t, err)
	g, err := cat.GetGraph("/social", "main")
	require.NoError(t, err)

	tx, err := mgr.Begin(s, ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, tx.Storage.PutNode(catalog.GraphPrefix(g), &types.Node{ID: types.NewNodeID(), Labels: []string{"Person"}}))

	time.Sleep(5 * time.Millisecond)
	mgr.SweepIdle()

	_, err = mgr.GetSession(s.ID)
	assert.Error(t, err, "an idle-too-long session must be closed")
}
