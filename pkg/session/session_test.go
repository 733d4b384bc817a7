package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphlite/pkg/catalog"
	"github.com/orneryd/graphlite/pkg/storage"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
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
	return cat
}

func TestSessionSetCurrentValidatesGraphExists(t *testing.T) {
	cat := newTestCatalog(t)
	principal, err := cat.Authenticate("alice", "hunter2")
	require.NoError(t, err)

	s := newSession(principal, "/social", "main", cat)
	require.Equal(t, "/social", s.CurrentSchema())
	require.Equal(t, "main", s.CurrentGraph())

	require.NoError(t, s.SetCurrent("/social", "main"))

	err = s.SetCurrent("/social", "does-not-exist")
	require.Error(t, err)
	require.Equal(t, "main", s.CurrentGraph(), "a failed SetCurrent must not change state")
}

func TestSessionSetCurrentSchemaClearsGraph(t *testing.T) {
	cat := newTestCatalog(t)
	principal, err := cat.Authenticate("alice", "hunter2")
	require.NoError(t, err)

	s := newSession(principal, "/social", "main", cat)
	require.NoError(t, s.SetCurrent("/other", ""))
	require.Equal(t, "/other", s.CurrentSchema())
	require.Equal(t, "", s.CurrentGraph())
}

func TestPartitionForIsStableAndSpread(t *testing.T) {
	ids := make(map[int]int)
	for i := 0; i < 256; i++ {
		id := newSession(&catalog.Principal{UserName: "x"}, "", "", nil).ID
		p := partitionFor(id, partitionCount)
		require.GreaterOrEqual(t, p, 0)
		require.Less(t, p, partitionCount)
		ids[p]++
	}
	// 256 random session ids must land in more than one partition; a
	// broken hash would pile everything into one bucket.
	require.Greater(t, len(ids), 1)
}
