package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/storage"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	engine, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	cat, err := Open(engine)
	require.NoError(t, err)
	return cat
}

func TestCreateSchemaRejectsDuplicate(t *testing.T) {
	cat := newTestCatalog(t)
	before := cat.SchemaListVersion()

	s, err := cat.CreateSchema("/social")
	require.NoError(t, err)
	assert.Equal(t, "/social", s.Name)
	assert.Greater(t, cat.SchemaListVersion(), before)

	_, err = cat.CreateSchema("/social")
	assert.True(t, gqlerr.Is(err, gqlerr.KindAlreadyExists))
}

func TestGetSchemaNotFound(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.GetSchema("/nope")
	assert.True(t, gqlerr.Is(err, gqlerr.KindNotFound))
}

func TestCreateGraphRequiresExistingSchema(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateGraph("/social", "main")
	assert.True(t, gqlerr.Is(err, gqlerr.KindNotFound))

	_, err = cat.CreateSchema("/social")
	require.NoError(t, err)
	g, err := cat.CreateGraph("/social", "main")
	require.NoError(t, err)
	assert.Equal(t, "main", g.Name)
	assert.Equal(t, "/social", g.SchemaName)
	assert.Equal(t, "/social/main", g.Path())

	_, err = cat.CreateGraph("/social", "main")
	assert.True(t, gqlerr.Is(err, gqlerr.KindAlreadyExists))
}

func TestListSchemasAndGraphsAreSorted(t *testing.T) {
	cat := newTestCatalog(t)
	for _, name := range []string{"/zeta", "/alpha", "/mid"} {
		_, err := cat.CreateSchema(name)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"/alpha", "/mid", "/zeta"}, cat.ListSchemas())

	_, err := cat.CreateSchema("/social")
	require.NoError(t, err)
	for _, name := range []string{"zebra", "apple"} {
		_, err := cat.CreateGraph("/social", name)
		require.NoError(t, err)
	}
	graphs, err := cat.ListGraphs("/social")
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "zebra"}, graphs)
}

func TestDropGraphRemovesFromSchemaAndCatalog(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateSchema("/social")
	require.NoError(t, err)
	g, err := cat.CreateGraph("/social", "main")
	require.NoError(t, err)

	require.NoError(t, cat.DropGraph("/social", "main"))
	_, err = cat.GetGraph("/social", "main")
	assert.True(t, gqlerr.Is(err, gqlerr.KindNotFound))

	// dropping again must fail: the graph id is gone from the schema.
	err = cat.DropGraph("/social", "main")
	assert.True(t, gqlerr.Is(err, gqlerr.KindNotFound))
	_ = g
}

func TestDropSchemaDestroysContainedGraphs(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateSchema("/social")
	require.NoError(t, err)
	_, err = cat.CreateGraph("/social", "main")
	require.NoError(t, err)
	_, err = cat.CreateGraph("/social", "secondary")
	require.NoError(t, err)

	require.NoError(t, cat.DropSchema("/social"))
	_, err = cat.GetSchema("/social")
	assert.True(t, gqlerr.Is(err, gqlerr.KindNotFound))
	_, err = cat.GetGraph("/social", "main")
	assert.True(t, gqlerr.Is(err, gqlerr.KindNotFound))
}

func TestBumpDataVersionIncrementsInPlace(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateSchema("/social")
	require.NoError(t, err)
	g, err := cat.CreateGraph("/social", "main")
	require.NoError(t, err)

	before := g.DataVersion
	cat.BumpDataVersion(g.ID)
	cat.BumpDataVersion(g.ID)

	got, err := cat.GetGraph("/social", "main")
	require.NoError(t, err)
	assert.Equal(t, before+2, got.DataVersion)
	assert.Same(t, g, got, "GetGraph must return the same live *Graph BumpDataVersion mutated")
}

func TestGraphPrefixDerivesFromSchemaAndGraphID(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateSchema("/social")
	require.NoError(t, err)
	g, err := cat.CreateGraph("/social", "main")
	require.NoError(t, err)

	prefix := GraphPrefix(g)
	assert.Equal(t, g.SchemaID, prefix.SchemaID)
	assert.Equal(t, g.ID, prefix.GraphID)
}

func TestCatalogSurvivesReopen(t *testing.T) {
	engine, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	cat, err := Open(engine)
	require.NoError(t, err)
	_, err = cat.CreateSchema("/social")
	require.NoError(t, err)
	_, err = cat.CreateGraph("/social", "main")
	require.NoError(t, err)

	reopened, err := Open(engine)
	require.NoError(t, err)
	g, err := reopened.GetGraph("/social", "main")
	require.NoError(t, err)
	assert.Equal(t, "main", g.Name)
}
