package session

import (
	"sync"

	"github.com/orneryd/graphlite/pkg/catalog"
)

// catalogCache caches one session's view of the schema list and each
// schema's graph list against a captured version number (spec §4.6:
// "caches schema list and per-schema graph list with a captured version
// number ... on mismatch it refreshes from the catalog"). There is no
// cross-session invalidation message: every session self-heals lazily
// on its own next access, which is why BumpDataVersion/schemaListVersion/
// graphListVersion need only be plain atomics on the shared *catalog.Catalog.
type catalogCache struct {
	cat *catalog.Catalog

	mu sync.Mutex

	schemaVersion uint64
	schemas       []string

	graphVersion uint64
	graphs       map[string][]string
}

func newCatalogCache(cat *catalog.Catalog) *catalogCache {
	return &catalogCache{cat: cat, graphs: make(map[string][]string)}
}

// ListSchemas returns every schema name, refreshing from the catalog
// first if the live schemaListVersion has moved past what this cache
// captured. Named to match *catalog.Catalog's own method so both satisfy
// pkg/gql/exec.CatalogReader.
func (c *catalogCache) ListSchemas() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v := c.cat.SchemaListVersion(); v != c.schemaVersion {
		c.schemas = c.cat.ListSchemas()
		c.schemaVersion = v
		c.graphs = make(map[string][]string) // schema set moved; drop stale per-schema lists too
		c.graphVersion = c.cat.GraphListVersion()
	}
	return c.schemas
}

// ListGraphs returns every graph name within schema, refreshing the
// whole per-schema map if the live graphListVersion has moved.
func (c *catalogCache) ListGraphs(schema string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v := c.cat.GraphListVersion(); v != c.graphVersion {
		c.graphs = make(map[string][]string)
		c.graphVersion = v
	}
	if g, ok := c.graphs[schema]; ok {
		return g, nil
	}
	g, err := c.cat.ListGraphs(schema)
	if err != nil {
		return nil, err
	}
	c.graphs[schema] = g
	return g, nil
}

// graph resolves (schema, graphName) through the underlying catalog
// directly — existence checks need the live record, not just the name
// list, so they bypass the name-list cache above.
func (c *catalogCache) graph(schema, graphName string) (*catalog.Graph, error) {
	return c.cat.GetGraph(schema, graphName)
}
