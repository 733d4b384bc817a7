// Package catalog persists GraphLite's metadata — schemas, graphs, users,
// roles and version counters (spec §4.2) — in a reserved key range of the
// same Badger store used for graph data (spec §6: "Catalog lives in
// reserved key ranges ... outside any user schema/graph namespace").
//
// Catalog writes are serialized through a single mutator (the Catalog
// value's mu), matching spec §5's "catalog writes are serialized through a
// single catalog mutator; reads are lock-free via the version-checked
// cache" — the read-through methods here take only a read lock, and
// pkg/session layers the version-checked cache on top.
package catalog

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/storage"
)

// Schema is a named namespace (spec §3), e.g. "/social".
type Schema struct {
	ID      uint32
	Name    string
	Graphs  map[string]uint32 // graph name -> GraphID
	Version uint64            // bumped on every DDL change to this schema
}

// Graph is a named container within a schema (spec §3).
type Graph struct {
	ID         uint32
	SchemaID   uint32
	SchemaName string
	Name       string
	Version    uint64 // set to 1 at CREATE GRAPH; ALTER GRAPH is rejected, so nothing bumps it

	// DataVersion is bumped on every committed write (insert/set/remove/
	// delete) to this graph's nodes or edges. The result cache (pkg/cache)
	// keys on this, separate from Version's DDL-only counting, because
	// spec §4.6 invalidates the result cache "on any write to the
	// graph(s) the plan reads" while the plan cache only cares about
	// structural (DDL) changes.
	DataVersion uint64
}

// Path returns the "/schema/graph" path used in error messages and the
// gql.list_graphs() procedure.
func (g *Graph) Path() string { return g.SchemaName + "/" + g.Name }

// Catalog is the metadata store. It is safe for concurrent use; all
// mutating operations serialize through mu (spec §5 "a single catalog
// mutator").
type Catalog struct {
	engine *storage.Engine

	mu      sync.RWMutex
	schemas map[string]*Schema // name -> schema
	graphs  map[uint32]*Graph  // graph id -> graph
	users   map[string]*User
	roles   map[string]*Role

	nextSchemaID atomic.Uint32
	nextGraphID  atomic.Uint32

	// Catalog-wide version counters, monotonically non-decreasing for the
	// database's lifetime (spec §3 invariant). The session catalog cache
	// (pkg/session) captures these to know when its cached schema/graph
	// lists must be refreshed.
	schemaListVersion atomic.Uint64
	graphListVersion  atomic.Uint64
}

// Open loads (or initializes an empty) catalog from engine's reserved
// catalog tree.
func Open(engine *storage.Engine) (*Catalog, error) {
	c := &Catalog{
		engine:  engine,
		schemas: make(map[string]*Schema),
		graphs:  make(map[uint32]*Graph),
		users:   make(map[string]*User),
		roles:   make(map[string]*Role),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// SchemaListVersion returns the catalog-wide counter bumped on every
// create/drop schema.
func (c *Catalog) SchemaListVersion() uint64 { return c.schemaListVersion.Load() }

// GraphListVersion returns the catalog-wide counter bumped on every
// create/drop graph (and on drop schema).
func (c *Catalog) GraphListVersion() uint64 { return c.graphListVersion.Load() }

// CreateSchema installs a new, empty schema. Returns AlreadyExists if the
// path is taken.
func (c *Catalog) CreateSchema(name string) (*Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.schemas[name]; ok {
		return nil, gqlerr.AlreadyExists("schema " + name)
	}
	s := &Schema{
		ID:      c.nextSchemaID.Add(1),
		Name:    name,
		Graphs:  make(map[string]uint32),
		Version: 1,
	}
	if err := c.putSchema(s); err != nil {
		return nil, err
	}
	c.schemas[name] = s
	c.schemaListVersion.Add(1)
	return s, nil
}

// DropSchema removes a schema and every graph (and its data) within it,
// within a single storage batch (spec §4.2: "increments graph_version and
// destroys contained data within the same batch").
func (c *Catalog) DropSchema(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.schemas[name]
	if !ok {
		return gqlerr.NotFound("schema " + name)
	}

	txn := c.engine.Begin()
	for graphName, gid := range s.Graphs {
		g := c.graphs[gid]
		if err := deleteGraphData(txn, graphPrefixOf(g)); err != nil {
			txn.Rollback()
			return err
		}
		deleteGraphRecord(txn, s.Name, graphName)
		delete(c.graphs, gid)
	}
	deleteSchemaRecord(txn, name)
	if err := txn.Commit(); err != nil {
		return err
	}

	delete(c.schemas, name)
	c.schemaListVersion.Add(1)
	c.graphListVersion.Add(1)
	return nil
}

// ListSchemas returns every schema name, sorted.
func (c *Catalog) ListSchemas() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetSchema looks up a schema by name.
func (c *Catalog) GetSchema(name string) (*Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[name]
	if !ok {
		return nil, gqlerr.NotFound("schema " + name)
	}
	return s, nil
}

// CreateGraph installs a new, empty graph within an existing schema.
func (c *Catalog) CreateGraph(schemaName, graphName string) (*Graph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.schemas[schemaName]
	if !ok {
		return nil, gqlerr.NotFound("schema " + schemaName)
	}
	if _, ok := s.Graphs[graphName]; ok {
		return nil, gqlerr.AlreadyExists("graph " + schemaName + "/" + graphName)
	}

	g := &Graph{
		ID:         c.nextGraphID.Add(1),
		SchemaID:   s.ID,
		SchemaName: schemaName,
		Name:       graphName,
		Version:    1,
	}
	txn := c.engine.Begin()
	putGraphRecord(txn, g)
	s.Graphs[graphName] = g.ID
	s.Version++
	putSchemaRecordInto(txn, s)
	if err := txn.Commit(); err != nil {
		delete(s.Graphs, graphName)
		s.Version--
		return nil, err
	}

	c.graphs[g.ID] = g
	c.graphListVersion.Add(1)
	return g, nil
}

// DropGraph removes a graph and all of its nodes/edges atomically.
func (c *Catalog) DropGraph(schemaName, graphName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.schemas[schemaName]
	if !ok {
		return gqlerr.NotFound("schema " + schemaName)
	}
	gid, ok := s.Graphs[graphName]
	if !ok {
		return gqlerr.NotFound("graph " + schemaName + "/" + graphName)
	}
	g := c.graphs[gid]

	txn := c.engine.Begin()
	if err := deleteGraphData(txn, graphPrefixOf(g)); err != nil {
		txn.Rollback()
		return err
	}
	deleteGraphRecord(txn, schemaName, graphName)
	delete(s.Graphs, graphName)
	s.Version++
	putSchemaRecordInto(txn, s)
	if err := txn.Commit(); err != nil {
		return err
	}

	delete(c.graphs, gid)
	c.graphListVersion.Add(1)
	return nil
}

// ListGraphs returns every graph name within a schema, sorted.
func (c *Catalog) ListGraphs(schemaName string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[schemaName]
	if !ok {
		return nil, gqlerr.NotFound("schema " + schemaName)
	}
	out := make([]string, 0, len(s.Graphs))
	for name := range s.Graphs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// GetGraph looks up a graph by (schema, graph) name pair.
func (c *Catalog) GetGraph(schemaName, graphName string) (*Graph, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[schemaName]
	if !ok {
		return nil, gqlerr.NotFound("schema " + schemaName)
	}
	gid, ok := s.Graphs[graphName]
	if !ok {
		return nil, gqlerr.NotFound("graph " + schemaName + "/" + graphName)
	}
	return c.graphs[gid], nil
}

// BumpDataVersion records that graphID's data changed, for result-cache
// invalidation. Called by the session/txn manager on every successful
// commit that wrote nodes or edges.
func (c *Catalog) BumpDataVersion(graphID uint32) {
	c.mu.RLock()
	g, ok := c.graphs[graphID]
	c.mu.RUnlock()
	if ok {
		atomic.AddUint64(&g.DataVersion, 1)
	}
}

// GraphPrefix returns the storage key prefix for a graph, for use by the
// storage manager and executor.
func GraphPrefix(g *Graph) storage.GraphPrefix { return graphPrefixOf(g) }

func graphPrefixOf(g *Graph) storage.GraphPrefix {
	return storage.GraphPrefix{SchemaID: g.SchemaID, GraphID: g.ID}
}
