// Package coordinator wires together the storage engine, catalog,
// session/transaction manager, plan and result caches, and the GQL
// front end (lexer/parser/planner/executor) into the single entry point
// an embedding application opens (spec §6, §9's "coordinator exposes
// Open/Install/CreateSession/Execute/...").
//
// The teacher's closest analogue is pkg/cypher/engine.go, which wires
// its StorageExecutor, BadgerStore and AuthManager behind one Engine
// type with Open/Close/Execute methods; this package keeps that shape
// but fans Execute out across a real parse/plan/optimize/lower/execute
// pipeline instead of interpreting one regex-captured AST node at a
// time.
package coordinator

import (
	"github.com/google/uuid"

	"github.com/orneryd/graphlite/pkg/cache"
	"github.com/orneryd/graphlite/pkg/catalog"
	"github.com/orneryd/graphlite/pkg/config"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/gqllog"
	"github.com/orneryd/graphlite/pkg/session"
	"github.com/orneryd/graphlite/pkg/storage"
)

// Coordinator is GraphLite's embeddable handle: one process-local
// instance wraps one Badger-backed engine, its catalog, and the
// session pool and caches layered on top of it.
type Coordinator struct {
	cfg     *config.Config
	engine  *storage.Engine
	catalog *catalog.Catalog
	sessmgr *session.Manager
	plans   *cache.PlanCache
	results *cache.ResultCache
	stats   *cache.Stats
	log     *gqllog.Logger
}

// Open starts the storage engine and catalog at cfg.Database.DataDir and
// builds the session pool and caches on top of them. It does not install
// the default schema/graph; call Install for that.
func Open(cfg *config.Config) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, gqlerr.Internal(err, "invalid configuration")
	}

	engine, err := storage.Open(storage.Options{DataDir: cfg.Database.DataDir})
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Open(engine)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	mode := session.Instance
	if cfg.Session.Mode == "global" {
		mode = session.Global
	}
	sessmgr := session.NewManager(cat, engine, session.Options{
		Mode:               mode,
		DefaultSchema:      cfg.Database.DefaultSchema,
		DefaultGraph:       cfg.Database.DefaultGraph,
		IdleTimeout:        cfg.Session.IdleTimeout,
		TransactionTimeout: cfg.Database.TransactionTimeout,
	})

	stats := &cache.Stats{}
	c := &Coordinator{
		cfg:     cfg,
		engine:  engine,
		catalog: cat,
		sessmgr: sessmgr,
		plans:   cache.NewPlanCache(cfg.Cache.PlanCacheSize, stats),
		results: cache.NewResultCache(cfg.Cache.ResultCacheSize, stats),
		stats:   stats,
		log:     gqllog.New("coordinator"),
	}
	return c, nil
}

// Install ensures schemaName/graphName exist, creating whichever of
// them is missing (spec §4.2: schemas and graphs are created explicitly,
// but an embedding application typically wants its default namespace
// ready at startup).
func (c *Coordinator) Install(schemaName, graphName string) (*catalog.Graph, error) {
	if _, err := c.catalog.GetSchema(schemaName); err != nil {
		if _, err := c.catalog.CreateSchema(schemaName); err != nil {
			return nil, err
		}
	}
	g, err := c.catalog.GetGraph(schemaName, graphName)
	if err == nil {
		return g, nil
	}
	return c.catalog.CreateGraph(schemaName, graphName)
}

// Close releases the storage engine. Open sessions are left as-is; the
// caller is expected to have closed them first.
func (c *Coordinator) Close() error {
	return c.engine.Close()
}

// CreateSession authenticates user against the catalog and opens a new
// session (spec §6's create_session).
func (c *Coordinator) CreateSession(user, credential string) (*session.Session, error) {
	return c.sessmgr.CreateSession(user, credential)
}

// CloseSession closes a session, rolling back any open transaction
// (spec §6's close_session).
func (c *Coordinator) CloseSession(id uuid.UUID) error {
	return c.sessmgr.CloseSession(id)
}

// SweepIdle closes idle sessions and rolls back timed-out transactions.
// An embedder typically calls this from a periodic background ticker.
func (c *Coordinator) SweepIdle() {
	c.sessmgr.SweepIdle()
}

// Begin starts an explicit transaction on s (spec §4.6/§6's begin).
func (c *Coordinator) Begin(s *session.Session, isolation session.Isolation) (*session.Transaction, error) {
	return c.sessmgr.Begin(s, isolation)
}

// Commit commits s's active transaction (spec §6's commit).
func (c *Coordinator) Commit(s *session.Session, t *session.Transaction) error {
	return c.sessmgr.Commit(s, t)
}

// Rollback rolls back s's active transaction (spec §6's rollback).
func (c *Coordinator) Rollback(s *session.Session, t *session.Transaction) error {
	return c.sessmgr.Rollback(s, t)
}

// CacheStats exposes the coordinator's shared plan/result cache counters
// for CALL gql.cache_stats() (pkg/gql/exec.CacheStats).
func (c *Coordinator) CacheStats() *cache.Stats { return c.stats }

func (c *Coordinator) currentGraph(s *session.Session) (*catalog.Graph, error) {
	schema := s.CurrentSchema()
	graph := s.CurrentGraph()
	if schema == "" || graph == "" {
		return nil, gqlerr.Semantic(gqlerr.Location{}, "no current graph set; run SESSION SET SCHEMA/GRAPH first")
	}
	return c.catalog.GetGraph(schema, graph)
}
