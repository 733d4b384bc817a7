// Package session implements GraphLite's session/transaction manager
// (SPEC_FULL.md §4.6): a partitioned pool of per-user sessions, each
// holding at most one active transaction, plus the transaction state
// machine and isolation-level conflict checking.
//
// The teacher embeds one implicit transaction directly inside its
// StorageExecutor (pkg/cypher/transaction.go) with no pooling, no
// partitioning and a single fixed isolation level. This package
// generalizes that into the spec's 16-way partitioned pool and full
// isolation-level state machine, while keeping the teacher's shape for
// the transaction lifecycle itself: an explicit Begin/Commit/Rollback
// triple guarding a "no active transaction" / "already active" error
// pair.
package session

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/orneryd/graphlite/pkg/catalog"
)

// State is a session's lifecycle state (spec §4.6's lifecycle table).
type State int

const (
	StateActive State = iota
	StateClosed
)

// Session is a per-user context: identity, authenticated principal,
// current schema/graph, catalog cache, and at most one active
// transaction (spec §3's Session entity).
type Session struct {
	mu sync.Mutex

	ID        uuid.UUID
	Principal *catalog.Principal

	currentSchema string
	currentGraph  string

	txn   *Transaction
	cache *catalogCache

	state   State
	lastUse time.Time
}

func newSession(principal *catalog.Principal, defaultSchema, defaultGraph string, cat *catalog.Catalog) *Session {
	return &Session{
		ID:            uuid.New(),
		Principal:     principal,
		currentSchema: defaultSchema,
		currentGraph:  defaultGraph,
		cache:         newCatalogCache(cat),
		state:         StateActive,
		lastUse:       time.Now(),
	}
}

// touch records a use, advancing the idle timer and the lifecycle table's
// "Active -> Active on any query" transition.
func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUse = time.Now()
}

// CurrentSchema returns the session's current schema, "" if unset.
func (s *Session) CurrentSchema() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSchema
}

// CurrentGraph returns the session's current graph, "" if unset.
func (s *Session) CurrentGraph() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentGraph
}

// SetCurrent updates the session's current schema/graph, validating
// against cat that the graph (if given) actually exists (spec §3
// invariant: "Session's current-graph, if set, must name an existing
// graph").
func (s *Session) SetCurrent(schema, graph string) error {
	if graph != "" {
		if _, err := s.cache.graph(schema, graph); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentSchema = schema
	s.currentGraph = graph
	return nil
}

// Catalog returns the session's version-checked catalog cache (spec
// §4.6's "catalog cache per session").
func (s *Session) Catalog() *catalogCache { return s.cache }

// Txn returns the session's active transaction, if any.
func (s *Session) Txn() *Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txn
}

func (s *Session) setTxn(t *Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txn = t
}

func (s *Session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUse)
}

// close rolls back any open transaction (spec §4.6: "close_session ...
// rolls back any open transaction") and marks the session closed.
func (s *Session) close(mgr *Manager) {
	s.mu.Lock()
	txn := s.txn
	s.txn = nil
	s.state = StateClosed
	s.mu.Unlock()
	if txn != nil {
		_ = mgr.Rollback(s, txn)
	}
}

// partitionFor selects one of N independent, separately-locked pool
// shards for id via a stable hash (spec §4.6: "a session's partition is
// selected by a stable hash of its identity"), matching pkg/gql/plan's
// use of the same xxhash package for a different stable-hash need.
func partitionFor(id uuid.UUID, n int) int {
	return int(xxhash.Sum64String(id.String()) % uint64(n))
}
