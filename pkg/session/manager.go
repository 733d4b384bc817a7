package session

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/orneryd/graphlite/pkg/catalog"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/storage"
)

const partitionCount = 16

// Mode selects how a Manager's session pool is scoped (spec §4.6's "two
// management modes").
type Mode int

const (
	// Instance scopes the pool to a single Manager value; no cross-handle
	// sharing.
	Instance Mode = iota
	// Global shares one process-wide pool across every Manager opened in
	// Global mode in this process.
	Global
)

type partition struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// Manager is GraphLite's session/transaction manager: the partitioned
// session pool plus the commit history SERIALIZABLE validation reads
// (spec §4.6, §5).
type Manager struct {
	catalog *catalog.Catalog
	engine  *storage.Engine

	partitions    [partitionCount]*partition
	idleTimeout   time.Duration
	txnTimeout    time.Duration
	defaultSchema string
	defaultGraph  string

	mu        sync.Mutex
	commitVer uint64
	history   []commitRecord
}

// globalPool is the process-wide singleton backing every Manager opened
// with Global mode, implementing the "pluggable provider pattern"
// (SPEC_FULL.md §9): a tagged variant chosen at Open, hidden behind the
// same Manager API either way.
var (
	globalPoolOnce sync.Once
	globalPool     [partitionCount]*partition
)

func sharedPartitions() [partitionCount]*partition {
	globalPoolOnce.Do(func() {
		for i := range globalPool {
			globalPool[i] = &partition{sessions: make(map[uuid.UUID]*Session)}
		}
	})
	return globalPool
}

// Options configures a new Manager.
type Options struct {
	Mode               Mode
	DefaultSchema      string
	DefaultGraph       string
	IdleTimeout        time.Duration
	TransactionTimeout time.Duration
}

// NewManager builds a session/transaction manager over cat and engine.
func NewManager(cat *catalog.Catalog, engine *storage.Engine, opts Options) *Manager {
	m := &Manager{
		catalog:       cat,
		engine:        engine,
		idleTimeout:   opts.IdleTimeout,
		txnTimeout:    opts.TransactionTimeout,
		defaultSchema: opts.DefaultSchema,
		defaultGraph:  opts.DefaultGraph,
	}
	if opts.Mode == Global {
		m.partitions = sharedPartitions()
	} else {
		for i := range m.partitions {
			m.partitions[i] = &partition{sessions: make(map[uuid.UUID]*Session)}
		}
	}
	return m
}

func (m *Manager) partitionFor(id uuid.UUID) *partition {
	return m.partitions[partitionFor(id, partitionCount)]
}

// CreateSession authenticates user/credential against the catalog and
// installs a new Active session in its hash-selected partition (spec
// §6's create_session, §4.6's "New -> Active on successful
// authentication").
func (m *Manager) CreateSession(user, credential string) (*Session, error) {
	principal, err := m.catalog.Authenticate(user, credential)
	if err != nil {
		return nil, err
	}
	s := newSession(principal, m.defaultSchema, m.defaultGraph, m.catalog)
	p := m.partitionFor(s.ID)
	p.mu.Lock()
	p.sessions[s.ID] = s
	p.mu.Unlock()
	return s, nil
}

// GetSession looks up a session by id, returning NotFound if it does not
// exist or has been closed.
func (m *Manager) GetSession(id uuid.UUID) (*Session, error) {
	p := m.partitionFor(id)
	p.mu.RLock()
	s, ok := p.sessions[id]
	p.mu.RUnlock()
	if !ok || s.state == StateClosed {
		return nil, gqlerr.NotFound("session " + id.String())
	}
	return s, nil
}

// CloseSession rolls back any open transaction and removes the session
// from its partition (spec §6's close_session).
func (m *Manager) CloseSession(id uuid.UUID) error {
	p := m.partitionFor(id)
	p.mu.Lock()
	s, ok := p.sessions[id]
	if ok {
		delete(p.sessions, id)
	}
	p.mu.Unlock()
	if !ok {
		return gqlerr.NotFound("session " + id.String())
	}
	s.close(m)
	return nil
}

// SweepIdle closes every session idle longer than its configured
// timeout and rolls back the open transaction of any session whose
// explicit transaction has itself been Active longer than
// TransactionTimeout (spec §4.6's idle lifecycle, §5's cancellation
// rules). Intended to be called periodically by the coordinator.
func (m *Manager) SweepIdle() {
	now := time.Now()
	for _, p := range m.partitions {
		p.mu.RLock()
		var stale []uuid.UUID
		var timedOut []*Session
		for id, s := range p.sessions {
			if s.idleFor(now) > m.idleTimeout {
				stale = append(stale, id)
				continue
			}
			if t := s.Txn(); t != nil && t.expired(m.txnTimeout) {
				timedOut = append(timedOut, s)
			}
		}
		p.mu.RUnlock()
		for _, id := range stale {
			_ = m.CloseSession(id)
		}
		for _, s := range timedOut {
			if t := s.Txn(); t != nil {
				_ = m.Rollback(s, t)
			}
		}
	}
}

// Begin starts a new transaction on s, failing if one is already active
// (spec §4.6: "a session holds at most one active transaction").
func (m *Manager) Begin(s *Session, isolation Isolation) (*Transaction, error) {
	return m.begin(s, isolation, false)
}

// BeginImplicit starts an implicit transaction the caller finalizes
// itself by calling Commit or Rollback once its work is done, used by
// pkg/coordinator's ResultStream to hold a transaction open across a
// streamed query's lifetime rather than the synchronous begin/fn/commit
// shape WithStatement offers.
func (m *Manager) BeginImplicit(s *Session, isolation Isolation) (*Transaction, error) {
	return m.begin(s, isolation, true)
}

func (m *Manager) begin(s *Session, isolation Isolation, implicit bool) (*Transaction, error) {
	if s.Txn() != nil {
		return nil, gqlerr.Conflict("session %s already has an active transaction", s.ID)
	}
	m.mu.Lock()
	beginVer := m.commitVer
	m.mu.Unlock()

	storageTxn := m.engine.Begin()
	t := newTransaction(s.ID, isolation, implicit, storageTxn, beginVer)
	s.setTxn(t)
	s.touch()
	return t, nil
}

// Commit applies t's staged mutations atomically (spec §4.6's commit
// operation). Under Serializable, t's write-set is validated against
// every transaction that committed after t's begin snapshot before the
// storage commit is attempted; a conflict aborts t and reports Conflict.
func (m *Manager) Commit(s *Session, t *Transaction) error {
	if err := t.requireActive(); err != nil {
		return err
	}
	t.state = TxCommitting

	if t.Isolation == Serializable {
		if err := m.validateSerializable(t); err != nil {
			t.state = TxAborted
			s.setTxn(nil)
			return err
		}
	}

	if err := t.Storage.Commit(); err != nil {
		t.state = TxAborted
		s.setTxn(nil)
		return err
	}

	m.recordCommit(t)
	m.bumpDataVersions(t.Storage)
	t.state = TxCommitted
	s.setTxn(nil)
	return nil
}

// Rollback discards t's staged mutations (spec §4.6: "always succeeds").
func (m *Manager) Rollback(s *Session, t *Transaction) error {
	_ = t.Storage.Rollback()
	t.state = TxAborted
	s.setTxn(nil)
	return nil
}

// WithStatement runs fn against an active transaction for s: if s
// already has one, fn runs inside it and the caller remains responsible
// for eventually committing or rolling it back; otherwise WithStatement
// begins an implicit one, commits it on fn's success, and rolls it back
// on failure (spec §4.6: "a statement executed with no active
// transaction begins one, executes, and commits automatically; failure
// auto-rolls back").
func (m *Manager) WithStatement(s *Session, fn func(*Transaction) error) error {
	if t := s.Txn(); t != nil {
		return fn(t)
	}
	t, err := m.begin(s, ReadCommitted, true)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		_ = m.Rollback(s, t)
		return err
	}
	return m.Commit(s, t)
}

// validateSerializable implements SPEC_FULL.md §4.6's write-set
// validation rule, retried through a short exponential backoff before
// reporting Conflict — matching openfga-openfga's datastore write path,
// which wraps its own optimistic-concurrency check the same way so a
// benign race against another commit still in m.recordCommit doesn't
// produce a spurious conflict report.
func (m *Manager) validateSerializable(t *Transaction) error {
	mine := writeSetOf(t.Storage)
	op := func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, rec := range m.history {
			if rec.version <= t.beginVer {
				continue
			}
			if key, hit := overlaps(mine, rec.writeSet); hit {
				return gqlerr.Conflict("write-write conflict on %q", key)
			}
		}
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 50 * time.Millisecond
	return backoff.Retry(op, b)
}

func (m *Manager) recordCommit(t *Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitVer++
	m.history = append(m.history, commitRecord{version: m.commitVer, writeSet: writeSetOf(t.Storage)})
	// Trim history no transaction currently in flight could still need:
	// nothing younger than the oldest Active transaction's beginVer is
	// kept. A conservative fixed cap stands in for that without every
	// Manager needing to track live transactions' begin versions.
	const maxHistory = 4096
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
}

// bumpDataVersions decodes t's write-set keys back into the catalog
// graph ids they touched and bumps each one's DataVersion once, so
// pkg/cache's result-cache invalidation (spec §4.6: "invalidated on any
// write to the graph(s) the plan reads") has something to key off.
func (m *Manager) bumpDataVersions(t *storage.Transaction) {
	seen := make(map[uint32]bool)
	for _, key := range t.WriteSet() {
		gid, ok := decodeGraphID(key)
		if !ok || seen[gid] {
			continue
		}
		seen[gid] = true
		m.catalog.BumpDataVersion(gid)
	}
}

// decodeGraphID extracts the graph id from a raw storage key, mirroring
// pkg/storage/keys.go's layout: one tree-tag byte, then a big-endian
// (schemaID uint32, graphID uint32) prefix. Catalog-tree keys (tag 0xFF)
// carry no graph id and are skipped.
func decodeGraphID(key string) (uint32, bool) {
	const treeCatalog = 0xFF
	if len(key) < 9 || key[0] == treeCatalog {
		return 0, false
	}
	return binary.BigEndian.Uint32([]byte(key[5:9])), true
}
