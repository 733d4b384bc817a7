package storage

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/graphlite/pkg/gqlerr"
)

// Engine is the storage manager's handle onto the underlying Badger
// keyspace. All five graph-scoped trees and the reserved catalog tree
// (spec §4.1, §4.2) live in the one Badger database, which is what lets a
// single badger.Txn batch commit a DDL drop (graph data + catalog record)
// atomically (spec §9's index-maintenance-atomicity open question).
type Engine struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// Options configures Engine construction, mirroring the teacher's
// BadgerOptions (pkg/storage/badger.go).
type Options struct {
	// DataDir is the directory for Badger's data files. Required unless
	// InMemory is set.
	DataDir string
	// InMemory runs Badger in memory-only mode; useful for tests.
	InMemory bool
	// SyncWrites forces fsync after each write batch.
	SyncWrites bool
	// Logger receives Badger's internal log lines; nil disables them.
	Logger badger.Logger
}

// Open creates or opens the Badger-backed engine at opts.DataDir.
func Open(opts Options) (*Engine, error) {
	bopts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		bopts = bopts.WithInMemory(true)
	}
	bopts = bopts.WithSyncWrites(opts.SyncWrites)
	if opts.Logger != nil {
		bopts = bopts.WithLogger(opts.Logger)
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, gqlerr.StorageUnavailable(fmt.Errorf("open badger at %s: %w", opts.DataDir, err))
	}
	return &Engine{db: db}, nil
}

// Close releases the underlying Badger handle. Safe to call once; a
// second call returns an error rather than panicking.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return gqlerr.New(gqlerr.KindInternal, "storage already closed")
	}
	e.closed = true
	if err := e.db.Close(); err != nil {
		return gqlerr.StorageUnavailable(err)
	}
	return nil
}

// view runs fn against a read-only Badger transaction, translating Badger
// errors into the gqlerr taxonomy.
func (e *Engine) view(fn func(txn *badger.Txn) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return gqlerr.New(gqlerr.KindInternal, "storage closed")
	}
	if err := e.db.View(fn); err != nil {
		return translateBadgerErr(err)
	}
	return nil
}

// update runs fn against a read-write Badger transaction and commits it
// atomically; this is the single point where a Transaction's staged batch
// becomes durable (spec §4.1: "writes are staged in a write batch; on
// commit the batch is applied atomically").
func (e *Engine) update(fn func(txn *badger.Txn) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return gqlerr.New(gqlerr.KindInternal, "storage closed")
	}
	if err := e.db.Update(fn); err != nil {
		return translateBadgerErr(err)
	}
	return nil
}

func translateBadgerErr(err error) error {
	if err == nil {
		return nil
	}
	if err == badger.ErrKeyNotFound {
		return gqlerr.New(gqlerr.KindNotFound, "key not found")
	}
	if err == badger.ErrConflict {
		return gqlerr.Conflict("write-write conflict detected by storage engine")
	}
	return gqlerr.StorageUnavailable(err)
}
