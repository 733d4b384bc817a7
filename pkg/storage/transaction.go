package storage

import (
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/graphlite/pkg/gqlerr"
)

// Transaction stages a batch of KV mutations against an Engine. It is the
// storage-layer half of spec §3's transaction lifecycle: the session/txn
// manager (pkg/session) opens one Transaction per database transaction,
// routes every mutation and read through it, and calls Commit to apply the
// whole batch atomically or Rollback to discard it.
//
// A Transaction also tracks its read-set and write-set (the keys it has
// touched), which pkg/session uses to implement SERIALIZABLE's commit-time
// write-set validation (SPEC_FULL.md §4.6).
//
// All mutating methods serialize through mu, the "single writer-side latch
// on a transaction's mutation buffer" of spec §5 — per-transaction, never
// global.
type Transaction struct {
	engine *Engine
	mu     sync.Mutex

	puts    map[string][]byte
	deletes map[string]bool

	readSet  map[string]bool
	writeSet map[string]bool

	done bool // true once Commit or Rollback has run
}

// Begin opens a new staged transaction against e.
func (e *Engine) Begin() *Transaction {
	return &Transaction{
		engine:   e,
		puts:     make(map[string][]byte),
		deletes:  make(map[string]bool),
		readSet:  make(map[string]bool),
		writeSet: make(map[string]bool),
	}
}

func (t *Transaction) recordRead(key []byte) {
	t.readSet[string(key)] = true
}

func (t *Transaction) recordWrite(key []byte) {
	t.writeSet[string(key)] = true
}

// ReadSet returns the keys this transaction has read, as opaque byte
// strings, for the session manager's conflict validation.
func (t *Transaction) ReadSet() []string { return setKeys(t.readSet) }

// WriteSet returns the keys this transaction has written or deleted.
func (t *Transaction) WriteSet() []string { return setKeys(t.writeSet) }

func setKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// put stages a write, invisible to other transactions until Commit.
func (t *Transaction) put(key, value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := string(key)
	delete(t.deletes, k)
	t.puts[k] = value
	t.recordWrite(key)
}

// delete stages a deletion.
func (t *Transaction) delete(key []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := string(key)
	delete(t.puts, k)
	t.deletes[k] = true
	t.recordWrite(key)
}

// get reads key, preferring this transaction's own uncommitted writes over
// committed storage (a transaction always sees its own writes, spec §5
// "Under SERIALIZABLE, a transaction's reads reflect ... its own writes").
func (t *Transaction) get(key []byte) (value []byte, found bool, err error) {
	t.mu.Lock()
	k := string(key)
	if t.deletes[k] {
		t.mu.Unlock()
		t.recordRead(key)
		return nil, false, nil
	}
	if v, ok := t.puts[k]; ok {
		t.mu.Unlock()
		t.recordRead(key)
		return v, true, nil
	}
	t.mu.Unlock()

	var out []byte
	rerr := t.engine.view(func(txn *badger.Txn) error {
		item, e := txn.Get(key)
		if e == badger.ErrKeyNotFound {
			return nil
		}
		if e != nil {
			return e
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if rerr != nil {
		return nil, false, rerr
	}
	t.recordRead(key)
	return out, out != nil, nil
}

// scanPrefix visits every live key (committed, minus staged deletes, plus
// staged puts) under prefix in ascending order, merging the transaction's
// overlay with committed storage.
func (t *Transaction) scanPrefix(prefix []byte, visit func(key, value []byte) error) error {
	t.mu.Lock()
	overlayPuts := make(map[string][]byte, len(t.puts))
	overlayDeletes := make(map[string]bool, len(t.deletes))
	for k, v := range t.puts {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			overlayPuts[k] = v
		}
	}
	for k := range t.deletes {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			overlayDeletes[k] = true
		}
	}
	t.mu.Unlock()

	seen := make(map[string]bool, len(overlayPuts))
	err := t.engine.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)
			ks := string(key)
			if overlayDeletes[ks] {
				continue
			}
			if ov, ok := overlayPuts[ks]; ok {
				seen[ks] = true
				if err := visit(key, ov); err != nil {
					return err
				}
				continue
			}
			var val []byte
			if err := item.Value(func(v []byte) error {
				val = append([]byte(nil), v...)
				return nil
			}); err != nil {
				return err
			}
			if err := visit(key, val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translateBadgerErr(err)
	}

	// Emit newly staged keys under prefix that don't exist in committed
	// storage yet.
	extra := make([]string, 0, len(overlayPuts))
	for k := range overlayPuts {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		if err := visit([]byte(k), overlayPuts[k]); err != nil {
			return err
		}
	}
	t.recordRead(prefix)
	return nil
}

// RawPut stages a write under an arbitrary key, for use by the catalog
// package, which lives outside any (schema, graph) prefix and so does not
// go through keys.go's NodeKey/EdgeKey helpers.
func (t *Transaction) RawPut(key, value []byte) { t.put(key, value) }

// RawDelete stages a deletion under an arbitrary key.
func (t *Transaction) RawDelete(key []byte) { t.delete(key) }

// RawGet reads an arbitrary key, preferring this transaction's own
// uncommitted writes.
func (t *Transaction) RawGet(key []byte) (value []byte, found bool, err error) {
	return t.get(key)
}

// RawScanPrefix visits every live key under prefix, merging this
// transaction's staged overlay with committed storage.
func (t *Transaction) RawScanPrefix(prefix []byte, visit func(key, value []byte) error) error {
	return t.scanPrefix(prefix, visit)
}

// Commit applies every staged put/delete atomically via a single Badger
// write batch (spec §4.1), then marks the transaction done. Callers must
// not reuse a committed Transaction.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return gqlerr.New(gqlerr.KindInternal, "transaction already finished")
	}

	err := t.engine.update(func(txn *badger.Txn) error {
		for k, v := range t.puts {
			if err := txn.Set([]byte(k), v); err != nil {
				return err
			}
		}
		for k := range t.deletes {
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	t.done = true
	return err
}

// Rollback discards every staged mutation. Always succeeds (spec §4.6).
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.puts = nil
	t.deletes = nil
	t.done = true
	return nil
}
