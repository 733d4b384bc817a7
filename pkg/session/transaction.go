package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/storage"
)

// Isolation is one of the four levels spec §4.6 names.
type Isolation int

const (
	ReadUncommitted Isolation = iota
	ReadCommitted              // default
	RepeatableRead
	Serializable
)

func (i Isolation) String() string {
	switch i {
	case ReadUncommitted:
		return "READ UNCOMMITTED"
	case ReadCommitted:
		return "READ COMMITTED"
	case RepeatableRead:
		return "REPEATABLE READ"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "UNKNOWN"
	}
}

// TxState is a transaction's position in the commit state machine (spec
// §3: "Active -> Committing -> Committed | Aborted").
type TxState int

const (
	TxActive TxState = iota
	TxCommitting
	TxCommitted
	TxAborted
)

// Transaction is the session-level half of a database transaction: it
// owns a *storage.Transaction for the actual KV staging and adds the
// isolation level, state machine, and (for explicit transactions) the
// owning session and begin-time commit-version snapshot that
// SERIALIZABLE's write-set validation compares against.
type Transaction struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Isolation Isolation
	Implicit  bool

	Storage *storage.Transaction

	state     TxState
	beginVer  uint64
	startedAt time.Time
}

func newTransaction(sessionID uuid.UUID, isolation Isolation, implicit bool, storageTxn *storage.Transaction, beginVer uint64) *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		SessionID: sessionID,
		Isolation: isolation,
		Implicit:  implicit,
		Storage:   storageTxn,
		state:     TxActive,
		beginVer:  beginVer,
		startedAt: time.Now(),
	}
}

// State returns the transaction's current position in the commit state
// machine.
func (t *Transaction) State() TxState { return t.state }

// commitRecord is what the Manager's history keeps about a committed
// transaction, for later SERIALIZABLE validation by transactions that
// began before it committed.
type commitRecord struct {
	version  uint64
	writeSet map[string]bool
}

func writeSetOf(txn *storage.Transaction) map[string]bool {
	keys := txn.WriteSet()
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func overlaps(a, b map[string]bool) (string, bool) {
	for k := range a {
		if b[k] {
			return k, true
		}
	}
	return "", false
}

var errAborted = gqlerr.Internal(nil, "transaction is not active")

func (t *Transaction) requireActive() error {
	if t.state != TxActive {
		return errAborted
	}
	return nil
}

// expired reports whether an explicit transaction has sat Active longer
// than timeout and should be force-rolled-back (spec §4.6's
// TransactionTimeout, enforced by Manager.SweepIdle).
func (t *Transaction) expired(timeout time.Duration) bool {
	return t.state == TxActive && time.Since(t.startedAt) > timeout
}
