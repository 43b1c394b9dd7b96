package txn

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/corvusdb/corvus/internal/dberrors"
)

// Session groups the transactions a single caller opens against a
// database, tracking which are still active so Close can roll back
// anything left uncommitted.
type Session struct {
	id       string
	active   atomic.Bool
	registry *LockRegistry

	mu           sync.Mutex
	transactions map[string]*Transaction
}

// NewSession creates an active session with a fresh uuid identifier.
func NewSession(registry *LockRegistry) *Session {
	s := &Session{
		id:           uuid.New().String(),
		registry:     registry,
		transactions: make(map[string]*Transaction),
	}
	s.active.Store(true)
	return s
}

func (s *Session) ID() string      { return s.id }
func (s *Session) IsActive() bool  { return s.active.Load() }

// BeginTransaction creates a new Active transaction tracked by this
// session, failing with InvalidOperation if the session is closed.
func (s *Session) BeginTransaction() (*Transaction, error) {
	if !s.active.Load() {
		return nil, dberrors.New(dberrors.InvalidOperation, "Session.BeginTransaction",
			"session "+s.id+" is closed")
	}
	t := New(uuid.New().String(), s.registry)

	s.mu.Lock()
	s.transactions[t.ID()] = t
	s.mu.Unlock()
	return t, nil
}

// ActiveTransactions lists the ids of the transactions this session tracks
// that are still in the Active state; committed or aborted ones stay
// tracked until Close or Forget but are not listed.
func (s *Session) ActiveTransactions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.transactions))
	for id, t := range s.transactions {
		if t.State() == Active {
			ids = append(ids, id)
		}
	}
	return ids
}

// Forget drops a transaction from the session's registry once the
// caller has committed or rolled it back directly.
func (s *Session) Forget(transactionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, transactionID)
}

// Close rolls back every transaction still Active or PartiallyCommitted
// and marks the session inactive. Idempotent.
func (s *Session) Close() error {
	if !s.active.CompareAndSwap(true, false) {
		return nil
	}
	s.mu.Lock()
	txns := make([]*Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		txns = append(txns, t)
	}
	s.transactions = make(map[string]*Transaction)
	s.mu.Unlock()

	for _, t := range txns {
		if st := t.State(); st == Active || st == PartiallyCommitted {
			_ = t.Rollback()
		}
	}
	return nil
}
