package txn

import (
	"sync"

	"github.com/corvusdb/corvus/internal/dberrors"
)

// Transaction coordinates per-collection Contexts under a single commit
// boundary. Operations recorded via Record are buffered in the owning
// collection's Context; Commit runs every buffered command in the order
// it was recorded, building an undo stack as it goes, and unwinds that
// stack if any command fails partway through.
type Transaction struct {
	mu       sync.Mutex
	id       string
	state    State
	registry *LockRegistry
	contexts map[string]*Context
	order    []string  // collection names in first-touched order
	held     []func() // lock releasers acquired so far, released on Commit/Rollback
}

// New creates an active transaction identified by id.
func New(id string, registry *LockRegistry) *Transaction {
	return &Transaction{
		id:       id,
		state:    Active,
		registry: registry,
		contexts: make(map[string]*Context),
	}
}

func (t *Transaction) ID() string { return t.id }

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// contextFor returns this transaction's Context for collectionName,
// acquiring its registry lock the first time the transaction touches it.
func (t *Transaction) contextFor(collectionName string) *Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, ok := t.contexts[collectionName]
	if !ok {
		ctx = NewContext(collectionName)
		t.contexts[collectionName] = ctx
		t.order = append(t.order, collectionName)
		if t.registry != nil {
			t.held = append(t.held, t.registry.Acquire(collectionName))
		}
	}
	return ctx
}

// Record appends a journal entry for collectionName. It fails with
// InvalidOperation once the transaction is no longer Active.
func (t *Transaction) Record(collectionName string, changeType ChangeType, commit, rollback Command) error {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()
	if state != Active {
		return dberrors.New(dberrors.InvalidOperation, "Transaction.Record",
			"transaction "+t.id+" is "+state.String()+", not Active")
	}
	return t.contextFor(collectionName).AddEntry(JournalEntry{
		ChangeType: changeType,
		Commit:     commit,
		Rollback:   rollback,
	})
}

// Commit runs every recorded command across every touched collection, in
// the order collections were first touched and entries were recorded
// within each. If a command fails, every prior command's inverse is run
// in reverse order, the transaction moves to Failed then Aborted, and the
// triggering error is returned wrapped. On full success the transaction
// moves to Committed.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Active {
		return dberrors.New(dberrors.InvalidOperation, "Transaction.Commit",
			"transaction "+t.id+" is "+t.state.String()+", not Active")
	}
	t.state = PartiallyCommitted

	var undo []UndoEntry
	for _, name := range t.order {
		ctx := t.contexts[name]
		for _, entry := range ctx.Drain() {
			if entry.Commit != nil {
				if err := entry.Commit(); err != nil {
					t.unwindLocked(undo)
					t.state = Failed
					t.closeAllLocked()
					t.state = Aborted
					t.releaseLocked()
					return dberrors.Wrap(dberrors.InvalidOperation, "Transaction.Commit",
						"commit failed on collection "+name+", transaction rolled back", err)
				}
			}
			if entry.Rollback != nil {
				undo = append(undo, UndoEntry{CollectionName: name, Rollback: entry.Rollback})
			}
		}
	}

	t.state = Committed
	t.closeAllLocked()
	t.releaseLocked()
	return nil
}

// Rollback discards any uncommitted entries and transitions to Aborted.
// It runs no inverse commands; only Commit's own failure path unwinds
// commands it has already applied.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Active && t.state != PartiallyCommitted {
		return dberrors.New(dberrors.InvalidOperation, "Transaction.Rollback",
			"transaction "+t.id+" is "+t.state.String()+", cannot roll back")
	}
	t.state = Aborted
	t.closeAllLocked()
	t.releaseLocked()
	return nil
}

func (t *Transaction) unwindLocked(undo []UndoEntry) {
	for i := len(undo) - 1; i >= 0; i-- {
		_ = undo[i].Rollback()
	}
}

func (t *Transaction) closeAllLocked() {
	for _, ctx := range t.contexts {
		ctx.Close()
	}
}

func (t *Transaction) releaseLocked() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i]()
	}
	t.held = nil
}
