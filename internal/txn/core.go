// Package txn implements corvus's L6 transaction layer: per-collection
// journals of forward/inverse commands, a two-phase commit protocol with
// an undo stack, and sessions that group related transactions.
package txn

import (
	"sync"

	"github.com/corvusdb/corvus/internal/dberrors"
)

// State is a transaction's position in its lifecycle (Active →
// PartiallyCommitted → {Committed | Failed → Aborted}, or Active →
// Aborted directly).
type State int

const (
	Active State = iota
	PartiallyCommitted
	Committed
	Failed
	Aborted
	Closed
)

func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case PartiallyCommitted:
		return "PartiallyCommitted"
	case Committed:
		return "Committed"
	case Failed:
		return "Failed"
	case Aborted:
		return "Aborted"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ChangeType identifies what kind of operation a JournalEntry records.
// Clear/CreateIndex/RebuildIndex/DropIndex/DropAllIndexes/DropCollection
// are auto-committed outside any transaction's journal; Insert/Update/
// Remove/SetAttributes are the transactional ones.
type ChangeType int

const (
	ChangeInsert ChangeType = iota
	ChangeUpdate
	ChangeRemove
	ChangeClear
	ChangeCreateIndex
	ChangeRebuildIndex
	ChangeDropIndex
	ChangeDropAllIndexes
	ChangeDropCollection
	ChangeSetAttributes
)

func (c ChangeType) String() string {
	switch c {
	case ChangeInsert:
		return "Insert"
	case ChangeUpdate:
		return "Update"
	case ChangeRemove:
		return "Remove"
	case ChangeClear:
		return "Clear"
	case ChangeCreateIndex:
		return "CreateIndex"
	case ChangeRebuildIndex:
		return "RebuildIndex"
	case ChangeDropIndex:
		return "DropIndex"
	case ChangeDropAllIndexes:
		return "DropAllIndexes"
	case ChangeDropCollection:
		return "DropCollection"
	case ChangeSetAttributes:
		return "SetAttributes"
	default:
		return "Unknown"
	}
}

// Command is a single executable step of a journal entry: the forward
// operation applied at commit time, or the inverse applied to undo it.
type Command func() error

// JournalEntry records one operation performed against a collection
// within a transaction: its forward command (applied during commit) and
// its inverse (pushed onto the undo stack once the forward command
// succeeds, run if a later entry in the same commit fails).
type JournalEntry struct {
	ChangeType ChangeType
	Commit     Command
	Rollback   Command
}

// UndoEntry pairs a rollback Command with the collection it affects, so
// Transaction.Commit's failure path can report which collections were
// unwound.
type UndoEntry struct {
	CollectionName string
	Rollback       Command
}

// Context holds one collection's pending journal within a transaction.
type Context struct {
	mu             sync.Mutex
	collectionName string
	journal        []JournalEntry
	active         bool
}

// NewContext creates an active per-collection transaction context.
func NewContext(collectionName string) *Context {
	return &Context{collectionName: collectionName, active: true}
}

func (c *Context) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// AddEntry appends a journal entry, rejecting the call once the context
// has been closed (spec: terminal transactions reject further ops).
func (c *Context) AddEntry(entry JournalEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return dberrors.New(dberrors.InvalidOperation, "Context.AddEntry",
			"cannot add entry to an inactive transaction context")
	}
	c.journal = append(c.journal, entry)
	return nil
}

func (c *Context) PendingOperations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.journal)
}

// Drain returns and clears the pending journal entries in FIFO order.
func (c *Context) Drain() []JournalEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.journal
	c.journal = nil
	return entries
}

// Close marks the context terminal and discards any undrained journal.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.journal = nil
	c.active = false
}
