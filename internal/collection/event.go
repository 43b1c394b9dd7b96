package collection

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/corvusdb/corvus/internal/clog"
	"github.com/corvusdb/corvus/internal/value"
)

// EventType distinguishes the three write operations a collection
// publishes.
type EventType int

const (
	EventInsert EventType = iota
	EventUpdate
	EventRemove
)

func (t EventType) String() string {
	switch t {
	case EventInsert:
		return "Insert"
	case EventUpdate:
		return "Update"
	case EventRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// Event is published to every subscriber after a successful write. A
// single-document operation (Insert/Update/Remove) sets Document; a batch
// operation (InsertMany) fires once per completed operation rather than
// once per document and sets Documents instead.
type Event struct {
	Type           EventType
	CollectionName string
	Document       *value.Document
	Documents      []*value.Document
}

// Listener receives published events. A Listener must not block for long;
// publication fans out to every listener concurrently and waits for all of
// them before the write call returns.
type Listener func(Event)

type eventBus struct {
	mu        sync.RWMutex
	listeners []Listener
	log       *clog.Logger
}

func newEventBus(log *clog.Logger) *eventBus {
	if log == nil {
		log = clog.Nop()
	}
	return &eventBus{log: log}
}

func (b *eventBus) subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// publish fans the event out to every listener concurrently via an
// errgroup so one slow subscriber does not hold up the others, and returns
// once every listener has finished; a listener panic is recovered and
// logged, never propagated.
func (b *eventBus) publish(ev Event) {
	b.mu.RLock()
	listeners := append([]Listener(nil), b.listeners...)
	b.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}

	g, _ := errgroup.WithContext(context.Background())
	for _, l := range listeners {
		l := l
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event listener panicked: %v", r)
				}
			}()
			l(ev)
			return nil
		})
	}
	_ = g.Wait()
}
