// Package ledger holds the in-memory list of transactions and the queries
// the views and statistics run over it.
package ledger

import (
	"errors"
	"fmt"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

// ErrDuplicateID is reported by Validate when two entries share an id.
var ErrDuplicateID = errors.New("duplicate transaction id")

// EventKind tells what happened to a collection.
type EventKind int

const (
	EventAdded EventKind = iota
	EventDeleted
	EventUpdated
)

func (k EventKind) String() string {
	return [...]string{"added", "deleted", "updated"}[k]
}

// Event is delivered to collection subscribers. Field is only meaningful
// for EventUpdated.
type Event struct {
	Kind        EventKind
	Transaction *domain.Transaction
	Field       domain.Field
}

// Collection is an insertion-ordered list of transactions.
//
// An owning collection (New) subscribes to its members and re-emits their
// changes. Query results are derived collections: snapshots sharing the
// same *Transaction values that neither subscribe to nor own them.
//
// A Collection is not safe for concurrent use.
type Collection struct {
	items    []*domain.Transaction
	owning   bool
	unsubs   map[*domain.Transaction]func()
	notifier domain.Notifier[Event]
}

// New returns an owning collection holding txs in order.
func New(txs ...*domain.Transaction) *Collection {
	c := &Collection{
		owning: true,
		unsubs: make(map[*domain.Transaction]func()),
	}
	for _, t := range txs {
		c.items = append(c.items, t)
		c.watch(t)
	}
	return c
}

func derived(items []*domain.Transaction) *Collection {
	return &Collection{items: items}
}

func (c *Collection) watch(t *domain.Transaction) {
	if !c.owning {
		return
	}
	if _, ok := c.unsubs[t]; ok {
		return
	}
	c.unsubs[t] = t.Subscribe(func(ch domain.Change) {
		c.notifier.Notify(Event{Kind: EventUpdated, Transaction: ch.Transaction, Field: ch.Field})
	})
}

// Subscribe registers fn for additions, deletions and member updates.
func (c *Collection) Subscribe(fn func(Event)) (unsubscribe func()) {
	return c.notifier.Subscribe(fn)
}

// Add appends t. Ids are not checked here; use NewID to allocate them.
func (c *Collection) Add(t *domain.Transaction) {
	c.items = append(c.items, t)
	c.watch(t)
	c.notifier.Notify(Event{Kind: EventAdded, Transaction: t})
}

// Delete removes t and detaches every subscriber from it. It reports
// false, without notifying, when t is not a member.
func (c *Collection) Delete(t *domain.Transaction) bool {
	idx := -1
	for i, x := range c.items {
		if x == t {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	if c.owning {
		if unsub, ok := c.unsubs[t]; ok {
			unsub()
			delete(c.unsubs, t)
		}
		t.ClearSubscribers()
	}
	c.items = append(c.items[:idx:idx], c.items[idx+1:]...)
	c.notifier.Notify(Event{Kind: EventDeleted, Transaction: t})
	return true
}

// Get returns the member with the given id, or nil.
func (c *Collection) Get(id int64) *domain.Transaction {
	for _, t := range c.items {
		if t.ID() == id {
			return t
		}
	}
	return nil
}

// NewID returns one more than the highest id in the collection, or 0 when
// it is empty.
func (c *Collection) NewID() int64 {
	var next int64
	for _, t := range c.items {
		if t.ID() >= next {
			next = t.ID() + 1
		}
	}
	return next
}

// Duplicate returns a copy of t under a freshly allocated id. The copy is
// not added.
func (c *Collection) Duplicate(t *domain.Transaction) *domain.Transaction {
	return t.Copy(c.NewID())
}

// Len returns the number of members.
func (c *Collection) Len() int {
	return len(c.items)
}

// At returns the i-th member in collection order.
func (c *Collection) At(i int) *domain.Transaction {
	return c.items[i]
}

// All returns the members in collection order. The slice is a copy.
func (c *Collection) All() []*domain.Transaction {
	out := make([]*domain.Transaction, len(c.items))
	copy(out, c.items)
	return out
}

// Validate reports duplicate ids and members lacking required fields.
func (c *Collection) Validate() error {
	var errs []error
	seen := make(map[int64]bool, len(c.items))
	for _, t := range c.items {
		if seen[t.ID()] {
			errs = append(errs, fmt.Errorf("transaction %d: %w", t.ID(), ErrDuplicateID))
		}
		seen[t.ID()] = true

		if missing := t.MissingFields(); len(missing) > 0 {
			errs = append(errs, fmt.Errorf("transaction %d: missing required fields %v", t.ID(), missing))
		}
	}
	return errors.Join(errs...)
}
