package domain

// MaxNotifyDepth bounds how deeply deliveries may nest when a handler
// mutates the object that is notifying it. Deliveries past the bound are
// dropped and counted.
const MaxNotifyDepth = 32

// Notifier delivers events synchronously to its subscribers, in
// subscription order. It is not safe for concurrent use; callers serialize
// mutations the same way they serialize the data it reports on.
type Notifier[E any] struct {
	nextID   int
	handlers []subscription[E]
	depth    int
	dropped  int
}

type subscription[E any] struct {
	id int
	fn func(E)
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (n *Notifier[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	n.nextID++
	id := n.nextID
	n.handlers = append(n.handlers, subscription[E]{id: id, fn: fn})
	return func() { n.remove(id) }
}

func (n *Notifier[E]) remove(id int) {
	for i, s := range n.handlers {
		if s.id == id {
			n.handlers = append(n.handlers[:i:i], n.handlers[i+1:]...)
			return
		}
	}
}

// Notify calls every current subscriber with e before returning.
func (n *Notifier[E]) Notify(e E) {
	if len(n.handlers) == 0 {
		return
	}
	if n.depth >= MaxNotifyDepth {
		n.dropped++
		return
	}
	n.depth++
	defer func() { n.depth-- }()

	// Handlers may subscribe or unsubscribe while we iterate.
	snapshot := make([]subscription[E], len(n.handlers))
	copy(snapshot, n.handlers)
	for _, s := range snapshot {
		s.fn(e)
	}
}

// Clear removes every subscriber.
func (n *Notifier[E]) Clear() {
	n.handlers = nil
}

// Len returns the number of subscribers.
func (n *Notifier[E]) Len() int {
	return len(n.handlers)
}

// Dropped returns how many deliveries were skipped because of MaxNotifyDepth.
func (n *Notifier[E]) Dropped() int {
	return n.dropped
}
