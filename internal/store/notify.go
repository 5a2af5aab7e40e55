package store

import "sync"

// notifier fans commit notifications out to table subscribers
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	table string
	fn    func()
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]subscription)}
}

func (n *notifier) subscribe(table string, fn func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subs[id] = subscription{table: table, fn: fn}

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *notifier) notify(touched map[string]struct{}) {
	n.mu.Lock()
	var fns []func()
	for _, sub := range n.subs {
		if _, ok := touched[sub.table]; ok {
			fns = append(fns, sub.fn)
		}
	}
	n.mu.Unlock()

	// Delivery is deferred so a commit made during a subscriber-driven
	// operation notifies after that operation's step completes, not inside
	// it. Subscribers carry no payload and re-query, so batches coalesce.
	if len(fns) > 0 {
		go func() {
			for _, fn := range fns {
				fn()
			}
		}()
	}
}
