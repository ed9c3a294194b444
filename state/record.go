package state

import (
	"sync"
	"time"
)

// record is the shadow record of one key: the authoritative value,
// independent of the query cache and of any consumer.
type record struct {
	key     Key
	created time.Time

	// ---- guarded by mu ----
	mu      sync.Mutex
	value   slot
	loading bool  // last projected loading state; refreshed on every read
	err     error // captured default error; permanent once set
}

// fetch is the query fetch function for the record's key. It observes the
// record as it is at call time, so an invalidation after a write sees the
// new value.
func (r *record) fetch() (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.value.pending() {
		return r.value.p, nil
	}
	return r.value.v, nil
}

// swap runs steps prev → next → store as one critical section.
func (r *record) swap(c change, prevResolved func(prev slot) any) (prev, next slot, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev = r.value
	next, err = c.next(func() any { return prevResolved(prev) })
	if err != nil {
		return prev, prev, err
	}
	r.value = next
	return prev, next, nil
}

// consumer is one call site watching a key; woken by bypass writes.
type consumer struct {
	c chan struct{}
}

func newConsumer() *consumer { return &consumer{c: make(chan struct{}, 1)} }

func (c *consumer) notify() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}
