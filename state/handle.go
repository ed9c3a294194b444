package state

import (
	"context"
	"sync"

	"github.com/IvanBrykalov/sharedstate/query"
)

// Handle is one consumer of a key: a call site that reads the key and wants
// to hear about changes. It has two notification channels, which are never
// merged:
//
//   - Written fires synchronously inside a write of a concrete value.
//   - Settled fires when a pending value of the key settles in the query cache.
//
// Both channels coalesce: each holds at most one wake-up. After a wake-up,
// call Get for the current value.
type Handle[T any] struct {
	s   *Store
	k   Key
	def Default[T]

	id string
	sh *shard
	c  *consumer
	l  *query.Listener

	once sync.Once
}

// Watch registers a consumer of k and performs its first read, creating the
// record from def if needed. Close the handle when done.
func Watch[T any](ctx context.Context, s *Store, k Key, def Default[T]) (*Handle[T], error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	id := shadowID(k)
	h := &Handle[T]{
		s:   s,
		k:   k,
		def: def,
		id:  id,
		sh:  s.shardFor(id),
		c:   newConsumer(),
		l:   s.q.Subscribe(k),
	}
	h.sh.attach(id, h.c)

	if _, err := s.read(ctx, k, def.eval); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// Key returns the watched key.
func (h *Handle[T]) Key() Key { return h.k }

// Get reads the current value; see Use.
func (h *Handle[T]) Get(ctx context.Context) (T, Status) {
	return get(ctx, h.s, h.k, h.def)
}

// Set writes the watched key; see Set.
func (h *Handle[T]) Set(ctx context.Context, u Update[T]) error {
	return Set(ctx, h.s, h.k, u)
}

// Written is signalled by writes of concrete values.
func (h *Handle[T]) Written() <-chan struct{} { return h.c.c }

// Settled is signalled when a pending value settles.
func (h *Handle[T]) Settled() <-chan struct{} { return h.l.C() }

// Close detaches the consumer. It is safe to call more than once.
func (h *Handle[T]) Close() {
	h.once.Do(func() {
		h.sh.detach(h.id, h.c)
		h.l.Close()
	})
}
