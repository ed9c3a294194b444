// Package query is an in-process asynchronous query cache.
//
// A Client keeps one entry per Key. Registering a fetch function for a key
// runs it once (concurrent first registrations are coalesced); the result is
// cached forever until Invalidate re-runs the function. When the function
// returns a Pending value the entry reports IsLoading until the value
// settles, and then every Listener subscribed to the key is notified.
//
// A concrete (non-pending) result is stored silently: listeners are only
// woken by settlements. Callers that write synchronous values through a
// fetch function must notify their own consumers.
package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"

	"github.com/IvanBrykalov/sharedstate/internal/singleflight"
	"github.com/IvanBrykalov/sharedstate/logging"
)

// ErrClosed is reported by a Client after Close.
var ErrClosed = errors.New("query: client closed")

// FetchFunc produces the current value for a key. It may return a Pending.
type FetchFunc func() (any, error)

// Entry is a point-in-time view of a key's cached state.
type Entry struct {
	// Data is the last settled value; it survives refetches.
	Data    any
	HasData bool
	// IsLoading is true while the latest fetch has not settled.
	IsLoading bool
	// Err is the error of the latest settled fetch, if it failed.
	Err       error
	UpdatedAt time.Time
}

// Client is the query cache. All methods are safe for concurrent use.
type Client struct {
	opt   Options
	log   logging.Logger
	clock clockz.Clock

	mu      sync.Mutex
	entries map[string]*entry

	// coalesces the first fetch of a key across concurrent Register calls.
	sf singleflight.Group[string, struct{}]

	closed   atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type entry struct {
	key       Key
	fetch     FetchFunc
	fetched   bool
	data      any
	hasData   bool
	loading   bool
	err       error
	gen       uint64 // bumped per fetch; settlements of older gens are dropped
	updatedAt time.Time
	listeners map[*Listener]struct{}
}

// New constructs a Client with the provided Options.
func New(opt Options) *Client {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Clock == nil {
		opt.Clock = clockz.RealClock
	}
	return &Client{
		opt:     opt,
		log:     logging.OrNop(opt.Logger),
		clock:   opt.Clock,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
}

// Register records fn as the fetch function for k and returns the entry.
// The first registration of a key runs fn; later registrations only replace
// the stored function and return the cached state.
func (c *Client) Register(ctx context.Context, k Key, fn FetchFunc) Entry {
	if c.closed.Load() {
		return Entry{Err: ErrClosed}
	}
	id := k.String()

	c.mu.Lock()
	e := c.entryLocked(k, id)
	e.fetch = fn
	if e.fetched {
		snap := e.snapshot()
		c.mu.Unlock()
		return snap
	}
	c.mu.Unlock()

	_, _ = c.sf.Do(ctx, id, func() (struct{}, error) {
		// double-check after flight join
		c.mu.Lock()
		fetched := e.fetched
		c.mu.Unlock()
		if !fetched {
			c.run(ctx, e)
		}
		return struct{}{}, nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return e.snapshot()
}

// Invalidate re-runs the registered fetch function for k. Keys that were
// never registered are ignored.
func (c *Client) Invalidate(ctx context.Context, k Key) {
	if c.closed.Load() {
		return
	}
	c.mu.Lock()
	e, ok := c.entries[k.String()]
	registered := ok && e.fetch != nil
	c.mu.Unlock()
	if !registered {
		return
	}
	c.run(ctx, e)
}

// ReadCached returns the last settled value for k.
func (c *Client) ReadCached(k Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k.String()]
	if !ok || !e.hasData {
		return nil, false
	}
	return e.data, true
}

// Entry returns the current state of k without registering anything.
func (c *Client) Entry(k Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k.String()]
	if !ok || !e.fetched {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// Subscribe returns a Listener woken whenever a pending value for k settles.
// Subscribing before the key is registered is allowed.
func (c *Client) Subscribe(k Key) *Listener {
	l := &Listener{c: make(chan struct{}, 1), client: c, id: k.String()}
	c.mu.Lock()
	e := c.entryLocked(k, l.id)
	e.listeners[l] = struct{}{}
	c.mu.Unlock()
	return l
}

// Len returns the number of known keys.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops settlement tracking. Pending values that settle afterwards
// are not applied. Close is idempotent.
func (c *Client) Close() error {
	c.closed.Store(true)
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
	return nil
}

// ---- internals ----

// entryLocked returns the entry for id, creating an unfetched one. c.mu held.
func (c *Client) entryLocked(k Key, id string) *entry {
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: k, listeners: make(map[*Listener]struct{})}
		c.entries[id] = e
	}
	return e
}

// run invokes the fetch function outside the lock and applies its result.
// The generation is taken before the call so the latest invalidation wins
// even if fetches land out of order.
func (c *Client) run(ctx context.Context, e *entry) {
	c.mu.Lock()
	e.gen++
	gen := e.gen
	fn := e.fetch
	c.mu.Unlock()

	c.opt.Metrics.Fetch()
	started := c.clock.Now()
	v, err := fn()

	c.mu.Lock()
	if gen != e.gen {
		c.mu.Unlock()
		return
	}
	e.fetched = true
	e.updatedAt = c.clock.Now()
	switch p, pending := AsPending(v); {
	case err != nil:
		e.err = err
		e.loading = false
	case pending:
		e.err = nil
		e.loading = true
		c.wg.Add(1)
		go c.await(context.WithoutCancel(ctx), e, gen, p, started)
	default:
		e.err = nil
		e.data = v
		e.hasData = true
		e.loading = false
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Debug("fetch failed", logging.Fields{"key": e.key.String(), "err": err})
	}
}

// await waits for p to settle and publishes the outcome if gen is still
// the entry's current fetch.
func (c *Client) await(ctx context.Context, e *entry, gen uint64, p Pending, started time.Time) {
	defer c.wg.Done()
	select {
	case <-p.Done():
	case <-c.stop:
		return
	}
	v, err := p.Outcome()
	id := e.key.String()

	c.mu.Lock()
	if gen != e.gen {
		c.mu.Unlock()
		c.opt.Metrics.Discard()
		c.log.Debug("superseded settlement discarded", logging.Fields{"key": id, "gen": gen})
		capitan.Emit(ctx, SettleDiscarded, KeyKey.Field(id))
		return
	}
	if err != nil {
		e.err = err
	} else {
		e.err = nil
		e.data = v
		e.hasData = true
	}
	e.loading = false
	e.updatedAt = c.clock.Now()
	listeners := make([]*Listener, 0, len(e.listeners))
	for l := range e.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	took := c.clock.Since(started)
	c.opt.Metrics.Settle(err != nil, took)
	if err != nil {
		c.log.Debug("pending value rejected", logging.Fields{"key": id, "err": err})
		capitan.Emit(ctx, Settled, KeyKey.Field(id), KeyTook.Field(took), KeyError.Field(err.Error()))
	} else {
		capitan.Emit(ctx, Settled, KeyKey.Field(id), KeyTook.Field(took))
	}
	for _, l := range listeners {
		l.notify()
	}
}

func (e *entry) snapshot() Entry {
	return Entry{
		Data:      e.data,
		HasData:   e.hasData,
		IsLoading: e.loading || !e.fetched,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
	}
}

// Listener receives settlement notifications for one key.
// Notifications coalesce: C holds at most one pending wake-up.
type Listener struct {
	c      chan struct{}
	client *Client
	id     string
	once   sync.Once
}

// C returns the notification channel.
func (l *Listener) C() <-chan struct{} { return l.c }

// Close unsubscribes the listener. It is safe to call more than once.
func (l *Listener) Close() {
	l.once.Do(func() {
		l.client.mu.Lock()
		if e, ok := l.client.entries[l.id]; ok {
			delete(e.listeners, l)
		}
		l.client.mu.Unlock()
	})
}

func (l *Listener) notify() {
	select {
	case l.c <- struct{}{}:
	default:
	}
}
