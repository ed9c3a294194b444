package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// pending is a minimal Pending used to drive settlements by hand.
type pending struct {
	done chan struct{}
	once sync.Once
	v    any
	err  error
}

func newPending() *pending { return &pending{done: make(chan struct{})} }

func (p *pending) Done() <-chan struct{} { return p.done }
func (p *pending) Outcome() (any, error) { return p.v, p.err }
func (p *pending) settle(v any, err error) {
	p.once.Do(func() {
		p.v, p.err = v, err
		close(p.done)
	})
}

func waitNotified(t *testing.T, l *Listener) {
	t.Helper()
	select {
	case <-l.C():
	case <-time.After(2 * time.Second):
		t.Fatal("listener was not notified")
	}
}

func assertQuiet(t *testing.T, l *Listener) {
	t.Helper()
	select {
	case <-l.C():
		t.Fatal("unexpected notification")
	case <-time.After(20 * time.Millisecond):
	}
}

func newClient(t *testing.T) *Client {
	t.Helper()
	c := New(Options{})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_RegisterConcrete(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	e := c.Register(context.Background(), KeyOf("count"), func() (any, error) { return 1, nil })
	if e.IsLoading || !e.HasData || e.Data != 1 {
		t.Fatalf("unexpected entry %+v", e)
	}
	if v, ok := c.ReadCached(KeyOf("count")); !ok || v != 1 {
		t.Fatalf("ReadCached = %v, %v", v, ok)
	}
}

// A pending result keeps the entry loading until it settles, then wakes listeners.
func TestClient_PendingSettlesAndNotifies(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	k := KeyOf("user", 1)
	l := c.Subscribe(k)
	t.Cleanup(l.Close)

	p := newPending()
	e := c.Register(context.Background(), k, func() (any, error) { return p, nil })
	if !e.IsLoading || e.HasData {
		t.Fatalf("want loading entry, got %+v", e)
	}

	p.settle("ada", nil)
	waitNotified(t, l)

	e, ok := c.Entry(k)
	if !ok || e.IsLoading || e.Data != "ada" {
		t.Fatalf("want settled entry, got %+v ok=%v", e, ok)
	}
}

func TestClient_PendingRejection(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	k := KeyOf("fail")
	l := c.Subscribe(k)
	t.Cleanup(l.Close)

	boom := errors.New("boom")
	p := newPending()
	c.Register(context.Background(), k, func() (any, error) { return p, nil })
	p.settle(nil, boom)
	waitNotified(t, l)

	e, _ := c.Entry(k)
	if !errors.Is(e.Err, boom) || e.IsLoading {
		t.Fatalf("want rejected entry, got %+v", e)
	}
}

// Fetch errors are reported through the entry unchanged.
func TestClient_FetchError(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	boom := errors.New("init failed")
	e := c.Register(context.Background(), KeyOf("x"), func() (any, error) { return nil, boom })
	if e.Err != boom {
		t.Fatalf("want %v, got %v", boom, e.Err)
	}
}

// Invalidating with a concrete result updates data without notifying.
func TestClient_InvalidateConcreteIsSilent(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	k := KeyOf("count")
	var v atomic.Int64
	v.Store(1)
	c.Register(context.Background(), k, func() (any, error) { return v.Load(), nil })

	l := c.Subscribe(k)
	t.Cleanup(l.Close)

	v.Store(2)
	c.Invalidate(context.Background(), k)
	if got, _ := c.ReadCached(k); got != int64(2) {
		t.Fatalf("ReadCached = %v, want 2", got)
	}
	assertQuiet(t, l)
}

// A settlement of a superseded fetch is dropped.
func TestClient_StaleSettlementDiscarded(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	k := KeyOf("race")
	l := c.Subscribe(k)
	t.Cleanup(l.Close)

	first, second := newPending(), newPending()
	var cur atomic.Pointer[pending]
	cur.Store(first)
	c.Register(context.Background(), k, func() (any, error) { return cur.Load(), nil })

	cur.Store(second)
	c.Invalidate(context.Background(), k)

	first.settle("old", nil)
	assertQuiet(t, l)
	if _, ok := c.ReadCached(k); ok {
		t.Fatal("stale settlement must not populate data")
	}

	second.settle("new", nil)
	waitNotified(t, l)
	if got, _ := c.ReadCached(k); got != "new" {
		t.Fatalf("ReadCached = %v, want new", got)
	}
}

// Invalidate on a key nobody registered does nothing.
func TestClient_InvalidateUnknown(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	c.Invalidate(context.Background(), KeyOf("ghost"))
	if _, ok := c.Entry(KeyOf("ghost")); ok {
		t.Fatal("unknown key must stay unknown")
	}
}

// Concurrent first registrations run the fetch function once.
func TestClient_Register_Coalesces(t *testing.T) {
	var calls atomic.Int64

	c := newClient(t)
	k := KeyOf("shared")
	fn := func() (any, error) {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return "v", nil
	}

	const N = 64
	var g errgroup.Group
	for i := 0; i < N; i++ {
		g.Go(func() error {
			e := c.Register(context.Background(), k, fn)
			if e.Data != "v" {
				return errors.New("missing data")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch must run exactly once, got %d", got)
	}
}

func TestClient_Closed(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	_ = c.Close()
	e := c.Register(context.Background(), KeyOf("k"), func() (any, error) { return 1, nil })
	if !errors.Is(e.Err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", e.Err)
	}
	_ = c.Close() // idempotent
}

// A nil value of a Pending type is stored as data, never awaited.
func TestClient_NilPendingIsConcrete(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	k := KeyOf("nil")
	e := c.Register(context.Background(), k, func() (any, error) { return (*pending)(nil), nil })
	if e.IsLoading || !e.HasData {
		t.Fatalf("want concrete entry, got %+v", e)
	}
	if p, ok := AsPending((*pending)(nil)); ok || p != nil {
		t.Fatal("nil pointer must not be pending")
	}
	if _, ok := AsPending(newPending()); !ok {
		t.Fatal("live pending must be pending")
	}
}
