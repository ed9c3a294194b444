package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/IvanBrykalov/sharedstate/query"
)

// Future is a pending value of T. It settles exactly once, either resolved
// with a value or rejected with an error. The zero Future is not usable;
// construct one with NewFuture, Go, After, Resolved or Rejected.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

var _ query.Pending = (*Future[int])(nil)

// NewFuture returns an unsettled future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve settles f with v. It reports false if f had already settled.
func (f *Future[T]) Resolve(v T) bool { return f.settle(v, nil) }

// Reject settles f with err. It reports false if f had already settled.
func (f *Future[T]) Reject(err error) bool {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) (ok bool) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
		ok = true
	})
	return ok
}

// Done is closed once f settles.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Settled reports whether f has settled.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Outcome returns the settled value and error as untyped values.
// Before settlement it returns (nil, nil).
func (f *Future[T]) Outcome() (any, error) {
	if !f.Settled() {
		return nil, nil
	}
	return f.val, f.err
}

// Await blocks until f settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Go runs fn on a new goroutine and settles the returned future with its
// result. A panic in fn rejects the future.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	go f.run(fn)
	return f
}

// After settles the returned future with fn's result once d has elapsed on
// clock. The timer is armed before After returns, so a fake clock can be
// advanced immediately.
func After[T any](clock clockz.Clock, d time.Duration, fn func() (T, error)) *Future[T] {
	if clock == nil {
		clock = clockz.RealClock
	}
	f := NewFuture[T]()
	t := clock.NewTimer(d)
	go func() {
		<-t.C()
		f.run(fn)
	}()
	return f
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(v)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Reject(err)
	return f
}

func (f *Future[T]) run(fn func() (T, error)) {
	defer func() {
		if r := recover(); r != nil {
			f.Reject(fmt.Errorf("state: future panicked: %v", r))
		}
	}()
	v, err := fn()
	f.settle(v, err)
}
