package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestFuture_SettlesOnce(t *testing.T) {
	t.Parallel()

	f := NewFuture[int]()
	if f.Settled() {
		t.Fatal("new future must be unsettled")
	}
	if v, err := f.Outcome(); v != nil || err != nil {
		t.Fatalf("unsettled outcome = %v, %v", v, err)
	}
	if !f.Resolve(1) {
		t.Fatal("first Resolve must win")
	}
	if f.Resolve(2) || f.Reject(errors.New("late")) {
		t.Fatal("a settled future must not change")
	}
	if v, err := f.Await(context.Background()); v != 1 || err != nil {
		t.Fatalf("Await = %d, %v", v, err)
	}
}

func TestFuture_AwaitContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := NewFuture[string]().Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

func TestGo_PanicRejects(t *testing.T) {
	t.Parallel()

	f := Go(func() (int, error) { panic("oops") })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := f.Await(ctx); err == nil {
		t.Fatal("panic must reject the future")
	}
}

func TestAfter_FakeClock(t *testing.T) {
	t.Parallel()

	clock := clockz.NewFakeClock()
	f := After(clock, time.Second, func() (string, error) { return "done", nil })

	clock.Advance(500 * time.Millisecond)
	clock.BlockUntilReady()
	if f.Settled() {
		t.Fatal("settled too early")
	}

	clock.Advance(500 * time.Millisecond)
	clock.BlockUntilReady()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if v, err := f.Await(ctx); v != "done" || err != nil {
		t.Fatalf("Await = %q, %v", v, err)
	}
}
