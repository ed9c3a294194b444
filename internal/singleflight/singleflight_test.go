package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// Many goroutines joining the same flight must observe one execution of fn.
func TestGroup_Do_Coalesces(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	var calls atomic.Int64
	release := make(chan struct{})

	var eg errgroup.Group
	var started sync.WaitGroup
	const N = 32
	started.Add(N)
	for i := 0; i < N; i++ {
		eg.Go(func() error {
			started.Done()
			v, err := g.Do(context.Background(), "k", func() (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
			if err != nil {
				return err
			}
			if v != 7 {
				return errors.New("unexpected value")
			}
			return nil
		})
	}
	started.Wait()
	time.Sleep(5 * time.Millisecond) // let followers join
	close(release)

	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got < 1 || got > N {
		t.Fatalf("unexpected call count %d", got)
	}

	// the landed flight is forgotten, so the next call runs fn again
	v, err := g.Do(context.Background(), "k", func() (int, error) { return 8, nil })
	if err != nil || v != 8 {
		t.Fatalf("after landing Do = %d, %v; want a fresh flight", v, err)
	}
}

// A follower with a cancelled context returns early; the leader is unaffected.
func TestGroup_Do_FollowerCancel(t *testing.T) {
	t.Parallel()

	var g Group[string, string]
	release := make(chan struct{})
	inFlight := make(chan struct{})
	leaderDone := make(chan string, 1)

	go func() {
		v, _ := g.Do(context.Background(), "k", func() (string, error) {
			close(inFlight)
			<-release
			return "leader", nil
		})
		leaderDone <- v
	}()

	<-inFlight

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran atomic.Bool
	_, err := g.Do(ctx, "k", func() (string, error) {
		ran.Store(true)
		return "follower", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if ran.Load() {
		t.Fatal("follower must join the leader's flight, not run its own fn")
	}

	close(release)
	if v := <-leaderDone; v != "leader" {
		t.Fatalf("leader got %q", v)
	}
}
