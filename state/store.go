package state

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"

	"github.com/IvanBrykalov/sharedstate/internal/singleflight"
	"github.com/IvanBrykalov/sharedstate/internal/util"
	"github.com/IvanBrykalov/sharedstate/logging"
	"github.com/IvanBrykalov/sharedstate/query"
)

// Store is the process-wide shadow store plus the synchronization engine
// that mediates between it and the query cache.
// All methods are safe for concurrent use by multiple goroutines.
type Store struct {
	shards []*shard
	q      Subsystem
	ownQ   *query.Client // non-nil when the store created its query client

	opt   Options
	log   logging.Logger
	clock clockz.Clock

	// coalesces first resolution of a key across concurrent readers.
	sf singleflight.Group[string, *record]

	closed atomic.Bool
	size   atomic.Int64
}

// New constructs a store with the provided Options.
// Defaults:
//   - nil Metrics  -> NoopMetrics
//   - nil Query    -> private query client
//   - Shards <= 0  -> auto, rounded up to the next power of two
func New(opt Options) *Store {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Clock == nil {
		opt.Clock = clockz.RealClock
	}

	sh := opt.Shards
	if sh <= 0 {
		sh = util.ReasonableShardCount()
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}
	shards := make([]*shard, sh)
	for i := range shards {
		shards[i] = newShard()
	}

	s := &Store{
		shards: shards,
		q:      opt.Query,
		opt:    opt,
		log:    logging.OrNop(opt.Logger),
		clock:  opt.Clock,
	}
	if s.q == nil {
		s.ownQ = query.New(query.Options{
			Logger:  opt.Logger,
			Metrics: opt.QueryMetrics,
			Clock:   opt.Clock,
		})
		s.q = s.ownQ
	}
	return s
}

// Query returns the query cache the store layers on.
func (s *Store) Query() Subsystem { return s.q }

// Len returns the number of shadow records.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.len()
	}
	return total
}

// Stats is a point-in-time view of store counters.
type Stats struct {
	Records int
	Reads   uint64
	Writes  uint64
}

// Stats sums the per-shard counters.
func (s *Store) Stats() Stats {
	var st Stats
	for _, sh := range s.shards {
		st.Records += sh.len()
		st.Reads += sh.reads.Load()
		st.Writes += sh.writes.Load()
	}
	return st
}

// Close marks the store closed. A private query client is closed too.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.ownQ != nil {
		return s.ownQ.Close()
	}
	return nil
}

// SetMany applies each mutation independently, in argument order. There is
// no atomicity across entries: each key's write is visible on its own, and
// a failing entry does not stop the others. Failures are joined.
func (s *Store) SetMany(ctx context.Context, ms ...Mutation) error {
	var errs []error
	for _, m := range ms {
		if _, err := s.write(ctx, m.key, m.change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordInfo describes one record in a Snapshot.
type RecordInfo struct {
	Key     string    `json:"key" cbor:"key" msgpack:"key"`
	Pending bool      `json:"pending" cbor:"pending" msgpack:"pending"`
	Loading bool      `json:"loading" cbor:"loading" msgpack:"loading"`
	Value   any       `json:"value,omitempty" cbor:"value,omitempty" msgpack:"value,omitempty"`
	Error   string    `json:"error,omitempty" cbor:"error,omitempty" msgpack:"error,omitempty"`
	Created time.Time `json:"created" cbor:"created" msgpack:"created"`
}

// Snapshot lists every record sorted by key. Pending records report their
// last settled value. It is meant for inspection and is never read back.
func (s *Store) Snapshot() []RecordInfo {
	out := make([]RecordInfo, 0, s.Len())
	for _, sh := range s.shards {
		sh.each(func(r *record) {
			r.mu.Lock()
			info := RecordInfo{
				Key:     r.key.String(),
				Pending: r.value.pending(),
				Loading: r.loading,
				Created: r.created,
			}
			if r.err != nil {
				info.Error = r.err.Error()
			} else if !info.Pending {
				info.Value = r.value.v
			}
			r.mu.Unlock()
			if info.Pending && info.Error == "" {
				info.Value, _ = s.q.ReadCached(r.key)
			}
			out = append(out, info)
		})
	}
	slices.SortFunc(out, func(a, b RecordInfo) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// ---- engine ----

// view is the projection of a record returned by a read.
type view struct {
	v       any
	loading bool
	err     error
}

func (s *Store) shardFor(id string) *shard {
	return s.shards[util.ShardIndex(util.Fnv64a(id), len(s.shards))]
}

func shadowID(k Key) string { return k.Shadow().String() }

func (s *Store) lookup(k Key) (*record, *shard, bool) {
	id := shadowID(k)
	sh := s.shardFor(id)
	r, ok := sh.get(id)
	return r, sh, ok
}

// resolve returns the record for k, creating it from eval on first use.
// eval runs at most once per key; its error is captured, never returned.
func (s *Store) resolve(ctx context.Context, k Key, eval func() (slot, error)) (*record, *shard, error) {
	id := shadowID(k)
	sh := s.shardFor(id)
	if r, ok := sh.get(id); ok {
		return r, sh, nil
	}

	r, err := s.sf.Do(ctx, id, func() (*record, error) {
		// double-check after flight join
		if r, ok := sh.get(id); ok {
			return r, nil
		}
		r := &record{key: k, created: s.clock.Now()}
		val, err := eval()
		if err != nil {
			r.err = err
		} else {
			r.value = val
		}
		r, created := sh.put(id, r)
		if created {
			s.created(ctx, r)
		}
		return r, nil
	})
	return r, sh, err
}

func (s *Store) created(ctx context.Context, r *record) {
	n := s.size.Add(1)
	failed := r.err != nil
	s.opt.Metrics.Resolve(failed)
	s.opt.Metrics.Records(int(n))

	key := r.key.String()
	if failed {
		s.log.Warn("default evaluation failed; error captured", logging.Fields{"key": key, "err": r.err})
		capitan.Emit(ctx, RecordInitFailed, KeyKey.Field(key), KeyErr.Field(r.err.Error()))
		return
	}
	s.log.Debug("record created", logging.Fields{"key": key, "pending": r.value.pending()})
	capitan.Emit(ctx, RecordInitialized, KeyKey.Field(key))
}

// read resolves k, registers its fetch with the query cache and projects
// the record. Concrete values bypass the cache's data entirely.
func (s *Store) read(ctx context.Context, k Key, eval func() (slot, error)) (view, error) {
	if s.closed.Load() {
		return view{}, ErrClosed
	}
	r, sh, err := s.resolve(ctx, k, eval)
	if err != nil {
		return view{}, err
	}
	entry := s.q.Register(ctx, k, r.fetch)
	sh.reads.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		r.loading = false
		return view{err: r.err}, nil
	}
	if !r.value.pending() {
		r.loading = false
		s.opt.Metrics.Read(false)
		return view{v: r.value.v}, nil
	}

	s.opt.Metrics.Read(true)
	r.loading = entry.IsLoading
	switch {
	case r.loading:
		return view{loading: true}, nil
	case entry.Err != nil:
		return view{err: entry.Err}, nil
	default:
		return view{v: entry.Data}, nil
	}
}

// write is the update protocol: mutate the record, short-circuit identical
// writes, invalidate the query entry, and wake consumers directly when the
// new value is concrete. Pending values are left to the query cache, whose
// settlement is their only notification.
func (s *Store) write(ctx context.Context, k Key, c change) (WriteOutcome, error) {
	if s.closed.Load() {
		return WriteNoop, ErrClosed
	}
	r, sh, ok := s.lookup(k)
	if !ok {
		s.log.Debug("write to uninitialized key", logging.Fields{"key": k.String()})
		return WriteNoop, &KeyError{Key: k, Err: ErrUninitialized}
	}

	prev, next, err := r.swap(c, func(prev slot) any {
		if prev.pending() {
			v, _ := s.q.ReadCached(k)
			return v
		}
		return prev.v
	})
	if err != nil {
		return WriteNoop, &KeyError{Key: k, Err: err}
	}
	sh.writes.Add(1)

	key := k.String()
	if prev.same(next) {
		s.opt.Metrics.Write(WriteNoop)
		capitan.Emit(ctx, WriteSkipped, KeyKey.Field(key))
		return WriteNoop, nil
	}

	s.q.Invalidate(ctx, k)

	outcome := WriteDeferred
	woken := 0
	if !next.pending() {
		outcome = WriteBypass
		woken = sh.wake(shadowID(k))
	}
	s.opt.Metrics.Write(outcome)
	capitan.Emit(ctx, ValueWritten,
		KeyKey.Field(key),
		KeyOutcome.Field(outcome.String()),
		KeyConsumers.Field(woken),
	)
	return outcome, nil
}
