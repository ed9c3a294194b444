// Package state provides a process-wide, key-addressed shared state store
// whose values may be concrete, lazily initialized, or pending, layered on
// top of the asynchronous query cache in package query.
//
// Design
//
//   - Shadow records: every key owns one record holding the authoritative
//     value, a loading flag and a captured initializer error. Records live
//     in the Store, in sharded maps indexed by the key's shadow key
//     (query.Key.Shadow), and are kept apart from the query cache's own
//     entries. A record is created on the first read (or by Init) and lives
//     as long as the Store.
//
//   - Values: a Value[T] is either Concrete(v) or Pending(future). A concrete
//     value whose type implements query.Pending is treated as pending too.
//
//   - Initialization: a key's Default is evaluated at most once, even when
//     many goroutines read the key for the first time concurrently
//     (singleflight with a double-check). Errors and panics from a Lazy
//     default are captured into the record and reported on every read via
//     Status.Err; reading never fails because of them.
//
//   - Reads: Use resolves the record and registers a fetch function with the
//     query cache. Concrete values are returned straight from the record.
//     Pending values are projected through the query entry: the zero value
//     with Status.Loading while unsettled, the settled value afterwards.
//
//   - Writes: Set computes the next value under the record lock. A write of
//     an identical value (same future, same pointer or == for comparable
//     values) does nothing. Otherwise the query entry is invalidated and,
//     for concrete values only, every Handle of the key is woken through
//     Written before Set returns. Pending values wake handles through
//     Settled once they settle.
//
//   - Metrics and events: Options.Metrics receives Resolve/Read/Write/Records
//     signals (NoopMetrics by default); lifecycle events are emitted as
//     capitan signals (RecordInitialized, ValueWritten, ...).
//
// Basic usage
//
//	s := state.New(state.Options{})
//	defer s.Close()
//
//	k := state.KeyOf("counter")
//	n, set, _ := state.Use(ctx, s, k, state.Initial(state.Concrete(0)))
//	_ = set(ctx, state.With(func(prev int) state.Value[int] {
//	    return state.Concrete(prev + 1)
//	}))
//
// Pending values
//
//	f := state.After(clockz.RealClock, 10*time.Millisecond, func() (int, error) {
//	    return 1, nil
//	})
//	h, _ := state.Watch(ctx, s, state.KeyOf("user", 42), state.Initial(state.Pending(f)))
//	defer h.Close()
//	<-h.Settled()
//	v, st := h.Get(ctx) // v == 1, st.Loading == false
//
// Writing before reading
//
//	_ = state.Init(ctx, s, k, state.Default[int]{})
//	_ = state.Set(ctx, s, k, state.To(state.Concrete(5)))
//
// Thread-safety
//
// All functions and methods are safe for concurrent use. Updaters and
// initializers run while the store holds locks for their key and must not
// read or write that same key.
package state
