package state

import "context"

// Status is the loading/error projection of a read.
type Status struct {
	// Loading is true while a pending value has not settled. It is always
	// false for concrete values.
	Loading bool
	// Err is the key's captured initializer error, or the rejection of its
	// current pending value.
	Err error
}

// Setter writes a key. It is bound to the key and type of the read that
// returned it.
type Setter[T any] func(ctx context.Context, u Update[T]) error

// Use reads the value of k, creating its record from def on first use, and
// returns a setter for k.
//
// While a pending value is loading the returned value is the zero T. An
// initializer error, a rejection, or a type mismatch is reported through
// Status.Err; Use never fails outright.
func Use[T any](ctx context.Context, s *Store, k Key, def Default[T]) (T, Setter[T], Status) {
	v, st := get(ctx, s, k, def)
	set := func(ctx context.Context, u Update[T]) error { return Set(ctx, s, k, u) }
	return v, set, st
}

func get[T any](ctx context.Context, s *Store, k Key, def Default[T]) (T, Status) {
	var zero T
	vw, err := s.read(ctx, k, def.eval)
	if err != nil {
		return zero, Status{Err: err}
	}
	if vw.err != nil || vw.loading {
		return zero, Status{Loading: vw.loading, Err: vw.err}
	}
	t, ok := as[T](vw.v)
	if !ok {
		return zero, Status{Err: &KeyError{Key: k, Err: ErrTypeMismatch}}
	}
	return t, Status{}
}

// Init creates the record for k from def without registering it with the
// query cache, so that k can be written before anything reads it.
// Initializing an existing key does nothing. A failing default is captured
// like on a read and Init still returns nil.
func Init[T any](ctx context.Context, s *Store, k Key, def Default[T]) error {
	if s.closed.Load() {
		return ErrClosed
	}
	_, _, err := s.resolve(ctx, k, def.eval)
	return err
}

// Set writes k. The key must have been read or initialized before.
//
// A concrete value is visible to every reader and Handle as soon as Set
// returns. A pending value becomes visible when it settles.
func Set[T any](ctx context.Context, s *Store, k Key, u Update[T]) error {
	_, err := s.write(ctx, k, u)
	return err
}
