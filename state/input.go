package state

import "fmt"

// Default describes the initial value of a key. It is evaluated at most
// once per key for the life of a Store. The zero Default means "no default":
// the key starts as the concrete zero value.
type Default[T any] struct {
	value Value[T]
	init  func() (Value[T], error)
}

// Initial uses v (concrete or pending) as the initial value.
func Initial[T any](v Value[T]) Default[T] { return Default[T]{value: v} }

// Lazy calls fn on first resolution. An error returned by fn, or a panic,
// is captured into the key's record and reported on every read.
func Lazy[T any](fn func() (Value[T], error)) Default[T] { return Default[T]{init: fn} }

func (d Default[T]) eval() (s slot, err error) {
	if d.init == nil {
		return d.value.slot(), nil
	}
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = rerr
				return
			}
			err = fmt.Errorf("%w: %v", ErrInitializerPanic, r)
		}
	}()
	v, err := d.init()
	if err != nil {
		return slot{}, err
	}
	return v.slot(), nil
}

// Update is the input of a write: a replacement value or an updater.
type Update[T any] struct {
	value Value[T]
	fn    func(prev T) Value[T]
}

// To replaces the current value with v.
func To[T any](v Value[T]) Update[T] { return Update[T]{value: v} }

// With computes the new value from the previous resolved one: the last
// settled value if the previous value was pending (zero if it never
// settled), the concrete value otherwise.
func With[T any](fn func(prev T) Value[T]) Update[T] { return Update[T]{fn: fn} }

// change is the untyped form of an Update used by the write path.
type change interface {
	next(prev func() any) (slot, error)
}

func (u Update[T]) next(prev func() any) (slot, error) {
	if u.fn == nil {
		return u.value.slot(), nil
	}
	p, ok := as[T](prev())
	if !ok {
		return slot{}, ErrTypeMismatch
	}
	return u.fn(p).slot(), nil
}

// Mutation is one entry of a batch write; see Store.SetMany.
type Mutation struct {
	key    Key
	change change
}

// Mutate pairs a key with an update for Store.SetMany.
func Mutate[T any](k Key, u Update[T]) Mutation { return Mutation{key: k, change: u} }
