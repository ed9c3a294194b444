package state

import (
	"reflect"

	"github.com/IvanBrykalov/sharedstate/query"
)

// Key addresses one shared state slot. See query.Key for equality rules.
type Key = query.Key

// KeyOf builds a Key from a single token or a sequence of tokens.
func KeyOf(parts ...any) Key { return query.KeyOf(parts...) }

// Value is either a concrete T or a pending computation of T.
//
// A concrete value whose dynamic type itself implements query.Pending is
// classified as pending as well; it is stored and awaited like any Future.
// A nil one (Concrete[*Future[int]](nil), or the zero Default of such a T)
// stays concrete.
//
// Because such a value settles to its inner result rather than to a T, reads
// of a key holding one report ErrTypeMismatch once it settles. Use
// Pending(f) on a Value of the result type instead.
type Value[T any] struct {
	v T
	f *Future[T]
}

// Concrete wraps a ready value.
func Concrete[T any](v T) Value[T] { return Value[T]{v: v} }

// Pending wraps a future. Pending(nil) is the concrete zero value.
func Pending[T any](f *Future[T]) Value[T] { return Value[T]{f: f} }

// IsPending reports whether v is (or will be treated as) pending.
func (v Value[T]) IsPending() bool { return v.slot().pending() }

// slot is the untyped form a record stores.
// Exactly one of v / p is meaningful: p != nil means pending.
type slot struct {
	v any
	p query.Pending
}

func (v Value[T]) slot() slot {
	if v.f != nil {
		return slot{p: v.f}
	}
	if p, ok := query.AsPending(any(v.v)); ok {
		return slot{p: p}
	}
	return slot{v: v.v}
}

func (s slot) pending() bool { return s.p != nil }

// same reports whether two slots hold the identical value. Pending values
// and reference kinds compare by identity; comparable values by ==.
// Structurally equal but distinct maps or slices are different.
func (s slot) same(o slot) bool {
	if s.pending() != o.pending() {
		return false
	}
	if s.pending() {
		return identical(s.p, o.p)
	}
	return identical(s.v, o.v)
}

func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Comparable() && vb.Comparable() {
		return a == b
	}
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len() && va.Cap() == vb.Cap()
	case reflect.Map:
		return va.Pointer() == vb.Pointer()
	default:
		// funcs and non-comparable structs/arrays have no usable identity
		return false
	}
}

// as converts an untyped slot value back to T; nil is the zero T.
func as[T any](v any) (T, bool) {
	if v == nil {
		var zero T
		return zero, true
	}
	t, ok := v.(T)
	return t, ok
}
