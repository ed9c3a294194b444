package query

import "reflect"

// Pending is a value whose computation may not have settled yet.
// Outcome is only meaningful after Done is closed.
type Pending interface {
	Done() <-chan struct{}
	Outcome() (any, error)
}

// AsPending returns v as a Pending. A nil value of a type implementing
// Pending (a nil *Future, for instance) is not pending.
func AsPending(v any) (Pending, bool) {
	p, ok := v.(Pending)
	if !ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice:
		if rv.IsNil() {
			return nil, false
		}
	}
	return p, true
}
