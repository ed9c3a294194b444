package state

import "testing"

type point struct{ X, Y int }

type bag struct{ items []int }

func TestIdentical(t *testing.T) {
	t.Parallel()

	m := map[string]int{"a": 1}
	s := []int{1, 2, 3}
	p := &point{1, 2}
	f := func() {}

	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil", nil, nil, true},
		{"nil vs value", nil, 0, false},
		{"equal ints", 1, 1, true},
		{"different ints", 1, 2, false},
		{"different types", int32(1), int64(1), false},
		{"equal strings", "x", "x", true},
		{"comparable structs", point{1, 2}, point{1, 2}, true},
		{"same pointer", p, p, true},
		{"equal pointees", p, &point{1, 2}, false},
		{"same map", m, m, true},
		{"equal maps", m, map[string]int{"a": 1}, false},
		{"same slice", s, s, true},
		{"resliced", s, s[:2], false},
		{"equal slices", s, []int{1, 2, 3}, false},
		{"funcs", f, f, false},
		{"non-comparable struct", bag{s}, bag{s}, false},
	}
	for _, tc := range cases {
		if got := identical(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: identical = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValue_Slot(t *testing.T) {
	t.Parallel()

	if Concrete(1).IsPending() {
		t.Fatal("concrete int is not pending")
	}
	if !Pending(NewFuture[int]()).IsPending() {
		t.Fatal("future is pending")
	}
	if Pending[int](nil).IsPending() {
		t.Fatal("Pending(nil) is the concrete zero value")
	}
	if Concrete[*Future[int]](nil).IsPending() {
		t.Fatal("a nil future is concrete")
	}
	if (Value[*Future[int]]{}).IsPending() {
		t.Fatal("the zero value of a future type is concrete")
	}

	f := NewFuture[int]()
	if !Pending(f).slot().same(Pending(f).slot()) {
		t.Fatal("same future must be the same slot")
	}
	if Pending(f).slot().same(Pending(NewFuture[int]()).slot()) {
		t.Fatal("distinct futures differ")
	}
	if Concrete(0).slot().same(Pending(f).slot()) {
		t.Fatal("concrete and pending differ")
	}
}
