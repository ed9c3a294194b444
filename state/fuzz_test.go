package state

import (
	"context"
	"strings"
	"testing"
)

// Fuzz Init/Set/Use under arbitrary key tokens and values.
// Writes must be visible to the next read, and distinct tokens must never
// share a record.
func FuzzStore_SetUse(f *testing.F) {
	f.Add("", "", "x")
	f.Add("a", "b", "1")
	f.Add("αβγ", "αβγ", "δ")
	f.Add("emoji🙂", "\x00shadow:", "🙂🙂")
	f.Add("long", "long2", strings.Repeat("x", 1024))

	f.Fuzz(func(t *testing.T, k1, k2, v string) {
		const limit = 1 << 12
		if len(v) > limit {
			v = v[:limit]
		}

		ctx := context.Background()
		s := New(Options{Shards: 2})
		t.Cleanup(func() { _ = s.Close() })

		a, b := KeyOf(k1), KeyOf(k1, k2)
		if err := Init(ctx, s, a, Initial(Concrete("init"))); err != nil {
			t.Fatal(err)
		}
		Use(ctx, s, b, Initial(Concrete("other")))

		if err := Set(ctx, s, a, To(Concrete(v))); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if got, _, st := Use(ctx, s, a, Default[string]{}); got != v || st.Err != nil {
			t.Fatalf("want %q, got %q %+v", v, got, st)
		}
		if got, _, _ := Use(ctx, s, b, Default[string]{}); got != "other" {
			t.Fatalf("sequence key leaked into single key: %q", got)
		}
		if s.Len() != 2 {
			t.Fatalf("want 2 records, got %d", s.Len())
		}
	})
}
