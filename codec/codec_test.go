package codec

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/IvanBrykalov/sharedstate/state"
)

type profile struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func sampleRecords(t *testing.T) Records {
	t.Helper()
	ctx := context.Background()
	s := state.New(state.Options{})
	t.Cleanup(func() { _ = s.Close() })

	state.Use(ctx, s, state.KeyOf("count"), state.Initial(state.Concrete(3)))
	state.Use(ctx, s, state.KeyOf("user", 1), state.Initial(state.Concrete(profile{"ada", 36})))
	state.Use(ctx, s, state.KeyOf("slow"), state.Initial(state.Pending(state.NewFuture[int]())))
	return s.Snapshot()
}

// Every format decodes back to the same keys and flags.
func TestSnapshot_Formats(t *testing.T) {
	t.Parallel()

	rs := sampleRecords(t)
	for _, f := range []Format{FormatJSON, FormatCBOR, FormatMsgpack, FormatProtobuf} {
		c, ctype, err := Snapshot(f)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		if ctype == "" {
			t.Fatalf("%s: empty content type", f)
		}
		b, err := c.Encode(rs)
		if err != nil {
			t.Fatalf("%s: encode: %v", f, err)
		}
		got, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s: decode: %v", f, err)
		}
		if len(got) != len(rs) {
			t.Fatalf("%s: %d records, want %d", f, len(got), len(rs))
		}
		for i := range rs {
			if got[i].Key != rs[i].Key || got[i].Pending != rs[i].Pending || got[i].Loading != rs[i].Loading {
				t.Errorf("%s: record %d = %+v, want %+v", f, i, got[i], rs[i])
			}
			if !got[i].Created.Equal(rs[i].Created) {
				t.Errorf("%s: record %d created %v, want %v", f, i, got[i].Created, rs[i].Created)
			}
		}
	}
}

func TestSnapshot_UnknownFormat(t *testing.T) {
	t.Parallel()

	if _, _, err := Snapshot("yaml"); err == nil {
		t.Fatal("want error for unknown format")
	}
	if _, ctype, err := Snapshot(""); err != nil || ctype != "application/json" {
		t.Fatalf("empty format must default to JSON, got %q %v", ctype, err)
	}
}

// Struct values go through their JSON form in the protobuf encoding.
func TestToStruct_StructValue(t *testing.T) {
	t.Parallel()

	rs := Records{{Key: `["u"]`, Value: profile{"ada", 36}, Created: time.Unix(0, 0)}}
	s, err := ToStruct(rs)
	if err != nil {
		t.Fatal(err)
	}
	back, err := FromStruct(s)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := back[0].Value.(map[string]any)
	if !ok || m["name"] != "ada" || m["age"] != float64(36) {
		t.Fatalf("unexpected value %#v", back[0].Value)
	}
}

func TestCBOR_Deterministic(t *testing.T) {
	t.Parallel()

	c := MustCBOR[map[string]int](true)
	a, err := c.Encode(map[string]int{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Encode(map[string]int{"c": 3, "a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("deterministic encoding must not depend on map order")
	}
}
