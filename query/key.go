package query

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Key addresses one logical piece of shared state. It is a single token or
// an ordered sequence of tokens; two keys are equal iff their canonical
// forms (the JSON encoding of the token sequence) are equal.
type Key struct {
	parts []any
	id    string
}

// KeyOf builds a key from tokens. A single []any or []string argument is
// taken as the token sequence itself.
func KeyOf(parts ...any) Key {
	if len(parts) == 1 {
		switch p := parts[0].(type) {
		case Key:
			return p
		case []any:
			parts = p
		case []string:
			parts = make([]any, len(p))
			for i, s := range p {
				parts[i] = s
			}
		}
	}
	cp := make([]any, len(parts))
	copy(cp, parts)
	return Key{parts: cp, id: canonical(cp)}
}

// String returns the canonical form used for equality and hashing.
func (k Key) String() string {
	if k.id == "" {
		return canonical(k.parts)
	}
	return k.id
}

// Equal reports whether k and o normalise to the same sequence.
func (k Key) Equal(o Key) bool { return k.String() == o.String() }

// Shadow derives the bookkeeping key for k by appending the process marker.
// Shadow keys of different keys never collide, and no key built by an
// application collides with a shadow key.
func (k Key) Shadow() Key {
	parts := make([]any, len(k.parts), len(k.parts)+1)
	copy(parts, k.parts)
	return KeyOf(append(parts, shadowMarker()))
}

// shadowMarker is fixed for the life of the process.
var shadowMarker = sync.OnceValue(func() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return "\x00shadow:" + hex.EncodeToString(b[:])
})

func canonical(parts []any) string {
	b, err := json.Marshal(parts)
	if err == nil {
		return string(b)
	}
	// Tokens JSON cannot express (funcs, chans, cyclic values) fall back to
	// their Go syntax representation.
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprintf("%#v", p)
	}
	return "[" + strings.Join(s, ",") + "]"
}
