// Package codec encodes store snapshots for inspection endpoints.
//
// The generic codecs (JSON, CBOR, Msgpack, Protobuf) work on any value; the
// Snapshot function picks one by format name for []state.RecordInfo. Snapshots
// are one-way diagnostics: nothing in this module restores a store from them.
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
