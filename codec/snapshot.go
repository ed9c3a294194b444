package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/IvanBrykalov/sharedstate/state"
)

// Format names a snapshot encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCBOR     Format = "cbor"
	FormatMsgpack  Format = "msgpack"
	FormatProtobuf Format = "protobuf"
)

// Records is the snapshot payload.
type Records = []state.RecordInfo

// Snapshot returns the codec and content type for f. An empty format is JSON.
func Snapshot(f Format) (Codec[Records], string, error) {
	switch f {
	case FormatJSON, "":
		return JSON[Records]{}, "application/json", nil
	case FormatCBOR:
		c, err := NewCBOR[Records](true)
		if err != nil {
			return nil, "", err
		}
		return c, "application/cbor", nil
	case FormatMsgpack:
		return Msgpack[Records]{}, "application/msgpack", nil
	case FormatProtobuf:
		return structCodec{pb: NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })}, "application/x-protobuf", nil
	default:
		return nil, "", fmt.Errorf("codec: unknown snapshot format %q", f)
	}
}

// structCodec carries records as a google.protobuf.Struct:
// {"records": [{"key": ..., "pending": ..., ...}, ...]}.
type structCodec struct {
	pb Protobuf[*structpb.Struct]
}

func (c structCodec) Encode(rs Records) ([]byte, error) {
	s, err := ToStruct(rs)
	if err != nil {
		return nil, err
	}
	return c.pb.Encode(s)
}

func (c structCodec) Decode(b []byte) (Records, error) {
	s, err := c.pb.Decode(b)
	if err != nil {
		return nil, err
	}
	return FromStruct(s)
}

// ToStruct converts records to a protobuf Struct. Values structpb cannot
// hold directly are passed through their JSON form.
func ToStruct(rs Records) (*structpb.Struct, error) {
	list := make([]any, 0, len(rs))
	for _, r := range rs {
		v, err := plain(r.Value)
		if err != nil {
			return nil, fmt.Errorf("codec: record %s: %w", r.Key, err)
		}
		m := map[string]any{
			"key":     r.Key,
			"pending": r.Pending,
			"loading": r.Loading,
			"created": r.Created.UTC().Format(time.RFC3339Nano),
		}
		if v != nil {
			m["value"] = v
		}
		if r.Error != "" {
			m["error"] = r.Error
		}
		list = append(list, m)
	}
	return structpb.NewStruct(map[string]any{"records": list})
}

// FromStruct is the inverse of ToStruct. Numbers come back as float64.
func FromStruct(s *structpb.Struct) (Records, error) {
	list := s.GetFields()["records"].GetListValue().GetValues()
	out := make(Records, 0, len(list))
	for i, v := range list {
		f := v.GetStructValue().GetFields()
		if f == nil {
			return nil, fmt.Errorf("codec: record %d is not an object", i)
		}
		r := state.RecordInfo{
			Key:     f["key"].GetStringValue(),
			Pending: f["pending"].GetBoolValue(),
			Loading: f["loading"].GetBoolValue(),
			Error:   f["error"].GetStringValue(),
		}
		if val, ok := f["value"]; ok {
			r.Value = val.AsInterface()
		}
		if ts := f["created"].GetStringValue(); ts != "" {
			t, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, fmt.Errorf("codec: record %d: %w", i, err)
			}
			r.Created = t
		}
		out = append(out, r)
	}
	return out, nil
}

// plain reduces v to the JSON-shaped types structpb accepts.
func plain(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, err := structpb.NewValue(v); err == nil {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
