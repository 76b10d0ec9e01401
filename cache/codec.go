package cache

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec encodes values with msgpack. Map keys are sorted and integers
// use their compact form, so a decoded value re-encodes to the same bytes.
type MsgpackCodec struct{}

// NewMsgpackCodec returns the default codec.
func NewMsgpackCodec() Codec {
	return MsgpackCodec{}
}

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
