package cache

import (
	"bytes"
	"testing"
)

func TestMsgpackCodec_StableBytesForMaps(t *testing.T) {
	codec := NewMsgpackCodec()
	value := map[string]any{"name": "ann", "age": 3, "email": "ann@example.com", "active": true}

	first, err := codec.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := codec.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	second, err := codec.Marshal(decoded)
	if err != nil {
		t.Fatalf("marshal decoded: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Fatalf("expected re-encoding to be byte-identical")
	}
}
