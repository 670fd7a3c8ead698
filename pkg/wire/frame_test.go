package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestHashReferenceVectors(t *testing.T) {
	cases := map[string]uint32{
		"short hash":                          0x20DC540E,
		"this is a pretty long hash string":   0xB4C660D0,
	}
	for s, want := range cases {
		if got := Hash(s); got != want {
			t.Errorf("Hash(%q) = %#x, want %#x", s, got, want)
		}
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	typ := Type(0x55)
	pattern := Pattern{0x4567, 0xF0F0, 0x4444}
	payload := []byte("This is a bunch of data")

	packed := Pack(typ, pattern, payload)
	frame, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if frame.Type != typ {
		t.Errorf("Type = %v, want %v", frame.Type, typ)
	}
	if !frame.Pattern.Equal(pattern) {
		t.Errorf("Pattern = %v, want %v", frame.Pattern, pattern)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Errorf("Payload = %q, want %q", frame.Payload, payload)
	}

	if repacked := Pack(frame.Type, frame.Pattern, frame.Payload); !bytes.Equal(repacked, packed) {
		t.Errorf("repack mismatch:\n got  %x\n want %x", repacked, packed)
	}
}

func TestUnpackEmptyPattern(t *testing.T) {
	packed := Pack(SUB, nil, []byte("hi"))
	frame, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(frame.Pattern) != 0 {
		t.Errorf("Pattern = %v, want empty", frame.Pattern)
	}
}

func TestUnpackMalformedTruncatedHeader(t *testing.T) {
	_, err := Unpack([]byte{0x01, 0x02})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestUnpackMalformedOverrunsBuffer(t *testing.T) {
	buf := Pack(SUB, Pattern{1, 2}, []byte("data"))
	_, err := Unpack(buf[:len(buf)-1])
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestTypeString(t *testing.T) {
	got := (SUB | CACHE | BROKER).String()
	want := "SUB|CACHE|BROKER"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
