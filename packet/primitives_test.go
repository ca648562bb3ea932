package packet

import (
	"bytes"
	"errors"
	"testing"
)

// =============================================================================
// Variable Byte Integer Tests
// =============================================================================

func TestAppendVarint_Boundaries(t *testing.T) {
	tests := []struct {
		value uint32
		want  []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xFF, 0x7F}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{2097151, []byte{0xFF, 0xFF, 0x7F}},
		{2097152, []byte{0x80, 0x80, 0x80, 0x01}},
		{268435455, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, tt := range tests {
		got := appendVarint(nil, tt.value)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("appendVarint(%d) = %#v, want %#v", tt.value, got, tt.want)
		}
		if varintLen(tt.value) != len(tt.want) {
			t.Errorf("varintLen(%d) = %d, want %d", tt.value, varintLen(tt.value), len(tt.want))
		}
	}
}

func TestReadVarint_Roundtrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 255, 256, 16383, 16384, 32767, 65535, 2097151, 2097152, 268435455}

	for _, v := range values {
		encoded := appendVarint(nil, v)
		got, err := readVarint(bytes.NewReader(encoded))
		if err != nil {
			t.Fatalf("readVarint(%d) error = %v", v, err)
		}
		if got != v {
			t.Errorf("readVarint roundtrip = %d, want %d", got, v)
		}
	}
}

func TestReadVarint_TooManyBytes(t *testing.T) {
	// Continuation bit set on all four permitted bytes.
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x01}

	_, err := readVarint(bytes.NewReader(data))
	if !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("readVarint() error = %v, want ErrMalformedPacket", err)
	}
}

func TestReadVarint_EOFMidInteger(t *testing.T) {
	// Continuation bit set but no next byte.
	data := []byte{0x80}

	_, err := readVarint(bytes.NewReader(data))
	if !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("readVarint() error = %v, want ErrMalformedPacket", err)
	}
}

// =============================================================================
// Body Reader Tests
// =============================================================================

func TestReader_Integers(t *testing.T) {
	r := &reader{buf: []byte{0x42, 0x12, 0x34, 0x12, 0x34, 0x56, 0x78}}

	if v, err := r.u8(); err != nil || v != 0x42 {
		t.Errorf("u8() = %#x, %v, want 0x42, nil", v, err)
	}
	if v, err := r.u16(); err != nil || v != 0x1234 {
		t.Errorf("u16() = %#x, %v, want 0x1234, nil", v, err)
	}
	if v, err := r.u32(); err != nil || v != 0x12345678 {
		t.Errorf("u32() = %#x, %v, want 0x12345678, nil", v, err)
	}
	if r.remaining() != 0 {
		t.Errorf("remaining() = %d, want 0", r.remaining())
	}
}

func TestReader_TruncatedInteger(t *testing.T) {
	r := &reader{buf: []byte{0x12}}

	if _, err := r.u16(); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("u16() error = %v, want ErrMalformedPacket", err)
	}
}

func TestReader_String(t *testing.T) {
	r := &reader{buf: []byte{0x00, 0x04, 'M', 'Q', 'T', 'T'}}

	s, err := r.str()
	if err != nil {
		t.Fatalf("str() error = %v", err)
	}
	if s != "MQTT" {
		t.Errorf("str() = %q, want %q", s, "MQTT")
	}
}

func TestReader_StringLengthExceedsBody(t *testing.T) {
	r := &reader{buf: []byte{0x00, 0x10, 'a', 'b'}}

	if _, err := r.str(); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("str() error = %v, want ErrMalformedPacket", err)
	}
}

func TestReader_PropertiesSkipped(t *testing.T) {
	// Property block of 3 bytes followed by a u8 we expect to survive.
	r := &reader{buf: []byte{0x03, 0xFF, 0xFF, 0xFF, 0x42}}

	if err := r.properties(); err != nil {
		t.Fatalf("properties() error = %v", err)
	}
	if v, err := r.u8(); err != nil || v != 0x42 {
		t.Errorf("u8() after properties = %#x, %v, want 0x42, nil", v, err)
	}
}

func TestReader_PropertyLengthExceedsBody(t *testing.T) {
	r := &reader{buf: []byte{0x05, 0x00}}

	if err := r.properties(); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("properties() error = %v, want ErrMalformedPacket", err)
	}
}
