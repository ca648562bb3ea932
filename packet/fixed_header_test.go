package packet

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeConnect, "CONNECT"},
		{TypeConnack, "CONNACK"},
		{TypePublish, "PUBLISH"},
		{TypePuback, "PUBACK"},
		{TypePubrec, "PUBREC"},
		{TypePubrel, "PUBREL"},
		{TypePubcomp, "PUBCOMP"},
		{TypeSubscribe, "SUBSCRIBE"},
		{TypeSuback, "SUBACK"},
		{TypeUnsubscribe, "UNSUBSCRIBE"},
		{TypeUnsuback, "UNSUBACK"},
		{TypePingreq, "PINGREQ"},
		{TypePingresp, "PINGRESP"},
		{TypeDisconnect, "DISCONNECT"},
		{TypeAuth, "AUTH"},
		{Type(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestReadFixedHeader(t *testing.T) {
	// PUBLISH (type=3) with flags 0b1101, remaining length 127.
	data := []byte{0x3D, 0x7F}

	h, err := readFixedHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("readFixedHeader() error = %v", err)
	}
	if h.Type != TypePublish {
		t.Errorf("Type = %v, want PUBLISH", h.Type)
	}
	if h.Flags != 0x0D {
		t.Errorf("Flags = %#x, want 0x0d", h.Flags)
	}
	if h.RemainingLength != 127 {
		t.Errorf("RemainingLength = %d, want 127", h.RemainingLength)
	}
}

func TestReadFixedHeader_CleanEOF(t *testing.T) {
	// EOF before the first byte is a clean stream end, not a malformed packet.
	_, err := readFixedHeader(bytes.NewReader(nil))
	if err != io.EOF {
		t.Errorf("readFixedHeader() error = %v, want io.EOF", err)
	}
}

func TestReadFixedHeader_EOFMidHeader(t *testing.T) {
	// First byte present, remaining length missing.
	_, err := readFixedHeader(bytes.NewReader([]byte{0x3D}))
	if !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("readFixedHeader() error = %v, want ErrMalformedPacket", err)
	}
}

func TestFixedHeader_AppendTo(t *testing.T) {
	h := FixedHeader{Type: TypePublish, Flags: 0x0D, RemainingLength: 127}

	got := h.appendTo(nil)
	want := []byte{0x3D, 0x7F}
	if !bytes.Equal(got, want) {
		t.Errorf("appendTo() = %#v, want %#v", got, want)
	}
}

func TestFixedHeader_Roundtrip_MultiByteLength(t *testing.T) {
	h := FixedHeader{Type: TypeConnect, Flags: 0, RemainingLength: 16384}

	encoded := h.appendTo(nil)
	decoded, err := readFixedHeader(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("readFixedHeader() error = %v", err)
	}
	if decoded != h {
		t.Errorf("roundtrip = %+v, want %+v", decoded, h)
	}
}
