package packet

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Variable byte integer limits per MQTT 5 specification section 1.5.5.
const (
	// varintContinuation marks another byte follows in a variable byte integer.
	varintContinuation = 0x80

	// maxVarint is the largest value a four-byte variable byte integer encodes.
	maxVarint = 268_435_455

	// maxStringLen is the largest UTF-8 string or binary data length (u16 prefix).
	maxStringLen = 65_535
)

// appendU8 appends a single byte.
func appendU8(dst []byte, v byte) []byte {
	return append(dst, v)
}

// appendU16 appends a big-endian two byte integer.
func appendU16(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

// appendU32 appends a big-endian four byte integer.
func appendU32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

// appendVarint appends a variable byte integer (1-4 bytes, 7 bits per byte,
// least significant group first, high bit as continuation marker).
//
// The value must not exceed maxVarint; callers validate before encoding.
func appendVarint(dst []byte, v uint32) []byte {
	for {
		b := byte(v % 128)
		v /= 128
		if v > 0 {
			b |= varintContinuation
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// appendString appends a UTF-8 string: big-endian u16 length then the bytes.
func appendString(dst []byte, s string) []byte {
	dst = appendU16(dst, uint16(len(s)))
	return append(dst, s...)
}

// appendBinary appends binary data: big-endian u16 length then the bytes.
func appendBinary(dst []byte, b []byte) []byte {
	dst = appendU16(dst, uint16(len(b)))
	return append(dst, b...)
}

// varintLen returns the encoded size of v as a variable byte integer.
func varintLen(v uint32) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	default:
		return 4
	}
}

// readVarint reads a variable byte integer from r one byte at a time.
//
// It is used only for the remaining-length field of the fixed header, where
// the total packet size is not yet known. A fifth continuation byte or an
// EOF mid-integer is malformed.
func readVarint(r io.Reader) (uint32, error) {
	var (
		buf        [1]byte
		multiplier uint32 = 1
		value      uint32
	)
	for i := 0; ; i++ {
		if i == 4 {
			// The specification allows four bytes maximum.
			return 0, fmt.Errorf("%w: remaining length exceeds four bytes", ErrMalformedPacket)
		}
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, mapReadErr(err)
		}
		b := buf[0]
		value += uint32(b&^byte(varintContinuation)) * multiplier
		if b&varintContinuation == 0 {
			return value, nil
		}
		multiplier *= 128
	}
}

// mapReadErr converts stream errors into the package's error taxonomy.
//
// A stream that ends mid-packet is malformed, not a transport failure: the
// peer closed without transmitting a whole packet. io.EOF at a packet
// boundary is handled by the caller before any body bytes are read.
func mapReadErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: unexpected end of stream", ErrMalformedPacket)
	}
	return err
}

// reader decodes the MQTT data representations from an in-memory packet
// body. All methods return ErrMalformedPacket when the body is exhausted
// early; the remaining length already bounded the slice, so overrun means
// the peer's length fields contradict each other.
type reader struct {
	buf []byte
	pos int
}

// remaining returns the number of unread body bytes.
func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) u8() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("%w: truncated body", ErrMalformedPacket)
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("%w: truncated body", ErrMalformedPacket)
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("%w: truncated body", ErrMalformedPacket)
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// varint decodes an in-body variable byte integer (used for property lengths).
func (r *reader) varint() (uint32, error) {
	var (
		multiplier uint32 = 1
		value      uint32
	)
	for i := 0; ; i++ {
		if i == 4 {
			return 0, fmt.Errorf("%w: variable byte integer exceeds four bytes", ErrMalformedPacket)
		}
		b, err := r.u8()
		if err != nil {
			return 0, err
		}
		value += uint32(b&^byte(varintContinuation)) * multiplier
		if b&varintContinuation == 0 {
			return value, nil
		}
		multiplier *= 128
	}
}

// str decodes a length-prefixed UTF-8 string.
func (r *reader) str() (string, error) {
	b, err := r.bin()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// bin decodes length-prefixed binary data. The returned slice aliases the
// packet body and must be copied if retained.
func (r *reader) bin() ([]byte, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	if r.remaining() < int(n) {
		return nil, fmt.Errorf("%w: string length %d exceeds body", ErrMalformedPacket, n)
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// rest consumes and returns all unread body bytes.
func (r *reader) rest() []byte {
	b := r.buf[r.pos:]
	r.pos = len(r.buf)
	return b
}

// properties skips an MQTT 5 property block: a varint length followed by
// that many bytes. Individual properties are not interpreted.
func (r *reader) properties() error {
	n, err := r.varint()
	if err != nil {
		return err
	}
	if r.remaining() < int(n) {
		return fmt.Errorf("%w: property length %d exceeds body", ErrMalformedPacket, n)
	}
	r.pos += int(n)
	return nil
}
