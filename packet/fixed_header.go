package packet

import (
	"fmt"
	"io"
)

// FixedHeader is the two-to-five byte prefix of every control packet:
// the packet type in the upper nibble of the first byte, type-specific
// flags in the lower nibble, and the remaining length as a variable byte
// integer.
type FixedHeader struct {
	Type            Type
	Flags           byte
	RemainingLength uint32
}

// readFixedHeader reads and decodes a fixed header from r.
//
// io.EOF on the very first byte is returned verbatim so callers can tell a
// cleanly closed stream from one that died mid-packet.
func readFixedHeader(r io.Reader) (FixedHeader, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF {
			return FixedHeader{}, io.EOF
		}
		return FixedHeader{}, mapReadErr(err)
	}

	h := FixedHeader{
		Type:  Type(buf[0] >> 4),
		Flags: buf[0] & 0x0F,
	}

	length, err := readVarint(r)
	if err != nil {
		return FixedHeader{}, err
	}
	h.RemainingLength = length
	return h, nil
}

// appendTo encodes the fixed header onto dst.
func (h FixedHeader) appendTo(dst []byte) []byte {
	dst = append(dst, byte(h.Type)<<4|h.Flags&0x0F)
	return appendVarint(dst, h.RemainingLength)
}

func (h FixedHeader) String() string {
	return fmt.Sprintf("%s flags=%#x len=%d", h.Type, h.Flags, h.RemainingLength)
}
