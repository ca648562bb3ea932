package packet

import "io"

// Encode serialises p and writes it to w as a single Write call.
//
// The whole packet is assembled in memory first so the sink observes one
// contiguous byte sequence per packet; interleaving protection across
// concurrent callers is the caller's responsibility (the client holds its
// write lock around Encode).
//
// Errors from w are returned verbatim; encoding itself fails only when a
// field cannot be represented in the wire format (ErrPayloadTooLarge).
func Encode(w io.Writer, p Packet) error {
	body, err := p.body(make([]byte, 0, 64))
	if err != nil {
		return err
	}
	if len(body) > maxVarint {
		return ErrPayloadTooLarge
	}

	h := FixedHeader{
		Type:            p.Type(),
		Flags:           p.flags(),
		RemainingLength: uint32(len(body)),
	}
	buf := h.appendTo(make([]byte, 0, len(body)+5))
	buf = append(buf, body...)

	_, err = w.Write(buf)
	return err
}
