package packet

import "errors"

// Sentinel errors for packet encoding and decoding.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedPacket indicates the byte stream violates the MQTT 5
	// control-packet grammar: an invalid type or flag combination, a
	// remaining-length integer longer than four bytes, a length field that
	// contradicts the packet body, or a stream that ended mid-packet.
	//
	// The stream has no resynchronisation markers, so this error is fatal
	// to the connection it was read from.
	ErrMalformedPacket = errors.New("packet: malformed packet")

	// ErrPayloadTooLarge indicates an outgoing packet body exceeds the
	// maximum encodable remaining length (268,435,455 bytes).
	ErrPayloadTooLarge = errors.New("packet: payload exceeds maximum remaining length")
)
