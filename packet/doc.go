// Package packet implements the MQTT 5 control-packet wire format.
//
// This package handles:
//   - Fixed header encoding/decoding (packet type, flags, remaining length)
//   - The MQTT data representations (integers, variable byte integers,
//     UTF-8 strings, binary data)
//   - Typed structs for every control packet a client sends or receives
//   - Whole-packet Encode/Decode over an io.Writer/io.Reader
//
// # Grammar
//
// Every control packet is: fixed header (type nibble + flags byte, then the
// remaining length as a variable byte integer of at most four bytes),
// followed by exactly that many bytes of type-specific variable header and
// payload. The stream carries no self-synchronising markers, so a single
// malformed packet poisons everything after it: callers must treat
// ErrMalformedPacket as fatal to the connection and never attempt to resync.
//
// # Properties
//
// MQTT 5 property blocks are encoded as empty sets on output and skipped
// (length-correctly) on input. Reason codes are surfaced; individual
// properties are not interpreted. See DESIGN.md for the rationale.
//
// # Usage
//
//	pkt, err := packet.Decode(conn)
//	if err != nil {
//	    // errors.Is(err, packet.ErrMalformedPacket) => close the connection
//	}
//
//	err = packet.Encode(conn, &packet.Pingreq{})
package packet
