package packet

import (
	"fmt"
	"io"
)

// Decode reads exactly one control packet from r.
//
// It reads the fixed header first to learn the remaining length, then reads
// exactly that many further bytes, then parses the variable header and
// payload according to the packet type. Decode never reads past the end of
// the packet, so consecutive packets on the same stream decode cleanly.
//
// io.EOF is returned verbatim when the stream ends cleanly between packets.
// A stream that ends mid-packet, an unknown or reserved type code, invalid
// flags, or length fields that contradict each other all yield
// ErrMalformedPacket; the caller must treat that as fatal to the connection.
//
// Payload slices in the returned packet are freshly allocated and do not
// alias any internal buffer.
func Decode(r io.Reader) (Packet, error) {
	h, err := readFixedHeader(r)
	if err != nil {
		return nil, err
	}

	body := make([]byte, h.RemainingLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, mapReadErr(err)
	}
	br := &reader{buf: body}

	p, err := decodeBody(h, br)
	if err != nil {
		return nil, err
	}
	if br.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %s body", ErrMalformedPacket, br.remaining(), h.Type)
	}
	return p, nil
}

// decodeBody dispatches on the packet type. Types with mandated flag values
// are checked here; PUBLISH interprets its flags itself.
func decodeBody(h FixedHeader, r *reader) (Packet, error) {
	switch h.Type {
	case TypeConnect:
		return decodeConnect(h, r)
	case TypeConnack:
		return decodeConnack(h, r)
	case TypePublish:
		return decodePublish(h, r)
	case TypePuback, TypePubrec, TypePubrel, TypePubcomp:
		return decodeAck(h, r)
	case TypeSubscribe:
		return decodeSubscribe(h, r)
	case TypeSuback:
		return decodeSuback(h, r)
	case TypeUnsubscribe:
		return decodeUnsubscribe(h, r)
	case TypeUnsuback:
		return decodeUnsuback(h, r)
	case TypePingreq:
		if err := checkFlags(h, 0); err != nil {
			return nil, err
		}
		return &Pingreq{}, nil
	case TypePingresp:
		if err := checkFlags(h, 0); err != nil {
			return nil, err
		}
		return &Pingresp{}, nil
	case TypeDisconnect:
		return decodeDisconnect(h, r)
	case TypeAuth:
		// Enhanced authentication is not negotiated by this client, so an
		// AUTH packet can never be valid on its streams.
		return nil, fmt.Errorf("%w: AUTH not supported", ErrMalformedPacket)
	default:
		return nil, fmt.Errorf("%w: reserved packet type %d", ErrMalformedPacket, h.Type)
	}
}

func checkFlags(h FixedHeader, want byte) error {
	if h.Flags != want {
		return fmt.Errorf("%w: %s flags %#x, want %#x", ErrMalformedPacket, h.Type, h.Flags, want)
	}
	return nil
}

func decodeConnect(h FixedHeader, r *reader) (Packet, error) {
	if err := checkFlags(h, 0); err != nil {
		return nil, err
	}

	name, err := r.str()
	if err != nil {
		return nil, err
	}
	version, err := r.u8()
	if err != nil {
		return nil, err
	}
	if name != protocolName || version != protocolVersion {
		return nil, fmt.Errorf("%w: protocol %q version %d", ErrMalformedPacket, name, version)
	}

	flags, err := r.u8()
	if err != nil {
		return nil, err
	}
	p := &Connect{CleanStart: flags&connectFlagCleanStart != 0}

	if p.KeepAlive, err = r.u16(); err != nil {
		return nil, err
	}
	if err := r.properties(); err != nil {
		return nil, err
	}
	if p.ClientID, err = r.str(); err != nil {
		return nil, err
	}
	if flags&connectFlagWill != 0 {
		w := &Will{
			QoS:    flags >> connectWillQoSShift & 0x03,
			Retain: flags&connectFlagWillRetain != 0,
		}
		if err := r.properties(); err != nil {
			return nil, err
		}
		if w.Topic, err = r.str(); err != nil {
			return nil, err
		}
		payload, err := r.bin()
		if err != nil {
			return nil, err
		}
		w.Payload = append([]byte(nil), payload...)
		p.Will = w
	}
	if flags&connectFlagUsername != 0 {
		if p.Username, err = r.str(); err != nil {
			return nil, err
		}
	}
	if flags&connectFlagPassword != 0 {
		pw, err := r.bin()
		if err != nil {
			return nil, err
		}
		p.Password = append([]byte(nil), pw...)
	}
	return p, nil
}

func decodeConnack(h FixedHeader, r *reader) (Packet, error) {
	if err := checkFlags(h, 0); err != nil {
		return nil, err
	}

	ack, err := r.u8()
	if err != nil {
		return nil, err
	}
	if ack&^byte(0x01) != 0 {
		return nil, fmt.Errorf("%w: CONNACK acknowledge flags %#x", ErrMalformedPacket, ack)
	}
	reason, err := r.u8()
	if err != nil {
		return nil, err
	}
	if err := r.properties(); err != nil {
		return nil, err
	}
	return &Connack{
		SessionPresent: ack&0x01 != 0,
		ReasonCode:     ReasonCode(reason),
	}, nil
}

func decodePublish(h FixedHeader, r *reader) (Packet, error) {
	p := &Publish{
		Dup:    h.Flags&publishFlagDup != 0,
		QoS:    h.Flags >> publishQoSShift & 0x03,
		Retain: h.Flags&publishFlagRetain != 0,
	}
	if p.QoS == 3 {
		return nil, fmt.Errorf("%w: PUBLISH QoS 3", ErrMalformedPacket)
	}

	var err error
	if p.Topic, err = r.str(); err != nil {
		return nil, err
	}
	if p.QoS > 0 {
		if p.PacketID, err = r.u16(); err != nil {
			return nil, err
		}
		if p.PacketID == 0 {
			return nil, fmt.Errorf("%w: PUBLISH QoS %d with packet id 0", ErrMalformedPacket, p.QoS)
		}
	}
	if err := r.properties(); err != nil {
		return nil, err
	}
	p.Payload = append([]byte(nil), r.rest()...)
	return p, nil
}

// decodeAck handles the common PUBACK/PUBREC/PUBREL/PUBCOMP shape. The
// two-byte short form implies a success reason code; longer forms carry an
// explicit reason code and a property block.
func decodeAck(h FixedHeader, r *reader) (Packet, error) {
	wantFlags := byte(0)
	if h.Type == TypePubrel {
		wantFlags = flagsReserved
	}
	if err := checkFlags(h, wantFlags); err != nil {
		return nil, err
	}

	id, err := r.u16()
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, fmt.Errorf("%w: %s with packet id 0", ErrMalformedPacket, h.Type)
	}

	reason := ReasonSuccess
	if r.remaining() > 0 {
		b, err := r.u8()
		if err != nil {
			return nil, err
		}
		reason = ReasonCode(b)
	}
	if r.remaining() > 0 {
		if err := r.properties(); err != nil {
			return nil, err
		}
	}

	switch h.Type {
	case TypePuback:
		return &Puback{PacketID: id, ReasonCode: reason}, nil
	case TypePubrec:
		return &Pubrec{PacketID: id, ReasonCode: reason}, nil
	case TypePubrel:
		return &Pubrel{PacketID: id, ReasonCode: reason}, nil
	default:
		return &Pubcomp{PacketID: id, ReasonCode: reason}, nil
	}
}

func decodeSubscribe(h FixedHeader, r *reader) (Packet, error) {
	if err := checkFlags(h, flagsReserved); err != nil {
		return nil, err
	}

	p := &Subscribe{}
	var err error
	if p.PacketID, err = r.u16(); err != nil {
		return nil, err
	}
	if err := r.properties(); err != nil {
		return nil, err
	}
	for r.remaining() > 0 {
		var s Subscription
		if s.Topic, err = r.str(); err != nil {
			return nil, err
		}
		opts, err := r.u8()
		if err != nil {
			return nil, err
		}
		s.QoS = opts & 0x03
		p.Subscriptions = append(p.Subscriptions, s)
	}
	if len(p.Subscriptions) == 0 {
		return nil, fmt.Errorf("%w: SUBSCRIBE with no topic filters", ErrMalformedPacket)
	}
	return p, nil
}

func decodeSuback(h FixedHeader, r *reader) (Packet, error) {
	if err := checkFlags(h, 0); err != nil {
		return nil, err
	}

	p := &Suback{}
	var err error
	if p.PacketID, err = r.u16(); err != nil {
		return nil, err
	}
	if err := r.properties(); err != nil {
		return nil, err
	}
	for _, b := range r.rest() {
		p.ReasonCodes = append(p.ReasonCodes, ReasonCode(b))
	}
	if len(p.ReasonCodes) == 0 {
		return nil, fmt.Errorf("%w: SUBACK with no reason codes", ErrMalformedPacket)
	}
	return p, nil
}

func decodeUnsubscribe(h FixedHeader, r *reader) (Packet, error) {
	if err := checkFlags(h, flagsReserved); err != nil {
		return nil, err
	}

	p := &Unsubscribe{}
	var err error
	if p.PacketID, err = r.u16(); err != nil {
		return nil, err
	}
	if err := r.properties(); err != nil {
		return nil, err
	}
	for r.remaining() > 0 {
		t, err := r.str()
		if err != nil {
			return nil, err
		}
		p.Topics = append(p.Topics, t)
	}
	if len(p.Topics) == 0 {
		return nil, fmt.Errorf("%w: UNSUBSCRIBE with no topic filters", ErrMalformedPacket)
	}
	return p, nil
}

func decodeUnsuback(h FixedHeader, r *reader) (Packet, error) {
	if err := checkFlags(h, 0); err != nil {
		return nil, err
	}

	p := &Unsuback{}
	var err error
	if p.PacketID, err = r.u16(); err != nil {
		return nil, err
	}
	if err := r.properties(); err != nil {
		return nil, err
	}
	for _, b := range r.rest() {
		p.ReasonCodes = append(p.ReasonCodes, ReasonCode(b))
	}
	if len(p.ReasonCodes) == 0 {
		return nil, fmt.Errorf("%w: UNSUBACK with no reason codes", ErrMalformedPacket)
	}
	return p, nil
}

func decodeDisconnect(h FixedHeader, r *reader) (Packet, error) {
	if err := checkFlags(h, 0); err != nil {
		return nil, err
	}

	p := &Disconnect{ReasonCode: ReasonSuccess}
	if r.remaining() > 0 {
		b, err := r.u8()
		if err != nil {
			return nil, err
		}
		p.ReasonCode = ReasonCode(b)
	}
	if r.remaining() > 0 {
		if err := r.properties(); err != nil {
			return nil, err
		}
	}
	return p, nil
}
