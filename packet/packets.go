package packet

import "fmt"

// MQTT protocol identity sent in the CONNECT variable header.
const (
	protocolName    = "MQTT"
	protocolVersion = 5
)

// CONNECT flag bits per MQTT 5 specification section 3.1.2.3.
const (
	connectFlagUsername   = 0x80
	connectFlagPassword   = 0x40
	connectFlagWillRetain = 0x20
	connectFlagWill       = 0x04
	connectFlagCleanStart = 0x02
	connectWillQoSShift   = 3
)

// PUBLISH fixed-header flag bits.
const (
	publishFlagDup    = 0x08
	publishFlagRetain = 0x01
	publishQoSShift   = 1
)

// flagsReserved is the mandatory flag nibble for SUBSCRIBE, UNSUBSCRIBE
// and PUBREL packets.
const flagsReserved = 0x02

// Will describes a Last Will and Testament message registered at connect
// time and published by the broker on ungraceful disconnect.
type Will struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Connect is the first packet a client sends on a fresh stream.
type Connect struct {
	ClientID   string
	CleanStart bool

	// KeepAlive is the negotiated keepalive interval in seconds.
	// Zero disables broker-side keepalive enforcement.
	KeepAlive uint16

	Username string
	Password []byte
	Will     *Will
}

func (*Connect) Type() Type  { return TypeConnect }
func (*Connect) flags() byte { return 0 }

func (p *Connect) body(dst []byte) ([]byte, error) {
	if err := checkString("client id", p.ClientID); err != nil {
		return nil, err
	}

	var flags byte
	if p.CleanStart {
		flags |= connectFlagCleanStart
	}
	if p.Will != nil {
		flags |= connectFlagWill | p.Will.QoS<<connectWillQoSShift
		if p.Will.Retain {
			flags |= connectFlagWillRetain
		}
	}
	if p.Username != "" {
		flags |= connectFlagUsername
	}
	if p.Password != nil {
		flags |= connectFlagPassword
	}

	dst = appendString(dst, protocolName)
	dst = appendU8(dst, protocolVersion)
	dst = appendU8(dst, flags)
	dst = appendU16(dst, p.KeepAlive)
	dst = appendVarint(dst, 0) // properties

	dst = appendString(dst, p.ClientID)
	if p.Will != nil {
		if err := checkString("will topic", p.Will.Topic); err != nil {
			return nil, err
		}
		dst = appendVarint(dst, 0) // will properties
		dst = appendString(dst, p.Will.Topic)
		dst = appendBinary(dst, p.Will.Payload)
	}
	if p.Username != "" {
		if err := checkString("username", p.Username); err != nil {
			return nil, err
		}
		dst = appendString(dst, p.Username)
	}
	if p.Password != nil {
		dst = appendBinary(dst, p.Password)
	}
	return dst, nil
}

// Connack is the broker's response to Connect.
type Connack struct {
	SessionPresent bool
	ReasonCode     ReasonCode
}

func (*Connack) Type() Type  { return TypeConnack }
func (*Connack) flags() byte { return 0 }

func (p *Connack) body(dst []byte) ([]byte, error) {
	var ack byte
	if p.SessionPresent {
		ack = 0x01
	}
	dst = appendU8(dst, ack)
	dst = appendU8(dst, byte(p.ReasonCode))
	dst = appendVarint(dst, 0) // properties
	return dst, nil
}

// Publish carries an application message in either direction.
type Publish struct {
	Dup    bool
	QoS    byte
	Retain bool
	Topic  string

	// PacketID correlates the acknowledgement flow. Present only when
	// QoS > 0; must be zero otherwise.
	PacketID uint16

	Payload []byte
}

func (*Publish) Type() Type { return TypePublish }

func (p *Publish) flags() byte {
	f := p.QoS << publishQoSShift
	if p.Dup {
		f |= publishFlagDup
	}
	if p.Retain {
		f |= publishFlagRetain
	}
	return f
}

func (p *Publish) body(dst []byte) ([]byte, error) {
	if err := checkString("topic", p.Topic); err != nil {
		return nil, err
	}
	dst = appendString(dst, p.Topic)
	if p.QoS > 0 {
		dst = appendU16(dst, p.PacketID)
	}
	dst = appendVarint(dst, 0) // properties
	return append(dst, p.Payload...), nil
}

// Puback acknowledges a QoS 1 publish.
type Puback struct {
	PacketID   uint16
	ReasonCode ReasonCode
}

func (*Puback) Type() Type  { return TypePuback }
func (*Puback) flags() byte { return 0 }

func (p *Puback) body(dst []byte) ([]byte, error) {
	return ackBody(dst, p.PacketID, p.ReasonCode), nil
}

// Pubrec is the first broker response in a QoS 2 publish handshake.
type Pubrec struct {
	PacketID   uint16
	ReasonCode ReasonCode
}

func (*Pubrec) Type() Type  { return TypePubrec }
func (*Pubrec) flags() byte { return 0 }

func (p *Pubrec) body(dst []byte) ([]byte, error) {
	return ackBody(dst, p.PacketID, p.ReasonCode), nil
}

// Pubrel is the release step of a QoS 2 handshake. Its fixed-header flags
// are mandated to be 0b0010.
type Pubrel struct {
	PacketID   uint16
	ReasonCode ReasonCode
}

func (*Pubrel) Type() Type  { return TypePubrel }
func (*Pubrel) flags() byte { return flagsReserved }

func (p *Pubrel) body(dst []byte) ([]byte, error) {
	return ackBody(dst, p.PacketID, p.ReasonCode), nil
}

// Pubcomp completes a QoS 2 handshake.
type Pubcomp struct {
	PacketID   uint16
	ReasonCode ReasonCode
}

func (*Pubcomp) Type() Type  { return TypePubcomp }
func (*Pubcomp) flags() byte { return 0 }

func (p *Pubcomp) body(dst []byte) ([]byte, error) {
	return ackBody(dst, p.PacketID, p.ReasonCode), nil
}

// ackBody encodes the shared PUBACK/PUBREC/PUBREL/PUBCOMP variable header.
// A success with no properties is encoded in the two-byte short form the
// specification permits.
func ackBody(dst []byte, id uint16, reason ReasonCode) []byte {
	dst = appendU16(dst, id)
	if reason != ReasonSuccess {
		dst = appendU8(dst, byte(reason))
		dst = appendVarint(dst, 0) // properties
	}
	return dst
}

// Subscription is one topic filter within a Subscribe packet.
type Subscription struct {
	Topic string

	// QoS is the maximum delivery level requested for matching messages.
	QoS byte
}

// Subscribe requests delivery of messages matching one or more filters.
type Subscribe struct {
	PacketID      uint16
	Subscriptions []Subscription
}

func (*Subscribe) Type() Type  { return TypeSubscribe }
func (*Subscribe) flags() byte { return flagsReserved }

func (p *Subscribe) body(dst []byte) ([]byte, error) {
	dst = appendU16(dst, p.PacketID)
	dst = appendVarint(dst, 0) // properties
	for _, s := range p.Subscriptions {
		if err := checkString("topic filter", s.Topic); err != nil {
			return nil, err
		}
		dst = appendString(dst, s.Topic)
		dst = appendU8(dst, s.QoS) // subscription options: QoS bits only
	}
	return dst, nil
}

// Suback carries one reason code per filter in the matching Subscribe.
type Suback struct {
	PacketID    uint16
	ReasonCodes []ReasonCode
}

func (*Suback) Type() Type  { return TypeSuback }
func (*Suback) flags() byte { return 0 }

func (p *Suback) body(dst []byte) ([]byte, error) {
	dst = appendU16(dst, p.PacketID)
	dst = appendVarint(dst, 0) // properties
	for _, rc := range p.ReasonCodes {
		dst = appendU8(dst, byte(rc))
	}
	return dst, nil
}

// Unsubscribe removes one or more topic filters.
type Unsubscribe struct {
	PacketID uint16
	Topics   []string
}

func (*Unsubscribe) Type() Type  { return TypeUnsubscribe }
func (*Unsubscribe) flags() byte { return flagsReserved }

func (p *Unsubscribe) body(dst []byte) ([]byte, error) {
	dst = appendU16(dst, p.PacketID)
	dst = appendVarint(dst, 0) // properties
	for _, t := range p.Topics {
		if err := checkString("topic filter", t); err != nil {
			return nil, err
		}
		dst = appendString(dst, t)
	}
	return dst, nil
}

// Unsuback carries one reason code per filter in the matching Unsubscribe.
type Unsuback struct {
	PacketID    uint16
	ReasonCodes []ReasonCode
}

func (*Unsuback) Type() Type  { return TypeUnsuback }
func (*Unsuback) flags() byte { return 0 }

func (p *Unsuback) body(dst []byte) ([]byte, error) {
	dst = appendU16(dst, p.PacketID)
	dst = appendVarint(dst, 0) // properties
	for _, rc := range p.ReasonCodes {
		dst = appendU8(dst, byte(rc))
	}
	return dst, nil
}

// Pingreq is the keepalive probe. It has no body.
type Pingreq struct{}

func (*Pingreq) Type() Type                      { return TypePingreq }
func (*Pingreq) flags() byte                     { return 0 }
func (*Pingreq) body(dst []byte) ([]byte, error) { return dst, nil }

// Pingresp answers a Pingreq. It has no body.
type Pingresp struct{}

func (*Pingresp) Type() Type                      { return TypePingresp }
func (*Pingresp) flags() byte                     { return 0 }
func (*Pingresp) body(dst []byte) ([]byte, error) { return dst, nil }

// Disconnect ends the MQTT session in either direction. A normal
// disconnection with no properties is encoded with an empty body.
type Disconnect struct {
	ReasonCode ReasonCode
}

func (*Disconnect) Type() Type  { return TypeDisconnect }
func (*Disconnect) flags() byte { return 0 }

func (p *Disconnect) body(dst []byte) ([]byte, error) {
	if p.ReasonCode == ReasonSuccess {
		return dst, nil
	}
	dst = appendU8(dst, byte(p.ReasonCode))
	dst = appendVarint(dst, 0) // properties
	return dst, nil
}

// checkString rejects strings that cannot be length-prefixed with a u16.
func checkString(what, s string) error {
	if len(s) > maxStringLen {
		return fmt.Errorf("%w: %s is %d bytes", ErrPayloadTooLarge, what, len(s))
	}
	return nil
}
