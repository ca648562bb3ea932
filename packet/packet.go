package packet

// Type identifies an MQTT control packet. It occupies the upper four bits
// of the first byte of the fixed header.
type Type byte

// Control packet types per MQTT 5 specification section 2.1.2.
const (
	TypeReserved    Type = 0
	TypeConnect     Type = 1
	TypeConnack     Type = 2
	TypePublish     Type = 3
	TypePuback      Type = 4
	TypePubrec      Type = 5
	TypePubrel      Type = 6
	TypePubcomp     Type = 7
	TypeSubscribe   Type = 8
	TypeSuback      Type = 9
	TypeUnsubscribe Type = 10
	TypeUnsuback    Type = 11
	TypePingreq     Type = 12
	TypePingresp    Type = 13
	TypeDisconnect  Type = 14
	TypeAuth        Type = 15
)

// typeNames maps packet types to their specification names.
var typeNames = [16]string{
	"RESERVED", "CONNECT", "CONNACK", "PUBLISH",
	"PUBACK", "PUBREC", "PUBREL", "PUBCOMP",
	"SUBSCRIBE", "SUBACK", "UNSUBSCRIBE", "UNSUBACK",
	"PINGREQ", "PINGRESP", "DISCONNECT", "AUTH",
}

// String returns the specification name of the packet type.
func (t Type) String() string {
	if t > TypeAuth {
		return "UNKNOWN"
	}
	return typeNames[t]
}

// ReasonCode is an MQTT 5 reason code carried by acknowledgement packets.
// Values below 0x80 indicate success; 0x80 and above indicate failure.
type ReasonCode byte

// Common reason codes. The full table lives in MQTT 5 specification
// section 2.4; only the values this client inspects are named here.
const (
	ReasonSuccess                ReasonCode = 0x00
	ReasonGrantedQoS1            ReasonCode = 0x01
	ReasonGrantedQoS2            ReasonCode = 0x02
	ReasonNoMatchingSubscribers  ReasonCode = 0x10
	ReasonUnspecifiedError       ReasonCode = 0x80
	ReasonNotAuthorized          ReasonCode = 0x87
	ReasonPacketIdentifierInUse  ReasonCode = 0x91
	ReasonQuotaExceeded          ReasonCode = 0x97
	ReasonPayloadFormatInvalid   ReasonCode = 0x99
	ReasonRetainNotSupported     ReasonCode = 0x9A
	ReasonQoSNotSupported        ReasonCode = 0x9B
	ReasonUseAnotherServer       ReasonCode = 0x9C
	ReasonTopicFilterInvalid     ReasonCode = 0x8F
	ReasonTopicNameInvalid       ReasonCode = 0x90
	ReasonMessageRateTooHigh     ReasonCode = 0x96
	ReasonSessionTakenOver       ReasonCode = 0x8E
	ReasonServerShuttingDown     ReasonCode = 0x8B
	ReasonKeepAliveTimeout       ReasonCode = 0x8D
	ReasonMalformedPacketReceive ReasonCode = 0x81
	ReasonProtocolError          ReasonCode = 0x82
)

// IsError reports whether the reason code indicates failure.
func (r ReasonCode) IsError() bool {
	return r >= 0x80
}

// Packet is implemented by every MQTT control packet.
//
// The interface is sealed: the encode methods are unexported so that the
// set of packet types is closed to this package, which keeps Decode's type
// switch exhaustive.
type Packet interface {
	// Type returns the control packet type.
	Type() Type

	// flags returns the lower four bits of the fixed header's first byte.
	flags() byte

	// body appends the variable header and payload to dst.
	body(dst []byte) ([]byte, error)
}
