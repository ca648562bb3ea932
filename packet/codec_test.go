package packet

import (
	"bytes"
	"errors"
	"testing"
)

// roundtrip encodes p and decodes the result, failing the test on any error.
func roundtrip(t *testing.T, p Packet) Packet {
	t.Helper()

	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		t.Fatalf("Encode(%s) error = %v", p.Type(), err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode(%s) error = %v", p.Type(), err)
	}
	if buf.Len() != 0 {
		t.Fatalf("Decode(%s) left %d bytes unread", p.Type(), buf.Len())
	}
	return got
}

// =============================================================================
// Connection Packets
// =============================================================================

func TestCodec_Connect(t *testing.T) {
	in := &Connect{
		ClientID:   "graylogic-probe",
		CleanStart: true,
		KeepAlive:  60,
		Username:   "bridge",
		Password:   []byte("secret"),
		Will: &Will{
			Topic:   "graylogic/system/status",
			Payload: []byte(`{"status":"offline"}`),
			QoS:     1,
			Retain:  true,
		},
	}

	got, ok := roundtrip(t, in).(*Connect)
	if !ok {
		t.Fatal("decoded packet is not *Connect")
	}
	if got.ClientID != in.ClientID {
		t.Errorf("ClientID = %q, want %q", got.ClientID, in.ClientID)
	}
	if !got.CleanStart {
		t.Error("CleanStart = false, want true")
	}
	if got.KeepAlive != 60 {
		t.Errorf("KeepAlive = %d, want 60", got.KeepAlive)
	}
	if got.Username != "bridge" || string(got.Password) != "secret" {
		t.Errorf("credentials = %q/%q, want bridge/secret", got.Username, got.Password)
	}
	if got.Will == nil {
		t.Fatal("Will = nil, want set")
	}
	if got.Will.Topic != in.Will.Topic || got.Will.QoS != 1 || !got.Will.Retain {
		t.Errorf("Will = %+v, want %+v", got.Will, in.Will)
	}
}

func TestCodec_Connect_MinimalWireForm(t *testing.T) {
	// Exact bytes for the smallest useful CONNECT: clean start, client id "a",
	// keepalive 10, no auth, no will.
	in := &Connect{ClientID: "a", CleanStart: true, KeepAlive: 10}

	var buf bytes.Buffer
	if err := Encode(&buf, in); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := []byte{
		0x10, 0x0E, // fixed header: CONNECT, remaining length 14
		0x00, 0x04, 'M', 'Q', 'T', 'T', // protocol name
		0x05,       // protocol version
		0x02,       // connect flags: clean start
		0x00, 0x0A, // keepalive
		0x00,           // properties
		0x00, 0x01, 'a', // client id
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Encode() = %#v, want %#v", buf.Bytes(), want)
	}
}

func TestCodec_Connack(t *testing.T) {
	got, ok := roundtrip(t, &Connack{SessionPresent: true, ReasonCode: ReasonNotAuthorized}).(*Connack)
	if !ok {
		t.Fatal("decoded packet is not *Connack")
	}
	if !got.SessionPresent {
		t.Error("SessionPresent = false, want true")
	}
	if got.ReasonCode != ReasonNotAuthorized {
		t.Errorf("ReasonCode = %#x, want %#x", got.ReasonCode, ReasonNotAuthorized)
	}
	if !got.ReasonCode.IsError() {
		t.Error("IsError() = false, want true")
	}
}

func TestCodec_Disconnect(t *testing.T) {
	// Normal disconnection encodes with an empty body.
	var buf bytes.Buffer
	if err := Encode(&buf, &Disconnect{}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0xE0, 0x00}) {
		t.Errorf("Encode() = %#v, want [0xe0 0x00]", buf.Bytes())
	}

	got, ok := roundtrip(t, &Disconnect{ReasonCode: ReasonServerShuttingDown}).(*Disconnect)
	if !ok {
		t.Fatal("decoded packet is not *Disconnect")
	}
	if got.ReasonCode != ReasonServerShuttingDown {
		t.Errorf("ReasonCode = %#x, want %#x", got.ReasonCode, ReasonServerShuttingDown)
	}
}

// =============================================================================
// Publish Flow Packets
// =============================================================================

func TestCodec_Publish_QoS0(t *testing.T) {
	in := &Publish{Topic: "graylogic/state/knx/light", Payload: []byte(`{"on":true}`), Retain: true}

	got, ok := roundtrip(t, in).(*Publish)
	if !ok {
		t.Fatal("decoded packet is not *Publish")
	}
	if got.Topic != in.Topic {
		t.Errorf("Topic = %q, want %q", got.Topic, in.Topic)
	}
	if !bytes.Equal(got.Payload, in.Payload) {
		t.Errorf("Payload = %q, want %q", got.Payload, in.Payload)
	}
	if got.QoS != 0 || got.PacketID != 0 {
		t.Errorf("QoS/PacketID = %d/%d, want 0/0", got.QoS, got.PacketID)
	}
	if !got.Retain {
		t.Error("Retain = false, want true")
	}
}

func TestCodec_Publish_QoS2WithID(t *testing.T) {
	in := &Publish{Topic: "a/b", QoS: 2, PacketID: 7, Dup: true, Payload: []byte("x")}

	got, ok := roundtrip(t, in).(*Publish)
	if !ok {
		t.Fatal("decoded packet is not *Publish")
	}
	if got.QoS != 2 || got.PacketID != 7 || !got.Dup {
		t.Errorf("decoded = %+v, want QoS 2, id 7, dup", got)
	}
}

func TestCodec_Publish_EmptyPayload(t *testing.T) {
	got, ok := roundtrip(t, &Publish{Topic: "t"}).(*Publish)
	if !ok {
		t.Fatal("decoded packet is not *Publish")
	}
	if len(got.Payload) != 0 {
		t.Errorf("Payload length = %d, want 0", len(got.Payload))
	}
}

func TestCodec_Acks(t *testing.T) {
	tests := []struct {
		name string
		pkt  Packet
	}{
		{"puback", &Puback{PacketID: 1}},
		{"puback with reason", &Puback{PacketID: 2, ReasonCode: ReasonQuotaExceeded}},
		{"pubrec", &Pubrec{PacketID: 3}},
		{"pubrel", &Pubrel{PacketID: 4}},
		{"pubcomp", &Pubcomp{PacketID: 5, ReasonCode: ReasonPacketIdentifierInUse}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundtrip(t, tt.pkt)
			if got.Type() != tt.pkt.Type() {
				t.Errorf("Type = %v, want %v", got.Type(), tt.pkt.Type())
			}
		})
	}
}

func TestCodec_Ack_ShortFormImpliesSuccess(t *testing.T) {
	// PUBACK id 9 in the two-byte short form.
	data := []byte{0x40, 0x02, 0x00, 0x09}

	got, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	ack, ok := got.(*Puback)
	if !ok {
		t.Fatalf("Decode() = %T, want *Puback", got)
	}
	if ack.PacketID != 9 || ack.ReasonCode != ReasonSuccess {
		t.Errorf("decoded = %+v, want id 9, success", ack)
	}
}

// =============================================================================
// Subscription Packets
// =============================================================================

func TestCodec_SubscribeSuback(t *testing.T) {
	sub := &Subscribe{
		PacketID: 11,
		Subscriptions: []Subscription{
			{Topic: "graylogic/state/#", QoS: 1},
			{Topic: "graylogic/ack/+/+", QoS: 2},
		},
	}

	got, ok := roundtrip(t, sub).(*Subscribe)
	if !ok {
		t.Fatal("decoded packet is not *Subscribe")
	}
	if got.PacketID != 11 || len(got.Subscriptions) != 2 {
		t.Fatalf("decoded = %+v, want id 11 with 2 filters", got)
	}
	if got.Subscriptions[1].Topic != "graylogic/ack/+/+" || got.Subscriptions[1].QoS != 2 {
		t.Errorf("second filter = %+v", got.Subscriptions[1])
	}

	ack, ok := roundtrip(t, &Suback{PacketID: 11, ReasonCodes: []ReasonCode{ReasonGrantedQoS1, ReasonNotAuthorized}}).(*Suback)
	if !ok {
		t.Fatal("decoded packet is not *Suback")
	}
	if ack.PacketID != 11 || len(ack.ReasonCodes) != 2 || ack.ReasonCodes[1] != ReasonNotAuthorized {
		t.Errorf("decoded = %+v", ack)
	}
}

func TestCodec_UnsubscribeUnsuback(t *testing.T) {
	got, ok := roundtrip(t, &Unsubscribe{PacketID: 12, Topics: []string{"a/#", "b"}}).(*Unsubscribe)
	if !ok {
		t.Fatal("decoded packet is not *Unsubscribe")
	}
	if got.PacketID != 12 || len(got.Topics) != 2 || got.Topics[0] != "a/#" {
		t.Errorf("decoded = %+v", got)
	}

	ack, ok := roundtrip(t, &Unsuback{PacketID: 12, ReasonCodes: []ReasonCode{ReasonSuccess, ReasonSuccess}}).(*Unsuback)
	if !ok {
		t.Fatal("decoded packet is not *Unsuback")
	}
	if ack.PacketID != 12 || len(ack.ReasonCodes) != 2 {
		t.Errorf("decoded = %+v", ack)
	}
}

func TestCodec_Pings(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, &Pingreq{}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0xC0, 0x00}) {
		t.Errorf("PINGREQ bytes = %#v, want [0xc0 0x00]", buf.Bytes())
	}

	if _, ok := roundtrip(t, &Pingresp{}).(*Pingresp); !ok {
		t.Error("decoded packet is not *Pingresp")
	}
}

// =============================================================================
// Malformed Input
// =============================================================================

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"reserved type", []byte{0x00, 0x00}},
		{"auth packet", []byte{0xF0, 0x00}},
		{"publish qos 3", []byte{0x36, 0x03, 0x00, 0x01, 'a'}},
		{"publish qos1 id zero", []byte{0x32, 0x06, 0x00, 0x01, 'a', 0x00, 0x00, 0x00}},
		{"pingreq with flags", []byte{0xC1, 0x00}},
		{"pubrel without mandated flags", []byte{0x60, 0x02, 0x00, 0x01}},
		{"puback id zero", []byte{0x40, 0x02, 0x00, 0x00}},
		{"truncated body", []byte{0x40, 0x02, 0x00}},
		{"remaining length overflows", []byte{0x40, 0x80, 0x80, 0x80, 0x80, 0x01}},
		{"suback no codes", []byte{0x90, 0x03, 0x00, 0x01, 0x00}},
		{"connack bad ack flags", []byte{0x20, 0x03, 0x02, 0x00, 0x00}},
		{"connack trailing bytes", []byte{0x20, 0x04, 0x00, 0x00, 0x00, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrMalformedPacket) {
				t.Errorf("Decode() error = %v, want ErrMalformedPacket", err)
			}
		})
	}
}

func TestEncode_OversizeString(t *testing.T) {
	topic := string(make([]byte, maxStringLen+1))

	var buf bytes.Buffer
	err := Encode(&buf, &Publish{Topic: topic})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Encode() error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestDecode_ConsecutivePackets(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, &Publish{Topic: "first", Payload: []byte("1")}); err != nil {
		t.Fatal(err)
	}
	if err := Encode(&buf, &Puback{PacketID: 3}); err != nil {
		t.Fatal(err)
	}

	p1, err := Decode(&buf)
	if err != nil {
		t.Fatalf("first Decode() error = %v", err)
	}
	if p1.Type() != TypePublish {
		t.Errorf("first packet type = %v, want PUBLISH", p1.Type())
	}

	p2, err := Decode(&buf)
	if err != nil {
		t.Fatalf("second Decode() error = %v", err)
	}
	if p2.Type() != TypePuback {
		t.Errorf("second packet type = %v, want PUBACK", p2.Type())
	}
}
