package mqtt

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-mqtt/packet"
)

// Publish sends an application message to the broker.
//
// QoS 0 returns as soon as the packet is written. QoS 1 waits for PUBACK;
// QoS 2 waits for the full PUBREC/PUBREL/PUBCOMP exchange, with the run
// loop emitting the PUBREL. A broker rejection (error reason code in the
// acknowledgement) surfaces as ErrPublishRejected.
//
// Parameters:
//   - ctx: Bounds the wait for acknowledgement. Without a deadline the
//     client's default request timeout applies. Cancellation abandons the
//     wait; the packet may still reach the broker.
//   - topic: Destination topic. Must be non-empty.
//   - payload: Message body, up to 1 MiB.
//   - qos: Delivery guarantee, 0 to 2.
//   - retain: Ask the broker to keep the message for future subscribers.
//
// Returns:
//   - error: nil once the message is sent (QoS 0) or acknowledged
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	if topic == "" {
		return fmt.Errorf("%w: topic is empty", ErrInvalidTopic)
	}
	if qos > 2 {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	if qos == 0 {
		return c.send(&packet.Publish{
			Topic:   topic,
			Payload: payload,
			Retain:  retain,
		})
	}

	want := []packet.Type{packet.TypePuback}
	if qos == 2 {
		want = []packet.Type{packet.TypePubrec, packet.TypePubcomp}
	}

	// Register before sending: the acknowledgement may arrive before the
	// write call even returns.
	p, err := c.table.add(want...)
	if err != nil {
		return err
	}

	pub := &packet.Publish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retain:   retain,
		PacketID: p.id,
	}
	if err := c.send(pub); err != nil {
		c.table.cancel(p.id)
		return err
	}

	ack, err := c.await(ctx, p)
	if err != nil {
		return err
	}

	var reason packet.ReasonCode
	switch a := ack.(type) {
	case *packet.Puback:
		reason = a.ReasonCode
	case *packet.Pubrec:
		reason = a.ReasonCode
	case *packet.Pubcomp:
		reason = a.ReasonCode
	}
	if reason.IsError() {
		return fmt.Errorf("%w: reason 0x%02x", ErrPublishRejected, byte(reason))
	}
	return nil
}

// Subscribe registers one or more topic filters with the broker.
//
// The returned reason codes correspond positionally to the requested
// subscriptions; a code can individually grant a lower QoS or report a
// per-filter failure even when the call as a whole succeeds. Messages for
// all filters arrive on the single Messages() queue.
//
// Parameters:
//   - ctx: Bounds the wait for SUBACK. Without a deadline the client's
//     default request timeout applies.
//   - subs: Topic filters with their requested maximum QoS.
//
// Returns:
//   - []packet.ReasonCode: Per-filter broker verdicts, in request order
//   - error: nil when the SUBACK arrived and matched the request
func (c *Client) Subscribe(ctx context.Context, subs ...packet.Subscription) ([]packet.ReasonCode, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: no topic filters", ErrInvalidTopic)
	}
	for _, s := range subs {
		if s.Topic == "" {
			return nil, fmt.Errorf("%w: topic filter is empty", ErrInvalidTopic)
		}
		if s.QoS > 2 {
			return nil, fmt.Errorf("%w: %d for filter %q", ErrInvalidQoS, s.QoS, s.Topic)
		}
	}
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}

	p, err := c.table.add(packet.TypeSuback)
	if err != nil {
		return nil, err
	}

	req := &packet.Subscribe{
		PacketID:      p.id,
		Subscriptions: subs,
	}
	if err := c.send(req); err != nil {
		c.table.cancel(p.id)
		return nil, err
	}

	ack, err := c.await(ctx, p)
	if err != nil {
		return nil, err
	}

	sa := ack.(*packet.Suback)
	if len(sa.ReasonCodes) != len(subs) {
		return nil, fmt.Errorf("%w: SUBACK carries %d reason codes for %d filters",
			ErrProtocolViolation, len(sa.ReasonCodes), len(subs))
	}
	return sa.ReasonCodes, nil
}

// Unsubscribe removes one or more topic filters from the broker.
//
// Parameters:
//   - ctx: Bounds the wait for UNSUBACK. Without a deadline the client's
//     default request timeout applies.
//   - filters: Topic filters to remove, as originally subscribed.
//
// Returns:
//   - []packet.ReasonCode: Per-filter broker verdicts, in request order
//   - error: nil when the UNSUBACK arrived and matched the request
func (c *Client) Unsubscribe(ctx context.Context, filters ...string) ([]packet.ReasonCode, error) {
	if len(filters) == 0 {
		return nil, fmt.Errorf("%w: no topic filters", ErrInvalidTopic)
	}
	for _, f := range filters {
		if f == "" {
			return nil, fmt.Errorf("%w: topic filter is empty", ErrInvalidTopic)
		}
	}
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}

	p, err := c.table.add(packet.TypeUnsuback)
	if err != nil {
		return nil, err
	}

	req := &packet.Unsubscribe{
		PacketID:     p.id,
		Topics:   filters,
	}
	if err := c.send(req); err != nil {
		c.table.cancel(p.id)
		return nil, err
	}

	ack, err := c.await(ctx, p)
	if err != nil {
		return nil, err
	}

	ua := ack.(*packet.Unsuback)
	if len(ua.ReasonCodes) != len(filters) {
		return nil, fmt.Errorf("%w: UNSUBACK carries %d reason codes for %d filters",
			ErrProtocolViolation, len(ua.ReasonCodes), len(filters))
	}
	return ua.ReasonCodes, nil
}

// await blocks until the pending request resolves or ctx gives up.
//
// On cancellation the table entry is released so the identifier can be
// reused; a late acknowledgement for it is then dropped as unmatched by
// the run loop. A deadline expiry is reported as ErrRequestTimeout.
func (c *Client) await(ctx context.Context, p *pending) (packet.Packet, error) {
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	select {
	case res := <-p.done:
		return res.pkt, res.err

	case <-ctx.Done():
		c.table.cancel(p.id)

		// The run loop may have fulfilled the entry between ctx firing
		// and the cancel taking effect; prefer the real result.
		select {
		case res := <-p.done:
			return res.pkt, res.err
		default:
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: no acknowledgement for packet id %d", ErrRequestTimeout, p.id)
		}
		return nil, ctx.Err()
	}
}
