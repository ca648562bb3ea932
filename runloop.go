package mqtt

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/gray-logic-mqtt/packet"
)

// readPackets decodes packets off the transport and feeds them to the run
// loop. It exits on the first read error (after delivering it) or when the
// connection has terminated.
func (c *Client) readPackets() {
	for {
		pkt, err := packet.Decode(c.conn)

		select {
		case c.inbound <- readResult{pkt: pkt, err: err}:
		case <-c.done:
			return
		}

		// Framing can never resynchronize after a bad or short read, so
		// any error ends this goroutine for good.
		if err != nil {
			return
		}
	}
}

// run is the single event loop that owns all inbound dispatch, keepalive
// and termination. It runs until the connection ends, then performs the
// terminal sweep exactly once.
func (c *Client) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		var deadline <-chan time.Time
		if c.opts.keepAlive > 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.untilKeepAliveEvent())
			deadline = timer.C
		}

		select {
		case res := <-c.inbound:
			if res.err != nil {
				c.terminate(c.classifyReadError(res.err))
				return
			}
			if err := c.dispatch(res.pkt); err != nil {
				c.terminate(err)
				return
			}

		case <-deadline:
			if err := c.keepaliveTick(); err != nil {
				c.terminate(err)
				return
			}

		case <-c.quit:
			c.terminate(nil)
			return
		}
	}
}

// dispatch routes one inbound packet. A non-nil return is fatal to the
// connection.
func (c *Client) dispatch(pkt packet.Packet) error {
	switch p := pkt.(type) {
	case *packet.Publish:
		return c.handlePublish(p)

	case *packet.Puback:
		return c.resolveAck(p.PacketID, pkt)
	case *packet.Pubrec:
		return c.resolveAck(p.PacketID, pkt)
	case *packet.Pubcomp:
		return c.resolveAck(p.PacketID, pkt)
	case *packet.Suback:
		return c.resolveAck(p.PacketID, pkt)
	case *packet.Unsuback:
		return c.resolveAck(p.PacketID, pkt)

	case *packet.Pubrel:
		return c.handlePubrel(p)

	case *packet.Pingresp:
		c.pingOutstanding = false
		c.logger.Debug("keepalive pong received")
		return nil

	case *packet.Disconnect:
		return fmt.Errorf("%w: broker sent DISCONNECT (reason 0x%02x)",
			ErrConnectionClosed, byte(p.ReasonCode))

	default:
		// CONNACK after the handshake, or anything else a broker must
		// never send mid-session.
		return fmt.Errorf("%w: unexpected %s", ErrProtocolViolation, pkt.Type())
	}
}

// resolveAck hands an acknowledgement to the correlation table and acts on
// the outcome.
func (c *Client) resolveAck(id uint16, pkt packet.Packet) error {
	switch c.table.resolve(id, pkt) {
	case resolutionDelivered:
		return nil

	case resolutionAdvanced:
		// Mid-handshake PUBREC on a QoS 2 publish: release the message.
		if err := c.send(&packet.Pubrel{PacketID: id}); err != nil {
			return fmt.Errorf("sending PUBREL for id %d: %w", id, err)
		}
		return nil

	case resolutionUnmatched:
		// Stale or duplicate acknowledgement. Not ours to die over.
		c.logger.Warn("dropping unmatched acknowledgement",
			"type", pkt.Type().String(),
			"packet_id", id,
		)
		return nil

	default: // resolutionMismatched
		return fmt.Errorf("%w: %s out of sequence for packet id %d",
			ErrProtocolViolation, pkt.Type(), id)
	}
}

// handlePublish delivers an incoming application message and opens its
// acknowledgement flow.
//
// The push into the bounded queue blocks until the consumer makes room,
// which stalls the whole run loop: backpressure here is deliberate and
// connection-wide.
func (c *Client) handlePublish(p *packet.Publish) error {
	if p.QoS == 2 {
		if _, seen := c.inboundRec[p.PacketID]; seen {
			// Broker retransmission of a message already queued and
			// PUBREC'd but not yet released. Acknowledge again without
			// a second delivery.
			return c.send(&packet.Pubrec{PacketID: p.PacketID})
		}
	}

	msg := &Message{
		Topic:    p.Topic,
		Payload:  p.Payload,
		QoS:      p.QoS,
		Retain:   p.Retain,
		Dup:      p.Dup,
		PacketID: p.PacketID,
	}

	select {
	case c.messages <- msg:
	case <-c.quit:
		// Termination requested while blocked on a full queue; the
		// message goes down with the connection.
		return nil
	}

	switch p.QoS {
	case 1:
		return c.send(&packet.Puback{PacketID: p.PacketID})
	case 2:
		c.inboundRec[p.PacketID] = struct{}{}
		return c.send(&packet.Pubrec{PacketID: p.PacketID})
	}
	return nil
}

// handlePubrel completes the broker's side of an inbound QoS 2 flow.
// PUBCOMP is sent even for an unknown id so a broker retrying PUBREL after
// a lost PUBCOMP can finish the exchange.
func (c *Client) handlePubrel(p *packet.Pubrel) error {
	delete(c.inboundRec, p.PacketID)
	return c.send(&packet.Pubcomp{PacketID: p.PacketID})
}

// untilKeepAliveEvent computes the wait until the next keepalive action:
// either the moment a ping becomes due or the moment an outstanding ping
// expires.
func (c *Client) untilKeepAliveEvent() time.Duration {
	var at time.Time
	if c.pingOutstanding {
		at = c.pingDeadline
	} else {
		last := c.lastActivity()
		if last.IsZero() {
			last = time.Now()
		}
		at = last.Add(c.opts.keepAlive)
	}

	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	return d
}

// keepaliveTick runs when the keepalive timer fires: send a ping if the
// line has been idle a full interval, or fail the connection if a ping has
// gone unanswered past its deadline.
func (c *Client) keepaliveTick() error {
	now := time.Now()

	if c.pingOutstanding {
		if !now.Before(c.pingDeadline) {
			return fmt.Errorf("%w: no PINGRESP within %s",
				ErrKeepAliveTimeout, c.opts.pingTimeout)
		}
		return nil
	}

	// Any send resets the idle clock, so the timer may fire before a
	// ping is actually due. The loop simply re-arms from lastActivity.
	if now.Sub(c.lastActivity()) < c.opts.keepAlive {
		return nil
	}

	if err := c.send(&packet.Pingreq{}); err != nil {
		return fmt.Errorf("sending PINGREQ: %w", err)
	}
	c.pingOutstanding = true
	c.pingDeadline = time.Now().Add(c.opts.pingTimeout)
	c.logger.Debug("keepalive ping sent")
	return nil
}

// classifyReadError maps a reader failure onto the client's error
// taxonomy. A clean EOF between packets means the broker closed the
// transport; everything else passes through as the fatal cause.
func (c *Client) classifyReadError(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: transport closed by peer", ErrConnectionClosed)
	}
	return err
}

// terminate performs the terminal sweep exactly once: drain every pending
// request, close the message queue, record the cause and release waiters
// on Done(). A nil cause is a clean, caller-requested disconnect.
func (c *Client) terminate(cause error) {
	c.termOnce.Do(func() {
		c.setState(StateDisconnecting)

		drainErr := cause
		switch {
		case drainErr == nil:
			drainErr = ErrConnectionClosed
		case !errors.Is(drainErr, ErrConnectionClosed):
			drainErr = fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
		}
		if n := c.table.drainAll(drainErr); n > 0 {
			c.logger.Warn("abandoned pending requests on shutdown",
				"count", n,
				"error", drainErr,
			)
		}

		close(c.messages)

		c.stateMu.Lock()
		c.state = StateDisconnected
		c.err = cause
		c.stateMu.Unlock()

		close(c.done)

		if cause != nil {
			c.logger.Error("connection terminated", "error", cause)
		} else {
			c.logger.Info("disconnected")
		}
	})
}
