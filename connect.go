package mqtt

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-mqtt/packet"
)

// ConnectOptions configures the MQTT session handshake.
type ConnectOptions struct {
	// ClientID identifies the session to the broker. If empty, a random
	// "graylogic-" prefixed id is generated.
	ClientID string

	// CleanStart requests a fresh session with no broker-side state.
	CleanStart bool

	// Username and Password are optional broker credentials. A nil
	// Password sends no password field at all.
	Username string
	Password []byte

	// Will is an optional Last Will and Testament published by the broker
	// if this client disappears without a clean Disconnect.
	Will *packet.Will
}

// ConnackInfo reports the broker's response to a successful handshake.
type ConnackInfo struct {
	SessionPresent bool
	ReasonCode     packet.ReasonCode
}

// Connect performs the CONNECT/CONNACK handshake and starts the run loop.
//
// The transport must already be established; Connect only speaks MQTT over
// it. On success the client is Connected and Messages(), Publish,
// Subscribe and Unsubscribe become usable. On failure the client returns
// to Disconnected and the caller should close the transport; a reader may
// still be blocked on it until then.
//
// Parameters:
//   - ctx: Bounds the handshake. Without a deadline the client's default
//     request timeout applies.
//   - opts: Session parameters (identity, credentials, will).
//
// Returns:
//   - *ConnackInfo: The broker's acknowledgement details
//   - error: ErrConnectFailed (wrapping the cause) if the handshake fails
func (c *Client) Connect(ctx context.Context, opts ConnectOptions) (*ConnackInfo, error) {
	c.stateMu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.stateMu.Unlock()
		return nil, fmt.Errorf("%w: client is %s", ErrConnectFailed, state)
	}
	c.state = StateConnecting
	c.stateMu.Unlock()

	clientID := opts.ClientID
	if clientID == "" {
		clientID = "graylogic-" + uuid.NewString()
	}

	conn := &packet.Connect{
		ClientID:   clientID,
		CleanStart: opts.CleanStart,
		KeepAlive:  uint16(c.opts.keepAlive.Seconds()),
		Username:   opts.Username,
		Password:   opts.Password,
		Will:       opts.Will,
	}
	if err := c.send(conn); err != nil {
		c.setState(StateDisconnected)
		return nil, fmt.Errorf("%w: sending CONNECT: %w", ErrConnectFailed, err)
	}

	// The run loop is not started yet, so CONNACK is read directly. The
	// read happens in a goroutine so the handshake honours ctx; if ctx
	// fires first the goroutine stays blocked until the caller closes the
	// transport, which it owns.
	ackCh := make(chan readResult, 1)
	go func() {
		pkt, err := packet.Decode(c.conn)
		ackCh <- readResult{pkt: pkt, err: err}
	}()

	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	select {
	case res := <-ackCh:
		if res.err != nil {
			c.setState(StateDisconnected)
			return nil, fmt.Errorf("%w: reading CONNACK: %w", ErrConnectFailed, res.err)
		}
		ack, ok := res.pkt.(*packet.Connack)
		if !ok {
			c.setState(StateDisconnected)
			return nil, fmt.Errorf("%w: expected CONNACK, got %s", ErrConnectFailed, res.pkt.Type())
		}
		if ack.ReasonCode.IsError() {
			c.setState(StateDisconnected)
			return nil, fmt.Errorf("%w: broker refused connection (reason 0x%02x)", ErrConnectFailed, byte(ack.ReasonCode))
		}

		c.setState(StateConnected)
		go c.readPackets()
		go c.run()

		c.logger.Info("connected",
			"client_id", clientID,
			"session_present", ack.SessionPresent,
		)
		return &ConnackInfo{
			SessionPresent: ack.SessionPresent,
			ReasonCode:     ack.ReasonCode,
		}, nil

	case <-ctx.Done():
		c.setState(StateDisconnected)
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, ctx.Err())
	}
}

// Disconnect sends DISCONNECT and shuts the connection down cleanly.
//
// Pending requests are fulfilled with ErrConnectionClosed, the message
// channel is closed, and Err() reports nil. The transport itself is left
// for its owner to close.
//
// Returns:
//   - error: ErrNotConnected if no connection is up, or ctx's error if the
//     shutdown does not complete in time
func (c *Client) Disconnect(ctx context.Context) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	// Best effort: the connection is going away whether or not the broker
	// hears about it.
	if err := c.send(&packet.Disconnect{}); err != nil {
		c.logger.Warn("sending DISCONNECT failed", "error", err)
	}

	c.quitOnce.Do(func() { close(c.quit) })

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withDefaultTimeout applies the client's default request timeout to a
// context that carries no deadline of its own.
func (c *Client) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.opts.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opts.requestTimeout)
}
