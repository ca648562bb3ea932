package mqtt

import "errors"

// Domain-specific errors for client operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when a request operation is attempted
	// while the client is not in the Connected state.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectFailed is returned when the CONNECT/CONNACK handshake fails
	// or the broker refuses the connection.
	ErrConnectFailed = errors.New("mqtt: connect failed")

	// ErrConnectionClosed fulfils every request still pending when the
	// connection terminates. The terminating cause, if any, is wrapped.
	ErrConnectionClosed = errors.New("mqtt: connection closed")

	// ErrRequestTimeout is returned when a single request's deadline
	// elapses. It is local to that request; the connection stays up.
	ErrRequestTimeout = errors.New("mqtt: request timed out")

	// ErrKeepAliveTimeout terminates the connection when the broker fails
	// to answer a ping within the configured deadline.
	ErrKeepAliveTimeout = errors.New("mqtt: keepalive timed out")

	// ErrProtocolViolation terminates the connection when an incoming
	// packet contradicts the handshake state or arrives where the protocol
	// forbids it.
	ErrProtocolViolation = errors.New("mqtt: protocol violation")

	// ErrPublishRejected is returned when the broker acknowledges a
	// publish with a failure reason code.
	ErrPublishRejected = errors.New("mqtt: publish rejected by broker")

	// ErrPacketIDsExhausted is returned when all 65535 packet identifiers
	// are outstanding simultaneously. Non-fatal; retry after some pending
	// requests complete.
	ErrPacketIDsExhausted = errors.New("mqtt: all packet identifiers in use")

	// ErrPacketIDInUse indicates an identifier was registered twice. This
	// cannot happen while allocation is correct; it is a defect, not a
	// recoverable condition.
	ErrPacketIDInUse = errors.New("mqtt: packet identifier already registered")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrPayloadTooLarge is returned when a publish payload exceeds the
	// client's size limit.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
)
