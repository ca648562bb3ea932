package mqtt

import (
	"io"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-mqtt/packet"
)

// Client is an asynchronous MQTT 5 client over a caller-supplied transport.
//
// The client never dials: the transport (a TCP connection, TLS tunnel,
// serial link, ...) is established, owned and eventually closed by the
// caller. One Client drives exactly one connection; after the connection
// terminates, cleanly or not, the Client is finished and a fresh one must
// be constructed for any reconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Writes from concurrent operations are serialized; the bytes of two
//     packets never interleave on the wire.
type Client struct {
	conn io.ReadWriter
	opts options

	// wmu serializes all packet writes. lastSend is the keepalive
	// last-outgoing-activity marker; it is guarded by wmu because every
	// send updates it while holding the lock.
	wmu      sync.Mutex
	lastSend time.Time

	// table correlates outstanding packet identifiers with their waiters.
	table *table

	// stateMu guards state and err.
	stateMu sync.RWMutex
	state   State
	err     error

	// messages is the distribution queue: incoming publishes in arrival
	// order, closed when the connection terminates.
	messages chan *Message

	// inbound carries decoded packets (or the read error) from the reader
	// goroutine into the run loop.
	inbound chan readResult

	// quit is closed by Disconnect to request clean termination; done is
	// closed once termination has completed.
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	termOnce sync.Once

	// Keepalive and inbound QoS 2 state. Owned exclusively by the run
	// loop goroutine; never touched elsewhere, so no lock.
	pingOutstanding bool
	pingDeadline    time.Time
	inboundRec      map[uint16]struct{}

	logger Logger
}

// Logger interface for optional logging support.
// Compatible with *slog.Logger and the internal/logging package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Message is an application message received from the broker.
//
// Messages are delivered through Messages() in the exact order the client
// read them from the wire, with no topic-based filtering or routing: every
// incoming publish, whatever its topic, arrives on the one queue. Callers
// needing per-topic dispatch layer it on top.
type Message struct {
	Topic   string
	Payload []byte

	// QoS is the delivery guarantee the broker used for this message.
	QoS byte

	// Retain reports whether this was a retained message replayed on
	// subscription rather than a live publish.
	Retain bool

	// Dup reports a possible redelivery of an earlier QoS > 0 message.
	Dup bool

	// PacketID is the acknowledgement correlation id. Zero for QoS 0.
	PacketID uint16
}

// readResult is one unit of reader-to-run-loop traffic: a decoded packet
// or the error that ended reading.
type readResult struct {
	pkt packet.Packet
	err error
}

// New creates a Client over the given transport.
//
// The returned client is Disconnected; call Connect to perform the MQTT
// handshake and start the run loop.
func New(conn io.ReadWriter, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		conn:       conn,
		opts:       o,
		table:      newTable(),
		state:      StateDisconnected,
		messages:   make(chan *Message, o.queueCapacity),
		inbound:    make(chan readResult),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		inboundRec: make(map[uint16]struct{}),
		logger:     o.logger,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Messages returns the incoming message queue.
//
// The channel is closed when the connection terminates; check Err() to
// distinguish a clean disconnect from a failure. The queue is bounded (see
// WithQueueCapacity) and assumes a single consumer.
func (c *Client) Messages() <-chan *Message {
	return c.messages
}

// Done returns a channel closed once the connection has fully terminated
// and every pending request has been resolved.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that terminated the connection, or nil while the
// connection is live or after a clean Disconnect.
func (c *Client) Err() error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.err
}

// send serializes one packet onto the transport.
//
// The write lock makes the packet's bytes atomic with respect to every
// other writer (request operations, pings, acknowledgements) and the
// last-outgoing-activity marker is advanced under the same lock.
func (c *Client) send(p packet.Packet) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := packet.Encode(c.conn, p); err != nil {
		return err
	}
	c.lastSend = time.Now()
	return nil
}

// lastActivity returns the time of the most recent successful send.
func (c *Client) lastActivity() time.Time {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.lastSend
}
