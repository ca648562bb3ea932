package mqtt

import "time"

// Default tuning values applied by New when no option overrides them.
const (
	// defaultKeepAlive is the keepalive interval: a ping is sent after this
	// long without any outgoing traffic.
	defaultKeepAlive = 60 * time.Second

	// defaultPingTimeout is how long to wait for PINGRESP before declaring
	// the connection dead.
	defaultPingTimeout = 10 * time.Second

	// defaultRequestTimeout bounds request operations whose context carries
	// no deadline of its own.
	defaultRequestTimeout = 30 * time.Second

	// defaultQueueCapacity is the incoming message queue depth. When the
	// queue is full the run loop stops reading the transport entirely
	// until the consumer catches up.
	defaultQueueCapacity = 64

	// maxPayloadSize is the largest accepted publish payload (1MB).
	// This prevents resource exhaustion and aligns with typical broker limits.
	maxPayloadSize = 1 << 20
)

// options holds the client tuning knobs collected from Option values.
type options struct {
	keepAlive      time.Duration
	pingTimeout    time.Duration
	requestTimeout time.Duration
	queueCapacity  int
	logger         Logger
}

func defaultOptions() options {
	return options{
		keepAlive:      defaultKeepAlive,
		pingTimeout:    defaultPingTimeout,
		requestTimeout: defaultRequestTimeout,
		queueCapacity:  defaultQueueCapacity,
		logger:         noopLogger{},
	}
}

// Option configures a Client during construction.
type Option func(*options)

// WithKeepAlive sets the keepalive interval. Zero disables client-side
// pinging entirely (the broker is still told keepalive 0 at connect time
// unless ConnectOptions overrides it).
func WithKeepAlive(interval time.Duration) Option {
	return func(o *options) { o.keepAlive = interval }
}

// WithPingTimeout sets how long the client waits for a ping response
// before terminating the connection with ErrKeepAliveTimeout.
func WithPingTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pingTimeout = d
		}
	}
}

// WithRequestTimeout sets the default deadline for request operations
// invoked with a context that has no deadline. Zero disables the default;
// such requests then wait until resolved, cancelled, or the connection
// terminates.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithQueueCapacity sets the incoming message queue depth.
//
// When the queue is full the run loop suspends: no further packets are
// read from the transport, including acknowledgements, until the consumer
// drains at least one message. This deliberately backpressures the whole
// connection instead of dropping publishes.
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueCapacity = n
		}
	}
}

// WithLogger sets a logger for connection lifecycle and dispatch warnings.
// If not set, the client is silent.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
