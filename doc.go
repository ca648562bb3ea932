// Package mqtt implements an asynchronous MQTT 5 client core over a
// caller-supplied transport.
//
// The client owns no sockets: it is handed any io.ReadWriter (TCP, TLS, a
// serial bridge, an in-memory pipe in tests) and speaks the protocol over
// it. One Client drives exactly one connection for its whole life; when
// the connection ends (a clean Disconnect, a broker DISCONNECT, a
// transport failure or a keepalive timeout) the Client is spent, and
// reconnecting means building a new one over a new transport.
//
// # Architecture
//
// A single run loop goroutine owns all inbound traffic. A reader goroutine
// decodes packets off the transport and feeds them to the loop, which
// dispatches: acknowledgements resolve against the correlation table and
// wake the operation that is waiting on them, incoming publishes are
// pushed onto the bounded Messages() queue and acknowledged, keepalive
// pings fire when the line goes idle. Request operations (Publish at
// QoS > 0, Subscribe, Unsubscribe) allocate a packet identifier, send, and
// block until the loop delivers their acknowledgement or the connection
// dies.
//
// Because the message queue is bounded and the run loop blocks pushing
// into it, a slow consumer exerts backpressure on the entire connection:
// acknowledgements stop being processed and the broker's TCP window
// eventually fills. This is deliberate; size the queue with
// WithQueueCapacity for the consumer's burst tolerance.
//
// # Usage
//
//	conn, err := net.Dial("tcp", "broker.local:1883")
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	client := mqtt.New(conn, mqtt.WithKeepAlive(30*time.Second))
//	if _, err := client.Connect(ctx, mqtt.ConnectOptions{CleanStart: true}); err != nil {
//		return err
//	}
//
//	if _, err := client.Subscribe(ctx, packet.Subscription{Topic: "sensors/#", QoS: 1}); err != nil {
//		return err
//	}
//
//	for msg := range client.Messages() {
//		process(msg)
//	}
//	// Messages() closed: check client.Err() for why.
package mqtt
