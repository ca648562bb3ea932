// Gray Logic MQTT Probe
//
// mqttprobe connects to an MQTT broker, subscribes to configured topic
// filters, and streams everything it receives to structured logs and
// (optionally) InfluxDB. It is the reference consumer for the mqtt client
// package and doubles as a broker smoke-test tool.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/nerrad567/gray-logic-mqtt"
	"github.com/nerrad567/gray-logic-mqtt/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtt/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mqtt/internal/recorder"
	"github.com/nerrad567/gray-logic-mqtt/packet"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting mqttprobe",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Connect recorder (optional)
	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		rec, err = recorder.Connect(cfg.Recorder)
		if err != nil {
			return fmt.Errorf("connecting recorder: %w", err)
		}
		defer func() {
			log.Info("closing recorder")
			if closeErr := rec.Close(); closeErr != nil {
				log.Error("error closing recorder", "error", closeErr)
			}
		}()
		rec.SetOnError(func(err error) {
			log.Error("recorder write error", "error", err)
		})
		log.Info("recorder connected",
			"url", cfg.Recorder.URL,
			"org", cfg.Recorder.Org,
			"bucket", cfg.Recorder.Bucket,
		)
	} else {
		log.Info("recorder disabled")
	}

	// Establish the transport. The client itself never dials.
	addr := fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port)
	conn, err := dial(ctx, addr, cfg)
	if err != nil {
		return fmt.Errorf("dialing broker: %w", err)
	}
	defer conn.Close()
	log.Info("transport established", "broker", addr, "tls", cfg.Broker.TLS)

	client := mqtt.New(conn,
		mqtt.WithKeepAlive(cfg.GetKeepAlive()),
		mqtt.WithPingTimeout(cfg.GetPingTimeout()),
		mqtt.WithRequestTimeout(cfg.GetRequestTimeout()),
		mqtt.WithQueueCapacity(cfg.Client.QueueCapacity),
		mqtt.WithLogger(log.With("component", "mqtt")),
	)

	connack, err := client.Connect(ctx, mqtt.ConnectOptions{
		ClientID:   cfg.Client.ClientID,
		CleanStart: cfg.Client.CleanStart,
		Username:   cfg.Auth.Username,
		Password:   passwordBytes(cfg.Auth.Password),
	})
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	log.Info("MQTT session established", "session_present", connack.SessionPresent)

	// Subscribe to configured filters
	if len(cfg.Subscriptions) > 0 {
		subs := make([]packet.Subscription, 0, len(cfg.Subscriptions))
		for _, s := range cfg.Subscriptions {
			subs = append(subs, packet.Subscription{
				Topic: s.TopicFilter,
				QoS:   byte(s.QoS),
			})
		}

		codes, err := client.Subscribe(ctx, subs...)
		if err != nil {
			return fmt.Errorf("subscribing: %w", err)
		}
		for i, code := range codes {
			if code.IsError() {
				log.Warn("subscription rejected",
					"topic_filter", subs[i].Topic,
					"reason", fmt.Sprintf("0x%02x", byte(code)),
				)
			} else {
				log.Info("subscribed",
					"topic_filter", subs[i].Topic,
					"granted_qos", byte(code),
				)
			}
		}
	}

	log.Info("initialisation complete, streaming messages")

	// Stream messages until shutdown or connection loss
	for {
		select {
		case msg, ok := <-client.Messages():
			if !ok {
				if cause := client.Err(); cause != nil {
					return fmt.Errorf("connection lost: %w", cause)
				}
				return nil
			}
			log.Info("message received",
				"topic", msg.Topic,
				"qos", msg.QoS,
				"retain", msg.Retain,
				"bytes", len(msg.Payload),
			)
			if rec != nil {
				rec.WriteMessage(msg)
			}

		case <-ctx.Done():
			log.Info("shutdown signal received, disconnecting")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(shutdownCtx); err != nil {
				log.Warn("disconnect error", "error", err)
			}

			log.Info("mqttprobe stopped")
			return nil
		}
	}
}

// dial opens the TCP (optionally TLS) transport to the broker.
func dial(ctx context.Context, addr string, cfg *config.Config) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: cfg.GetConnectTimeout()}

	if cfg.Broker.TLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: cfg.Broker.Host, MinVersion: tls.VersionTLS12},
		}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

// passwordBytes maps an empty password to nil so the CONNECT packet omits
// the field entirely.
func passwordBytes(pw string) []byte {
	if pw == "" {
		return nil
	}
	return []byte(pw)
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
