// Package recorder persists received MQTT messages to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health monitoring.
//
// # Purpose
//
// The probe subscribes to topic filters and streams everything it
// receives; this package gives that stream a durable, queryable home as
// time-series data.
//
// # Usage
//
//	rec, err := recorder.Connect(cfg.Recorder)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rec.Close()
//
//	for msg := range client.Messages() {
//	    rec.WriteMessage(msg)
//	}
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback (SetOnError). Connection and health check errors are returned
// directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size,
// flush_interval). This reduces network overhead for busy topics.
package recorder
