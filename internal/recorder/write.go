package recorder

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	mqtt "github.com/nerrad567/gray-logic-mqtt"
)

// WriteMessage records one received MQTT message.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Topic and QoS are tags so they stay queryable; the payload and its size
// land in fields. Binary payloads are stored as-is in the string field.
//
// Parameters:
//   - msg: The message as delivered by the client's Messages() queue
func (r *Recorder) WriteMessage(msg *mqtt.Message) {
	if !r.IsConnected() {
		return
	}

	point := write.NewPoint(
		"mqtt_messages",
		map[string]string{
			"topic":  msg.Topic,
			"qos":    strconv.Itoa(int(msg.QoS)),
			"retain": strconv.FormatBool(msg.Retain),
		},
		map[string]interface{}{
			"payload":       string(msg.Payload),
			"payload_bytes": len(msg.Payload),
		},
		time.Now(),
	)

	r.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit WriteMessage, such as probe
// health counters.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (r *Recorder) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !r.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	r.writeAPI.WritePoint(point)
}
