package recorder

import "errors"

// Sentinel errors for recorder operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, recorder.ErrNotConnected) {
//	    // Handle disconnected state
//	}
var (
	// ErrNotConnected indicates the recorder is not connected to InfluxDB.
	ErrNotConnected = errors.New("recorder: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("recorder: connection failed")

	// ErrDisabled indicates the recorder is disabled in config.
	ErrDisabled = errors.New("recorder: disabled in configuration")
)
