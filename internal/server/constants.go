// Package server bridges a host to the picker over HTTP and WebSocket.
package server

import "time"

// Server configuration constants
const (
	// Inbound frame flood guard per connection. Pointer streams run at display
	// refresh rate, so the ceiling sits well above 240 Hz.
	FrameRateLimit  = 500
	FrameRateWindow = time.Second

	// Outbound frames queued per connection, and how long a write or a full
	// queue may stall before the client is dropped.
	ClientBuffer = 256
	WriteTimeout = 2 * time.Second

	// Largest encoded image accepted by POST /api/capture.
	MaxCaptureBytes = 64 << 20
)

// Bridge frame types.
const (
	frameError = "error"

	framePointer         = "pointer"
	frameKey             = "key"
	frameState           = "state"
	frameHistory         = "history"
	frameCaptureFinished = "capture_finished"
)
