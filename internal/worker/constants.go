package worker

import "time"

const (
	// queued requests before Post blocks
	mailboxSize = 16

	// JSON content-subtype and compressor names on the gRPC stream
	codecName      = "json"
	compressorName = "zstd"

	serviceName = "colorpick.worker.v1.Worker"
	exchangeRPC = "/" + serviceName + "/Exchange"

	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second
)
