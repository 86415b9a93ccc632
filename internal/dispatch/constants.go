package dispatch

import "time"

// DefaultCallTimeout bounds one remote round trip.
const DefaultCallTimeout = 250 * time.Millisecond
