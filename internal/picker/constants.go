package picker

import "time"

const (
	// host-state churn (rapid tool switching) settles before enablement flips
	DefaultEnableDebounce = 17 * time.Millisecond

	// pointer events are ignored this long after a keyboard warp
	DefaultPointerSuppress = 256 * time.Millisecond

	DefaultFrameInterval     = 16 * time.Millisecond
	DefaultTransformInterval = 4 * time.Millisecond

	DefaultDraggingOpacity = 0.5
	DefaultHintOpacity     = 0.3

	// device pixels either side of a selection border that count as "on the edge"
	DefaultEdgeTolerance = 4

	EventBuffer = 64
)
