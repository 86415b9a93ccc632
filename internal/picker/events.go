package picker

import "github.com/GriffinCanCode/colorpick/internal/pixel"

// EventType discriminates presentation updates.
type EventType string

const (
	EventColor     EventType = "color"
	EventOpacity   EventType = "opacity"
	EventTransform EventType = "transform"
	EventEnabled   EventType = "enabled"
	EventError     EventType = "error"
)

// Event is one presentation update. Only the fields for Type are set.
type Event struct {
	Type EventType

	Color pixel.Color
	Hex   string
	Text  string // Color rendered in the current format

	Opacity float64
	X, Y    float64 // preview anchor, logical coordinates
	Enabled bool
	Message string
}

// emit never blocks; a slow consumer loses updates, and the next one supersedes them.
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
	}
}
