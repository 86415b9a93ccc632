package picker

import (
	"image"
	"strings"
)

// Phase is where the host is in the capture workflow.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSelecting Phase = "selecting"
	PhaseEditing   Phase = "editing"
)

// Mode is the screenshot mode the host captured with.
type Mode string

const (
	ModeFull      Mode = "full"
	ModeTopWindow Mode = "top_window"
)

// Policy decides when the picker is visible.
type Policy string

const (
	PolicyAlways          Policy = "always"
	PolicyNever           Policy = "never"
	PolicyBeyondSelection Policy = "beyond_selection" // hidden outside the selection
)

// ParsePolicy accepts the policy names, case-insensitively.
func ParsePolicy(s string) (Policy, bool) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAlways, PolicyNever, PolicyBeyondSelection:
		return p, true
	}
	return "", false
}

// HostState is everything the host reports that gates the picker. Geometry is
// in device pixels.
type HostState struct {
	Phase        Phase
	Tool         string // active drawing tool, "" for none
	Mode         Mode
	ToolbarHover bool

	// Drag is the selection corner being dragged, nil when no drag is active.
	Drag *image.Point

	Selection     image.Rectangle
	AutoSelection bool // selection suggested by the host, not yet confirmed
}

// allows reports whether the host side of enablement holds.
func (s HostState) allows() bool {
	if s.Mode == ModeTopWindow || s.ToolbarHover {
		return false
	}
	switch s.Phase {
	case PhaseSelecting:
		return true
	case PhaseEditing:
		return s.Tool == ""
	default:
		return false
	}
}

// Visuals are the opacity knobs from settings.
type Visuals struct {
	Policy          Policy
	DraggingOpacity float64
	HintOpacity     float64
	EdgeTolerance   int
}

// opacity derives the picker's opacity at p.
func (v Visuals) opacity(enabled bool, s HostState, p image.Point) float64 {
	if !enabled {
		return 0
	}
	if s.Drag != nil {
		return v.DraggingOpacity
	}

	var base float64
	switch v.Policy {
	case PolicyNever:
		base = 0
	case PolicyBeyondSelection:
		if p.In(s.Selection) {
			base = 1
		}
	default:
		base = 1
	}
	if base > 0 && s.AutoSelection && onEdge(s.Selection, p, v.EdgeTolerance) {
		return v.HintOpacity
	}
	return base
}

func onEdge(r image.Rectangle, p image.Point, tol int) bool {
	if r.Empty() {
		return false
	}
	outer := r.Inset(-tol)
	inner := r.Inset(tol)
	return p.In(outer) && (inner.Empty() || !p.In(inner))
}
