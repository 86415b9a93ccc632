package server

import (
	"image"

	"github.com/GriffinCanCode/colorpick/internal/picker"
)

// Message is the envelope every bridge frame shares.
type Message struct {
	Type string `json:"type"`
}

type PointerMessage struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type KeyMessage struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// StateMessage carries host state; geometry is in device pixels.
type StateMessage struct {
	Type         string `json:"type"`
	Phase        string `json:"phase"`
	Tool         string `json:"tool"`
	Mode         string `json:"mode"`
	ToolbarHover bool   `json:"toolbar_hover"`
	Drag         *Point `json:"drag"`
	Selection    *Rect  `json:"selection"`
	Auto         bool   `json:"auto"`
}

func (m StateMessage) hostState() picker.HostState {
	s := picker.HostState{
		Phase:         picker.Phase(m.Phase),
		Tool:          m.Tool,
		Mode:          picker.Mode(m.Mode),
		ToolbarHover:  m.ToolbarHover,
		AutoSelection: m.Auto,
	}
	if m.Mode == "" {
		s.Mode = picker.ModeFull
	}
	if m.Drag != nil {
		p := image.Pt(m.Drag.X, m.Drag.Y)
		s.Drag = &p
	}
	if m.Selection != nil {
		s.Selection = image.Rect(m.Selection.X, m.Selection.Y, m.Selection.X+m.Selection.W, m.Selection.Y+m.Selection.H)
	}
	return s
}

type HistoryMessage struct {
	Type    string `json:"type"`
	Locator string `json:"locator"`
}

// Outbound presentation updates.

type ColorMessage struct {
	Type string `json:"type"`
	Hex  string `json:"hex"`
	Text string `json:"text"`
	R    uint8  `json:"r"`
	G    uint8  `json:"g"`
	B    uint8  `json:"b"`
}

type OpacityMessage struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

type TransformMessage struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type EnabledMessage struct {
	Type  string `json:"type"`
	Value bool   `json:"value"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// outbound converts a picker event to its wire form.
func outbound(ev picker.Event) (any, bool) {
	switch ev.Type {
	case picker.EventColor:
		return ColorMessage{Type: string(ev.Type), Hex: ev.Hex, Text: ev.Text, R: ev.Color.R, G: ev.Color.G, B: ev.Color.B}, true
	case picker.EventOpacity:
		return OpacityMessage{Type: string(ev.Type), Value: ev.Opacity}, true
	case picker.EventTransform:
		return TransformMessage{Type: string(ev.Type), X: ev.X, Y: ev.Y}, true
	case picker.EventEnabled:
		return EnabledMessage{Type: string(ev.Type), Value: ev.Enabled}, true
	case picker.EventError:
		return ErrorMessage{Type: frameError, Message: ev.Message}, true
	}
	return nil, false
}

// keySteps maps arrow keys to one-device-pixel moves.
var keySteps = map[string]image.Point{
	"ArrowUp":    {0, -1},
	"ArrowDown":  {0, 1},
	"ArrowLeft":  {-1, 0},
	"ArrowRight": {1, 0},
}
