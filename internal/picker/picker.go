// Package picker drives the live color picker: it tracks the cursor, decides
// when the picker is enabled and how opaque it is, and feeds positions to a
// dispatch.Channel at two independent cadences.
package picker

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/colorpick/internal/codec"
	"github.com/GriffinCanCode/colorpick/internal/dispatch"
	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
	"github.com/GriffinCanCode/colorpick/internal/render"
	"github.com/GriffinCanCode/colorpick/internal/syncx"
	"github.com/GriffinCanCode/colorpick/internal/trace"
)

// Options configures an Orchestrator.
type Options struct {
	Surface render.Surface
	Codec   codec.Spec
	AuxLine *color.NRGBA // crosshair color, nil or transparent for none
	Visuals Visuals

	EnableDebounce    time.Duration
	PointerSuppress   time.Duration
	FrameInterval     time.Duration
	TransformInterval time.Duration
}

// DefaultOptions returns the stock 11×11 picker with the tuned timings.
func DefaultOptions() Options {
	return Options{
		Surface: render.DefaultSurface(),
		Codec:   codec.DefaultSpec(),
		AuxLine: &color.NRGBA{R: 255, A: 255},
		Visuals: Visuals{
			Policy:          PolicyAlways,
			DraggingOpacity: DefaultDraggingOpacity,
			HintOpacity:     DefaultHintOpacity,
			EdgeTolerance:   DefaultEdgeTolerance,
		},
		EnableDebounce:    DefaultEnableDebounce,
		PointerSuppress:   DefaultPointerSuppress,
		FrameInterval:     DefaultFrameInterval,
		TransformInterval: DefaultTransformInterval,
	}
}

// Capture is a loaded screen grab. Width and Height are device pixels; for a
// SharedView they default to the buffer's size.
type Capture struct {
	Source pixel.Source
	Width  int
	Height int
	Ratio  float64 // device pixels per logical pixel
}

type session struct {
	id    string
	size  image.Point
	ratio float64
	log   *slog.Logger
}

// Orchestrator owns the channel, the preview surface behind it and all picker state.
type Orchestrator struct {
	ctx    context.Context
	ch     dispatch.Channel
	prefs  Preferences
	warper PointerWarper
	opts   Options

	// callMu keeps channel operations strictly sequential
	callMu sync.Mutex

	mu         sync.Mutex
	state      HostState
	capture    *session
	pos        image.Point
	enabled    bool
	opacity    float64
	sample     pixel.Color
	suppressed bool
	closed     bool

	enable     *syncx.Debouncer
	unsuppress *syncx.Debouncer
	frame      *syncx.Throttle
	transform  *syncx.Throttle

	events chan Event
}

// New binds the preview surface on ch. The orchestrator owns ch from here on
// and closes it in Close.
func New(ctx context.Context, ch dispatch.Channel, prefs Preferences, warper PointerWarper, opts Options) (*Orchestrator, error) {
	if prefs == nil {
		prefs = NewMemoryPreferences(pixel.FormatHex)
	}
	if warper == nil {
		warper = noWarp{}
	}
	if err := ch.InitPreviewSurface(ctx, opts.Surface, opts.Codec); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		ctx:       ctx,
		ch:        ch,
		prefs:     prefs,
		warper:    warper,
		opts:      opts,
		frame:     syncx.NewThrottle(opts.FrameInterval),
		transform: syncx.NewThrottle(opts.TransformInterval),
		events:    make(chan Event, EventBuffer),
	}
	o.enable = syncx.NewDebouncer(opts.EnableDebounce, o.recomputeEnabled)
	o.unsuppress = syncx.NewDebouncer(opts.PointerSuppress, func() {
		o.mu.Lock()
		o.suppressed = false
		o.mu.Unlock()
	})

	trace.Logger(ctx).Info("picker ready", "channel", ch.Kind(), "preview_size", opts.Surface.Size, "zoom", opts.Surface.Zoom)
	return o, nil
}

// Events delivers presentation updates.
func (o *Orchestrator) Events() <-chan Event { return o.events }

// Kind reports which channel strategy was selected.
func (o *Orchestrator) Kind() dispatch.Kind { return o.ch.Kind() }

// CaptureReady installs a new capture and returns its session ID.
func (o *Orchestrator) CaptureReady(ctx context.Context, c Capture) (string, error) {
	if c.Source == nil {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "capture has no pixel source")
	}
	if v, ok := c.Source.(pixel.SharedView); ok && v.Buffer != nil && c.Width == 0 && c.Height == 0 {
		c.Width, c.Height = v.Buffer.Width, v.Buffer.Height
	}
	if c.Width <= 0 || c.Height <= 0 {
		return "", apperrors.Newf(apperrors.CodeInvalidArgument, "capture bounds %dx%d", c.Width, c.Height)
	}
	if c.Ratio <= 0 {
		c.Ratio = 1
	}

	id := newSessionID()
	log := trace.Logger(ctx).With("session", id)

	if err := o.dispatch(func() error { return o.ch.InitPixelBuffer(ctx, c.Source) }); err != nil {
		log.Warn("capture rejected", "op", "init_pixel_buffer", "bytes", c.Source.Size(), "error", err)
		o.emit(Event{Type: EventError, Message: err.Error()})
		return "", err
	}

	o.mu.Lock()
	o.capture = &session{id: id, size: image.Pt(c.Width, c.Height), ratio: c.Ratio, log: log}
	o.pos = image.Pt(c.Width/2, c.Height/2)
	o.mu.Unlock()

	log.Info("capture ready", "width", c.Width, "height", c.Height, "ratio", c.Ratio, "bytes", c.Source.Size())
	o.enable.Trigger()
	// an already enabled picker repaints from the new buffer before returning
	o.schedule()
	o.frame.Flush()
	return id, nil
}

// CaptureFinished tears the capture down; the surface stays bound for the next one.
func (o *Orchestrator) CaptureFinished(ctx context.Context) error {
	o.mu.Lock()
	s := o.capture
	o.capture = nil
	o.mu.Unlock()
	if s == nil {
		return nil
	}

	err := o.dispatch(func() error { return o.ch.ReleasePixelBuffers(ctx) })
	if err != nil {
		s.log.Warn("release failed", "op", "release_pixel_buffers", "error", err)
	}
	s.log.Info("capture finished")
	// teardown disables at once rather than after the debounce
	o.enable.Trigger()
	o.enable.Flush()
	return err
}

// UpdateState replaces the host state. Enablement settles after the debounce;
// opacity follows immediately.
func (o *Orchestrator) UpdateState(s HostState) {
	o.mu.Lock()
	o.state = s
	moved := false
	if s.Drag != nil && o.capture != nil {
		o.pos = clampPoint(*s.Drag, o.capture.size)
		moved = true
	}
	o.refreshOpacityLocked()
	o.mu.Unlock()

	o.enable.Trigger()
	if moved {
		o.schedule()
	}
}

// PointerMove handles a pointer position in logical coordinates.
func (o *Orchestrator) PointerMove(x, y float64) {
	o.mu.Lock()
	if o.capture == nil || o.suppressed || o.state.Drag != nil {
		o.mu.Unlock()
		return
	}
	r := o.capture.ratio
	o.pos = image.Pt(int(math.Floor(x*r)), int(math.Floor(y*r)))
	o.refreshOpacityLocked()
	o.mu.Unlock()

	o.schedule()
}

// Step moves the picker by (dx, dy) device pixels, clamped to the capture, and
// warps the OS pointer to match. It reports whether a capture was loaded.
func (o *Orchestrator) Step(dx, dy int) bool {
	o.mu.Lock()
	if o.capture == nil {
		o.mu.Unlock()
		return false
	}
	o.pos = clampPoint(o.pos.Add(image.Pt(dx, dy)), o.capture.size)
	o.suppressed = true
	lx, ly := o.logicalLocked()
	log := o.capture.log
	o.refreshOpacityLocked()
	o.mu.Unlock()

	o.unsuppress.Trigger()
	if err := o.warper.Warp(lx, ly); err != nil {
		log.Warn("pointer warp failed", "error", err)
	}
	o.schedule()
	return true
}

// CycleFormat advances the persisted format and re-renders the current sample.
func (o *Orchestrator) CycleFormat() pixel.Format {
	next := (o.prefs.FormatIndex() + 1) % len(pixel.Formats)
	if err := o.prefs.SetFormatIndex(next); err != nil {
		trace.Logger(o.ctx).Warn("saving color format failed", "error", err)
	}

	o.mu.Lock()
	c := o.sample
	o.mu.Unlock()
	o.emit(o.colorEvent(c))
	return pixel.FormatAt(next)
}

// SwitchHistory makes the image behind locator the sampling source; empty
// switches back to the live capture.
func (o *Orchestrator) SwitchHistory(ctx context.Context, locator string) error {
	err := o.dispatch(func() error { return o.ch.SwitchHistorySource(ctx, locator) })
	if err != nil {
		trace.Logger(ctx).Warn("history switch failed", "op", "switch_history", "locator", locator, "error", err)
		o.emit(Event{Type: EventError, Message: err.Error()})
		return err
	}
	o.schedule()
	return nil
}

// Snapshot copies the current preview, nil when nothing is loaded.
func (o *Orchestrator) Snapshot(ctx context.Context) (*pixel.Buffer, error) {
	var snap *pixel.Buffer
	err := o.dispatch(func() error {
		var err error
		snap, err = o.ch.PreviewSnapshot(ctx)
		return err
	})
	return snap, err
}

// Color returns the last sample and its text in the current format.
func (o *Orchestrator) Color() (pixel.Color, string) {
	o.mu.Lock()
	c := o.sample
	o.mu.Unlock()
	return c, c.Text(pixel.FormatAt(o.prefs.FormatIndex()))
}

// PickAt samples the authoritative buffer without touching the preview.
func (o *Orchestrator) PickAt(ctx context.Context, x, y int) (pixel.Color, error) {
	var c pixel.Color
	err := o.dispatch(func() error {
		var err error
		c, err = o.ch.PickColor(ctx, x, y)
		return err
	})
	return c, err
}

func (o *Orchestrator) Enabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enabled
}

func (o *Orchestrator) Opacity() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opacity
}

// Position is the picker location in device pixels.
func (o *Orchestrator) Position() image.Point {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pos
}

// Session returns the active capture's ID, "" when none.
func (o *Orchestrator) Session() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.capture == nil {
		return ""
	}
	return o.capture.id
}

// Close stops all timers and tears down the channel with its surface.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.enable.Stop()
	o.unsuppress.Stop()
	o.frame.Stop()
	o.transform.Stop()

	o.callMu.Lock()
	defer o.callMu.Unlock()
	return o.ch.Close()
}

func (o *Orchestrator) dispatch(fn func() error) error {
	o.callMu.Lock()
	defer o.callMu.Unlock()
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return apperrors.New(apperrors.CodeChannelUnavailable, "picker closed")
	}
	return fn()
}

// schedule queues both cadences; they never share a timer.
func (o *Orchestrator) schedule() {
	o.transform.Submit(o.moveAnchor)
	o.frame.Submit(o.renderFrame)
}

func (o *Orchestrator) moveAnchor() {
	o.mu.Lock()
	if o.capture == nil || !o.enabled {
		o.mu.Unlock()
		return
	}
	x, y := o.logicalLocked()
	o.mu.Unlock()
	o.emit(Event{Type: EventTransform, X: x, Y: y})
}

func (o *Orchestrator) renderFrame() {
	o.mu.Lock()
	if o.capture == nil || !o.enabled {
		o.mu.Unlock()
		return
	}
	pos, log := o.pos, o.capture.log
	o.mu.Unlock()

	half := o.opts.Surface.Size / 2
	w := render.Window{
		OriginX: pos.X - half,
		OriginY: pos.Y - half,
		SampleX: pos.X,
		SampleY: pos.Y,
		AuxLine: o.opts.AuxLine,
	}
	var c pixel.Color
	err := o.dispatch(func() error {
		var err error
		c, err = o.ch.PutPreviewWindow(o.ctx, w)
		return err
	})
	if err != nil {
		// sampling degrades to the zero color; the next frame retries
		log.Debug("frame failed", "op", "put_preview_window", "error", err)
		c = pixel.Color{}
	}

	o.mu.Lock()
	o.sample = c
	o.mu.Unlock()
	o.emit(o.colorEvent(c))
}

func (o *Orchestrator) recomputeEnabled() {
	o.mu.Lock()
	was := o.enabled
	o.enabled = o.capture != nil && o.state.allows()
	now := o.enabled
	o.refreshOpacityLocked()
	o.mu.Unlock()

	if was == now {
		return
	}
	o.emit(Event{Type: EventEnabled, Enabled: now})
	if now {
		o.schedule()
	}
}

// refreshOpacityLocked recomputes opacity and emits it on change. Caller holds mu.
func (o *Orchestrator) refreshOpacityLocked() {
	v := o.opts.Visuals.opacity(o.enabled, o.state, o.pos)
	if v == o.opacity {
		return
	}
	o.opacity = v
	o.emit(Event{Type: EventOpacity, Opacity: v})
}

func (o *Orchestrator) logicalLocked() (float64, float64) {
	r := o.capture.ratio
	return float64(o.pos.X) / r, float64(o.pos.Y) / r
}

func (o *Orchestrator) colorEvent(c pixel.Color) Event {
	return Event{
		Type:  EventColor,
		Color: c,
		Hex:   c.Hex(),
		Text:  c.Text(pixel.FormatAt(o.prefs.FormatIndex())),
	}
}

func clampPoint(p image.Point, size image.Point) image.Point {
	return image.Pt(max(0, min(p.X, size.X-1)), max(0, min(p.Y, size.Y-1)))
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
