package render

import (
	"image"
	"image/color"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/GriffinCanCode/colorpick/internal/codec"
	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
)

// Surface describes the preview drawable: Size×Size source pixels, each drawn Zoom×Zoom.
type Surface struct {
	Size int `json:"size"`
	Zoom int `json:"zoom"`
}

// DefaultSurface returns the stock 11×11 window at 10× magnification.
func DefaultSurface() Surface {
	return Surface{Size: DefaultPreviewSize, Zoom: DefaultZoom}
}

// Side is the magnified edge length in preview pixels.
func (s Surface) Side() int { return s.Size * s.Zoom }

// Validate checks the surface is odd-sized and of sane dimensions.
func (s Surface) Validate() error {
	switch {
	case s.Size <= 0 || s.Size%2 == 0:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "preview size %d must be odd and positive", s.Size)
	case s.Zoom <= 0:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "preview zoom %d must be positive", s.Zoom)
	case s.Side() > MaxSurfaceSide:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "preview side %d exceeds %d", s.Side(), MaxSurfaceSide)
	}
	return nil
}

// Window is one compositing request: the Size×Size block whose top-left is
// (OriginX, OriginY) in source pixels, the sample point, and an optional
// crosshair color.
type Window struct {
	OriginX int          `json:"origin_x"`
	OriginY int          `json:"origin_y"`
	SampleX int          `json:"sample_x"`
	SampleY int          `json:"sample_y"`
	AuxLine *color.NRGBA `json:"aux_line,omitempty"`
}

// Renderer owns the live and history grids plus the preview surface.
// It is not safe for concurrent use; callers issue one operation at a time.
type Renderer struct {
	module  *codec.Module
	surface Surface
	preview *image.NRGBA

	live    *pixel.Buffer
	history *pixel.Buffer

	readLocator func(string) ([]byte, error)
}

// New returns an empty renderer. Nothing can be decoded until InitPreviewSurface loads the codec.
func New() *Renderer {
	return &Renderer{readLocator: codec.ReadLocator}
}

// InitPreviewSurface binds the preview drawable and loads the codec module.
func (r *Renderer) InitPreviewSurface(s Surface, spec codec.Spec) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m, err := codec.Load(spec)
	if err != nil {
		return err
	}
	r.module = m
	r.surface = s
	r.preview = image.NewNRGBA(image.Rect(0, 0, s.Side(), s.Side()))
	return nil
}

// InitPixelBuffer installs the live grid, decoding Encoded sources and adopting
// SharedView ones. A history grid belongs to the previous capture and is dropped.
func (r *Renderer) InitPixelBuffer(src pixel.Source) error {
	switch s := src.(type) {
	case pixel.Encoded:
		buf, err := r.module.Decode(s.Data)
		if err != nil {
			return err
		}
		r.live = buf
	case pixel.SharedView:
		if err := s.Buffer.Validate(); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "shared pixel view").
				WithMetadata("bytes", strconv.Itoa(s.Buffer.Size()))
		}
		r.live = s.Buffer
	default:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown pixel source %T", src)
	}
	r.history = nil
	return nil
}

// SwitchHistorySource installs the image behind locator as the authoritative grid,
// or clears it when locator is empty.
func (r *Renderer) SwitchHistorySource(locator string) error {
	if locator == "" {
		r.history = nil
		return nil
	}
	data, err := r.readLocator(locator)
	if err != nil {
		return err
	}
	buf, err := r.module.Decode(data)
	if err != nil {
		return err
	}
	r.history = buf
	return nil
}

// ReleasePixelBuffers drops both grids; the surface and codec stay bound.
func (r *Renderer) ReleasePixelBuffers() {
	r.live = nil
	r.history = nil
}

// source applies the authority rule: history wins over live.
func (r *Renderer) source() *pixel.Buffer {
	if r.history != nil {
		return r.history
	}
	return r.live
}

// HasSource reports whether any grid is installed.
func (r *Renderer) HasSource() bool { return r.source() != nil }

// PickColor samples the authoritative grid without touching the preview.
func (r *Renderer) PickColor(x, y int) pixel.Color {
	return r.source().At(x, y)
}

// PutPreviewWindow composites w into the preview surface and returns the color at the sample point.
func (r *Renderer) PutPreviewWindow(w Window) pixel.Color {
	if r.preview == nil {
		return r.PickColor(w.SampleX, w.SampleY)
	}
	draw.Draw(r.preview, r.preview.Bounds(), image.Transparent, image.Point{}, draw.Src)

	if src := r.source(); src != nil {
		r.blit(src, w.OriginX, w.OriginY)
	}
	if w.AuxLine != nil && w.AuxLine.A != 0 {
		r.crosshair(w.AuxLine)
	}
	return r.PickColor(w.SampleX, w.SampleY)
}

// blit copies the in-bounds part of the window; pixels outside the source stay transparent.
func (r *Renderer) blit(src *pixel.Buffer, ox, oy int) {
	n, z := r.surface.Size, r.surface.Zoom
	window := image.Rect(ox, oy, ox+n, oy+n)
	visible := window.Intersect(image.Rect(0, 0, src.Width, src.Height))
	if visible.Empty() {
		return
	}
	dst := image.Rect(
		(visible.Min.X-ox)*z, (visible.Min.Y-oy)*z,
		(visible.Max.X-ox)*z, (visible.Max.Y-oy)*z,
	)
	draw.NearestNeighbor.Scale(r.preview, dst, src.Image(), visible, draw.Src, nil)
}

// crosshair draws four segments through the center cell, leaving that cell uncovered.
func (r *Renderer) crosshair(c *color.NRGBA) {
	n, z := r.surface.Size, r.surface.Zoom
	side := n * z
	lo := (n / 2) * z // first preview pixel of the center cell
	hi := lo + z      // first preview pixel past it
	mid := lo + z/2
	ink := image.NewUniform(c)

	segments := []image.Rectangle{
		image.Rect(0, mid, lo, mid+1),    // left
		image.Rect(hi, mid, side, mid+1), // right
		image.Rect(mid, 0, mid+1, lo),    // top
		image.Rect(mid, hi, mid+1, side), // bottom
	}
	for _, seg := range segments {
		draw.Draw(r.preview, seg, ink, image.Point{}, draw.Over)
	}
}

// PreviewSnapshot copies the preview surface, or returns nil when there is no
// surface or no grid to show.
func (r *Renderer) PreviewSnapshot() *pixel.Buffer {
	if r.preview == nil || !r.HasSource() {
		return nil
	}
	return pixel.FromNRGBA(r.preview).Clone()
}
