package dispatch

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/colorpick/internal/codec"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
	"github.com/GriffinCanCode/colorpick/internal/render"
	"github.com/GriffinCanCode/colorpick/internal/trace"
	"github.com/GriffinCanCode/colorpick/internal/worker"
)

// LocalChannel calls a Renderer on the caller's goroutine. Shared views are
// referenced, not copied.
type LocalChannel struct {
	mu sync.Mutex
	r  *render.Renderer
}

func NewLocal() *LocalChannel {
	return &LocalChannel{r: render.New()}
}

func (c *LocalChannel) Kind() Kind { return Local }

func (c *LocalChannel) run(ctx context.Context, op worker.Op, fn func(r *render.Renderer) error) error {
	_, span := trace.StartSpan(ctx, string(op))
	defer span.End()
	c.mu.Lock()
	defer c.mu.Unlock()
	err := fn(c.r)
	span.RecordError(err)
	return err
}

func (c *LocalChannel) InitPreviewSurface(ctx context.Context, s render.Surface, spec codec.Spec) error {
	return c.run(ctx, worker.OpInitPreviewSurface, func(r *render.Renderer) error {
		return r.InitPreviewSurface(s, spec)
	})
}

func (c *LocalChannel) InitPixelBuffer(ctx context.Context, src pixel.Source) error {
	return c.run(ctx, worker.OpInitPixelBuffer, func(r *render.Renderer) error {
		return r.InitPixelBuffer(src)
	})
}

func (c *LocalChannel) PutPreviewWindow(ctx context.Context, w render.Window) (pixel.Color, error) {
	var out pixel.Color
	err := c.run(ctx, worker.OpPutPreviewWindow, func(r *render.Renderer) error {
		out = r.PutPreviewWindow(w)
		return nil
	})
	return out, err
}

func (c *LocalChannel) PreviewSnapshot(ctx context.Context) (*pixel.Buffer, error) {
	var out *pixel.Buffer
	err := c.run(ctx, worker.OpPreviewSnapshot, func(r *render.Renderer) error {
		out = r.PreviewSnapshot()
		return nil
	})
	return out, err
}

func (c *LocalChannel) SwitchHistorySource(ctx context.Context, locator string) error {
	return c.run(ctx, worker.OpSwitchHistory, func(r *render.Renderer) error {
		return r.SwitchHistorySource(locator)
	})
}

func (c *LocalChannel) PickColor(ctx context.Context, x, y int) (pixel.Color, error) {
	var out pixel.Color
	err := c.run(ctx, worker.OpPickColor, func(r *render.Renderer) error {
		out = r.PickColor(x, y)
		return nil
	})
	return out, err
}

func (c *LocalChannel) ReleasePixelBuffers(ctx context.Context) error {
	return c.run(ctx, worker.OpReleasePixels, func(r *render.Renderer) error {
		r.ReleasePixelBuffers()
		return nil
	})
}

// Close drops the renderer's buffers; the channel stays usable.
func (c *LocalChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.r.ReleasePixelBuffers()
	return nil
}
