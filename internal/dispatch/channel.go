// Package dispatch gives the picker one Channel to the renderer, whether the
// renderer runs in-process or behind a worker port.
package dispatch

import (
	"context"
	"time"

	"github.com/GriffinCanCode/colorpick/internal/codec"
	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
	"github.com/GriffinCanCode/colorpick/internal/render"
	"github.com/GriffinCanCode/colorpick/internal/resilience"
	"github.com/GriffinCanCode/colorpick/internal/trace"
	"github.com/GriffinCanCode/colorpick/internal/worker"
)

// Kind is the execution strategy behind a Channel.
type Kind int

const (
	Local Kind = iota
	Remote
)

func (k Kind) String() string {
	if k == Remote {
		return "remote"
	}
	return "local"
}

// Channel is the renderer's operation set. Calls must not overlap; the owner
// serializes them.
type Channel interface {
	Kind() Kind
	InitPreviewSurface(ctx context.Context, s render.Surface, spec codec.Spec) error
	InitPixelBuffer(ctx context.Context, src pixel.Source) error
	PutPreviewWindow(ctx context.Context, w render.Window) (pixel.Color, error)
	PreviewSnapshot(ctx context.Context) (*pixel.Buffer, error)
	SwitchHistorySource(ctx context.Context, locator string) error
	PickColor(ctx context.Context, x, y int) (pixel.Color, error)
	ReleasePixelBuffers(ctx context.Context) error
	Close() error
}

// Options configures Select.
type Options struct {
	Kind    Kind
	Starter worker.Starter // required for Remote
	Timeout time.Duration
	Breaker resilience.Config
}

// Select picks the channel once. A Remote context that cannot be started
// falls back to Local; the failure is logged and not retried.
func Select(ctx context.Context, opts Options) Channel {
	if opts.Kind != Remote {
		return NewLocal()
	}
	if opts.Starter == nil {
		trace.Logger(ctx).Warn("no execution context configured, using local channel")
		return NewLocal()
	}
	port, err := opts.Starter.EnsureStarted(ctx)
	if err != nil {
		if !apperrors.IsCode(err, apperrors.CodeChannelUnavailable) {
			err = apperrors.Wrap(err, apperrors.CodeChannelUnavailable, "start execution context")
		}
		trace.Logger(ctx).Warn("execution context unavailable, using local channel", "error", err)
		return NewLocal()
	}
	return NewRemote(port, opts.Timeout, opts.Breaker)
}
