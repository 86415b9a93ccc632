package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/GriffinCanCode/colorpick/internal/codec"
	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
	"github.com/GriffinCanCode/colorpick/internal/render"
	"github.com/GriffinCanCode/colorpick/internal/resilience"
	"github.com/GriffinCanCode/colorpick/internal/trace"
	"github.com/GriffinCanCode/colorpick/internal/worker"
)

// RemoteChannel posts each operation to a worker port and waits for the
// response carrying the same Op. A breaker stops a dead worker from stalling
// every frame.
type RemoteChannel struct {
	port    worker.Port
	timeout time.Duration
	breaker *resilience.Breaker
}

// NewRemote wraps a started port. Zero timeout means DefaultCallTimeout.
func NewRemote(port worker.Port, timeout time.Duration, cfg resilience.Config) *RemoteChannel {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &RemoteChannel{port: port, timeout: timeout, breaker: resilience.New(cfg)}
}

func (c *RemoteChannel) Kind() Kind { return Remote }

// call runs one round trip. The returned error is either a transport failure
// or the failure the worker reported for the operation.
func (c *RemoteChannel) call(ctx context.Context, req worker.Request) (worker.Response, error) {
	ctx, span := trace.StartSpan(ctx, string(req.Op()))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := resilience.ExecuteWithResult(c.breaker, nil, func() (worker.Response, error) {
		return c.roundTrip(ctx, req)
	})
	if errors.Is(err, resilience.ErrOpen) {
		err = apperrors.Wrap(err, apperrors.CodeChannelUnavailable, "worker circuit open")
	}
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		span.RecordError(err)
	}
	return resp, err
}

func (c *RemoteChannel) roundTrip(ctx context.Context, req worker.Request) (worker.Response, error) {
	got := make(chan worker.Response, 1)
	stop := c.port.Listen(func(resp worker.Response) {
		if resp.Op() != req.Op() {
			return
		}
		select {
		case got <- resp:
		default:
		}
	})
	defer stop()

	if err := c.port.Post(req); err != nil {
		return nil, err
	}
	select {
	case resp := <-got:
		return resp, nil
	case <-ctx.Done():
		return nil, apperrors.Wrap(ctx.Err(), apperrors.CodeTimeout, "worker did not answer").
			WithMetadata("op", string(req.Op())).
			WithMetadata("timeout", c.timeout.String())
	}
}

func (c *RemoteChannel) InitPreviewSurface(ctx context.Context, s render.Surface, spec codec.Spec) error {
	_, err := c.call(ctx, worker.InitPreviewSurfaceRequest{Surface: s, Codec: spec})
	return err
}

func (c *RemoteChannel) InitPixelBuffer(ctx context.Context, src pixel.Source) error {
	_, err := c.call(ctx, worker.InitPixelBufferRequest{Source: src})
	return err
}

func (c *RemoteChannel) PutPreviewWindow(ctx context.Context, w render.Window) (pixel.Color, error) {
	resp, err := c.call(ctx, worker.PutPreviewWindowRequest{Window: w})
	return colorOf(resp), err
}

func (c *RemoteChannel) PreviewSnapshot(ctx context.Context) (*pixel.Buffer, error) {
	resp, err := c.call(ctx, worker.PreviewSnapshotRequest{})
	if snap, ok := resp.(worker.SnapshotResult); ok && err == nil {
		return snap.Snapshot, nil
	}
	return nil, err
}

func (c *RemoteChannel) SwitchHistorySource(ctx context.Context, locator string) error {
	_, err := c.call(ctx, worker.SwitchHistoryRequest{Locator: locator})
	return err
}

func (c *RemoteChannel) PickColor(ctx context.Context, x, y int) (pixel.Color, error) {
	resp, err := c.call(ctx, worker.PickColorRequest{X: x, Y: y})
	return colorOf(resp), err
}

func (c *RemoteChannel) ReleasePixelBuffers(ctx context.Context) error {
	_, err := c.call(ctx, worker.ReleaseRequest{})
	return err
}

// Close tears down the execution context behind the port.
func (c *RemoteChannel) Close() error {
	return c.port.Close()
}

func colorOf(resp worker.Response) pixel.Color {
	if r, ok := resp.(worker.ColorResult); ok {
		return r.Color
	}
	return pixel.Color{}
}
