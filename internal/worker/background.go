package worker

import (
	"context"
	"log/slog"
	"sync"

	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
	"github.com/GriffinCanCode/colorpick/internal/render"
)

// Background runs a private Renderer on its own goroutine. Pixel payloads are
// copied on the way in and snapshots are copies on the way out, so nothing is
// shared with the caller.
type Background struct {
	once sync.Once
	port *loopPort
}

// NewBackground returns an unstarted context.
func NewBackground() *Background {
	return &Background{}
}

// EnsureStarted starts the goroutine on first use and returns the same port after.
func (b *Background) EnsureStarted(ctx context.Context) (Port, error) {
	b.once.Do(func() {
		b.port = newLoopPort(render.New())
		slog.Debug("background context started")
	})
	if b.port.closed() {
		return nil, apperrors.New(apperrors.CodeChannelUnavailable, "background context closed")
	}
	return b.port, nil
}

type loopPort struct {
	listeners
	mailbox   chan Request
	done      chan struct{}
	closeOnce sync.Once
}

func newLoopPort(r *render.Renderer) *loopPort {
	p := &loopPort{
		mailbox: make(chan Request, mailboxSize),
		done:    make(chan struct{}),
	}
	go p.loop(r)
	return p
}

func (p *loopPort) loop(r *render.Renderer) {
	for {
		select {
		case <-p.done:
			return
		case req := <-p.mailbox:
			p.deliver(Handle(r, req))
		}
	}
}

func (p *loopPort) Post(req Request) error {
	if m, ok := req.(InitPixelBufferRequest); ok {
		m.Source = pixel.Detach(m.Source)
		req = m
	}
	select {
	case <-p.done:
		return apperrors.New(apperrors.CodeChannelUnavailable, "background context closed")
	case p.mailbox <- req:
		return nil
	}
}

func (p *loopPort) Listen(fn func(Response)) func() {
	return p.add(fn)
}

func (p *loopPort) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Close stops the goroutine; queued requests are dropped.
func (p *loopPort) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}
