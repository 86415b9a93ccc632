package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/resilience"
	"github.com/GriffinCanCode/colorpick/internal/trace"
)

// Remote is an execution context living in a pickerworker process.
type Remote struct {
	addr     string
	dialOpts []grpc.DialOption

	mu   sync.Mutex
	port *streamPort
}

// NewRemote targets the worker at addr. Extra dial options are appended to the defaults.
func NewRemote(addr string, opts ...grpc.DialOption) *Remote {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                DefaultKeepaliveTime,
			Timeout:             DefaultKeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithChainStreamInterceptor(trace.StreamClientInterceptor()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(codecName),
			grpc.UseCompressor(compressorName),
		),
	}
	return &Remote{addr: addr, dialOpts: append(base, opts...)}
}

// EnsureStarted dials once, retrying while the worker comes up, and opens the
// Exchange stream. Later calls return the same port.
func (w *Remote) EnsureStarted(ctx context.Context) (Port, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.port != nil {
		if w.port.broken() {
			return nil, apperrors.New(apperrors.CodeChannelUnavailable, "worker stream closed")
		}
		return w.port, nil
	}

	conn, err := grpc.NewClient(w.addr, w.dialOpts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeChannelUnavailable, "dial worker").
			WithMetadata("addr", w.addr)
	}

	// the stream outlives ctx; only Close ends it
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var stream grpc.ClientStream
	err = resilience.Retry(ctx, resilience.StartupRetryConfig(), func() error {
		var openErr error
		stream, openErr = conn.NewStream(streamCtx, &serviceDesc.Streams[0], exchangeRPC)
		return openErr
	})
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeChannelUnavailable, "open worker stream").
			WithMetadata("addr", w.addr)
	}

	trace.Logger(ctx).Info("connected to worker", "addr", w.addr)
	w.port = newStreamPort(conn, stream, cancel)
	return w.port, nil
}

type streamPort struct {
	listeners
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc

	sendMu sync.Mutex
	done   chan struct{}
	once   sync.Once
}

func newStreamPort(conn *grpc.ClientConn, stream grpc.ClientStream, cancel context.CancelFunc) *streamPort {
	p := &streamPort{conn: conn, stream: stream, cancel: cancel, done: make(chan struct{})}
	go p.recvLoop()
	return p
}

func (p *streamPort) recvLoop() {
	defer p.markBroken()
	for {
		var env envelope
		if err := p.stream.RecvMsg(&env); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				slog.Warn("worker stream ended", "error", err)
			}
			return
		}
		p.deliver(env.response())
	}
}

func (p *streamPort) markBroken() {
	p.once.Do(func() { close(p.done) })
}

func (p *streamPort) broken() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *streamPort) Post(req Request) error {
	if p.broken() {
		return apperrors.New(apperrors.CodeChannelUnavailable, "worker stream closed")
	}
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if err := p.stream.SendMsg(requestEnvelope(req)); err != nil {
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "send to worker").
			WithMetadata("op", string(req.Op()))
	}
	return nil
}

func (p *streamPort) Listen(fn func(Response)) func() {
	return p.add(fn)
}

func (p *streamPort) Close() error {
	p.sendMu.Lock()
	_ = p.stream.CloseSend()
	p.sendMu.Unlock()
	p.cancel()
	p.markBroken()
	return p.conn.Close()
}
