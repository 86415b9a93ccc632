package worker

import (
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/GriffinCanCode/colorpick/internal/render"
	"github.com/GriffinCanCode/colorpick/internal/trace"
)

// exchanger is the handler type the hand-written service descriptor binds to.
type exchanger interface {
	exchange(stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*exchanger)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Exchange",
		Handler:       func(srv any, stream grpc.ServerStream) error { return srv.(exchanger).exchange(stream) },
		ServerStreams: true,
		ClientStreams: true,
	}},
}

// Server serves the worker protocol. Each Exchange stream owns a fresh
// Renderer, so one stream is one execution context.
type Server struct{}

// NewGRPCServer builds a grpc.Server with trace propagation and the worker registered.
// Its keepalive policy admits the pings Remote sends.
func NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             DefaultKeepaliveTime / 2,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(trace.StreamServerInterceptor()),
	)
	s := grpc.NewServer(opts...)
	Register(s)
	return s
}

// Register adds the worker service to s.
func Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&serviceDesc, &Server{})
}

func (*Server) exchange(stream grpc.ServerStream) error {
	log := trace.Logger(stream.Context())
	log.Info("worker stream opened")
	r := render.New()

	for {
		var in envelope
		if err := stream.RecvMsg(&in); err != nil {
			if errors.Is(err, io.EOF) {
				log.Info("worker stream closed")
				return nil
			}
			return err
		}

		var resp Response
		req, err := in.request()
		if err != nil {
			resp = Ack{Result{Kind: in.Op, Failure: failureFrom(err)}}
		} else {
			resp = Handle(r, req)
		}
		if err := resp.Err(); err != nil {
			log.Warn("worker op failed", "op", in.Op, "error", err)
		}

		if err := stream.SendMsg(responseEnvelope(resp)); err != nil {
			return err
		}
	}
}
