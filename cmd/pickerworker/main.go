// Picker worker - serves the pixel renderer to picker hosts over gRPC
package main

import (
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/colorpick/internal/config"
	"github.com/GriffinCanCode/colorpick/internal/worker"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", cfg.WorkerAddr)
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.WorkerAddr, "error", err)
		os.Exit(1)
	}

	s := worker.NewGRPCServer()

	go func() {
		slog.Info("picker worker starting", "addr", lis.Addr().String())
		if err := s.Serve(lis); err != nil {
			slog.Error("grpc server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	// open Exchange streams last as long as their hosts; give them a moment
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		s.Stop()
	}
	slog.Info("shutdown complete")
}
