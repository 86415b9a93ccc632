// Picker host - grabs the screen, runs the picker and bridges it over HTTP and WebSocket
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/colorpick/internal/config"
	"github.com/GriffinCanCode/colorpick/internal/dispatch"
	"github.com/GriffinCanCode/colorpick/internal/picker"
	"github.com/GriffinCanCode/colorpick/internal/resilience"
	"github.com/GriffinCanCode/colorpick/internal/screen"
	"github.com/GriffinCanCode/colorpick/internal/server"
	"github.com/GriffinCanCode/colorpick/internal/trace"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx, _ = trace.EnsureContext(ctx)

	ch := dispatch.Select(ctx, channelOptions(cfg))

	orch, err := picker.New(ctx, ch, picker.NewMemoryPreferences(cfg.Format()), nil, cfg.PickerOptions())
	if err != nil {
		slog.Error("failed to bind preview surface", "error", err)
		_ = ch.Close()
		os.Exit(1)
	}

	capturer := screen.New(cfg.Display)
	srv := server.New(orch, capturer, cfg.ChangeDetection)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("picker host starting", "http", cfg.HTTPAddr, "channel", orch.Kind(), "worker_mode", cfg.WorkerMode)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	srv.Close()
	capturer.Close()
	if err := orch.Close(); err != nil {
		slog.Error("picker close error", "error", err)
	}
	slog.Info("shutdown complete")
}

// channelOptions maps the worker mode onto a dispatch strategy.
func channelOptions(cfg *config.Config) dispatch.Options {
	opts := dispatch.Options{
		Kind:    dispatch.Remote,
		Timeout: cfg.RemoteCallTimeout,
		Breaker: resilience.RemoteConfig(),
	}
	switch cfg.WorkerMode {
	case config.WorkerGRPC:
		opts.Starter = worker.NewRemote(cfg.WorkerAddr)
	case config.WorkerInProcess:
		opts.Starter = worker.NewBackground()
	default:
		opts.Kind = dispatch.Local
	}
	return opts
}
