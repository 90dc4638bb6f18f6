package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name the health status is published under, besides "".
const ServiceName = "receipt-sheets-bot"

// CheckFunc probes a dependency; a nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Health exposes the standard grpc.health.v1 service.
type Health struct {
	grpc   *grpc.Server
	hs     *health.Server
	logger *slog.Logger
}

func NewHealth(logger *slog.Logger) *Health {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// reflection for grpcurl
	reflection.Register(gs)

	h := &Health{grpc: gs, hs: hs, logger: logger}
	h.SetServing(false)
	return h
}

func (h *Health) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
}

// Serve blocks until ctx is done, then stops gracefully.
func (h *Health) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("health.serving", "addr", lis.Addr().String())
		errCh <- h.grpc.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		h.logger.Info("health.stopping")
		h.hs.Shutdown()
		h.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// Watch runs check every interval and publishes the result until ctx is done.
func (h *Health) Watch(ctx context.Context, interval time.Duration, check CheckFunc) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	probe := func() {
		cctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		if err := check(cctx); err != nil {
			h.logger.Warn("health.check.failed", "error", err)
			h.SetServing(false)
			return
		}
		h.SetServing(true)
	}

	probe()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			probe()
		}
	}
}
