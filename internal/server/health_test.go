package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startHealth(t *testing.T) (*Health, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	h := NewHealth(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return h, healthpb.NewHealthClient(conn)
}

func check(c healthpb.HealthClient, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	return resp.GetStatus(), err
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	st, err := check(c, service)
	require.NoError(t, err)
	return st
}

func eventuallyStatus(c healthpb.HealthClient, want healthpb.HealthCheckResponse_ServingStatus) func() bool {
	return func() bool {
		st, err := check(c, ServiceName)
		return err == nil && st == want
	}
}

func TestHealth_ServingToggle(t *testing.T) {
	h, c := startHealth(t)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, c, ""))

	h.SetServing(true)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, ""))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, ServiceName))
}

func TestHealth_WatchFollowsCheck(t *testing.T) {
	h, c := startHealth(t)

	var healthy atomic.Bool
	healthy.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Watch(ctx, 10*time.Millisecond, func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("sheet unreachable")
	})

	require.Eventually(t, eventuallyStatus(c, healthpb.HealthCheckResponse_SERVING), 2*time.Second, 10*time.Millisecond)

	healthy.Store(false)
	require.Eventually(t, eventuallyStatus(c, healthpb.HealthCheckResponse_NOT_SERVING), 2*time.Second, 10*time.Millisecond)
}
