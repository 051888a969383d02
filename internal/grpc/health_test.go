package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/fjod/quickmarket/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type togglePinger struct {
	down atomic.Bool
}

func (p *togglePinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("store unreachable")
	}
	return nil
}

func TestHealth(t *testing.T) {
	pinger := &togglePinger{}
	srv, hc := NewServer(pinger, logger.Discard())

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	client := healthpb.NewHealthClient(conn)
	ctx := context.Background()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.Check(ctx))
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	pinger.down.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, hc.Check(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	hc.Shutdown()
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
