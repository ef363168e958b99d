package rpc

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/danielpatrickdp/spiral-state/internal/blobstore"
	"github.com/danielpatrickdp/spiral-state/internal/lifecycle"
	"github.com/danielpatrickdp/spiral-state/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("google.golang.org/grpc/internal/grpcsync.(*CallbackSerializer).run"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// startServer runs a Server over an in-memory listener and returns a
// connected Client plus the raw connection.
func startServer(t *testing.T, backend Backend) (*Server, *Client, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(backend, nil)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
		select {
		case err := <-serveErr:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv, NewClientWithService(NewStateServiceClient(conn)), conn
}

func startedHost(t *testing.T) *lifecycle.Host {
	t.Helper()
	h := lifecycle.NewHost(blobstore.NewMemoryStore())
	require.NoError(t, h.Start(context.Background()))
	return h
}

func TestCounterOverGRPC(t *testing.T) {
	_, c, _ := startServer(t, startedHost(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, v)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Inc(ctx))
	}
	v, err = c.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)

	require.NoError(t, c.Set(ctx, 100))
	v, err = c.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 100, v)
}

func TestGreetingOverGRPC(t *testing.T) {
	_, c, _ := startServer(t, startedHost(t))
	got, err := c.Greeting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello World", got)
}

func TestOverflowMapsToOutOfRange(t *testing.T) {
	h := startedHost(t)
	require.NoError(t, h.Set(math.MaxUint32))
	_, c, _ := startServer(t, h)

	err := c.Inc(context.Background())
	require.Error(t, err)
	assert.Equal(t, codes.OutOfRange, status.Code(err))

	v, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, uint32(math.MaxUint32), v)
}

func TestNotReadyMapsToFailedPrecondition(t *testing.T) {
	h := lifecycle.NewHost(blobstore.NewMemoryStore())
	_, c, _ := startServer(t, h)

	_, err := c.Get(context.Background())
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestHealthStatus(t *testing.T) {
	srv, _, conn := startServer(t, startedHost(t))
	hc := healthpb.NewHealthClient(conn)
	ctx := context.Background()

	resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	srv.SetServing(true)
	resp, err = hc.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestToStatusInternal(t *testing.T) {
	err := toStatus(errors.New("boom"))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, codes.FailedPrecondition, status.Code(toStatus(state.ErrStateNotReady)))
}
