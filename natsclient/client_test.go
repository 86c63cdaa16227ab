package natsclient

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/metric"
)

func TestConnectionStatus_String(t *testing.T) {
	cases := map[ConnectionStatus]string{
		StatusDisconnected:   "disconnected",
		StatusConnecting:     "connecting",
		StatusConnected:      "connected",
		StatusReconnecting:   "reconnecting",
		StatusClosed:         "closed",
		ConnectionStatus(42): "unknown",
	}
	for status, want := range cases {
		assert.Equal(t, want, status.String())
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Nil(t, client.GetConnection())
	assert.Equal(t, -1, client.maxReconnects)
}

func TestNewClient_InvalidOptions(t *testing.T) {
	_, err := NewClient("nats://localhost:4222", WithTimeout(0))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewClient("nats://localhost:4222", WithCredentials("user", ""))
	require.Error(t, err)
}

func TestClient_OperationsWithoutConnection(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, client.Publish(ctx, "robot.gps.fix", []byte("{}")), ErrNotConnected)
	assert.ErrorIs(t, client.Subscribe(ctx, "robot.gps.fix", func(context.Context, []byte) {}), ErrNotConnected)

	_, err = client.Request(ctx, "rti.connect", nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_ConnectFailureIsTransient(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(200*time.Millisecond),
		WithMaxReconnects(0),
		WithMetrics(registry),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, int32(1), client.Failures())
	assert.Equal(t, float64(StatusDisconnected), testutil.ToFloat64(client.metrics.status))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithCredentials("robot", "secret"))
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))
	assert.Equal(t, StatusClosed, client.Status())
	assert.Empty(t, client.password, "credentials must be cleared on close")

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestClient_ConnectionOptionsIncludeAuth(t *testing.T) {
	plain, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	authed, err := NewClient("nats://localhost:4222",
		WithCredentials("robot", "secret"),
		WithToken("tok"),
		WithName("rospitch"),
	)
	require.NoError(t, err)

	assert.Len(t, authed.ConnectionOptions(), len(plain.ConnectionOptions())+3)
}

func TestClient_ConnectionOptionsIncludeTLS(t *testing.T) {
	plain, err := NewClient("nats://localhost:4222", WithTLSConfig(nil))
	require.NoError(t, err)

	secure, err := NewClient("tls://localhost:4222", WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	require.NoError(t, err)

	opts := nats.GetDefaultOptions()
	for _, o := range secure.ConnectionOptions() {
		require.NoError(t, o(&opts))
	}
	assert.True(t, opts.Secure)
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), opts.TLSConfig.MinVersion)
	assert.Len(t, secure.ConnectionOptions(), len(plain.ConnectionOptions())+1)
}
