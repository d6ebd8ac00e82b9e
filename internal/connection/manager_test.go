package connection

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/logger"

	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(client *fakeClient, subs ...string) *Manager {
	return NewManagerWithClient(client, Options{
		Broker:        "tcp://test:1883",
		Timeout:       50 * time.Millisecond,
		Subscriptions: subs,
		InboundBuffer: 4,
		BatchSize:     2,
		OutboxSize:    2,
		Logger:        logger.NewMockLogger(),
	})
}

func TestConnectSubscribesBeforeConnected(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(client, "pv_tracker/sensors", "pv_tracker/status/+")
	ctx := context.Background()

	assert.Equal(t, Disconnected, m.State())
	require.NoError(t, m.Connect(ctx))

	assert.Equal(t, Connected, m.State())
	assert.Contains(t, client.handlers, "pv_tracker/sensors")
	assert.Contains(t, client.handlers, "pv_tracker/status/+")

	// Idempotent while connected
	require.NoError(t, m.Connect(ctx))
	assert.Equal(t, 1, client.connects)
}

func TestConnectFailureLeavesDisconnected(t *testing.T) {
	client := newFakeClient()
	client.connectErr = fmt.Errorf("connection refused")
	m := newTestManager(client)

	err := m.Connect(context.Background())
	var connErr *errors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "connect", connErr.Op)
	assert.Equal(t, Disconnected, m.State())
}

func TestRefusedCredentialsAreNotRecoverable(t *testing.T) {
	client := newFakeClient()
	client.connectErr = fmt.Errorf("%w : %v", packets.ErrorRefusedBadUsernameOrPassword, "connack rc=4")
	m := newTestManager(client)

	err := m.Connect(context.Background())
	var connErr *errors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, errors.SeverityCritical, connErr.Severity)
	assert.False(t, errors.IsRecoverable(err))
	assert.Equal(t, errors.CodeConnection, errors.GetDiagnosticCode(err))

	client.connectErr = fmt.Errorf("connection refused")
	assert.True(t, errors.IsRecoverable(m.Connect(context.Background())))
}

func TestSubscribeFailureLeavesDisconnected(t *testing.T) {
	client := newFakeClient()
	client.subErr = fmt.Errorf("not authorized")
	m := newTestManager(client, "pv_tracker/commands/d1")

	err := m.Connect(context.Background())
	var connErr *errors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "pv_tracker/commands/d1", connErr.Topic)
	assert.Equal(t, Disconnected, m.State())
	assert.False(t, client.IsConnected())
}

func TestPublishFailsFastWhileDisconnected(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(client)
	ctx := context.Background()

	assert.False(t, m.Publish(ctx, "pv_tracker/sensors", []byte("{}")))
	assert.Empty(t, client.topics())

	require.NoError(t, m.Connect(ctx))
	assert.True(t, m.Publish(ctx, "pv_tracker/sensors", []byte("{}")))
	assert.Equal(t, []string{"pv_tracker/sensors"}, client.topics())
}

func TestPublishErrorMarksDisconnectedAndReconnectRestores(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(client)
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))

	client.publishErr = fmt.Errorf("broken pipe")
	assert.False(t, m.Publish(ctx, "t", []byte("a")))
	assert.Equal(t, Disconnected, m.State())

	client.publishErr = nil
	require.NoError(t, m.Connect(ctx))
	assert.True(t, m.Publish(ctx, "t", []byte("b")))
}

func TestPublishTimeoutIsConnectionFailure(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(client)
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))

	client.hangPublish = true
	start := time.Now()
	assert.False(t, m.Publish(ctx, "t", []byte("a")))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Disconnected, m.State())
}

func TestKeepAliveDrainsOneBatch(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(client, "pv_tracker/sensors")
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))

	for i := 0; i < 3; i++ {
		require.NoError(t, client.deliver("pv_tracker/sensors", fmt.Sprintf(`{"n":%d}`, i)))
	}

	batch, err := m.KeepAlive(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, `{"n":0}`, string(batch[0].Payload))

	batch, err = m.KeepAlive(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "pv_tracker/sensors", batch[0].Topic)

	batch, err = m.KeepAlive(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestKeepAliveDetectsDeadConnectionAndKeepsBuffer(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(client, "pv_tracker/sensors")
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))

	require.NoError(t, client.deliver("pv_tracker/sensors", "buffered"))
	client.drop()

	_, err := m.KeepAlive(ctx)
	var connErr *errors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, Disconnected, m.State())

	require.NoError(t, m.Connect(ctx))
	batch, err := m.KeepAlive(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "buffered", string(batch[0].Payload))
}

func TestConnectionLostHandlerMarksDown(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(client)
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))

	m.onConnectionLost(nil, fmt.Errorf("EOF"))
	assert.False(t, m.Publish(ctx, "t", []byte("x")))
	assert.Equal(t, Disconnected, m.State())
}

func TestInboundOverflowDropsNewest(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(client, "s")
	require.NoError(t, m.Connect(context.Background()))

	for i := 0; i < 6; i++ {
		require.NoError(t, client.deliver("s", "x"))
	}
	assert.Equal(t, int64(2), m.Dropped())
}

func TestEnqueueFlushesInOrderAfterConnect(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(client)
	ctx := context.Background()

	assert.False(t, m.Enqueue(ctx, "status/1", []byte("a"), true))
	assert.False(t, m.Enqueue(ctx, "status/2", []byte("b"), true))
	assert.False(t, m.Enqueue(ctx, "status/3", []byte("c"), true))
	assert.Equal(t, 2, m.OutboxLen(), "oldest entry dropped when full")

	require.NoError(t, m.Connect(ctx))
	assert.Equal(t, []string{"status/2", "status/3"}, client.topics())
	assert.True(t, client.published[0].retained)
	assert.Equal(t, 0, m.OutboxLen())

	assert.True(t, m.Enqueue(ctx, "status/4", []byte("d"), false))
}

func TestDisconnectIsSafeInAnyState(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(client)

	m.Disconnect()
	assert.Equal(t, Disconnected, m.State())

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()
	assert.Equal(t, Disconnected, m.State())
	assert.False(t, client.IsConnected())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.MQTTConfig{Broker: "b", Port: 1883, ClientID: "pv", Timeout: 2000, KeepAlive: 30, QoS: 1}
	opts := OptionsFromConfig(cfg, "server", "a", "b")

	assert.Equal(t, "tcp://b:1883", opts.Broker)
	assert.Regexp(t, `^pv_server_[0-9a-f]{8}$`, opts.ClientID)
	assert.Equal(t, 2*time.Second, opts.Timeout)
	assert.Equal(t, byte(1), opts.QoS)
	assert.Equal(t, []string{"a", "b"}, opts.Subscriptions)
}

func TestNewManagerBuildsPahoClient(t *testing.T) {
	m := NewManager(Options{Broker: "tcp://127.0.0.1:1", ClientID: "test", Will: &Will{Topic: "status/x", Payload: []byte(`{"online":false}`)}})
	assert.NotNil(t, m.client)
	assert.Equal(t, Disconnected, m.State())
	assert.False(t, m.Publish(context.Background(), "t", nil))
}
