package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_GracePeriodSuppressesOfflineOnRapidReconnect(t *testing.T) {
	hub := NewHub()
	hub.presence.SetOfflineGracePeriod(40 * time.Millisecond)

	clientA, err := hub.Register(10, nil)
	require.NoError(t, err)

	hub.UnregisterClient(clientA)
	_, err = hub.Register(10, nil)
	require.NoError(t, err)

	assert.Never(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.wentOffline[10]
	}, 20*testPollInterval, testPollInterval)
	assert.True(t, hub.IsOnline(10))

	_ = hub.Shutdown(context.Background())
}

func TestHub_MultiConnectionLastDisconnectTriggersOfflineOnce(t *testing.T) {
	hub := NewHub()
	hub.presence.SetOfflineGracePeriod(30 * time.Millisecond)

	clientA, err := hub.Register(15, nil)
	require.NoError(t, err)
	clientB, err := hub.Register(15, nil)
	require.NoError(t, err)

	hub.UnregisterClient(clientA)
	assert.Never(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.wentOffline[15]
	}, 30*testPollInterval, testPollInterval)

	hub.UnregisterClient(clientB)
	assert.Eventually(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.wentOffline[15]
	}, testEventuallyTimeout, testPollInterval)
	assert.False(t, hub.IsOnline(15))

	_ = hub.Shutdown(context.Background())
}

func TestHub_PerUserConnectionLimit(t *testing.T) {
	hub := NewHub()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(20, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(20, nil)
	assert.Error(t, err)

	// Other users are unaffected by one user's limit.
	_, err = hub.Register(21, nil)
	assert.NoError(t, err)

	_ = hub.Shutdown(context.Background())
}

func TestHub_BroadcastReachesAllUserConnections(t *testing.T) {
	hub := NewHub()

	clientA, err := hub.Register(30, nil)
	require.NoError(t, err)
	clientB, err := hub.Register(30, nil)
	require.NoError(t, err)
	other, err := hub.Register(31, nil)
	require.NoError(t, err)

	hub.Broadcast(30, "hello")

	assert.Equal(t, "hello", string(<-clientA.Send))
	assert.Equal(t, "hello", string(<-clientB.Send))
	select {
	case msg := <-other.Send:
		t.Fatalf("unrelated user received %q", msg)
	default:
	}

	_ = hub.Shutdown(context.Background())
}

func TestHub_EmitToUserWrapsFrame(t *testing.T) {
	hub := NewHub()

	client, err := hub.Register(40, nil)
	require.NoError(t, err)

	hub.EmitToUser(40, "newMessage", map[string]int{"id": 1})

	assert.JSONEq(t, `{"event":"newMessage","data":{"id":1}}`, string(<-client.Send))

	_ = hub.Shutdown(context.Background())
}

func TestHub_RedisWiringDeliversPublishedFrames(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub(rdb)
	notifier := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, notifier))

	client, err := hub.Register(50, nil)
	require.NoError(t, err)
	other, err := hub.Register(51, nil)
	require.NoError(t, err)

	require.NoError(t, notifier.PublishUser(ctx, 50, `{"event":"ping"}`))

	assert.Eventually(t, func() bool {
		select {
		case msg := <-client.Send:
			return string(msg) == `{"event":"ping"}`
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)

	require.NoError(t, notifier.PublishBroadcast(ctx, `{"event":"announce"}`))

	assert.Eventually(t, func() bool {
		select {
		case msg := <-other.Send:
			return string(msg) == `{"event":"announce"}`
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)

	_ = hub.Shutdown(context.Background())
}
