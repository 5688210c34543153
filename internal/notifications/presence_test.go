package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// presenceRecorder counts transitions and persist calls under lock so the
// grace timer goroutine can report safely.
type presenceRecorder struct {
	mu       sync.Mutex
	online   int
	offline  int
	persists []bool
	lastSeen *time.Time
}

func (r *presenceRecorder) config() PresenceConfig {
	return PresenceConfig{
		OnOnline: func(uint) {
			r.mu.Lock()
			r.online++
			r.mu.Unlock()
		},
		OnOffline: func(uint) {
			r.mu.Lock()
			r.offline++
			r.mu.Unlock()
		},
		Persist: func(_ uint, online bool, lastActive *time.Time) {
			r.mu.Lock()
			r.persists = append(r.persists, online)
			r.lastSeen = lastActive
			r.mu.Unlock()
		},
	}
}

func (r *presenceRecorder) counts() (online, offline int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online, r.offline
}

func TestPresenceRegistry_Transitions(t *testing.T) {
	ctx := context.Background()
	rec := &presenceRecorder{}
	reg := NewPresenceRegistry(nil, rec.config())
	reg.SetOfflineGracePeriod(20 * time.Millisecond)
	defer reg.Stop()

	const userID = 7

	t.Run("First Connection Flips Online Once", func(t *testing.T) {
		reg.Register(ctx, userID)
		reg.Register(ctx, userID)

		assert.True(t, reg.IsOnline(ctx, userID))
		online, _ := rec.counts()
		assert.Equal(t, 1, online)
	})

	t.Run("Closing One Of Two Keeps User Online", func(t *testing.T) {
		reg.Unregister(ctx, userID)
		time.Sleep(50 * time.Millisecond)

		assert.True(t, reg.IsOnline(ctx, userID))
		_, offline := rec.counts()
		assert.Zero(t, offline)
	})

	t.Run("Reconnect Within Grace Cancels Offline", func(t *testing.T) {
		reg.Unregister(ctx, userID)
		reg.Register(ctx, userID)
		time.Sleep(50 * time.Millisecond)

		assert.True(t, reg.IsOnline(ctx, userID))
		online, offline := rec.counts()
		assert.Equal(t, 1, online)
		assert.Zero(t, offline)
	})

	t.Run("Last Close Goes Offline After Grace", func(t *testing.T) {
		reg.Unregister(ctx, userID)
		assert.Eventually(t, func() bool {
			_, offline := rec.counts()
			return offline == 1
		}, time.Second, 5*time.Millisecond)

		assert.False(t, reg.IsOnline(ctx, userID))

		rec.mu.Lock()
		defer rec.mu.Unlock()
		// Two persists total: one online edge, one offline edge carrying
		// the last-active timestamp.
		require.Equal(t, []bool{true, false}, rec.persists)
		require.NotNil(t, rec.lastSeen)
	})

	t.Run("Next Session Flips Online Again", func(t *testing.T) {
		reg.Register(ctx, userID)
		online, _ := rec.counts()
		assert.Equal(t, 2, online)
	})
}

func TestPresenceRegistry_MarkOffline(t *testing.T) {
	ctx := context.Background()
	rec := &presenceRecorder{}
	reg := NewPresenceRegistry(nil, rec.config())
	reg.SetOfflineGracePeriod(time.Hour) // must not matter for explicit leave
	defer reg.Stop()

	reg.Register(ctx, 3)
	reg.Unregister(ctx, 3)
	reg.MarkOffline(ctx, 3)

	assert.False(t, reg.IsOnline(ctx, 3))
	_, offline := rec.counts()
	assert.Equal(t, 1, offline)

	// The parked grace timer firing later must not double-report.
	reg.MarkOffline(ctx, 3)
	_, offline = rec.counts()
	assert.Equal(t, 1, offline)
}

func TestPresenceRegistry_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := NewPresenceRegistry(rdb, PresenceConfig{
		OfflineGracePeriod: 10 * time.Millisecond,
	})
	defer reg.Stop()

	t.Run("Register Mirrors To Redis", func(t *testing.T) {
		reg.Register(ctx, 42)

		member, err := rdb.SIsMember(ctx, defaultPresenceOnlineSetKey, "42").Result()
		require.NoError(t, err)
		assert.True(t, member)

		exists, err := rdb.Exists(ctx, defaultPresenceLastSeenKeyNS+"42").Result()
		require.NoError(t, err)
		assert.EqualValues(t, 1, exists)
	})

	t.Run("Remote Presence Counts As Online", func(t *testing.T) {
		// Another instance's footprint: set membership plus a live
		// last-seen key, no local connection.
		require.NoError(t, rdb.SAdd(ctx, defaultPresenceOnlineSetKey, "99").Err())
		require.NoError(t, rdb.Set(ctx, defaultPresenceLastSeenKeyNS+"99", "now", time.Minute).Err())

		assert.True(t, reg.IsOnline(ctx, 99))
		assert.ElementsMatch(t, []uint{42, 99}, reg.OnlineUserIDs(ctx))
	})

	t.Run("Reaper Drops Stale Members", func(t *testing.T) {
		// User 99's last-seen key expires; only the set entry remains.
		require.NoError(t, rdb.Del(ctx, defaultPresenceLastSeenKeyNS+"99").Err())

		reg.reapOnce(ctx)

		member, err := rdb.SIsMember(ctx, defaultPresenceOnlineSetKey, "99").Result()
		require.NoError(t, err)
		assert.False(t, member)
		assert.ElementsMatch(t, []uint{42}, reg.OnlineUserIDs(ctx))
	})

	t.Run("Offline Clears Redis Footprint", func(t *testing.T) {
		reg.Unregister(ctx, 42)
		require.NoError(t, rdb.Del(ctx, defaultPresenceLastSeenKeyNS+"42").Err())

		assert.Eventually(t, func() bool {
			member, err := rdb.SIsMember(ctx, defaultPresenceOnlineSetKey, "42").Result()
			return err == nil && !member
		}, time.Second, 5*time.Millisecond)
		assert.False(t, reg.IsOnline(ctx, 42))
	})
}
