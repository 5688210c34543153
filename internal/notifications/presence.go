package notifications

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"ripple/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPresenceOnlineSetKey  = "ws:online_users"
	defaultPresenceLastSeenKeyNS = "ws:last_seen:"
	defaultPresenceTTL           = 90 * time.Second
	defaultOfflineGrace          = 5 * time.Second
	defaultReaperInterval        = 60 * time.Second
)

// PresenceConfig controls Redis presence mirroring and offline detection.
type PresenceConfig struct {
	OnlineSetKey       string
	LastSeenKeyPrefix  string
	LastSeenTTL        time.Duration
	OfflineGracePeriod time.Duration
	ReaperInterval     time.Duration

	// OnOnline and OnOffline fire on state transitions, never on individual
	// connection churn.
	OnOnline  func(userID uint)
	OnOffline func(userID uint)

	// Persist writes the durable presence record. Called once per
	// transition; on the offline edge lastActive carries the timestamp.
	Persist func(userID uint, online bool, lastActive *time.Time)
}

// PresenceRegistry tracks which users have live connections. A user is
// online while they hold at least one connection anywhere; the last
// connection closing starts a grace timer so a page reload does not flap
// presence. Redis mirrors the online set for multi-instance deployments.
type PresenceRegistry struct {
	rdb *redis.Client

	mu            sync.RWMutex
	connCounts    map[uint]int
	offlineTimers map[uint]*time.Timer
	wentOffline   map[uint]bool

	onlineSetKey      string
	lastSeenKeyPrefix string
	lastSeenTTL       time.Duration
	offlineGrace      time.Duration
	reaperInterval    time.Duration

	onOnline  func(userID uint)
	onOffline func(userID uint)
	persist   func(userID uint, online bool, lastActive *time.Time)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresenceRegistry creates a registry and starts a Redis reaper when
// Redis is available.
func NewPresenceRegistry(rdb *redis.Client, cfg PresenceConfig) *PresenceRegistry {
	r := &PresenceRegistry{
		rdb:               rdb,
		connCounts:        make(map[uint]int),
		offlineTimers:     make(map[uint]*time.Timer),
		wentOffline:       make(map[uint]bool),
		onlineSetKey:      defaultPresenceOnlineSetKey,
		lastSeenKeyPrefix: defaultPresenceLastSeenKeyNS,
		lastSeenTTL:       defaultPresenceTTL,
		offlineGrace:      defaultOfflineGrace,
		reaperInterval:    defaultReaperInterval,
		onOnline:          cfg.OnOnline,
		onOffline:         cfg.OnOffline,
		persist:           cfg.Persist,
		stopCh:            make(chan struct{}),
	}

	if cfg.OnlineSetKey != "" {
		r.onlineSetKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenKeyPrefix != "" {
		r.lastSeenKeyPrefix = cfg.LastSeenKeyPrefix
	}
	if cfg.LastSeenTTL > 0 {
		r.lastSeenTTL = cfg.LastSeenTTL
	}
	if cfg.OfflineGracePeriod > 0 {
		r.offlineGrace = cfg.OfflineGracePeriod
	}
	if cfg.ReaperInterval > 0 {
		r.reaperInterval = cfg.ReaperInterval
	}

	if r.rdb != nil && r.reaperInterval > 0 {
		go r.reaperLoop()
	}

	return r
}

// SetCallbacks replaces the transition callbacks.
func (r *PresenceRegistry) SetCallbacks(onOnline, onOffline func(userID uint)) {
	r.mu.Lock()
	r.onOnline = onOnline
	r.onOffline = onOffline
	r.mu.Unlock()
}

// SetPersist replaces the durable presence writer.
func (r *PresenceRegistry) SetPersist(persist func(userID uint, online bool, lastActive *time.Time)) {
	r.mu.Lock()
	r.persist = persist
	r.mu.Unlock()
}

// SetOfflineGracePeriod overrides the offline grace window.
func (r *PresenceRegistry) SetOfflineGracePeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	r.offlineGrace = d
	r.mu.Unlock()
}

// Stop halts the reaper and cancels pending offline timers.
func (r *PresenceRegistry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.mu.Lock()
		for userID, timer := range r.offlineTimers {
			if timer != nil {
				timer.Stop()
			}
			delete(r.offlineTimers, userID)
		}
		r.mu.Unlock()
	})
}

// Register records one new connection for the user. The first connection
// flips them online.
func (r *PresenceRegistry) Register(ctx context.Context, userID uint) {
	wasOnline := r.IsOnline(ctx, userID)

	r.mu.Lock()
	if t, ok := r.offlineTimers[userID]; ok {
		t.Stop()
		delete(r.offlineTimers, userID)
	}
	r.connCounts[userID]++
	r.wentOffline[userID] = false
	r.mu.Unlock()

	r.Touch(ctx, userID)
	if !wasOnline {
		r.emitOnline(userID)
	}
}

// Touch refreshes the user's Redis presence footprint.
func (r *PresenceRegistry) Touch(ctx context.Context, userID uint) {
	if r.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	if err := r.rdb.SAdd(ctx, r.onlineSetKey, uid).Err(); err != nil {
		log.Printf("presence touch SADD failed for user %d: %v", userID, err)
	}
	if err := r.rdb.SetEx(ctx, r.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), r.lastSeenTTL).Err(); err != nil {
		log.Printf("presence touch SETEX failed for user %d: %v", userID, err)
	}
}

// Unregister records one connection closing. When it was the user's last
// connection the grace timer starts; the user only goes offline if no new
// connection arrives before it fires.
func (r *PresenceRegistry) Unregister(ctx context.Context, userID uint) {
	r.mu.Lock()
	if n, ok := r.connCounts[userID]; ok {
		n--
		if n > 0 {
			r.connCounts[userID] = n
			r.mu.Unlock()
			return
		}
		delete(r.connCounts, userID)
	}

	if t, ok := r.offlineTimers[userID]; ok {
		t.Stop()
	}
	r.offlineTimers[userID] = time.AfterFunc(r.offlineGrace, func() {
		r.finalizeOffline(context.Background(), userID)
	})
	r.mu.Unlock()
}

// MarkOffline skips the grace window, used when the client announces it is
// leaving rather than just dropping.
func (r *PresenceRegistry) MarkOffline(ctx context.Context, userID uint) {
	r.mu.Lock()
	if r.connCounts[userID] > 0 {
		r.mu.Unlock()
		return
	}
	if t, ok := r.offlineTimers[userID]; ok {
		t.Stop()
		delete(r.offlineTimers, userID)
	}
	r.mu.Unlock()
	r.finalizeOffline(ctx, userID)
}

// IsOnline reports whether the user has a live connection here or, when
// Redis is configured, anywhere.
func (r *PresenceRegistry) IsOnline(ctx context.Context, userID uint) bool {
	r.mu.RLock()
	if r.connCounts[userID] > 0 {
		r.mu.RUnlock()
		return true
	}
	r.mu.RUnlock()

	if r.rdb == nil {
		return false
	}

	exists, err := r.rdb.Exists(ctx, r.lastSeenKey(userID)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// OnlineUserIDs returns online user IDs from Redis (with stale filtering),
// unioned with local connections as a fallback safety net.
func (r *PresenceRegistry) OnlineUserIDs(ctx context.Context) []uint {
	local := r.localUserIDs()
	if r.rdb == nil {
		return local
	}

	members, err := r.rdb.SMembers(ctx, r.onlineSetKey).Result()
	if err != nil {
		return local
	}

	seen := make(map[uint]struct{}, len(members)+len(local))
	result := make([]uint, 0, len(members)+len(local))

	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			continue
		}
		userID := uint(id64)
		exists, existsErr := r.rdb.Exists(ctx, r.lastSeenKey(userID)).Result()
		if existsErr != nil {
			continue
		}
		if exists == 0 {
			_ = r.rdb.SRem(ctx, r.onlineSetKey, raw).Err()
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		result = append(result, userID)
	}

	for _, userID := range local {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		result = append(result, userID)
	}

	return result
}

// reapOnce is test-visible and performs one cleanup pass.
func (r *PresenceRegistry) reapOnce(ctx context.Context) {
	if r.rdb == nil {
		return
	}

	members, err := r.rdb.SMembers(ctx, r.onlineSetKey).Result()
	if err != nil {
		return
	}

	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			continue
		}
		userID := uint(id64)
		exists, existsErr := r.rdb.Exists(ctx, r.lastSeenKey(userID)).Result()
		if existsErr != nil {
			continue
		}
		if exists > 0 {
			continue
		}

		_ = r.rdb.SRem(ctx, r.onlineSetKey, raw).Err()

		r.mu.RLock()
		hasLocal := r.connCounts[userID] > 0
		r.mu.RUnlock()
		if !hasLocal {
			r.emitOffline(userID)
		}
	}
}

func (r *PresenceRegistry) reaperLoop() {
	ctx := context.Background()
	ticker := time.NewTicker(r.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.reapOnce(ctx)
		}
	}
}

func (r *PresenceRegistry) finalizeOffline(ctx context.Context, userID uint) {
	r.mu.Lock()
	if r.connCounts[userID] > 0 {
		delete(r.offlineTimers, userID)
		r.mu.Unlock()
		return
	}
	delete(r.offlineTimers, userID)
	r.mu.Unlock()

	if r.rdb != nil {
		exists, err := r.rdb.Exists(ctx, r.lastSeenKey(userID)).Result()
		if err == nil && exists > 0 {
			// Another instance still holds a connection for this user.
			return
		}
		_ = r.rdb.SRem(ctx, r.onlineSetKey, strconv.FormatUint(uint64(userID), 10)).Err()
	}

	r.emitOffline(userID)
}

func (r *PresenceRegistry) emitOnline(userID uint) {
	r.mu.Lock()
	r.wentOffline[userID] = false
	onOnline := r.onOnline
	persist := r.persist
	r.mu.Unlock()

	observability.PresenceTransitionsTotal.WithLabelValues("online").Inc()
	if persist != nil {
		persist(userID, true, nil)
	}
	if onOnline != nil {
		onOnline(userID)
	}
}

// emitOffline fires at most once per offline transition, so last-active is
// persisted exactly once even when the grace timer and the reaper race.
func (r *PresenceRegistry) emitOffline(userID uint) {
	r.mu.Lock()
	if r.wentOffline[userID] {
		r.mu.Unlock()
		return
	}
	r.wentOffline[userID] = true
	onOffline := r.onOffline
	persist := r.persist
	r.mu.Unlock()

	observability.PresenceTransitionsTotal.WithLabelValues("offline").Inc()
	if persist != nil {
		now := time.Now().UTC()
		persist(userID, false, &now)
	}
	if onOffline != nil {
		onOffline(userID)
	}
}

func (r *PresenceRegistry) localUserIDs() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint, 0, len(r.connCounts))
	for userID, count := range r.connCounts {
		if count > 0 {
			ids = append(ids, userID)
		}
	}
	return ids
}

func (r *PresenceRegistry) lastSeenKey(userID uint) string {
	return r.lastSeenKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}
