package service

import (
	"context"
	"sync"
	"testing"

	"ripple/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPusher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturingPusher) PushToUser(userID uint, event string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func TestNotificationService(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createTestUser(t, s.db)
	bob := createTestUser(t, s.db)

	t.Run("Notify Stores And Pushes", func(t *testing.T) {
		pusher := &capturingPusher{}
		svc := NewNotificationService(s.notifRepo, pusher)

		require.NoError(t, svc.Notify(ctx, alice.ID, bob.ID, models.NotificationLike, "bob liked your post", nil))

		notifs, err := svc.List(ctx, alice.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, models.NotificationLike, notifs[0].Type)
		assert.False(t, notifs[0].Read)
		assert.Equal(t, []string{"notification"}, pusher.events)
	})

	t.Run("Self Notification Dropped", func(t *testing.T) {
		require.NoError(t, s.notifications.Notify(ctx, bob.ID, bob.ID, models.NotificationLike, "self like", nil))

		count, err := s.notifications.UnreadCount(ctx, bob.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("Mark Read", func(t *testing.T) {
		notifs, err := s.notifications.List(ctx, alice.ID, 10, 0)
		require.NoError(t, err)
		require.NotEmpty(t, notifs)

		require.NoError(t, s.notifications.MarkRead(ctx, alice.ID, notifs[0].ID))

		count, err := s.notifications.UnreadCount(ctx, alice.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		// Someone else's notification looks like it does not exist.
		err = s.notifications.MarkRead(ctx, bob.ID, notifs[0].ID)
		assert.Equal(t, 404, models.HTTPStatus(err))
	})

	t.Run("Mark All Read", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, s.notifications.Notify(ctx, alice.ID, bob.ID, models.NotificationFollow, "bob followed you", nil))
		}
		require.NoError(t, s.notifications.MarkAllRead(ctx, alice.ID))

		count, err := s.notifications.UnreadCount(ctx, alice.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("Delete", func(t *testing.T) {
		notifs, err := s.notifications.List(ctx, alice.ID, 10, 0)
		require.NoError(t, err)
		require.NotEmpty(t, notifs)
		before := len(notifs)

		// Someone else's notification looks like it does not exist.
		err = s.notifications.Delete(ctx, bob.ID, notifs[0].ID)
		assert.Equal(t, 404, models.HTTPStatus(err))

		require.NoError(t, s.notifications.Delete(ctx, alice.ID, notifs[0].ID))

		notifs, err = s.notifications.List(ctx, alice.ID, 10, 0)
		require.NoError(t, err)
		assert.Len(t, notifs, before-1)

		err = s.notifications.Delete(ctx, alice.ID, 999999)
		assert.Equal(t, 404, models.HTTPStatus(err))
	})

	t.Run("Delete All", func(t *testing.T) {
		require.NoError(t, s.notifications.Notify(ctx, bob.ID, alice.ID, models.NotificationLike, "alice liked your post", nil))
		require.NoError(t, s.notifications.DeleteAll(ctx, alice.ID))

		notifs, err := s.notifications.List(ctx, alice.ID, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, notifs)

		// Other recipients keep theirs.
		notifs, err = s.notifications.List(ctx, bob.ID, 10, 0)
		require.NoError(t, err)
		assert.NotEmpty(t, notifs)
	})
}
