package service

import (
	"context"
	"strings"
	"testing"

	"ripple/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_GetProfile(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createTestUser(t, s.db, func(u *models.User) {
		u.DisplayName = "Alice A"
		u.Bio = "hello"
		u.MessagePreference = models.MessagePreferenceFollowers
	})
	bob := createTestUser(t, s.db)

	require.NoError(t, s.social.Follow(ctx, bob.ID, alice.ID))

	t.Run("Own Profile Includes Preference", func(t *testing.T) {
		view, err := s.users.GetProfile(ctx, alice.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, alice.Username, view.Profile.Username)
		assert.Equal(t, "Alice A", view.DisplayName)
		assert.Equal(t, models.MessagePreferenceFollowers, view.Preference)
		assert.Equal(t, int64(1), view.FollowersCount)
	})

	t.Run("Other Viewer Sees Relationship, Not Preference", func(t *testing.T) {
		view, err := s.users.GetProfile(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		assert.Empty(t, view.Preference)
		assert.True(t, view.Following)
		assert.False(t, view.FollowedBy)
	})

	t.Run("Blocked Pair Sees Redacted Shell", func(t *testing.T) {
		require.NoError(t, s.social.Block(ctx, alice.ID, bob.ID))

		view, err := s.users.GetProfile(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "unknown", view.Profile.Username)
		assert.True(t, view.IsBlocked)
		assert.Empty(t, view.Bio)
		assert.Zero(t, view.FollowersCount)
	})

	t.Run("Unknown User", func(t *testing.T) {
		_, err := s.users.GetProfile(ctx, alice.ID, 9999)
		assert.Equal(t, 404, models.HTTPStatus(err))
	})
}

func TestUserService_UpdateProfile(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createTestUser(t, s.db)
	bob := createTestUser(t, s.db, func(u *models.User) { u.Username = "taken" })

	t.Run("Partial Update", func(t *testing.T) {
		updated, err := s.users.UpdateProfile(ctx, UpdateProfileInput{
			UserID: alice.ID,
			Bio:    "new bio",
		})
		require.NoError(t, err)
		assert.Equal(t, "new bio", updated.Bio)
		assert.Equal(t, alice.Username, updated.Username)
	})

	t.Run("Username Collision", func(t *testing.T) {
		_, err := s.users.UpdateProfile(ctx, UpdateProfileInput{
			UserID:   alice.ID,
			Username: bob.Username,
		})
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Invalid Username", func(t *testing.T) {
		_, err := s.users.UpdateProfile(ctx, UpdateProfileInput{
			UserID:   alice.ID,
			Username: "has spaces!",
		})
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Bio Too Long", func(t *testing.T) {
		_, err := s.users.UpdateProfile(ctx, UpdateProfileInput{
			UserID: alice.ID,
			Bio:    strings.Repeat("x", 301),
		})
		assert.Equal(t, 400, models.HTTPStatus(err))
	})
}

func TestUserService_UpdateMessagePreference(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createTestUser(t, s.db)

	require.NoError(t, s.users.UpdateMessagePreference(ctx, alice.ID, models.MessagePreferenceMutual))

	user, err := s.users.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessagePreferenceMutual, user.MessagePreference)

	err = s.users.UpdateMessagePreference(ctx, alice.ID, "whoever")
	assert.Equal(t, 400, models.HTTPStatus(err))
}

func TestUserService_SearchUsers(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	viewer := createTestUser(t, s.db)
	createTestUser(t, s.db, func(u *models.User) { u.Username = "findme_one" })
	hidden := createTestUser(t, s.db, func(u *models.User) { u.Username = "findme_two" })

	require.NoError(t, s.social.Block(ctx, viewer.ID, hidden.ID))

	results, err := s.users.SearchUsers(ctx, viewer.ID, "findme", 50, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "findme_one", results[0].Username)

	_, err = s.users.SearchUsers(ctx, viewer.ID, " ", 50, 0)
	assert.Equal(t, 400, models.HTTPStatus(err))
}
