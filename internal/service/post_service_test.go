package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"ripple/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreatePost(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := createTestUser(t, s.db)

	t.Run("Basic Post", func(t *testing.T) {
		view, err := s.posts.CreatePost(ctx, CreatePostInput{
			OwnerID: owner.ID,
			Content: "hello #golang world, cc @someone",
		})
		require.NoError(t, err)
		assert.Equal(t, owner.ID, view.Owner.ID)
		assert.Equal(t, models.VisibilityPublic, view.Visibility)
		assert.Equal(t, []string{"golang"}, view.Hashtags)
		assert.Equal(t, []string{"someone"}, view.Mentions)
		assert.Equal(t, models.EditChances, view.EditChancesLeft)
	})

	t.Run("Empty Content Without Media", func(t *testing.T) {
		_, err := s.posts.CreatePost(ctx, CreatePostInput{OwnerID: owner.ID, Content: "  "})
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Basic Tier Content Limit", func(t *testing.T) {
		_, err := s.posts.CreatePost(ctx, CreatePostInput{
			OwnerID: owner.ID,
			Content: strings.Repeat("x", 201),
		})
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Premium Tier Content Limit", func(t *testing.T) {
		premium := createTestUser(t, s.db, func(u *models.User) { u.IsPremium = true })
		_, err := s.posts.CreatePost(ctx, CreatePostInput{
			OwnerID: premium.ID,
			Content: strings.Repeat("x", 500),
		})
		assert.NoError(t, err)
	})

	t.Run("Invalid Visibility", func(t *testing.T) {
		_, err := s.posts.CreatePost(ctx, CreatePostInput{
			OwnerID:    owner.ID,
			Content:    "hi",
			Visibility: "friends",
		})
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Unsupported Media Type", func(t *testing.T) {
		_, err := s.posts.CreatePost(ctx, CreatePostInput{
			OwnerID: owner.ID,
			Content: "hi",
			Media:   []models.MediaItem{{URL: "/media/audio/a.mp3", Type: "audio"}},
		})
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Mention Notifies Mentioned User", func(t *testing.T) {
		mentioned := createTestUser(t, s.db, func(u *models.User) { u.Username = "mentionme" })
		_, err := s.posts.CreatePost(ctx, CreatePostInput{
			OwnerID: owner.ID,
			Content: "hi @mentionme",
		})
		require.NoError(t, err)

		notifs, err := s.notifications.List(ctx, mentioned.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, models.NotificationMention, notifs[0].Type)
	})
}

func TestPostService_UpdatePost(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := createTestUser(t, s.db)
	other := createTestUser(t, s.db)

	view, err := s.posts.CreatePost(ctx, CreatePostInput{OwnerID: owner.ID, Content: "v1"})
	require.NoError(t, err)
	assert.False(t, view.IsEdited)
	assert.Nil(t, view.EditedAt)

	t.Run("Edit Consumes A Chance And Marks The Post", func(t *testing.T) {
		updated, err := s.posts.UpdatePost(ctx, UpdatePostInput{
			UserID: owner.ID, PostID: view.ID, Content: "v2",
		})
		require.NoError(t, err)
		assert.Equal(t, "v2", updated.Content)
		assert.Equal(t, models.EditChances-1, updated.EditChancesLeft)
		assert.True(t, updated.IsEdited)
		require.NotNil(t, updated.EditedAt)
		assert.WithinDuration(t, time.Now(), *updated.EditedAt, time.Minute)

		stored, err := s.postRepo.GetByID(ctx, view.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsEdited)
		require.NotNil(t, stored.EditedAt)
	})

	t.Run("Only Owner May Edit", func(t *testing.T) {
		_, err := s.posts.UpdatePost(ctx, UpdatePostInput{
			UserID: other.ID, PostID: view.ID, Content: "hijack",
		})
		assert.Equal(t, 403, models.HTTPStatus(err))
	})

	t.Run("Window Expired", func(t *testing.T) {
		s.posts.now = func() time.Time { return time.Now().Add(models.EditWindow + time.Minute) }
		defer func() { s.posts.now = time.Now }()

		_, err := s.posts.UpdatePost(ctx, UpdatePostInput{
			UserID: owner.ID, PostID: view.ID, Content: "too late",
		})
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Chances Exhausted", func(t *testing.T) {
		for i := 0; i < models.EditChances-1; i++ {
			_, err := s.posts.UpdatePost(ctx, UpdatePostInput{
				UserID: owner.ID, PostID: view.ID, Content: "again",
			})
			require.NoError(t, err)
		}
		_, err := s.posts.UpdatePost(ctx, UpdatePostInput{
			UserID: owner.ID, PostID: view.ID, Content: "one too many",
		})
		assert.Equal(t, 400, models.HTTPStatus(err))
	})
}

func TestPostService_Comments(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := createTestUser(t, s.db)
	commenter := createTestUser(t, s.db)

	post, err := s.posts.CreatePost(ctx, CreatePostInput{OwnerID: owner.ID, Content: "root"})
	require.NoError(t, err)

	t.Run("Depth Chain Capped", func(t *testing.T) {
		comment, err := s.posts.CreateComment(ctx, commenter.ID, post.ID, "depth 1")
		require.NoError(t, err)
		assert.Equal(t, 1, comment.Depth)

		reply, err := s.posts.CreateComment(ctx, owner.ID, comment.ID, "depth 2")
		require.NoError(t, err)
		assert.Equal(t, 2, reply.Depth)

		_, err = s.posts.CreateComment(ctx, commenter.ID, reply.ID, "depth 3")
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Comment Updates Parent Stats And Notifies", func(t *testing.T) {
		parent, err := s.posts.GetPost(ctx, owner.ID, post.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), parent.Stats.CommentCount)

		notifs, err := s.notifications.List(ctx, owner.ID, 10, 0)
		require.NoError(t, err)
		require.NotEmpty(t, notifs)
		assert.Equal(t, models.NotificationComment, notifs[len(notifs)-1].Type)
	})

	t.Run("Comments Survive Parent Delete", func(t *testing.T) {
		doomed, err := s.posts.CreatePost(ctx, CreatePostInput{OwnerID: owner.ID, Content: "doomed"})
		require.NoError(t, err)
		comment, err := s.posts.CreateComment(ctx, commenter.ID, doomed.ID, "still here")
		require.NoError(t, err)

		require.NoError(t, s.posts.DeletePost(ctx, owner.ID, doomed.ID))

		kept, err := s.postRepo.GetByID(ctx, comment.ID)
		require.NoError(t, err)
		assert.NotNil(t, kept)
	})
}

func TestPostService_Likes(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := createTestUser(t, s.db)
	liker := createTestUser(t, s.db)

	post, err := s.posts.CreatePost(ctx, CreatePostInput{OwnerID: owner.ID, Content: "like me"})
	require.NoError(t, err)

	view, err := s.posts.LikePost(ctx, liker.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, view.Liked)
	assert.Equal(t, int64(1), view.Stats.LikeCount)

	// Double-like is a no-op.
	view, err = s.posts.LikePost(ctx, liker.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Stats.LikeCount)

	// Owner got exactly one like notification.
	notifs, err := s.notifications.List(ctx, owner.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, notifs, 1)

	view, err = s.posts.UnlikePost(ctx, liker.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, view.Liked)
	assert.Equal(t, int64(0), view.Stats.LikeCount)

	// Unliking again is still fine.
	_, err = s.posts.UnlikePost(ctx, liker.ID, post.ID)
	assert.NoError(t, err)
}

func TestPostService_Reposts(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := createTestUser(t, s.db)
	reposter := createTestUser(t, s.db)
	third := createTestUser(t, s.db)

	post, err := s.posts.CreatePost(ctx, CreatePostInput{OwnerID: owner.ID, Content: "original"})
	require.NoError(t, err)

	t.Run("Repost Wraps Original", func(t *testing.T) {
		view, err := s.posts.Repost(ctx, reposter.ID, post.ID, "take a look")
		require.NoError(t, err)
		require.NotNil(t, view.Original)
		assert.Equal(t, post.ID, view.Original.ID)
		assert.True(t, view.Reposted)

		refreshed, err := s.posts.GetPost(ctx, owner.ID, post.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), refreshed.Stats.RepostCount)
	})

	t.Run("Duplicate Repost Rejected", func(t *testing.T) {
		_, err := s.posts.Repost(ctx, reposter.ID, post.ID, "")
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Repost Of Repost Targets Original", func(t *testing.T) {
		repost, err := s.postRepo.FindRepost(ctx, reposter.ID, post.ID)
		require.NoError(t, err)
		require.NotNil(t, repost)

		chained, err := s.posts.Repost(ctx, third.ID, repost.ID, "")
		require.NoError(t, err)
		require.NotNil(t, chained.Original)
		assert.Equal(t, post.ID, chained.Original.ID)
	})

	t.Run("Own Post Rejected", func(t *testing.T) {
		_, err := s.posts.Repost(ctx, owner.ID, post.ID, "")
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Followers-Only Post Rejected", func(t *testing.T) {
		private, err := s.posts.CreatePost(ctx, CreatePostInput{
			OwnerID: owner.ID, Content: "private", Visibility: models.VisibilityFollowers,
		})
		require.NoError(t, err)

		require.NoError(t, s.social.Follow(ctx, reposter.ID, owner.ID))
		_, err = s.posts.Repost(ctx, reposter.ID, private.ID, "")
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("UndoRepost", func(t *testing.T) {
		require.NoError(t, s.posts.UndoRepost(ctx, reposter.ID, post.ID))

		refreshed, err := s.posts.GetPost(ctx, owner.ID, post.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), refreshed.Stats.RepostCount) // third's repost remains

		err = s.posts.UndoRepost(ctx, reposter.ID, post.ID)
		assert.Equal(t, 404, models.HTTPStatus(err))
	})
}

func TestPostService_RepostOfBlockedAuthorHidesOriginal(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	author := createTestUser(t, s.db)
	reposter := createTestUser(t, s.db)
	viewer := createTestUser(t, s.db)

	post, err := s.posts.CreatePost(ctx, CreatePostInput{OwnerID: author.ID, Content: "hot take"})
	require.NoError(t, err)
	repost, err := s.posts.Repost(ctx, reposter.ID, post.ID, "seconded")
	require.NoError(t, err)

	require.NoError(t, s.social.Block(ctx, viewer.ID, author.ID))

	t.Run("Nested Original Suppressed For Blocking Viewer", func(t *testing.T) {
		view, err := s.posts.GetPost(ctx, viewer.ID, repost.ID)
		require.NoError(t, err)
		assert.Equal(t, reposter.ID, view.Owner.ID)
		assert.Equal(t, "seconded", view.Content)
		assert.Nil(t, view.Original, "blocked author's post must not surface through a repost")
	})

	t.Run("Other Viewers Still See The Original", func(t *testing.T) {
		other := createTestUser(t, s.db)
		view, err := s.posts.GetPost(ctx, other.ID, repost.ID)
		require.NoError(t, err)
		require.NotNil(t, view.Original)
		assert.Equal(t, post.ID, view.Original.ID)
		assert.Equal(t, "hot take", view.Original.Content)
	})
}

func TestPostService_VisibilityGates(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := createTestUser(t, s.db)
	follower := createTestUser(t, s.db)
	stranger := createTestUser(t, s.db)

	require.NoError(t, s.social.Follow(ctx, follower.ID, owner.ID))

	private, err := s.posts.CreatePost(ctx, CreatePostInput{
		OwnerID: owner.ID, Content: "followers only", Visibility: models.VisibilityFollowers,
	})
	require.NoError(t, err)

	t.Run("Follower Sees Followers-Only", func(t *testing.T) {
		view, err := s.posts.GetPost(ctx, follower.ID, private.ID)
		require.NoError(t, err)
		assert.Equal(t, private.ID, view.ID)
	})

	t.Run("Stranger Gets Not Found", func(t *testing.T) {
		_, err := s.posts.GetPost(ctx, stranger.ID, private.ID)
		assert.Equal(t, 404, models.HTTPStatus(err))
	})

	t.Run("Blocked Viewer Gets Not Found Even For Public", func(t *testing.T) {
		public, err := s.posts.CreatePost(ctx, CreatePostInput{OwnerID: owner.ID, Content: "public"})
		require.NoError(t, err)

		require.NoError(t, s.social.Block(ctx, owner.ID, stranger.ID))
		_, err = s.posts.GetPost(ctx, stranger.ID, public.ID)
		assert.Equal(t, 404, models.HTTPStatus(err))
	})

	t.Run("Feed Excludes Blocked Owners", func(t *testing.T) {
		feed, err := s.posts.Feed(ctx, stranger.ID, 50, 0)
		require.NoError(t, err)
		for _, v := range feed {
			assert.NotEqual(t, owner.ID, v.Owner.ID)
		}
	})
}

func TestPostService_Bookmarks(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := createTestUser(t, s.db)
	reader := createTestUser(t, s.db)

	post, err := s.posts.CreatePost(ctx, CreatePostInput{OwnerID: owner.ID, Content: "save me"})
	require.NoError(t, err)

	require.NoError(t, s.posts.BookmarkPost(ctx, reader.ID, post.ID))
	// Idempotent.
	require.NoError(t, s.posts.BookmarkPost(ctx, reader.ID, post.ID))

	saved, err := s.posts.Bookmarks(ctx, reader.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.True(t, saved[0].Bookmarked)

	require.NoError(t, s.posts.UnbookmarkPost(ctx, reader.ID, post.ID))
	saved, err = s.posts.Bookmarks(ctx, reader.ID, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestPostService_Search(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := createTestUser(t, s.db)
	viewer := createTestUser(t, s.db)

	_, err := s.posts.CreatePost(ctx, CreatePostInput{OwnerID: owner.ID, Content: "gophers assemble"})
	require.NoError(t, err)
	_, err = s.posts.CreatePost(ctx, CreatePostInput{OwnerID: owner.ID, Content: "unrelated"})
	require.NoError(t, err)

	results, err := s.posts.Search(ctx, viewer.ID, "gophers", 50, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "gophers")

	_, err = s.posts.Search(ctx, viewer.ID, "  ", 50, 0)
	assert.Equal(t, 400, models.HTTPStatus(err))
}
