package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"ripple/internal/config"
	"ripple/internal/models"
	"ripple/internal/repository"
	"ripple/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMediaService(t *testing.T) (*MediaService, *models.User) {
	t.Helper()
	db := newTestDB(t)
	user := createTestUser(t, db)
	svc := NewMediaService(repository.NewUserRepository(db), &config.Config{
		UploadDir: t.TempDir(),
	})
	return svc, user
}

func TestMediaService_Upload(t *testing.T) {
	svc, user := newTestMediaService(t)
	ctx := context.Background()

	t.Run("Valid Image With Thumbnail", func(t *testing.T) {
		item, err := svc.Upload(ctx, UploadMediaInput{
			UserID:   user.ID,
			Filename: "pic.png",
			Content:  testutil.TinyPNG(t, 400, 400),
		})
		require.NoError(t, err)
		assert.Equal(t, "image", item.Type)
		assert.True(t, strings.HasPrefix(item.URL, "/media/image/"))

		abs, err := svc.ResolvePath(item.Ref)
		require.NoError(t, err)
		assert.FileExists(t, abs)

		thumb := strings.TrimSuffix(abs, filepath.Ext(abs)) + "_thumb.jpg"
		assert.FileExists(t, thumb)
	})

	t.Run("Empty Upload", func(t *testing.T) {
		_, err := svc.Upload(ctx, UploadMediaInput{UserID: user.ID})
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Corrupt Image Rejected", func(t *testing.T) {
		// A PNG signature followed by garbage sniffs as image/png but
		// does not decode.
		content := append([]byte("\x89PNG\r\n\x1a\n"), []byte("not a real png")...)
		_, err := svc.Upload(ctx, UploadMediaInput{UserID: user.ID, Content: content})
		require.Error(t, err)
		assert.Equal(t, 400, models.HTTPStatus(err))
		assert.Contains(t, err.Error(), "Invalid image file")
	})

	t.Run("Unsupported Type", func(t *testing.T) {
		_, err := svc.Upload(ctx, UploadMediaInput{
			UserID:  user.ID,
			Content: []byte("plain text, definitely not media"),
		})
		assert.Equal(t, 400, models.HTTPStatus(err))
	})

	t.Run("Over Tier Size Limit", func(t *testing.T) {
		policy := models.PolicyFor(models.TierBasic)
		// Trailing padding after IEND keeps the payload a decodable PNG
		// while pushing it past the basic image cap.
		content := testutil.TinyPNG(t, 4, 4)
		content = append(content, make([]byte, policy.MaxImageBytes)...)
		_, err := svc.Upload(ctx, UploadMediaInput{UserID: user.ID, Content: content})
		require.Error(t, err)
		assert.Equal(t, 400, models.HTTPStatus(err))
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("Unknown User", func(t *testing.T) {
		_, err := svc.Upload(ctx, UploadMediaInput{
			UserID:  9999,
			Content: testutil.TinyPNG(t, 4, 4),
		})
		assert.Equal(t, 404, models.HTTPStatus(err))
	})
}

func TestMediaService_ResolvePath(t *testing.T) {
	svc, user := newTestMediaService(t)
	ctx := context.Background()

	item, err := svc.Upload(ctx, UploadMediaInput{
		UserID:  user.ID,
		Content: testutil.TinyPNG(t, 4, 4),
	})
	require.NoError(t, err)

	t.Run("Known Ref", func(t *testing.T) {
		abs, err := svc.ResolvePath(item.Ref)
		require.NoError(t, err)
		assert.FileExists(t, abs)
	})

	t.Run("Traversal Stays Inside Upload Dir", func(t *testing.T) {
		_, err := svc.ResolvePath("image/../../../../etc/passwd")
		require.Error(t, err)
	})

	t.Run("Missing Ref", func(t *testing.T) {
		_, err := svc.ResolvePath("image/nope.png")
		assert.Equal(t, 404, models.HTTPStatus(err))
	})
}
