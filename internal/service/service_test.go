package service

import (
	"fmt"
	"testing"

	"ripple/internal/database"
	"ripple/internal/models"
	"ripple/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testUserSeq int

// newTestDB opens a fresh in-memory SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled second connection would see an empty database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(database.AllModels()...))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, overrides ...func(*models.User)) *models.User {
	t.Helper()
	testUserSeq++
	user := &models.User{
		Username:          fmt.Sprintf("user%d", testUserSeq),
		Email:             fmt.Sprintf("user%d@example.com", testUserSeq),
		Password:          "hashed-password",
		MessagePreference: models.MessagePreferenceEveryone,
	}
	for _, override := range overrides {
		override(user)
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// testServices bundles the fully wired service layer over one test database.
type testServices struct {
	db         *gorm.DB
	userRepo   repository.UserRepository
	socialRepo repository.SocialRepository
	postRepo   repository.PostRepository
	chatRepo   repository.ChatRepository
	notifRepo  repository.NotificationRepository

	users         *UserService
	social        *SocialService
	posts         *PostService
	chat          *ChatService
	notifications *NotificationService
	permissions   *PermissionService
	visibility    *VisibilityService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	db := newTestDB(t)

	s := &testServices{
		db:         db,
		userRepo:   repository.NewUserRepository(db),
		socialRepo: repository.NewSocialRepository(db),
		postRepo:   repository.NewPostRepository(db),
		chatRepo:   repository.NewChatRepository(db),
		notifRepo:  repository.NewNotificationRepository(db),
	}
	s.notifications = NewNotificationService(s.notifRepo, nil)
	s.permissions = NewPermissionService(s.userRepo, s.socialRepo)
	s.visibility = NewVisibilityService(s.postRepo, s.socialRepo)
	s.users = NewUserService(s.userRepo, s.socialRepo)
	s.social = NewSocialService(s.socialRepo, s.userRepo, s.notifications)
	s.posts = NewPostService(s.postRepo, s.userRepo, s.socialRepo, s.visibility, s.notifications)
	s.chat = NewChatService(s.chatRepo, s.userRepo, s.permissions)
	return s
}
