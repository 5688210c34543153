package server

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"ripple/internal/database"
	"ripple/internal/featureflags"
	"ripple/internal/models"
	"ripple/internal/notifications"
	"ripple/internal/repository"
	"ripple/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newSocketTestServer wires just enough of a Server to drive chat-namespace
// frames through handleChatEvent against an in-memory database.
func newSocketTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database.AllModels()...))

	s := &Server{
		db:         db,
		userRepo:   repository.NewUserRepository(db),
		chatRepo:   repository.NewChatRepository(db),
		socialRepo: repository.NewSocialRepository(db),
		flags:      featureflags.NewManager(""),
	}
	s.hub = notifications.NewHub()
	s.pusher = notifications.NewEventPusher(s.hub, nil)
	s.permissionService = service.NewPermissionService(s.userRepo, s.socialRepo)
	s.chatService = service.NewChatService(s.chatRepo, s.userRepo, s.permissionService)

	t.Cleanup(func() { _ = s.hub.Shutdown(context.Background()) })
	return s
}

func createSocketTestUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{
		Username:          name,
		Email:             name + "@example.com",
		Password:          "hashed-password",
		MessagePreference: models.MessagePreferenceEveryone,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func chatFrame(t *testing.T, event string, data interface{}) notifications.Frame {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return notifications.Frame{Event: event, Data: raw}
}

func TestHandleChatEvent_ConversationDeleted(t *testing.T) {
	s := newSocketTestServer(t)
	ctx := context.Background()
	alice := createSocketTestUser(t, s.db, "alice")
	bob := createSocketTestUser(t, s.db, "bob")

	result, err := s.chatService.SendMessage(ctx, service.SendMessageInput{
		SenderID: alice.ID, ReceiverID: bob.ID, Content: "hello",
	})
	require.NoError(t, err)
	convID := result.Message.ConversationID

	aliceClient, err := s.hub.Register(alice.ID, nil)
	require.NoError(t, err)
	bobClient, err := s.hub.Register(bob.ID, nil)
	require.NoError(t, err)

	s.handleChatEvent(ctx, aliceClient, alice, chatFrame(t, "conversationDeleted", map[string]uint{
		"conversation_id": convID,
	}))

	// Every participant's live connections hear about the deletion.
	expected := fmt.Sprintf(`{"event":"conversationDeleted","data":{"conversation_id":%d}}`, convID)
	assert.JSONEq(t, expected, string(<-bobClient.Send))
	assert.JSONEq(t, expected, string(<-aliceClient.Send))

	// And the conversation is actually gone.
	_, err = s.chatService.ConversationForUser(ctx, convID, alice.ID)
	assert.Equal(t, 404, models.HTTPStatus(err))

	t.Run("Unknown Conversation Errors To Sender Only", func(t *testing.T) {
		s.handleChatEvent(ctx, aliceClient, alice, chatFrame(t, "conversationDeleted", map[string]uint{
			"conversation_id": 999999,
		}))

		var frame notifications.Frame
		require.NoError(t, json.Unmarshal(<-aliceClient.Send, &frame))
		assert.Equal(t, "error", frame.Event)
		assert.Empty(t, bobClient.Send)
	})

	t.Run("Invalid Payload Rejected", func(t *testing.T) {
		s.handleChatEvent(ctx, aliceClient, alice, notifications.Frame{
			Event: "conversationDeleted", Data: json.RawMessage(`{"conversation_id":0}`),
		})

		var frame notifications.Frame
		require.NoError(t, json.Unmarshal(<-aliceClient.Send, &frame))
		assert.Equal(t, "error", frame.Event)
	})
}

func TestHandleChatEvent_CallUserRespectsCallsFlag(t *testing.T) {
	s := newSocketTestServer(t)
	s.flags = featureflags.NewManager("calls=off")
	ctx := context.Background()
	alice := createSocketTestUser(t, s.db, "alice")
	bob := createSocketTestUser(t, s.db, "bob")

	aliceClient, err := s.hub.Register(alice.ID, nil)
	require.NoError(t, err)

	s.handleChatEvent(ctx, aliceClient, alice, chatFrame(t, "callUser", map[string]interface{}{
		"receiver_id": bob.ID, "room_id": "room-1",
	}))

	var frame notifications.Frame
	require.NoError(t, json.Unmarshal(<-aliceClient.Send, &frame))
	assert.Equal(t, "error", frame.Event)
	assert.Contains(t, string(frame.Data), "disabled")
}
