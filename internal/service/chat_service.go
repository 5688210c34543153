// Package service provides application business logic (posts, chat, users, etc.).
package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"ripple/internal/cache"
	"ripple/internal/models"
	"ripple/internal/repository"
)

const maxMessageContentLen = 2000

// ChatService provides direct-messaging business logic. Conversations are
// strictly 1:1; the receiver's messaging preference and block state gate
// both conversation creation and every send.
type ChatService struct {
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	permissions *PermissionService
}

// NewChatService returns a new ChatService.
func NewChatService(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	permissions *PermissionService,
) *ChatService {
	return &ChatService{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		permissions: permissions,
	}
}

// SendMessageInput is the input for sending a direct message.
type SendMessageInput struct {
	SenderID   uint
	ReceiverID uint
	Content    string
	Media      []models.MediaItem
}

// SendMessageResult carries everything delivery needs: the stored message,
// its conversation, and the receiver's unread count after the increment.
type SendMessageResult struct {
	Message        *models.Message
	Conversation   *models.Conversation
	ReceiverUnread int
}

// GetOrCreateConversation resolves the 1:1 conversation between the user and
// the other party, creating it if permitted and absent.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, userID, otherID uint) (*models.Conversation, error) {
	if userID == otherID {
		return nil, models.NewValidationError("Cannot start a conversation with yourself")
	}

	other, err := s.userRepo.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, models.NewNotFoundError("User", otherID)
	}

	allowed, err := s.permissions.CanMessage(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, models.NewPermissionDeniedError("This user does not accept messages from you")
	}

	conv, _, err := s.chatRepo.GetOrCreateConversation(ctx, userID, otherID)
	return conv, err
}

// Conversations lists the user's conversations, most recently active first.
func (s *ChatService) Conversations(ctx context.Context, userID uint, limit, offset int) ([]models.Conversation, error) {
	return s.chatRepo.ListConversations(ctx, userID, limit, offset)
}

// ConversationForUser returns the conversation if the user participates in it.
func (s *ChatService) ConversationForUser(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	conv, err := s.chatRepo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, models.NewNotFoundError("Conversation", conversationID)
	}
	if !isParticipant(conv, userID) {
		return nil, models.NewPermissionDeniedError("You are not a participant in this conversation")
	}
	return conv, nil
}

// Messages lists a conversation's messages, oldest first.
func (s *ChatService) Messages(ctx context.Context, conversationID, userID uint, limit, offset int) ([]models.Message, error) {
	if _, err := s.ConversationForUser(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.chatRepo.ListMessages(ctx, conversationID, limit, offset)
}

// SendMessage validates, permission-checks, and stores a direct message,
// resolving the conversation from the receiver. The receiver's unread
// counter is incremented atomically.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageResult, error) {
	if in.SenderID == in.ReceiverID {
		return nil, models.NewValidationError("Cannot message yourself")
	}
	if err := validateMessageContent(in.Content, in.Media); err != nil {
		return nil, err
	}

	allowed, err := s.permissions.CanMessage(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, models.NewPermissionDeniedError("This user does not accept messages from you")
	}

	conv, _, err := s.chatRepo.GetOrCreateConversation(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Media:          in.Media,
		DeliveryStatus: models.DeliverySent,
	}
	if err := s.chatRepo.CreateMessage(ctx, message); err != nil {
		return nil, err
	}

	if err := s.chatRepo.IncrementUnread(ctx, conv.ID, in.ReceiverID); err != nil {
		return nil, err
	}
	unread, err := s.chatRepo.UnreadCount(ctx, conv.ID, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	cache.InvalidateConversation(ctx, conv.ID)

	return &SendMessageResult{
		Message:        message,
		Conversation:   conv,
		ReceiverUnread: unread,
	}, nil
}

// MarkDelivered advances a message from sent to delivered. Used when the
// receiver's socket acknowledges receipt; already-read messages are left
// alone.
func (s *ChatService) MarkDelivered(ctx context.Context, messageID uint) error {
	return s.chatRepo.AdvanceDelivery(ctx, messageID, models.DeliverySent, models.DeliveryDelivered)
}

// MarkMessagesAsRead marks every message in the conversation not sent by the
// reader as read and zeroes the reader's unread counter. Idempotent; returns
// the IDs of the messages newly marked.
func (s *ChatService) MarkMessagesAsRead(ctx context.Context, conversationID, readerID uint) ([]uint, error) {
	if _, err := s.ConversationForUser(ctx, conversationID, readerID); err != nil {
		return nil, err
	}
	ids, err := s.chatRepo.MarkMessagesRead(ctx, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	cache.InvalidateConversation(ctx, conversationID)
	return ids, nil
}

// DeleteMessage removes a message. Only the sender may delete; the
// conversation's unread counters and last-message pointer are not adjusted
// retroactively.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, userID uint) (*models.Message, error) {
	message, err := s.chatRepo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, models.NewNotFoundError("Message", messageID)
	}
	if message.SenderID != userID {
		return nil, models.NewPermissionDeniedError("You can only delete your own messages")
	}
	if err := s.chatRepo.DeleteMessage(ctx, message); err != nil {
		return nil, err
	}
	cache.InvalidateConversation(ctx, message.ConversationID)
	return message, nil
}

// DeleteConversation removes the conversation and everything in it for both
// sides. Returns the participant IDs so callers can notify the other side.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID, userID uint) ([]uint, error) {
	if _, err := s.ConversationForUser(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	participantIDs, err := s.chatRepo.ParticipantIDs(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.chatRepo.DeleteConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	cache.InvalidateConversation(ctx, conversationID)
	return participantIDs, nil
}

// UnreadCount returns the user's unread counter for one conversation.
func (s *ChatService) UnreadCount(ctx context.Context, conversationID, userID uint) (int, error) {
	return s.chatRepo.UnreadCount(ctx, conversationID, userID)
}

func validateMessageContent(content string, media []models.MediaItem) error {
	if strings.TrimSpace(content) == "" && len(media) == 0 {
		return models.NewValidationError("Message must have content or media")
	}
	if utf8.RuneCountInString(content) > maxMessageContentLen {
		return models.NewValidationError(
			fmt.Sprintf("Message content too long (max %d characters)", maxMessageContentLen))
	}
	if len(media) > models.MaxMessageMedia {
		return models.NewValidationError(
			fmt.Sprintf("Too many attachments (max %d)", models.MaxMessageMedia))
	}
	for _, m := range media {
		if m.URL == "" {
			return models.NewValidationError("Media attachment is missing a URL")
		}
		switch m.Type {
		case "image", "video", "gif":
		default:
			return models.NewValidationError("Unsupported media type: " + m.Type)
		}
	}
	return nil
}

func isParticipant(conv *models.Conversation, userID uint) bool {
	for _, participant := range conv.Participants {
		if participant.UserID == userID {
			return true
		}
	}
	return false
}
