package server

import (
	"context"
	"fmt"

	"ripple/internal/models"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateConversation handles POST /api/conversations. The body names the
// other participant; the existing 1:1 thread is returned when there is one.
func (s *Server) CreateConversation(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return models.RespondWithError(c,
			models.NewValidationError("Invalid request body"))
	}

	conv, err := s.chatService.GetOrCreateConversation(c.Context(), userID, req.UserID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"conversation": conv})
}

// GetConversations handles GET /api/conversations
func (s *Server) GetConversations(c *fiber.Ctx) error {
	userID := currentUserID(c)
	p := parsePagination(c, 20)

	convs, err := s.chatService.Conversations(c.Context(), userID, p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

// GetConversation handles GET /api/conversations/:id
func (s *Server) GetConversation(c *fiber.Ctx) error {
	userID := currentUserID(c)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	conv, err := s.chatService.ConversationForUser(c.Context(), convID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"conversation": conv})
}

// GetMessages handles GET /api/conversations/:id/messages
func (s *Server) GetMessages(c *fiber.Ctx) error {
	userID := currentUserID(c)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, 50)

	messages, err := s.chatService.Messages(c.Context(), convID, userID, p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// SendMessage handles POST /api/conversations/:id/messages
func (s *Server) SendMessage(c *fiber.Ctx) error {
	userID := currentUserID(c)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string             `json:"content"`
		Media   []models.MediaItem `json:"media"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c,
			models.NewValidationError("Invalid request body"))
	}

	conv, err := s.chatService.ConversationForUser(c.Context(), convID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	receiverID, ok := otherParticipant(conv, userID)
	if !ok {
		return models.RespondWithError(c,
			models.NewInternalError(fmt.Errorf("conversation %d has no second participant", convID)))
	}

	result, err := s.chatService.SendMessage(c.Context(), service.SendMessageInput{
		SenderID:   userID,
		ReceiverID: receiverID,
		Content:    req.Content,
		Media:      req.Media,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	s.deliverMessage(c.Context(), userID, receiverID, result)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": result.Message})
}

// MarkConversationRead handles POST /api/conversations/:id/read
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	userID := currentUserID(c)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	messageIDs, err := s.chatService.MarkMessagesAsRead(c.Context(), convID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	s.notifyMessagesRead(c.Context(), convID, userID, messageIDs)

	return c.JSON(fiber.Map{
		"status":      "success",
		"message_ids": messageIDs,
	})
}

// GetUnreadCount handles GET /api/conversations/:id/unread
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	userID := currentUserID(c)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	count, err := s.chatService.UnreadCount(c.Context(), convID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

// DeleteMessage handles DELETE /api/conversations/:id/messages/:messageId
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	userID := currentUserID(c)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	messageID, err := s.parseID(c, "messageId")
	if err != nil {
		return nil
	}

	msg, err := s.chatService.DeleteMessage(c.Context(), messageID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	if msg.ConversationID != convID {
		return models.RespondWithError(c,
			models.NewNotFoundError("Message", messageID))
	}

	s.pushToParticipants(c.Context(), convID, 0, "messageDeleted", fiber.Map{
		"conversation_id": convID,
		"message_id":      messageID,
	})

	return c.JSON(fiber.Map{"status": "success"})
}

// DeleteConversation handles DELETE /api/conversations/:id
func (s *Server) DeleteConversation(c *fiber.Ctx) error {
	userID := currentUserID(c)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	participantIDs, err := s.chatService.DeleteConversation(c.Context(), convID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	for _, pid := range participantIDs {
		s.pusher.PushToUser(pid, "conversationDeleted", fiber.Map{
			"conversation_id": convID,
		})
	}

	return c.JSON(fiber.Map{"status": "success"})
}

// deliverMessage performs the realtime fan-out for one stored message: the
// receiver gets the message and an updated unread counter, and the sender's
// other devices get an echo. An online receiver advances delivery to
// "delivered" before the push.
func (s *Server) deliverMessage(ctx context.Context, senderID, receiverID uint, result *service.SendMessageResult) {
	msg := result.Message

	if s.hub != nil && s.hub.IsOnline(receiverID) {
		if err := s.chatService.MarkDelivered(ctx, msg.ID); err == nil {
			msg.DeliveryStatus = models.DeliveryDelivered
		}
	}

	s.pusher.PushToUser(receiverID, "receiveMessage", fiber.Map{
		"conversation_id": msg.ConversationID,
		"message":         msg,
	})
	s.pusher.PushToUser(receiverID, "unreadCountUpdated", fiber.Map{
		"conversation_id": msg.ConversationID,
		"unread_count":    result.ReceiverUnread,
	})
	s.pusher.PushToUser(senderID, "messageSent", fiber.Map{
		"conversation_id": msg.ConversationID,
		"message":         msg,
	})
}

// notifyMessagesRead tells the other participant which of their messages
// were just read.
func (s *Server) notifyMessagesRead(ctx context.Context, convID, readerID uint, messageIDs []uint) {
	if len(messageIDs) == 0 {
		return
	}
	s.pushToParticipants(ctx, convID, readerID, "messagesRead", fiber.Map{
		"conversation_id": convID,
		"message_ids":     messageIDs,
		"reader_id":       readerID,
	})
}

// pushToParticipants sends an event to every conversation participant except
// exceptID (0 means everyone).
func (s *Server) pushToParticipants(ctx context.Context, convID, exceptID uint, event string, data interface{}) {
	participantIDs, err := s.chatRepo.ParticipantIDs(ctx, convID)
	if err != nil {
		return
	}
	for _, pid := range participantIDs {
		if pid == exceptID {
			continue
		}
		s.pusher.PushToUser(pid, event, data)
	}
}

// otherParticipant returns the participant that is not userID.
func otherParticipant(conv *models.Conversation, userID uint) (uint, bool) {
	for _, p := range conv.Participants {
		if p.UserID != userID {
			return p.UserID, true
		}
	}
	return 0, false
}
