package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ripple/internal/featureflags"
	"ripple/internal/middleware"
	"ripple/internal/models"
	"ripple/internal/notifications"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketChatHandler handles the chat namespace: direct messages, typing
// indicators, read receipts, presence, and call invitations. Clients speak
// {"event": ..., "data": ...} frames in both directions; errors caused by a
// frame go back to the originating connection only.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		ctx := context.Background()

		// Get userID from context locals (set by AuthRequired middleware)
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			log.Printf("WebSocket Chat: Unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage,
				notifications.EncodeFrame("error", fiber.Map{"message": "unauthorized"}))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil || user == nil {
			log.Printf("WebSocket Chat: Failed to get user %d: %v", userID, err)
			_ = conn.Close()
			return
		}

		if s.hub == nil {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			log.Printf("WebSocket Chat: Failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage,
				notifications.EncodeFrame("error", fiber.Map{"message": err.Error()}))
			_ = conn.Close()
			return
		}

		client.IncomingHandler = func(c *notifications.Client, raw []byte) {
			var frame notifications.Frame
			if err := json.Unmarshal(raw, &frame); err != nil {
				log.Printf("WebSocket Chat: Invalid frame from user %d", userID)
				return
			}
			s.handleChatEvent(ctx, c, user, frame)
		}

		// Start write pump in a goroutine
		go client.WritePump()

		// Read pump runs in the main handler goroutine (blocking)
		client.ReadPump()
	})
}

// handleChatEvent dispatches one inbound chat-namespace frame.
func (s *Server) handleChatEvent(ctx context.Context, c *notifications.Client, user *models.User, frame notifications.Frame) {
	userID := user.ID

	switch frame.Event {
	case "addUser":
		// The client announces itself after connecting; everyone gets a
		// fresh online-user snapshot.
		s.hub.BroadcastOnlineUsers()

	case "userOffline":
		// Explicit goodbye (tab close, logout). Skips the reconnect grace
		// window the plain disconnect path uses.
		s.hub.Presence().MarkOffline(ctx, userID)
		s.hub.BroadcastOnlineUsers()

	case "ping":
		c.TrySend(notifications.EncodeFrame("pong", nil))

	case "sendMessage":
		var req struct {
			ReceiverID uint               `json:"receiver_id"`
			Content    string             `json:"content"`
			Media      []models.MediaItem `json:"media"`
		}
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.ReceiverID == 0 {
			s.sendSocketError(c, "Invalid sendMessage payload")
			return
		}

		allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "send_chat",
			fmt.Sprintf("user:%d", userID), 15, time.Minute)
		if !allowed {
			s.sendSocketError(c, "Rate limit exceeded. Please wait a moment.")
			return
		}

		result, err := s.chatService.SendMessage(ctx, service.SendMessageInput{
			SenderID:   userID,
			ReceiverID: req.ReceiverID,
			Content:    req.Content,
			Media:      req.Media,
		})
		if err != nil {
			s.sendSocketError(c, err.Error())
			return
		}
		s.deliverMessage(ctx, userID, req.ReceiverID, result)

	case "deleteMessage":
		var req struct {
			MessageID uint `json:"message_id"`
		}
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.MessageID == 0 {
			s.sendSocketError(c, "Invalid deleteMessage payload")
			return
		}

		msg, err := s.chatService.DeleteMessage(ctx, req.MessageID, userID)
		if err != nil {
			s.sendSocketError(c, err.Error())
			return
		}
		s.pushToParticipants(ctx, msg.ConversationID, 0, "messageDeleted", fiber.Map{
			"conversation_id": msg.ConversationID,
			"message_id":      req.MessageID,
		})

	case "conversationDeleted":
		var req struct {
			ConversationID uint `json:"conversation_id"`
		}
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.ConversationID == 0 {
			s.sendSocketError(c, "Invalid conversationDeleted payload")
			return
		}

		participantIDs, err := s.chatService.DeleteConversation(ctx, req.ConversationID, userID)
		if err != nil {
			s.sendSocketError(c, err.Error())
			return
		}
		for _, pid := range participantIDs {
			s.pusher.PushToUser(pid, "conversationDeleted", fiber.Map{
				"conversation_id": req.ConversationID,
			})
		}

	case "typing", "stopTyping":
		var req struct {
			ConversationID uint `json:"conversation_id"`
		}
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.ConversationID == 0 {
			return
		}

		// Typing indicators are spammy; silently drop over the limit.
		allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "typing",
			fmt.Sprintf("user:%d", userID), 10, 10*time.Second)
		if !allowed {
			return
		}

		conv, err := s.chatService.ConversationForUser(ctx, req.ConversationID, userID)
		if err != nil {
			return
		}
		if otherID, ok := otherParticipant(conv, userID); ok {
			s.pusher.PushToUser(otherID, frame.Event, fiber.Map{
				"conversation_id": req.ConversationID,
				"user_id":         userID,
				"username":        user.Username,
			})
		}

	case "markMessagesAsRead":
		var req struct {
			ConversationID uint `json:"conversation_id"`
		}
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.ConversationID == 0 {
			s.sendSocketError(c, "Invalid markMessagesAsRead payload")
			return
		}

		messageIDs, err := s.chatService.MarkMessagesAsRead(ctx, req.ConversationID, userID)
		if err != nil {
			s.sendSocketError(c, err.Error())
			return
		}
		s.notifyMessagesRead(ctx, req.ConversationID, userID, messageIDs)

	case "callUser":
		var req struct {
			ReceiverID uint   `json:"receiver_id"`
			RoomID     string `json:"room_id"`
		}
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.ReceiverID == 0 || req.RoomID == "" {
			s.sendSocketError(c, "Invalid callUser payload")
			return
		}
		if !s.flags.Enabled(featureflags.Calls, userID) {
			s.sendSocketError(c, "Calling is currently disabled")
			return
		}

		allowed, err := s.permissionService.CanCall(ctx, userID, req.ReceiverID)
		if err != nil {
			s.sendSocketError(c, err.Error())
			return
		}
		if !allowed {
			s.sendSocketError(c, "You can only call users who follow you back")
			return
		}
		if s.hub == nil || !s.hub.IsOnline(req.ReceiverID) {
			c.TrySend(notifications.EncodeFrame("userNotOnline", fiber.Map{
				"user_id": req.ReceiverID,
			}))
			return
		}

		s.pusher.PushToUser(req.ReceiverID, "incomingCall", fiber.Map{
			"room_id": req.RoomID,
			"caller":  user.Profile(),
		})

	case "answerCall":
		var req struct {
			CallerID uint   `json:"caller_id"`
			RoomID   string `json:"room_id"`
		}
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.CallerID == 0 {
			s.sendSocketError(c, "Invalid answerCall payload")
			return
		}
		s.pusher.PushToUser(req.CallerID, "callAccepted", fiber.Map{
			"room_id": req.RoomID,
			"callee":  user.Profile(),
		})

	case "rejectCall":
		var req struct {
			CallerID uint   `json:"caller_id"`
			RoomID   string `json:"room_id"`
		}
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.CallerID == 0 {
			s.sendSocketError(c, "Invalid rejectCall payload")
			return
		}
		s.pusher.PushToUser(req.CallerID, "callRejected", fiber.Map{
			"room_id": req.RoomID,
			"callee":  user.Profile(),
		})

	case "hangUp":
		var req struct {
			PeerID uint   `json:"peer_id"`
			RoomID string `json:"room_id"`
		}
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.PeerID == 0 {
			s.sendSocketError(c, "Invalid hangUp payload")
			return
		}
		s.pusher.PushToUser(req.PeerID, "callEnded", fiber.Map{
			"room_id": req.RoomID,
			"user_id": userID,
		})

	default:
		log.Printf("WebSocket Chat: Unknown event %q from user %d", frame.Event, userID)
	}
}

// sendSocketError sends an error frame to the originating connection only.
func (s *Server) sendSocketError(c *notifications.Client, message string) {
	c.TrySend(notifications.EncodeFrame("error", fiber.Map{"message": message}))
}
