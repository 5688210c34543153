package service

import (
	"context"

	"ripple/internal/middleware"
	"ripple/internal/models"
	"ripple/internal/repository"
)

// Pusher delivers a realtime event to all of a user's live connections.
// Implemented by the notifications package; nil-safe via NotificationService.
type Pusher interface {
	PushToUser(userID uint, event string, data interface{})
}

// NotificationService stores notifications and pushes them to live sockets.
type NotificationService struct {
	notifRepo repository.NotificationRepository
	pusher    Pusher
}

// NewNotificationService returns a new NotificationService. pusher may be
// nil; stored notifications are still written.
func NewNotificationService(notifRepo repository.NotificationRepository, pusher Pusher) *NotificationService {
	return &NotificationService{
		notifRepo: notifRepo,
		pusher:    pusher,
	}
}

// Notify records a notification for recipientID and pushes it out. Self
// notifications are dropped silently.
func (s *NotificationService) Notify(ctx context.Context, recipientID, senderID uint, typ models.NotificationType, message string, postID *uint) error {
	if recipientID == senderID {
		return nil
	}

	notification := &models.Notification{
		RecipientID: recipientID,
		SenderID:    &senderID,
		Type:        typ,
		Message:     message,
		PostID:      postID,
	}
	if err := s.notifRepo.Create(ctx, notification); err != nil {
		return err
	}

	if s.pusher != nil {
		s.pusher.PushToUser(recipientID, "notification", notification)
	}
	return nil
}

// NotifyAsync is Notify minus the caller's error path: failures are logged
// and swallowed so a notification hiccup never fails the triggering action.
func (s *NotificationService) NotifyAsync(ctx context.Context, recipientID, senderID uint, typ models.NotificationType, message string, postID *uint) {
	if err := s.Notify(ctx, recipientID, senderID, typ, message, postID); err != nil {
		middleware.Logger.Warn("failed to deliver notification",
			"recipient_id", recipientID,
			"type", string(typ),
			"error", err,
		)
	}
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID uint, limit, offset int) ([]models.Notification, error) {
	return s.notifRepo.ListByRecipient(ctx, recipientID, limit, offset)
}

// MarkRead marks one notification read for the recipient.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID uint) error {
	ok, err := s.notifRepo.MarkRead(ctx, recipientID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Notification", notificationID)
	}
	return nil
}

// MarkAllRead marks every unread notification read for the recipient.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uint) error {
	return s.notifRepo.MarkAllRead(ctx, recipientID)
}

// Delete removes one notification owned by the recipient.
func (s *NotificationService) Delete(ctx context.Context, recipientID, notificationID uint) error {
	ok, err := s.notifRepo.Delete(ctx, recipientID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Notification", notificationID)
	}
	return nil
}

// DeleteAll clears the recipient's entire notification list.
func (s *NotificationService) DeleteAll(ctx context.Context, recipientID uint) error {
	return s.notifRepo.DeleteAll(ctx, recipientID)
}

// UnreadCount returns how many unread notifications the recipient has.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	return s.notifRepo.CountUnread(ctx, recipientID)
}
