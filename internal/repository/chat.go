package repository

import (
	"context"
	"errors"
	"time"

	"ripple/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository defines data access for conversations and messages.
// Unread counters move only through atomic increments and resets, never
// read-modify-write.
type ChatRepository interface {
	GetOrCreateConversation(ctx context.Context, a, b uint) (*models.Conversation, bool, error)
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uint, limit, offset int) ([]models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
	ParticipantIDs(ctx context.Context, conversationID uint) ([]uint, error)

	CreateMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, id uint) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID uint, limit, offset int) ([]models.Message, error)
	AdvanceDelivery(ctx context.Context, messageID uint, from, to models.DeliveryStatus) error
	DeleteMessage(ctx context.Context, message *models.Message) error
	DeleteConversation(ctx context.Context, conversationID uint) error

	IncrementUnread(ctx context.Context, conversationID, userID uint) error
	ResetUnread(ctx context.Context, conversationID, userID uint) error
	UnreadCount(ctx context.Context, conversationID, userID uint) (int, error)
	MarkMessagesRead(ctx context.Context, conversationID, readerID uint) ([]uint, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new ChatRepository backed by the given DB.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// GetOrCreateConversation resolves the conversation for an unordered pair,
// creating it (with both participant rows) when absent. The pair key's
// unique index makes concurrent creation from both sides settle on one row.
func (r *chatRepository) GetOrCreateConversation(ctx context.Context, a, b uint) (*models.Conversation, bool, error) {
	pairKey := models.ConversationPairKey(a, b)

	existing, err := r.findByPairKey(ctx, pairKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	conv := models.Conversation{
		PairKey: pairKey,
		Participants: []models.ConversationParticipant{
			{UserID: a},
			{UserID: b},
		},
	}
	createErr := r.db.WithContext(ctx).Create(&conv).Error
	if createErr != nil {
		// Lost the creation race; the other side's row must exist now.
		existing, err = r.findByPairKey(ctx, pairKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
		return nil, false, createErr
	}

	created, err := r.GetConversation(ctx, conv.ID)
	return created, true, err
}

func (r *chatRepository) findByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Preload("LastMessage").
		Where("pair_key = ?", pairKey).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepository) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Preload("LastMessage").
		First(&conv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepository) ListConversations(ctx context.Context, userID uint, limit, offset int) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Preload("LastMessage").
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Order("conversations.updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&convs).Error
	return convs, err
}

func (r *chatRepository) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *chatRepository) ParticipantIDs(ctx context.Context, conversationID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// CreateMessage persists the message and advances the conversation's
// last-message pointer in one transaction.
func (r *chatRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			UpdateColumns(map[string]interface{}{
				"last_message_id": message.ID,
				"updated_at":      time.Now().UTC(),
			}).Error
	})
}

func (r *chatRepository) GetMessage(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Preload("ReadBy").
		First(&message, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *chatRepository) ListMessages(ctx context.Context, conversationID uint, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("ReadBy").
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, err
}

// AdvanceDelivery moves a message's delivery status forward only. The
// guard on the current status keeps the enum monotone under races.
func (r *chatRepository) AdvanceDelivery(ctx context.Context, messageID uint, from, to models.DeliveryStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND delivery_status = ?", messageID, from).
		UpdateColumn("delivery_status", to).Error
}

func (r *chatRepository) DeleteMessage(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", message.ID).Delete(&models.MessageRead{}).Error; err != nil {
			return err
		}
		return tx.Delete(message).Error
	})
}

// DeleteConversation cascades: read rows, messages, participants, then the
// conversation itself.
func (r *chatRepository) DeleteConversation(ctx context.Context, conversationID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM message_reads WHERE message_id IN (SELECT id FROM messages WHERE conversation_id = ?)",
			conversationID,
		).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.ConversationParticipant{}).Error; err != nil {
			return err
		}
		// Clear the back-reference first so the FK does not block the delete.
		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			UpdateColumn("last_message_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, conversationID).Error
	})
}

func (r *chatRepository) IncrementUnread(ctx context.Context, conversationID, userID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
}

func (r *chatRepository) ResetUnread(ctx context.Context, conversationID, userID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn("unread_count", 0).Error
}

func (r *chatRepository) UnreadCount(ctx context.Context, conversationID, userID uint) (int, error) {
	var participant models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return participant.UnreadCount, nil
}

// MarkMessagesRead adds the reader to every unread message's read set,
// advances those messages to "read", and zeroes the reader's unread
// counter. Idempotent: a second call finds nothing unread and still resets
// the counter to zero. Returns the IDs of messages newly marked.
func (r *chatRepository) MarkMessagesRead(ctx context.Context, conversationID, readerID uint) ([]uint, error) {
	var ids []uint
	sub := r.db.Model(&models.MessageRead{}).
		Select("message_id").
		Where("user_id = ?", readerID)
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, readerID).
		Where("id NOT IN (?)", sub).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		now := time.Now().UTC()
		reads := make([]models.MessageRead, 0, len(ids))
		for _, id := range ids {
			reads = append(reads, models.MessageRead{MessageID: id, UserID: readerID, ReadAt: now})
		}
		if err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&reads).Error; err != nil {
			return nil, err
		}
		if err := r.db.WithContext(ctx).
			Model(&models.Message{}).
			Where("id IN ?", ids).
			UpdateColumn("delivery_status", models.DeliveryRead).Error; err != nil {
			return nil, err
		}
	}

	if err := r.ResetUnread(ctx, conversationID, readerID); err != nil {
		return nil, err
	}
	return ids, nil
}
