package models

import (
	"strconv"
	"time"
)

// DeliveryStatus advances monotonically: sent -> delivered -> read.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
)

// MaxMessageMedia is the attachment cap per message.
const MaxMessageMedia = 4

// Conversation is a 1:1 thread. PairKey is the canonical "min:max" of the
// two participant IDs, so (a,b) and (b,a) resolve to the same row and the
// unique index guards against duplicate-creation races.
type Conversation struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PairKey string `gorm:"uniqueIndex;size:64;not null" json:"-"`

	LastMessageID *uint    `json:"last_message_id,omitempty"`
	LastMessage   *Message `gorm:"foreignKey:LastMessageID" json:"last_message,omitempty"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// ConversationPairKey canonicalizes an unordered participant pair.
func ConversationPairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return strconv.FormatUint(uint64(a), 10) + ":" + strconv.FormatUint(uint64(b), 10)
}

// ConversationParticipant tracks one user's membership and unread counter.
// UnreadCount is only ever moved by atomic increments and resets.
type ConversationParticipant struct {
	ID             uint  `gorm:"primarykey" json:"id"`
	ConversationID uint  `gorm:"not null;uniqueIndex:idx_conv_participants;index" json:"conversation_id"`
	UserID         uint  `gorm:"not null;uniqueIndex:idx_conv_participants;index" json:"user_id"`
	UnreadCount    int   `gorm:"default:0" json:"unread_count"`
	User           *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Message belongs to one conversation. Immutable after creation except for
// read bookkeeping; deletable only by its sender.
type Message struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ConversationID uint `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint `gorm:"not null;index" json:"sender_id"`

	Content string      `gorm:"size:2000" json:"content"`
	Media   []MediaItem `gorm:"serializer:json" json:"media,omitempty"`

	DeliveryStatus DeliveryStatus `gorm:"size:16;default:sent" json:"delivery_status"`

	ReadBy []MessageRead `gorm:"foreignKey:MessageID" json:"read_by,omitempty"`
}

// MessageRead records that a user has read a message. Insertion is
// idempotent via the unique pair index plus ON CONFLICT DO NOTHING.
type MessageRead struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_message_reads;index" json:"message_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_message_reads" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}
