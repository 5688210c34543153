package models

import "time"

// NotificationType enumerates the notification kinds the core emits.
type NotificationType string

const (
	NotificationFollow  NotificationType = "follow"
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationRepost  NotificationType = "repost"
	NotificationMention NotificationType = "mention"
)

// Notification is a persisted notification record. Delivery to live
// connections is best-effort on top of the stored row.
type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	RecipientID uint             `gorm:"not null;index" json:"recipient_id"`
	SenderID    *uint            `json:"sender_id,omitempty"`
	Sender      *User            `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Type        NotificationType `gorm:"size:20;not null" json:"type"`
	Message     string           `gorm:"size:300" json:"message"`
	PostID      *uint            `json:"post_id,omitempty"`
	Read        bool             `gorm:"default:false" json:"read"`
}
