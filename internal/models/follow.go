package models

import "time"

// Follow is a directed edge: follower follows following. The pair is unique
// and self-loops are rejected at the service layer.
type Follow struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	FollowerID  uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"follower_id"`
	FollowingID uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"following_id"`
}

// UserBlock is a directed block edge: blocker has blocked blocked.
type UserBlock struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	BlockerID uint      `gorm:"not null;uniqueIndex:idx_blocks_pair;index" json:"blocker_id"`
	BlockedID uint      `gorm:"not null;uniqueIndex:idx_blocks_pair;index" json:"blocked_id"`
}
