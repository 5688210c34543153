package models

import "time"

// MessagePreference controls who may open a conversation with a user.
type MessagePreference string

const (
	MessagePreferenceEveryone  MessagePreference = "everyone"
	MessagePreferenceFollowers MessagePreference = "followers"
	MessagePreferenceFollowing MessagePreference = "following"
	MessagePreferenceMutual    MessagePreference = "mutualFollowers"
	MessagePreferenceNobody    MessagePreference = "no one"
)

// ValidMessagePreference reports whether p is one of the accepted values.
func ValidMessagePreference(p MessagePreference) bool {
	switch p {
	case MessagePreferenceEveryone, MessagePreferenceFollowers,
		MessagePreferenceFollowing, MessagePreferenceMutual, MessagePreferenceNobody:
		return true
	}
	return false
}

// User is an account. Presence fields (IsOnline, LastActive) are mutated
// only by the presence registry.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Username    string `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email       string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password    string `gorm:"not null" json:"-"`
	DisplayName string `gorm:"size:50" json:"display_name"`
	Bio         string `gorm:"size:300" json:"bio"`
	Avatar      string `gorm:"size:512" json:"avatar"`

	IsPremium bool `gorm:"default:false" json:"is_premium"`

	MessagePreference MessagePreference `gorm:"size:20;default:everyone" json:"message_preference"`

	IsOnline   bool       `gorm:"default:false" json:"is_online"`
	LastActive *time.Time `json:"last_active,omitempty"`
}

// Tier returns the content/media tier this user belongs to.
func (u *User) Tier() Tier {
	if u.IsPremium {
		return TierPremium
	}
	return TierBasic
}

// Profile is the normalized owner shape attached to content. Content items
// always carry a Profile, never a bare ID.
type Profile struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar,omitempty"`
	IsPremium bool   `json:"is_premium,omitempty"`
}

// Profile returns the public owner shape for this user.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Avatar:    u.Avatar,
		IsPremium: u.IsPremium,
	}
}

// RedactedProfile is the anonymized owner used when the viewer and owner
// block each other.
func RedactedProfile(id uint) Profile {
	return Profile{ID: id, Username: "unknown"}
}
