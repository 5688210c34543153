package models

import (
	"regexp"
	"strings"
	"time"
)

// PostVisibility controls who may see a post.
type PostVisibility string

const (
	VisibilityPublic    PostVisibility = "public"
	VisibilityFollowers PostVisibility = "followers"
)

const (
	// MaxCommentDepth caps comment nesting: post (0) -> comment (1) -> reply (2).
	MaxCommentDepth = 2

	// EditWindow is how long after creation a post's content may be edited.
	EditWindow = 15 * time.Minute

	// EditChances is how many content edits a post gets inside the window.
	EditChances = 3
)

// MediaItem is one attachment on a post or message.
type MediaItem struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Ref  string `json:"ref,omitempty"`
}

// PostStats holds denormalized counters. They are derived, never
// authoritative: RefreshStats recomputes them from the likes and posts
// tables after each triggering mutation.
type PostStats struct {
	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	RepostCount  int64 `json:"repost_count"`
}

// Post is a top-level post, a comment (ParentPostID set), or a repost
// (OriginalPostID set). The two roles are mutually exclusive.
type Post struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OwnerID uint  `gorm:"index;not null" json:"owner_id"`
	Owner   *User `gorm:"foreignKey:OwnerID" json:"-"`

	Content  string      `gorm:"size:500" json:"content"`
	Media    []MediaItem `gorm:"serializer:json" json:"media,omitempty"`
	Hashtags []string    `gorm:"serializer:json" json:"hashtags,omitempty"`
	Mentions []string    `gorm:"serializer:json" json:"mentions,omitempty"`

	ParentPostID   *uint `gorm:"index" json:"parent_post_id,omitempty"`
	OriginalPostID *uint `gorm:"index" json:"original_post_id,omitempty"`
	OriginalPost   *Post `gorm:"foreignKey:OriginalPostID" json:"-"`

	Depth      int            `gorm:"default:0" json:"depth"`
	Visibility PostVisibility `gorm:"size:16;default:public" json:"visibility"`

	Stats PostStats `gorm:"embedded;embeddedPrefix:stat_" json:"stats"`

	EditableUntil   time.Time  `json:"editable_until"`
	EditChancesLeft int        `gorm:"default:3" json:"edit_chances_left"`
	IsEdited        bool       `gorm:"default:false" json:"is_edited"`
	EditedAt        *time.Time `json:"edited_at,omitempty"`
}

// IsComment reports whether this post is a comment on another post.
func (p *Post) IsComment() bool { return p.ParentPostID != nil }

// IsRepost reports whether this post wraps another post.
func (p *Post) IsRepost() bool { return p.OriginalPostID != nil }

// Editable reports whether the post's content may still be edited at t.
func (p *Post) Editable(t time.Time) bool {
	return p.EditChancesLeft > 0 && t.Before(p.EditableUntil)
}

// Like is a unique (post, user) pair. Creating or deleting one triggers a
// stats recompute on the target post.
type Like struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_post_user" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_post_user" json:"user_id"`
}

// Bookmark is a unique (user, post) pair, ordered by creation time.
type Bookmark struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_bookmarks_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_bookmarks_user_post" json:"post_id"`
}

var (
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	mentionPattern = regexp.MustCompile(`@(\w+)`)
)

// ExtractHashtags returns the lowercased, deduplicated hashtags in content.
func ExtractHashtags(content string) []string {
	return extractTags(hashtagPattern, content)
}

// ExtractMentions returns the lowercased, deduplicated @-mentions in content.
func ExtractMentions(content string) []string {
	return extractTags(mentionPattern, content)
}

func extractTags(pattern *regexp.Regexp, content string) []string {
	matches := pattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
