package repository

import (
	"context"

	"ripple/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SocialRepository answers follow and block questions. The batch variants
// (FollowingIDs, FollowedSet, BlockedUnion) exist so visibility computation
// stays at O(1) queries per batch.
type SocialRepository interface {
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	CreateFollow(ctx context.Context, followerID, followingID uint) error
	DeleteFollow(ctx context.Context, followerID, followingID uint) (bool, error)
	FollowersCount(ctx context.Context, userID uint) (int64, error)
	FollowingCount(ctx context.Context, userID uint) (int64, error)
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	FollowedSet(ctx context.Context, viewerID uint, ownerIDs []uint) (map[uint]struct{}, error)
	Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	SuggestedUsers(ctx context.Context, userID uint, limit int) ([]models.User, error)

	IsBlocked(ctx context.Context, blockerID, blockedID uint) (bool, error)
	EitherBlocked(ctx context.Context, userID, otherID uint) (bool, error)
	BlockedUnion(ctx context.Context, userID uint) (map[uint]struct{}, error)
	Block(ctx context.Context, blockerID, blockedID uint) (bool, error)
	Unblock(ctx context.Context, blockerID, blockedID uint) (bool, error)
	BlockedUsers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
}

type socialRepository struct {
	db *gorm.DB
}

// NewSocialRepository creates a new SocialRepository backed by the given DB.
func NewSocialRepository(db *gorm.DB) SocialRepository {
	return &socialRepository{db: db}
}

func (r *socialRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	return count > 0, err
}

func (r *socialRepository) CreateFollow(ctx context.Context, followerID, followingID uint) error {
	follow := models.Follow{FollowerID: followerID, FollowingID: followingID}
	return r.db.WithContext(ctx).Create(&follow).Error
}

func (r *socialRepository) DeleteFollow(ctx context.Context, followerID, followingID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	return result.RowsAffected > 0, result.Error
}

func (r *socialRepository) FollowersCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *socialRepository) FollowingCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *socialRepository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error
	return ids, err
}

func (r *socialRepository) FollowedSet(ctx context.Context, viewerID uint, ownerIDs []uint) (map[uint]struct{}, error) {
	set := make(map[uint]struct{}, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return set, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND following_id IN ?", viewerID, ownerIDs).
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *socialRepository) Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ?", userID).
		Order("follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	return users, err
}

func (r *socialRepository) Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	return users, err
}

// SuggestedUsers returns users the given user does not follow yet, skipping
// themselves and anyone in their block union. Newest accounts come first.
func (r *socialRepository) SuggestedUsers(ctx context.Context, userID uint, limit int) ([]models.User, error) {
	followed := r.db.Model(&models.Follow{}).
		Select("following_id").
		Where("follower_id = ?", userID)
	blocked := r.db.Model(&models.UserBlock{}).
		Select("blocked_id").
		Where("blocker_id = ?", userID)
	blockedBy := r.db.Model(&models.UserBlock{}).
		Select("blocker_id").
		Where("blocked_id = ?", userID)

	var users []models.User
	err := r.db.WithContext(ctx).
		Where("users.id <> ?", userID).
		Where("users.id NOT IN (?)", followed).
		Where("users.id NOT IN (?)", blocked).
		Where("users.id NOT IN (?)", blockedBy).
		Order("users.created_at DESC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *socialRepository) IsBlocked(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserBlock{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	return count > 0, err
}

func (r *socialRepository) EitherBlocked(ctx context.Context, userID, otherID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserBlock{}).
		Where(
			"(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)",
			userID, otherID, otherID, userID,
		).
		Count(&count).Error
	return count > 0, err
}

// BlockedUnion returns every user the given user blocks plus every user
// blocking them, as one set. Content from anyone in this set is redacted or
// filtered for the given user.
func (r *socialRepository) BlockedUnion(ctx context.Context, userID uint) (map[uint]struct{}, error) {
	var blocks []models.UserBlock
	err := r.db.WithContext(ctx).
		Where("blocker_id = ? OR blocked_id = ?", userID, userID).
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	set := make(map[uint]struct{}, len(blocks))
	for _, b := range blocks {
		if b.BlockerID == userID {
			set[b.BlockedID] = struct{}{}
		} else {
			set[b.BlockerID] = struct{}{}
		}
	}
	return set, nil
}

func (r *socialRepository) Block(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	block := models.UserBlock{BlockerID: blockerID, BlockedID: blockedID}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&block)
	return result.RowsAffected > 0, result.Error
}

func (r *socialRepository) Unblock(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.UserBlock{})
	return result.RowsAffected > 0, result.Error
}

func (r *socialRepository) BlockedUsers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_blocks ON user_blocks.blocked_id = users.id").
		Where("user_blocks.blocker_id = ?", userID).
		Order("user_blocks.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	return users, err
}
