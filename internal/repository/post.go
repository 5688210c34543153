package repository

import (
	"context"
	"errors"

	"ripple/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines data access for posts, comments, reposts, likes,
// and bookmarks.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Save(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, post *models.Post) error

	ListFeed(ctx context.Context, viewerID uint, followingIDs, excludedOwnerIDs []uint, limit, offset int) ([]models.Post, error)
	ListByOwner(ctx context.Context, ownerID uint, includeFollowersOnly bool, limit, offset int) ([]models.Post, error)
	ListComments(ctx context.Context, parentID uint, limit, offset int) ([]models.Post, error)
	Search(ctx context.Context, viewerID uint, query string, followingIDs, excludedOwnerIDs []uint, limit, offset int) ([]models.Post, error)

	LikedSet(ctx context.Context, viewerID uint, postIDs []uint) (map[uint]struct{}, error)
	RepostedSet(ctx context.Context, viewerID uint, originalIDs []uint) (map[uint]struct{}, error)
	BookmarkedSet(ctx context.Context, viewerID uint, postIDs []uint) (map[uint]struct{}, error)

	CreateLike(ctx context.Context, postID, userID uint) (bool, error)
	DeleteLike(ctx context.Context, postID, userID uint) (bool, error)
	FindRepost(ctx context.Context, ownerID, originalID uint) (*models.Post, error)
	RefreshStats(ctx context.Context, postID uint) (*models.PostStats, error)

	CreateBookmark(ctx context.Context, userID, postID uint) (bool, error)
	DeleteBookmark(ctx context.Context, userID, postID uint) (bool, error)
	ListBookmarked(ctx context.Context, userID uint, limit, offset int) ([]models.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new PostRepository backed by the given DB.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("OriginalPost").
		Preload("OriginalPost.Owner").
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Save(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

// Delete removes the post and its own likes and bookmarks. Child comments
// are left in place on purpose; see the post service for the cascade rules.
func (r *postRepository) Delete(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Bookmark{}).Error; err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
}

// visibleScope restricts a post query to what the viewer may see: own
// posts, public posts, and followers-only posts by followed owners, minus
// anything from the blocked union.
func visibleScope(viewerID uint, followingIDs, excludedOwnerIDs []uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(followingIDs) > 0 {
			db = db.Where(
				"owner_id = ? OR visibility = ? OR (visibility = ? AND owner_id IN ?)",
				viewerID, models.VisibilityPublic, models.VisibilityFollowers, followingIDs,
			)
		} else {
			db = db.Where("owner_id = ? OR visibility = ?", viewerID, models.VisibilityPublic)
		}
		if len(excludedOwnerIDs) > 0 {
			db = db.Where("owner_id NOT IN ?", excludedOwnerIDs)
		}
		return db
	}
}

func (r *postRepository) ListFeed(ctx context.Context, viewerID uint, followingIDs, excludedOwnerIDs []uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("OriginalPost").
		Preload("OriginalPost.Owner").
		Scopes(visibleScope(viewerID, followingIDs, excludedOwnerIDs)).
		Where("parent_post_id IS NULL").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListByOwner(ctx context.Context, ownerID uint, includeFollowersOnly bool, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	q := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("OriginalPost").
		Preload("OriginalPost.Owner").
		Where("owner_id = ? AND parent_post_id IS NULL", ownerID)
	if !includeFollowersOnly {
		q = q.Where("visibility = ?", models.VisibilityPublic)
	}
	err := q.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListComments(ctx context.Context, parentID uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Where("parent_post_id = ?", parentID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) Search(ctx context.Context, viewerID uint, query string, followingIDs, excludedOwnerIDs []uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	pattern := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("OriginalPost").
		Preload("OriginalPost.Owner").
		Scopes(visibleScope(viewerID, followingIDs, excludedOwnerIDs)).
		Where("parent_post_id IS NULL").
		Where("content LIKE ?", pattern).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) LikedSet(ctx context.Context, viewerID uint, postIDs []uint) (map[uint]struct{}, error) {
	set := make(map[uint]struct{}, len(postIDs))
	if len(postIDs) == 0 {
		return set, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", viewerID, postIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *postRepository) RepostedSet(ctx context.Context, viewerID uint, originalIDs []uint) (map[uint]struct{}, error) {
	set := make(map[uint]struct{}, len(originalIDs))
	if len(originalIDs) == 0 {
		return set, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("owner_id = ? AND original_post_id IN ?", viewerID, originalIDs).
		Pluck("original_post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *postRepository) BookmarkedSet(ctx context.Context, viewerID uint, postIDs []uint) (map[uint]struct{}, error) {
	set := make(map[uint]struct{}, len(postIDs))
	if len(postIDs) == 0 {
		return set, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Bookmark{}).
		Where("user_id = ? AND post_id IN ?", viewerID, postIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *postRepository) CreateLike(ctx context.Context, postID, userID uint) (bool, error) {
	like := models.Like{PostID: postID, UserID: userID}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like)
	return result.RowsAffected > 0, result.Error
}

func (r *postRepository) DeleteLike(ctx context.Context, postID, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Like{})
	return result.RowsAffected > 0, result.Error
}

func (r *postRepository) FindRepost(ctx context.Context, ownerID, originalID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND original_post_id = ?", ownerID, originalID).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// RefreshStats recomputes the denormalized counters for a post from the
// likes and posts tables, then writes them back.
func (r *postRepository) RefreshStats(ctx context.Context, postID uint) (*models.PostStats, error) {
	var stats models.PostStats

	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("post_id = ?", postID).
		Count(&stats.LikeCount).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("parent_post_id = ?", postID).
		Count(&stats.CommentCount).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("original_post_id = ?", postID).
		Count(&stats.RepostCount).Error; err != nil {
		return nil, err
	}

	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumns(map[string]interface{}{
			"stat_like_count":    stats.LikeCount,
			"stat_comment_count": stats.CommentCount,
			"stat_repost_count":  stats.RepostCount,
		}).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *postRepository) CreateBookmark(ctx context.Context, userID, postID uint) (bool, error) {
	bookmark := models.Bookmark{UserID: userID, PostID: postID}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&bookmark)
	return result.RowsAffected > 0, result.Error
}

func (r *postRepository) DeleteBookmark(ctx context.Context, userID, postID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Bookmark{})
	return result.RowsAffected > 0, result.Error
}

func (r *postRepository) ListBookmarked(ctx context.Context, userID uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("OriginalPost").
		Preload("OriginalPost.Owner").
		Joins("JOIN bookmarks ON bookmarks.post_id = posts.id").
		Where("bookmarks.user_id = ?", userID).
		Order("bookmarks.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}
