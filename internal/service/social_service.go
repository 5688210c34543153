package service

import (
	"context"

	"ripple/internal/models"
	"ripple/internal/repository"
)

// SocialService provides follow and block business logic.
type SocialService struct {
	socialRepo repository.SocialRepository
	userRepo   repository.UserRepository
	notify     *NotificationService
}

// NewSocialService returns a new SocialService. notify may be nil.
func NewSocialService(
	socialRepo repository.SocialRepository,
	userRepo repository.UserRepository,
	notify *NotificationService,
) *SocialService {
	return &SocialService{
		socialRepo: socialRepo,
		userRepo:   userRepo,
		notify:     notify,
	}
}

// Follow makes the user follow the target. Blocked pairs cannot follow.
func (s *SocialService) Follow(ctx context.Context, userID, targetID uint) error {
	if userID == targetID {
		return models.NewValidationError("You cannot follow yourself")
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return models.NewNotFoundError("User", targetID)
	}

	blocked, err := s.socialRepo.EitherBlocked(ctx, userID, targetID)
	if err != nil {
		return err
	}
	if blocked {
		return models.NewPermissionDeniedError("You cannot follow this user")
	}

	already, err := s.socialRepo.IsFollowing(ctx, userID, targetID)
	if err != nil {
		return err
	}
	if already {
		return models.NewConflictError("You are already following this user")
	}

	if err := s.socialRepo.CreateFollow(ctx, userID, targetID); err != nil {
		return err
	}

	if s.notify != nil {
		follower, err := s.userRepo.GetByID(ctx, userID)
		if err == nil && follower != nil {
			s.notify.NotifyAsync(ctx, targetID, userID,
				models.NotificationFollow, follower.Username+" followed you", nil)
		}
	}
	return nil
}

// Unfollow removes the user's follow of the target.
func (s *SocialService) Unfollow(ctx context.Context, userID, targetID uint) error {
	if userID == targetID {
		return models.NewValidationError("You cannot unfollow yourself")
	}
	removed, err := s.socialRepo.DeleteFollow(ctx, userID, targetID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewNotFoundError("Follow", targetID)
	}
	return nil
}

// Block makes the user block the target. Any follow relationship between
// the two is severed in both directions.
func (s *SocialService) Block(ctx context.Context, userID, targetID uint) error {
	if userID == targetID {
		return models.NewValidationError("You cannot block yourself")
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return models.NewNotFoundError("User", targetID)
	}

	created, err := s.socialRepo.Block(ctx, userID, targetID)
	if err != nil {
		return err
	}
	if !created {
		return models.NewConflictError("You have already blocked this user")
	}

	if _, err := s.socialRepo.DeleteFollow(ctx, userID, targetID); err != nil {
		return err
	}
	if _, err := s.socialRepo.DeleteFollow(ctx, targetID, userID); err != nil {
		return err
	}
	return nil
}

// Unblock removes the user's block on the target. Severed follows are not
// restored.
func (s *SocialService) Unblock(ctx context.Context, userID, targetID uint) error {
	removed, err := s.socialRepo.Unblock(ctx, userID, targetID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewNotFoundError("Block", targetID)
	}
	return nil
}

// Followers lists the users following the given user.
func (s *SocialService) Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return s.socialRepo.Followers(ctx, userID, limit, offset)
}

// Following lists the users the given user follows.
func (s *SocialService) Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return s.socialRepo.Following(ctx, userID, limit, offset)
}

// Suggestions lists accounts the user might want to follow: everyone except
// themselves, users they already follow, and anyone in their block union.
func (s *SocialService) Suggestions(ctx context.Context, userID uint, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.socialRepo.SuggestedUsers(ctx, userID, limit)
}

// BlockedUsers lists the users the given user has blocked.
func (s *SocialService) BlockedUsers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return s.socialRepo.BlockedUsers(ctx, userID, limit, offset)
}

// RelationshipStatus describes the edge between the viewer and another user.
type RelationshipStatus struct {
	Following  bool `json:"following"`
	FollowedBy bool `json:"followed_by"`
	Blocking   bool `json:"blocking"`
	BlockedBy  bool `json:"blocked_by"`
}

// Relationship returns the full follow/block edge between two users.
func (s *SocialService) Relationship(ctx context.Context, viewerID, otherID uint) (*RelationshipStatus, error) {
	status := &RelationshipStatus{}
	var err error
	if status.Following, err = s.socialRepo.IsFollowing(ctx, viewerID, otherID); err != nil {
		return nil, err
	}
	if status.FollowedBy, err = s.socialRepo.IsFollowing(ctx, otherID, viewerID); err != nil {
		return nil, err
	}
	if status.Blocking, err = s.socialRepo.IsBlocked(ctx, viewerID, otherID); err != nil {
		return nil, err
	}
	if status.BlockedBy, err = s.socialRepo.IsBlocked(ctx, otherID, viewerID); err != nil {
		return nil, err
	}
	return status, nil
}
