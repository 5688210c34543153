package service

import (
	"context"

	"ripple/internal/models"
	"ripple/internal/repository"
)

// PermissionService answers whether one user may message or call another.
type PermissionService struct {
	userRepo   repository.UserRepository
	socialRepo repository.SocialRepository
}

// NewPermissionService returns a new PermissionService.
func NewPermissionService(userRepo repository.UserRepository, socialRepo repository.SocialRepository) *PermissionService {
	return &PermissionService{
		userRepo:   userRepo,
		socialRepo: socialRepo,
	}
}

// CanMessage reports whether senderID may open a conversation with or send a
// message to receiverID. A block in either direction denies before the
// receiver's preference is consulted.
func (s *PermissionService) CanMessage(ctx context.Context, senderID, receiverID uint) (bool, error) {
	if senderID == receiverID {
		return false, nil
	}

	blocked, err := s.socialRepo.EitherBlocked(ctx, senderID, receiverID)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	receiver, err := s.userRepo.GetByID(ctx, receiverID)
	if err != nil {
		return false, err
	}
	if receiver == nil {
		return false, models.NewNotFoundError("User", receiverID)
	}

	switch receiver.MessagePreference {
	case models.MessagePreferenceEveryone, "":
		return true, nil
	case models.MessagePreferenceFollowers:
		// Receiver accepts messages from their followers.
		return s.socialRepo.IsFollowing(ctx, senderID, receiverID)
	case models.MessagePreferenceFollowing:
		// Receiver accepts messages from people they follow.
		return s.socialRepo.IsFollowing(ctx, receiverID, senderID)
	case models.MessagePreferenceMutual:
		senderFollows, err := s.socialRepo.IsFollowing(ctx, senderID, receiverID)
		if err != nil || !senderFollows {
			return false, err
		}
		return s.socialRepo.IsFollowing(ctx, receiverID, senderID)
	case models.MessagePreferenceNobody:
		return false, nil
	default:
		return false, nil
	}
}

// CanCall reports whether callerID may ring calleeID. Calls always require a
// mutual follow, regardless of messaging preference.
func (s *PermissionService) CanCall(ctx context.Context, callerID, calleeID uint) (bool, error) {
	if callerID == calleeID {
		return false, nil
	}

	blocked, err := s.socialRepo.EitherBlocked(ctx, callerID, calleeID)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	callerFollows, err := s.socialRepo.IsFollowing(ctx, callerID, calleeID)
	if err != nil || !callerFollows {
		return false, err
	}
	return s.socialRepo.IsFollowing(ctx, calleeID, callerID)
}
