package service

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"ripple/internal/cache"
	"ripple/internal/models"
	"ripple/internal/repository"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// UserService provides account and profile business logic.
type UserService struct {
	userRepo   repository.UserRepository
	socialRepo repository.SocialRepository
}

// NewUserService returns a new UserService.
func NewUserService(userRepo repository.UserRepository, socialRepo repository.SocialRepository) *UserService {
	return &UserService{
		userRepo:   userRepo,
		socialRepo: socialRepo,
	}
}

// UpdateProfileInput carries a partial profile update; empty fields are
// left unchanged.
type UpdateProfileInput struct {
	UserID      uint
	Username    string
	DisplayName string
	Bio         string
	Avatar      string
}

// ProfileView is a user profile as seen by one viewer.
type ProfileView struct {
	Profile        models.Profile           `json:"profile"`
	DisplayName    string                   `json:"display_name,omitempty"`
	Bio            string                   `json:"bio,omitempty"`
	IsOnline       bool                     `json:"is_online"`
	FollowersCount int64                    `json:"followers_count"`
	FollowingCount int64                    `json:"following_count"`
	Following      bool                     `json:"following"`
	FollowedBy     bool                     `json:"followed_by"`
	IsBlocked      bool                     `json:"is_blocked_by_current_user"`
	Preference     models.MessagePreference `json:"message_preference,omitempty"`
}

// GetUserByID returns the raw user record.
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", id)
	}
	return user, nil
}

// GetProfile returns the target's profile decorated for the viewer. Blocked
// pairs see a redacted shell instead of the real profile.
func (s *UserService) GetProfile(ctx context.Context, viewerID, targetID uint) (*ProfileView, error) {
	target, err := s.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if viewerID != targetID {
		blocked, err := s.socialRepo.EitherBlocked(ctx, viewerID, targetID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return &ProfileView{
				Profile:   models.RedactedProfile(targetID),
				IsBlocked: true,
			}, nil
		}
	}

	view := &ProfileView{
		Profile:     target.Profile(),
		DisplayName: target.DisplayName,
		Bio:         target.Bio,
		IsOnline:    target.IsOnline,
	}
	if viewerID == targetID {
		view.Preference = target.MessagePreference
	}

	if view.FollowersCount, err = s.socialRepo.FollowersCount(ctx, targetID); err != nil {
		return nil, err
	}
	if view.FollowingCount, err = s.socialRepo.FollowingCount(ctx, targetID); err != nil {
		return nil, err
	}
	if viewerID != targetID {
		if view.Following, err = s.socialRepo.IsFollowing(ctx, viewerID, targetID); err != nil {
			return nil, err
		}
		if view.FollowedBy, err = s.socialRepo.IsFollowing(ctx, targetID, viewerID); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// UpdateProfile applies a partial profile update.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.GetUserByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Username != "" && in.Username != user.Username {
		if !usernamePattern.MatchString(in.Username) {
			return nil, models.NewValidationError("Username must be 3-30 letters, digits, or underscores")
		}
		existing, err := s.userRepo.GetByUsername(ctx, in.Username)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != user.ID {
			return nil, models.NewConflictError("Username is already taken")
		}
		user.Username = in.Username
	}
	if in.DisplayName != "" {
		if utf8.RuneCountInString(in.DisplayName) > 50 {
			return nil, models.NewValidationError("Display name too long (max 50 characters)")
		}
		user.DisplayName = in.DisplayName
	}
	if in.Bio != "" {
		if utf8.RuneCountInString(in.Bio) > 300 {
			return nil, models.NewValidationError("Bio too long (max 300 characters)")
		}
		user.Bio = in.Bio
	}
	if in.Avatar != "" {
		user.Avatar = in.Avatar
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, user.ID)
	return user, nil
}

// UpdateMessagePreference sets who may open conversations with the user.
func (s *UserService) UpdateMessagePreference(ctx context.Context, userID uint, pref models.MessagePreference) error {
	if !models.ValidMessagePreference(pref) {
		return models.NewValidationError("Invalid message preference")
	}
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.UpdateMessagePreference(ctx, userID, pref); err != nil {
		return err
	}
	cache.InvalidateUser(ctx, userID)
	return nil
}

// SearchUsers finds users by username or display name, excluding anyone in
// the viewer's block union.
func (s *UserService) SearchUsers(ctx context.Context, viewerID uint, query string, limit, offset int) ([]models.User, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	users, err := s.userRepo.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	blocked, err := s.socialRepo.BlockedUnion(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(blocked) == 0 {
		return users, nil
	}
	filtered := make([]models.User, 0, len(users))
	for _, u := range users {
		if _, ok := blocked[u.ID]; ok {
			continue
		}
		filtered = append(filtered, u)
	}
	return filtered, nil
}
