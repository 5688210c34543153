package server

import (
	"ripple/internal/featureflags"
	"ripple/internal/models"

	"github.com/gofiber/fiber/v2"
)

// FollowUser handles POST /api/users/:id/follow
func (s *Server) FollowUser(c *fiber.Ctx) error {
	userID := currentUserID(c)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.socialService.Follow(c.Context(), userID, targetID); err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success"})
}

// UnfollowUser handles DELETE /api/users/:id/follow
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	userID := currentUserID(c)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.socialService.Unfollow(c.Context(), userID, targetID); err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

// BlockUser handles POST /api/users/:id/block
func (s *Server) BlockUser(c *fiber.Ctx) error {
	userID := currentUserID(c)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.socialService.Block(c.Context(), userID, targetID); err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success"})
}

// UnblockUser handles DELETE /api/users/:id/block
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	userID := currentUserID(c)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.socialService.Unblock(c.Context(), userID, targetID); err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

// GetFollowers handles GET /api/users/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, 50)

	users, err := s.socialService.Followers(c.Context(), targetID, p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"users": asProfiles(users)})
}

// GetFollowing handles GET /api/users/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, 50)

	users, err := s.socialService.Following(c.Context(), targetID, p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"users": asProfiles(users)})
}

// GetFollowSuggestions handles GET /api/users/suggestions
func (s *Server) GetFollowSuggestions(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if !s.flags.Enabled(featureflags.FollowSuggestions, userID) {
		return models.RespondWithError(c,
			models.NewPermissionDeniedError("Follow suggestions are currently disabled"))
	}
	limit := c.QueryInt("limit", 5)

	users, err := s.socialService.Suggestions(c.Context(), userID, limit)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"users": asProfiles(users)})
}

// GetBlockedUsers handles GET /api/blocks
func (s *Server) GetBlockedUsers(c *fiber.Ctx) error {
	userID := currentUserID(c)
	p := parsePagination(c, 50)

	users, err := s.socialService.BlockedUsers(c.Context(), userID, p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"users": asProfiles(users)})
}

// GetRelationship handles GET /api/users/:id/relationship
func (s *Server) GetRelationship(c *fiber.Ctx) error {
	userID := currentUserID(c)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	rel, err := s.socialService.Relationship(c.Context(), userID, targetID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(rel)
}

func asProfiles(users []models.User) []models.Profile {
	profiles := make([]models.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}
	return profiles
}
