package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags handles GET /api/features. It returns the evaluated flag
// set for the calling user so the frontend can gate rollout features without
// shipping flag logic client-side.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"features": s.flags.Snapshot(currentUserID(c)),
	})
}
