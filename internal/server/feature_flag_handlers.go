package server

import (
	"nexify/internal/models"

	"github.com/gofiber/fiber/v2"
)

// FeatureFlagsResponse is the body of GET /api/feature-flags/me.
type FeatureFlagsResponse struct {
	Raw       map[string]string `json:"raw"`
	Evaluated map[string]bool   `json:"evaluated"`
}

// GetFeatureFlags handles GET /api/feature-flags/me
// @Summary Evaluate feature flags for me
// @Tags feature-flags
// @Security BearerAuth
// @Produce json
// @Success 200 {object} FeatureFlagsResponse
// @Router /feature-flags/me [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(FeatureFlagsResponse{
		Raw:       s.featureFlags.Raw(),
		Evaluated: s.featureFlags.Snapshot(currentUserID(c)),
	})
}

// requireFlag hides a route behind a flag. Callers without the flag get
// 404 so disabled features are indistinguishable from missing ones.
func (s *Server) requireFlag(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(name, currentUserID(c)) {
			return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Feature", name))
		}
		return c.Next()
	}
}
