package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetReportedPosts handles GET /api/admin/reported-posts
// @Summary Moderation queue
// @Description Active reported posts, most reported first
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} Page[models.Post]
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/reported-posts [get]
func (s *Server) GetReportedPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, total, err := s.moderationService.ListReportedPosts(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(newPage(posts, total, page))
}

// AdminDeletePost handles DELETE /api/admin/posts/:id
// @Summary Delete a reported post
// @Description Deletes the post and emails its owner. A failed email is reported as a warning.
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} service.AdminDeleteResult
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/posts/{id} [delete]
func (s *Server) AdminDeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.moderationService.AdminDeletePost(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}

// RunRecommendationJob handles POST /api/admin/jobs/recommendations
func (s *Server) RunRecommendationJob(c *fiber.Ctx) error {
	result, err := s.recommendationJob.Run(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"users": result.Users,
		"items": result.Items,
	})
}

// RunCounterReconcile handles POST /api/admin/jobs/reconcile-counters
func (s *Server) RunCounterReconcile(c *fiber.Ctx) error {
	corrected, err := s.reconciler.Run(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"corrected": corrected})
}
