package server

import (
	"nexify/internal/models"

	"github.com/gofiber/fiber/v2"
)

// FollowResponse is returned by the follow toggle.
type FollowResponse struct {
	Message string             `json:"message"`
	State   string             `json:"state"`
	Follow  *models.UserFollow `json:"follow,omitempty"`
}

// ToggleFollow handles POST /api/users/:id/follow
// @Summary Follow or unfollow a user
// @Description Sends a follow request, withdraws a pending one, or unfollows
// @Tags follows
// @Security BearerAuth
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} FollowResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/{id}/follow [post]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	follow, label, err := s.followService.ToggleFollow(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return respondServiceError(c, err)
	}

	resp := FollowResponse{Message: label, State: "none"}
	if label == models.LabelFollowRequestSent {
		resp.State = "pending"
		resp.Follow = follow
	}
	return c.JSON(resp)
}

// GetFollowRequests handles GET /api/users/me/follow-requests
func (s *Server) GetFollowRequests(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	follows, total, err := s.followService.ListPending(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(newPage(follows, total, page))
}

// AcceptFollowRequest handles POST /api/users/me/follow-requests/:followerId/accept
func (s *Server) AcceptFollowRequest(c *fiber.Ctx) error {
	followerID, err := parseID(c, "followerId")
	if err != nil {
		return nil
	}
	follow, err := s.followService.AcceptFollowRequest(c.UserContext(), currentUserID(c), followerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(follow)
}

// DeleteFollowRequest handles DELETE /api/users/me/follow-requests/:followerId
func (s *Server) DeleteFollowRequest(c *fiber.Ctx) error {
	followerID, err := parseID(c, "followerId")
	if err != nil {
		return nil
	}
	if err := s.followService.DeleteFollowRequest(c.UserContext(), currentUserID(c), followerID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFollowers handles GET /api/users/me/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	follows, total, err := s.followService.ListFollowers(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(newPage(follows, total, page))
}

// GetFollowing handles GET /api/users/me/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	follows, total, err := s.followService.ListFollowing(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(newPage(follows, total, page))
}
