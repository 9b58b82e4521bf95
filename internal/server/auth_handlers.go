package server

import (
	"context"
	"log/slog"
	"time"

	"nexify/internal/middleware"
	"nexify/internal/models"
	"nexify/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const wsTicketTTL = 30 * time.Second

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new user account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup request"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := s.bindJSON(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.issueAccessToken(user.ID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := s.bindJSON(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.issueAccessToken(user.ID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(AuthResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the current access token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals("jti").(string)
	expiresAt, _ := c.Locals("tokenExpiresAt").(time.Time)
	if jti == "" || s.redis == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = middleware.AccessTokenTTL
	}
	if err := s.redis.Set(c.UserContext(), blacklistKey(jti), "1", ttl).Err(); err != nil {
		middleware.RedisErrors.WithLabelValues("logout").Inc()
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ForgotPassword handles POST /api/auth/forgot-password
// @Summary Request a password reset
// @Description Emails a reset link when the address belongs to an active account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 202 {object} MessageResponse
// @Router /auth/forgot-password [post]
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := s.bindJSON(c, &req); err != nil {
		return nil
	}

	if err := s.userService.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return respondServiceError(c, err)
	}

	// Same answer whether or not the account exists.
	return c.Status(fiber.StatusAccepted).JSON(MessageResponse{
		Message: "If the address is registered, a reset link has been sent.",
	})
}

// ResetPassword handles POST /api/auth/reset-password
// @Summary Reset password
// @Description Sets a new password using a token from the reset email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/reset-password [post]
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := s.bindJSON(c, &req); err != nil {
		return nil
	}

	if err := s.userService.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(MessageResponse{Message: "Password updated."})
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a WebSocket ticket
// @Description Returns a short-lived single-use ticket for the ws endpoint
// @Tags realtime
// @Security BearerAuth
// @Produce json
// @Success 200 {object} WSTicketResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(redis.ErrClosed))
	}

	ticket := uuid.NewString()
	userID := currentUserID(c)
	if err := s.redis.Set(c.UserContext(), wsTicketKey(ticket), userID.String(), wsTicketTTL).Err(); err != nil {
		middleware.RedisErrors.WithLabelValues("ws_ticket").Inc()
		return respondServiceError(c, err)
	}

	return c.JSON(WSTicketResponse{Ticket: ticket, ExpiresIn: int(wsTicketTTL.Seconds())})
}

// redeemWSTicket consumes a ticket atomically so it cannot be replayed.
func (s *Server) redeemWSTicket(ctx context.Context, ticket string) (uuid.UUID, bool) {
	if s.redis == nil {
		return uuid.Nil, false
	}
	raw, err := s.redis.GetDel(ctx, wsTicketKey(ticket)).Result()
	if err != nil {
		if err != redis.Nil {
			middleware.RedisErrors.WithLabelValues("ws_ticket").Inc()
			middleware.Logger.WarnContext(ctx, "ws ticket lookup failed", slog.String("error", err.Error()))
		}
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

func wsTicketKey(ticket string) string {
	return "ws_ticket:" + ticket
}

func (s *Server) issueAccessToken(userID uuid.UUID) (string, error) {
	token, err := middleware.GenerateToken(s.config.JWTSecret, userID, middleware.TokenAudience, middleware.AccessTokenTTL, nil)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return token, nil
}
