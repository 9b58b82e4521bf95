package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"nexify/internal/mailer"
	"nexify/internal/middleware"
	"nexify/internal/models"
	"nexify/internal/observability"
	"nexify/internal/repository"
	"nexify/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultResetTTL bounds how long a password reset link works.
const DefaultResetTTL = 30 * time.Minute

type UserService struct {
	userRepo repository.UserRepository
	mail     mailer.Mailer
	cfg      UserServiceConfig
}

// UserServiceConfig carries the settings account recovery needs.
type UserServiceConfig struct {
	JWTSecret   string
	FrontendURL string
	ResetTTL    time.Duration
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type UpdateProfileInput struct {
	UserID    uuid.UUID
	Email     *string
	FirstName *string
	LastName  *string
}

func NewUserService(userRepo repository.UserRepository, mail mailer.Mailer, cfg UserServiceConfig) *UserService {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if mail == nil {
		mail = mailer.LogMailer{}
	}
	return &UserService{userRepo: userRepo, mail: mail, cfg: cfg}
}

// HashPassword returns the bcrypt hash stored for a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Register creates an account whose username is its email address.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := models.NormalizeEmail(in.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrUserAlreadyExists(email)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := models.NewUser(email, in.FirstName, in.LastName, hash)
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials. Unknown email and wrong password look the same.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return user, nil
}

func (s *UserService) GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	return s.userRepo.List(ctx, limit, offset)
}

// UpdateProfile applies the provided fields. A new email must be unused and
// also becomes the username.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	const maxNameLen = 150

	if in.Email != nil {
		email := models.NormalizeEmail(*in.Email)
		if err := validation.ValidateEmail(email); err != nil {
			return nil, err
		}
		if email != user.Email {
			taken, err := s.userRepo.EmailTaken(ctx, email, user.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, models.ErrUserAlreadyExists(email)
			}
			user.Email = email
			user.Username = email
		}
	}
	if in.FirstName != nil {
		name := strings.TrimSpace(*in.FirstName)
		if len([]rune(name)) > maxNameLen {
			return nil, models.NewValidationError("First name too long (max 150 characters)")
		}
		user.FirstName = name
	}
	if in.LastName != nil {
		name := strings.TrimSpace(*in.LastName)
		if len([]rune(name)) > maxNameLen {
			return nil, models.NewValidationError("Last name too long (max 150 characters)")
		}
		user.LastName = name
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return s.userRepo.Delete(ctx, id)
}

// SetStaff grants or revokes moderation rights.
func (s *UserService) SetStaff(ctx context.Context, id uuid.UUID, staff, superuser bool) (*models.User, error) {
	if err := s.userRepo.SetStaff(ctx, id, staff, superuser); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, id)
}

// RequestPasswordReset emails a signed reset link. Unknown addresses are
// accepted silently.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return nil
	}

	token, err := middleware.GenerateToken(s.cfg.JWTSecret, user.ID, middleware.ResetAudience, s.cfg.ResetTTL,
		jwt.MapClaims{middleware.FingerprintClaim: passwordFingerprint(user.Password)})
	if err != nil {
		return models.NewInternalError(err)
	}

	link := strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	msg := mailer.Message{
		To:       user.Email,
		Subject:  "Reset your Nexify password",
		Template: mailer.TemplatePasswordReset,
		Data: map[string]string{
			"UserName": user.FullName(),
			"ResetURL": link,
			"ValidFor": s.cfg.ResetTTL.String(),
		},
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		observability.NotificationFailures.WithLabelValues("email", mailer.TemplatePasswordReset).Inc()
		observability.GlobalLogger.ErrorContext(ctx, "password reset email failed",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
		return models.NewInternalError(fmt.Errorf("send reset email: %w", err))
	}
	return nil
}

// ResetPassword sets a new password from a reset token. A token is only good
// until the password it was issued against changes.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := middleware.ParseToken(s.cfg.JWTSecret, token, middleware.ResetAudience)
	if err != nil {
		return models.NewValidationError("Invalid or expired reset token")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.userRepo.GetWithPassword(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if claims.Fingerprint != passwordFingerprint(user.Password) {
		return models.NewValidationError("Invalid or expired reset token")
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.userRepo.SetPassword(ctx, user.ID, hash)
}

func passwordFingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}
