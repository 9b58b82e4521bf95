package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"nexify/internal/mailer"
	"nexify/internal/middleware"
	"nexify/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "test-secret"
	goodPassword = "Sup3r$ecret"
)

func userConfig() UserServiceConfig {
	return UserServiceConfig{JWTSecret: testSecret, FrontendURL: "https://app.test/", ResetTTL: time.Minute}
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestUserService_Register(t *testing.T) {
	t.Parallel()

	t.Run("creates user with email as username", func(t *testing.T) {
		t.Parallel()
		var created *models.User
		repo := &userRepoStub{createFn: func(_ context.Context, u *models.User) error { created = u; return nil }}
		svc := NewUserService(repo, nil, userConfig())

		user, err := svc.Register(context.Background(), RegisterInput{
			Email: "  New@Example.com ", Password: goodPassword, FirstName: "Ada",
		})
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, "new@example.com", user.Email)
		assert.Equal(t, user.Email, user.Username)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte(goodPassword)))
	})

	t.Run("weak password", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(&userRepoStub{}, nil, userConfig())
		_, err := svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "password"})
		appErr := assertAppError(t, err, models.CodeValidation)
		assert.Equal(t, models.ReasonInvalidPassword, appErr.Reason)
	})

	t.Run("invalid email", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(&userRepoStub{}, nil, userConfig())
		_, err := svc.Register(context.Background(), RegisterInput{Email: "nope", Password: goodPassword})
		assertValidationError(t, err)
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()
		existing := models.NewUser("taken@example.com", "", "", "h")
		repo := &userRepoStub{getByEmailFn: func(context.Context, string) (*models.User, error) { return existing, nil }}
		svc := NewUserService(repo, nil, userConfig())
		_, err := svc.Register(context.Background(), RegisterInput{Email: "taken@example.com", Password: goodPassword})
		appErr := assertAppError(t, err, models.CodeConflict)
		assert.Equal(t, models.ReasonUserAlreadyExists, appErr.Reason)
	})
}

func TestUserService_Authenticate(t *testing.T) {
	t.Parallel()

	user := models.NewUser("a@example.com", "", "", hashed(t, goodPassword))
	repo := &userRepoStub{getByEmailFn: func(_ context.Context, email string) (*models.User, error) {
		if models.NormalizeEmail(email) == user.Email {
			return user, nil
		}
		return nil, nil
	}}
	svc := NewUserService(repo, nil, userConfig())
	ctx := context.Background()

	got, err := svc.Authenticate(ctx, "A@example.com", goodPassword)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "a@example.com", "Wr0ng$pass")
	wrong := assertAppError(t, err, models.CodeUnauthorized)

	_, err = svc.Authenticate(ctx, "ghost@example.com", goodPassword)
	unknown := assertAppError(t, err, models.CodeUnauthorized)
	assert.Equal(t, wrong.Message, unknown.Message)
}

func TestUserService_UpdateProfile(t *testing.T) {
	t.Parallel()

	current := func() *models.User {
		u := models.NewUser("old@example.com", "Old", "Name", "h")
		return u
	}

	t.Run("email change updates username", func(t *testing.T) {
		t.Parallel()
		u := current()
		var saved *models.User
		repo := knownUsers(u)
		repo.updateFn = func(_ context.Context, user *models.User, _ ...string) error { saved = user; return nil }
		svc := NewUserService(repo, nil, userConfig())

		email := "New@Example.com"
		first := " Grace "
		got, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: u.ID, Email: &email, FirstName: &first})
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "new@example.com", got.Email)
		assert.Equal(t, "new@example.com", got.Username)
		assert.Equal(t, "Grace", got.FirstName)
		assert.Equal(t, "Name", got.LastName)
	})

	t.Run("email taken", func(t *testing.T) {
		t.Parallel()
		u := current()
		repo := knownUsers(u)
		repo.emailTakenFn = func(_ context.Context, _ string, exclude uuid.UUID) (bool, error) {
			assert.Equal(t, u.ID, exclude)
			return true, nil
		}
		svc := NewUserService(repo, nil, userConfig())

		email := "other@example.com"
		_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: u.ID, Email: &email})
		assertAppError(t, err, models.CodeConflict)
	})

	t.Run("name too long", func(t *testing.T) {
		t.Parallel()
		u := current()
		svc := NewUserService(knownUsers(u), nil, userConfig())
		long := strings.Repeat("x", 151)
		_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: u.ID, LastName: &long})
		assertValidationError(t, err)
	})
}

func TestUserService_PasswordReset(t *testing.T) {
	t.Parallel()

	user := models.NewUser("reset@example.com", "Rita", "", hashed(t, goodPassword))
	repo := &userRepoStub{
		getByEmailFn: func(_ context.Context, email string) (*models.User, error) {
			if email == user.Email {
				return user, nil
			}
			return nil, nil
		},
		getWithPasswordFn: func(context.Context, uuid.UUID) (*models.User, error) {
			cp := *user
			return &cp, nil
		},
		setPasswordFn: func(_ context.Context, id uuid.UUID, hash string) error {
			assert.Equal(t, user.ID, id)
			user.Password = hash
			return nil
		},
	}
	mail := &recordingMailer{}
	svc := NewUserService(repo, mail, userConfig())
	ctx := context.Background()

	require.NoError(t, svc.RequestPasswordReset(ctx, "ghost@example.com"))
	assert.Empty(t, mail.sent, "unknown addresses get no email")

	require.NoError(t, svc.RequestPasswordReset(ctx, user.Email))
	require.Len(t, mail.sent, 1)
	assert.Equal(t, mailer.TemplatePasswordReset, mail.sent[0].Template)

	link := mail.sent[0].Data.(map[string]string)["ResetURL"]
	require.True(t, strings.HasPrefix(link, "https://app.test/reset-password?token="), link)
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	token := parsed.Query().Get("token")

	claims, err := middleware.ParseToken(testSecret, token, middleware.ResetAudience)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, err = middleware.ParseToken(testSecret, token, middleware.TokenAudience)
	assert.Error(t, err, "reset tokens are not access tokens")

	err = svc.ResetPassword(ctx, token, "weak")
	assertValidationError(t, err)

	const newPassword = "N3w!Passw0rd"
	require.NoError(t, svc.ResetPassword(ctx, token, newPassword))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(newPassword)))

	err = svc.ResetPassword(ctx, token, "An0ther!Pass")
	assertValidationError(t, err)
}

func TestUserService_ResetPassword_BadToken(t *testing.T) {
	t.Parallel()

	svc := NewUserService(&userRepoStub{}, nil, userConfig())
	err := svc.ResetPassword(context.Background(), "garbage", goodPassword)
	assertValidationError(t, err)
}

func TestUserService_RequestPasswordReset_MailFailure(t *testing.T) {
	t.Parallel()

	user := models.NewUser("reset@example.com", "", "", "h")
	repo := &userRepoStub{getByEmailFn: func(context.Context, string) (*models.User, error) { return user, nil }}
	svc := NewUserService(repo, &recordingMailer{err: errStub}, userConfig())

	err := svc.RequestPasswordReset(context.Background(), user.Email)
	assertAppError(t, err, models.CodeInternal)
}

func TestUserService_SetStaff(t *testing.T) {
	t.Parallel()

	u := models.NewUser("staff@example.com", "", "", "h")
	repo := knownUsers(u)
	repo.setStaffFn = func(_ context.Context, id uuid.UUID, staff, super bool) error {
		u.IsStaff, u.IsSuperuser = staff, super
		return nil
	}
	svc := NewUserService(repo, nil, userConfig())

	got, err := svc.SetStaff(context.Background(), u.ID, true, false)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())
}
