package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"nexify/internal/config"
	"nexify/internal/mailer"
	"nexify/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func signup(t *testing.T, env *testEnv, email string) AuthResponse {
	t.Helper()
	status, raw := env.request(t, http.MethodPost, "/api/auth/signup", SignupRequest{
		Email:     email,
		Password:  testPassword,
		FirstName: "Ada",
		LastName:  "Lovelace",
	}, "")
	require.Equal(t, http.StatusCreated, status, string(raw))
	return decode[AuthResponse](t, raw)
}

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	created := signup(t, env, "Ada@Example.com")
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "ada@example.com", created.User.Email)
	assert.Equal(t, "ada@example.com", created.User.Username)

	t.Run("duplicate email", func(t *testing.T) {
		status, raw := env.request(t, http.MethodPost, "/api/auth/signup", SignupRequest{
			Email: "ada@example.com", Password: testPassword,
		}, "")
		assert.Equal(t, http.StatusConflict, status)
		body := decode[models.ErrorResponse](t, raw)
		assert.Equal(t, models.ReasonUserAlreadyExists, body.Reason)
	})

	t.Run("weak password", func(t *testing.T) {
		status, _ := env.request(t, http.MethodPost, "/api/auth/signup", SignupRequest{
			Email: "weak@example.com", Password: "password",
		}, "")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("missing email", func(t *testing.T) {
		status, raw := env.request(t, http.MethodPost, "/api/auth/signup", SignupRequest{Password: testPassword}, "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "email is required", decode[models.ErrorResponse](t, raw).Error)
	})

	t.Run("wrong password", func(t *testing.T) {
		status, raw := env.request(t, http.MethodPost, "/api/auth/login", LoginRequest{
			Email: "ada@example.com", Password: "Wr0ngPass!",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Invalid credentials", decode[models.ErrorResponse](t, raw).Error)
	})

	t.Run("unknown email has the same answer", func(t *testing.T) {
		status, raw := env.request(t, http.MethodPost, "/api/auth/login", LoginRequest{
			Email: "nobody@example.com", Password: testPassword,
		}, "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Invalid credentials", decode[models.ErrorResponse](t, raw).Error)
	})

	t.Run("login then read profile", func(t *testing.T) {
		status, raw := env.request(t, http.MethodPost, "/api/auth/login", LoginRequest{
			Email: " ADA@example.com ", Password: testPassword,
		}, "")
		require.Equal(t, http.StatusOK, status, string(raw))
		login := decode[AuthResponse](t, raw)

		status, raw = env.request(t, http.MethodGet, "/api/users/me", nil, login.Token)
		require.Equal(t, http.StatusOK, status)
		me := decode[models.User](t, raw)
		assert.Equal(t, created.User.ID, me.ID)
		assert.NotContains(t, string(raw), "password")
	})
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t)
	auth := signup(t, env, "bye@example.com")

	status, _ := env.request(t, http.MethodPost, "/api/auth/logout", nil, auth.Token)
	require.Equal(t, http.StatusNoContent, status)

	status, raw := env.request(t, http.MethodGet, "/api/users/me", nil, auth.Token)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token has been revoked", decode[models.ErrorResponse](t, raw).Error)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/users/me"},
		{http.MethodGet, "/api/posts"},
		{http.MethodPost, "/api/files"},
		{http.MethodGet, "/api/feature-flags/me"},
		{http.MethodGet, "/api/admin/reported-posts"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			status, _ := env.request(t, p.method, p.path, nil, "")
			assert.Equal(t, http.StatusUnauthorized, status)
		})
	}

	status, _ := env.request(t, http.MethodGet, "/api/users/me", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env, "forgetful@example.com")

	var resetURL string
	env.mail.On("Send", mock.Anything, mock.MatchedBy(func(msg mailer.Message) bool {
		return msg.Template == mailer.TemplatePasswordReset && msg.To == "forgetful@example.com"
	})).Run(func(args mock.Arguments) {
		data := args.Get(1).(mailer.Message).Data.(map[string]string)
		resetURL = data["ResetURL"]
	}).Return(nil).Once()

	status, _ := env.request(t, http.MethodPost, "/api/auth/forgot-password",
		ForgotPasswordRequest{Email: "forgetful@example.com"}, "")
	require.Equal(t, http.StatusAccepted, status)
	env.mail.AssertExpectations(t)

	// Unknown addresses get the same answer and no email.
	status, _ = env.request(t, http.MethodPost, "/api/auth/forgot-password",
		ForgotPasswordRequest{Email: "stranger@example.com"}, "")
	assert.Equal(t, http.StatusAccepted, status)
	env.mail.AssertNumberOfCalls(t, "Send", 1)

	require.True(t, strings.HasPrefix(resetURL, "http://localhost:5173/reset-password?token="))
	parsed, err := url.Parse(resetURL)
	require.NoError(t, err)
	token := parsed.Query().Get("token")

	status, raw := env.request(t, http.MethodPost, "/api/auth/reset-password",
		ResetPasswordRequest{Token: token, Password: "N3wPassw0rd!"}, "")
	require.Equal(t, http.StatusOK, status, string(raw))

	// Single use: the password changed so the token no longer matches.
	status, _ = env.request(t, http.MethodPost, "/api/auth/reset-password",
		ResetPasswordRequest{Token: token, Password: "An0therPass!"}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.request(t, http.MethodPost, "/api/auth/login",
		LoginRequest{Email: "forgetful@example.com", Password: "N3wPassw0rd!"}, "")
	assert.Equal(t, http.StatusOK, status)

	// A reset token is not an access token.
	status, _ = env.request(t, http.MethodGet, "/api/users/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSignup_RateLimitedOutsideDevelopment(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Env = "staging" })

	for i := 0; i < signupRule.Limit; i++ {
		signup(t, env, fmt.Sprintf("limited%d@example.com", i))
	}

	status, raw := env.request(t, http.MethodPost, "/api/auth/signup", SignupRequest{
		Email: "one-too-many@example.com", Password: testPassword,
	}, "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	resp := decode[models.ErrorResponse](t, raw)
	assert.Equal(t, models.CodeRateLimited, resp.Code)
}
