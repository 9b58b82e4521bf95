package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"nexify/internal/cache"
	"nexify/internal/config"
	"nexify/internal/mailer"
	"nexify/internal/middleware"
	"nexify/internal/models"
	"nexify/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPassword = "Passw0rd!"

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// testEnv is a fully wired server over sqlite and miniredis.
type testEnv struct {
	srv  *Server
	app  *fiber.App
	db   *gorm.DB
	mr   *miniredis.Miniredis
	rdb  *redis.Client
	mail *mockMailer
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		JWTSecret:             "test-secret",
		Port:                  "0",
		PublicBaseURL:         "http://localhost:8080",
		FrontendURL:           "http://localhost:5173",
		AllowedOrigins:        "http://localhost:5173",
		FeatureFlags:          "recommended_feed=true,realtime=true",
		Env:                   "test",
		AllowedFileExtensions: "jpg,jpeg,png,gif",
		UploadMaxSizeMB:       1,
		RecommendPostSize:     10,
		StorageDriver:         "local",
		StorageLocalDir:       t.TempDir(),
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}

	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	mail := new(mockMailer)
	srv, err := NewServerWithDeps(cfg, db, rdb, Deps{Mailer: mail})
	require.NoError(t, err)

	return &testEnv{srv: srv, app: srv.App(), db: db, mr: mr, rdb: rdb, mail: mail}
}

func (e *testEnv) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := middleware.GenerateToken(e.srv.config.JWTSecret, user.ID, middleware.TokenAudience, middleware.AccessTokenTTL, nil)
	require.NoError(t, err)
	return token
}

// request sends body as JSON (when non-nil) and returns the status and raw body.
func (e *testEnv) request(t *testing.T, method, path string, body interface{}, token string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}
