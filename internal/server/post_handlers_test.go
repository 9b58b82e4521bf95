package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"nexify/internal/config"
	"nexify/internal/models"
	"nexify/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestCreatePost_JSON(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "poster@example.com")
	token := env.tokenFor(t, owner)

	status, raw := env.request(t, http.MethodPost, "/api/posts",
		CreatePostRequest{Description: "  first post  ", Link: "https://example.com/a"}, token)
	require.Equal(t, http.StatusCreated, status, string(raw))
	post := decode[models.Post](t, raw)
	assert.Equal(t, "first post", post.Description)
	assert.Equal(t, owner.ID, post.UserID)
	assert.Equal(t, owner.Email, post.User.Email)

	t.Run("empty post", func(t *testing.T) {
		status, raw := env.request(t, http.MethodPost, "/api/posts", CreatePostRequest{}, token)
		require.Equal(t, http.StatusCreated, status, string(raw))
		empty := decode[models.Post](t, raw)
		assert.Empty(t, empty.Description)
		assert.Empty(t, empty.Link)
	})

	t.Run("bad link", func(t *testing.T) {
		status, raw := env.request(t, http.MethodPost, "/api/posts",
			CreatePostRequest{Description: "x", Link: "not a url"}, token)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "link must be a valid URL", decode[models.ErrorResponse](t, raw).Error)
	})
}

func TestCreatePost_Multipart(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "artist@example.com")
	token := env.tokenFor(t, owner)

	body, contentType := multipartBody(t, map[string]string{"description": "with a picture"}, "cat.png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	status, raw := env.send(t, req)
	require.Equal(t, http.StatusCreated, status, string(raw))
	post := decode[models.Post](t, raw)

	var files []models.File
	require.NoError(t, env.db.Where("uploader_id = ?", owner.ID).Find(&files).Error)
	require.Len(t, files, 1)
	assert.Contains(t, files[0].URL, "http://localhost:8080/media/artist@example.com/")
	assert.Contains(t, files[0].URL, "_cat.png")
	assert.Equal(t, "with a picture", post.Description)

	t.Run("disallowed extension writes nothing", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"description": "nope"}, "run.exe", []byte("MZ"))
		req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)

		status, raw := env.send(t, req)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, models.ReasonFileExtensionNotAllowed, decode[models.ErrorResponse](t, raw).Reason)

		var count int64
		require.NoError(t, env.db.Model(&models.Post{}).Where("user_id = ?", owner.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}

func TestGetPosts_SearchSortAndLikedFlag(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice@example.com")
	bob := testutil.CreateUser(t, env.db, "bob@example.com")
	quiet := testutil.CreatePost(t, env.db, alice, "sunrise, quiet")
	loud := testutil.CreatePost(t, env.db, alice, "sunset, loud")
	testutil.CreatePost(t, env.db, bob, "unrelated")

	token := env.tokenFor(t, bob)
	status, _ := env.request(t, http.MethodPut, "/api/posts/"+loud.ID.String()+"/like", nil, token)
	require.Equal(t, http.StatusOK, status)

	status, raw := env.request(t, http.MethodGet, "/api/posts?search=SUN%20&sort_by=-likes_count", nil, token)
	require.Equal(t, http.StatusOK, status, string(raw))
	page := decode[Page[models.Post]](t, raw)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, loud.ID, page.Items[0].ID)
	assert.True(t, page.Items[0].IsLiked)
	assert.Equal(t, quiet.ID, page.Items[1].ID)
	assert.False(t, page.Items[1].IsLiked)

	status, _ = env.request(t, http.MethodGet, "/api/posts?sort_by=title", nil, token)
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw = env.request(t, http.MethodGet, "/api/posts?limit=1&offset=1", nil, token)
	require.Equal(t, http.StatusOK, status)
	page = decode[Page[models.Post]](t, raw)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 1, page.Limit)
}

func TestToggleLike_Labels(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "owner@example.com")
	fan := testutil.CreateUser(t, env.db, "fan@example.com")
	post := testutil.CreatePost(t, env.db, owner, "like me")
	token := env.tokenFor(t, fan)
	path := "/api/posts/" + post.ID.String() + "/like"

	status, raw := env.request(t, http.MethodPut, path, nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, LikeResponse{Message: models.LabelLiked, IsLiked: true, LikesCount: 1}, decode[LikeResponse](t, raw))

	status, raw = env.request(t, http.MethodPut, path, nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, LikeResponse{Message: models.LabelUnliked, IsLiked: false, LikesCount: 0}, decode[LikeResponse](t, raw))

	assert.Equal(t, 0, testutil.ReloadPost(t, env.db, post.ID).LikesCount)
}

func TestPostOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "mine@example.com")
	other := testutil.CreateUser(t, env.db, "theirs@example.com")
	post := testutil.CreatePost(t, env.db, owner, "original")
	path := "/api/posts/" + post.ID.String()

	desc := "edited"
	status, raw := env.request(t, http.MethodPatch, path, UpdatePostRequest{Description: &desc}, env.tokenFor(t, other))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "This post can only be modified by its owner.", decode[models.ErrorResponse](t, raw).Error)

	status, _ = env.request(t, http.MethodDelete, path, nil, env.tokenFor(t, other))
	assert.Equal(t, http.StatusForbidden, status)

	status, raw = env.request(t, http.MethodPatch, path, UpdatePostRequest{Description: &desc}, env.tokenFor(t, owner))
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, "edited", decode[models.Post](t, raw).Description)

	status, _ = env.request(t, http.MethodDelete, path, nil, env.tokenFor(t, owner))
	require.Equal(t, http.StatusNoContent, status)

	status, raw = env.request(t, http.MethodGet, path, nil, env.tokenFor(t, owner))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.ReasonPostNotFound, decode[models.ErrorResponse](t, raw).Reason)
}

func TestPostRoutes_InvalidID(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "typo@example.com")

	status, raw := env.request(t, http.MethodGet, "/api/posts/42", nil, env.tokenFor(t, user))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid ID", decode[models.ErrorResponse](t, raw).Error)
}

func TestReportPost_Twice(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "reported@example.com")
	reporter := testutil.CreateUser(t, env.db, "reporter@example.com")
	post := testutil.CreatePost(t, env.db, owner, "questionable")
	path := "/api/posts/" + post.ID.String() + "/report"
	token := env.tokenFor(t, reporter)

	status, _ := env.request(t, http.MethodPost, path, nil, token)
	require.Equal(t, http.StatusCreated, status)

	status, raw := env.request(t, http.MethodPost, path, nil, token)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.ReasonPostAlreadyReported, decode[models.ErrorResponse](t, raw).Reason)

	stored := testutil.ReloadPost(t, env.db, post.ID)
	assert.True(t, stored.IsReported)
	assert.Equal(t, 1, stored.ReportCount)
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "host@example.com")
	guest := testutil.CreateUser(t, env.db, "guest@example.com")
	post := testutil.CreatePost(t, env.db, owner, "discuss")
	path := "/api/posts/" + post.ID.String() + "/comments"

	status, raw := env.request(t, http.MethodPost, path, CreateCommentRequest{Description: "nice"}, env.tokenFor(t, guest))
	require.Equal(t, http.StatusCreated, status, string(raw))
	comment := decode[models.PostComment](t, raw)

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	status, _ = env.request(t, http.MethodPost, path, CreateCommentRequest{Description: string(long)}, env.tokenFor(t, guest))
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw = env.request(t, http.MethodGet, path, nil, env.tokenFor(t, owner))
	require.Equal(t, http.StatusOK, status)
	page := decode[Page[models.PostComment]](t, raw)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, testutil.ReloadPost(t, env.db, post.ID).CommentsCount)

	status, _ = env.request(t, http.MethodDelete, "/api/comments/"+comment.ID.String(), nil, env.tokenFor(t, owner))
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.request(t, http.MethodDelete, "/api/comments/"+comment.ID.String(), nil, env.tokenFor(t, guest))
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, 0, testutil.ReloadPost(t, env.db, post.ID).CommentsCount)
}

func TestUploadFile(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "uploader@example.com")

	body, contentType := multipartBody(t, nil, "photo.png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/files", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+env.tokenFor(t, user))

	status, raw := env.send(t, req)
	require.Equal(t, http.StatusCreated, status, string(raw))
	file := decode[models.File](t, raw)
	assert.Equal(t, user.ID, file.UploaderID)
	assert.Contains(t, file.MetaData, `"content_type":"image/png"`)

	req = httptest.NewRequest(http.MethodPost, "/api/files", nil)
	req.Header.Set("Authorization", "Bearer "+env.tokenFor(t, user))
	status, _ = env.send(t, req)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRecommendedPosts(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db, "root@example.com")
	reader := testutil.CreateUser(t, env.db, "reader@example.com")
	author := testutil.CreateUser(t, env.db, "author@example.com")
	liked := testutil.CreatePost(t, env.db, author, "already liked")
	fresh := testutil.CreatePost(t, env.db, author, "new to reader")

	readerToken := env.tokenFor(t, reader)
	status, _ := env.request(t, http.MethodPut, "/api/posts/"+liked.ID.String()+"/like", nil, readerToken)
	require.Equal(t, http.StatusOK, status)

	status, raw := env.request(t, http.MethodGet, "/api/posts/recommended", nil, readerToken)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Empty(t, decode[[]models.Post](t, raw))

	status, raw = env.request(t, http.MethodPost, "/api/admin/jobs/recommendations", nil, env.tokenFor(t, admin))
	require.Equal(t, http.StatusOK, status, string(raw))
	result := decode[map[string]int](t, raw)
	assert.Equal(t, 2, result["users"])

	status, raw = env.request(t, http.MethodGet, "/api/posts/recommended", nil, readerToken)
	require.Equal(t, http.StatusOK, status)
	posts := decode[[]models.Post](t, raw)
	require.Len(t, posts, 1)
	assert.Equal(t, fresh.ID, posts[0].ID)
}

func TestRecommendedPosts_FlagOff(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.FeatureFlags = "recommended_feed=false"
	})
	user := testutil.CreateUser(t, env.db, "flagged@example.com")

	status, _ := env.request(t, http.MethodGet, "/api/posts/recommended", nil, env.tokenFor(t, user))
	assert.Equal(t, http.StatusNotFound, status)

	status, raw := env.request(t, http.MethodGet, "/api/feature-flags/me", nil, env.tokenFor(t, user))
	require.Equal(t, http.StatusOK, status)
	flags := decode[struct {
		Evaluated map[string]bool `json:"evaluated"`
	}](t, raw)
	assert.False(t, flags.Evaluated["recommended_feed"])
}
