package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"nexify/internal/mailer"
	"nexify/internal/models"
	"nexify/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository. Unset functions
// return zero values.
type postRepoStub struct {
	createFn       func(context.Context, *models.Post, *models.File) error
	getByIDFn      func(context.Context, uuid.UUID) (*models.Post, error)
	listFn         func(context.Context, repository.PostFilter) ([]models.Post, int64, error)
	updateFn       func(context.Context, *models.Post) error
	deleteFn       func(context.Context, uuid.UUID) error
	toggleLikeFn   func(context.Context, uuid.UUID, uuid.UUID) (*models.Post, string, error)
	isLikedFn      func(context.Context, uuid.UUID, uuid.UUID) (bool, error)
	likedIDsFn     func(context.Context, uuid.UUID, []uuid.UUID) (map[uuid.UUID]bool, error)
	reportFn       func(context.Context, uuid.UUID, uuid.UUID) (*models.Post, error)
	listReportedFn func(context.Context, int, int) ([]models.Post, int64, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post, file *models.File) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, post, file)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	if s.getByIDFn == nil {
		return nil, models.ErrPostNotFound()
	}
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, filter repository.PostFilter) ([]models.Post, int64, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, filter)
}
func (s *postRepoStub) ListByIDs(context.Context, []uuid.UUID) ([]models.Post, error) {
	return nil, nil
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uuid.UUID) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) ToggleLike(ctx context.Context, postID, userID uuid.UUID) (*models.Post, string, error) {
	return s.toggleLikeFn(ctx, postID, userID)
}
func (s *postRepoStub) IsLiked(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	if s.isLikedFn == nil {
		return false, nil
	}
	return s.isLikedFn(ctx, postID, userID)
}
func (s *postRepoStub) LikedPostIDs(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	if s.likedIDsFn == nil {
		return map[uuid.UUID]bool{}, nil
	}
	return s.likedIDsFn(ctx, userID, postIDs)
}
func (s *postRepoStub) Report(ctx context.Context, postID, userID uuid.UUID) (*models.Post, error) {
	return s.reportFn(ctx, postID, userID)
}
func (s *postRepoStub) ListReported(ctx context.Context, limit, offset int) ([]models.Post, int64, error) {
	if s.listReportedFn == nil {
		return nil, 0, nil
	}
	return s.listReportedFn(ctx, limit, offset)
}
func (s *postRepoStub) ReconcileCounters(context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createFn          func(context.Context, *models.User) error
	getByIDFn         func(context.Context, uuid.UUID) (*models.User, error)
	getWithPasswordFn func(context.Context, uuid.UUID) (*models.User, error)
	getByEmailFn      func(context.Context, string) (*models.User, error)
	emailTakenFn      func(context.Context, string, uuid.UUID) (bool, error)
	updateFn          func(context.Context, *models.User, ...string) error
	setPasswordFn     func(context.Context, uuid.UUID, string) error
	setStaffFn        func(context.Context, uuid.UUID, bool, bool) error
	deleteFn          func(context.Context, uuid.UUID) error
}

func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, user)
}
func (s *userRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.getByIDFn == nil {
		return nil, models.ErrUserNotFound()
	}
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetWithPassword(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getWithPasswordFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.getByEmailFn == nil {
		return nil, nil
	}
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	if s.emailTakenFn == nil {
		return false, nil
	}
	return s.emailTakenFn(ctx, email, excludeID)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User, columns ...string) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, user, columns...)
}
func (s *userRepoStub) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	return s.setPasswordFn(ctx, id, hash)
}
func (s *userRepoStub) SetStaff(ctx context.Context, id uuid.UUID, staff, superuser bool) error {
	return s.setStaffFn(ctx, id, staff, superuser)
}
func (s *userRepoStub) Delete(ctx context.Context, id uuid.UUID) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}
func (s *userRepoStub) List(context.Context, int, int) ([]models.User, int64, error) {
	return nil, 0, nil
}
func (s *userRepoStub) ListActiveNonAdmin(context.Context) ([]models.User, error) {
	return nil, nil
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn  func(context.Context, *models.PostComment) error
	getByIDFn func(context.Context, uuid.UUID) (*models.PostComment, error)
	listFn    func(context.Context, uuid.UUID, int, int) ([]models.PostComment, int64, error)
	deleteFn  func(context.Context, *models.PostComment) error
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.PostComment) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*models.PostComment, error) {
	if s.getByIDFn == nil {
		return nil, models.ErrPostCommentNotFound()
	}
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.PostComment, int64, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, postID, limit, offset)
}
func (s *commentRepoStub) Delete(ctx context.Context, c *models.PostComment) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, c)
}

// followRepoStub is a stub for repository.FollowRepository.
type followRepoStub struct {
	toggleFn        func(context.Context, uuid.UUID, uuid.UUID) (*models.UserFollow, string, error)
	getPendingFn    func(context.Context, uuid.UUID, uuid.UUID) (*models.UserFollow, error)
	acceptFn        func(context.Context, uuid.UUID, uuid.UUID) (*models.UserFollow, error)
	deletePendingFn func(context.Context, uuid.UUID, uuid.UUID) error
}

func (s *followRepoStub) Toggle(ctx context.Context, followerID, followingID uuid.UUID) (*models.UserFollow, string, error) {
	return s.toggleFn(ctx, followerID, followingID)
}
func (s *followRepoStub) GetPending(ctx context.Context, followerID, followingID uuid.UUID) (*models.UserFollow, error) {
	if s.getPendingFn == nil {
		return nil, models.ErrUserFollowNotFound()
	}
	return s.getPendingFn(ctx, followerID, followingID)
}
func (s *followRepoStub) Accept(ctx context.Context, followerID, followingID uuid.UUID) (*models.UserFollow, error) {
	return s.acceptFn(ctx, followerID, followingID)
}
func (s *followRepoStub) DeletePending(ctx context.Context, followerID, followingID uuid.UUID) error {
	if s.deletePendingFn == nil {
		return nil
	}
	return s.deletePendingFn(ctx, followerID, followingID)
}
func (s *followRepoStub) ListPendingInbound(context.Context, uuid.UUID, int, int) ([]models.UserFollow, int64, error) {
	return nil, 0, nil
}
func (s *followRepoStub) ListFollowers(context.Context, uuid.UUID, int, int) ([]models.UserFollow, int64, error) {
	return nil, 0, nil
}
func (s *followRepoStub) ListFollowing(context.Context, uuid.UUID, int, int) ([]models.UserFollow, int64, error) {
	return nil, 0, nil
}

// recRepoStub is a stub for repository.RecommendationRepository.
type recRepoStub struct {
	listForUserFn func(context.Context, uuid.UUID) ([]models.Post, error)
}

func (s *recRepoStub) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Post, error) {
	return s.listForUserFn(ctx, userID)
}
func (s *recRepoStub) Rebuild(context.Context, repository.RecommendationPlanner) (repository.RebuildResult, error) {
	return repository.RebuildResult{}, nil
}

// fileRepoStub records created File rows.
type fileRepoStub struct {
	created []*models.File
}

func (s *fileRepoStub) Create(_ context.Context, file *models.File) error {
	s.created = append(s.created, file)
	return nil
}

// memoryStorage keeps saved objects in memory.
type memoryStorage struct {
	objects map[string][]byte
	err     error
}

func (m *memoryStorage) Save(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = buf.Bytes()
	return "https://cdn.test/" + key, nil
}

// recordingMailer captures sent messages and can be told to fail.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type publishedEvent struct {
	UserID  uuid.UUID
	Type    string
	Payload interface{}
}

// recordingPublisher captures realtime events and can be told to fail.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, userID uuid.UUID, eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{UserID: userID, Type: eventType, Payload: payload})
	return nil
}

var errStub = errors.New("stub failure")

func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}
