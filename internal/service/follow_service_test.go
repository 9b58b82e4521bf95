package service

import (
	"context"
	"testing"

	"nexify/internal/models"
	"nexify/internal/notifications"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func knownUsers(users ...*models.User) *userRepoStub {
	byID := make(map[uuid.UUID]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return &userRepoStub{getByIDFn: func(_ context.Context, id uuid.UUID) (*models.User, error) {
		if u, ok := byID[id]; ok {
			return u, nil
		}
		return nil, models.ErrUserNotFound()
	}}
}

func TestFollowService_ToggleFollow_Self(t *testing.T) {
	t.Parallel()

	me := models.NewUser("me@example.com", "", "", "h")
	follows := &followRepoStub{toggleFn: func(context.Context, uuid.UUID, uuid.UUID) (*models.UserFollow, string, error) {
		t.Fatal("self follow must not reach the repository")
		return nil, "", nil
	}}
	svc := NewFollowService(follows, knownUsers(me), nil)

	_, _, err := svc.ToggleFollow(context.Background(), me.ID, me.ID)
	appErr := assertAppError(t, err, models.CodeValidation)
	assert.Equal(t, models.ReasonCannotFollowSelf, appErr.Reason)
}

func TestFollowService_ToggleFollow_UnknownTarget(t *testing.T) {
	t.Parallel()

	me := models.NewUser("me@example.com", "", "", "h")
	svc := NewFollowService(&followRepoStub{}, knownUsers(me), nil)

	_, _, err := svc.ToggleFollow(context.Background(), me.ID, uuid.New())
	appErr := assertAppError(t, err, models.CodeNotFound)
	assert.Equal(t, models.ReasonUserNotFound, appErr.Reason)
}

func TestFollowService_ToggleFollow_NotifiesOnRequest(t *testing.T) {
	t.Parallel()

	me := models.NewUser("me@example.com", "", "", "h")
	them := models.NewUser("them@example.com", "", "", "h")

	labels := []string{models.LabelFollowRequestSent, models.LabelFollowRequestDeleted}
	calls := 0
	follows := &followRepoStub{toggleFn: func(_ context.Context, follower, following uuid.UUID) (*models.UserFollow, string, error) {
		assert.Equal(t, me.ID, follower)
		assert.Equal(t, them.ID, following)
		label := labels[calls]
		calls++
		return models.NewUserFollow(follower, following), label, nil
	}}
	pub := &recordingPublisher{}
	svc := NewFollowService(follows, knownUsers(me, them), pub)
	ctx := context.Background()

	_, label, err := svc.ToggleFollow(ctx, me.ID, them.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LabelFollowRequestSent, label)

	_, label, err = svc.ToggleFollow(ctx, me.ID, them.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LabelFollowRequestDeleted, label)

	require.Len(t, pub.events, 1)
	assert.Equal(t, them.ID, pub.events[0].UserID)
	assert.Equal(t, notifications.EventFollowRequested, pub.events[0].Type)
}

func TestFollowService_AcceptFollowRequest(t *testing.T) {
	t.Parallel()

	me := models.NewUser("me@example.com", "", "", "h")
	fan := models.NewUser("fan@example.com", "", "", "h")

	t.Run("no pending request", func(t *testing.T) {
		t.Parallel()
		svc := NewFollowService(&followRepoStub{}, knownUsers(me, fan), nil)
		_, err := svc.AcceptFollowRequest(context.Background(), me.ID, fan.ID)
		appErr := assertAppError(t, err, models.CodeNotFound)
		assert.Equal(t, models.ReasonUserFollowNotFound, appErr.Reason)
	})

	t.Run("unknown follower", func(t *testing.T) {
		t.Parallel()
		svc := NewFollowService(&followRepoStub{}, knownUsers(me), nil)
		_, err := svc.AcceptFollowRequest(context.Background(), me.ID, fan.ID)
		assertAppError(t, err, models.CodeNotFound)
	})

	t.Run("accepts and notifies the follower", func(t *testing.T) {
		t.Parallel()
		pending := models.NewUserFollow(fan.ID, me.ID)
		follows := &followRepoStub{
			getPendingFn: func(_ context.Context, follower, following uuid.UUID) (*models.UserFollow, error) {
				assert.Equal(t, fan.ID, follower)
				assert.Equal(t, me.ID, following)
				return pending, nil
			},
			acceptFn: func(context.Context, uuid.UUID, uuid.UUID) (*models.UserFollow, error) {
				accepted := *pending
				accepted.Accepted = true
				return &accepted, nil
			},
		}
		pub := &recordingPublisher{}
		svc := NewFollowService(follows, knownUsers(me, fan), pub)

		follow, err := svc.AcceptFollowRequest(context.Background(), me.ID, fan.ID)
		require.NoError(t, err)
		assert.True(t, follow.Accepted)
		require.Len(t, pub.events, 1)
		assert.Equal(t, fan.ID, pub.events[0].UserID)
		assert.Equal(t, notifications.EventFollowAccepted, pub.events[0].Type)
	})
}

func TestFollowService_DeleteFollowRequest(t *testing.T) {
	t.Parallel()

	me := models.NewUser("me@example.com", "", "", "h")
	fan := models.NewUser("fan@example.com", "", "", "h")

	deleted := false
	follows := &followRepoStub{
		getPendingFn: func(context.Context, uuid.UUID, uuid.UUID) (*models.UserFollow, error) {
			return models.NewUserFollow(fan.ID, me.ID), nil
		},
		deletePendingFn: func(context.Context, uuid.UUID, uuid.UUID) error { deleted = true; return nil },
	}
	svc := NewFollowService(follows, knownUsers(me, fan), nil)

	require.NoError(t, svc.DeleteFollowRequest(context.Background(), me.ID, fan.ID))
	assert.True(t, deleted)
}
