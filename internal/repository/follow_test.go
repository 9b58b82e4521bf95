package repository

import (
	"context"
	"testing"

	"nexify/internal/models"
	"nexify/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowRepository_ToggleCycle(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")

	edge, label, err := repo.Toggle(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LabelFollowRequestSent, label)
	require.NotNil(t, edge)
	assert.False(t, edge.Accepted)

	edge, label, err = repo.Toggle(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LabelFollowRequestDeleted, label)
	assert.Nil(t, edge)

	_, label, err = repo.Toggle(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LabelFollowRequestSent, label)

	accepted, err := repo.Accept(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)
	assert.Equal(t, alice.Email, accepted.Follower.Email)

	_, label, err = repo.Toggle(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LabelUnfollowed, label)

	var count int64
	require.NoError(t, db.Model(&models.UserFollow{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFollowRepository_ToggleIgnoresReverseEdge(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")

	_, _, err := repo.Toggle(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	_, label, err := repo.Toggle(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LabelFollowRequestSent, label)

	var count int64
	require.NoError(t, db.Model(&models.UserFollow{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestFollowRepository_AcceptWithoutRequest(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")

	_, err := repo.Accept(ctx, alice.ID, bob.ID)
	assert.True(t, models.HasReason(err, models.ReasonUserFollowNotFound))

	_, _, err = repo.Toggle(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = repo.Accept(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = repo.Accept(ctx, alice.ID, bob.ID)
	assert.True(t, models.HasReason(err, models.ReasonUserFollowNotFound))
	_, err = repo.GetPending(ctx, alice.ID, bob.ID)
	assert.True(t, models.HasReason(err, models.ReasonUserFollowNotFound))
}

func TestFollowRepository_DeletePending(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")

	_, _, err := repo.Toggle(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	pending, err := repo.GetPending(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, pending.FollowerID)

	require.NoError(t, repo.DeletePending(ctx, alice.ID, bob.ID))
	err = repo.DeletePending(ctx, alice.ID, bob.ID)
	assert.True(t, models.HasReason(err, models.ReasonUserFollowNotFound))
}

func TestFollowRepository_Lists(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")
	carol := testutil.CreateUser(t, db, "carol@example.com")

	_, _, err := repo.Toggle(ctx, alice.ID, carol.ID)
	require.NoError(t, err)
	_, _, err = repo.Toggle(ctx, bob.ID, carol.ID)
	require.NoError(t, err)
	_, err = repo.Accept(ctx, bob.ID, carol.ID)
	require.NoError(t, err)

	pending, total, err := repo.ListPendingInbound(ctx, carol.ID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, pending, 1)
	assert.Equal(t, alice.Email, pending[0].Follower.Email)

	followers, total, err := repo.ListFollowers(ctx, carol.ID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, followers, 1)
	assert.Equal(t, bob.ID, followers[0].FollowerID)

	following, total, err := repo.ListFollowing(ctx, bob.ID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, following, 1)
	assert.Equal(t, carol.Email, following[0].Following.Email)

	following, total, err = repo.ListFollowing(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, following)
}
