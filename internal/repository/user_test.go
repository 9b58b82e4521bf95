package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"nexify/internal/cache"
	"nexify/internal/models"
	"nexify/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	known := uuid.New()
	missing := uuid.New()

	tests := []struct {
		name          string
		userID        uuid.UUID
		mockBehavior  func()
		expectedEmail string
		expectedErr   string
	}{
		{
			name:   "Success",
			userID: known,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "email", "username"}).
					AddRow(known.String(), "test@example.com", "test@example.com")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE users.is_active = $1 AND id = $2`)).
					WithArgs(true, known, 1).
					WillReturnRows(rows)
			},
			expectedEmail: "test@example.com",
		},
		{
			name:   "Not Found",
			userID: missing,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE users.is_active = $1 AND id = $2`)).
					WithArgs(true, missing, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedErr: models.ReasonUserNotFound,
		},
		{
			name:   "Database Error",
			userID: missing,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
					WillReturnError(errors.New("connection timeout"))
			},
			expectedErr: "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			switch tt.expectedErr {
			case "":
				require.NoError(t, err)
				assert.Equal(t, tt.expectedEmail, user.Email)
			case "internal":
				var appErr *models.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, models.CodeInternal, appErr.Code)
				assert.Nil(t, user)
			default:
				assert.True(t, models.HasReason(err, tt.expectedErr))
				assert.Nil(t, user)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		email := "test@example.com"
		rows := sqlmock.NewRows([]string{"id", "email"}).AddRow(uuid.NewString(), email)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE LOWER(email) = $1`)).
			WithArgs(email, 1).
			WillReturnRows(rows)

		user, err := repo.GetByEmail(ctx, "  Test@Example.com ")
		assert.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, email, user.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		email := "ghost@example.com"
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE LOWER(email) = $1`)).
			WithArgs(email, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		user, err := repo.GetByEmail(ctx, email)
		assert.NoError(t, err)
		assert.Nil(t, user)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, models.NewUser("dup@example.com", "A", "B", "hash")))
	err := repo.Create(ctx, models.NewUser("dup@example.com", "C", "D", "hash"))
	assert.True(t, models.HasReason(err, models.ReasonUserAlreadyExists))
}

func TestUserRepository_EmailTaken(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")

	taken, err := repo.EmailTaken(ctx, "ALICE@example.com", bob.ID)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.EmailTaken(ctx, "alice@example.com", alice.ID)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestUserRepository_UpdateKeepsPassword(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "carol@example.com")
	cached, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)

	cached.Password = ""
	cached.FirstName = "Caroline"
	require.NoError(t, repo.Update(ctx, cached))

	stored, err := repo.GetWithPassword(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Caroline", stored.FirstName)
	assert.Equal(t, "hash", stored.Password)
}

func TestUserRepository_ListActiveNonAdmin(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	regular := testutil.CreateUser(t, db, "regular@example.com")
	testutil.CreateAdmin(t, db, "staff@example.com")
	inactive := testutil.CreateUser(t, db, "inactive@example.com")
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	users, err := repo.ListActiveNonAdmin(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, regular.ID, users[0].ID)
}

func TestUserRepository_DeleteRecountsTouchedPosts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	comments := NewCommentRepository(db)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner@example.com")
	leaving := testutil.CreateUser(t, db, "leaving@example.com")
	post := testutil.CreatePost(t, db, owner, "hello")
	ownPost := testutil.CreatePost(t, db, leaving, "mine")

	_, _, err := posts.ToggleLike(ctx, post.ID, leaving.ID)
	require.NoError(t, err)
	_, err = posts.Report(ctx, post.ID, leaving.ID)
	require.NoError(t, err)
	require.NoError(t, comments.Create(ctx, models.NewPostComment(post.ID, leaving.ID, "hi")))
	_, _, err = follows.Toggle(ctx, leaving.ID, owner.ID)
	require.NoError(t, err)

	require.NoError(t, users.Delete(ctx, leaving.ID))

	got := testutil.ReloadPost(t, db, post.ID)
	assert.Equal(t, 0, got.LikesCount)
	assert.Equal(t, 0, got.CommentsCount)
	assert.Equal(t, 0, got.ReportCount)
	assert.False(t, got.IsReported)

	var remaining int64
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", ownPost.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
	require.NoError(t, db.Model(&models.UserFollow{}).Count(&remaining).Error)
	assert.Zero(t, remaining)

	err = users.Delete(ctx, leaving.ID)
	assert.True(t, models.HasReason(err, models.ReasonUserNotFound))
}

func TestUserRepository_DeleteDropsCachedCounts(t *testing.T) {
	mr := useCache(t)
	db := testutil.NewSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner@example.com")
	leaving := testutil.CreateUser(t, db, "leaving@example.com")
	post := testutil.CreatePost(t, db, owner, "hello")

	_, _, err := posts.ToggleLike(ctx, post.ID, leaving.ID)
	require.NoError(t, err)
	cached, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, 1, cached.LikesCount)
	require.True(t, mr.Exists(cache.PostKey(post.ID)))

	require.NoError(t, users.Delete(ctx, leaving.ID))
	assert.False(t, mr.Exists(cache.PostKey(post.ID)))

	got, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LikesCount)
}
