package repository

import (
	"context"
	"errors"
	"log/slog"

	"nexify/internal/cache"
	"nexify/internal/models"
	"nexify/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetWithPassword(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
	Update(ctx context.Context, user *models.User, columns ...string) error
	SetPassword(ctx context.Context, id uuid.UUID, hash string) error
	SetStaff(ctx context.Context, id uuid.UUID, staff, superuser bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]models.User, int64, error)
	ListActiveNonAdmin(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.ErrUserAlreadyExists(user.Email)
		}
		r.log.LogError(ctx, err, "create")
		return internal(err)
	}
	r.log.LogCreate(ctx, slog.String("user_id", user.ID.String()))
	return nil
}

// GetByID returns an active user. The cached copy carries no password hash.
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return r.db.WithContext(ctx).
			Scopes(active("users")).
			Where("id = ?", id).
			First(&user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUserNotFound()
		}
		return nil, internal(err)
	}
	return &user, nil
}

// GetWithPassword reads the user straight from the database, hash included.
func (r *userRepository) GetWithPassword(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Scopes(active("users")).
		Where("id = ?", id).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUserNotFound()
		}
		return nil, internal(err)
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no account uses the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", models.NormalizeEmail(email)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, internal(err)
	}
	return &user, nil
}

func (r *userRepository) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("LOWER(email) = ? AND id <> ?", models.NormalizeEmail(email), excludeID).
		Count(&count).Error; err != nil {
		return false, internal(err)
	}
	return count > 0, nil
}

// Update writes the named columns only; the default set is the profile.
func (r *userRepository) Update(ctx context.Context, user *models.User, columns ...string) error {
	if len(columns) == 0 {
		columns = []string{"email", "username", "first_name", "last_name"}
	}
	columns = append(columns, "modified_at")
	if err := r.db.WithContext(ctx).
		Model(user).
		Select(columns).
		Updates(user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.ErrUserAlreadyExists(user.Email)
		}
		r.log.LogError(ctx, err, "update")
		return internal(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	r.log.LogUpdate(ctx, slog.String("user_id", user.ID.String()))
	return nil
}

func (r *userRepository) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("password", hash)
	if res.Error != nil {
		return internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrUserNotFound()
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) SetStaff(ctx context.Context, id uuid.UUID, staff, superuser bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_staff": staff, "is_superuser": superuser})
	if res.Error != nil {
		return internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrUserNotFound()
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// Delete removes a user with everything they own, then recounts the posts
// whose likes, comments or reports pointed at them.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var ownPosts, touched []uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrUserNotFound()
			}
			return err
		}

		if err := tx.Model(&models.Post{}).Where("user_id = ?", id).Pluck("id", &ownPosts).Error; err != nil {
			return err
		}

		for _, table := range []string{"post_likes", "post_comments", "reported_posts"} {
			var ids []uuid.UUID
			if err := tx.Table(table).Where("user_id = ?", id).Distinct().Pluck("post_id", &ids).Error; err != nil {
				return err
			}
			touched = append(touched, ids...)
		}

		for _, model := range []interface{}{&models.PostLike{}, &models.PostComment{}, &models.ReportedPost{}} {
			if err := tx.Where("user_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("follower_id = ? OR following_id = ?", id, id).Delete(&models.UserFollow{}).Error; err != nil {
			return err
		}

		var recIDs []uuid.UUID
		if err := tx.Model(&models.PostRecommendation{}).Where("user_id = ?", id).Pluck("id", &recIDs).Error; err != nil {
			return err
		}
		if len(recIDs) > 0 {
			if err := tx.Where("post_recommendation_id IN ?", recIDs).Delete(&models.PostRecommendationItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", recIDs).Delete(&models.PostRecommendation{}).Error; err != nil {
				return err
			}
		}

		if err := deletePosts(tx, ownPosts); err != nil {
			return err
		}
		if err := tx.Where("uploader_id = ?", id).Delete(&models.File{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.User{}).Error; err != nil {
			return err
		}

		touched = uniqueIDs(touched)
		_, err := recountPosts(tx, touched)
		return err
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return internal(err)
	}

	cache.InvalidateUser(ctx, id)
	for _, postID := range append(ownPosts, touched...) {
		cache.InvalidatePost(ctx, postID)
	}
	r.log.LogDelete(ctx, slog.String("user_id", id.String()))
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	limit, offset = clampPage(limit, offset)
	query := r.db.WithContext(ctx).Model(&models.User{}).Scopes(active("users"))

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, internal(err)
	}
	var users []models.User
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, internal(err)
	}
	return users, total, nil
}

// ListActiveNonAdmin returns active users that are neither staff nor superuser.
func (r *userRepository) ListActiveNonAdmin(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Scopes(active("users")).
		Where("is_staff = ? AND is_superuser = ?", false, false).
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, internal(err)
	}
	return users, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
