package repository

import (
	"context"
	"errors"

	"nexify/internal/models"
	"nexify/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository defines persistence for the directed follow graph.
type FollowRepository interface {
	Toggle(ctx context.Context, followerID, followingID uuid.UUID) (*models.UserFollow, string, error)
	GetPending(ctx context.Context, followerID, followingID uuid.UUID) (*models.UserFollow, error)
	Accept(ctx context.Context, followerID, followingID uuid.UUID) (*models.UserFollow, error)
	DeletePending(ctx context.Context, followerID, followingID uuid.UUID) error
	ListPendingInbound(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.UserFollow, int64, error)
	ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.UserFollow, int64, error)
	ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.UserFollow, int64, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// Toggle applies the follow state machine to the follower -> following edge
// in one transaction. The returned edge is nil when the toggle removed it.
// Losing an insert race on the pair's unique key is a Conflict.
func (r *followRepository) Toggle(ctx context.Context, followerID, followingID uuid.UUID) (*models.UserFollow, string, error) {
	var (
		edge  *models.UserFollow
		label string
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.UserFollow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("follower_id = ? AND following_id = ?", followerID, followingID).
			Limit(1).
			Find(&existing).Error; err != nil {
			return err
		}

		var current *models.UserFollow
		if len(existing) > 0 {
			current = &existing[0]
		}

		var next models.FollowState
		next, label = current.State().Toggle()

		if next == models.FollowPending {
			follow := models.NewUserFollow(followerID, followingID)
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Omit(clause.Associations).
				Create(follow)
			if res.Error != nil {
				if isUniqueViolation(res.Error) {
					return models.ErrFollowInProgress()
				}
				return res.Error
			}
			if res.RowsAffected == 0 {
				observability.UniqueConflicts.WithLabelValues("user_follows").Inc()
				return models.ErrFollowInProgress()
			}
			edge = follow
			return nil
		}

		res := tx.Where("id = ?", current.ID).Delete(&models.UserFollow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrFollowInProgress()
		}
		return nil
	})
	if err != nil {
		return nil, "", internal(err)
	}
	observability.ToggleOutcomes.WithLabelValues("follow", label).Inc()
	return edge, label, nil
}

// GetPending finds the unaccepted follower -> following request.
func (r *followRepository) GetPending(ctx context.Context, followerID, followingID uuid.UUID) (*models.UserFollow, error) {
	var follow models.UserFollow
	if err := r.db.WithContext(ctx).
		Scopes(active("user_follows")).
		Where("follower_id = ? AND following_id = ? AND accepted = ?", followerID, followingID, false).
		First(&follow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUserFollowNotFound()
		}
		return nil, internal(err)
	}
	return &follow, nil
}

// Accept turns a pending request into an accepted follow.
func (r *followRepository) Accept(ctx context.Context, followerID, followingID uuid.UUID) (*models.UserFollow, error) {
	var follow models.UserFollow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserFollow{}).
			Where("follower_id = ? AND following_id = ? AND accepted = ? AND is_active = ?",
				followerID, followingID, false, true).
			Updates(map[string]interface{}{"accepted": true})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrUserFollowNotFound()
		}
		return tx.Preload("Follower").
			Where("follower_id = ? AND following_id = ?", followerID, followingID).
			First(&follow).Error
	})
	if err != nil {
		return nil, internal(err)
	}
	return &follow, nil
}

// DeletePending removes a pending inbound request.
func (r *followRepository) DeletePending(ctx context.Context, followerID, followingID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ? AND accepted = ? AND is_active = ?",
			followerID, followingID, false, true).
		Delete(&models.UserFollow{})
	if res.Error != nil {
		return internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrUserFollowNotFound()
	}
	return nil
}

func (r *followRepository) ListPendingInbound(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.UserFollow, int64, error) {
	return r.list(ctx, "following_id = ? AND accepted = ?", []interface{}{userID, false}, "Follower", limit, offset)
}

func (r *followRepository) ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.UserFollow, int64, error) {
	return r.list(ctx, "following_id = ? AND accepted = ?", []interface{}{userID, true}, "Follower", limit, offset)
}

func (r *followRepository) ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.UserFollow, int64, error) {
	return r.list(ctx, "follower_id = ? AND accepted = ?", []interface{}{userID, true}, "Following", limit, offset)
}

// list returns matching edges newest first with the counterpart user loaded.
func (r *followRepository) list(ctx context.Context, where string, args []interface{}, preload string, limit, offset int) ([]models.UserFollow, int64, error) {
	limit, offset = clampPage(limit, offset)
	query := r.db.WithContext(ctx).
		Model(&models.UserFollow{}).
		Scopes(active("user_follows")).
		Where(where, args...)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, internal(err)
	}

	var follows []models.UserFollow
	if err := query.
		Preload(preload).
		Order("user_follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&follows).Error; err != nil {
		return nil, 0, internal(err)
	}
	return follows, total, nil
}
