package repository

import (
	"context"

	"nexify/internal/cache"
	"nexify/internal/models"
	"nexify/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecommendationPlanner picks the posts recommended to one user out of the
// active post ids. liked holds the posts that user already likes.
type RecommendationPlanner func(userID uuid.UUID, postIDs []uuid.UUID, liked map[uuid.UUID]bool) []uuid.UUID

// RebuildResult summarizes one recommendation rebuild.
type RebuildResult struct {
	Users int
	Items int
}

// RecommendationRepository reads and rebuilds per-user recommendation sets.
type RecommendationRepository interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Post, error)
	Rebuild(ctx context.Context, plan RecommendationPlanner) (RebuildResult, error)
}

type recommendationRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewRecommendationRepository creates a new recommendation repository
func NewRecommendationRepository(db *gorm.DB) RecommendationRepository {
	return &recommendationRepository{db: db, log: observability.NewRepoLogger("post_recommendations")}
}

// ListForUser returns the active posts recommended to userID, newest first.
// A user the job has not reached yet gets an empty list. Only the post ids
// are cached, so deleted or deactivated posts drop out on the next read.
func (r *recommendationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Post, error) {
	ids := []uuid.UUID{}
	err := cache.Aside(ctx, cache.RecommendationsKey(userID), &ids, cache.RecommendationsTTL, func() error {
		return r.db.WithContext(ctx).
			Model(&models.PostRecommendationItem{}).
			Joins("JOIN post_recommendations pr ON pr.id = post_recommendation_posts.post_recommendation_id").
			Where("pr.user_id = ?", userID).
			Pluck("post_recommendation_posts.post_id", &ids).Error
	})
	if err != nil {
		return nil, internal(err)
	}
	posts, err := activePostsByIDs(r.db.WithContext(ctx), ids)
	if err != nil {
		return nil, internal(err)
	}
	return posts, nil
}

// Rebuild replaces every eligible user's recommendation set in a single
// transaction. Eligible users are active and neither staff nor superuser.
func (r *recommendationRepository) Rebuild(ctx context.Context, plan RecommendationPlanner) (RebuildResult, error) {
	var (
		result    RebuildResult
		processed []uuid.UUID
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var userIDs []uuid.UUID
		if err := tx.Model(&models.User{}).
			Where("is_active = ? AND is_staff = ? AND is_superuser = ?", true, false, false).
			Order("created_at ASC").
			Pluck("id", &userIDs).Error; err != nil {
			return err
		}

		var postIDs []uuid.UUID
		if err := tx.Model(&models.Post{}).
			Where("is_active = ?", true).
			Order("created_at ASC").
			Pluck("id", &postIDs).Error; err != nil {
			return err
		}

		liked, err := likedPairs(tx)
		if err != nil {
			return err
		}

		for _, userID := range userIDs {
			chosen := plan(userID, postIDs, liked[userID])
			if err := replaceRecommendation(tx, userID, chosen); err != nil {
				return err
			}
			result.Users++
			result.Items += len(chosen)
		}
		processed = userIDs
		return nil
	})
	if err != nil {
		r.log.LogError(ctx, err, "rebuild")
		return RebuildResult{}, internal(err)
	}
	cache.InvalidateRecommendations(ctx, processed...)
	return result, nil
}

// likedPairs loads every active like once, grouped by user.
func likedPairs(tx *gorm.DB) (map[uuid.UUID]map[uuid.UUID]bool, error) {
	var rows []struct {
		UserID uuid.UUID
		PostID uuid.UUID
	}
	if err := tx.Model(&models.PostLike{}).
		Select("user_id, post_id").
		Where("is_active = ?", true).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	byUser := make(map[uuid.UUID]map[uuid.UUID]bool)
	for _, row := range rows {
		set, ok := byUser[row.UserID]
		if !ok {
			set = make(map[uuid.UUID]bool)
			byUser[row.UserID] = set
		}
		set[row.PostID] = true
	}
	return byUser, nil
}

// replaceRecommendation finds or creates the user's record and swaps its items.
func replaceRecommendation(tx *gorm.DB, userID uuid.UUID, postIDs []uuid.UUID) error {
	var existing []models.PostRecommendation
	if err := tx.Where("user_id = ?", userID).Limit(1).Find(&existing).Error; err != nil {
		return err
	}

	var rec *models.PostRecommendation
	if len(existing) > 0 {
		rec = &existing[0]
		if err := tx.Where("post_recommendation_id = ?", rec.ID).
			Delete(&models.PostRecommendationItem{}).Error; err != nil {
			return err
		}
		if err := tx.Model(rec).UpdateColumn("modified_at", gorm.Expr("CURRENT_TIMESTAMP")).Error; err != nil {
			return err
		}
	} else {
		rec = models.NewPostRecommendation(userID)
		if err := tx.Omit(clause.Associations).Create(rec).Error; err != nil {
			return err
		}
	}

	if len(postIDs) == 0 {
		return nil
	}
	items := make([]models.PostRecommendationItem, 0, len(postIDs))
	for _, postID := range postIDs {
		items = append(items, models.PostRecommendationItem{PostRecommendationID: rec.ID, PostID: postID})
	}
	return tx.CreateInBatches(items, 500).Error
}
