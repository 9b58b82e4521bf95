package repository

import (
	"context"
	"errors"

	"nexify/internal/cache"
	"nexify/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.PostComment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PostComment, error)
	ListByPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.PostComment, int64, error)
	Delete(ctx context.Context, comment *models.PostComment) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment and bumps the post's comments_count together.
func (r *commentRepository) Create(ctx context.Context, comment *models.PostComment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockActivePost(tx, comment.PostID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(comment).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comments_count", incrementExpr("comments_count")).Error; err != nil {
			return err
		}
		return tx.Preload("User").Where("id = ?", comment.ID).First(comment).Error
	})
	if err != nil {
		return internal(err)
	}
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PostComment, error) {
	var comment models.PostComment
	if err := r.db.WithContext(ctx).
		Scopes(active("post_comments")).
		Preload("User").
		Where("post_comments.id = ?", id).
		First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPostCommentNotFound()
		}
		return nil, internal(err)
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.PostComment, int64, error) {
	limit, offset = clampPage(limit, offset)
	query := r.db.WithContext(ctx).
		Model(&models.PostComment{}).
		Scopes(active("post_comments")).
		Where("post_comments.post_id = ?", postID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, internal(err)
	}

	var comments []models.PostComment
	if err := query.
		Preload("User").
		Order("post_comments.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error; err != nil {
		return nil, 0, internal(err)
	}
	return comments, total, nil
}

// Delete decrements the post's comments_count and removes the comment in one
// transaction.
func (r *commentRepository) Delete(ctx context.Context, comment *models.PostComment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", comment.ID).Delete(&models.PostComment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrPostCommentNotFound()
		}
		return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comments_count", decrementExpr("comments_count")).Error
	})
	if err != nil {
		return internal(err)
	}
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}
