package repository

import (
	"context"

	"nexify/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FileRepository stores upload records.
type FileRepository interface {
	Create(ctx context.Context, file *models.File) error
}

type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository creates a new file repository
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, file *models.File) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(file).Error; err != nil {
		return internal(err)
	}
	return nil
}
