// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the columns every entity shares.
type Base struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	ModifiedAt time.Time `gorm:"autoUpdateTime" json:"modified_at"`
	IsActive   bool      `gorm:"not null;default:true;index" json:"is_active"`
}

// newBase stamps a fresh identifier. Identifiers are assigned once, at
// construction, and never regenerated by the storage layer.
func newBase() Base {
	now := time.Now().UTC()
	return Base{
		ID:         uuid.New(),
		CreatedAt:  now,
		ModifiedAt: now,
		IsActive:   true,
	}
}

// BeforeCreate fills the identifier only when a caller skipped the constructor.
func (b *Base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
