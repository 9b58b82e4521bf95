package models

import (
	"github.com/google/uuid"
)

// PostRecommendation holds the recommendation set produced for one user by
// the daily job. The set is replaced wholesale on each run.
type PostRecommendation struct {
	Base
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	User           *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	RecommendPosts []Post    `gorm:"many2many:post_recommendation_posts;joinForeignKey:PostRecommendationID;joinReferences:PostID" json:"recommend_posts"`
}

// NewPostRecommendation builds an empty recommendation record for userID.
func NewPostRecommendation(userID uuid.UUID) *PostRecommendation {
	return &PostRecommendation{Base: newBase(), UserID: userID}
}

// PostRecommendationItem is one row of the recommendation join table.
type PostRecommendationItem struct {
	PostRecommendationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	PostID               uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// TableName specifies the table name for GORM
func (PostRecommendationItem) TableName() string {
	return "post_recommendation_posts"
}
