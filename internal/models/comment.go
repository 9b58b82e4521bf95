package models

import (
	"github.com/google/uuid"
)

// PostComment represents a comment on a post.
type PostComment struct {
	Base
	PostID      uuid.UUID `gorm:"type:uuid;not null;index" json:"post_id"`
	Post        *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	Description string    `gorm:"size:100;not null" json:"description"`
}

// NewPostComment builds a comment with a fresh identifier.
func NewPostComment(postID, userID uuid.UUID, description string) *PostComment {
	return &PostComment{
		Base:        newBase(),
		PostID:      postID,
		UserID:      userID,
		Description: description,
	}
}
