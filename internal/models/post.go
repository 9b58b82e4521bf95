package models

import (
	"github.com/google/uuid"
)

const (
	// MaxPostDescriptionLength bounds Post.Description in characters.
	MaxPostDescriptionLength = 300
	// MaxCommentDescriptionLength bounds PostComment.Description in characters.
	MaxCommentDescriptionLength = 100
)

// Post represents a post in the Nexify application.
// LikesCount, CommentsCount and ReportCount are denormalized and always move
// in the same transaction as the child row that changes them.
type Post struct {
	Base
	UserID        uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User          User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	Description   string    `gorm:"size:300;not null;default:''" json:"description"`
	Link          string    `gorm:"not null;default:''" json:"link,omitempty"`
	LikesCount    int       `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int       `gorm:"not null;default:0" json:"comments_count"`
	IsReported    bool      `gorm:"not null;default:false;index" json:"is_reported"`
	ReportCount   int       `gorm:"not null;default:0;index" json:"report_count"`
	// IsLiked is resolved per caller and never persisted.
	IsLiked bool `gorm:"-" json:"is_liked"`
}

// NewPost builds a post owned by userID with a fresh identifier.
func NewPost(userID uuid.UUID, description, link string) *Post {
	return &Post{
		Base:        newBase(),
		UserID:      userID,
		Description: description,
		Link:        link,
	}
}

// OwnedBy reports whether userID owns the post.
func (p *Post) OwnedBy(userID uuid.UUID) bool {
	return p.UserID == userID
}
