package models

import (
	"github.com/google/uuid"
)

// PostLike represents a user's like on a post.
// The combination of PostID and UserID is unique.
type PostLike struct {
	Base
	PostID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_likes_post_user" json:"post_id"`
	Post   *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_likes_post_user;index" json:"user_id"`
	User   *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// NewPostLike builds a like with a fresh identifier.
func NewPostLike(postID, userID uuid.UUID) *PostLike {
	return &PostLike{Base: newBase(), PostID: postID, UserID: userID}
}

// ReportedPost records one user's report against a post.
// The combination of PostID and UserID is unique.
type ReportedPost struct {
	Base
	PostID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reported_posts_post_user" json:"post_id"`
	Post   *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reported_posts_post_user;index" json:"user_id"`
	User   *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// NewReportedPost builds a report with a fresh identifier.
func NewReportedPost(postID, userID uuid.UUID) *ReportedPost {
	return &ReportedPost{Base: newBase(), PostID: postID, UserID: userID}
}
