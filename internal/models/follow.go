package models

import (
	"github.com/google/uuid"
)

// UserFollow is a directed follow edge. Accepted is false while the request
// is pending. The ordered pair (FollowerID, FollowingID) is unique.
type UserFollow struct {
	Base
	FollowerID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_follows_pair" json:"follower_id"`
	Follower    User      `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"follower"`
	FollowingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_follows_pair;index" json:"following_id"`
	Following   User      `gorm:"foreignKey:FollowingID;constraint:OnDelete:CASCADE" json:"following"`
	Accepted    bool      `gorm:"not null;default:false;index" json:"accepted"`
}

// NewUserFollow builds a pending follow request.
func NewUserFollow(followerID, followingID uuid.UUID) *UserFollow {
	return &UserFollow{Base: newBase(), FollowerID: followerID, FollowingID: followingID}
}

// State maps a stored edge (nil for none) onto the follow state machine.
func (f *UserFollow) State() FollowState {
	switch {
	case f == nil:
		return FollowAbsent
	case f.Accepted:
		return FollowAccepted
	default:
		return FollowPending
	}
}
