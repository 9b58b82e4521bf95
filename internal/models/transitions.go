package models

// LikeState is the relation between one user and one post.
type LikeState int

const (
	LikeAbsent LikeState = iota
	LikePresent
)

// Like toggle labels.
const (
	LabelLiked   = "liked"
	LabelUnliked = "unliked"
)

// Toggle returns the state a like toggle moves to and the label reported to
// the caller.
func (s LikeState) Toggle() (LikeState, string) {
	if s == LikePresent {
		return LikeAbsent, LabelUnliked
	}
	return LikePresent, LabelLiked
}

// FollowState is the state of one ordered (follower, following) pair.
type FollowState int

const (
	FollowAbsent FollowState = iota
	FollowPending
	FollowAccepted
)

// Follow toggle labels.
const (
	LabelFollowRequestSent    = "Follow request sent."
	LabelUnfollowed           = "You have unfollowed."
	LabelFollowRequestDeleted = "Follow request deleted."
)

// Toggle returns the state a follow toggle moves to and its label. Any
// existing edge is removed; a missing edge becomes a pending request.
func (s FollowState) Toggle() (FollowState, string) {
	switch s {
	case FollowAccepted:
		return FollowAbsent, LabelUnfollowed
	case FollowPending:
		return FollowAbsent, LabelFollowRequestDeleted
	default:
		return FollowPending, LabelFollowRequestSent
	}
}

func (s FollowState) String() string {
	switch s {
	case FollowPending:
		return "pending"
	case FollowAccepted:
		return "accepted"
	default:
		return "absent"
	}
}
