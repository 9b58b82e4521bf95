package service

import (
	"context"

	"nexify/internal/models"
	"nexify/internal/notifications"
	"nexify/internal/repository"

	"github.com/google/uuid"
)

// FollowService provides follow-request and follower-graph business logic.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	events     notifications.Publisher
}

// NewFollowService returns a new FollowService.
func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	events notifications.Publisher,
) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		events:     events,
	}
}

// ToggleFollow advances the caller -> target edge one step: absent becomes a
// pending request, pending is withdrawn, accepted is unfollowed.
func (s *FollowService) ToggleFollow(ctx context.Context, userID, targetID uuid.UUID) (*models.UserFollow, string, error) {
	if userID == targetID {
		return nil, "", models.ErrCannotFollowSelf()
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return nil, "", err
	}

	edge, label, err := s.followRepo.Toggle(ctx, userID, targetID)
	if err != nil {
		return nil, "", err
	}
	if label == models.LabelFollowRequestSent {
		publish(ctx, s.events, targetID, notifications.EventFollowRequested, map[string]interface{}{
			"follower_id": userID,
		})
	}
	return edge, label, nil
}

// AcceptFollowRequest accepts followerID's pending request to userID.
func (s *FollowService) AcceptFollowRequest(ctx context.Context, userID, followerID uuid.UUID) (*models.UserFollow, error) {
	if _, err := s.userRepo.GetByID(ctx, followerID); err != nil {
		return nil, err
	}
	if _, err := s.followRepo.GetPending(ctx, followerID, userID); err != nil {
		return nil, err
	}
	follow, err := s.followRepo.Accept(ctx, followerID, userID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, followerID, notifications.EventFollowAccepted, map[string]interface{}{
		"following_id": userID,
	})
	return follow, nil
}

// DeleteFollowRequest rejects followerID's pending request to userID.
func (s *FollowService) DeleteFollowRequest(ctx context.Context, userID, followerID uuid.UUID) error {
	if _, err := s.userRepo.GetByID(ctx, followerID); err != nil {
		return err
	}
	if _, err := s.followRepo.GetPending(ctx, followerID, userID); err != nil {
		return err
	}
	return s.followRepo.DeletePending(ctx, followerID, userID)
}

func (s *FollowService) ListPending(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.UserFollow, int64, error) {
	return s.followRepo.ListPendingInbound(ctx, userID, limit, offset)
}

func (s *FollowService) ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.UserFollow, int64, error) {
	return s.followRepo.ListFollowers(ctx, userID, limit, offset)
}

func (s *FollowService) ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.UserFollow, int64, error) {
	return s.followRepo.ListFollowing(ctx, userID, limit, offset)
}
