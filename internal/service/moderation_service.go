package service

import (
	"context"
	"log/slog"
	"time"

	"nexify/internal/mailer"
	"nexify/internal/models"
	"nexify/internal/notifications"
	"nexify/internal/observability"
	"nexify/internal/repository"

	"github.com/google/uuid"
)

// DeletionDateLayout formats the date shown in the post removal email.
const DeletionDateLayout = "January 02, 2006"

// AdminDeleteResult reports the outcome of an admin post removal.
// The deletion stands even when the owner could not be emailed.
type AdminDeleteResult struct {
	PostID       uuid.UUID `json:"post_id"`
	OwnerEmailed bool      `json:"owner_emailed"`
	Warning      string    `json:"warning,omitempty"`
}

// ModerationService provides admin moderation of reported posts.
type ModerationService struct {
	postRepo repository.PostRepository
	mail     mailer.Mailer
	events   notifications.Publisher
	now      func() time.Time
}

// NewModerationService returns a new ModerationService.
func NewModerationService(postRepo repository.PostRepository, mail mailer.Mailer, events notifications.Publisher) *ModerationService {
	if mail == nil {
		mail = mailer.LogMailer{}
	}
	return &ModerationService{postRepo: postRepo, mail: mail, events: events, now: time.Now}
}

// ListReportedPosts returns flagged posts, most reported first.
func (s *ModerationService) ListReportedPosts(ctx context.Context, limit, offset int) ([]models.Post, int64, error) {
	return s.postRepo.ListReported(ctx, limit, offset)
}

// AdminDeletePost removes a post and its dependents, then tells the owner.
func (s *ModerationService) AdminDeletePost(ctx context.Context, adminID, postID uuid.UUID) (*AdminDeleteResult, error) {
	span, ctx := observability.StartServiceSpan(ctx, "ModerationService", "AdminDeletePost")
	defer span.End()

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		span.SetError(err)
		return nil, err
	}

	observability.GlobalLogger.InfoContext(ctx, "post removed by moderator",
		slog.String("post_id", post.ID.String()),
		slog.String("owner_id", post.UserID.String()),
		slog.String("admin_id", adminID.String()),
	)

	result := &AdminDeleteResult{PostID: post.ID, OwnerEmailed: true}
	if err := s.notifyOwner(ctx, post); err != nil {
		observability.NotificationFailures.WithLabelValues("email", mailer.TemplatePostDeleted).Inc()
		observability.GlobalLogger.WarnContext(ctx, "post removal email failed",
			slog.String("post_id", post.ID.String()),
			slog.String("owner_email", post.User.Email),
			slog.String("error", err.Error()),
		)
		result.OwnerEmailed = false
		result.Warning = "post deleted but the owner could not be notified"
	}

	publish(ctx, s.events, post.UserID, notifications.EventPostRemoved, map[string]interface{}{
		"post_id": post.ID,
	})
	return result, nil
}

func (s *ModerationService) notifyOwner(ctx context.Context, post *models.Post) error {
	return s.mail.Send(ctx, mailer.Message{
		To:       post.User.Email,
		Subject:  "Your post was removed",
		Template: mailer.TemplatePostDeleted,
		Data: map[string]string{
			"UserName":        post.User.FullName(),
			"PostDescription": post.Description,
			"DeletionDate":    s.now().Format(DeletionDateLayout),
		},
	})
}
