package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"nexify/internal/models"
	"nexify/internal/notifications"
	"nexify/internal/repository"

	"github.com/google/uuid"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	events      notifications.Publisher
}

type CreateCommentInput struct {
	UserID      uuid.UUID
	PostID      uuid.UUID
	Description string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	events notifications.Publisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		events:      events,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.PostComment, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return nil, models.NewValidationError("Description is required")
	}
	if utf8.RuneCountInString(in.Description) > models.MaxCommentDescriptionLength {
		return nil, models.NewValidationError("Comment too long (max 100 characters)")
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	comment := models.NewPostComment(post.ID, in.UserID, in.Description)
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	if post.UserID != in.UserID {
		publish(ctx, s.events, post.UserID, notifications.EventPostCommented, map[string]interface{}{
			"post_id":    post.ID,
			"comment_id": comment.ID,
			"user_id":    in.UserID,
		})
	}
	return comment, nil
}

// ListComments returns a post's active comments, newest first.
func (s *CommentService) ListComments(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.PostComment, int64, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, 0, err
	}
	return s.commentRepo.ListByPost(ctx, postID, limit, offset)
}

// DeleteComment lets only the comment's author remove it.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		return models.ErrUnauthorizedPostCommentAccess()
	}
	return s.commentRepo.Delete(ctx, comment)
}
