package service

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"nexify/internal/models"
	"nexify/internal/notifications"
	"nexify/internal/observability"
	"nexify/internal/repository"

	"github.com/google/uuid"
)

// PostService holds post, like and report logic and the ownership checks
// that guard post writes.
type PostService struct {
	postRepo repository.PostRepository
	recRepo  repository.RecommendationRepository
	userRepo repository.UserRepository
	files    *FileService
	events   notifications.Publisher
}

type CreatePostInput struct {
	UserID      uuid.UUID
	Description string
	Link        string
	Upload      *UploadInput
}

type ListPostsInput struct {
	CallerID uuid.UUID
	Search   string
	SortBy   string
	Limit    int
	Offset   int
}

type UpdatePostInput struct {
	UserID      uuid.UUID
	PostID      uuid.UUID
	Description *string
	Link        *string
}

func NewPostService(
	postRepo repository.PostRepository,
	recRepo repository.RecommendationRepository,
	userRepo repository.UserRepository,
	files *FileService,
	events notifications.Publisher,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		recRepo:  recRepo,
		userRepo: userRepo,
		files:    files,
		events:   events,
	}
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > models.MaxPostDescriptionLength {
		return models.NewValidationError("Description too long (max 300 characters)")
	}
	return nil
}

func validateLink(link string) error {
	if link == "" {
		return nil
	}
	if _, err := url.ParseRequestURI(link); err != nil {
		return models.NewValidationError("link must be a valid URL")
	}
	return nil
}

// CreatePost checks the upload before anything is written, stores the file,
// then creates the post and its File row together.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	span, ctx := observability.StartServiceSpan(ctx, "post", "CreatePost")
	defer span.End()

	in.Description = strings.TrimSpace(in.Description)
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}
	if err := validateLink(in.Link); err != nil {
		return nil, err
	}
	if in.Upload != nil {
		if s.files == nil {
			return nil, models.NewValidationError("File uploads are disabled")
		}
		if err := s.files.CheckUpload(*in.Upload); err != nil {
			return nil, err
		}
	}

	owner, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	var file *models.File
	if in.Upload != nil {
		if file, err = s.files.Store(ctx, owner, *in.Upload); err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	post := models.NewPost(owner.ID, in.Description, in.Link)
	if err := s.postRepo.Create(ctx, post, file); err != nil {
		span.SetError(err)
		return nil, err
	}
	post.User = *owner
	return post, nil
}

// ListPosts returns the feed page with the caller's like flags set.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]models.Post, int64, error) {
	if !repository.ValidPostSort(in.SortBy) {
		return nil, 0, models.NewValidationError("sort_by must be one of created_at, -created_at, likes_count, -likes_count")
	}
	posts, total, err := s.postRepo.List(ctx, repository.PostFilter{
		Search: in.Search,
		SortBy: in.SortBy,
		Limit:  in.Limit,
		Offset: in.Offset,
	})
	if err != nil {
		return nil, 0, err
	}
	if err := s.markLiked(ctx, in.CallerID, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (s *PostService) GetPost(ctx context.Context, callerID, postID uuid.UUID) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	liked, err := s.postRepo.IsLiked(ctx, postID, callerID)
	if err != nil {
		return nil, err
	}
	post.IsLiked = liked
	return post, nil
}

// ownedPost loads an active post and requires callerID to own it.
func (s *PostService) ownedPost(ctx context.Context, callerID, postID uuid.UUID, action string) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.OwnedBy(callerID) {
		return nil, models.ErrUnauthorizedPostAccess(action)
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.ownedPost(ctx, in.UserID, in.PostID, "modified")
	if err != nil {
		return nil, err
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if err := validateDescription(desc); err != nil {
			return nil, err
		}
		post.Description = desc
	}
	if in.Link != nil {
		if err := validateLink(*in.Link); err != nil {
			return nil, err
		}
		post.Link = *in.Link
	}
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, userID, postID uuid.UUID) error {
	if _, err := s.ownedPost(ctx, userID, postID, "deleted"); err != nil {
		return err
	}
	return s.postRepo.Delete(ctx, postID)
}

// ToggleLike flips the caller's like and tells the owner about new likes.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uuid.UUID) (*models.Post, string, error) {
	span, ctx := observability.StartServiceSpan(ctx, "post", "ToggleLike")
	defer span.End()

	post, label, err := s.postRepo.ToggleLike(ctx, postID, userID)
	if err != nil {
		span.SetError(err)
		return nil, "", err
	}
	if label == models.LabelLiked && post.UserID != userID {
		publish(ctx, s.events, post.UserID, notifications.EventPostLiked, map[string]interface{}{
			"post_id":     post.ID,
			"user_id":     userID,
			"likes_count": post.LikesCount,
		})
	}
	return post, label, nil
}

func (s *PostService) ReportPost(ctx context.Context, userID, postID uuid.UUID) (*models.Post, error) {
	return s.postRepo.Report(ctx, postID, userID)
}

// ListRecommended returns the caller's current recommendation set.
func (s *PostService) ListRecommended(ctx context.Context, userID uuid.UUID) ([]models.Post, error) {
	posts, err := s.recRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.markLiked(ctx, userID, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) markLiked(ctx context.Context, userID uuid.UUID, posts []models.Post) error {
	if userID == uuid.Nil || len(posts) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	liked, err := s.postRepo.LikedPostIDs(ctx, userID, ids)
	if err != nil {
		return err
	}
	for i := range posts {
		posts[i].IsLiked = liked[posts[i].ID]
	}
	return nil
}
