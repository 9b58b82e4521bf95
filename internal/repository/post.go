package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"nexify/internal/cache"
	"nexify/internal/models"
	"nexify/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Post list orderings accepted by List.
const (
	SortNewest     = "-created_at"
	SortOldest     = "created_at"
	SortMostLiked  = "-likes_count"
	SortLeastLiked = "likes_count"
)

var postOrderings = map[string]string{
	SortNewest:     "posts.created_at DESC",
	SortOldest:     "posts.created_at ASC",
	SortMostLiked:  "posts.likes_count DESC, posts.created_at DESC",
	SortLeastLiked: "posts.likes_count ASC, posts.created_at DESC",
}

// ValidPostSort reports whether sort is an accepted ordering (empty means newest first).
func ValidPostSort(sort string) bool {
	if sort == "" {
		return true
	}
	_, ok := postOrderings[sort]
	return ok
}

// PostFilter narrows and orders the post feed.
type PostFilter struct {
	Search string
	SortBy string
	Limit  int
	Offset int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post, file *models.File) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]models.Post, int64, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
	ToggleLike(ctx context.Context, postID, userID uuid.UUID) (*models.Post, string, error)
	IsLiked(ctx context.Context, postID, userID uuid.UUID) (bool, error)
	LikedPostIDs(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	Report(ctx context.Context, postID, userID uuid.UUID) (*models.Post, error)
	ListReported(ctx context.Context, limit, offset int) ([]models.Post, int64, error)
	ReconcileCounters(ctx context.Context) (map[string]int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post, file *models.File) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if file != nil {
			if err := tx.Omit(clause.Associations).Create(file).Error; err != nil {
				return err
			}
			post.Link = file.URL
		}
		return tx.Omit(clause.Associations).Create(post).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "create")
		return internal(err)
	}
	r.log.LogCreate(ctx, slog.String("post_id", post.ID.String()), slog.String("user_id", post.UserID.String()))
	return nil
}

// GetByID looks a post up among active posts only. The cached copy holds
// the post row alone; the owner is always read fresh.
func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		return r.db.WithContext(ctx).
			Scopes(active("posts")).
			Where("posts.id = ?", id).
			First(&post).Error
	})
	if err == nil {
		post.User = models.User{}
		err = r.db.WithContext(ctx).Where("id = ?", post.UserID).First(&post.User).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPostNotFound()
		}
		return nil, internal(err)
	}
	return &post, nil
}

// List returns active posts in feed order, newest first unless SortBy says otherwise.
func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]models.Post, int64, error) {
	defer observability.TrackQuery("list", "posts")()

	limit, offset := clampPage(filter.Limit, filter.Offset)
	order, ok := postOrderings[filter.SortBy]
	if !ok {
		order = postOrderings[SortNewest]
	}

	query := r.db.WithContext(ctx).Model(&models.Post{}).Scopes(active("posts"))
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + term + "%"
		query = query.
			Joins("JOIN users ON users.id = posts.user_id").
			Where("LOWER(posts.description) LIKE ? OR LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ?",
				like, like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, internal(err)
	}

	var posts []models.Post
	if err := query.
		Select("posts.*").
		Preload("User").
		Order(order).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, 0, internal(err)
	}
	return posts, total, nil
}

// ListByIDs returns the active posts among ids, newest first.
func (r *postRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Post, error) {
	posts, err := activePostsByIDs(r.db.WithContext(ctx), ids)
	if err != nil {
		return nil, internal(err)
	}
	return posts, nil
}

// activePostsByIDs loads the active posts among ids with their owners, newest first.
func activePostsByIDs(db *gorm.DB, ids []uuid.UUID) ([]models.Post, error) {
	posts := []models.Post{}
	if len(ids) == 0 {
		return posts, nil
	}
	err := db.Scopes(active("posts")).
		Where("posts.id IN ?", ids).
		Preload("User").
		Order("posts.created_at DESC").
		Find(&posts).Error
	return posts, err
}

// Update writes the caller-editable columns only.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).
		Model(post).
		Select("description", "link", "modified_at").
		Updates(post).Error
	if err != nil {
		r.log.LogError(ctx, err, "update")
		return internal(err)
	}
	cache.InvalidatePost(ctx, post.ID)
	r.log.LogUpdate(ctx, slog.String("post_id", post.ID.String()))
	return nil
}

// Delete hard-deletes a post together with every row that references it.
func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deletePosts(tx, []uuid.UUID{id})
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return internal(err)
	}
	cache.InvalidatePost(ctx, id)
	r.log.LogDelete(ctx, slog.String("post_id", id.String()))
	return nil
}

// deletePosts removes posts and their dependents inside tx.
func deletePosts(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	dependents := []interface{}{
		&models.PostRecommendationItem{},
		&models.PostLike{},
		&models.PostComment{},
		&models.ReportedPost{},
	}
	for _, model := range dependents {
		if err := tx.Where("post_id IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", ids).Delete(&models.Post{}).Error
}

// lockActivePost loads an active post for update within tx.
func lockActivePost(tx *gorm.DB, postID uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_active = ?", postID, true).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrPostNotFound()
	}
	return &post, err
}

// ToggleLike flips the caller's like on a post and keeps likes_count in step,
// all in one transaction. A concurrent insert that wins the unique key is
// reported as "liked" without counting twice.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID uuid.UUID) (*models.Post, string, error) {
	defer observability.TrackQuery("toggle_like", "post_likes")()

	var (
		post  *models.Post
		label string
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if _, err = lockActivePost(tx, postID); err != nil {
			return err
		}

		var existing []models.PostLike
		if err = tx.Where("post_id = ? AND user_id = ?", postID, userID).
			Limit(1).
			Find(&existing).Error; err != nil {
			return err
		}

		current := models.LikeAbsent
		if len(existing) > 0 {
			current = models.LikePresent
		}

		var next models.LikeState
		next, label = current.Toggle()

		switch next {
		case models.LikePresent:
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Omit(clause.Associations).
				Create(models.NewPostLike(postID, userID))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				observability.UniqueConflicts.WithLabelValues("post_likes").Inc()
				break
			}
			if err = tx.Model(&models.Post{}).Where("id = ?", postID).
				UpdateColumn("likes_count", incrementExpr("likes_count")).Error; err != nil {
				return err
			}
		case models.LikeAbsent:
			res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				if err = tx.Model(&models.Post{}).Where("id = ?", postID).
					UpdateColumn("likes_count", decrementExpr("likes_count")).Error; err != nil {
					return err
				}
			}
		}

		post = &models.Post{}
		return tx.Preload("User").Where("id = ?", postID).First(post).Error
	})
	if err != nil {
		return nil, "", internal(err)
	}

	post.IsLiked = label == models.LabelLiked
	cache.InvalidatePost(ctx, postID)
	observability.ToggleOutcomes.WithLabelValues("like", label).Inc()
	return post, label, nil
}

func (r *postRepository) IsLiked(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PostLike{}).
		Where("post_id = ? AND user_id = ? AND is_active = ?", postID, userID, true).
		Count(&count).Error; err != nil {
		return false, internal(err)
	}
	return count > 0, nil
}

func (r *postRepository) LikedPostIDs(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	liked := make(map[uuid.UUID]bool, len(postIDs))
	if len(postIDs) == 0 {
		return liked, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.PostLike{}).
		Where("user_id = ? AND post_id IN ? AND is_active = ?", userID, postIDs, true).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, internal(err)
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

// Report records the caller's report once, flags the post and bumps
// report_count in one transaction.
func (r *postRepository) Report(ctx context.Context, postID, userID uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockActivePost(tx, postID); err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Omit(clause.Associations).
			Create(models.NewReportedPost(postID, userID))
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return models.ErrPostAlreadyReported()
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			observability.UniqueConflicts.WithLabelValues("reported_posts").Inc()
			return models.ErrPostAlreadyReported()
		}

		if err := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumns(map[string]interface{}{
				"is_reported":  true,
				"report_count": incrementExpr("report_count"),
			}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", postID).First(&post).Error
	})
	if err != nil {
		return nil, internal(err)
	}
	cache.InvalidatePost(ctx, postID)
	return &post, nil
}

// ListReported returns active reported posts, most reported first.
func (r *postRepository) ListReported(ctx context.Context, limit, offset int) ([]models.Post, int64, error) {
	limit, offset = clampPage(limit, offset)
	query := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Scopes(active("posts")).
		Where("posts.is_reported = ? AND posts.report_count > 0", true)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, internal(err)
	}

	var posts []models.Post
	if err := query.
		Preload("User").
		Order("posts.report_count DESC, posts.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, 0, internal(err)
	}
	return posts, total, nil
}

// ReconcileCounters recomputes every post's counters from its child rows.
func (r *postRepository) ReconcileCounters(ctx context.Context) (map[string]int64, error) {
	var fixed map[string]int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		fixed, err = recountPosts(tx, nil)
		return err
	})
	if err != nil {
		r.log.LogError(ctx, err, "reconcile")
		return nil, internal(err)
	}
	return fixed, nil
}
