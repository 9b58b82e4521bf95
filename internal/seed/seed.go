package seed

import (
	"context"
	"fmt"

	"nexify/internal/models"
	"nexify/internal/observability"
	"nexify/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	Users           int
	PostsPerUser    int
	LikesPerPost    int
	CommentsPerPost int
	FollowsPerUser  int
	MaxDays         int
	RandomSeed      int64
	SkipBcrypt      bool
	DryRun          bool
}

// DefaultOptions is a small but lively demo network.
func DefaultOptions() Options {
	return Options{
		Users:           25,
		PostsPerUser:    4,
		LikesPerPost:    5,
		CommentsPerPost: 2,
		FollowsPerUser:  6,
		MaxDays:         60,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Posts    int
	Likes    int
	Comments int
	Follows  int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d posts, %d likes, %d comments, %d follows",
		s.Users, s.Posts, s.Likes, s.Comments, s.Follows)
}

// Run generates a social graph in one transaction and then recomputes the
// denormalized post counters from the inserted rows.
func Run(ctx context.Context, db *gorm.DB, opts Options) (Summary, error) {
	var summary Summary
	if opts.Users < 2 {
		return summary, fmt.Errorf("seed needs at least 2 users, got %d", opts.Users)
	}

	f, err := NewFactory(db, opts)
	if err != nil {
		return summary, err
	}

	users := make([]*models.User, opts.Users)
	for i := range users {
		users[i] = f.BuildUser(i)
	}

	var posts []*models.Post
	for _, u := range users {
		for j := 0; j < opts.PostsPerUser; j++ {
			posts = append(posts, f.BuildPost(u))
		}
	}

	var likes []*models.PostLike
	var comments []*models.PostComment
	for _, p := range posts {
		owner := indexOf(users, p.UserID)
		for _, i := range f.pick(len(users), opts.LikesPerPost, owner) {
			likes = append(likes, models.NewPostLike(p.ID, users[i].ID))
		}
		for _, i := range f.pick(len(users), opts.CommentsPerPost, -1) {
			comments = append(comments, f.BuildComment(users[i], p))
		}
	}

	var follows []*models.UserFollow
	for i, u := range users {
		for _, j := range f.pick(len(users), opts.FollowsPerUser, i) {
			follows = append(follows, f.BuildFollow(u, users[j]))
		}
	}

	summary = Summary{
		Users:    len(users),
		Posts:    len(posts),
		Likes:    len(likes),
		Comments: len(comments),
		Follows:  len(follows),
	}
	if opts.DryRun {
		observability.GlobalLogger.InfoContext(ctx, "seed dry run", "summary", summary.String())
		return summary, nil
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rows := range []interface{}{users, posts, likes, comments, follows} {
			if err := f.insert(tx, rows); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("insert seed data: %w", err)
	}

	if _, err := repository.NewPostRepository(db).ReconcileCounters(ctx); err != nil {
		return summary, fmt.Errorf("reconcile seeded counters: %w", err)
	}

	observability.GlobalLogger.InfoContext(ctx, "seed completed", "summary", summary.String())
	return summary, nil
}

// IfEmpty seeds only when there are no users yet. It reports whether it ran.
func IfEmpty(ctx context.Context, db *gorm.DB, opts Options) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if _, err := Run(ctx, db, opts); err != nil {
		return false, err
	}
	return true, nil
}

// Clear deletes all social data, children first.
func Clear(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tables := []interface{}{
			&models.PostRecommendationItem{},
			&models.PostRecommendation{},
			&models.ReportedPost{},
			&models.PostLike{},
			&models.PostComment{},
			&models.UserFollow{},
			&models.File{},
			&models.Post{},
			&models.User{},
		}
		for _, t := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func indexOf(users []*models.User, id uuid.UUID) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}
