// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"nexify/internal/models"
	"nexify/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "Passw0rd!"

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Run and tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	hash  string
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A zero
// Options.RandomSeed picks a time-based seed.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// bcrypt is slow enough to dominate large seeds.
	hash := DemoPassword
	if !opts.SkipBcrypt {
		h, err := service.HashPassword(DemoPassword)
		if err != nil {
			return nil, fmt.Errorf("hash demo password: %w", err)
		}
		hash = h
	}

	return &Factory{db: db, opts: opts, faker: gofakeit.New(seed), hash: hash}, nil
}

// BuildUser constructs a user without persisting it. The index keeps emails
// unique within one run.
func (f *Factory) BuildUser(i int) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	email := fmt.Sprintf("%s.%s%d@%s", strings.ToLower(first), strings.ToLower(last), i, f.faker.DomainName())
	return models.NewUser(email, first, last, f.hash)
}

// BuildPost constructs a post with a creation time spread over MaxDays.
func (f *Factory) BuildPost(owner *models.User) *models.Post {
	description := f.faker.Sentence(f.faker.Number(3, 30))
	if len([]rune(description)) > models.MaxPostDescriptionLength {
		description = string([]rune(description)[:models.MaxPostDescriptionLength])
	}

	link := ""
	if f.faker.Number(1, 100) <= 30 {
		link = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())
	} else if f.faker.Number(1, 100) <= 15 {
		link = f.faker.URL()
	}

	post := models.NewPost(owner.ID, description, link)
	post.CreatedAt = f.pastTime()
	post.ModifiedAt = post.CreatedAt
	return post
}

// BuildComment constructs a comment by author on post.
func (f *Factory) BuildComment(author *models.User, post *models.Post) *models.PostComment {
	text := f.faker.Sentence(f.faker.Number(2, 12))
	if len([]rune(text)) > models.MaxCommentDescriptionLength {
		text = string([]rune(text)[:models.MaxCommentDescriptionLength])
	}
	comment := models.NewPostComment(post.ID, author.ID, text)
	comment.CreatedAt = f.after(post.CreatedAt)
	return comment
}

// BuildFollow constructs an edge; most are accepted.
func (f *Factory) BuildFollow(follower, following *models.User) *models.UserFollow {
	follow := models.NewUserFollow(follower.ID, following.ID)
	follow.Accepted = f.faker.Number(1, 100) <= 80
	return follow
}

// pick returns n distinct indexes in [0, size) excluding skip.
func (f *Factory) pick(size, n, skip int) []int {
	if n > size-1 {
		n = size - 1
	}
	seen := map[int]bool{skip: true}
	out := make([]int, 0, n)
	for len(out) < n {
		i := f.faker.Number(0, size-1)
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}

func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	now := time.Now().UTC()
	return f.faker.DateRange(now.AddDate(0, 0, -maxDays), now).UTC()
}

func (f *Factory) after(t time.Time) time.Time {
	now := time.Now().UTC()
	if !t.Before(now) {
		return now
	}
	return f.faker.DateRange(t, now).UTC()
}

// insert writes rows in batches, skipping associations.
func (f *Factory) insert(tx *gorm.DB, rows interface{}) error {
	if f.opts.DryRun {
		return nil
	}
	return tx.Omit(clause.Associations).CreateInBatches(rows, 500).Error
}
