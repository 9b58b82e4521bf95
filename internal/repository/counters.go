package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Counter names reported by reconciliation.
const (
	CounterLikes    = "likes_count"
	CounterComments = "comments_count"
	CounterReports  = "report_count"
	CounterReported = "is_reported"
)

// counterSources maps each denormalized post counter to the child table it
// mirrors.
var counterSources = []struct {
	column string
	table  string
}{
	{CounterLikes, "post_likes"},
	{CounterComments, "post_comments"},
	{CounterReports, "reported_posts"},
}

func incrementExpr(column string) interface{} {
	return gorm.Expr(column + " + 1")
}

// decrementExpr never lets a counter go below zero.
func decrementExpr(column string) interface{} {
	return gorm.Expr("CASE WHEN " + column + " > 0 THEN " + column + " - 1 ELSE 0 END")
}

// recountPosts rewrites counters that disagree with their child rows. A nil
// postIDs slice covers every post. Returns rows corrected per counter.
func recountPosts(tx *gorm.DB, postIDs []uuid.UUID) (map[string]int64, error) {
	fixed := make(map[string]int64, len(counterSources)+1)
	if postIDs != nil && len(postIDs) == 0 {
		return fixed, nil
	}

	scope := func(db *gorm.DB) *gorm.DB {
		if postIDs != nil {
			return db.Where("posts.id IN ?", postIDs)
		}
		return db
	}

	for _, src := range counterSources {
		count := "(SELECT COUNT(*) FROM " + src.table + " c WHERE c.post_id = posts.id AND c.is_active = ?)"
		res := tx.Table("posts").
			Scopes(scope).
			Where(src.column+" <> "+count, true).
			UpdateColumn(src.column, gorm.Expr(count, true))
		if res.Error != nil {
			return nil, res.Error
		}
		fixed[src.column] = res.RowsAffected
	}

	res := tx.Table("posts").
		Scopes(scope).
		Where("is_reported <> (report_count > 0)").
		UpdateColumn("is_reported", gorm.Expr("report_count > 0"))
	if res.Error != nil {
		return nil, res.Error
	}
	fixed[CounterReported] = res.RowsAffected

	return fixed, nil
}
