package database

import "nexify/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// The recommendation join table is created through PostRecommendation's
// many2many relation.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.PostComment{},
		&models.PostLike{},
		&models.ReportedPost{},
		&models.UserFollow{},
		&models.PostRecommendation{},
		&models.File{},
	}
}
