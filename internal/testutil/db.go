// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"testing"

	"nexify/internal/database"
	"nexify/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens an isolated in-memory database with the full schema.
// A single connection keeps every statement on the same in-memory database.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts an active regular user.
func CreateUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.NewUser(email, "Test", "User", "hash")
	require.NoError(t, db.Omit(clause.Associations).Create(user).Error)
	return user
}

// CreateAdmin inserts an active staff user.
func CreateAdmin(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.NewUser(email, "Admin", "User", "hash")
	user.IsStaff = true
	require.NoError(t, db.Omit(clause.Associations).Create(user).Error)
	return user
}

// CreatePost inserts an active post owned by owner.
func CreatePost(t *testing.T, db *gorm.DB, owner *models.User, description string) *models.Post {
	t.Helper()
	post := models.NewPost(owner.ID, description, "")
	require.NoError(t, db.Omit(clause.Associations).Create(post).Error)
	post.User = *owner
	return post
}

// ReloadPost reads a post straight from the database, bypassing any cache.
func ReloadPost(t *testing.T, db *gorm.DB, id interface{}) *models.Post {
	t.Helper()
	var post models.Post
	require.NoError(t, db.Where("id = ?", id).First(&post).Error)
	return &post
}
