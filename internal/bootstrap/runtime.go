// Package bootstrap wires the process-wide runtime: database, Redis and the
// development root account.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nexify/internal/cache"
	"nexify/internal/config"
	"nexify/internal/database"
	"nexify/internal/middleware"
	"nexify/internal/models"
	"nexify/internal/seed"
	"nexify/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultRootEmail = "root@nexify.local"

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty database with demo content.
	SeedDemo bool
}

// InitRuntime connects to DB and Redis, applies the schema and optionally
// seeds demo data.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return nil, nil, fmt.Errorf("schema setup failed: %w", err)
	}

	// nil when Redis is unreachable
	r := cache.InitRedis(ctx, cfg.RedisURL)

	if err := EnsureDevRootAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedDemo {
		if _, err := seed.IfEmpty(ctx, db, seed.DefaultOptions()); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDevRootAdmin creates or promotes the development superuser. It only
// acts in development with DEV_BOOTSTRAP_ROOT set.
func EnsureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	email := models.NormalizeEmail(cfg.DevRootEmail)
	if email == "" {
		email = defaultRootEmail
	}
	if cfg.DevRootPassword == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := service.HashPassword(cfg.DevRootPassword)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("LOWER(email) = ?", email).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root := models.NewUser(email, "Root", "Admin", hashedPassword)
			root.IsStaff = true
			root.IsSuperuser = true
			return tx.Omit(clause.Associations).Create(root).Error
		case findErr != nil:
			return findErr
		default:
			updates := map[string]any{"is_staff": true, "is_superuser": true, "is_active": true}
			if cfg.DevRootForceReset {
				updates["password"] = hashedPassword
			}
			return tx.Model(&models.User{}).Where("id = ?", root.ID).Updates(updates).Error
		}
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development root admin ensured", "email", email)
	return nil
}
