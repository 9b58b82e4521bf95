package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"nexify/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestConfigurePool_Defaults(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, configurePool(db, &config.Config{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 25, sqlDB.Stats().MaxOpenConnections)
}

func TestDSN(t *testing.T) {
	cfg := &config.Config{
		DBHost:     "db",
		DBPort:     "5432",
		DBUser:     "nexify",
		DBPassword: "secret",
		DBName:     "nexify",
	}
	assert.Equal(t, "host=db port=5432 user=nexify password=secret dbname=nexify sslmode=disable", DSN(cfg))

	cfg.DBSSLMode = "require"
	assert.Contains(t, DSN(cfg), "sslmode=require")
}

func TestRedactedDSN(t *testing.T) {
	cfg := &config.Config{DBHost: "db", DBPort: "5432", DBUser: "nexify", DBPassword: "secret", DBName: "nexify"}
	got := redactedDSN(cfg)
	assert.Equal(t, "postgres://nexify@db:5432/nexify", got)
	assert.NotContains(t, got, "secret")
}

func TestWaitForDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	assert.NoError(t, waitForDB(context.Background(), db, 3, time.Millisecond))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	assert.Error(t, waitForDB(context.Background(), db, 2, time.Millisecond))
}

func TestGormLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	base := NewGormLogger(slog.New(slog.NewJSONHandler(&buf, nil)), 50*time.Millisecond)
	query := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	tests := []struct {
		name  string
		level logger.LogLevel
		begin time.Time
		err   error
		want  string
	}{
		{"fast query below info is quiet", logger.Warn, time.Now(), nil, ""},
		{"fast query at info", logger.Info, time.Now(), nil, `"msg":"query"`},
		{"slow query", logger.Warn, time.Now().Add(-time.Second), nil, `"msg":"slow query"`},
		{"failure", logger.Warn, time.Now(), errors.New("boom"), `"error":"boom"`},
		{"not found is not a failure", logger.Warn, time.Now(), gorm.ErrRecordNotFound, ""},
		{"silent", logger.Silent, time.Now().Add(-time.Second), errors.New("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			base.LogMode(tt.level).Trace(ctx, tt.begin, query, tt.err)
			if tt.want == "" {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
