// Package sqlite opens the SQLite-backed store and migrates its schema.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ahrav/go-gavel-ratings/infrastructure/persistence/sqlite/model"
)

// Config selects the database to open.
type Config struct {
	// Driver must be "sqlite" or "sqlite3".
	Driver string
	// DSN is a file path, a "file:" URI or ":memory:".
	DSN string
}

// Open connects to the database described by cfg and migrates the schema.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("check context: %w", err)
	}

	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := ensureSQLiteDirectory(cfg.DSN); err != nil {
		return nil, fmt.Errorf("ensure sqlite directory: %w", err)
	}

	db, err := gorm.Open(gormsqlite.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// SQLite permits one writer; a single connection keeps transactions
	// from failing with SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("driver", "sqlite").Str("dsn", cfg.DSN).Msg("database opened")
	return db, nil
}

// Migrate creates or updates the faculty and reviews tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureSQLiteDirectory(dsn string) error {
	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" {
		return nil
	}

	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = candidate[len("file:"):]
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite directory %q: %w", dir, err)
	}
	return nil
}
