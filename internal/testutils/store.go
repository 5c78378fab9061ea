package testutils

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ahrav/go-gavel-ratings/infrastructure/persistence/sqlite"
	"github.com/ahrav/go-gavel-ratings/infrastructure/persistence/sqlite/repository"
	"github.com/ahrav/go-gavel-ratings/infrastructure/persistence/sqlite/uow"
)

// TestStore is a migrated SQLite database in a temporary directory together
// with the repositories and unit of work built on it.
type TestStore struct {
	DB         *gorm.DB
	Faculty    *repository.FacultyRepository
	Reviews    *repository.ReviewRepository
	UnitOfWork *uow.UnitOfWork
}

// NewTestStore opens a fresh store that is closed when t finishes.
func NewTestStore(t testing.TB) *TestStore {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ratings.db")
	db, err := sqlite.Open(context.Background(), sqlite.Config{Driver: "sqlite", DSN: dsn}, zerolog.Nop())
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { _ = sqlite.Close(db) })

	return &TestStore{
		DB:         db,
		Faculty:    repository.NewFacultyRepository(db),
		Reviews:    repository.NewReviewRepository(db),
		UnitOfWork: uow.NewUnitOfWork(db),
	}
}
