package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gavel-ratings/infrastructure/persistence/sqlite/model"
	"github.com/ahrav/go-gavel-ratings/internal/logging"
)

// TestOpenCreatesDirectoryAndSchema opens a database in a nested directory
// that does not exist yet.
func TestOpenCreatesDirectoryAndSchema(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "dir", "ratings.db")

	db, err := Open(context.Background(), Config{Driver: "sqlite", DSN: dsn}, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.True(t, db.Migrator().HasTable(&model.Faculty{}))
	assert.True(t, db.Migrator().HasTable(&model.Review{}))
	assert.FileExists(t, dsn)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "postgres", DSN: "x"}, logging.Nop())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestEnsureSQLiteDirectory(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, ensureSQLiteDirectory("file:"+filepath.Join(base, "a", "db.sqlite")+"?_pragma=busy_timeout(5000)"))
	assert.DirExists(t, filepath.Join(base, "a"))
	require.NoError(t, ensureSQLiteDirectory(":memory:"))
	require.NoError(t, ensureSQLiteDirectory(""))
}
