package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approvals/migrations"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadMigrations_Ordering(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":  {Data: []byte("SELECT 1")},
		"m/002_second.sql": {Data: []byte("SELECT 2")},
		"m/README.md":      {Data: []byte("ignored")},
	}

	got, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Version)
	assert.Equal(t, "second", got[0].Name)
	assert.Equal(t, 10, got[1].Version)
}

func TestLoadMigrations_BadFilename(t *testing.T) {
	fsys := fstest.MapFS{"m/initial.sql": {Data: []byte("SELECT 1")}}

	_, err := LoadMigrations(fsys, "m")
	assert.Error(t, err)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, m.RunMigrations(ctx, migrations.FS, migrations.Dir(db.Driver())))
	require.NoError(t, m.RunMigrations(ctx, migrations.FS, migrations.Dir(db.Driver())))

	var applied int
	require.NoError(t, db.GetContext(ctx, &applied, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 2, applied)

	var tables int
	require.NoError(t, db.GetContext(ctx, &tables,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('subjects', 'approval_records')"))
	assert.Equal(t, 2, tables)
}

func TestRunMigrations_FailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())
	ctx := context.Background()

	fsys := fstest.MapFS{
		"m/001_ok.sql":     {Data: []byte("CREATE TABLE ok_table (id INTEGER)")},
		"m/002_broken.sql": {Data: []byte("CREATE TABLE broken (id INTEGER); NOT VALID SQL")},
	}

	err := m.RunMigrations(ctx, fsys, "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply migration 2")

	var versions []int
	require.NoError(t, db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"))
	assert.Equal(t, []int{1}, versions)
}

func TestDBQuery_GetQuery(t *testing.T) {
	q := DBQuery{ID: "Q", Query: "default", MySQLQuery: "mysql"}

	assert.Equal(t, "default", q.GetQuery(DriverSQLite))
	assert.Equal(t, "mysql", q.GetQuery(DriverMySQL))

	q.SQLiteQuery = "sqlite"
	assert.Equal(t, "sqlite", q.GetQuery("sqlite"))
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(Config{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}
