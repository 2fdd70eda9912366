package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approvals/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/approvals/migrations"
	"github.com/garyjia/approvals/pkg/database"
)

func newTestDB(t *testing.T) *sqldb.DB {
	t.Helper()
	logger := zap.NewNop()

	conn, err := database.New(database.Config{
		Driver:       database.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "approvals.db"),
		MaxOpenConns: 8,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	err = database.NewMigrator(conn, logger).RunMigrations(context.Background(), migrations.FS, migrations.Dir(conn.Driver()))
	require.NoError(t, err)

	return sqldb.NewDB(conn, logger)
}

// stepClock returns a clock that advances one second per call
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func strPtr(s string) *string { return &s }
