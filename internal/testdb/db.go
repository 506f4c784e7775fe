package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/functest/internal/ciutil"
	"github.com/phrazzld/functest/internal/dbconn"
	"github.com/phrazzld/functest/internal/platform/logger"
	"github.com/phrazzld/functest/internal/schema"
)

// TestTimeout bounds connection setup.
const TestTimeout = 10 * time.Second

// URL returns the configured test database URL, or "".
func URL() string {
	return ciutil.DatabaseURLFromEnv(nil)
}

// ShouldSkip reports whether no test database is configured.
func ShouldSkip() bool {
	return URL() == ""
}

// DriverFor infers the engine of a database URL: postgres:// and
// postgresql:// are pgsql, mysql:// is mysql, anything else is treated as
// a SQLite path.
func DriverFor(url string) string {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return dbconn.DriverPgsql
	case strings.HasPrefix(url, "mysql://"):
		return dbconn.DriverMysql
	default:
		return dbconn.DriverSqlite
	}
}

// Open opens a connection and closes it when the test ends.
func Open(t testing.TB, driverName, dsn string) *dbconn.Connection {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	conn, err := dbconn.Open(ctx, driverName, dsn)
	require.NoError(t, err, "failed to open %s test database", driverName)
	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
	})
	return conn
}

// OpenSqlite opens a fresh SQLite database in a temporary directory.
func OpenSqlite(t testing.TB) *dbconn.Connection {
	t.Helper()
	return Open(t, dbconn.DriverSqlite, filepath.Join(t.TempDir(), "test.db"))
}

// OpenFromEnv opens the configured test database, creating it first when
// the server allows. The test is skipped when no database is configured.
func OpenFromEnv(t testing.TB) *dbconn.Connection {
	t.Helper()

	url := URL()
	if url == "" {
		t.Skip("no test database configured, set " + ciutil.EnvFunctestTestDBURL)
	}
	driver := DriverFor(url)
	dsn := url
	if driver == dbconn.DriverMysql {
		dsn = strings.TrimPrefix(url, "mysql://")
	}

	params, err := dbconn.ParseDSN(driver, dsn)
	require.NoError(t, err, "invalid test database URL %s", ciutil.MaskDatabaseURL(url))

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	dbconn.NewBootstrapper(logger.Discard()).CreateDatabase(ctx, params)

	return Open(t, driver, dsn)
}

// WithTx runs fn in a transaction that is rolled back afterwards.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "failed to begin transaction")

	defer func() {
		err := tx.Rollback()
		// sql.ErrTxDone is expected if fn committed or rolled back itself.
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("warning: failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// ApplyMigrations applies the goose migrations in dir of fsys.
func ApplyMigrations(t testing.TB, conn *dbconn.Connection, fsys fs.FS, dir string) *schema.MigrationTool {
	t.Helper()

	tool := schema.NewMigrationTool(conn.DB, conn.Engine(), fsys, dir)
	tool.Logger = logger.Discard()
	require.NoError(t, tool.Create(context.Background()), "failed to apply migrations")
	return tool
}
