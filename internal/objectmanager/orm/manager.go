// Package orm is the relational object manager: a database handle with a
// unit of work of queued statements, a schema tool and connection
// parameters for dump and restore tools.
package orm

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/functest/internal/dbconn"
	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/platform/logger"
	"github.com/phrazzld/functest/internal/schema"
)

// Statement is a queued write.
type Statement struct {
	Query string
	Args  []any
}

// Manager queues statements with Persist and writes them in one
// transaction on Flush.
type Manager struct {
	conn   *dbconn.Connection
	schema schema.Tool
	logger *slog.Logger

	mu      sync.Mutex
	pending []Statement
}

var _ objectmanager.RelationalManager = (*Manager)(nil)

// New creates a Manager over conn. tool may be nil for schema-less use.
func New(conn *dbconn.Connection, tool schema.Tool, log *slog.Logger) *Manager {
	return &Manager{conn: conn, schema: tool, logger: logger.OrDefault(log)}
}

// Kind implements objectmanager.Manager.
func (m *Manager) Kind() objectmanager.Kind { return objectmanager.KindORM }

// DB returns the underlying handle.
func (m *Manager) DB() *sql.DB { return m.conn.DB }

// Engine returns the engine name (pgsql, mysql, sqlite).
func (m *Manager) Engine() string { return m.conn.Engine() }

// Schema returns the schema tool, or nil.
func (m *Manager) Schema() schema.Tool { return m.schema }

// ConnectionParams returns the parameters of the live connection.
func (m *Manager) ConnectionParams() (dbconn.Params, error) {
	return m.conn.Params()
}

// Persist queues a statement until the next Flush.
func (m *Manager) Persist(query string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, Statement{Query: query, Args: args})
}

// Pending returns the number of queued statements.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Flush implements objectmanager.Manager.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	return RunInTransaction(ctx, m.conn.DB, m.logger, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range pending {
			if _, err := tx.ExecContext(ctx, stmt.Query, stmt.Args...); err != nil {
				return fmt.Errorf("flush %q: %w", stmt.Query, err)
			}
		}
		return nil
	})
}

// Clear implements objectmanager.Manager.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
}

// ExecContext runs a statement immediately.
func (m *Manager) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return m.conn.DB.ExecContext(ctx, query, args...)
}

// QueryRowContext runs a query returning at most one row.
func (m *Manager) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return m.conn.DB.QueryRowContext(ctx, query, args...)
}

// tableLister is implemented by schema tools that know their tables.
type tableLister interface {
	Tables() []string
}

// Tables implements objectmanager.RelationalManager. Tables known to the
// schema tool are returned in registration order; otherwise the catalog of
// the current database is read.
func (m *Manager) Tables(ctx context.Context) ([]string, error) {
	if lister, ok := m.schema.(tableLister); ok {
		return lister.Tables(), nil
	}
	return CatalogTables(ctx, m.conn.DB, m.Engine())
}

// CatalogTables lists the user tables of the current database, excluding
// the migration version table.
func CatalogTables(ctx context.Context, db *sql.DB, engine string) ([]string, error) {
	var query string
	switch engine {
	case dbconn.DriverPgsql:
		query = "SELECT tablename FROM pg_tables WHERE schemaname = current_schema() ORDER BY tablename"
	case dbconn.DriverMysql:
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name"
	case dbconn.DriverSqlite:
		query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	default:
		return nil, fmt.Errorf("%w: %q", dbconn.ErrUnsupportedDriver, engine)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read table catalog: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if name == schema.DefaultMigrationTable {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
