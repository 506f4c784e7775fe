package schema

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/phrazzld/functest/internal/dbconn"
)

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLTool manages tables from registered DDL. Objects are created in
// registration order and dropped in reverse, so register referenced tables
// first.
type SQLTool struct {
	db     Execer
	engine string
	metas  []Metadata
}

// NewSQLTool creates a SQLTool for the given engine (pgsql, mysql, sqlite).
func NewSQLTool(db Execer, engine string, metas ...Metadata) *SQLTool {
	return &SQLTool{db: db, engine: engine, metas: metas}
}

// Register adds schema objects after the existing ones.
func (t *SQLTool) Register(metas ...Metadata) {
	t.metas = append(t.metas, metas...)
}

// Tables returns the managed table names in registration order.
func (t *SQLTool) Tables() []string {
	tables := make([]string, 0, len(t.metas))
	for _, m := range t.metas {
		if m.Table != "" {
			tables = append(tables, m.Table)
		}
	}
	return tables
}

// Metadata implements Tool.
func (t *SQLTool) Metadata(context.Context) ([]Metadata, error) {
	return Sort(t.metas), nil
}

// Drop implements Tool.
func (t *SQLTool) Drop(ctx context.Context) error {
	for i := len(t.metas) - 1; i >= 0; i-- {
		m := t.metas[i]
		if m.Table == "" {
			continue
		}

		stmt := "DROP TABLE IF EXISTS " + QuoteIdentifier(t.engine, m.Table)
		if t.engine == dbconn.DriverPgsql {
			stmt += " CASCADE"
		}
		if _, err := t.db.ExecContext(ctx, stmt); err != nil {
			return &OperationError{Op: "drop", Object: m.Name, Err: err}
		}
	}
	return nil
}

// Create implements Tool.
func (t *SQLTool) Create(ctx context.Context) error {
	for _, m := range t.metas {
		if strings.TrimSpace(m.Definition) == "" {
			continue
		}
		if _, err := t.db.ExecContext(ctx, m.Definition); err != nil {
			return &OperationError{Op: "create", Object: m.Name, Err: err}
		}
	}
	return nil
}

// QuoteIdentifier quotes a possibly schema-qualified identifier for engine.
func QuoteIdentifier(engine, name string) string {
	switch engine {
	case dbconn.DriverPgsql:
		return pgx.Identifier(strings.Split(name, ".")).Sanitize()
	case dbconn.DriverMysql:
		parts := strings.Split(name, ".")
		for i, p := range parts {
			parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
		}
		return strings.Join(parts, ".")
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}
