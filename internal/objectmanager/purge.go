package objectmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/phrazzld/functest/internal/dbconn"
	"github.com/phrazzld/functest/internal/schema"
)

// SQLPurger empties every table of a relational manager. Tables are purged
// in reverse dependency order.
type SQLPurger struct {
	Manager RelationalManager
	Mode    PurgeMode
}

// Purge implements Purger.
func (p *SQLPurger) Purge(ctx context.Context) error {
	tables, err := p.Manager.Tables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	if len(tables) == 0 {
		return nil
	}

	engine := p.Manager.Engine()
	conn, err := p.Manager.DB().Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	batch := deleteBatch(engine, tables)
	if p.Mode == PurgeModeTruncate {
		batch, err = truncateBatch(ctx, conn, engine, tables)
		if err != nil {
			return err
		}
	}
	return batch.exec(ctx, conn)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// purgeBatch is a list of purge statements. When before succeeds, after
// runs on the same connection whatever happens to stmts.
type purgeBatch struct {
	before string
	stmts  []string
	after  string
}

func (b purgeBatch) exec(ctx context.Context, ex execer) (err error) {
	if b.before != "" {
		if _, err := ex.ExecContext(ctx, b.before); err != nil {
			return fmt.Errorf("purge statement %q failed: %w", b.before, err)
		}
	}
	if b.after != "" {
		defer func() {
			if _, afterErr := ex.ExecContext(context.WithoutCancel(ctx), b.after); afterErr != nil {
				err = errors.Join(err, fmt.Errorf("purge statement %q failed: %w", b.after, afterErr))
			}
		}()
	}

	for _, stmt := range b.stmts {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge statement %q failed: %w", stmt, err)
		}
	}
	return nil
}

func reversedQuoted(engine string, tables []string) []string {
	quoted := make([]string, 0, len(tables))
	for i := len(tables) - 1; i >= 0; i-- {
		quoted = append(quoted, schema.QuoteIdentifier(engine, tables[i]))
	}
	return quoted
}

func deleteBatch(engine string, tables []string) purgeBatch {
	var batch purgeBatch
	for _, q := range reversedQuoted(engine, tables) {
		batch.stmts = append(batch.stmts, "DELETE FROM "+q)
	}
	return batch
}

// mysqlTruncateBatch disables foreign key checks for the session while
// truncating.
func mysqlTruncateBatch(tables []string) purgeBatch {
	batch := purgeBatch{
		before: "SET FOREIGN_KEY_CHECKS = 0",
		after:  "SET FOREIGN_KEY_CHECKS = 1",
	}
	for _, q := range reversedQuoted(dbconn.DriverMysql, tables) {
		batch.stmts = append(batch.stmts, "TRUNCATE TABLE "+q)
	}
	return batch
}

func truncateBatch(ctx context.Context, conn *sql.Conn, engine string, tables []string) (purgeBatch, error) {
	switch engine {
	case dbconn.DriverPgsql:
		quoted := reversedQuoted(engine, tables)
		return purgeBatch{stmts: []string{"TRUNCATE TABLE " + strings.Join(quoted, ", ") + " RESTART IDENTITY CASCADE"}}, nil
	case dbconn.DriverMysql:
		return mysqlTruncateBatch(tables), nil
	default:
		batch := deleteBatch(engine, tables)

		var n int
		err := conn.QueryRowContext(ctx,
			"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'").Scan(&n)
		if err != nil {
			return purgeBatch{}, fmt.Errorf("failed to inspect sqlite_sequence: %w", err)
		}
		if n > 0 {
			names := make([]string, len(tables))
			for i, t := range tables {
				names[i] = "'" + strings.ReplaceAll(t, "'", "''") + "'"
			}
			batch.stmts = append(batch.stmts, "DELETE FROM sqlite_sequence WHERE name IN ("+strings.Join(names, ", ")+")")
		}
		return batch, nil
	}
}

// DocumentPurger drops every collection of a document store.
type DocumentPurger struct {
	Manager DocumentManager
}

// Purge implements Purger.
func (p *DocumentPurger) Purge(ctx context.Context) error {
	collections, err := p.Manager.Collections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if err := p.Manager.DropCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
	}
	return nil
}

// ContentPurger deletes every blob under the repository prefix.
type ContentPurger struct {
	Manager ContentManager
}

// Purge implements Purger.
func (p *ContentPurger) Purge(ctx context.Context) error {
	store := p.Manager.Store()
	infos, err := store.List(ctx, p.Manager.Prefix())
	if err != nil {
		return fmt.Errorf("failed to list content: %w", err)
	}
	for _, info := range infos {
		if err := store.Delete(ctx, info.Key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", info.Key, err)
		}
	}
	return nil
}
