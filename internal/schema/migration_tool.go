package schema

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"sync"

	"github.com/phrazzld/functest/internal/dbconn"
	"github.com/phrazzld/functest/internal/platform/logger"
	"github.com/pressly/goose/v3"
)

// DefaultMigrationTable is the goose version table name.
const DefaultMigrationTable = "schema_migrations"

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// MigrationTool manages the schema with goose SQL migrations. Its metadata is
// one entry per migration file, so editing a migration changes the cache key.
type MigrationTool struct {
	DB        *sql.DB
	Engine    string
	FS        fs.FS
	Dir       string
	TableName string
	Logger    *slog.Logger
}

// NewMigrationTool creates a MigrationTool reading migrations from dir in fsys.
func NewMigrationTool(db *sql.DB, engine string, fsys fs.FS, dir string) *MigrationTool {
	return &MigrationTool{
		DB:        db,
		Engine:    engine,
		FS:        fsys,
		Dir:       dir,
		TableName: DefaultMigrationTable,
	}
}

// Metadata implements Tool.
func (t *MigrationTool) Metadata(context.Context) ([]Metadata, error) {
	files, err := fs.Glob(t.FS, path.Join(t.Dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations in %s: %w", t.Dir, err)
	}
	sort.Strings(files)

	metas := make([]Metadata, 0, len(files))
	for _, file := range files {
		content, err := fs.ReadFile(t.FS, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		metas = append(metas, Metadata{Name: path.Base(file), Definition: string(content)})
	}

	return Sort(metas), nil
}

// Drop implements Tool. Every applied migration is rolled back, then the
// version table itself is removed.
func (t *MigrationTool) Drop(ctx context.Context) error {
	err := t.withGoose(func() error {
		// Reset requires the version table.
		if _, err := goose.EnsureDBVersionContext(ctx, t.DB); err != nil {
			return err
		}
		return goose.ResetContext(ctx, t.DB, t.Dir)
	})
	if err != nil {
		return &OperationError{Op: "drop", Object: t.Dir, Err: err}
	}

	stmt := "DROP TABLE IF EXISTS " + QuoteIdentifier(t.Engine, t.tableName())
	if _, err := t.DB.ExecContext(ctx, stmt); err != nil {
		return &OperationError{Op: "drop", Object: t.tableName(), Err: err}
	}
	return nil
}

// Create implements Tool.
func (t *MigrationTool) Create(ctx context.Context) error {
	err := t.withGoose(func() error {
		return goose.UpContext(ctx, t.DB, t.Dir)
	})
	if err != nil {
		return &OperationError{Op: "create", Object: t.Dir, Err: err}
	}
	return nil
}

func (t *MigrationTool) withGoose(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dialect, err := gooseDialect(t.Engine)
	if err != nil {
		return err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	goose.SetLogger(&gooseLogger{logger: logger.OrDefault(t.Logger)})
	goose.SetTableName(t.tableName())
	goose.SetBaseFS(t.FS)
	defer goose.SetBaseFS(nil)

	return fn()
}

func (t *MigrationTool) tableName() string {
	if t.TableName == "" {
		return DefaultMigrationTable
	}
	return t.TableName
}

func gooseDialect(engine string) (string, error) {
	switch engine {
	case dbconn.DriverPgsql:
		return "postgres", nil
	case dbconn.DriverMysql:
		return "mysql", nil
	case dbconn.DriverSqlite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("%w: %q", dbconn.ErrUnsupportedDriver, engine)
	}
}

// gooseLogger routes goose output to slog at debug level.
type gooseLogger struct {
	logger *slog.Logger
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "goose")
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "goose")
}
