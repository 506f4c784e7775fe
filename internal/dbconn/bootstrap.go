package dbconn

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/phrazzld/functest/internal/platform/logger"
	"github.com/phrazzld/functest/internal/redact"
)

// Bootstrapper prepares the test database before fixtures load. Failures are
// logged at debug level and otherwise ignored: the database usually exists
// already, and a missing extension surfaces later as a schema error.
type Bootstrapper struct {
	Logger *slog.Logger
}

// NewBootstrapper creates a Bootstrapper; a nil logger uses slog.Default().
func NewBootstrapper(log *slog.Logger) *Bootstrapper {
	return &Bootstrapper{Logger: logger.OrDefault(log)}
}

// CreateDatabase creates the database named by p on its server. SQLite
// databases are created on open and are left alone.
func (b *Bootstrapper) CreateDatabase(ctx context.Context, p Params) {
	var stmt string
	switch p.Engine() {
	case DriverPgsql:
		stmt = "CREATE DATABASE " + pgx.Identifier{p.DBName}.Sanitize()
	case DriverMysql:
		stmt = "CREATE DATABASE " + quoteMysqlIdentifier(p.DBName)
	default:
		return
	}

	driverName, dsn, err := ServerDSN(p)
	if err != nil {
		b.log().DebugContext(ctx, "skipping database creation", "error", err)
		return
	}

	b.exec(ctx, driverName, dsn, stmt)
}

// LoadExtensions runs CREATE EXTENSION for each name on PostgreSQL databases.
// Names are interpolated as given so versioned or schema-qualified forms
// ("hstore SCHEMA public") keep working.
func (b *Bootstrapper) LoadExtensions(ctx context.Context, p Params, extensions []string) {
	if p.Engine() != DriverPgsql || len(extensions) == 0 {
		return
	}

	driverName, dsn, err := DatabaseDSN(p)
	if err != nil {
		b.log().DebugContext(ctx, "skipping extensions", "error", err)
		return
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		b.log().DebugContext(ctx, "failed to open database for extensions", "error", redact.Error(err))
		return
	}
	defer db.Close()

	for _, extension := range extensions {
		if _, err := db.ExecContext(ctx, "CREATE EXTENSION "+extension); err != nil {
			b.log().DebugContext(ctx, "extension not created",
				"extension", extension,
				"error", redact.Error(err),
			)
		}
	}
}

func (b *Bootstrapper) exec(ctx context.Context, driverName, dsn, stmt string) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		b.log().DebugContext(ctx, "failed to open server connection", "error", redact.Error(err))
		return
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, stmt); err != nil {
		b.log().DebugContext(ctx, "database bootstrap statement failed",
			"statement", stmt,
			"error", redact.Error(err),
		)
		return
	}

	b.log().DebugContext(ctx, "database bootstrap statement applied", "statement", stmt)
}

func (b *Bootstrapper) log() *slog.Logger {
	return logger.OrDefault(b.Logger)
}

func quoteMysqlIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
