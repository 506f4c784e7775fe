package dbconn

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// Connection is a live database handle together with the DSN it was opened
// with, so its parameters can be recovered for dump and restore tools.
type Connection struct {
	DB         *sql.DB
	DriverName string
	DSN        string
}

// sqlDriverName maps engine aliases onto registered database/sql drivers.
func sqlDriverName(driverName string) (string, error) {
	engine, err := Engine(driverName)
	if err != nil {
		return "", err
	}
	switch engine {
	case DriverPgsql:
		return "pgx", nil
	case DriverMysql:
		return "mysql", nil
	default:
		return "sqlite", nil
	}
}

// Open opens a connection and verifies it with a ping.
func Open(ctx context.Context, driverName, dsn string) (*Connection, error) {
	name, err := sqlDriverName(driverName)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", name, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", name, err)
	}

	return &Connection{DB: db, DriverName: name, DSN: dsn}, nil
}

// Params returns the connection parameters. A DSN without a database name is
// a configuration error.
func (c *Connection) Params() (Params, error) {
	return ParseDSN(c.DriverName, c.DSN)
}

// Engine returns the engine name of the connection.
func (c *Connection) Engine() string {
	engine, _ := Engine(c.DriverName)
	return engine
}

// Close closes the underlying handle.
func (c *Connection) Close() error {
	return c.DB.Close()
}
