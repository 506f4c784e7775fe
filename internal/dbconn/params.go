package dbconn

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
)

// Engine names reported in Params.Driver.
const (
	DriverPgsql  = "pgsql"
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite"
)

const defaultMysqlPort = "3306"

var (
	// ErrMissingDatabaseName is returned when the connection does not name a
	// database, which makes it impossible to create, dump, or restore.
	ErrMissingDatabaseName = errors.New("connection does not contain a database name and cannot be created")

	// ErrUnsupportedDriver is returned for driver names this package cannot parse.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// ConfigError reports a connection configuration problem.
type ConfigError struct {
	Driver string
	Err    error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s connection configuration: %v", e.Driver, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Params are the connection parameters of a database handle. Driver holds the
// engine name, optionally with a "pdo_" prefix (pdo_pgsql, pdo_mysql).
type Params struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// Engine returns the driver with any "pdo_" prefix removed, lower-cased.
func (p Params) Engine() string {
	return strings.TrimPrefix(strings.ToLower(p.Driver), "pdo_")
}

// Engine maps a database/sql driver name or engine alias to its engine name.
func Engine(driverName string) (string, error) {
	switch strings.TrimPrefix(strings.ToLower(driverName), "pdo_") {
	case "pgx", "pgx/v5", "postgres", "postgresql", "pgsql":
		return DriverPgsql, nil
	case "mysql":
		return DriverMysql, nil
	case "sqlite", "sqlite3":
		return DriverSqlite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, driverName)
	}
}

// ParseDSN extracts connection parameters from a driver name and DSN. A DSN
// without a database name yields a *ConfigError wrapping ErrMissingDatabaseName.
func ParseDSN(driverName, dsn string) (Params, error) {
	engine, err := Engine(driverName)
	if err != nil {
		return Params{}, err
	}

	var params Params
	switch engine {
	case DriverPgsql:
		params, err = parsePgsql(dsn)
	case DriverMysql:
		params, err = parseMysql(dsn)
	case DriverSqlite:
		params = parseSqlite(dsn)
	}
	if err != nil {
		return Params{}, &ConfigError{Driver: engine, Err: err}
	}

	params.Driver = engine
	if params.DBName == "" {
		return Params{}, &ConfigError{Driver: engine, Err: ErrMissingDatabaseName}
	}

	return params, nil
}

func parsePgsql(dsn string) (Params, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return Params{}, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	return Params{
		Host:     cfg.Host,
		Port:     strconv.Itoa(int(cfg.Port)),
		User:     cfg.User,
		Password: cfg.Password,
		DBName:   cfg.Database,
	}, nil
}

func parseMysql(dsn string) (Params, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return Params{}, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}

	host, port := cfg.Addr, defaultMysqlPort
	if h, p, splitErr := net.SplitHostPort(cfg.Addr); splitErr == nil {
		host, port = h, p
	}

	return Params{
		Host:     host,
		Port:     port,
		User:     cfg.User,
		Password: cfg.Passwd,
		DBName:   cfg.DBName,
	}, nil
}

func parseSqlite(dsn string) Params {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return Params{DBName: path}
}

// ServerDSN returns a DSN for the database server of p that does not select
// p's database, used to create it. PostgreSQL connects to the "postgres"
// maintenance database.
func ServerDSN(p Params) (driverName, dsn string, err error) {
	switch p.Engine() {
	case DriverPgsql:
		return "pgx", pgsqlURL(p, "postgres"), nil
	case DriverMysql:
		return "mysql", mysqlDSN(p, ""), nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, p.Driver)
	}
}

// DatabaseDSN returns a DSN selecting p's database.
func DatabaseDSN(p Params) (driverName, dsn string, err error) {
	switch p.Engine() {
	case DriverPgsql:
		return "pgx", pgsqlURL(p, p.DBName), nil
	case DriverMysql:
		return "mysql", mysqlDSN(p, p.DBName), nil
	case DriverSqlite:
		return "sqlite", p.DBName, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, p.Driver)
	}
}

func pgsqlURL(p Params, database string) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(p.Host, p.Port),
		Path:     "/" + database,
		RawQuery: "sslmode=disable&connect_timeout=5",
	}
	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	} else if p.User != "" {
		u.User = url.User(p.User)
	}
	return u.String()
}

func mysqlDSN(p Params, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, p.Port)
	cfg.DBName = database
	return cfg.FormatDSN()
}
