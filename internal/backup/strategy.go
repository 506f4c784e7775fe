// Package backup selects and describes native database dumps used to skip
// fixture loading when the schema and fixture set have not changed.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/functest/internal/dbconn"
	"github.com/phrazzld/functest/internal/reference"
)

// DumpDir is the directory under the cache dir holding dump files.
const DumpDir = "db_dump"

// Strategy describes the dump of one database engine for one cache key.
type Strategy interface {
	// Engine returns the engine name handled by the strategy.
	Engine() string
	// File returns the dump file path.
	File() string
	// Exists reports whether the dump and its reference file both exist.
	Exists() bool
	// RestoreCommand returns the shell command loading the dump.
	RestoreCommand() string
	// BackupCommand returns the shell command writing the dump.
	BackupCommand() string
}

// ShellQuote quotes s as a single shell word: it is wrapped in single quotes
// and every embedded single quote becomes '\''.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// DumpFile returns {cacheDir}/db_dump/test_{hash}.{ext}.
func DumpFile(cacheDir, hash, ext string) string {
	return filepath.Join(cacheDir, DumpDir, "test_"+hash+"."+ext)
}

type dump struct {
	params dbconn.Params
	file   string
}

// Exists implements Strategy.
func (d dump) Exists() bool {
	return fileExists(d.file) && fileExists(reference.PathFor(d.file))
}

// File implements Strategy.
func (d dump) File() string { return d.file }

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// PgsqlBackup dumps PostgreSQL databases in pg_dump custom format.
type PgsqlBackup struct {
	dump
}

// SupportsPgsql reports whether params name a PostgreSQL connection.
func SupportsPgsql(params dbconn.Params) bool {
	return params.Engine() == dbconn.DriverPgsql
}

// NewPgsqlBackup creates the PostgreSQL strategy for hash.
func NewPgsqlBackup(cacheDir string, params dbconn.Params, hash string) *PgsqlBackup {
	return &PgsqlBackup{dump{params: params, file: DumpFile(cacheDir, hash, "pgdmp")}}
}

// Engine implements Strategy.
func (b *PgsqlBackup) Engine() string { return dbconn.DriverPgsql }

// RestoreCommand implements Strategy.
func (b *PgsqlBackup) RestoreCommand() string {
	return fmt.Sprintf("pg_restore -h %s -U %s -d %s -F c %s",
		ShellQuote(b.params.Host),
		ShellQuote(b.params.User),
		ShellQuote(b.params.DBName),
		ShellQuote(b.file),
	)
}

// BackupCommand implements Strategy.
func (b *PgsqlBackup) BackupCommand() string {
	return fmt.Sprintf("pg_dump -h %s -U %s -f %s -F c -b -v %s",
		ShellQuote(b.params.Host),
		ShellQuote(b.params.User),
		ShellQuote(b.file),
		ShellQuote(b.params.DBName),
	)
}

// MysqlBackup dumps MySQL databases as SQL scripts.
type MysqlBackup struct {
	dump
}

// SupportsMysql reports whether params name a MySQL connection.
func SupportsMysql(params dbconn.Params) bool {
	return params.Engine() == dbconn.DriverMysql
}

// NewMysqlBackup creates the MySQL strategy for hash.
func NewMysqlBackup(cacheDir string, params dbconn.Params, hash string) *MysqlBackup {
	return &MysqlBackup{dump{params: params, file: DumpFile(cacheDir, hash, "sql")}}
}

// Engine implements Strategy.
func (b *MysqlBackup) Engine() string { return dbconn.DriverMysql }

// RestoreCommand implements Strategy.
func (b *MysqlBackup) RestoreCommand() string {
	return fmt.Sprintf("mysql -h %s -P %s -u %s -p%s -D %s < %s",
		ShellQuote(b.params.Host),
		ShellQuote(b.params.Port),
		ShellQuote(b.params.User),
		ShellQuote(b.params.Password),
		ShellQuote(b.params.DBName),
		ShellQuote(b.file),
	)
}

// BackupCommand implements Strategy.
func (b *MysqlBackup) BackupCommand() string {
	return fmt.Sprintf("mysqldump -h %s -P %s -u %s -p%s -B %s > %s",
		ShellQuote(b.params.Host),
		ShellQuote(b.params.Port),
		ShellQuote(b.params.User),
		ShellQuote(b.params.Password),
		ShellQuote(b.params.DBName),
		ShellQuote(b.file),
	)
}
