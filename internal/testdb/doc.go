// Package testdb connects tests to a database.
//
// Unit tests use a throwaway SQLite file:
//
//	conn := testdb.OpenSqlite(t)
//
// Integration tests connect to the database named by FUNCTEST_TEST_DB_URL
// (or DATABASE_URL) and are skipped when none is configured:
//
//	conn := testdb.OpenFromEnv(t)
//	testdb.WithTx(t, conn.DB, func(t *testing.T, tx *sql.Tx) {
//	    // changes are rolled back when fn returns
//	})
package testdb
