// Package dbconn exposes the connection parameters of a live database handle
// and bootstraps the test database (creation and extensions) before fixtures
// are loaded.
package dbconn
