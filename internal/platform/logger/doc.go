// Package logger provides structured logging functionality for the functional
// test kit.
//
// It utilizes Go's standard library log/slog package to implement structured
// JSON (or text) logging with configurable log levels, a CI-aware handler,
// and helpers for capturing log output in tests.
package logger
