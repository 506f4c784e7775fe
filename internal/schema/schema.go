// Package schema describes the database schema managed by the test kit and
// drops and recreates it around fixture loads.
package schema

import (
	"context"
	"fmt"
	"sort"
)

// Metadata describes one schema object. Definition is whatever uniquely
// captures its shape (DDL, migration source) and feeds the cache key.
type Metadata struct {
	Name       string `json:"name"`
	Table      string `json:"table,omitempty"`
	Definition string `json:"definition"`
}

// Sort returns a copy of metas ordered by Name.
func Sort(metas []Metadata) []Metadata {
	sorted := append([]Metadata(nil), metas...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// Tool drops and creates the schema of an object manager.
type Tool interface {
	// Metadata returns the managed schema objects sorted by name.
	Metadata(ctx context.Context) ([]Metadata, error)
	// Drop removes every managed object. Dropping objects that do not exist
	// is not an error.
	Drop(ctx context.Context) error
	// Create creates every managed object.
	Create(ctx context.Context) error
}

// OperationError reports a failed schema operation.
type OperationError struct {
	Op     string // "drop" or "create"
	Object string
	Err    error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("schema %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("schema %s of %s failed: %v", e.Op, e.Object, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *OperationError) Unwrap() error {
	return e.Err
}
