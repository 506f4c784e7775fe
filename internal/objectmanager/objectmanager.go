// Package objectmanager defines the persistence handles fixtures write
// through and the purgers that empty them before a fixture run.
//
// The set of manager kinds is closed: an ORM over a relational database, a
// document store and a content repository backed by blob storage. Each kind
// has exactly one purger construction function, selected by NewPurger.
package objectmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/phrazzld/functest/internal/blob"
)

// Kind identifies an object manager variant.
type Kind int

const (
	KindORM Kind = iota + 1
	KindDocumentStore
	KindContentRepository
)

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindORM:
		return "orm"
	case KindDocumentStore:
		return "document_store"
	case KindContentRepository:
		return "content_repository"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SupportsSnapshots reports whether database dumps can be taken for this
// kind. Only relational databases have native dump tools.
func (k Kind) SupportsSnapshots() bool {
	return k == KindORM
}

// PurgeMode selects how the ORM purger empties tables.
type PurgeMode int

const (
	// PurgeModeDelete issues DELETE FROM for every table.
	PurgeModeDelete PurgeMode = iota
	// PurgeModeTruncate truncates every table and resets identities.
	PurgeModeTruncate
)

// String implements fmt.Stringer.
func (m PurgeMode) String() string {
	if m == PurgeModeTruncate {
		return "truncate"
	}
	return "delete"
}

// ErrUnsupportedManager is returned when a manager does not expose what its
// kind requires.
var ErrUnsupportedManager = errors.New("unsupported object manager")

// Manager is the handle fixtures persist objects through.
type Manager interface {
	Kind() Kind
	// Flush writes pending changes to the backing store.
	Flush(ctx context.Context) error
	// Clear discards pending changes and any identity map.
	Clear()
}

// Purger empties a store before fixtures run.
type Purger interface {
	Purge(ctx context.Context) error
}

// RelationalManager is what an ORM manager exposes for purging.
type RelationalManager interface {
	Manager
	DB() *sql.DB
	Engine() string
	// Tables returns the purgeable tables in dependency order, referenced
	// tables first.
	Tables(ctx context.Context) ([]string, error)
}

// DocumentManager is what a document store exposes for purging.
type DocumentManager interface {
	Manager
	Collections(ctx context.Context) ([]string, error)
	DropCollection(ctx context.Context, name string) error
}

// ContentManager is what a content repository exposes for purging.
type ContentManager interface {
	Manager
	Store() blob.Store
	// Prefix is the key prefix owned by the repository.
	Prefix() string
}

// NewPurger builds the purger for the manager's kind.
func NewPurger(m Manager, mode PurgeMode) (Purger, error) {
	switch m.Kind() {
	case KindORM:
		rm, ok := m.(RelationalManager)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a relational manager", ErrUnsupportedManager, m)
		}
		return &SQLPurger{Manager: rm, Mode: mode}, nil
	case KindDocumentStore:
		dm, ok := m.(DocumentManager)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a document manager", ErrUnsupportedManager, m)
		}
		return &DocumentPurger{Manager: dm}, nil
	case KindContentRepository:
		cm, ok := m.(ContentManager)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a content manager", ErrUnsupportedManager, m)
		}
		return &ContentPurger{Manager: cm}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedManager, m.Kind())
	}
}
