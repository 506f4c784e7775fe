// Package docstore is the document-store object manager: JSON documents
// grouped in collections, persisted in an embedded SQLite database.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/objectmanager/orm"
	"github.com/phrazzld/functest/internal/platform/logger"

	_ "modernc.org/sqlite" // registers "sqlite"
)

// ErrNotFound is returned by Get for a missing document.
var ErrNotFound = errors.New("document not found")

const createTable = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`

const upsert = `INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`

type pendingDoc struct {
	collection string
	id         string
	body       []byte
}

// Store queues documents with Put and writes them on Flush.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	pending []pendingDoc
}

var _ objectmanager.DocumentManager = (*Store)(nil)

// Open opens (or creates) the store at path. Use ":memory:" for a private
// in-memory database.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize document store: %w", err)
	}

	return &Store{db: db, logger: logger.OrDefault(log)}, nil
}

// Kind implements objectmanager.Manager.
func (s *Store) Kind() objectmanager.Kind { return objectmanager.KindDocumentStore }

// Put queues doc, encoded as JSON, until the next Flush.
func (s *Store) Put(collection, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, pendingDoc{collection: collection, id: id, body: body})
	return nil
}

// Flush implements objectmanager.Manager.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	return orm.RunInTransaction(ctx, s.db, s.logger, func(ctx context.Context, tx *sql.Tx) error {
		for _, doc := range pending {
			if _, err := tx.ExecContext(ctx, upsert, doc.collection, doc.id, string(doc.body)); err != nil {
				return fmt.Errorf("failed to write %s/%s: %w", doc.collection, doc.id, err)
			}
		}
		return nil
	})
}

// Clear implements objectmanager.Manager.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

// Get decodes the stored document into out.
func (s *Store) Get(ctx context.Context, collection, id string, out any) error {
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND id = ?", collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), out)
}

// Count returns the number of stored documents in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM documents WHERE collection = ?", collection).Scan(&n)
	return n, err
}

// Collections implements objectmanager.DocumentManager.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT collection FROM documents ORDER BY collection")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DropCollection implements objectmanager.DocumentManager.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", name)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
