// Package content is the content-repository object manager: binary content
// addressed by path and stored in a blob store under a fixed prefix.
package content

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/functest/internal/blob"
	"github.com/phrazzld/functest/internal/objectmanager"
)

// DefaultPrefix is the key prefix of the repository in its blob store.
const DefaultPrefix = "content_local/"

// DefaultAsset is the placeholder file copied by LoadFiles.
//
//go:embed assets/file.png
var DefaultAsset []byte

// Manager queues content with Put and writes it on Flush.
type Manager struct {
	store  blob.Store
	prefix string

	mu      sync.Mutex
	order   []string
	pending map[string][]byte
}

var _ objectmanager.ContentManager = (*Manager)(nil)

// New creates a Manager writing under prefix (DefaultPrefix when empty).
func New(store blob.Store, prefix string) *Manager {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Manager{store: store, prefix: prefix, pending: make(map[string][]byte)}
}

// Kind implements objectmanager.Manager.
func (m *Manager) Kind() objectmanager.Kind { return objectmanager.KindContentRepository }

// Store implements objectmanager.ContentManager.
func (m *Manager) Store() blob.Store { return m.store }

// Prefix implements objectmanager.ContentManager.
func (m *Manager) Prefix() string { return m.prefix }

// Key returns the blob key of a content path.
func (m *Manager) Key(p string) string {
	return m.prefix + strings.TrimPrefix(path.Clean("/"+p), "/")
}

// Put queues data at path p until the next Flush. A later Put to the same
// path replaces the earlier one.
func (m *Manager) Put(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pending[p]; !ok {
		m.order = append(m.order, p)
	}
	m.pending[p] = data
}

// PutUnique queues data under a random name with the given extension and
// returns the path.
func (m *Manager) PutUnique(dir, ext string, data []byte) string {
	p := path.Join(dir, uuid.NewString()+ext)
	m.Put(p, data)
	return p
}

// Flush implements objectmanager.Manager.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	order, pending := m.order, m.pending
	m.order, m.pending = nil, make(map[string][]byte)
	m.mu.Unlock()

	for _, p := range order {
		if _, err := m.store.Put(ctx, m.Key(p), pending[p]); err != nil {
			return fmt.Errorf("failed to write content %s: %w", p, err)
		}
	}
	return nil
}

// Clear implements objectmanager.Manager.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order, m.pending = nil, make(map[string][]byte)
}

// Get returns the stored content at path p.
func (m *Manager) Get(ctx context.Context, p string) ([]byte, error) {
	return m.store.Get(ctx, m.Key(p))
}

// List returns the stored content paths, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	infos, err := m.store.List(ctx, m.prefix)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(infos))
	for _, info := range infos {
		paths = append(paths, strings.TrimPrefix(info.Key, m.prefix))
	}
	return paths, nil
}

// LoadFiles stores a copy of DefaultAsset at each of the given paths and
// returns their blob keys.
func (m *Manager) LoadFiles(ctx context.Context, paths ...string) ([]string, error) {
	return m.load(ctx, DefaultAsset, paths)
}

// LoadFilesFrom stores a copy of the local file source at each of the
// given paths and returns their blob keys.
func (m *Manager) LoadFilesFrom(ctx context.Context, source string, paths ...string) ([]string, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return m.load(ctx, data, paths)
}

func (m *Manager) load(ctx context.Context, data []byte, paths []string) ([]string, error) {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := m.store.Put(ctx, m.Key(p), data)
		if err != nil {
			return nil, fmt.Errorf("failed to load file %s: %w", p, err)
		}
		keys = append(keys, info.Key)
	}
	return keys, nil
}
