// Package reference tracks objects created by fixtures under symbolic names
// and persists that mapping next to a database dump, so tests can resolve
// fixture data after a restore without re-running fixtures.
package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileSuffix is appended to a dump file path to name its reference file.
const FileSuffix = ".ser"

var (
	// ErrNotFound is returned when no reference exists under a name.
	ErrNotFound = errors.New("reference not found")

	// ErrDuplicate is returned by Add when a name is already taken.
	ErrDuplicate = errors.New("reference already exists")
)

// Reference identifies a persisted object by type and identifier.
type Reference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Identifiable is implemented by objects that can be referenced directly.
type Identifiable interface {
	ReferenceType() string
	ReferenceID() string
}

// Of builds a Reference for obj.
func Of(obj Identifiable) Reference {
	return Reference{Type: obj.ReferenceType(), ID: obj.ReferenceID()}
}

// PathFor returns the reference file path of a dump file.
func PathFor(dumpFile string) string {
	return dumpFile + FileSuffix
}

// Repository maps symbolic names to references. It is safe for concurrent use.
type Repository struct {
	mu   sync.RWMutex
	refs map[string]Reference
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{refs: make(map[string]Reference)}
}

// Set stores ref under name, replacing any existing reference.
func (r *Repository) Set(name string, ref Reference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[name] = ref
}

// Add stores ref under name and fails if the name is already used.
func (r *Repository) Add(name string, ref Reference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.refs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.refs[name] = ref
	return nil
}

// Get returns the reference stored under name.
func (r *Repository) Get(name string) (Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, ok := r.refs[name]
	if !ok {
		return Reference{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return ref, nil
}

// Has reports whether a reference exists under name.
func (r *Repository) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.refs[name]
	return ok
}

// Names returns all reference names, sorted.
func (r *Repository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.refs))
	for name := range r.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of references.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.refs)
}

// Save writes the repository to the reference file of dumpFile.
func (r *Repository) Save(dumpFile string) error {
	r.mu.RLock()
	data, err := json.MarshalIndent(r.refs, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode references: %w", err)
	}

	path := PathFor(dumpFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create reference directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write references to %s: %w", path, err)
	}
	return nil
}

// Load replaces the repository content with the reference file of dumpFile.
func (r *Repository) Load(dumpFile string) error {
	path := PathFor(dumpFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read references from %s: %w", path, err)
	}

	refs := make(map[string]Reference)
	if err := json.Unmarshal(data, &refs); err != nil {
		return fmt.Errorf("failed to decode references from %s: %w", path, err)
	}

	r.mu.Lock()
	r.refs = refs
	r.mu.Unlock()
	return nil
}
