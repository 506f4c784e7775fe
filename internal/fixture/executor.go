package fixture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/platform/logger"
	"github.com/phrazzld/functest/internal/reference"
)

// Executor runs fixtures against an object manager. Every fixture is
// flushed before the next one runs so the references it registered point
// at persisted objects.
type Executor struct {
	manager objectmanager.Manager
	purger  objectmanager.Purger
	refs    *reference.Repository
	logger  *slog.Logger
}

// NewExecutor creates an Executor. purger may be nil when the store is
// never purged through the executor.
func NewExecutor(m objectmanager.Manager, purger objectmanager.Purger, refs *reference.Repository, log *slog.Logger) *Executor {
	if refs == nil {
		refs = reference.NewRepository()
	}
	return &Executor{manager: m, purger: purger, refs: refs, logger: logger.OrDefault(log)}
}

// ObjectManager returns the manager fixtures write through.
func (e *Executor) ObjectManager() objectmanager.Manager { return e.manager }

// References returns the reference repository.
func (e *Executor) References() *reference.Repository { return e.refs }

// Purge empties the store. Without a purger it does nothing.
func (e *Executor) Purge(ctx context.Context) error {
	if e.purger == nil {
		return nil
	}
	e.logger.Debug("purging object manager", slog.String("kind", e.manager.Kind().String()))
	if err := e.purger.Purge(ctx); err != nil {
		return fmt.Errorf("failed to purge %s: %w", e.manager.Kind(), err)
	}
	return nil
}

// Execute loads fixtures in order. Unless appendMode is set the store is
// purged first.
func (e *Executor) Execute(ctx context.Context, fixtures []Fixture, appendMode bool) error {
	if !appendMode {
		if err := e.Purge(ctx); err != nil {
			return err
		}
	}

	for _, f := range fixtures {
		name := Name(f)
		e.logger.Debug("loading fixture", slog.String("fixture", name))

		if err := f.Load(ctx, e.manager, e.refs); err != nil {
			return fmt.Errorf("fixture %s failed: %w", name, err)
		}
		if err := e.manager.Flush(ctx); err != nil {
			return fmt.Errorf("failed to flush after fixture %s: %w", name, err)
		}
	}
	return nil
}
