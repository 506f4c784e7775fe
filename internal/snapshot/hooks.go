package snapshot

import (
	"context"

	"github.com/phrazzld/functest/internal/fixture"
	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/reference"
)

// Hooks are optional callbacks around the load steps. A nil hook is skipped;
// a hook error aborts the load.
type Hooks struct {
	// PostSetup runs after the schema is created, before purging.
	PostSetup func(ctx context.Context) error
	// PreRestore runs before the restore command.
	PreRestore func(ctx context.Context, m objectmanager.Manager, refs *reference.Repository) error
	// PostRestore runs after references are loaded from the backup.
	PostRestore func(ctx context.Context) error
	// PreReferenceSave runs before references and the dump are written.
	PreReferenceSave func(ctx context.Context, m objectmanager.Manager, e *fixture.Executor, backupFile string) error
	// PostReferenceSave runs after the dump is written.
	PostReferenceSave func(ctx context.Context, m objectmanager.Manager, e *fixture.Executor, backupFile string) error
}

func (h Hooks) postSetup(ctx context.Context) error {
	if h.PostSetup == nil {
		return nil
	}
	return h.PostSetup(ctx)
}

func (h Hooks) preRestore(ctx context.Context, m objectmanager.Manager, refs *reference.Repository) error {
	if h.PreRestore == nil {
		return nil
	}
	return h.PreRestore(ctx, m, refs)
}

func (h Hooks) postRestore(ctx context.Context) error {
	if h.PostRestore == nil {
		return nil
	}
	return h.PostRestore(ctx)
}

func (h Hooks) preReferenceSave(ctx context.Context, m objectmanager.Manager, e *fixture.Executor, file string) error {
	if h.PreReferenceSave == nil {
		return nil
	}
	return h.PreReferenceSave(ctx, m, e, file)
}

func (h Hooks) postReferenceSave(ctx context.Context, m objectmanager.Manager, e *fixture.Executor, file string) error {
	if h.PostReferenceSave == nil {
		return nil
	}
	return h.PostReferenceSave(ctx, m, e, file)
}
