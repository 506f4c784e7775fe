// Package snapshot loads fixtures into a test database and caches the
// result as a native dump, restoring it on later runs while the fixtures
// and schema are unchanged.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/functest/internal/backup"
	"github.com/phrazzld/functest/internal/config"
	"github.com/phrazzld/functest/internal/dbconn"
	"github.com/phrazzld/functest/internal/fixture"
	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/platform/logger"
	"github.com/phrazzld/functest/internal/process"
	"github.com/phrazzld/functest/internal/reference"
	"github.com/phrazzld/functest/internal/schema"
)

// State is a step of a fixture load.
type State int

const (
	StateInit State = iota
	StateSchemaDropped
	StateRestoring
	StateRebuilding
	StateFixturesExecuted
	StateBackupSaved
	StateNoBackupConfigured
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSchemaDropped:
		return "schema_dropped"
	case StateRestoring:
		return "restoring"
	case StateRebuilding:
		return "rebuilding"
	case StateFixturesExecuted:
		return "fixtures_executed"
	case StateBackupSaved:
		return "backup_saved"
	case StateNoBackupConfigured:
		return "no_backup_configured"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result describes a finished load.
type Result struct {
	Executor *fixture.Executor
	// Path is the data path taken: StateRestoring or StateRebuilding.
	Path State
	// Saved is StateBackupSaved or StateNoBackupConfigured on the rebuild
	// path, StateDone after a restore.
	Saved    State
	Strategy backup.Strategy
	Hash     string
}

// ParamsFunc resolves connection parameters of the database under test.
type ParamsFunc func(ctx context.Context) (dbconn.Params, error)

type schemaProvider interface {
	Schema() schema.Tool
}

type paramsProvider interface {
	ConnectionParams() (dbconn.Params, error)
}

// Orchestrator loads fixtures through an object manager, restoring a
// cached dump when one matches.
type Orchestrator struct {
	Selector  *backup.Selector
	Runner    process.Runner
	Freshness *FreshnessChecker
	// Schema overrides the schema tool of the manager.
	Schema schema.Tool
	// Params overrides the connection parameters of the manager.
	Params      ParamsFunc
	Credentials fixture.Credentials
	Console     fixture.Console
	PurgeMode   objectmanager.PurgeMode
	Hooks       Hooks
	Metrics     *Metrics
	Logger      *slog.Logger
}

// New creates an Orchestrator from configuration. Dumps are produced with
// the system shell.
func New(cfg *config.Config, log *slog.Logger) *Orchestrator {
	log = logger.OrDefault(log)
	return &Orchestrator{
		Selector:  backup.NewSelector(cfg.Snapshot.CacheDB, cfg.Snapshot.CacheDir),
		Runner:    process.NewShellRunner(nil, log),
		Freshness: &FreshnessChecker{Logger: log},
		Credentials: fixture.Credentials{
			Username: cfg.Authentication.Username,
			Password: cfg.Authentication.Password,
		},
		Logger: log,
	}
}

// LoadFixtures loads fixtures through m and returns the executor that ran
// them, or the executor holding restored references when a dump was reused.
func (o *Orchestrator) LoadFixtures(ctx context.Context, session *Session, m objectmanager.Manager, fixtures ...fixture.Fixture) (*fixture.Executor, error) {
	res, err := o.Load(ctx, session, m, fixtures...)
	if err != nil {
		return nil, err
	}
	return res.Executor, nil
}

// Load is LoadFixtures with the details of the path taken.
func (o *Orchestrator) Load(ctx context.Context, session *Session, m objectmanager.Manager, fixtures ...fixture.Fixture) (*Result, error) {
	start := time.Now()
	log := logger.OrDefault(o.Logger).With(slog.String("manager", m.Kind().String()))
	loader := fixture.NewLoader(fixtures...)
	refs := reference.NewRepository()
	res := &Result{}

	var strategy backup.Strategy
	if m.Kind().SupportsSnapshots() {
		var err error
		strategy, err = o.prepareRelational(ctx, session, m, loader, res, log)
		if err != nil {
			return nil, err
		}
	}
	res.Strategy = strategy

	if strategy != nil && strategy.Exists() {
		fresh, err := o.freshness().IsUpToDate(fixtures, strategy.File())
		if err != nil {
			return nil, err
		}
		if fresh {
			if err := o.restore(ctx, m, refs, strategy, res, log); err != nil {
				return nil, err
			}
			o.Metrics.observeLoad(m.Kind().String(), res.Path.String(), time.Since(start).Seconds())
			return res, nil
		}
		log.Info("backup is stale, rebuilding", slog.String("backup", strategy.File()))
	}

	res.Path = StateRebuilding
	log.Debug("fixture load", slog.String("state", res.Path.String()))

	if m.Kind().SupportsSnapshots() {
		if err := o.createSchema(ctx, m); err != nil {
			return nil, err
		}
	}
	if err := o.Hooks.postSetup(ctx); err != nil {
		return nil, fmt.Errorf("post setup hook failed: %w", err)
	}

	purger, err := objectmanager.NewPurger(m, o.PurgeMode)
	if err != nil {
		return nil, err
	}
	executor := fixture.NewExecutor(m, purger, refs, log)
	res.Executor = executor

	ordered, err := loader.Fixtures()
	if err != nil {
		return nil, err
	}
	fixture.Inject(ordered, o.Credentials, o.Console)
	if err := executor.Execute(ctx, ordered, false); err != nil {
		return nil, err
	}
	log.Debug("fixture load",
		slog.String("state", StateFixturesExecuted.String()),
		slog.Int("fixtures", len(ordered)))

	if strategy == nil {
		res.Saved = StateNoBackupConfigured
	} else {
		if err := o.save(ctx, m, executor, strategy); err != nil {
			return nil, err
		}
		res.Saved = StateBackupSaved
	}
	log.Debug("fixture load", slog.String("state", res.Saved.String()))

	o.Metrics.observeLoad(m.Kind().String(), res.Path.String(), time.Since(start).Seconds())
	return res, nil
}

// prepareRelational bootstraps the database, drops the schema and picks a
// backup strategy keyed on the schema metadata and fixture names.
func (o *Orchestrator) prepareRelational(ctx context.Context, session *Session, m objectmanager.Manager, loader *fixture.Loader, res *Result, log *slog.Logger) (backup.Strategy, error) {
	params, err := o.params(ctx, m)
	if err != nil {
		return nil, err
	}
	if session != nil {
		session.InitDatabase(ctx, params)
	}

	var metas []schema.Metadata
	if tool := o.schemaTool(m); tool != nil {
		metas, err = tool.Metadata(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema metadata: %w", err)
		}
		if err := tool.Drop(ctx); err != nil {
			return nil, err
		}
		log.Debug("fixture load", slog.String("state", StateSchemaDropped.String()))
	}

	res.Hash = backup.CacheKey(metas, loader.Names())
	strategy := o.Selector.Select(params, res.Hash)
	if strategy == nil {
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(strategy.File()), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dump directory: %w", err)
	}
	return strategy, nil
}

func (o *Orchestrator) restore(ctx context.Context, m objectmanager.Manager, refs *reference.Repository, strategy backup.Strategy, res *Result, log *slog.Logger) error {
	res.Path = StateRestoring
	log.Info("restoring fixtures from backup",
		slog.String("state", res.Path.String()),
		slog.String("backup", strategy.File()))

	if err := m.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush before restore: %w", err)
	}
	m.Clear()

	if err := o.Hooks.preRestore(ctx, m, refs); err != nil {
		return fmt.Errorf("pre restore hook failed: %w", err)
	}
	if err := o.run(ctx, m, strategy, "restore", strategy.RestoreCommand()); err != nil {
		return err
	}
	if err := refs.Load(strategy.File()); err != nil {
		return err
	}
	if err := o.Hooks.postRestore(ctx); err != nil {
		return fmt.Errorf("post restore hook failed: %w", err)
	}

	res.Executor = fixture.NewExecutor(m, nil, refs, log)
	res.Saved = StateDone
	return nil
}

func (o *Orchestrator) save(ctx context.Context, m objectmanager.Manager, executor *fixture.Executor, strategy backup.Strategy) error {
	file := strategy.File()
	if err := o.Hooks.preReferenceSave(ctx, m, executor, file); err != nil {
		return fmt.Errorf("pre reference save hook failed: %w", err)
	}
	if err := executor.References().Save(file); err != nil {
		return err
	}
	if err := o.run(ctx, m, strategy, "backup", strategy.BackupCommand()); err != nil {
		return err
	}
	if err := o.Hooks.postReferenceSave(ctx, m, executor, file); err != nil {
		return fmt.Errorf("post reference save hook failed: %w", err)
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, m objectmanager.Manager, strategy backup.Strategy, operation, command string) error {
	params, err := o.params(ctx, m)
	if err != nil {
		return err
	}
	if o.Runner == nil {
		return fmt.Errorf("no process runner configured for %s", operation)
	}

	_, err = o.Runner.Run(command, process.PasswordEnv(params))
	o.Metrics.observeCommand(strategy.Engine(), operation, err)
	if err != nil {
		return fmt.Errorf("%s of %s failed: %w", operation, strategy.File(), err)
	}
	return nil
}

func (o *Orchestrator) createSchema(ctx context.Context, m objectmanager.Manager) error {
	tool := o.schemaTool(m)
	if tool == nil {
		return nil
	}
	metas, err := tool.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema metadata: %w", err)
	}
	if len(metas) == 0 {
		return nil
	}
	return tool.Create(ctx)
}

func (o *Orchestrator) params(ctx context.Context, m objectmanager.Manager) (dbconn.Params, error) {
	if o.Params != nil {
		return o.Params(ctx)
	}
	if p, ok := m.(paramsProvider); ok {
		return p.ConnectionParams()
	}
	return dbconn.Params{}, fmt.Errorf("%w: %s manager exposes no connection parameters", objectmanager.ErrUnsupportedManager, m.Kind())
}

// schemaTool returns nil for a schema-less manager, whose schema is then
// neither dropped nor created and contributes nothing to the cache key.
func (o *Orchestrator) schemaTool(m objectmanager.Manager) schema.Tool {
	if o.Schema != nil {
		return o.Schema
	}
	if p, ok := m.(schemaProvider); ok {
		return p.Schema()
	}
	return nil
}

func (o *Orchestrator) freshness() *FreshnessChecker {
	if o.Freshness == nil {
		return &FreshnessChecker{Logger: o.Logger}
	}
	return o.Freshness
}
