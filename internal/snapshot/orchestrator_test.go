package snapshot_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/functest/internal/backup"
	"github.com/phrazzld/functest/internal/ciutil"
	"github.com/phrazzld/functest/internal/dbconn"
	"github.com/phrazzld/functest/internal/fixture"
	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/objectmanager/docstore"
	"github.com/phrazzld/functest/internal/objectmanager/orm"
	"github.com/phrazzld/functest/internal/platform/logger"
	"github.com/phrazzld/functest/internal/process"
	"github.com/phrazzld/functest/internal/reference"
	"github.com/phrazzld/functest/internal/schema"
	"github.com/phrazzld/functest/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var usersMeta = schema.Metadata{
	Name:       "app.User",
	Table:      "users",
	Definition: `CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT NOT NULL UNIQUE)`,
}

var pgParams = dbconn.Params{
	Driver:   dbconn.DriverPgsql,
	Host:     "localhost",
	Port:     "5432",
	User:     "app",
	Password: "secret",
	DBName:   "app_test",
}

// userFixture inserts one user and registers it under its email.
type userFixture struct {
	email  string
	source string
	deps   []fixture.Fixture

	mu    sync.Mutex
	loads int
}

func (f *userFixture) FixtureName() string { return "user:" + f.email }
func (f *userFixture) SourceFile() string  { return f.source }
func (f *userFixture) Dependencies() []fixture.Fixture {
	return f.deps
}

func (f *userFixture) Load(_ context.Context, m objectmanager.Manager, refs *reference.Repository) error {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()

	om, ok := m.(*orm.Manager)
	if !ok {
		return fmt.Errorf("unexpected manager %T", m)
	}
	om.Persist(`INSERT INTO users (email) VALUES (?)`, f.email)
	refs.Set(f.email, reference.Reference{Type: "app.User", ID: f.email})
	return nil
}

func (f *userFixture) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// spyBootstrapper records database bootstrap calls.
type spyBootstrapper struct {
	created    int
	extensions [][]string
}

func (b *spyBootstrapper) CreateDatabase(context.Context, dbconn.Params) { b.created++ }
func (b *spyBootstrapper) LoadExtensions(_ context.Context, _ dbconn.Params, exts []string) {
	b.extensions = append(b.extensions, exts)
}

var dumpTarget = regexp.MustCompile(`-f '([^']+)'`)

// dumpWritingRunner fakes pg_dump by writing the target file.
func dumpWritingRunner(t *testing.T) *process.FakeRunner {
	t.Helper()
	return &process.FakeRunner{Handler: func(command string, _ map[string]string) (string, error) {
		if !strings.HasPrefix(command, "pg_dump") {
			return "", nil
		}
		m := dumpTarget.FindStringSubmatch(command)
		if m == nil {
			return "", fmt.Errorf("no dump target in %q", command)
		}
		return "", os.WriteFile(m[1], []byte("PGDMP"), 0o644)
	}}
}

type harness struct {
	orchestrator *snapshot.Orchestrator
	runner       *process.FakeRunner
	session      *snapshot.Session
	bootstrapper *spyBootstrapper
	manager      *orm.Manager
	cacheDir     string
}

func newHarness(t *testing.T, cacheEnabled bool) *harness {
	t.Helper()

	conn, err := dbconn.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	tool := schema.NewSQLTool(conn.DB, conn.Engine(), usersMeta)
	cacheDir := t.TempDir()
	runner := dumpWritingRunner(t)
	boot := &spyBootstrapper{}

	o := &snapshot.Orchestrator{
		Selector: &backup.Selector{
			Enabled:          cacheEnabled,
			CacheDir:         cacheDir,
			ProcessAvailable: func() bool { return true },
		},
		Runner:    runner,
		Freshness: &snapshot.FreshnessChecker{Logger: logger.Discard()},
		Params: func(context.Context) (dbconn.Params, error) {
			return pgParams, nil
		},
		Logger: logger.Discard(),
	}

	return &harness{
		orchestrator: o,
		runner:       runner,
		session: &snapshot.Session{
			Channel:      ciutil.Channel{},
			Bootstrapper: boot,
			Extensions:   []string{"uuid-ossp"},
		},
		bootstrapper: boot,
		manager:      orm.New(conn, tool, logger.Discard()),
		cacheDir:     cacheDir,
	}
}

func (h *harness) countUsers(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, h.manager.DB().QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

func pastSource(t *testing.T, name string) string {
	t.Helper()
	return touch(t, filepath.Join(t.TempDir(), name), time.Now().Add(-time.Hour))
}

func TestLoad_CachingDisabledRunsFixtures(t *testing.T) {
	h := newHarness(t, false)
	f := &userFixture{email: "alice@example.com", source: pastSource(t, "alice.go")}

	res, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.NoError(t, err)

	assert.Equal(t, snapshot.StateRebuilding, res.Path)
	assert.Equal(t, snapshot.StateNoBackupConfigured, res.Saved)
	assert.Nil(t, res.Strategy)
	assert.Equal(t, 1, f.Loads())
	assert.Equal(t, 1, h.countUsers(t))
	assert.Empty(t, h.runner.Commands())

	ref, err := res.Executor.References().Get("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "app.User", ref.Type)
}

func TestLoad_SavesThenRestores(t *testing.T) {
	h := newHarness(t, true)
	alice := &userFixture{email: "alice@example.com", source: pastSource(t, "alice.go")}
	bob := &userFixture{email: "bob@example.com", source: pastSource(t, "bob.go"), deps: []fixture.Fixture{alice}}

	first, err := h.orchestrator.Load(t.Context(), h.session, h.manager, bob)
	require.NoError(t, err)

	require.NotNil(t, first.Strategy)
	assert.Equal(t, snapshot.StateRebuilding, first.Path)
	assert.Equal(t, snapshot.StateBackupSaved, first.Saved)
	assert.Equal(t, 1, alice.Loads())
	assert.Equal(t, 1, bob.Loads())
	assert.Equal(t, 2, h.countUsers(t))

	file := first.Strategy.File()
	assert.Equal(t, filepath.Join(h.cacheDir, backup.DumpDir, "test_"+first.Hash+".pgdmp"), file)
	assert.FileExists(t, file)
	assert.FileExists(t, reference.PathFor(file))
	assert.True(t, first.Strategy.Exists())

	calls := h.runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, first.Strategy.BackupCommand(), calls[0].Command)
	assert.Equal(t, map[string]string{"PGPASSWORD": "secret", "PGPORT": "5432"}, calls[0].Env)

	second, err := h.orchestrator.Load(t.Context(), h.session, h.manager, bob)
	require.NoError(t, err)

	assert.Equal(t, snapshot.StateRestoring, second.Path)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, 1, alice.Loads(), "fixtures must not run on restore")
	assert.Equal(t, 1, bob.Loads(), "fixtures must not run on restore")

	commands := h.runner.Commands()
	require.Len(t, commands, 2)
	assert.Equal(t, second.Strategy.RestoreCommand(), commands[1])

	assert.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, second.Executor.References().Names())
}

func TestLoad_StaleBackupRebuilds(t *testing.T) {
	h := newHarness(t, true)
	source := pastSource(t, "alice.go")
	f := &userFixture{email: "alice@example.com", source: source}

	first, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.NoError(t, err)
	require.Equal(t, snapshot.StateBackupSaved, first.Saved)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(source, future, future))

	second, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.NoError(t, err)

	assert.Equal(t, snapshot.StateRebuilding, second.Path)
	assert.Equal(t, snapshot.StateBackupSaved, second.Saved)
	assert.Equal(t, 2, f.Loads())

	commands := h.runner.Commands()
	require.Len(t, commands, 2)
	assert.True(t, strings.HasPrefix(commands[0], "pg_dump "))
	assert.True(t, strings.HasPrefix(commands[1], "pg_dump "))
}

func TestLoad_MissingReferenceFileRebuilds(t *testing.T) {
	h := newHarness(t, true)
	f := &userFixture{email: "alice@example.com", source: pastSource(t, "alice.go")}

	first, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.NoError(t, err)
	require.NoError(t, os.Remove(reference.PathFor(first.Strategy.File())))

	second, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.NoError(t, err)
	assert.Equal(t, snapshot.StateRebuilding, second.Path)
	assert.Equal(t, 2, f.Loads())
}

func TestLoad_DifferentFixturesUseDifferentDumps(t *testing.T) {
	h := newHarness(t, true)
	alice := &userFixture{email: "alice@example.com", source: pastSource(t, "alice.go")}
	bob := &userFixture{email: "bob@example.com", source: pastSource(t, "bob.go")}

	first, err := h.orchestrator.Load(t.Context(), h.session, h.manager, alice)
	require.NoError(t, err)
	second, err := h.orchestrator.Load(t.Context(), h.session, h.manager, bob)
	require.NoError(t, err)

	assert.NotEqual(t, first.Hash, second.Hash)
	assert.NotEqual(t, first.Strategy.File(), second.Strategy.File())
	assert.Equal(t, snapshot.StateRebuilding, second.Path)
}

func TestLoad_UnsupportedEngineHasNoBackup(t *testing.T) {
	h := newHarness(t, true)
	h.orchestrator.Params = nil
	f := &userFixture{email: "alice@example.com", source: pastSource(t, "alice.go")}

	res, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.NoError(t, err)

	assert.Nil(t, res.Strategy)
	assert.Equal(t, snapshot.StateNoBackupConfigured, res.Saved)
	assert.Empty(t, h.runner.Commands())
}

func TestLoad_RestoreFailure(t *testing.T) {
	h := newHarness(t, true)
	f := &userFixture{email: "alice@example.com", source: pastSource(t, "alice.go")}

	_, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.NoError(t, err)

	h.runner.Handler = func(command string, _ map[string]string) (string, error) {
		return "", &process.CommandFailedError{Command: command, ExitCode: 1, Output: "connection refused"}
	}

	_, err = h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.Error(t, err)
	assert.ErrorIs(t, err, process.ErrCommandFailed)
	assert.Contains(t, err.Error(), "restore")
}

func TestLoad_BackupFailure(t *testing.T) {
	h := newHarness(t, true)
	h.runner.Handler = func(command string, _ map[string]string) (string, error) {
		return "", &process.CommandFailedError{Command: command, ExitCode: 1}
	}
	f := &userFixture{email: "alice@example.com", source: pastSource(t, "alice.go")}

	_, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.Error(t, err)
	assert.ErrorIs(t, err, process.ErrCommandFailed)
}

func TestLoad_ParamsFailure(t *testing.T) {
	h := newHarness(t, true)
	h.orchestrator.Params = func(context.Context) (dbconn.Params, error) {
		return dbconn.Params{}, &dbconn.ConfigError{Driver: dbconn.DriverPgsql, Err: dbconn.ErrMissingDatabaseName}
	}

	_, err := h.orchestrator.Load(t.Context(), h.session, h.manager)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbconn.ErrMissingDatabaseName)
}

func TestLoad_FixtureFailure(t *testing.T) {
	h := newHarness(t, true)
	boom := errors.New("boom")
	failing := fixtureFunc(func(context.Context, objectmanager.Manager, *reference.Repository) error {
		return boom
	})

	res, err := h.orchestrator.Load(t.Context(), h.session, h.manager, failing)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, h.runner.Commands(), "no backup after a failed fixture")
}

func TestLoad_HookOrder(t *testing.T) {
	h := newHarness(t, true)
	var events []string
	record := func(name string) { events = append(events, name) }

	h.orchestrator.Hooks = snapshot.Hooks{
		PostSetup: func(context.Context) error { record("post_setup"); return nil },
		PreRestore: func(context.Context, objectmanager.Manager, *reference.Repository) error {
			record("pre_restore")
			return nil
		},
		PostRestore: func(context.Context) error { record("post_restore"); return nil },
		PreReferenceSave: func(_ context.Context, _ objectmanager.Manager, _ *fixture.Executor, file string) error {
			record("pre_reference_save")
			assert.NoFileExists(t, reference.PathFor(file))
			return nil
		},
		PostReferenceSave: func(_ context.Context, _ objectmanager.Manager, _ *fixture.Executor, file string) error {
			record("post_reference_save")
			assert.FileExists(t, file)
			return nil
		},
	}
	f := &userFixture{email: "alice@example.com", source: pastSource(t, "alice.go")}

	_, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.NoError(t, err)
	_, err = h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"post_setup",
		"pre_reference_save",
		"post_reference_save",
		"pre_restore",
		"post_restore",
	}, events)
}

func TestLoad_HookErrorAborts(t *testing.T) {
	h := newHarness(t, false)
	h.orchestrator.Hooks.PostSetup = func(context.Context) error { return errors.New("nope") }
	f := &userFixture{email: "alice@example.com", source: pastSource(t, "alice.go")}

	_, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.Error(t, err)
	assert.Equal(t, 0, f.Loads())
}

func TestLoad_InjectsCredentials(t *testing.T) {
	h := newHarness(t, false)
	h.orchestrator.Credentials = fixture.Credentials{Username: "admin", Password: "s3cret"}
	f := &authUserFixture{}

	_, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
	require.NoError(t, err)

	assert.Equal(t, "admin", f.DefaultUsername)
	assert.Equal(t, "s3cret", f.DefaultPassword)
}

func TestLoad_DocumentStoreSkipsSchemaAndBackup(t *testing.T) {
	h := newHarness(t, true)
	store, err := docstore.Open(t.Context(), filepath.Join(t.TempDir(), "docs.db"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Put("stale", "1", map[string]string{"x": "y"}))
	require.NoError(t, store.Flush(t.Context()))

	f := fixtureFunc(func(_ context.Context, m objectmanager.Manager, _ *reference.Repository) error {
		return m.(*docstore.Store).Put("articles", "a1", map[string]string{"title": "hello"})
	})

	res, err := h.orchestrator.Load(t.Context(), h.session, store, f)
	require.NoError(t, err)

	assert.Nil(t, res.Strategy)
	assert.Equal(t, snapshot.StateNoBackupConfigured, res.Saved)
	assert.Zero(t, h.bootstrapper.created)
	assert.Empty(t, h.runner.Commands())

	collections, err := store.Collections(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"articles"}, collections)
}

func TestLoad_SchemalessManagerRebuilds(t *testing.T) {
	conn, err := dbconn.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.DB.Exec(usersMeta.Definition)
	require.NoError(t, err)
	_, err = conn.DB.Exec(`INSERT INTO users (email) VALUES ('stale@example.com')`)
	require.NoError(t, err)

	m := orm.New(conn, nil, logger.Discard())
	f := &userFixture{email: "alice@example.com"}

	o := &snapshot.Orchestrator{Logger: logger.Discard()}
	res, err := o.Load(t.Context(), nil, m, f)
	require.NoError(t, err)

	assert.Equal(t, snapshot.StateRebuilding, res.Path)
	assert.Equal(t, snapshot.StateNoBackupConfigured, res.Saved)
	assert.NotEmpty(t, res.Hash)
	assert.Equal(t, 1, f.loads)

	var emails []string
	rows, err := m.DB().Query(`SELECT email FROM users`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var email string
		require.NoError(t, rows.Scan(&email))
		emails = append(emails, email)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"alice@example.com"}, emails)
}

func TestLoad_BootstrapsDatabaseOnce(t *testing.T) {
	h := newHarness(t, false)

	for i := 0; i < 3; i++ {
		_, err := h.orchestrator.Load(t.Context(), h.session, h.manager)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, h.bootstrapper.created)
	assert.Equal(t, [][]string{{"uuid-ossp"}}, h.bootstrapper.extensions)
}

func TestLoad_Metrics(t *testing.T) {
	h := newHarness(t, true)
	metrics := snapshot.NewMetrics(prometheus.NewRegistry())
	h.orchestrator.Metrics = metrics
	f := &userFixture{email: "alice@example.com", source: pastSource(t, "alice.go")}

	for i := 0; i < 2; i++ {
		_, err := h.orchestrator.Load(t.Context(), h.session, h.manager, f)
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Loads.WithLabelValues("orm", "rebuilding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Loads.WithLabelValues("orm", "restoring")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Commands.WithLabelValues("pgsql", "backup", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Commands.WithLabelValues("pgsql", "restore", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.LoadDuration))
}

func TestMustLoadFixtures(t *testing.T) {
	h := newHarness(t, false)
	f := &userFixture{email: "alice@example.com", source: pastSource(t, "alice.go")}

	executor := snapshot.MustLoadFixtures(t, h.orchestrator, h.session, h.manager, f)
	assert.True(t, executor.References().Has("alice@example.com"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "restoring", snapshot.StateRestoring.String())
	assert.Equal(t, "backup_saved", snapshot.StateBackupSaved.String())
	assert.Equal(t, "state(42)", snapshot.State(42).String())
}

// fixtureFunc adapts a function to fixture.Fixture.
type fixtureFunc func(ctx context.Context, m objectmanager.Manager, refs *reference.Repository) error

func (f fixtureFunc) Load(ctx context.Context, m objectmanager.Manager, refs *reference.Repository) error {
	return f(ctx, m, refs)
}

type authUserFixture struct {
	fixture.DefaultAuthentication
}

func (f *authUserFixture) FixtureName() string { return "admin-user" }
func (f *authUserFixture) SourceFile() string  { return "" }
func (f *authUserFixture) Load(_ context.Context, m objectmanager.Manager, _ *reference.Repository) error {
	m.(*orm.Manager).Persist(`INSERT INTO users (email) VALUES (?)`, f.DefaultUsername)
	return nil
}
