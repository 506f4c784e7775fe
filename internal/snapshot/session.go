package snapshot

import (
	"context"
	"sync"

	"github.com/phrazzld/functest/internal/ciutil"
	"github.com/phrazzld/functest/internal/dbconn"
)

// DatabaseBootstrapper creates the test database and its extensions.
// Implementations swallow failures.
type DatabaseBootstrapper interface {
	CreateDatabase(ctx context.Context, p dbconn.Params)
	LoadExtensions(ctx context.Context, p dbconn.Params, extensions []string)
}

// Session carries the "database ready" state of one test run. Create one
// per test binary (typically in TestMain) and pass it to every load.
type Session struct {
	Channel      ciutil.Channel
	Bootstrapper DatabaseBootstrapper
	// Extensions are the PostgreSQL extensions created with the database.
	Extensions []string

	mu    sync.Mutex
	ready bool
}

// NewSession creates a Session for channel using the default bootstrapper.
func NewSession(channel ciutil.Channel) *Session {
	return &Session{Channel: channel, Bootstrapper: dbconn.NewBootstrapper(nil)}
}

// Ready reports whether the database was prepared and can be reused
// without bootstrapping again.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// InitDatabase creates the database and its extensions unless an earlier
// call already did. The first test on a channel always bootstraps; the
// database is only remembered as ready when the channel is not readable
// by other processes.
func (s *Session) InitDatabase(ctx context.Context, params dbconn.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()

	first := s.Channel.FirstOnChannel
	if s.ready && !first {
		return
	}

	if s.Bootstrapper != nil {
		s.Bootstrapper.CreateDatabase(ctx, params)
		s.Bootstrapper.LoadExtensions(ctx, params, s.Extensions)
	}
	s.ready = !s.Channel.Readable
}
