package backup

import (
	"github.com/phrazzld/functest/internal/dbconn"
	"github.com/phrazzld/functest/internal/process"
)

// Candidate pairs an engine predicate with the strategy it builds.
type Candidate struct {
	Name     string
	Supports func(params dbconn.Params) bool
	New      func(cacheDir string, params dbconn.Params, hash string) Strategy
}

// DefaultCandidates returns PostgreSQL then MySQL.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{
			Name:     dbconn.DriverPgsql,
			Supports: SupportsPgsql,
			New: func(cacheDir string, params dbconn.Params, hash string) Strategy {
				return NewPgsqlBackup(cacheDir, params, hash)
			},
		},
		{
			Name:     dbconn.DriverMysql,
			Supports: SupportsMysql,
			New: func(cacheDir string, params dbconn.Params, hash string) Strategy {
				return NewMysqlBackup(cacheDir, params, hash)
			},
		},
	}
}

// Selector picks the dump strategy for a connection.
type Selector struct {
	// Enabled turns dump caching on.
	Enabled bool
	// CacheDir is the base directory of dump files.
	CacheDir string
	// Candidates are tried in order; nil means DefaultCandidates.
	Candidates []Candidate
	// ProcessAvailable reports whether commands can be run; nil means
	// process.ShellAvailable.
	ProcessAvailable func() bool
}

// NewSelector creates a Selector with the default candidates.
func NewSelector(enabled bool, cacheDir string) *Selector {
	return &Selector{Enabled: enabled, CacheDir: cacheDir}
}

// Select returns the first strategy supporting params, or nil when caching
// is disabled, commands cannot run, or no strategy supports the engine.
func (s *Selector) Select(params dbconn.Params, hash string) Strategy {
	if s == nil || !s.Enabled {
		return nil
	}

	available := s.ProcessAvailable
	if available == nil {
		available = process.ShellAvailable
	}
	if !available() {
		return nil
	}

	candidates := s.Candidates
	if candidates == nil {
		candidates = DefaultCandidates()
	}
	for _, c := range candidates {
		if c.Supports != nil && c.New != nil && c.Supports(params) {
			return c.New(s.CacheDir, params, hash)
		}
	}
	return nil
}
