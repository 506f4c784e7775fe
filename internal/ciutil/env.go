package ciutil

import (
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// CI provider variables.
const (
	EnvCI               = "CI"
	EnvGitHubActions    = "GITHUB_ACTIONS"
	EnvGitHubWorkspace  = "GITHUB_WORKSPACE"
	EnvGitLabCI         = "GITLAB_CI"
	EnvGitLabProjectDir = "CI_PROJECT_DIR"
	EnvJenkinsURL       = "JENKINS_URL"
	EnvTravisCI         = "TRAVIS"
	EnvCircleCI         = "CIRCLECI"
)

// EnvProjectRoot overrides project root discovery.
const EnvProjectRoot = "FUNCTEST_PROJECT_ROOT"

// Variables naming the database under test.
const (
	EnvFunctestTestDBURL   = "FUNCTEST_TEST_DB_URL"
	EnvFunctestDatabaseURL = "FUNCTEST_DATABASE_URL"
	EnvDatabaseURL         = "DATABASE_URL"
)

// DatabaseURLVars lists the database URL variables, highest precedence
// first. Configuration loading and test database discovery share it.
var DatabaseURLVars = []string{EnvFunctestTestDBURL, EnvFunctestDatabaseURL, EnvDatabaseURL}

// IsCI reports whether a known CI provider is running the process.
func IsCI() bool {
	for _, name := range []string{EnvCI, EnvGitHubActions, EnvGitLabCI, EnvJenkinsURL, EnvTravisCI, EnvCircleCI} {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// IsGitHubActions reports whether the process runs in a GitHub Actions job.
func IsGitHubActions() bool {
	return os.Getenv(EnvGitHubActions) != "" && os.Getenv(EnvGitHubWorkspace) != ""
}

// IsGitLabCI reports whether the process runs in a GitLab CI job.
func IsGitLabCI() bool {
	return os.Getenv(EnvGitLabCI) != "" && os.Getenv(EnvGitLabProjectDir) != ""
}

// DatabaseURLFromEnv returns the first non-empty variable of DatabaseURLVars,
// or "" when no database under test is configured.
func DatabaseURLFromEnv(log *slog.Logger) string {
	for _, name := range DatabaseURLVars {
		value := os.Getenv(name)
		if value == "" {
			continue
		}
		if log != nil {
			log.Debug("test database configured",
				slog.String("variable", name),
				slog.String("url", MaskDatabaseURL(value)))
		}
		return value
	}
	return ""
}

// MaskDatabaseURL replaces the password of a URL style DSN. Other values,
// including mysql "user:pass@tcp(...)" DSNs, have everything before the
// last "@" masked.
func MaskDatabaseURL(value string) string {
	if strings.Contains(value, "://") {
		if u, err := url.Parse(value); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "****")
				return u.String()
			}
			return value
		}
	}
	if i := strings.LastIndex(value, "@"); i > 0 {
		return "****" + value[i:]
	}
	return value
}
