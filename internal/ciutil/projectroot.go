package ciutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Project root marker files
const (
	GoModFile    = "go.mod"
	GitDirectory = ".git"
)

// maxTraversalDepth bounds the upward directory walk.
const maxTraversalDepth = 10

var (
	ErrProjectRootNotFound = errors.New("unable to find project root")
	ErrInvalidProjectRoot  = errors.New("invalid project root: no go.mod file found")
)

// FindProjectRoot returns the absolute path to the project root directory.
// It checks several sources in the following order:
//
//  1. FUNCTEST_PROJECT_ROOT environment variable (explicit override)
//  2. GITHUB_WORKSPACE environment variable (GitHub Actions)
//  3. CI_PROJECT_DIR environment variable (GitLab CI)
//  4. Auto-detection by traversing directories upward looking for go.mod or .git
func FindProjectRoot(logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	candidates := []struct {
		source string
		dir    string
		active bool
	}{
		{source: EnvProjectRoot, dir: os.Getenv(EnvProjectRoot), active: true},
		{source: EnvGitHubWorkspace, dir: os.Getenv(EnvGitHubWorkspace), active: IsGitHubActions()},
		{source: EnvGitLabProjectDir, dir: os.Getenv(EnvGitLabProjectDir), active: IsGitLabCI()},
	}

	for _, c := range candidates {
		if !c.active || c.dir == "" {
			continue
		}

		logger.Debug("using project root from environment", "source", c.source, "project_root", c.dir)
		if !isValidProjectRoot(c.dir) {
			return "", fmt.Errorf("%w at %s", ErrInvalidProjectRoot, c.dir)
		}
		return c.dir, nil
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	return findProjectRootByTraversal(workingDir, logger)
}

// findProjectRootByTraversal walks upward from startDir until it finds a
// directory holding go.mod (preferred) or .git.
func findProjectRootByTraversal(startDir string, logger *slog.Logger) (string, error) {
	currentDir := startDir

	for i := 0; i < maxTraversalDepth; i++ {
		if fileExists(filepath.Join(currentDir, GoModFile)) || dirExists(filepath.Join(currentDir, GitDirectory)) {
			logger.Debug("found project root", "project_root", currentDir, "depth", i)
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return "", fmt.Errorf("%w from %s", ErrProjectRootNotFound, startDir)
}

// DefaultCacheDir returns the directory used for database dumps when no cache
// directory is configured: <project root>/var/cache/test.
func DefaultCacheDir(logger *slog.Logger) (string, error) {
	root, err := FindProjectRoot(logger)
	if err != nil {
		return "", fmt.Errorf("failed to resolve default cache dir: %w", err)
	}
	return filepath.Join(root, "var", "cache", "test"), nil
}

func isValidProjectRoot(dir string) bool {
	return dirExists(dir) && fileExists(filepath.Join(dir, GoModFile))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
