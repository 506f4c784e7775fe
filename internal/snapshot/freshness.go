package snapshot

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/functest/internal/fixture"
	"github.com/phrazzld/functest/internal/platform/logger"
)

// FreshnessChecker decides whether a dump is newer than the fixtures it was
// built from.
type FreshnessChecker struct {
	Logger *slog.Logger
}

// IsUpToDate reports whether backupFile was modified no earlier than the
// source file of every fixture, dependencies included. Fixtures whose
// source file cannot be found are ignored. Only a missing backup file is
// an error.
func (c *FreshnessChecker) IsUpToDate(fixtures []fixture.Fixture, backupFile string) (bool, error) {
	st, err := os.Stat(backupFile)
	if err != nil {
		return false, fmt.Errorf("failed to stat backup %s: %w", backupFile, err)
	}
	backupTime := st.ModTime()
	log := logger.OrDefault(c.Logger)

	for _, f := range fixture.NewLoader(fixtures...).All() {
		name := fixture.Name(f)
		file := fixture.SourceFile(f)
		if file == "" {
			log.Debug("fixture source unknown, skipping freshness check", slog.String("fixture", name))
			continue
		}

		fst, err := os.Stat(file)
		if err != nil {
			log.Debug("fixture source not readable, skipping freshness check",
				slog.String("fixture", name),
				slog.String("file", file),
				slog.String("error", err.Error()))
			continue
		}

		if fst.ModTime().After(backupTime) {
			log.Info("backup is older than fixture source",
				slog.String("fixture", name),
				slog.String("file", file),
				slog.String("backup", backupFile))
			return false, nil
		}
	}

	return true, nil
}
