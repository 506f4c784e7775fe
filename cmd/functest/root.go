package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/functest/internal/config"
	"github.com/phrazzld/functest/internal/console"
	"github.com/phrazzld/functest/internal/platform/logger"
)

// app holds state shared by subcommands once configuration is loaded.
type app struct {
	configFile string
	cfg        *config.Config
	log        *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "functest",
		Short:         "Manage the fixture dump cache of the functional test suite",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file path (yaml)")

	root.AddCommand(
		newCacheCommand(a),
		newBlobCommand(a),
		newAuthCommand(a),
		console.NewGenerateUUIDCommand(),
	)
	return root
}

// load reads configuration and logs to out so command output stays
// machine readable.
func (a *app) load(out io.Writer) error {
	cfg, err := config.LoadFile(a.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.New(out, cfg.Log)

	a.cfg = cfg
	a.log = log
	log.Debug("configuration loaded",
		slog.String("cache_dir", cfg.Snapshot.CacheDir),
		slog.Bool("cache_db", cfg.Snapshot.CacheDB),
		slog.String("blob_driver", cfg.Blob.Driver))
	return nil
}
