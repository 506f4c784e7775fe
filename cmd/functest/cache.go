package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phrazzld/functest/internal/backup"
	"github.com/phrazzld/functest/internal/schema"
)

const (
	outputTable = "table"
	outputYAML  = "yaml"
	outputJSON  = "json"
)

func newCacheCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear cached fixture dumps",
	}
	cmd.AddCommand(newCacheListCommand(a), newCacheClearCommand(a), newCacheKeyCommand())
	return cmd
}

func newCacheListCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached dumps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dumps, err := backup.ListDumps(a.cfg.Snapshot.CacheDir)
			if err != nil {
				return err
			}
			return writeDumps(cmd.OutOrStdout(), output, dumps)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, yaml or json")
	return cmd
}

func writeDumps(out io.Writer, format string, dumps []backup.Dump) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		if dumps == nil {
			dumps = []backup.Dump{}
		}
		return enc.Encode(dumps)
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if dumps == nil {
			dumps = []backup.Dump{}
		}
		return enc.Encode(dumps)
	case outputTable:
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	if len(dumps) == 0 {
		pterm.Info.WithWriter(out).Println("No cached dumps.")
		return nil
	}

	data := [][]string{{"Hash", "Engine", "Size", "Modified", "References"}}
	for _, d := range dumps {
		refs := pterm.NewStyle(pterm.FgGreen).Sprint("yes")
		if !d.Usable() {
			refs = pterm.NewStyle(pterm.FgRed).Sprint("missing")
		}
		data = append(data, []string{
			d.Hash,
			d.Engine,
			strconv.FormatInt(d.Size, 10),
			d.ModTime.Format("2006-01-02 15:04:05"),
			refs,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(out).Render()
}

func newCacheClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [hash...]",
		Short: "Remove cached dumps, all of them unless hashes are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := backup.RemoveDumps(a.cfg.Snapshot.CacheDir, args...)
			for _, d := range removed {
				a.log.Info("removed cached dump", slog.String("hash", d.Hash), slog.String("file", d.File))
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d dump(s)\n", len(removed))
			return err
		},
	}
}

func newCacheKeyCommand() *cobra.Command {
	var (
		migrations string
		fixtures   []string
	)

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the cache key of a migration directory and fixture set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			metas, err := migrationMetadata(cmd.Context(), migrations)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), backup.CacheKey(metas, fixtures))
			return err
		},
	}
	cmd.Flags().StringVar(&migrations, "migrations", "", "directory of goose SQL migrations")
	cmd.Flags().StringSliceVarP(&fixtures, "fixture", "f", nil, "fixture name (repeatable)")
	return cmd
}

func migrationMetadata(ctx context.Context, dir string) ([]schema.Metadata, error) {
	if dir == "" {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tool := schema.NewMigrationTool(nil, "", os.DirFS(dir), ".")
	return tool.Metadata(ctx)
}
