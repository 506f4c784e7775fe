package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/phrazzld/functest/internal/blobstore"
	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/objectmanager/content"
)

func newBlobCommand(a *app) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "blob",
		Short: "Inspect and purge the content repository blob store",
	}
	cmd.PersistentFlags().StringVar(&prefix, "prefix", content.DefaultPrefix, "content repository key prefix")

	list := &cobra.Command{
		Use:   "list",
		Short: "List content repository files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := blobstore.Open(cmd.Context(), a.cfg.Blob)
			if err != nil {
				return err
			}
			infos, err := store.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				pterm.Info.WithWriter(out).Println("No files.")
				return nil
			}
			data := [][]string{{"Key", "Size", "Modified"}}
			for _, info := range infos {
				data = append(data, []string{
					info.Key,
					strconv.FormatInt(info.Size, 10),
					info.LastModified.Format("2006-01-02 15:04:05"),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(out).Render()
		},
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete every file under the content repository prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := blobstore.Open(cmd.Context(), a.cfg.Blob)
			if err != nil {
				return err
			}
			purger, err := objectmanager.NewPurger(content.New(store, prefix), objectmanager.PurgeModeDelete)
			if err != nil {
				return err
			}
			if err := purger.Purge(cmd.Context()); err != nil {
				return err
			}
			a.log.Info("content repository purged",
				slog.String("driver", string(store.Driver())),
				slog.String("prefix", prefix))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", prefix)
			return err
		},
	}

	cmd.AddCommand(list, purge)
	return cmd
}
