package console

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewGenerateUUIDCommand returns the generate:uuid command, which prints a
// random (version 4) UUID.
func NewGenerateUUIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate:uuid",
		Short: "Generate a uuid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), uuid.NewString())
			return err
		},
	}
}
