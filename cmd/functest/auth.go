package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phrazzld/functest/internal/fixture"
)

var errNoPassword = errors.New("no password given and authentication.password is not configured")

func newAuthCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect the default fixture credentials",
	}
	cmd.AddCommand(newAuthHashCommand(a))
	return cmd
}

func newAuthHashCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash fixtures store for the default password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := &fixture.DefaultAuthentication{}
			auth.SetDefaultAuthentication(a.cfg.Authentication.Username, a.cfg.Authentication.Password)
			if len(args) == 1 {
				auth.DefaultPassword = args[0]
			}
			if auth.DefaultPassword == "" {
				return errNoPassword
			}

			hash, err := auth.HashedPassword()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
