package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSuperuserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "superuser",
		Short: "Manage the superuser account",
	}

	var username, password string
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the superuser's username and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.store.UpdateSuperUser(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🔑 Superuser set to %q\n", username)
			return nil
		},
	}
	set.Flags().StringVar(&username, "username", "", "new username")
	set.Flags().StringVar(&password, "password", "", "new password")
	set.MarkFlagRequired("username")
	set.MarkFlagRequired("password")

	cmd.AddCommand(set)
	return cmd
}
