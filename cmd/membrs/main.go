package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "membrs",
		Short: "Onboard Discord users with OAuth and add them to a guild",
		Long: `membrs runs the OAuth callback that adds users to a Discord guild,
the superuser API used by the admin frontend, and maintenance commands
for the stored users.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("MEMBRS_CONFIG"), "path to a YAML config file (env MEMBRS_CONFIG)")

	root.AddCommand(
		newServeCmd(),
		newUsersCmd(),
		newResyncCmd(),
		newSuperuserCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
