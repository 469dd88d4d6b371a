// Package app holds the command tree of the tokens binary.
package app

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. With no subcommand it serves.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "tokens",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Multi-tenant token issuance and validation service",
		Long: `tokens mints and validates HMAC-signed JWT pairs for many tenants.
Each tenant has its own signing secret, algorithm and lifetimes. Configuration
comes from the environment (and a .env file when present).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args)
		},
	}

	addServeFlags(rootCmd)
	rootCmd.AddCommand(newServeCmd(), newSeedCmd(), newProtectCmd())
	return rootCmd
}
