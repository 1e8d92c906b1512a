// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the BestWishes CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bestwishes",
		Short: "BestWishes - marketplace account service",
		Long: `BestWishes serves the marketplace account API: registration with email
verification, login, password reset, seller onboarding and product listing.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/bestwishes/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())

	return cmd
}
