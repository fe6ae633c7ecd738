// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/emberfall/emberfall/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// resolveConfigPath returns the --config value, falling back to the XDG
// default config file when the flag was not given.
func resolveConfigPath() string {
	if configFile != "" {
		return configFile
	}
	return xdg.ConfigFile()
}

// NewRootCmd creates the root command for the Emberfall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emberfall",
		Short: "Emberfall - session and identity core for the game backend",
		Long: `Emberfall is the session and identity layer of the game backend:
it authenticates players, issues bearer session tokens, and gates all
in-game object state behind a live session.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewProvisionCmd())

	return cmd
}
