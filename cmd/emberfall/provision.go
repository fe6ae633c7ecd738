// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package main

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/emberfall/emberfall/internal/config"
	"github.com/emberfall/emberfall/internal/identity"
)

// Default timeout for provision command.
const defaultProvisionTimeout = 30 * time.Second

// provisionConfig holds configuration for the provision command.
type provisionConfig struct {
	username  string
	password  string
	moderator bool
	timeout   time.Duration
}

// NewProvisionCmd creates the provision subcommand.
func NewProvisionCmd() *cobra.Command {
	pcfg := &provisionConfig{}

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a player account",
		Long: `Creates a player record in the configured store. The plaintext
password is hashed immediately and never persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd, args, pcfg)
		},
	}

	addConfigFlags(cmd)
	cmd.Flags().StringVar(&pcfg.username, "username", "", "username for the new player")
	cmd.Flags().StringVar(&pcfg.password, "password", "", "password for the new player")
	cmd.Flags().BoolVar(&pcfg.moderator, "moderator", false, "grant the moderator flag")
	cmd.Flags().DurationVar(&pcfg.timeout, "timeout", defaultProvisionTimeout, "timeout for store operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("username") //nolint:errcheck // flag is declared above
	_ = cmd.MarkFlagRequired("password") //nolint:errcheck // flag is declared above

	return cmd
}

func runProvision(cmd *cobra.Command, _ []string, pcfg *provisionConfig) error {
	cfg, err := config.Load(resolveConfigPath(), cmd.Flags())
	if err != nil {
		return err
	}

	setupLogging(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), pcfg.timeout)
	defer cancel()

	service, repo, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close() //nolint:errcheck // one-shot command, process exits next

	player, err := service.Provision(ctx, pcfg.username, pcfg.password, pcfg.moderator)
	if err != nil {
		if errors.Is(err, identity.ErrUsernameTaken) {
			return oops.Code("PROVISION_USERNAME_TAKEN").
				With("username", pcfg.username).
				Errorf("username %q is already taken", pcfg.username)
		}
		return err
	}

	cmd.Printf("created player %s (uuid=%s, moderator=%t)\n",
		player.Username(), player.UUID(), player.IsModerator())
	return nil
}
