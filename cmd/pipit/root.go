// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the Pipit CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipit",
		Short: "Pipit - identity and social-graph service",
		Long: `Pipit is the identity and social-graph core of a microblogging
service: account registration and login, stateless session tokens, and
the follow graph with its consistency invariants.`,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
