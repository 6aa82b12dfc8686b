// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/config"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gateway"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/glog"
)

// Version is the gateway version, set at build time via -ldflags.
var Version = "development"

func init() {
	config.BindFlags(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:          "stonescriptdb-gateway",
	SilenceUsage: true,
	Version:      Version,
}

// NewGateway builds a Gateway from the bound configuration surface.
func NewGateway(_ context.Context) (*gateway.Gateway, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return gateway.New(cfg, glog.New(), Version)
}

// Execute runs the root command.
func Execute() error {
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(callCmd())
	rootCmd.AddCommand(platformCmd())
	rootCmd.AddCommand(databaseCmd())
	rootCmd.AddCommand(healthCmd())

	return rootCmd.Execute()
}
