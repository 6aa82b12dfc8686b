// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func registerCmd() *cobra.Command {
	var tenant string

	c := &cobra.Command{
		Use:       "register <platform> <schema-dir>",
		Short:     "Create a database and deploy a bundle to it for the first time",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"platform", "schema-dir"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			platform, schemaRoot := args[0], args[1]

			gw, err := NewGateway(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			result, err := gw.Register(ctx, platform, tenant, schemaRoot)
			if err != nil {
				return err
			}

			fmt.Printf("ready: database=%s extensions=%d types=%d migrations=%d functions=%d\n",
				result.Database, len(result.ExtensionsInstalled), len(result.TypesDeployed),
				len(result.MigrationsApplied), len(result.FunctionsDeployed))
			return nil
		},
	}

	c.Flags().StringVar(&tenant, "tenant", "", "Tenant id; omitted targets the platform's main database")
	return c
}
