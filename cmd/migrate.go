// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var tenant string
	var force bool

	c := &cobra.Command{
		Use:       "migrate <platform> <schema-dir>",
		Short:     "Reconcile an existing database (or every database under a platform) to a bundle",
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

			result, err := gw.Migrate(ctx, platform, tenant, schemaRoot, force)
			if err != nil {
				return err
			}

			fmt.Printf("completed: databases_updated=%v\n", result.DatabasesUpdated)
			for _, pd := range result.PerDatabase {
				if pd.Err != nil {
					fmt.Printf("  %s: error: %v\n", pd.Database, pd.Err)
					continue
				}
				fmt.Printf("  %s: migrations=%d functions_updated=%d functions_skipped=%d\n",
					pd.Database, len(pd.MigrationsApplied), len(pd.FunctionsUpdated), pd.FunctionsSkipped)
			}
			return nil
		},
	}

	c.Flags().StringVar(&tenant, "tenant", "", "Tenant id; omitted reconciles every database under the platform")
	c.Flags().BoolVar(&force, "force", false, "Allow data-loss changes")
	return c
}
