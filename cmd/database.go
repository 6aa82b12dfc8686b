// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func databaseCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "database",
		Short: "Create and list platform-owned databases",
	}

	c.AddCommand(databaseCreateCmd())
	c.AddCommand(databaseListCmd())
	return c
}

func databaseCreateCmd() *cobra.Command {
	var tenant, schemaName string

	c := &cobra.Command{
		Use:       "create <platform>",
		Short:     "Create a database for a platform without deploying a bundle to it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"platform"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			gw, err := NewGateway(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			database, err := gw.CreateDatabase(ctx, args[0], tenant, schemaName)
			if err != nil {
				return err
			}

			fmt.Printf("created: database=%s\n", database)
			return nil
		},
	}

	c.Flags().StringVar(&tenant, "tenant", "", "Tenant id; omitted creates the platform's main database")
	c.Flags().StringVar(&schemaName, "schema-name", "", "Stored schema name to record as applied")
	return c
}

func databaseListCmd() *cobra.Command {
	c := &cobra.Command{
		Use:       "list <platform>",
		Short:     "List databases belonging to a platform",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"platform"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			gw, err := NewGateway(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			dbs, err := gw.ListDatabases(ctx, args[0])
			if err != nil {
				return err
			}

			for _, d := range dbs {
				fmt.Printf("%s\t%s\n", d.Name, d.Type)
			}
			return nil
		},
	}
	return c
}
