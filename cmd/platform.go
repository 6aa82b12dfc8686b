// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func platformCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "platform",
		Short: "Manage platform registrations and stored schemas",
	}

	c.AddCommand(platformRegisterCmd())
	c.AddCommand(platformSchemaCmd())
	c.AddCommand(platformListCmd())
	return c
}

func platformRegisterCmd() *cobra.Command {
	var dbUser, dbPassword string

	c := &cobra.Command{
		Use:       "register <platform>",
		Short:     "Register a new platform, optionally with dedicated database credentials",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"platform"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			gw, err := NewGateway(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			p, err := gw.RegisterPlatform(args[0], dbUser, dbPassword)
			if err != nil {
				return err
			}

			fmt.Printf("registered: platform=%s has_dedicated_credentials=%v\n", p.Name, p.HasDedicatedCredentials())
			return nil
		},
	}

	c.Flags().StringVar(&dbUser, "db-user", "", "Dedicated database user for this platform")
	c.Flags().StringVar(&dbPassword, "db-password", "", "Dedicated database password for this platform")
	return c
}

func platformSchemaCmd() *cobra.Command {
	c := &cobra.Command{
		Use:       "schema <platform> <schema-name> <bundle-dir>",
		Short:     "Store a named bundle under a platform",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"platform", "schema-name", "bundle-dir"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			gw, err := NewGateway(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			if err := gw.StorePlatformSchema(args[0], args[1], args[2]); err != nil {
				return err
			}

			fmt.Printf("stored: platform=%s schema_name=%s\n", args[0], args[1])
			return nil
		},
	}
	return c
}

func platformListCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "list",
		Short: "List registered platforms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			gw, err := NewGateway(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			platforms, err := gw.ListPlatforms()
			if err != nil {
				return err
			}

			for _, p := range platforms {
				fmt.Printf("%s: schemas=%d databases=%d\n", p.Name, len(p.Schemas), len(p.Databases))
			}
			return nil
		},
	}
	return c
}
