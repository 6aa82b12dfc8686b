// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "health",
		Short: "Report gateway and pool manager health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			gw, err := NewGateway(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			h := gw.Health(ctx)
			out, err := json.MarshalIndent(h, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	return c
}
