// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func callCmd() *cobra.Command {
	var tenant string
	var paramsJSON string

	c := &cobra.Command{
		Use:       "call <platform> <function>",
		Short:     "Invoke a stored function on a platform's database",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"platform", "function"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			platform, function := args[0], args[1]

			var params []any
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("parsing --params as JSON array: %w", err)
				}
			}

			gw, err := NewGateway(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			result, err := gw.Call(ctx, platform, tenant, function, params)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result.Rows, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	c.Flags().StringVar(&tenant, "tenant", "", "Tenant id; omitted targets the platform's main database")
	c.Flags().StringVar(&paramsJSON, "params", "", "Function parameters as a JSON array")
	return c
}
