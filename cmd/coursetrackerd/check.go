package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single check cycle and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if timeout := a.cfg.Schedule.CycleTimeout; timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			summary, err := a.runner.RunCycle(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return nil
		},
	}
}
