package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

func newLoopCmd(app *App) *cobra.Command {
	var (
		period      time.Duration
		times       int
		consoleOnly bool
	)

	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Check tracked markets on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if period > 0 {
				app.Cfg.Schedule.ScanInterval.Duration = period
			}
			err := app.scheduler(ctx, consoleOnly).Run(ctx, times)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVarP(&period, "period", "p", 0, "Override the configured scan interval")
	cmd.Flags().IntVarP(&times, "times", "n", 0, "Stop after this many passes (0 = run forever)")
	cmd.Flags().BoolVar(&consoleOnly, "console-only", false, "Confirm on the console instead of Telegram")
	return cmd
}
