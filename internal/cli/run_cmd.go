package cli

import (
	"github.com/spf13/cobra"
)

func newRunCmd(app *App) *cobra.Command {
	var (
		refresh     bool
		consoleOnly bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check all tracked markets once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return app.scheduler(ctx, consoleOnly).CheckAll(ctx, refresh)
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Ignore time last checked and look at all markets immediately")
	cmd.Flags().BoolVar(&consoleOnly, "console-only", false, "Confirm on the console instead of Telegram")
	return cmd
}
