package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"marketkeeper/internal/managed"
	"marketkeeper/internal/manifold"
	"marketkeeper/internal/parallel"
	"marketkeeper/internal/rules"
	"marketkeeper/internal/tracker"
)

func newListCmd(app *App) *cobra.Command {
	var (
		verbose bool
		sigFigs int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked markets",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := app.Store.List()
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("ID", "Market", "Type", "Question", "Check Rate", "Last Checked", "Notes")
			for _, rec := range records {
				lastChecked := "never"
				if rec.LastChecked != nil {
					lastChecked = rec.LastChecked.UTC().Format(time.RFC3339)
				}
				table.Append(
					fmt.Sprintf("%d", rec.ID),
					rec.MarketID,
					rec.OutcomeType,
					truncate(rec.Question, 48),
					rec.CheckRate.String(),
					lastChecked,
					truncate(rec.Notes, 24),
				)
			}
			if err := table.Render(); err != nil {
				return err
			}

			if !verbose {
				return nil
			}
			ctx := cmd.Context()
			cache := manifold.NewCachedSource(app.Client, app.Cfg.API.CacheTTL.Duration)
			pool := parallel.New(app.Cfg.API.Workers)
			trk := tracker.NewClient(ctx)
			for _, rec := range records {
				data, err := app.Client.MarketByID(ctx, rec.MarketID)
				if err != nil {
					return err
				}
				mkt, err := managed.New(data, rec.DoResolve, rec.ResolveTo, rec.Notes)
				if err != nil {
					return err
				}
				fmt.Printf("\n== %d: %s ==\n", rec.ID, data.Question)
				fmt.Print(mkt.ExplainAbstract())

				env := &rules.Env{Market: data, Markets: cache, Users: app.Client, Tracker: trk, Pool: pool}
				specific, err := mkt.ExplainSpecific(ctx, env, sigFigs)
				if err != nil {
					fmt.Printf("(could not evaluate: %v)\n", err)
					continue
				}
				fmt.Println()
				fmt.Print(specific)
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print each market's decision tree")
	cmd.Flags().IntVar(&sigFigs, "sig-figs", 4, "Significant figures in printed values")
	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
