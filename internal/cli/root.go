// Package cli defines the marketkeeper command tree.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"marketkeeper/internal/config"
	"marketkeeper/internal/confirm"
	"marketkeeper/internal/manifold"
	"marketkeeper/internal/parallel"
	"marketkeeper/internal/scheduler"
	"marketkeeper/internal/store"
	"marketkeeper/internal/tracker"
)

// App holds the wired dependencies the commands share.
type App struct {
	Cfg    *config.Config
	Store  *store.Store
	Client *manifold.Client
}

// NewRootCmd builds the command tree.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "marketkeeper",
		Short:         "Automatically resolve Manifold markets according to rules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newAddCmd(app),
		newRemoveCmd(app),
		newListCmd(app),
		newRunCmd(app),
		newLoopCmd(app),
	)
	return root
}

// scheduler wires the check loop for the run and loop commands.
func (a *App) scheduler(ctx context.Context, consoleOnly bool) *scheduler.Scheduler {
	cache := manifold.NewCachedSource(a.Client, a.Cfg.API.CacheTTL.Duration)
	pool := parallel.New(a.Cfg.API.Workers)

	var confirmer confirm.Confirmer
	if !consoleOnly && a.Cfg.Telegram.Token != "" && a.Cfg.Telegram.ChatID != "" {
		confirmer = confirm.NewTelegram(a.Cfg.Telegram.Token, a.Cfg.Telegram.ChatID)
	} else {
		confirmer = &confirm.Console{In: os.Stdin, Out: os.Stdout}
	}

	return scheduler.New(a.Store, a.Client, cache, tracker.NewClient(ctx), confirmer, pool, *a.Cfg)
}
