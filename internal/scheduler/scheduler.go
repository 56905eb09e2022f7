// Package scheduler walks the tracked markets, asks their rules whether to
// resolve, and settles them once the operator signs off.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"marketkeeper/internal/config"
	"marketkeeper/internal/confirm"
	"marketkeeper/internal/managed"
	"marketkeeper/internal/manifold"
	"marketkeeper/internal/parallel"
	"marketkeeper/internal/rules"
	"marketkeeper/internal/store"
	"marketkeeper/internal/tracker"
)

// Scheduler orchestrates the check-and-resolve loop.
type Scheduler struct {
	store     *store.Store
	client    *manifold.Client
	cache     *manifold.CachedSource
	tracker   tracker.Fetcher
	confirmer confirm.Confirmer
	pool      *parallel.Pool
	cfg       config.Config

	// promptMu serializes operator prompts while markets evaluate in
	// parallel.
	promptMu sync.Mutex
}

// New creates a Scheduler with all dependencies.
func New(
	st *store.Store,
	client *manifold.Client,
	cache *manifold.CachedSource,
	trk tracker.Fetcher,
	confirmer confirm.Confirmer,
	pool *parallel.Pool,
	cfg config.Config,
) *Scheduler {
	return &Scheduler{
		store:     st,
		client:    client,
		cache:     cache,
		tracker:   trk,
		confirmer: confirmer,
		pool:      pool,
		cfg:       cfg,
	}
}

// Run checks all tracked markets immediately, then again every scan
// interval until the context is cancelled or the pass count is reached.
// times <= 0 means run forever.
func (s *Scheduler) Run(ctx context.Context, times int) error {
	slog.Info("scheduler starting", "scan_interval", s.cfg.Schedule.ScanInterval.Duration)

	passes := 0
	s.checkPass(ctx, false)
	passes++
	if times > 0 && passes >= times {
		return nil
	}

	ticker := time.NewTicker(s.cfg.Schedule.ScanInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.checkPass(ctx, false)
			passes++
			if times > 0 && passes >= times {
				return nil
			}
		}
	}
}

func (s *Scheduler) checkPass(ctx context.Context, refresh bool) {
	if err := s.CheckAll(ctx, refresh); err != nil {
		slog.Error("check pass failed", "error", err)
	}
}

// CheckAll walks every tracked market once. A failure on one market is
// logged and does not stop the pass. With refresh set, per-market check
// rates are ignored and everything is looked at now.
func (s *Scheduler) CheckAll(ctx context.Context, refresh bool) error {
	records, err := s.store.List()
	if err != nil {
		return err
	}
	// Reference lookups from earlier passes may be stale by now.
	s.cache.Invalidate()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.API.Workers, 1))
	for _, rec := range records {
		rec := rec
		due := refresh || rec.LastChecked == nil || time.Now().After(rec.LastChecked.Add(rec.CheckRate))
		slog.Info("checking market", "id", rec.ID, "market", rec.MarketID, "question", rec.Question, "due", due)
		if !due {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.checkOne(gctx, rec); err != nil {
				slog.Error("market check failed", "id", rec.ID, "market", rec.MarketID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) checkOne(ctx context.Context, rec *store.Record) error {
	data, err := s.client.MarketByID(ctx, rec.MarketID)
	if err != nil {
		return err
	}
	mkt, err := managed.New(data, rec.DoResolve, rec.ResolveTo, rec.Notes)
	if err != nil {
		return err
	}
	env := &rules.Env{
		Market:  data,
		Markets: s.cache,
		Users:   s.client,
		Tracker: s.tracker,
		Pool:    s.pool,
	}

	should, err := mkt.ShouldResolve(ctx, env)
	if err != nil {
		return err
	}
	slog.Info("market checked", "id", rec.ID, "eligible", should)

	if should {
		if err := s.settle(ctx, rec, mkt, env); err != nil {
			return err
		}
	}

	if mkt.Data.IsResolved {
		slog.Info("market resolved, removing from db", "id", rec.ID, "market", rec.MarketID)
		if err := s.store.Remove(rec.ID); err != nil {
			return err
		}
	} else if err := s.store.Touch(rec.ID, time.Now()); err != nil {
		return err
	}

	if err := s.store.RecordSnapshot(data); err != nil {
		slog.Warn("snapshot failed", "market", rec.MarketID, "error", err)
	}
	return nil
}

// settle asks the operator what to do with an eligible market and carries
// out the verdict. Only one prompt is shown at a time.
func (s *Scheduler) settle(ctx context.Context, rec *store.Record, mkt *managed.Market, env *rules.Env) error {
	s.promptMu.Lock()
	defer s.promptMu.Unlock()

	chosen, err := mkt.ResolveValue(ctx, env)
	if err != nil {
		return err
	}
	current, err := mkt.CurrentValue(ctx, env)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf("Hey, we need to resolve %d to %s. It currently has a value of %s. "+
		"This market is called: %s\n\n", rec.ID, chosen.String(), current.String(), mkt.Data.Question)
	prompt += mkt.ExplainAbstract()
	if specific, err := mkt.ExplainSpecific(ctx, env, 4); err != nil {
		slog.Warn("could not explain market resolution", "id", rec.ID, "error", err)
	} else {
		prompt += "\n\n" + specific
	}

	confirmCtx, cancel := context.WithTimeout(ctx, s.cfg.API.ConfirmTimeout.Duration)
	defer cancel()
	response, err := s.confirmer.Confirm(confirmCtx, prompt)
	if err != nil {
		return fmt.Errorf("confirming resolution of %d: %w", rec.ID, err)
	}
	slog.Info("operator responded", "id", rec.ID, "response", response.String())

	switch response {
	case confirm.UseDefault:
		return mkt.Resolve(ctx, s.client, env, chosen)
	case confirm.Cancel:
		return mkt.Cancel(ctx, s.client)
	default:
		return nil
	}
}
