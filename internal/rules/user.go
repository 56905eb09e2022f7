package rules

import (
	"context"
	"fmt"

	"marketkeeper/internal/manifold"
	"marketkeeper/internal/value"
)

func init() {
	register("manifold.user.ResolveToUserProfit", func() Rule { return &ResolveToUserProfit{} })
	register("manifold.user.ResolveToUserCreatedVolume", func() Rule { return &ResolveToUserCreatedVolume{} })
}

// userRef names a Manifold user and which statistics bucket to read.
type userRef struct {
	User  string             `json:"user"`
	Field manifold.Timeframe `json:"field"`
}

func (r userRef) timeframe() manifold.Timeframe {
	if r.Field == "" {
		return manifold.AllTime
	}
	return r.Field
}

func (r userRef) stats(ctx context.Context, env *Env) (*manifold.UserStats, error) {
	if env.Users == nil {
		return nil, fmt.Errorf("user rule for %s: no user source configured", r.User)
	}
	return env.Users.UserStats(ctx, r.User)
}

// ResolveToUserProfit resolves to the currently reported profit of a user.
type ResolveToUserProfit struct {
	userRef
}

func (r *ResolveToUserProfit) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	stats, err := r.stats(ctx, env)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Number(stats.Profit[r.timeframe()]), nil
}

func (r *ResolveToUserProfit) ExplainAbstract(indent int) string {
	return bullet(indent, fmt.Sprintf("Resolves to the current %s profit of user %s.", r.timeframe(), r.User))
}

func (r *ResolveToUserProfit) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return specificDefault(ctx, r, env, indent, sigFigs)
}

// ResolveToUserCreatedVolume resolves to the currently reported created
// market volume of a user.
type ResolveToUserCreatedVolume struct {
	userRef
}

func (r *ResolveToUserCreatedVolume) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	stats, err := r.stats(ctx, env)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Number(stats.CreatedVolume[r.timeframe()]), nil
}

func (r *ResolveToUserCreatedVolume) ExplainAbstract(indent int) string {
	return bullet(indent, fmt.Sprintf("Resolves to the current %s market volume created by user %s.", r.timeframe(), r.User))
}

func (r *ResolveToUserCreatedVolume) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return specificDefault(ctx, r, env, indent, sigFigs)
}
