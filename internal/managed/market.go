// Package managed ties a Manifold market to the decision trees that settle
// it: boolean triggers that say when to resolve, and value rules that say
// what to resolve to.
package managed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"marketkeeper/internal/manifold"
	"marketkeeper/internal/parallel"
	"marketkeeper/internal/rules"
	"marketkeeper/internal/value"
)

// ErrNoResolution means every value rule abstained, so there is nothing to
// resolve to.
var ErrNoResolution = errors.New("no resolution rule produced a value")

// Resolver is the slice of the API client the market needs to settle itself.
type Resolver interface {
	Resolve(ctx context.Context, m *manifold.MarketData, res value.Resolution) error
	Cancel(ctx context.Context, m *manifold.MarketData) error
	PostComment(ctx context.Context, marketID, markdown string) error
}

// Market is a tracked market with its resolution rules.
type Market struct {
	Data      *manifold.MarketData
	DoResolve []rules.Rule
	ResolveTo []rules.Rule
	Notes     string
}

// New decodes the serialized rule lists against a market snapshot.
func New(data *manifold.MarketData, doResolve, resolveTo []rules.Spec, notes string) (*Market, error) {
	doRules, err := rules.DecodeAll(doResolve)
	if err != nil {
		return nil, fmt.Errorf("market %s: trigger rules: %w", data.ID, err)
	}
	toRules, err := rules.DecodeAll(resolveTo)
	if err != nil {
		return nil, fmt.Errorf("market %s: value rules: %w", data.ID, err)
	}
	if len(toRules) == 0 {
		// A market registered with only triggers settles to its market value
		// at the moment the triggers fire.
		toRules = []rules.Rule{&rules.CurrentValueRule{}}
	}
	return &Market{Data: data, DoResolve: doRules, ResolveTo: toRules, Notes: notes}, nil
}

// ShouldResolve reports whether any trigger rule fires. An already resolved
// market never needs resolving again.
func (m *Market) ShouldResolve(ctx context.Context, env *rules.Env) (bool, error) {
	if m.Data.IsResolved {
		return false, nil
	}
	futures := make([]*parallel.Future[value.Resolution], len(m.DoResolve))
	for i, rule := range m.DoResolve {
		futures[i] = parallel.Submit(env.Pool, func() (value.Resolution, error) {
			return rule.Eval(ctx, env)
		})
	}
	fired := false
	for _, f := range futures {
		v, err := f.Result()
		if err != nil {
			return false, err
		}
		if v.Truthy() {
			fired = true
		}
	}
	return fired, nil
}

// ResolveValue walks the value rules in their declared order and returns the
// first value any of them produces, coerced to the market's outcome shape.
func (m *Market) ResolveValue(ctx context.Context, env *rules.Env) (value.Resolution, error) {
	futures := make([]*parallel.Future[value.Resolution], len(m.ResolveTo))
	for i, rule := range m.ResolveTo {
		futures[i] = parallel.Submit(env.Pool, func() (value.Resolution, error) {
			return rules.Value(ctx, rule, env, value.Shape(m.Data.OutcomeType))
		})
	}
	for _, f := range futures {
		v, err := f.Result()
		if err != nil {
			return value.Abstain(), err
		}
		if !v.IsAbstain() {
			return v, nil
		}
	}
	return value.Abstain(), fmt.Errorf("market %s: %w", m.Data.ID, ErrNoResolution)
}

// Resolve settles the market. A non-abstaining override takes the place of
// the rule-derived value. After a successful resolution the decision tree's
// specific explanation is posted as a comment.
func (m *Market) Resolve(ctx context.Context, client Resolver, env *rules.Env, override value.Resolution) error {
	chosen := override
	if chosen.IsAbstain() {
		var err error
		chosen, err = m.ResolveValue(ctx, env)
		if err != nil {
			return err
		}
	}
	if chosen.IsCancel() {
		return m.Cancel(ctx, client)
	}

	explanation, explainErr := m.ExplainSpecific(ctx, env, 4)

	if err := client.Resolve(ctx, m.Data, chosen); err != nil {
		return err
	}
	m.Data.IsResolved = true

	if explainErr != nil {
		slog.Warn("could not explain resolution", "market", m.Data.ID, "error", explainErr)
		return nil
	}
	if err := client.PostComment(ctx, m.Data.ID, explanation); err != nil {
		slog.Warn("could not post resolution comment", "market", m.Data.ID, "error", err)
	}
	return nil
}

// Cancel refunds the market.
func (m *Market) Cancel(ctx context.Context, client Resolver) error {
	if err := client.Cancel(ctx, m.Data); err != nil {
		return err
	}
	m.Data.IsResolved = true
	return nil
}

// CurrentValue is the live consensus, shaped for the market's outcome type.
func (m *Market) CurrentValue(ctx context.Context, env *rules.Env) (value.Resolution, error) {
	var current rules.CurrentValueRule
	return rules.Value(ctx, &current, env, value.Shape(m.Data.OutcomeType))
}

// ExplainAbstract renders the full resolution criteria, suitable for a
// market description.
func (m *Market) ExplainAbstract() string {
	var b strings.Builder
	b.WriteString("This market will resolve if any of the following are true:\n")
	for _, rule := range m.DoResolve {
		b.WriteString(rule.ExplainAbstract(0))
	}
	b.WriteString("\nIt will resolve based on the following decision tree:\n- If the human operator agrees:\n")
	for _, rule := range m.ResolveTo {
		b.WriteString(rule.ExplainAbstract(1))
	}
	b.WriteString("- Otherwise, a manually provided value\n\n" +
		"Note that the bot operator reserves the right to resolve contrary to the purely automated rules to " +
		"preserve the spirit of the market. All resolutions are first verified by the human operator." +
		"\n\n" +
		"The operator also reserves the right to trade on this market unless otherwise specified. Even if " +
		"otherwise specified, the operator reserves the right to buy shares for subsidy or to trade for the " +
		"purposes of cashing out liquidity.\n")
	return b.String()
}

// ExplainSpecific renders why the market is (or is not) resolving right now,
// with every branch annotated with its current value.
func (m *Market) ExplainSpecific(ctx context.Context, env *rules.Env, sigFigs int) (string, error) {
	var triggers strings.Builder
	for _, rule := range m.DoResolve {
		s, err := rule.ExplainSpecific(ctx, env, 1, sigFigs)
		if err != nil {
			return "", err
		}
		triggers.WriteString(s)
	}

	resolving, err := m.ShouldResolve(ctx, env)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if m.Data.IsResolved || resolving {
		b.WriteString("This market is resolving because of the following trigger(s):\n")
		b.WriteString(triggers.String())
		b.WriteString("\nIt will follow the decision tree below:\n")
	} else {
		b.WriteString("This market is not resolving, because none of the following are true:\n")
		b.WriteString(triggers.String())
		b.WriteString("\nWere it to resolve now, it would follow the decision tree below:\n")
	}
	b.WriteString("- If the human operator agrees:\n")
	for _, rule := range m.ResolveTo {
		s, err := rule.ExplainSpecific(ctx, env, 1, sigFigs)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteString("\nFinal Value: ")
	final, err := m.ResolveValue(ctx, env)
	if err != nil {
		return "", err
	}
	b.WriteString(m.formatFinal(final, sigFigs))
	return b.String(), nil
}

// formatFinal renders a chosen resolution the way traders read it: YES/NO
// for binary outcomes, percentages for probabilities and answer weights.
func (m *Market) formatFinal(final value.Resolution, sigFigs int) string {
	switch {
	case final.IsCancel():
		return "CANCEL"
	case final.Kind() == value.KindBool, m.Data.OutcomeType == value.Binary:
		switch {
		case final.Kind() == value.KindBool && final.Truthy(), final.Kind() == value.KindNumber && final.Num() == 100:
			return "YES"
		case final.Kind() == value.KindBool, final.Kind() == value.KindNumber && final.Num() == 0:
			return "NO"
		default:
			return value.RoundSigFigs(final.Num(), sigFigs) + "%"
		}
	case m.Data.OutcomeType.MCLike():
		weights := final.Map()
		var total float64
		for _, w := range weights {
			total += w
		}
		ids := make([]int, 0, len(weights))
		for id := range weights {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprintf("%d: %s%%", id, value.RoundSigFigs(weights[id]*100/total, sigFigs))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case final.Kind() == value.KindNumber:
		return value.RoundSigFigs(final.Num(), sigFigs)
	default:
		return final.String()
	}
}
