package rules

import (
	"context"
	"fmt"
	"math"
	"sort"

	"marketkeeper/internal/value"
)

func init() {
	register("manifold.this.ThisMarketClosed", func() Rule { return &ThisMarketClosed{} })
	register("manifold.this.CurrentValueRule", func() Rule { return &CurrentValueRule{} })
	register("manifold.this.RoundValueRule", func() Rule { return &RoundValueRule{} })
	register("manifold.this.FibonacciValueRule", func() Rule { return &FibonacciValueRule{} })
	register("manifold.this.PopularValueRule", func() Rule { return &PopularValueRule{} })
}

// ThisMarketClosed resolves True once the tracked market's close date has
// passed.
type ThisMarketClosed struct{}

func (r *ThisMarketClosed) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	if env.Market == nil {
		return value.Abstain(), fmt.Errorf("close date rule needs a market")
	}
	return value.Bool(env.Market.CloseTime.Before(env.now())), nil
}

func (r *ThisMarketClosed) ExplainAbstract(indent int) string {
	return bullet(indent, "If this market reaches its close date")
}

func (r *ThisMarketClosed) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "If this market reaches its close date", indent, sigFigs, r)
}

// currentValue returns the market's live consensus: the probability as a
// percentage for binary markets, the implied number for numeric markets,
// and the full answer mapping otherwise.
func currentValue(env *Env) (value.Resolution, error) {
	m := env.Market
	if m == nil {
		return value.Abstain(), fmt.Errorf("market value rule needs a market")
	}
	switch m.OutcomeType {
	case value.Binary:
		return value.Number(m.Probability * 100), nil
	case value.PseudoNumeric:
		num, err := value.PoolToNumberCPMM1(m.Pool["YES"], m.Pool["NO"], m.P, m.Min, m.Max, m.IsLogScale)
		if err != nil {
			return value.Abstain(), fmt.Errorf("market %s: %w", m.ID, err)
		}
		return value.Number(num), nil
	default:
		answers, err := m.AnswerMap(nil)
		if err != nil {
			return value.Abstain(), err
		}
		return value.Mapping(answers), nil
	}
}

// CurrentValueRule resolves to the current market-consensus value.
type CurrentValueRule struct{}

func (r *CurrentValueRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	return currentValue(env)
}

func (r *CurrentValueRule) ExplainAbstract(indent int) string {
	return bullet(indent, "Resolves to the current market value")
}

func (r *CurrentValueRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "Resolves to the current market value", indent, sigFigs, r)
}

// RoundValueRule resolves to the current consensus rounded to the nearest
// whole value. Multi-outcome markets have no single value to round, so the
// rule refuses them.
type RoundValueRule struct{}

func (r *RoundValueRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	m := env.Market
	if m == nil {
		return value.Abstain(), fmt.Errorf("round value rule needs a market")
	}
	if m.OutcomeType.MCLike() {
		return value.Abstain(), fmt.Errorf("round value rule cannot operate on %s market %s", m.OutcomeType, m.ID)
	}
	if m.OutcomeType == value.Binary {
		return value.Bool(math.Round(m.Probability) != 0), nil
	}
	v, err := currentValue(env)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Number(math.Round(v.Num())), nil
}

func (r *RoundValueRule) ExplainAbstract(indent int) string {
	return bullet(indent, "Resolves to round(MKT)")
}

func (r *RoundValueRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "Resolves to round(MKT)", indent, sigFigs, r)
}

// FibonacciValueRule weights each answer by the fibonacci rank of its
// probability: the most probable answer gets the largest fibonacci number.
type FibonacciValueRule struct {
	Exclude     []int   `json:"exclude"`
	MinRewarded float64 `json:"min_rewarded"`
}

func (r *FibonacciValueRule) minRewarded() float64 {
	if r.MinRewarded == 0 {
		return 0.0001
	}
	return r.MinRewarded
}

func (r *FibonacciValueRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	if env.Market == nil {
		return value.Abstain(), fmt.Errorf("fibonacci rule needs a market")
	}
	exclude := map[int]bool{}
	for _, id := range r.Exclude {
		exclude[id] = true
	}
	floor := r.minRewarded()
	answers, err := env.Market.AnswerMap(exclude, func(id int, probability float64) bool {
		return probability < floor
	})
	if err != nil {
		return value.Abstain(), err
	}

	// Rank ascending by probability. Ties keep the market's answer order
	// so the result does not depend on map iteration.
	rank := make([]int, 0, len(answers))
	for _, id := range env.Market.AnswerOrder() {
		if _, ok := answers[id]; ok {
			rank = append(rank, id)
		}
	}
	sort.SliceStable(rank, func(i, j int) bool {
		return answers[rank[i]] < answers[rank[j]]
	})

	fib := value.Fibonacci()
	weighted := make(map[int]float64, len(rank))
	for _, id := range rank {
		weighted[id] = fib()
	}
	return value.Mapping(value.Normalize(weighted)), nil
}

func (r *FibonacciValueRule) ExplainAbstract(indent int) string {
	out := bullet(indent, "Weight each* answer to the fibonacci rank of their probability")
	out += bullet(indent+1, fmt.Sprintf("Filter out IDs in %v, probabilities below %v%%", r.Exclude, r.minRewarded()*100))
	out += bullet(indent+1, "Sort by probability")
	out += bullet(indent+1, "Iterate over this and the fibonacci numbers in lockstep. Those are the weights")
	return out
}

func (r *FibonacciValueRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return specificDefault(ctx, r, env, indent, sigFigs)
}

// PopularValueRule resolves to the most probable answers, weighted by their
// probability.
type PopularValueRule struct {
	Size int `json:"size"`
}

func (r *PopularValueRule) size() int {
	if r.Size < 1 {
		return 1
	}
	return r.Size
}

func (r *PopularValueRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	if env.Market == nil {
		return value.Abstain(), fmt.Errorf("popular value rule needs a market")
	}
	answers, err := env.Market.AnswerMap(nil)
	if err != nil {
		return value.Abstain(), err
	}
	order := env.Market.AnswerOrder()

	final := map[int]float64{}
	for i := 0; i < r.size(); i++ {
		best, found := 0, false
		for _, id := range order {
			probability, ok := answers[id]
			if !ok {
				continue
			}
			if !found || probability > answers[best] {
				best, found = id, true
			}
		}
		if !found {
			break
		}
		final[best] = answers[best]
		delete(answers, best)
	}
	return value.Mapping(value.Normalize(final)), nil
}

func (r *PopularValueRule) ExplainAbstract(indent int) string {
	return bullet(indent, fmt.Sprintf("Resolves to the %d most probable answers, weighted by their probability.", r.size()))
}

func (r *PopularValueRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return specificDefault(ctx, r, env, indent, sigFigs)
}
