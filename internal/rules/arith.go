package rules

import (
	"context"
	"math"

	"marketkeeper/internal/parallel"
	"marketkeeper/internal/value"
)

func init() {
	register("generic.AdditiveRule", func() Rule { return &AdditiveRule{} })
	register("generic.MultiplicitiveRule", func() Rule { return &MultiplicitiveRule{} })
	register("generic.ModulusRule", func() Rule { return &ModulusRule{} })
}

// evalNumeric dispatches every operand and joins them in order, each coerced
// to the numeric shape. A cancelled operand cancels the whole expression
// without waiting on the rest.
func evalNumeric(ctx context.Context, children []Rule, env *Env) ([]value.Resolution, bool, error) {
	futures := make([]*parallel.Future[value.Resolution], len(children))
	for i, child := range children {
		futures[i] = parallel.Submit(env.Pool, func() (value.Resolution, error) {
			return Value(ctx, child, env, value.ShapePseudoNumeric)
		})
	}
	out := make([]value.Resolution, 0, len(children))
	for _, f := range futures {
		v, err := f.Result()
		if err != nil {
			return nil, false, err
		}
		if v.IsCancel() {
			return nil, true, nil
		}
		out = append(out, v)
	}
	return out, false, nil
}

// AdditiveRule sums its operands, cancelling if any operand cancels.
type AdditiveRule struct {
	Rules Children `json:"rules"`
}

func (r *AdditiveRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	vals, cancelled, err := evalNumeric(ctx, r.Rules.Rules(), env)
	if err != nil {
		return value.Abstain(), err
	}
	if cancelled {
		return value.Cancel(), nil
	}
	var sum float64
	for _, v := range vals {
		sum += v.Num()
	}
	return value.Number(sum), nil
}

func (r *AdditiveRule) ExplainAbstract(indent int) string {
	return stubAbstract("The sum of the below", indent, r.Rules.Rules()...)
}

func (r *AdditiveRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "The sum of the below", indent, sigFigs, r, r.Rules.Rules()...)
}

// MultiplicitiveRule multiplies its operands, cancelling if any operand
// cancels.
type MultiplicitiveRule struct {
	Rules Children `json:"rules"`
}

func (r *MultiplicitiveRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	vals, cancelled, err := evalNumeric(ctx, r.Rules.Rules(), env)
	if err != nil {
		return value.Abstain(), err
	}
	if cancelled {
		return value.Cancel(), nil
	}
	product := 1.0
	for _, v := range vals {
		product *= v.Num()
	}
	return value.Number(product), nil
}

func (r *MultiplicitiveRule) ExplainAbstract(indent int) string {
	return stubAbstract("The product of the below", indent, r.Rules.Rules()...)
}

func (r *MultiplicitiveRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "The product of the below", indent, sigFigs, r, r.Rules.Rules()...)
}

// ModulusRule computes rule1 mod rule2 on raw values, cancelling when either
// side cancels.
type ModulusRule struct {
	Rule1 Child `json:"rule1"`
	Rule2 Child `json:"rule2"`
}

func (r *ModulusRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	a, b, err := evalPair(ctx, env, r.Rule1.Rule, r.Rule2.Rule)
	if err != nil {
		return value.Abstain(), err
	}
	if a.IsCancel() || b.IsCancel() {
		return value.Cancel(), nil
	}
	return value.Number(pymod(a.Num(), b.Num())), nil
}

func (r *ModulusRule) ExplainAbstract(indent int) string {
	return stubAbstract("A mod B, where A is the next line and B the line after", indent, r.Rule1.Rule, r.Rule2.Rule)
}

func (r *ModulusRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "A mod B, where A is the next line and B the line after", indent, sigFigs, r, r.Rule1.Rule, r.Rule2.Rule)
}

// pymod is the floored modulo, so the result always takes the divisor's sign.
func pymod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}
