package rules

import (
	"context"

	"marketkeeper/internal/value"
)

func init() {
	register("generic.NegateRule", func() Rule { return &NegateRule{} })
	register("generic.EitherRule", func() Rule { return &EitherRule{} })
	register("generic.BothRule", func() Rule { return &BothRule{} })
	register("generic.NANDRule", func() Rule { return &NANDRule{} })
	register("generic.NeitherRule", func() Rule { return &NeitherRule{} })
	register("generic.XORRule", func() Rule { return &XORRule{} })
	register("generic.XNORRule", func() Rule { return &XNORRule{} })
	register("generic.ImpliesRule", func() Rule { return &ImpliesRule{} })
	register("generic.ConditionalRule", func() Rule { return &ConditionalRule{} })
}

// stubAbstract renders a one-line summary followed by the children's own
// abstract explanations, one level deeper.
func stubAbstract(stub string, indent int, children ...Rule) string {
	out := bullet(indent, stub)
	for _, c := range children {
		out += c.ExplainAbstract(indent + 1)
	}
	return out
}

// stubSpecific is stubAbstract with the rule's current value appended to the
// summary line.
func stubSpecific(ctx context.Context, env *Env, stub string, indent, sigFigs int, self Rule, children ...Rule) (string, error) {
	raw, err := self.Eval(ctx, env)
	if err != nil {
		return "", err
	}
	out := bullet(indent, stub+" (-> "+formatValue(raw, sigFigs)+")")
	for _, c := range children {
		s, err := c.ExplainSpecific(ctx, env, indent+1, sigFigs)
		if err != nil {
			return "", err
		}
		out += s
	}
	return out, nil
}

// evalPair evaluates the two operands of a binary combinator concurrently.
func evalPair(ctx context.Context, env *Env, a, b Rule) (value.Resolution, value.Resolution, error) {
	vals, err := evalChildren(ctx, []Rule{a, b}, env)
	if err != nil {
		return value.Abstain(), value.Abstain(), err
	}
	return vals[0], vals[1], nil
}

// NegateRule inverts the truth value of its child.
type NegateRule struct {
	Child Child `json:"child"`
}

func (r *NegateRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	v, err := r.Child.Rule.Eval(ctx, env)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(!v.Truthy()), nil
}

func (r *NegateRule) ExplainAbstract(indent int) string {
	return stubAbstract("Resolve False if the below is True, and vice versa", indent, r.Child.Rule)
}

func (r *NegateRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "Resolve False if the below is True, and vice versa", indent, sigFigs, r, r.Child.Rule)
}

// EitherRule is the logical OR of its two operands.
type EitherRule struct {
	Rule1 Child `json:"rule1"`
	Rule2 Child `json:"rule2"`
}

func (r *EitherRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	a, b, err := evalPair(ctx, env, r.Rule1.Rule, r.Rule2.Rule)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(a.Truthy() || b.Truthy()), nil
}

func (r *EitherRule) ExplainAbstract(indent int) string {
	return stubAbstract("Resolve True if either of the below resolves True, otherwise resolve False", indent, r.Rule1.Rule, r.Rule2.Rule)
}

func (r *EitherRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "Resolve True if either of the below resolves True, otherwise resolve False", indent, sigFigs, r, r.Rule1.Rule, r.Rule2.Rule)
}

// BothRule is the logical AND of its two operands.
type BothRule struct {
	Rule1 Child `json:"rule1"`
	Rule2 Child `json:"rule2"`
}

func (r *BothRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	a, b, err := evalPair(ctx, env, r.Rule1.Rule, r.Rule2.Rule)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(a.Truthy() && b.Truthy()), nil
}

func (r *BothRule) ExplainAbstract(indent int) string {
	return stubAbstract("Resolve True if both of the below resolve to True, otherwise resolve False", indent, r.Rule1.Rule, r.Rule2.Rule)
}

func (r *BothRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "Resolve True if both of the below resolve to True, otherwise resolve False", indent, sigFigs, r, r.Rule1.Rule, r.Rule2.Rule)
}

// NANDRule is the negated AND of its two operands.
type NANDRule struct {
	Rule1 Child `json:"rule1"`
	Rule2 Child `json:"rule2"`
}

func (r *NANDRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	a, b, err := evalPair(ctx, env, r.Rule1.Rule, r.Rule2.Rule)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(!(a.Truthy() && b.Truthy())), nil
}

func (r *NANDRule) ExplainAbstract(indent int) string {
	return stubAbstract("Resolve True if one or more of the below resolves False, otherwise resolve False", indent, r.Rule1.Rule, r.Rule2.Rule)
}

func (r *NANDRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "Resolve True if one or more of the below resolves False, otherwise resolve False", indent, sigFigs, r, r.Rule1.Rule, r.Rule2.Rule)
}

// NeitherRule is the negated OR of its two operands.
type NeitherRule struct {
	Rule1 Child `json:"rule1"`
	Rule2 Child `json:"rule2"`
}

func (r *NeitherRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	a, b, err := evalPair(ctx, env, r.Rule1.Rule, r.Rule2.Rule)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(!(a.Truthy() || b.Truthy())), nil
}

func (r *NeitherRule) ExplainAbstract(indent int) string {
	return stubAbstract("Resolve False if either of the below resolve to True, otherwise resolve True", indent, r.Rule1.Rule, r.Rule2.Rule)
}

func (r *NeitherRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "Resolve False if either of the below resolve to True, otherwise resolve True", indent, sigFigs, r, r.Rule1.Rule, r.Rule2.Rule)
}

// XORRule resolves True when exactly one operand is truthy.
type XORRule struct {
	Rule1 Child `json:"rule1"`
	Rule2 Child `json:"rule2"`
}

func (r *XORRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	a, b, err := evalPair(ctx, env, r.Rule1.Rule, r.Rule2.Rule)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(a.Truthy() != b.Truthy()), nil
}

func (r *XORRule) ExplainAbstract(indent int) string {
	return stubAbstract("Resolve False if the below resolve to the same value, otherwise resolve True", indent, r.Rule1.Rule, r.Rule2.Rule)
}

func (r *XORRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "Resolve False if the below resolve to the same value, otherwise resolve True", indent, sigFigs, r, r.Rule1.Rule, r.Rule2.Rule)
}

// XNORRule resolves True when both operands agree.
type XNORRule struct {
	Rule1 Child `json:"rule1"`
	Rule2 Child `json:"rule2"`
}

func (r *XNORRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	a, b, err := evalPair(ctx, env, r.Rule1.Rule, r.Rule2.Rule)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(a.Truthy() == b.Truthy()), nil
}

func (r *XNORRule) ExplainAbstract(indent int) string {
	return stubAbstract("Resolve True if the below resolve to the same value, otherwise resolve False", indent, r.Rule1.Rule, r.Rule2.Rule)
}

func (r *XNORRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "Resolve True if the below resolve to the same value, otherwise resolve False", indent, sigFigs, r, r.Rule1.Rule, r.Rule2.Rule)
}

// ImpliesRule is material implication: False premise means True.
type ImpliesRule struct {
	Rule1 Child `json:"rule1"`
	Rule2 Child `json:"rule2"`
}

func (r *ImpliesRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	a, b, err := evalPair(ctx, env, r.Rule1.Rule, r.Rule2.Rule)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(!a.Truthy() || b.Truthy()), nil
}

func (r *ImpliesRule) ExplainAbstract(indent int) string {
	return stubAbstract("Resolve True if the next line resolves False, otherwise resolves to the value of the item after", indent, r.Rule1.Rule, r.Rule2.Rule)
}

func (r *ImpliesRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "Resolve True if the next line resolves False, otherwise resolves to the value of the item after", indent, sigFigs, r, r.Rule1.Rule, r.Rule2.Rule)
}

// ConditionalRule cancels the market when the premise is falsy, otherwise
// passing the consequent's raw value through.
type ConditionalRule struct {
	Rule1 Child `json:"rule1"`
	Rule2 Child `json:"rule2"`
}

func (r *ConditionalRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	a, b, err := evalPair(ctx, env, r.Rule1.Rule, r.Rule2.Rule)
	if err != nil {
		return value.Abstain(), err
	}
	if !a.Truthy() {
		return value.Cancel(), nil
	}
	return b, nil
}

func (r *ConditionalRule) ExplainAbstract(indent int) string {
	return stubAbstract("Cancels if the next line resolves False, otherwise resolves to the value of the item after", indent, r.Rule1.Rule, r.Rule2.Rule)
}

func (r *ConditionalRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return stubSpecific(ctx, env, "Cancels if the next line resolves False, otherwise resolves to the value of the item after", indent, sigFigs, r, r.Rule1.Rule, r.Rule2.Rule)
}
