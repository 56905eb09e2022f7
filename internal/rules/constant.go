package rules

import (
	"context"
	"fmt"

	"marketkeeper/internal/value"
)

func init() {
	register("generic.ResolveToValue", func() Rule { return &ResolveToValue{} })
}

// ResolveToValue resolves to a fixed, pre-specified value.
type ResolveToValue struct {
	ResolveValue value.Resolution `json:"resolve_value"`
}

func (r *ResolveToValue) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	return r.ResolveValue, nil
}

func (r *ResolveToValue) ExplainAbstract(indent int) string {
	return bullet(indent, fmt.Sprintf("Resolves to the specific value %s", r.ResolveValue.String()))
}

func (r *ResolveToValue) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return r.ExplainAbstract(indent), nil
}
