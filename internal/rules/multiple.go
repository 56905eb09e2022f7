package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"marketkeeper/internal/value"
)

func init() {
	register("generic.ResolveMultipleValues", func() Rule { return &ResolveMultipleValues{} })
}

// Share is one weighted branch of a ResolveMultipleValues rule, decoded from
// a two-element array of rule spec and weight.
type Share struct {
	Rule   Rule
	Weight float64
}

func (s *Share) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("share must be an array: %w", err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("share must have exactly 2 elements, got %d", len(parts))
	}
	var spec Spec
	if err := json.Unmarshal(parts[0], &spec); err != nil {
		return err
	}
	r, err := Decode(spec)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(parts[1], &s.Weight); err != nil {
		return fmt.Errorf("share weight: %w", err)
	}
	s.Rule = r
	return nil
}

// ResolveMultipleValues resolves to the weighted union of several other
// value rules. Each branch is coerced to an answer mapping, scaled by its
// weight, and the merged mapping is normalized to sum to one.
type ResolveMultipleValues struct {
	Shares []Share `json:"shares"`
}

func (r *ResolveMultipleValues) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	merged := map[int]float64{}
	for _, share := range r.Shares {
		v, err := Value(ctx, share.Rule, env, value.ShapeFreeResponse)
		if err != nil {
			return value.Abstain(), err
		}
		for idx, weight := range v.Map() {
			merged[idx] += weight * share.Weight
		}
	}
	return value.Mapping(value.Normalize(merged)), nil
}

func (r *ResolveMultipleValues) ExplainAbstract(indent int) string {
	out := bullet(indent, "Resolves to the weighted union of multiple other values.")
	for _, share := range r.Shares {
		out += bullet(indent+1, fmt.Sprintf("At a weight of %v", share.Weight))
		out += share.Rule.ExplainAbstract(indent + 2)
	}
	return out
}

func (r *ResolveMultipleValues) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	raw, err := r.Eval(ctx, env)
	if err != nil {
		return "", err
	}
	out := bullet(indent, "Resolves to the weighted union of multiple other values. (-> "+raw.String()+")")
	for _, share := range r.Shares {
		out += bullet(indent+1, fmt.Sprintf("At a weight of %v", share.Weight))
		s, err := share.Rule.ExplainSpecific(ctx, env, indent+2, sigFigs)
		if err != nil {
			return "", err
		}
		out += s
	}
	return out, nil
}
