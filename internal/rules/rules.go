// Package rules implements the decision trees that tracked markets resolve
// by. A tree is built from small composable rules: boolean triggers decide
// WHEN a market should resolve, and value rules decide WHAT it resolves to.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"marketkeeper/internal/manifold"
	"marketkeeper/internal/parallel"
	"marketkeeper/internal/tracker"
	"marketkeeper/internal/value"
)

// Rule is a node in a decision tree. Eval returns the node's raw value,
// which callers coerce to the market's outcome shape. ExplainAbstract
// renders the branch without market data; ExplainSpecific renders it with
// the values the branch currently evaluates to.
type Rule interface {
	Eval(ctx context.Context, env *Env) (value.Resolution, error)
	ExplainAbstract(indent int) string
	ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error)
}

// Env carries everything a rule may consult during evaluation.
type Env struct {
	// Market is the market the tree belongs to.
	Market *manifold.MarketData
	// Markets resolves references to other markets. Wrap it in a
	// manifold.CachedSource so repeated references cost one fetch.
	Markets manifold.MarketSource
	// Users serves user-statistic rules.
	Users manifold.UserSource
	// Tracker serves GitHub issue and pull request rules.
	Tracker tracker.Fetcher
	// Pool bounds concurrent child evaluation. Nil runs children inline.
	Pool *parallel.Pool
	// Now pins the evaluation clock. Zero means the wall clock.
	Now time.Time
}

func (e *Env) now() time.Time {
	if e.Now.IsZero() {
		return time.Now().UTC()
	}
	return e.Now
}

// Value evaluates a rule and coerces the result to the given shape.
func Value(ctx context.Context, r Rule, env *Env, shape value.Shape) (value.Resolution, error) {
	raw, err := r.Eval(ctx, env)
	if err != nil {
		return value.Abstain(), err
	}
	marketID := ""
	if env.Market != nil {
		marketID = env.Market.ID
	}
	return value.Coerce(raw, shape, marketID)
}

// Spec is the serialized form of a rule: a two-element JSON array of the
// rule's registered name and its keyword arguments.
type Spec struct {
	Name   string
	Kwargs json.RawMessage
}

func (s *Spec) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("rule spec must be an array: %w", err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("rule spec must have exactly 2 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &s.Name); err != nil {
		return fmt.Errorf("rule spec name: %w", err)
	}
	s.Kwargs = parts[1]
	return nil
}

func (s Spec) MarshalJSON() ([]byte, error) {
	kwargs := s.Kwargs
	if len(kwargs) == 0 {
		kwargs = json.RawMessage(`{}`)
	}
	return json.Marshal([2]json.RawMessage{json.RawMessage(fmt.Sprintf("%q", s.Name)), kwargs})
}

var registry = map[string]func() Rule{}

// register binds a qualified rule name to a factory. Called from init
// functions; a duplicate name is a programming error.
func register(name string, factory func() Rule) {
	if _, ok := registry[name]; ok {
		panic("rules: duplicate registration for " + name)
	}
	registry[name] = factory
}

// Names lists every registered rule name in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode builds a rule tree from its serialized spec.
func Decode(s Spec) (Rule, error) {
	factory, ok := registry[s.Name]
	if !ok {
		return nil, fmt.Errorf("unknown rule %q", s.Name)
	}
	r := factory()
	kwargs := s.Kwargs
	if len(kwargs) == 0 {
		kwargs = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(kwargs, r); err != nil {
		return nil, fmt.Errorf("decoding rule %q: %w", s.Name, err)
	}
	return r, nil
}

// DecodeAll decodes a list of serialized rules, failing on the first error.
func DecodeAll(specs []Spec) ([]Rule, error) {
	out := make([]Rule, 0, len(specs))
	for i, s := range specs {
		r, err := Decode(s)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Child wraps a single nested rule so trees decode recursively from JSON.
type Child struct {
	Rule Rule
}

func (c *Child) UnmarshalJSON(data []byte) error {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	r, err := Decode(s)
	if err != nil {
		return err
	}
	c.Rule = r
	return nil
}

// Children wraps a list of nested rules.
type Children []Child

// Rules unwraps to the plain rule slice.
func (cs Children) Rules() []Rule {
	out := make([]Rule, len(cs))
	for i, c := range cs {
		out[i] = c.Rule
	}
	return out
}

// bullet renders one explanation line at the given tree depth.
func bullet(indent int, text string) string {
	return strings.Repeat("  ", indent) + "- " + text + "\n"
}

// specificDefault is the fallback specific explanation: the abstract line
// with the current value appended.
func specificDefault(ctx context.Context, r Rule, env *Env, indent, sigFigs int) (string, error) {
	raw, err := r.Eval(ctx, env)
	if err != nil {
		return "", err
	}
	abstract := strings.TrimRight(r.ExplainAbstract(indent), "\n")
	return abstract + " (-> " + formatValue(raw, sigFigs) + ")\n", nil
}

// formatValue renders a raw rule value for human-facing explanations.
func formatValue(raw value.Resolution, sigFigs int) string {
	switch raw.Kind() {
	case value.KindNumber:
		return value.RoundSigFigs(raw.Num(), sigFigs)
	default:
		return raw.String()
	}
}

// evalChildren dispatches every child through the pool, then joins in order.
func evalChildren(ctx context.Context, children []Rule, env *Env) ([]value.Resolution, error) {
	futures := make([]*parallel.Future[value.Resolution], len(children))
	for i, child := range children {
		futures[i] = parallel.Submit(env.Pool, func() (value.Resolution, error) {
			return child.Eval(ctx, env)
		})
	}
	out := make([]value.Resolution, len(children))
	for i, f := range futures {
		v, err := f.Result()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
