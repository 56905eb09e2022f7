package rules

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strconv"

	"marketkeeper/internal/value"
)

func init() {
	register("generic.ResolveRandomSeed", func() Rule { return &ResolveRandomSeed{} })
	register("generic.ResolveRandomIndex", func() Rule { return &ResolveRandomIndex{} })
}

// Seed is a PRNG seed decoded from a rule spec. Integers seed directly;
// strings and floats are hashed so any JSON scalar works. The same spec
// always yields the same generator, which is what makes these rules
// auditable after the fact.
type Seed struct {
	val int64
}

func (s *Seed) UnmarshalJSON(data []byte) error {
	if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		s.val = n
		return nil
	}
	h := fnv.New64a()
	h.Write(data)
	s.val = int64(h.Sum64())
	return nil
}

func (s Seed) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(s.val, 10)), nil
}

// Source builds the deterministic generator for this seed.
func (s Seed) Source() *rand.Rand {
	return rand.New(rand.NewSource(s.val))
}

// ResolveRandomSeed resolves to a draw from a seeded generator. The method
// selects the kind of draw, and rounds discards earlier draws so a market
// can commit to "the Nth number from this seed".
type ResolveRandomSeed struct {
	Seed   Seed      `json:"seed"`
	Method string    `json:"method"`
	Rounds int       `json:"rounds"`
	Args   []float64 `json:"args"`
}

func (r *ResolveRandomSeed) rounds() int {
	if r.Rounds < 1 {
		return 1
	}
	return r.Rounds
}

func (r *ResolveRandomSeed) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	rng := r.Seed.Source()
	method := r.Method
	if method == "" {
		method = "random"
	}
	var out float64
	for i := 0; i < r.rounds(); i++ {
		switch method {
		case "random":
			out = rng.Float64()
		case "randrange":
			if len(r.Args) < 2 {
				return value.Abstain(), fmt.Errorf("randrange needs start and stop arguments")
			}
			start, stop := int(r.Args[0]), int(r.Args[1])
			if stop <= start {
				return value.Abstain(), fmt.Errorf("randrange needs start < stop, got [%d, %d)", start, stop)
			}
			out = float64(start + rng.Intn(stop-start))
		default:
			return value.Abstain(), fmt.Errorf("unknown random method %q", method)
		}
	}
	return value.Number(out), nil
}

func (r *ResolveRandomSeed) ExplainAbstract(indent int) string {
	return bullet(indent, "Resolve to a random value drawn from a pre-seeded generator")
}

func (r *ResolveRandomSeed) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return specificDefault(ctx, r, env, indent, sigFigs)
}

// ResolveRandomIndex resolves to a random answer index. With a size it draws
// uniformly from [start, start+size); without one it draws from the live
// answer pool at or above start, weighted by each answer's share.
type ResolveRandomIndex struct {
	Seed   Seed `json:"seed"`
	Size   *int `json:"size"`
	Start  int  `json:"start"`
	Rounds int  `json:"rounds"`
}

func (r *ResolveRandomIndex) rounds() int {
	if r.Rounds < 1 {
		return 1
	}
	return r.Rounds
}

func (r *ResolveRandomIndex) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	rng := r.Seed.Source()
	if r.Size != nil {
		if *r.Size < 1 {
			return value.Abstain(), fmt.Errorf("random index size must be positive, got %d", *r.Size)
		}
		var out int
		for i := 0; i < r.rounds(); i++ {
			out = r.Start + rng.Intn(*r.Size)
		}
		return value.Number(float64(out)), nil
	}

	ids, weights, err := r.pool(env)
	if err != nil {
		return value.Abstain(), err
	}
	var out int
	for i := 0; i < r.rounds(); i++ {
		out = ids[weightedDraw(rng, weights)]
	}
	return value.Number(float64(out)), nil
}

// pool collects the eligible answer ids and their weights in ascending id
// order, so the draw is stable across processes.
func (r *ResolveRandomIndex) pool(env *Env) ([]int, []float64, error) {
	if env.Market == nil {
		return nil, nil, fmt.Errorf("random index rule needs a market")
	}
	ids := make([]int, 0, len(env.Market.Pool))
	for key := range env.Market.Pool {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		if id >= r.Start {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("market %s has no answers at or above index %d", env.Market.ID, r.Start)
	}
	sort.Ints(ids)
	weights := make([]float64, len(ids))
	for i, id := range ids {
		weights[i] = env.Market.Pool[strconv.Itoa(id)]
	}
	return ids, weights, nil
}

func weightedDraw(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	x := rng.Float64() * total
	for i, w := range weights {
		x -= w
		if x < 0 {
			return i
		}
	}
	return len(weights) - 1
}

func (r *ResolveRandomIndex) ExplainAbstract(indent int) string {
	head := "Resolve to a random index, given some original seed. This one operates on a "
	if r.Size != nil {
		return bullet(indent, head+fmt.Sprintf("fixed range of integers in (%d <= x < %d).", r.Start, r.Start+*r.Size))
	}
	return bullet(indent, head+fmt.Sprintf("dynamic range based on the current pool and probabilities, but starting at %d.", r.Start))
}

func (r *ResolveRandomIndex) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return specificDefault(ctx, r, env, indent, sigFigs)
}
