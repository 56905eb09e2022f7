package rules

import (
	"context"
	"fmt"
	"strings"

	"marketkeeper/internal/manifold"
	"marketkeeper/internal/value"
)

func init() {
	register("manifold.other.OtherMarketClosed", func() Rule { return &OtherMarketClosed{} })
	register("manifold.other.OtherMarketResolved", func() Rule { return &OtherMarketResolved{} })
	register("manifold.other.OtherMarketValue", func() Rule { return &OtherMarketValue{} })
	register("manifold.other.AmplifiedOddsRule", func() Rule { return &AmplifiedOddsRule{} })
}

// marketRef identifies another Manifold market by id, slug, or full URL.
// Lookups by slug remember the resolved id so later passes hit the id cache.
type marketRef struct {
	ID   string `json:"id_"`
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

func (m *marketRef) label() string {
	switch {
	case m.ID != "":
		return m.ID
	case m.Slug != "":
		return m.Slug
	default:
		return m.URL
	}
}

func (m *marketRef) market(ctx context.Context, env *Env) (*manifold.MarketData, error) {
	if env.Markets == nil {
		return nil, fmt.Errorf("market reference %s: no market source configured", m.label())
	}
	if m.ID != "" {
		return env.Markets.MarketByID(ctx, m.ID)
	}
	slug := m.Slug
	if slug == "" && m.URL != "" {
		trimmed := strings.TrimRight(m.URL, "/")
		slug = trimmed[strings.LastIndexByte(trimmed, '/')+1:]
	}
	if slug == "" {
		return nil, fmt.Errorf("market reference needs an id, slug, or url")
	}
	src, ok := env.Markets.(manifold.SlugSource)
	if !ok {
		return nil, fmt.Errorf("market reference %s: source does not support slug lookups", slug)
	}
	mkt, err := src.MarketBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	m.ID = mkt.ID
	return mkt, nil
}

// OtherMarketClosed resolves True once the referenced market has resolved or
// passed its close date.
type OtherMarketClosed struct {
	marketRef
}

func (r *OtherMarketClosed) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	mkt, err := r.market(ctx, env)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(mkt.IsResolved || mkt.CloseTime.Before(env.now())), nil
}

func (r *OtherMarketClosed) ExplainAbstract(indent int) string {
	return bullet(indent, fmt.Sprintf("If `%s` closes.", r.label()))
}

func (r *OtherMarketClosed) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	mkt, err := r.market(ctx, env)
	if err != nil {
		return "", err
	}
	raw, err := r.Eval(ctx, env)
	if err != nil {
		return "", err
	}
	return bullet(indent, fmt.Sprintf("If `%s` closes (%s). (-> %s)", r.label(), mkt.Question, raw.String())), nil
}

// OtherMarketResolved resolves True once the referenced market is resolved.
type OtherMarketResolved struct {
	marketRef
}

func (r *OtherMarketResolved) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	mkt, err := r.market(ctx, env)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(mkt.IsResolved), nil
}

func (r *OtherMarketResolved) ExplainAbstract(indent int) string {
	return bullet(indent, fmt.Sprintf("If `%s` is resolved.", r.label()))
}

func (r *OtherMarketResolved) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	mkt, err := r.market(ctx, env)
	if err != nil {
		return "", err
	}
	raw, err := r.Eval(ctx, env)
	if err != nil {
		return "", err
	}
	return bullet(indent, fmt.Sprintf("If `%s` is resolved (%s). (-> %s)", r.label(), mkt.Question, raw.String())), nil
}

// binaryValue reduces a market to its binary consensus: the resolved outcome
// if it has one, otherwise the live probability.
func binaryValue(mkt *manifold.MarketData) value.Resolution {
	if mkt.IsResolved {
		switch mkt.Resolution {
		case "YES":
			return value.Bool(true)
		case "NO":
			return value.Bool(false)
		}
		return value.Number(mkt.ResolutionProb)
	}
	return value.Number(mkt.Probability)
}

// OtherMarketValue resolves to the resolved (or current, if not resolved)
// value of another market.
type OtherMarketValue struct {
	marketRef
}

func (r *OtherMarketValue) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	mkt, err := r.market(ctx, env)
	if err != nil {
		return value.Abstain(), err
	}
	return otherMarketValue(mkt)
}

func otherMarketValue(mkt *manifold.MarketData) (value.Resolution, error) {
	if mkt.Resolution == "CANCEL" {
		return value.Cancel(), nil
	}
	switch mkt.OutcomeType {
	case value.Binary:
		return value.Number(binaryValue(mkt).Num() * 100), nil
	case value.PseudoNumeric:
		return value.Number(value.ProbToNumberCPMM1(binaryValue(mkt).Num(), mkt.Min, mkt.Max, mkt.IsLogScale)), nil
	default:
		answers, err := mkt.AnswerMap(nil)
		if err != nil {
			return value.Abstain(), err
		}
		return value.Mapping(answers), nil
	}
}

func (r *OtherMarketValue) ExplainAbstract(indent int) string {
	return bullet(indent, fmt.Sprintf("Resolved (or current, if not resolved) value of `%s`.", r.label()))
}

func (r *OtherMarketValue) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	mkt, err := r.market(ctx, env)
	if err != nil {
		return "", err
	}
	raw, err := otherMarketValue(mkt)
	if err != nil {
		return "", err
	}
	var rendered string
	switch {
	case raw.IsCancel():
		rendered = "CANCEL"
	case mkt.OutcomeType == value.Binary:
		rendered = value.RoundSigFigs(raw.Num(), sigFigs) + "%"
	case mkt.OutcomeType == value.PseudoNumeric:
		rendered = value.RoundSigFigs(raw.Num(), sigFigs)
	default:
		rendered = raw.String()
	}
	return bullet(indent, fmt.Sprintf("Resolved (or current, if not resolved) value of `%s` (%s) (-> %s)", r.label(), mkt.Question, rendered)), nil
}

// AmplifiedOddsRule imitates the amplified odds scheme: YES passes through,
// NO survives only with probability 1/a, and the rest of the NO mass is
// refunded. A trader should price YES at p/(p+(1-p)/a).
type AmplifiedOddsRule struct {
	marketRef
	Seed   Seed `json:"seed"`
	A      int  `json:"a"`
	Rounds int  `json:"rounds"`
}

func (r *AmplifiedOddsRule) rounds() int {
	if r.Rounds < 1 {
		return 1
	}
	return r.Rounds
}

func (r *AmplifiedOddsRule) a() float64 {
	if r.A < 1 {
		return 1
	}
	return float64(r.A)
}

func (r *AmplifiedOddsRule) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	mkt, err := r.market(ctx, env)
	if err != nil {
		return value.Abstain(), err
	}
	val := binaryValue(mkt)
	if val.Kind() == value.KindBool {
		if val.Truthy() {
			return value.Bool(true), nil
		}
		// The published commitment is seed plus round count, so the draw
		// replays the same burn-in and keeps only the final value.
		rng := r.Seed.Source()
		var draw float64
		for i := 0; i < r.rounds(); i++ {
			draw = rng.Float64()
		}
		if draw < 1/r.a() {
			return value.Bool(false), nil
		}
		return value.Cancel(), nil
	}
	p := val.Num()
	return value.Number(p / (p + (1-p)/r.a()) * 100), nil
}

func (r *AmplifiedOddsRule) ExplainAbstract(indent int) string {
	out := bullet(indent, "Amplified odds:")
	out += bullet(indent+1, "If the referenced market resolves YES, resolve YES")
	out += bullet(indent+2, fmt.Sprintf("Resolved (or current, if not resolved) value of `%s`.", r.label()))
	out += bullet(indent+1, "If it resolved NO, generate a random number using a predetermined seed")
	out += bullet(indent+2, fmt.Sprintf("If the number is less than `1 / a` (%d -> ~%s), resolve NO", r.A, value.RoundSigFigs(1/r.a(), 4)))
	out += bullet(indent+2, "Otherwise, resolve N/A")
	out += bullet(indent+1, "Otherwise, resolve to the equivalent price of the reference market")
	return out
}

func (r *AmplifiedOddsRule) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	raw, err := r.Eval(ctx, env)
	if err != nil {
		return "", err
	}
	head := "Amplified odds: (-> CANCEL)"
	if !raw.IsCancel() {
		pct := raw.Num()
		if raw.Kind() == value.KindBool {
			pct *= 100
		}
		head = fmt.Sprintf("Amplified odds: (-> %s%%)", value.RoundSigFigs(pct, sigFigs))
	}
	out := bullet(indent, head)
	out += bullet(indent+1, "If the referenced market resolves True, resolve True")
	other := OtherMarketValue{marketRef: r.marketRef}
	nested, err := other.ExplainSpecific(ctx, env, indent+2, sigFigs)
	if err != nil {
		return "", err
	}
	out += nested
	out += bullet(indent+1, "If it resolved NO, generate a random number using a predetermined seed")
	out += bullet(indent+2, fmt.Sprintf("If the number is less than `1 / a` (%d -> ~%s), resolve NO", r.A, value.RoundSigFigs(1/r.a(), sigFigs)))
	out += bullet(indent+2, "Otherwise, resolve N/A")
	out += bullet(indent+1, "Otherwise, resolve to the equivalent price of the reference market")
	return out, nil
}
