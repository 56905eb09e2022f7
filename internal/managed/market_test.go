package managed

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketkeeper/internal/manifold"
	"marketkeeper/internal/rules"
	"marketkeeper/internal/value"
)

// fakeResolver records the settlement calls a market makes.
type fakeResolver struct {
	resolved  *value.Resolution
	cancelled bool
	comments  []string
}

func (f *fakeResolver) Resolve(ctx context.Context, m *manifold.MarketData, res value.Resolution) error {
	f.resolved = &res
	return nil
}

func (f *fakeResolver) Cancel(ctx context.Context, m *manifold.MarketData) error {
	f.cancelled = true
	return nil
}

func (f *fakeResolver) PostComment(ctx context.Context, marketID, markdown string) error {
	f.comments = append(f.comments, markdown)
	return nil
}

func spec(t *testing.T, raw string) rules.Spec {
	t.Helper()
	var s rules.Spec
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	return s
}

func testMarket(t *testing.T, closeTime time.Time) *Market {
	t.Helper()
	data := &manifold.MarketData{
		ID:          "mkt1",
		Question:    "Will the feature ship this quarter?",
		OutcomeType: value.Binary,
		Probability: 0.8,
		CloseTime:   closeTime,
		URL:         "https://manifold.markets/someone/feature-ship",
	}
	m, err := New(data,
		[]rules.Spec{spec(t, `["manifold.this.ThisMarketClosed", {}]`)},
		[]rules.Spec{spec(t, `["manifold.this.RoundValueRule", {}]`)},
		"added for testing")
	require.NoError(t, err)
	return m
}

func TestNew_RejectsBadSpecs(t *testing.T) {
	data := &manifold.MarketData{ID: "mkt1"}
	_, err := New(data, []rules.Spec{{Name: "bogus.Rule"}}, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trigger rules")

	_, err = New(data, nil, []rules.Spec{{Name: "bogus.Rule"}}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value rules")
}

func TestShouldResolve(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	open := testMarket(t, now.Add(time.Hour))
	fired, err := open.ShouldResolve(context.Background(), &rules.Env{Market: open.Data, Now: now})
	require.NoError(t, err)
	assert.False(t, fired)

	closed := testMarket(t, now.Add(-time.Hour))
	fired, err = closed.ShouldResolve(context.Background(), &rules.Env{Market: closed.Data, Now: now})
	require.NoError(t, err)
	assert.True(t, fired)

	// Already resolved markets never fire again.
	closed.Data.IsResolved = true
	fired, err = closed.ShouldResolve(context.Background(), &rules.Env{Market: closed.Data, Now: now})
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestResolveValue_FirstNonAbstainWins(t *testing.T) {
	data := &manifold.MarketData{ID: "mkt1", OutcomeType: value.PseudoNumeric}
	m, err := New(data, nil, []rules.Spec{
		spec(t, `["generic.ResolveToValue", {"resolve_value": null}]`),
		spec(t, `["generic.ResolveToValue", {"resolve_value": 40}]`),
		spec(t, `["generic.ResolveToValue", {"resolve_value": 99}]`),
	}, "")
	require.NoError(t, err)

	got, err := m.ResolveValue(context.Background(), &rules.Env{Market: data})
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Number(40)))
}

func TestResolveValue_AllAbstain(t *testing.T) {
	data := &manifold.MarketData{ID: "mkt1", OutcomeType: value.Binary}
	m, err := New(data, nil, []rules.Spec{
		spec(t, `["generic.ResolveToValue", {"resolve_value": null}]`),
	}, "")
	require.NoError(t, err)

	_, err = m.ResolveValue(context.Background(), &rules.Env{Market: data})
	assert.ErrorIs(t, err, ErrNoResolution)
}

func TestResolve_UsesRulesAndPostsComment(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m := testMarket(t, now.Add(-time.Hour))
	client := &fakeResolver{}
	env := &rules.Env{Market: m.Data, Now: now}

	require.NoError(t, m.Resolve(context.Background(), client, env, value.Abstain()))
	require.NotNil(t, client.resolved)
	assert.True(t, client.resolved.Equal(value.Bool(true)))
	assert.True(t, m.Data.IsResolved)
	require.Len(t, client.comments, 1)
	assert.Contains(t, client.comments[0], "This market is resolving because of the following trigger(s):")
}

func TestResolve_OverrideBeatsRules(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m := testMarket(t, now.Add(-time.Hour))
	client := &fakeResolver{}
	env := &rules.Env{Market: m.Data, Now: now}

	require.NoError(t, m.Resolve(context.Background(), client, env, value.Number(25)))
	require.NotNil(t, client.resolved)
	assert.True(t, client.resolved.Equal(value.Number(25)))
}

func TestResolve_CancelValueCancelsMarket(t *testing.T) {
	data := &manifold.MarketData{ID: "mkt1", OutcomeType: value.Binary}
	m, err := New(data, nil, []rules.Spec{
		spec(t, `["generic.ResolveToValue", {"resolve_value": "CANCEL"}]`),
	}, "")
	require.NoError(t, err)

	client := &fakeResolver{}
	require.NoError(t, m.Resolve(context.Background(), client, &rules.Env{Market: data}, value.Abstain()))
	assert.True(t, client.cancelled)
	assert.Nil(t, client.resolved)
	assert.True(t, data.IsResolved)
}

func TestExplainAbstract(t *testing.T) {
	m := testMarket(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	text := m.ExplainAbstract()

	assert.True(t, strings.HasPrefix(text, "This market will resolve if any of the following are true:\n"))
	assert.Contains(t, text, "- If this market reaches its close date\n")
	assert.Contains(t, text, "It will resolve based on the following decision tree:\n- If the human operator agrees:\n")
	assert.Contains(t, text, "  - Resolves to round(MKT)\n")
	assert.Contains(t, text, "- Otherwise, a manually provided value\n")
	assert.Contains(t, text, "All resolutions are first verified by the human operator.")
}

func TestExplainSpecific_NotResolving(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m := testMarket(t, now.Add(time.Hour))
	text, err := m.ExplainSpecific(context.Background(), &rules.Env{Market: m.Data, Now: now}, 4)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "This market is not resolving, because none of the following are true:\n"))
	assert.Contains(t, text, "Were it to resolve now, it would follow the decision tree below:\n")
	assert.Contains(t, text, "\nFinal Value: YES")
}

func TestFormatFinal(t *testing.T) {
	binary := &Market{Data: &manifold.MarketData{OutcomeType: value.Binary}}
	assert.Equal(t, "CANCEL", binary.formatFinal(value.Cancel(), 4))
	assert.Equal(t, "YES", binary.formatFinal(value.Bool(true), 4))
	assert.Equal(t, "NO", binary.formatFinal(value.Bool(false), 4))
	assert.Equal(t, "YES", binary.formatFinal(value.Number(100), 4))
	assert.Equal(t, "NO", binary.formatFinal(value.Number(0), 4))
	assert.Equal(t, "72.5%", binary.formatFinal(value.Number(72.5), 4))

	numeric := &Market{Data: &manifold.MarketData{OutcomeType: value.PseudoNumeric}}
	assert.Equal(t, "123.5", numeric.formatFinal(value.Number(123.456), 4))

	mc := &Market{Data: &manifold.MarketData{OutcomeType: value.MultipleChoice}}
	got := mc.formatFinal(value.Mapping(map[int]float64{2: 0.75, 1: 0.25}), 4)
	assert.Equal(t, "{1: 25%, 2: 75%}", got)
}

func TestNew_DefaultsToCurrentValue(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	data := &manifold.MarketData{
		ID:          "mkt2",
		Question:    "Will it rain on Saturday?",
		OutcomeType: value.Binary,
		Probability: 0.62,
		CloseTime:   now.Add(-time.Hour),
	}
	m, err := New(data,
		[]rules.Spec{spec(t, `["manifold.this.ThisMarketClosed", {}]`)},
		nil, "")
	require.NoError(t, err)
	require.Len(t, m.ResolveTo, 1)
	assert.Contains(t, m.ExplainAbstract(), "Resolves to the current market value")

	env := &rules.Env{Market: data, Now: now}
	fired, err := m.ShouldResolve(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, fired)

	res, err := m.ResolveValue(context.Background(), env)
	require.NoError(t, err)
	assert.InDelta(t, 62.0, res.Num(), 1e-9)
}
