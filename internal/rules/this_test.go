package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketkeeper/internal/manifold"
	"marketkeeper/internal/value"
)

func binaryMarket(probability float64) *manifold.MarketData {
	return &manifold.MarketData{
		ID:          "this-binary",
		Question:    "Will it happen?",
		OutcomeType: value.Binary,
		Probability: probability,
	}
}

func mcMarket(probs map[int]float64, order ...int) *manifold.MarketData {
	answers := make([]manifold.Answer, 0, len(order))
	for _, id := range order {
		answers = append(answers, manifold.Answer{ID: id, Probability: probs[id]})
	}
	return &manifold.MarketData{
		ID:          "this-mc",
		OutcomeType: value.MultipleChoice,
		Answers:     answers,
	}
}

func TestThisMarketClosed(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m := binaryMarket(0.5)

	m.CloseTime = now.Add(time.Hour)
	got, err := (&ThisMarketClosed{}).Eval(context.Background(), &Env{Market: m, Now: now})
	require.NoError(t, err)
	assert.False(t, got.Truthy())

	m.CloseTime = now.Add(-time.Hour)
	got, err = (&ThisMarketClosed{}).Eval(context.Background(), &Env{Market: m, Now: now})
	require.NoError(t, err)
	assert.True(t, got.Truthy())

	_, err = (&ThisMarketClosed{}).Eval(context.Background(), &Env{})
	assert.Error(t, err)
}

func TestCurrentValueRule_Binary(t *testing.T) {
	got, err := (&CurrentValueRule{}).Eval(context.Background(), &Env{Market: binaryMarket(0.62)})
	require.NoError(t, err)
	assert.InDelta(t, 62, got.Num(), 1e-12)
}

func TestCurrentValueRule_PseudoNumeric(t *testing.T) {
	m := &manifold.MarketData{
		ID:          "this-numeric",
		OutcomeType: value.PseudoNumeric,
		Pool:        map[string]float64{"YES": 100, "NO": 100},
		P:           0.5,
		Min:         0,
		Max:         200,
	}
	got, err := (&CurrentValueRule{}).Eval(context.Background(), &Env{Market: m})
	require.NoError(t, err)
	assert.InDelta(t, 100, got.Num(), 1e-9)
}

func TestCurrentValueRule_MultipleChoice(t *testing.T) {
	m := mcMarket(map[int]float64{1: 0.2, 2: 0.8}, 1, 2)
	got, err := (&CurrentValueRule{}).Eval(context.Background(), &Env{Market: m})
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Mapping(map[int]float64{1: 0.2, 2: 0.8})))
}

func TestRoundValueRule(t *testing.T) {
	got, err := (&RoundValueRule{}).Eval(context.Background(), &Env{Market: binaryMarket(0.7)})
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Bool(true)))

	got, err = (&RoundValueRule{}).Eval(context.Background(), &Env{Market: binaryMarket(0.3)})
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Bool(false)))

	numeric := &manifold.MarketData{
		ID:          "this-numeric",
		OutcomeType: value.PseudoNumeric,
		Pool:        map[string]float64{"YES": 100, "NO": 100},
		P:           0.5,
		Min:         0,
		Max:         75,
	}
	got, err = (&RoundValueRule{}).Eval(context.Background(), &Env{Market: numeric})
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Number(38)))

	_, err = (&RoundValueRule{}).Eval(context.Background(), &Env{Market: mcMarket(map[int]float64{1: 1}, 1)})
	assert.Error(t, err)
}

func TestFibonacciValueRule(t *testing.T) {
	// Ranked ascending by probability the answers get fibonacci weights
	// 1, 1, 2, normalized to quarters.
	m := mcMarket(map[int]float64{1: 0.1, 2: 0.5, 3: 0.05}, 1, 2, 3)
	got, err := (&FibonacciValueRule{}).Eval(context.Background(), &Env{Market: m})
	require.NoError(t, err)
	weights := got.Map()
	assert.InDelta(t, 0.25, weights[3], 1e-12)
	assert.InDelta(t, 0.25, weights[1], 1e-12)
	assert.InDelta(t, 0.5, weights[2], 1e-12)
}

func TestFibonacciValueRule_ExcludesAndFilters(t *testing.T) {
	m := mcMarket(map[int]float64{1: 0.3, 2: 0.6, 3: 0.00005, 4: 0.1}, 1, 2, 3, 4)
	r := &FibonacciValueRule{Exclude: []int{4}}
	got, err := r.Eval(context.Background(), &Env{Market: m})
	require.NoError(t, err)
	weights := got.Map()
	// 3 falls below the default reward floor, 4 is excluded outright.
	assert.NotContains(t, weights, 3)
	assert.NotContains(t, weights, 4)
	assert.InDelta(t, 1.0/3, weights[1], 1e-12)
	assert.InDelta(t, 2.0/3, weights[2], 1e-12)
}

func TestPopularValueRule(t *testing.T) {
	m := mcMarket(map[int]float64{1: 0.1, 2: 0.6, 3: 0.3}, 1, 2, 3)

	got, err := (&PopularValueRule{Size: 1}).Eval(context.Background(), &Env{Market: m})
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Mapping(map[int]float64{2: 1})))

	got, err = (&PopularValueRule{Size: 2}).Eval(context.Background(), &Env{Market: m})
	require.NoError(t, err)
	weights := got.Map()
	assert.InDelta(t, 0.6/0.9, weights[2], 1e-12)
	assert.InDelta(t, 0.3/0.9, weights[3], 1e-12)
	assert.NotContains(t, weights, 1)

	// Size beyond the answer count keeps everything.
	got, err = (&PopularValueRule{Size: 10}).Eval(context.Background(), &Env{Market: m})
	require.NoError(t, err)
	assert.Len(t, got.Map(), 3)
}
