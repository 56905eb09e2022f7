package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketkeeper/internal/value"
)

func children(rules ...Rule) Children {
	out := make(Children, len(rules))
	for i, r := range rules {
		out[i] = child(r)
	}
	return out
}

func TestAdditiveRule(t *testing.T) {
	r := &AdditiveRule{Rules: children(
		constant(value.Number(10)),
		constant(value.Number(2.5)),
		constant(value.Bool(true)),
	)}
	got, err := r.Eval(context.Background(), &Env{})
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Number(13.5)))

	// An empty sum is zero.
	got, err = (&AdditiveRule{}).Eval(context.Background(), &Env{})
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Number(0)))
}

func TestAdditiveRule_CancelPropagates(t *testing.T) {
	r := &AdditiveRule{Rules: children(
		constant(value.Number(10)),
		constant(value.Cancel()),
	)}
	got, err := r.Eval(context.Background(), &Env{})
	require.NoError(t, err)
	assert.True(t, got.IsCancel())
}

func TestMultiplicitiveRule(t *testing.T) {
	r := &MultiplicitiveRule{Rules: children(
		constant(value.Number(4)),
		constant(value.Number(2.5)),
		constant(value.String("3")),
	)}
	got, err := r.Eval(context.Background(), &Env{})
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Number(30)))

	r = &MultiplicitiveRule{Rules: children(
		constant(value.Cancel()),
		constant(value.Number(2)),
	)}
	got, err = r.Eval(context.Background(), &Env{})
	require.NoError(t, err)
	assert.True(t, got.IsCancel())
}

func TestModulusRule(t *testing.T) {
	mod := func(a, b value.Resolution) value.Resolution {
		t.Helper()
		got, err := (&ModulusRule{Rule1: child(constant(a)), Rule2: child(constant(b))}).
			Eval(context.Background(), &Env{})
		require.NoError(t, err)
		return got
	}

	assert.True(t, mod(value.Number(7), value.Number(3)).Equal(value.Number(1)))
	// Floored modulo takes the divisor's sign.
	assert.True(t, mod(value.Number(-7), value.Number(3)).Equal(value.Number(2)))
	assert.True(t, mod(value.Number(7), value.Number(-3)).Equal(value.Number(-2)))
	assert.True(t, mod(value.Cancel(), value.Number(3)).IsCancel())
	assert.True(t, mod(value.Number(7), value.Cancel()).IsCancel())
}

func TestPymod(t *testing.T) {
	assert.Equal(t, 1.0, pymod(7, 3))
	assert.Equal(t, 2.0, pymod(-7, 3))
	assert.Equal(t, -2.0, pymod(7, -3))
	assert.Equal(t, -1.0, pymod(-7, -3))
	assert.Equal(t, 0.0, pymod(6, 3))
	assert.InDelta(t, 0.5, pymod(3.5, 1), 1e-12)
}
