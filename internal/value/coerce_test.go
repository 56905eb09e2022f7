package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce_PassThrough(t *testing.T) {
	for _, shape := range []Shape{ShapeNone, ShapeBinary, ShapePseudoNumeric, ShapeFreeResponse, ShapeMultipleChoice} {
		got, err := Coerce(Abstain(), shape, "m1")
		require.NoError(t, err)
		assert.True(t, got.IsAbstain())

		got, err = Coerce(Cancel(), shape, "m1")
		require.NoError(t, err)
		assert.True(t, got.IsCancel())
	}

	// ShapeNone returns anything untouched.
	raw := Mapping(map[int]float64{1: 2, 3: 4})
	got, err := Coerce(raw, ShapeNone, "m1")
	require.NoError(t, err)
	assert.True(t, got.Equal(raw))
}

func TestCoerce_Binary(t *testing.T) {
	tests := []struct {
		name string
		raw  Resolution
		want Resolution
	}{
		{"number", Number(100), Number(100)},
		{"bool", Bool(true), Bool(true)},
		{"numeric string", String("25.5"), Number(25.5)},
		{"single item list", List(Number(7)), Number(7)},
		{"nested single list", List(List(String("3"))), Number(3)},
		{"single entry mapping", Mapping(map[int]float64{4: 1}), Number(4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.raw, ShapePseudoNumeric, "m1")
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestCoerce_BinaryRejects(t *testing.T) {
	for _, raw := range []Resolution{
		String("not a number"),
		List(Number(1), Number(2)),
		Mapping(map[int]float64{1: 0.5, 2: 0.5}),
	} {
		_, err := Coerce(raw, ShapeBinary, "m1")
		var cerr *CoercionError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "m1", cerr.MarketID)
		assert.Equal(t, ShapeBinary, cerr.Shape)
	}
}

func TestCoerce_MultipleChoice(t *testing.T) {
	tests := []struct {
		name string
		raw  Resolution
		want map[int]float64
	}{
		{"mapping", Mapping(map[int]float64{3: 1}), map[int]float64{3: 1}},
		{"index number", Number(5), map[int]float64{5: 1}},
		{"index string", String("2"), map[int]float64{2: 1}},
		{"bool false is index 0", Bool(false), map[int]float64{0: 1}},
		{"bool true is index 1", Bool(true), map[int]float64{1: 1}},
		{"single item list", List(Number(9)), map[int]float64{9: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.raw, ShapeMultipleChoice, "m1")
			require.NoError(t, err)
			assert.True(t, got.Equal(Mapping(tt.want)), "got %s", got)
		})
	}
}

func TestCoerce_MultipleChoiceRejects(t *testing.T) {
	for _, raw := range []Resolution{
		Number(1.5),
		String("answer-a"),
		List(Number(1), Number(2)),
	} {
		_, err := Coerce(raw, ShapeFreeResponse, "m1")
		var cerr *CoercionError
		assert.ErrorAs(t, err, &cerr, "raw %s", raw)
	}
}
