package value

import (
	"fmt"
	"math"
	"strconv"
)

// PoolToProbCPMM1 converts a YES/NO liquidity pool into a probability using
// the Maniswap constant-product formula.
func PoolToProbCPMM1(yes, no, p float64) (float64, error) {
	if yes <= 0 || no <= 0 || p <= 0 || p >= 1 {
		return 0, fmt.Errorf("value: invalid pool (yes=%g no=%g p=%g)", yes, no, p)
	}
	pno := p * no
	return pno / ((1-p)*yes + pno), nil
}

// PoolToNumberCPMM1 converts a liquidity pool into a numeric market answer.
func PoolToNumberCPMM1(yes, no, p, start, end float64, isLogScale bool) (float64, error) {
	if start >= end {
		return 0, fmt.Errorf("value: numeric range [%g, %g] is empty", start, end)
	}
	prob, err := PoolToProbCPMM1(yes, no, p)
	if err != nil {
		return 0, err
	}
	return ProbToNumberCPMM1(prob, start, end, isLogScale), nil
}

// ProbToNumberCPMM1 maps a probability onto a numeric market's range,
// clamping to [start, end].
func ProbToNumberCPMM1(probability, start, end float64, isLogScale bool) float64 {
	var ret float64
	if isLogScale {
		ret = math.Pow(end-start+1, probability) + start - 1
	} else {
		ret = start + (end-start)*probability
	}
	return math.Max(start, math.Min(end, ret))
}

// NumberToProbCPMM1 is the inverse of ProbToNumberCPMM1.
func NumberToProbCPMM1(current, start, end float64, isLogScale bool) (float64, error) {
	if current < start || current > end {
		return 0, fmt.Errorf("value: %g outside numeric range [%g, %g]", current, start, end)
	}
	if isLogScale {
		return math.Log10(current-start+1) / math.Log10(end-start+1), nil
	}
	return (current - start) / (end - start), nil
}

// RoundSigFigs renders a number at the given number of significant figures.
func RoundSigFigs(num float64, sigFigs int) string {
	return strconv.FormatFloat(num, 'g', sigFigs, 64)
}

// RoundSigFigsF rounds a number to the given significant figures.
func RoundSigFigsF(num float64, sigFigs int) float64 {
	f, _ := strconv.ParseFloat(RoundSigFigs(num, sigFigs), 64)
	return f
}

// Normalize rescales a weighted mapping so its weights sum to 1.
func Normalize(answers map[int]float64) map[int]float64 {
	var total float64
	for _, w := range answers {
		total += w
	}
	out := make(map[int]float64, len(answers))
	for k, w := range answers {
		out[k] = w / total
	}
	return out
}

// Fibonacci returns a generator over the fibonacci numbers 1, 1, 2, 3, 5, ...
func Fibonacci() func() float64 {
	x, y := 0.0, 1.0
	return func() float64 {
		x, y = y, x+y
		return x
	}
}
