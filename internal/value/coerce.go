package value

import (
	"fmt"
	"strconv"
)

// CoercionError is the fatal error raised when a raw resolution cannot be
// shaped into what the caller asked for. It carries enough context to debug a
// misconfigured rule tree without re-running it.
type CoercionError struct {
	Raw      Resolution
	Shape    Shape
	MarketID string
	Reason   string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %s to %s for market %s: %s", e.Raw, e.Shape, e.MarketID, e.Reason)
}

// Coerce normalizes a raw rule output into the requested target shape.
//
// The protocol is permissive on input and strict on output: a rule may return
// a bare bool, a number, a numeric string, a one-item list, or a weighted
// mapping, but the caller always gets exactly the shape it asked for or an
// explicit error. Abstain and Cancel pass through every shape untouched.
func Coerce(raw Resolution, shape Shape, marketID string) (Resolution, error) {
	if raw.IsAbstain() || raw.IsCancel() || shape == ShapeNone {
		return raw, nil
	}
	switch {
	case shape.binaryLike():
		return coerceBinary(raw, shape, marketID)
	case shape.mcLike():
		return coerceMC(raw, shape, marketID)
	}
	return Resolution{}, &CoercionError{Raw: raw, Shape: shape, MarketID: marketID, Reason: "unsupported target shape"}
}

func coerceBinary(raw Resolution, shape Shape, marketID string) (Resolution, error) {
	switch raw.kind {
	case KindBool, KindNumber:
		return raw, nil
	case KindString:
		f, err := strconv.ParseFloat(raw.str, 64)
		if err != nil {
			return Resolution{}, &CoercionError{Raw: raw, Shape: shape, MarketID: marketID, Reason: "string is not numeric"}
		}
		return Number(f), nil
	case KindList:
		if len(raw.list) == 1 {
			return coerceBinary(raw.list[0], shape, marketID)
		}
	case KindMapping:
		if len(raw.mapping) == 1 {
			for idx := range raw.mapping {
				return Number(float64(idx)), nil
			}
		}
	}
	return Resolution{}, &CoercionError{Raw: raw, Shape: shape, MarketID: marketID, Reason: "not a scalar"}
}

func coerceMC(raw Resolution, shape Shape, marketID string) (Resolution, error) {
	switch raw.kind {
	case KindMapping:
		return raw, nil
	case KindString:
		idx, err := strconv.Atoi(raw.str)
		if err != nil {
			return Resolution{}, &CoercionError{Raw: raw, Shape: shape, MarketID: marketID, Reason: "string is not an answer index"}
		}
		return Mapping(map[int]float64{idx: 1}), nil
	case KindBool:
		idx := 0
		if raw.b {
			idx = 1
		}
		return Mapping(map[int]float64{idx: 1}), nil
	case KindNumber:
		if !integral(raw.num) {
			return Resolution{}, &CoercionError{Raw: raw, Shape: shape, MarketID: marketID, Reason: "fractional number is not an answer index"}
		}
		return Mapping(map[int]float64{int(raw.num): 1}), nil
	case KindList:
		if len(raw.list) == 1 {
			return coerceMC(raw.list[0], shape, marketID)
		}
	}
	return Resolution{}, &CoercionError{Raw: raw, Shape: shape, MarketID: marketID, Reason: "not an answer mapping"}
}
