// Package value defines the resolution value algebra shared by every rule:
// the outcome types Manifold markets come in, the Resolution sum type a rule
// evaluation may produce, the coercion protocol between them, and the CPMM
// math used to convert pools and probabilities into market values.
package value

// Outcome is a market's outcome type as reported by the Manifold API.
type Outcome string

const (
	Binary         Outcome = "BINARY"
	PseudoNumeric  Outcome = "PSEUDO_NUMERIC"
	FreeResponse   Outcome = "FREE_RESPONSE"
	MultipleChoice Outcome = "MULTIPLE_CHOICE"
)

// BinaryLike reports whether markets of this type resolve through the binary
// market API (a single scalar).
func (o Outcome) BinaryLike() bool {
	return o == Binary || o == PseudoNumeric
}

// MCLike reports whether markets of this type resolve through the multiple
// choice API (a weighted mapping over answer indices).
func (o Outcome) MCLike() bool {
	return o == FreeResponse || o == MultipleChoice
}

// Shape is the target shape a caller requests from the coercion protocol.
// Every Outcome is a valid Shape; ShapeNone asks for the raw value unchanged.
type Shape string

const (
	ShapeNone Shape = "NONE"

	ShapeBinary         = Shape(Binary)
	ShapePseudoNumeric  = Shape(PseudoNumeric)
	ShapeFreeResponse   = Shape(FreeResponse)
	ShapeMultipleChoice = Shape(MultipleChoice)
)

func (s Shape) binaryLike() bool { return Outcome(s).BinaryLike() }
func (s Shape) mcLike() bool     { return Outcome(s).MCLike() }

// MarketStatus is the coarse lifecycle state of a market.
type MarketStatus int

const (
	StatusOpen MarketStatus = iota + 1
	StatusClosed
	StatusResolved
)

func (s MarketStatus) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusClosed:
		return "CLOSED"
	case StatusResolved:
		return "RESOLVED"
	}
	return "UNKNOWN"
}
