// Package confirm asks the human operator whether a pending resolution
// should proceed. Every automated resolution passes through this gate.
package confirm

import (
	"context"
)

// Response is the operator's verdict on a pending resolution.
type Response int

const (
	// NoAction leaves the market alone until the next check.
	NoAction Response = iota
	// UseDefault resolves the market to the rule-derived value.
	UseDefault
	// Cancel refunds the market instead.
	Cancel
)

func (r Response) String() string {
	switch r {
	case UseDefault:
		return "resolve to default"
	case Cancel:
		return "cancel market"
	default:
		return "do nothing"
	}
}

// Confirmer presents a pending resolution to the operator and waits for a
// verdict.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (Response, error)
}
