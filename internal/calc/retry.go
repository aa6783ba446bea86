package calc

import (
	"context"

	"github.com/cgaigner/rigid/internal/structure"
)

// Retrying re-runs a failing calculator on the same input structure up
// to Attempts times before giving up with the last error. Context
// cancellation is never retried.
type Retrying struct {
	Inner    Calculator
	Attempts int
}

// WithRetry wraps c so each evaluation is attempted up to attempts
// times. attempts below 1 is treated as 1.
func WithRetry(c Calculator, attempts int) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{Inner: c, Attempts: attempts}
}

func (r *Retrying) Name() string { return r.Inner.Name() }

func (r *Retrying) Compute(ctx context.Context, s *structure.Structure) (Result, error) {
	var res Result
	var err error
	for i := 0; i < r.Attempts; i++ {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		res, err = r.Inner.Compute(ctx, s)
		if err == nil {
			return res, nil
		}
	}
	return Result{}, err
}
