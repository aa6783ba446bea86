// Package calc defines the calculator boundary: any backend that can
// return per-atom forces and a total energy for a given structure.
//
// The interface is the single external-dependency seam of the
// optimizer. Builtin analytic calculators (Lennard-Jones, harmonic
// restraint) serve tests and demo runs; External drives an arbitrary
// force/energy program through the filesystem.
package calc

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cgaigner/rigid/internal/structure"
)

// Result carries one force/energy evaluation. Forces are aligned to the
// structure's atom order, in eV/Angstrom; Energy is in eV.
type Result struct {
	Forces []r3.Vec
	Energy float64
}

// Calculator computes forces and energy for a structure. Compute blocks
// until the backend finishes; cancellation, if any, happens through ctx
// at the process boundary.
type Calculator interface {
	Name() string
	Compute(ctx context.Context, s *structure.Structure) (Result, error)
}

// Failure modes of external force/energy backends.
var (
	ErrNotConverged = errors.New("calc: calculation did not converge")
	ErrBlankOutput  = errors.New("calc: output exists but is blank")
	ErrNoEnergy     = errors.New("calc: no energy found in output")
	ErrNoForces     = errors.New("calc: no forces found in output")
)

// CalculatorError wraps a backend failure with the calculator's name.
// The optimizer retries these a bounded number of times before failing
// the run.
type CalculatorError struct {
	Calculator string
	Wrapped    error
}

func (e *CalculatorError) Error() string {
	return fmt.Sprintf("calculator %s: %v", e.Calculator, e.Wrapped)
}

func (e *CalculatorError) Unwrap() error { return e.Wrapped }
