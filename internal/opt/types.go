// Package opt drives the rigid-fragment optimization loop: evaluate
// forces, move fragments, check convergence, repeat.
package opt

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cgaigner/rigid/internal/structure"
)

// Step is one iteration's snapshot. Forces and Energy always describe
// Before, never After. After is attached once the fragment moves are
// propagated and cleared again if the move is rejected by the step-size
// policy.
type Step struct {
	Before *structure.Structure
	Forces []r3.Vec
	Energy float64
	After  *structure.Structure
}

func NewStep(before *structure.Structure, forces []r3.Vec, energy float64) *Step {
	return &Step{Before: before, Forces: forces, Energy: energy}
}

func (s *Step) AttachAfter(after *structure.Structure) { s.After = after }

func (s *Step) ClearAfter() { s.After = nil }

// MaxForce returns the largest per-atom force norm of the step.
func (s *Step) MaxForce() float64 {
	max := 0.0
	for _, f := range s.Forces {
		if n := r3.Norm(f); n > max {
			max = n
		}
	}
	return max
}

// History is the append-only sequence of optimization steps. It is the
// single source of truth for convergence checks and reporting; it is
// never truncated or reordered.
type History []*Step

func (h History) Len() int { return len(h) }

func (h History) Last() *Step {
	if len(h) == 0 {
		return nil
	}
	return h[len(h)-1]
}

// Energies returns the per-step energies in iteration order.
func (h History) Energies() []float64 {
	e := make([]float64, len(h))
	for i, s := range h {
		e[i] = s.Energy
	}
	return e
}

// Criterion decides, from the history alone, whether the optimization
// has converged. Implementations must be pure: no mutation of the
// history, and a history of length 1 is never converged.
type Criterion interface {
	Name() string
	Converged(h History) bool
}

// Advice is a policy's verdict for the next propagation.
type Advice struct {
	TransStep float64 // displacement per unit net force
	RotStep   float64 // rotation angle per unit net torque
	// Reject discards the latest move: the previous step's After is
	// recomputed from its own forces with the new step sizes.
	Reject bool
}

// Policy supplies translation and rotation step sizes, observing the
// history after each new step is appended.
type Policy interface {
	Name() string
	Advise(h History) Advice
}

// Observer receives every step right after its After structure is
// settled. The optimization core itself never prints.
type Observer interface {
	OnStep(step *Step, iteration int)
}

// State of a finished (or failed) optimization run.
type State int

const (
	StateInit State = iota
	StateIterating
	StateConverged
	StateMaxIterReached
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateMaxIterReached:
		return "max_iter_reached"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result of an optimization run.
type Result struct {
	State      State
	Final      *structure.Structure
	History    History
	Iterations int
	Metrics    map[string]float64
}

// RunError wraps a fatal optimization error with the iteration it
// occurred in and the last valid structure, so a caller can resume or
// diagnose.
type RunError struct {
	Iteration     int
	LastStructure *structure.Structure
	Err           error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("optimization failed at iteration %d: %v", e.Iteration, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
