package opt

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cgaigner/rigid/internal/calc"
	"github.com/cgaigner/rigid/internal/rigidbody"
	"github.com/cgaigner/rigid/internal/structure"
)

// Optimizer iterates force evaluation, rigid fragment moves and
// convergence checks until the criterion is met, the iteration cap is
// hit, or the calculator fails beyond its retry budget.
//
// The loop is strictly sequential: one step completes fully, including
// its history append, before the next begins. Atoms outside every
// fragment are fixed and never move.
type Optimizer struct {
	Calculator    calc.Calculator
	Criterion     Criterion
	Policy        Policy
	MaxIterations int
	Retries       int // extra calculator attempts after a failure

	observers []Observer
}

func New(c calc.Calculator, crit Criterion, pol Policy) *Optimizer {
	return &Optimizer{
		Calculator:    c,
		Criterion:     crit,
		Policy:        pol,
		MaxIterations: 100,
	}
}

func (o *Optimizer) AddObserver(obs Observer) {
	o.observers = append(o.observers, obs)
}

func (o *Optimizer) validate(start *structure.Structure) error {
	switch {
	case o.Calculator == nil:
		return fmt.Errorf("opt: no calculator set")
	case o.Criterion == nil:
		return fmt.Errorf("opt: no convergence criterion set")
	case o.Policy == nil:
		return fmt.Errorf("opt: no step policy set")
	case o.MaxIterations < 1:
		return fmt.Errorf("opt: max iterations must be positive, got %d", o.MaxIterations)
	case start == nil || start.NumAtoms() == 0:
		return &structure.ValidationError{Index: -1, Msg: "empty structure"}
	case len(start.Fragments) == 0:
		return &structure.ValidationError{Index: -1, Msg: "structure has no fragments"}
	}
	return nil
}

// Run optimizes the structure and returns the result. On fatal errors
// the returned RunError names the failing iteration and carries the
// last valid structure. The input structure is not modified.
func (o *Optimizer) Run(ctx context.Context, start *structure.Structure) (*Result, error) {
	if err := o.validate(start); err != nil {
		return nil, err
	}

	evaluate := calc.WithRetry(o.Calculator, o.Retries+1)
	current := start.Clone()
	result := &Result{
		State:   StateIterating,
		History: make(History, 0, o.MaxIterations),
		Metrics: make(map[string]float64),
	}

	var lastAccepted *Step
	for i := 0; i < o.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			result.State = StateFailed
			result.Final = current
			return result, &RunError{Iteration: i, LastStructure: current, Err: ctx.Err()}
		default:
		}

		res, err := evaluate.Compute(ctx, current)
		if err != nil {
			result.State = StateFailed
			result.Final = current
			o.finish(result)
			return result, &RunError{Iteration: i, LastStructure: current, Err: err}
		}

		step := NewStep(current, res.Forces, res.Energy)
		result.History = append(result.History, step)
		result.Iterations = i + 1

		advice := o.Policy.Advise(result.History)
		if advice.Reject && lastAccepted != nil {
			// trust-region rejection: discard the move that produced
			// this structure and re-propagate the previous step with
			// the shrunken step sizes
			lastAccepted.ClearAfter()
			next := propagate(lastAccepted.Before, lastAccepted.Forces, advice)
			lastAccepted.AttachAfter(next)
			current = next
		} else {
			next := propagate(current, step.Forces, advice)
			step.AttachAfter(next)
			lastAccepted = step
			current = next
		}

		for _, obs := range o.observers {
			obs.OnStep(step, i)
		}

		if o.Criterion.Converged(result.History) {
			result.State = StateConverged
			result.Final = step.Before
			o.finish(result)
			return result, nil
		}
	}

	result.State = StateMaxIterReached
	result.Final = current
	o.finish(result)
	return result, nil
}

func (o *Optimizer) finish(r *Result) {
	if len(r.History) == 0 {
		return
	}
	first, last := r.History[0], r.History.Last()
	r.Metrics["energy_initial"] = first.Energy
	r.Metrics["energy_final"] = last.Energy
	r.Metrics["energy_drop"] = first.Energy - last.Energy
	r.Metrics["max_force_final"] = last.MaxForce()
	r.Metrics["iterations"] = float64(r.Iterations)
	if len(r.History) >= 2 {
		prev := r.History[len(r.History)-2]
		r.Metrics["max_displacement_final"] = prev.Before.MaxDisplacement(last.Before)
	}
}

// propagate applies one rigid move per fragment to a copy of s. Forces
// on atoms outside every fragment are ignored; those atoms stay fixed.
func propagate(s *structure.Structure, forces []r3.Vec, adv Advice) *structure.Structure {
	next := s.Clone()
	for _, f := range next.Fragments {
		u := rigidbody.Compute(next, f, forces, adv.TransStep, adv.RotStep)
		rigidbody.Apply(next, f, u)
	}
	return next
}
