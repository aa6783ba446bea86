package opt

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cgaigner/rigid/internal/calc"
	"github.com/cgaigner/rigid/internal/structure"
)

// zeroField returns zero forces and constant energy.
type zeroField struct{}

func (zeroField) Name() string { return "zero" }

func (zeroField) Compute(_ context.Context, s *structure.Structure) (calc.Result, error) {
	return calc.Result{Forces: make([]r3.Vec, s.NumAtoms()), Energy: -1}, nil
}

// failing always returns a CalculatorError and counts its calls.
type failing struct{ calls int }

func (f *failing) Name() string { return "failing" }

func (f *failing) Compute(context.Context, *structure.Structure) (calc.Result, error) {
	f.calls++
	return calc.Result{}, &calc.CalculatorError{Calculator: "failing", Wrapped: calc.ErrNotConverged}
}

// displacementBelow is a minimal displacement criterion local to the
// tests, avoiding an import cycle with the convergence package.
type displacementBelow struct{ threshold float64 }

func (displacementBelow) Name() string { return "displacement" }

func (d displacementBelow) Converged(h History) bool {
	if h.Len() < 2 {
		return false
	}
	return h[h.Len()-2].Before.MaxDisplacement(h.Last().Before) <= d.threshold
}

type never struct{}

func (never) Name() string { return "never" }

func (never) Converged(History) bool { return false }

func dimer(t *testing.T) *structure.Structure {
	t.Helper()
	s, err := structure.NewFromSymbols("dimer",
		[]string{"H", "H"},
		[]r3.Vec{{X: 1.0}, {X: 2.0}}, nil)
	if err != nil {
		t.Fatalf("build structure: %v", err)
	}
	if _, err := s.DefineFragment([]int{0, 1}); err != nil {
		t.Fatalf("define fragment: %v", err)
	}
	return s
}

func TestZeroForcesConvergeImmediately(t *testing.T) {
	o := New(zeroField{}, displacementBelow{threshold: 0.01}, &Fixed{TransStep: 0.1, RotStep: 0.1})
	o.MaxIterations = 5

	res, err := o.Run(context.Background(), dimer(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != StateConverged {
		t.Fatalf("state = %v, want converged", res.State)
	}
	// the first possible convergence check with two steps: zero-based
	// step index 1
	if res.Iterations != 2 {
		t.Errorf("converged after %d iterations, want 2", res.Iterations)
	}
	if d := res.Final.MaxDisplacement(dimer(t)); d != 0 {
		t.Errorf("zero forces moved the structure by %g", d)
	}
}

func TestHistoryAppendOnlyAndChained(t *testing.T) {
	const n = 6
	o := New(calc.NewHarmonic(1.0, r3.Vec{}), never{}, &Fixed{TransStep: 0.05, RotStep: 0.05})
	o.MaxIterations = n

	res, err := o.Run(context.Background(), dimer(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != StateMaxIterReached {
		t.Fatalf("state = %v, want max_iter_reached", res.State)
	}
	if res.History.Len() != n {
		t.Fatalf("history length = %d, want %d", res.History.Len(), n)
	}
	for i, step := range res.History {
		if step.After == nil {
			t.Fatalf("step %d has no updated structure", i)
		}
		if i > 0 && res.History[i-1].After != step.Before {
			t.Errorf("step %d structure_before is not step %d's structure_after", i, i-1)
		}
	}
}

func TestValidation(t *testing.T) {
	noFragments, err := structure.NewFromSymbols("bare", []string{"H"}, []r3.Vec{{}}, nil)
	if err != nil {
		t.Fatalf("build structure: %v", err)
	}

	t.Run("no fragments", func(t *testing.T) {
		o := New(zeroField{}, never{}, NewGDWAS())
		_, err := o.Run(context.Background(), noFragments)
		var verr *structure.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("missing collaborators", func(t *testing.T) {
		for _, o := range []*Optimizer{
			New(nil, never{}, NewGDWAS()),
			New(zeroField{}, nil, NewGDWAS()),
			New(zeroField{}, never{}, nil),
		} {
			if _, err := o.Run(context.Background(), dimer(t)); err == nil {
				t.Error("expected setup error, got nil")
			}
		}
	})
}

func TestCalculatorFailureAfterRetries(t *testing.T) {
	c := &failing{}
	o := New(c, never{}, &Fixed{TransStep: 0.1, RotStep: 0.1})
	o.Retries = 2

	res, err := o.Run(context.Background(), dimer(t))

	var rerr *RunError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if rerr.Iteration != 0 {
		t.Errorf("failing iteration = %d, want 0", rerr.Iteration)
	}
	if rerr.LastStructure == nil {
		t.Error("RunError carries no last valid structure")
	}
	var cerr *calc.CalculatorError
	if !errors.As(err, &cerr) {
		t.Errorf("RunError does not wrap the CalculatorError: %v", err)
	}
	if c.calls != 3 {
		t.Errorf("calculator called %d times, want 3 (1 + 2 retries)", c.calls)
	}
	if res.State != StateFailed {
		t.Errorf("state = %v, want failed", res.State)
	}
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(zeroField{}, never{}, &Fixed{TransStep: 0.1, RotStep: 0.1})
	_, err := o.Run(ctx, dimer(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var rerr *RunError
	if !errors.As(err, &rerr) {
		t.Fatalf("cancellation not wrapped in RunError: %v", err)
	}
}

type countingObserver struct {
	steps []int
}

func (c *countingObserver) OnStep(_ *Step, iteration int) {
	c.steps = append(c.steps, iteration)
}

func TestObserversSeeEveryStep(t *testing.T) {
	o := New(calc.NewHarmonic(1.0, r3.Vec{}), never{}, &Fixed{TransStep: 0.05, RotStep: 0.05})
	o.MaxIterations = 4
	obs := &countingObserver{}
	o.AddObserver(obs)

	if _, err := o.Run(context.Background(), dimer(t)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(obs.steps) != 4 {
		t.Fatalf("observer saw %d steps, want 4", len(obs.steps))
	}
	for i, got := range obs.steps {
		if got != i {
			t.Errorf("observation %d has iteration %d", i, got)
		}
	}
}

func TestFreeAtomsStayFixed(t *testing.T) {
	s, err := structure.NewFromSymbols("mixed",
		[]string{"H", "H", "O"},
		[]r3.Vec{{X: 1}, {X: 2}, {X: -3}}, nil)
	if err != nil {
		t.Fatalf("build structure: %v", err)
	}
	// only the dimer is a fragment; the oxygen stays free and fixed
	if _, err := s.DefineFragment([]int{0, 1}); err != nil {
		t.Fatalf("define fragment: %v", err)
	}

	o := New(calc.NewHarmonic(1.0, r3.Vec{}), never{}, &Fixed{TransStep: 0.1, RotStep: 0.1})
	o.MaxIterations = 5
	res, err := o.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := res.Final.Atoms[2].Position; got != (r3.Vec{X: -3}) {
		t.Errorf("free atom moved to %v despite fixed-atom policy", got)
	}
	if res.Final.Atoms[0].Position.X >= 1 {
		t.Error("fragment atoms did not move toward the restraint center")
	}
}

func TestEndToEndHarmonicDescent(t *testing.T) {
	o := New(calc.NewHarmonic(1.0, r3.Vec{}), displacementBelow{threshold: 1e-5}, NewGDWAS())
	o.MaxIterations = 500

	start := dimer(t)
	res, err := o.Run(context.Background(), start)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != StateConverged {
		t.Fatalf("state = %v after %d iterations, want converged", res.State, res.Iterations)
	}

	energies := res.History.Energies()
	if last := energies[len(energies)-1]; last >= energies[0] {
		t.Errorf("energy did not decrease: %f -> %f", energies[0], last)
	}

	// rigid invariant across the whole run
	if bond := res.Final.Distance(0, 1); math.Abs(bond-1.0) > 1e-10 {
		t.Errorf("bond length = %.15f after optimization, want 1.0", bond)
	}

	if res.Metrics["energy_drop"] <= 0 {
		t.Errorf("energy_drop metric = %f, want > 0", res.Metrics["energy_drop"])
	}
}
