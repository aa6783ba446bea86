package opt

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cgaigner/rigid/internal/calc"
	"github.com/cgaigner/rigid/internal/structure"
)

func energyHistory(energies ...float64) History {
	h := make(History, 0, len(energies))
	for _, e := range energies {
		h = append(h, NewStep(nil, nil, e))
	}
	return h
}

func TestGDWASBaseStepsOnFirstIteration(t *testing.T) {
	g := NewGDWAS()
	adv := g.Advise(energyHistory(-1.0))
	if adv.Reject {
		t.Error("first step rejected")
	}
	if adv.TransStep != g.TransStep || adv.RotStep != g.RotStep {
		t.Errorf("advice %+v does not match base steps", adv)
	}
}

func TestGDWASShrinksAndRejectsOnEnergyRise(t *testing.T) {
	g := NewGDWAS()
	base := g.TransStep

	adv := g.Advise(energyHistory(-1.0, -0.5))
	if !adv.Reject {
		t.Fatal("energy rise not rejected")
	}
	if want := base * g.Shrink; adv.TransStep != want {
		t.Errorf("translation step = %g after rise, want %g", adv.TransStep, want)
	}
	if want := 0.01 * g.Shrink; adv.RotStep != want {
		t.Errorf("rotation step = %g after rise, want %g", adv.RotStep, want)
	}
}

func TestGDWASGrowsAfterStreak(t *testing.T) {
	g := NewGDWAS()
	base := g.TransStep

	h := energyHistory(0, -1, -2, -3)
	var adv Advice
	for n := 2; n <= h.Len(); n++ {
		adv = g.Advise(h[:n])
		if adv.Reject {
			t.Fatalf("decreasing energies rejected at step %d", n)
		}
	}
	if want := base * g.Grow; math.Abs(adv.TransStep-want) > 1e-15 {
		t.Errorf("translation step = %g after %d decreases, want %g", adv.TransStep, g.GrowAfter, want)
	}
}

func TestGDWASGrowthIsCapped(t *testing.T) {
	g := NewGDWAS()
	energies := []float64{0}
	for i := 1; i < 200; i++ {
		energies = append(energies, -float64(i))
	}
	h := energyHistory(energies...)
	var adv Advice
	for n := 2; n <= h.Len(); n++ {
		adv = g.Advise(h[:n])
	}
	if adv.TransStep > g.MaxTransStep {
		t.Errorf("translation step %g exceeds cap %g", adv.TransStep, g.MaxTransStep)
	}
	if adv.RotStep > g.MaxRotStep {
		t.Errorf("rotation step %g exceeds cap %g", adv.RotStep, g.MaxRotStep)
	}
}

// An overshooting first move must be rejected: the rejected trial keeps
// no updated structure and the previous step's move is redone smaller.
func TestGDWASRejectionInOptimizer(t *testing.T) {
	s, err := structure.NewFromSymbols("probe", []string{"H"}, []r3.Vec{{X: 1}}, nil)
	if err != nil {
		t.Fatalf("build structure: %v", err)
	}
	if _, err := s.DefineFragment([]int{0}); err != nil {
		t.Fatalf("define fragment: %v", err)
	}

	g := NewGDWAS()
	g.TransStep = 3.0 // guaranteed overshoot for V = 0.5 x^2
	g.MaxTransStep = 3.0

	o := New(calc.NewHarmonic(1.0, r3.Vec{}), never{}, g)
	o.MaxIterations = 4
	res, err := o.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// step 0: x=1, E=0.5. step 1 trial: x = 1-3 = -2, E=2 -> rejected.
	if res.History.Len() != 4 {
		t.Fatalf("history length = %d, want 4", res.History.Len())
	}
	rejected := res.History[1]
	if rejected.After != nil {
		t.Error("rejected step kept an updated structure")
	}
	if rejected.Energy <= res.History[0].Energy {
		t.Fatalf("test setup wrong: trial energy %f did not rise above %f",
			rejected.Energy, res.History[0].Energy)
	}
	// the first step's move was redone with the shrunken step
	redone := res.History[0].After
	if redone == nil {
		t.Fatal("first step lost its updated structure")
	}
	if want := 1 - 3.0*0.5; math.Abs(redone.Atoms[0].Position.X-want) > 1e-12 {
		t.Errorf("redone move landed at %f, want %f", redone.Atoms[0].Position.X, want)
	}
	// step 2 evaluates the redone structure
	if res.History[2].Before != redone {
		t.Error("iteration after a rejection did not continue from the redone structure")
	}
}
