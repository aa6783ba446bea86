package calc

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cgaigner/rigid/internal/structure"
)

func pair(t *testing.T, dist float64) *structure.Structure {
	t.Helper()
	s, err := structure.NewFromSymbols("pair",
		[]string{"Ar", "Ar"},
		[]r3.Vec{{}, {X: dist}}, nil)
	if err != nil {
		t.Fatalf("build structure: %v", err)
	}
	return s
}

func TestLennardJonesMinimum(t *testing.T) {
	lj := NewLennardJones(1.0, 1.0)
	// force vanishes at the well minimum r = 2^(1/6) sigma
	rmin := math.Pow(2, 1.0/6.0)
	res, err := lj.Compute(context.Background(), pair(t, rmin))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if f := r3.Norm(res.Forces[0]); f > 1e-12 {
		t.Errorf("force at minimum = %g, want 0", f)
	}
	if math.Abs(res.Energy+1.0) > 1e-12 {
		t.Errorf("energy at minimum = %f, want -1.0", res.Energy)
	}
}

func TestLennardJonesRepulsion(t *testing.T) {
	lj := NewLennardJones(1.0, 1.0)
	res, err := lj.Compute(context.Background(), pair(t, 0.9))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// compressed below sigma: atoms must be pushed apart
	if res.Forces[0].X >= 0 || res.Forces[1].X <= 0 {
		t.Errorf("expected repulsive forces, got %v and %v", res.Forces[0], res.Forces[1])
	}
	// Newton's third law
	if d := r3.Norm(r3.Add(res.Forces[0], res.Forces[1])); d > 1e-12 {
		t.Errorf("forces do not cancel: residual %g", d)
	}
}

func TestLennardJonesCoincidentAtoms(t *testing.T) {
	lj := NewLennardJones(1.0, 1.0)
	_, err := lj.Compute(context.Background(), pair(t, 0))
	var cerr *CalculatorError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CalculatorError for coincident atoms, got %v", err)
	}
}

func TestHarmonicForces(t *testing.T) {
	h := NewHarmonic(2.0, r3.Vec{})
	s := pair(t, 1.0) // atoms at origin and (1,0,0)
	res, err := h.Compute(context.Background(), s)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if want := (r3.Vec{X: -2}); r3.Norm(r3.Sub(res.Forces[1], want)) > 1e-12 {
		t.Errorf("force on displaced atom = %v, want %v", res.Forces[1], want)
	}
	if math.Abs(res.Energy-1.0) > 1e-12 {
		t.Errorf("energy = %f, want 1.0", res.Energy)
	}
}

func TestParseOutput(t *testing.T) {
	out := `
energy= -12.5
forces:
0.1 0.2 0.3
-0.1 -0.2 -0.3
`
	res, err := parseOutput(strings.NewReader(out), 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Energy != -12.5 {
		t.Errorf("energy = %f, want -12.5", res.Energy)
	}
	if want := (r3.Vec{X: -0.1, Y: -0.2, Z: -0.3}); res.Forces[1] != want {
		t.Errorf("forces[1] = %v, want %v", res.Forces[1], want)
	}
}

func TestParseOutputFailures(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want error
	}{
		{"blank", "\n\n", ErrBlankOutput},
		{"no energy", "forces:\n0 0 0\n", ErrNoEnergy},
		{"no forces", "energy= 1.0\n", ErrNoForces},
		{"truncated forces", "energy= 1.0\nforces:\n0 0 0\n", ErrNoForces},
		{"declared error", "error: scf not converged\n", ErrNotConverged},
		{"bad energy", "energy= twelve\n", ErrNoEnergy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOutput(strings.NewReader(tt.out), 2)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

type flaky struct {
	failures int
	calls    int
}

func (f *flaky) Name() string { return "flaky" }

func (f *flaky) Compute(_ context.Context, s *structure.Structure) (Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return Result{}, &CalculatorError{Calculator: "flaky", Wrapped: ErrNotConverged}
	}
	return Result{Forces: make([]r3.Vec, s.NumAtoms()), Energy: -1}, nil
}

func TestWithRetry(t *testing.T) {
	t.Run("recovers within budget", func(t *testing.T) {
		c := &flaky{failures: 2}
		res, err := WithRetry(c, 3).Compute(context.Background(), pair(t, 1))
		if err != nil {
			t.Fatalf("expected recovery, got %v", err)
		}
		if c.calls != 3 {
			t.Errorf("expected 3 attempts, got %d", c.calls)
		}
		if res.Energy != -1 {
			t.Errorf("energy = %f, want -1", res.Energy)
		}
	})

	t.Run("exhausts budget", func(t *testing.T) {
		c := &flaky{failures: 5}
		_, err := WithRetry(c, 3).Compute(context.Background(), pair(t, 1))
		if !errors.Is(err, ErrNotConverged) {
			t.Fatalf("expected ErrNotConverged after exhausted retries, got %v", err)
		}
		if c.calls != 3 {
			t.Errorf("expected 3 attempts, got %d", c.calls)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := &flaky{failures: 5}
		_, err := WithRetry(c, 3).Compute(ctx, pair(t, 1))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if c.calls != 0 {
			t.Errorf("expected no attempts after cancel, got %d", c.calls)
		}
	})
}
