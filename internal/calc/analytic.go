package calc

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cgaigner/rigid/internal/structure"
)

// LennardJones is an analytic 12-6 pair potential over all atoms:
// V(r) = 4*eps*((sigma/r)^12 - (sigma/r)^6).
type LennardJones struct {
	Epsilon float64 // well depth, eV
	Sigma   float64 // zero-crossing distance, Angstrom
}

func NewLennardJones(epsilon, sigma float64) *LennardJones {
	return &LennardJones{Epsilon: epsilon, Sigma: sigma}
}

func (lj *LennardJones) Name() string { return "lj" }

func (lj *LennardJones) Compute(_ context.Context, s *structure.Structure) (Result, error) {
	n := s.NumAtoms()
	res := Result{Forces: make([]r3.Vec, n)}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			rij := r3.Sub(s.Atoms[i].Position, s.Atoms[j].Position)
			r2 := r3.Norm2(rij)
			if r2 < minNorm {
				return Result{}, &CalculatorError{Calculator: lj.Name(),
					Wrapped: fmt.Errorf("atoms %d and %d coincide", i, j)}
			}
			sr6 := math.Pow(lj.Sigma*lj.Sigma/r2, 3)
			sr12 := sr6 * sr6
			res.Energy += 4 * lj.Epsilon * (sr12 - sr6)
			// -dV/dr / r, so the pair force is fpair * rij
			fpair := 24 * lj.Epsilon * (2*sr12 - sr6) / r2
			f := r3.Scale(fpair, rij)
			res.Forces[i] = r3.Add(res.Forces[i], f)
			res.Forces[j] = r3.Sub(res.Forces[j], f)
		}
	}
	return res, nil
}

// Harmonic restrains every atom toward a common center with
// V = 0.5*k*|p - center|^2. The simplest possible force field; useful
// for end-to-end optimizer tests with a known analytic minimum.
type Harmonic struct {
	K      float64 // spring constant, eV/Angstrom^2
	Center r3.Vec
}

func NewHarmonic(k float64, center r3.Vec) *Harmonic {
	return &Harmonic{K: k, Center: center}
}

func (h *Harmonic) Name() string { return "harmonic" }

func (h *Harmonic) Compute(_ context.Context, s *structure.Structure) (Result, error) {
	res := Result{Forces: make([]r3.Vec, s.NumAtoms())}
	for i, a := range s.Atoms {
		d := r3.Sub(a.Position, h.Center)
		res.Energy += 0.5 * h.K * r3.Norm2(d)
		res.Forces[i] = r3.Scale(-h.K, d)
	}
	return res, nil
}

const minNorm = 1e-12
