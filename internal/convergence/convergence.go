// Package convergence provides stopping criteria for optimization runs.
// Every criterion is a pure predicate over the optimization history.
package convergence

import (
	"github.com/cgaigner/rigid/internal/opt"
)

// Displacement converges when the largest per-atom displacement between
// the last two evaluated structures drops to the threshold or below.
// A history shorter than two steps is never converged.
type Displacement struct {
	Threshold float64 // Angstrom
}

func NewDisplacement(threshold float64) *Displacement {
	return &Displacement{Threshold: threshold}
}

func (d *Displacement) Name() string { return "displacement" }

func (d *Displacement) Converged(h opt.History) bool {
	if h.Len() < 2 {
		return false
	}
	prev := h[h.Len()-2]
	last := h[h.Len()-1]
	return prev.Before.MaxDisplacement(last.Before) <= d.Threshold
}

// MaxForce converges when the largest per-atom force norm of the latest
// step drops to the threshold or below.
type MaxForce struct {
	Threshold float64 // eV/Angstrom
}

func NewMaxForce(threshold float64) *MaxForce {
	return &MaxForce{Threshold: threshold}
}

func (m *MaxForce) Name() string { return "maxforce" }

func (m *MaxForce) Converged(h opt.History) bool {
	if h.Len() < 2 {
		return false
	}
	return h.Last().MaxForce() <= m.Threshold
}
