package opt

// GDWAS is gradient descent with adaptive step: fixed base step sizes
// that shrink when a move raised the energy (the move is rejected and
// redone smaller) and grow back cautiously after a streak of energy
// decreases. The numbers are in optimizer units: TransStep in
// Angstrom per eV/Angstrom of net force, RotStep in radians per eV of
// net torque.
type GDWAS struct {
	TransStep float64
	RotStep   float64

	Shrink       float64 // step-size factor applied on an energy rise
	Grow         float64 // factor applied after GrowAfter straight decreases
	GrowAfter    int
	MaxTransStep float64
	MaxRotStep   float64

	streak int
}

func NewGDWAS() *GDWAS {
	const (
		trans = 0.01
		rot   = 0.01
	)
	return &GDWAS{
		TransStep:    trans,
		RotStep:      rot,
		Shrink:       0.5,
		Grow:         1.2,
		GrowAfter:    3,
		MaxTransStep: 10 * trans,
		MaxRotStep:   10 * rot,
	}
}

func (g *GDWAS) Name() string { return "gdwas" }

func (g *GDWAS) Advise(h History) Advice {
	if h.Len() >= 2 {
		last := h[h.Len()-1]
		prev := h[h.Len()-2]
		if last.Energy > prev.Energy {
			g.TransStep *= g.Shrink
			g.RotStep *= g.Shrink
			g.streak = 0
			return Advice{TransStep: g.TransStep, RotStep: g.RotStep, Reject: true}
		}
		g.streak++
		if g.streak >= g.GrowAfter {
			g.TransStep = min(g.TransStep*g.Grow, g.MaxTransStep)
			g.RotStep = min(g.RotStep*g.Grow, g.MaxRotStep)
			g.streak = 0
		}
	}
	return Advice{TransStep: g.TransStep, RotStep: g.RotStep}
}

// Fixed is the trivial policy: constant step sizes, nothing ever
// rejected. Mostly useful in tests where the analytic result of a move
// must be predictable.
type Fixed struct {
	TransStep float64
	RotStep   float64
}

func (f *Fixed) Name() string { return "fixed" }

func (f *Fixed) Advise(History) Advice {
	return Advice{TransStep: f.TransStep, RotStep: f.RotStep}
}
