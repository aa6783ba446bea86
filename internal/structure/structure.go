package structure

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Atom is a single atom of the structure under optimization.
type Atom struct {
	Symbol   string
	Mass     float64
	Position r3.Vec
}

// Structure holds atomic positions, species, the (optional) unit cell
// and the partition of atom indices into rigid fragments. Atoms that
// belong to no fragment are fixed: forces on them are ignored and their
// positions never change during an optimization.
type Structure struct {
	Name      string
	Atoms     []Atom
	Cell      *[3]r3.Vec // lattice vectors, nil for non-periodic systems
	Fragments []*Fragment
}

// New builds a structure from atoms and an optional unit cell.
func New(name string, atoms []Atom, cell *[3]r3.Vec) *Structure {
	s := &Structure{Name: name, Atoms: make([]Atom, len(atoms)), Cell: cell}
	copy(s.Atoms, atoms)
	return s
}

// NewFromSymbols builds a structure from parallel symbol and position
// slices, looking up standard atomic masses. Unknown symbols get mass
// 1.0 so dummy species stay usable in tests.
func NewFromSymbols(name string, symbols []string, positions []r3.Vec, cell *[3]r3.Vec) (*Structure, error) {
	if len(symbols) != len(positions) {
		return nil, validationErr(-1, "%d symbols for %d positions", len(symbols), len(positions))
	}
	atoms := make([]Atom, len(symbols))
	for i, sym := range symbols {
		mass, ok := MassOf(sym)
		if !ok {
			mass = 1.0
		}
		atoms[i] = Atom{Symbol: sym, Mass: mass, Position: positions[i]}
	}
	return New(name, atoms, cell), nil
}

func (s *Structure) NumAtoms() int { return len(s.Atoms) }

// Positions returns a copy of all atomic positions in atom order.
func (s *Structure) Positions() []r3.Vec {
	p := make([]r3.Vec, len(s.Atoms))
	for i, a := range s.Atoms {
		p[i] = a.Position
	}
	return p
}

// Clone deep-copies the structure, including its fragments and their
// accumulated orientations, so one optimization step can be propagated
// without touching the previous one.
func (s *Structure) Clone() *Structure {
	c := &Structure{Name: s.Name, Atoms: make([]Atom, len(s.Atoms))}
	copy(c.Atoms, s.Atoms)
	if s.Cell != nil {
		cell := *s.Cell
		c.Cell = &cell
	}
	c.Fragments = make([]*Fragment, len(s.Fragments))
	for i, f := range s.Fragments {
		c.Fragments[i] = f.clone()
	}
	return c
}

// DefineFragment claims a set of atom indices as one rigid fragment.
// Indices are zero-based into the atom list. The call fails with a
// ValidationError if the set is empty, an index is out of range, or an
// index is already claimed by another fragment; on failure the fragment
// set is left unchanged. The fragment's center of mass is mass-weighted
// unless the Unweighted option is given.
func (s *Structure) DefineFragment(indices []int, opts ...FragmentOption) (*Fragment, error) {
	if len(indices) == 0 {
		return nil, validationErr(-1, "fragment needs at least one atom")
	}
	claimed := make(map[int]bool)
	for _, f := range s.Fragments {
		for _, i := range f.Indices {
			claimed[i] = true
		}
	}
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		switch {
		case i < 0 || i >= len(s.Atoms):
			return nil, validationErr(i, "fragment index out of range [0,%d)", len(s.Atoms))
		case claimed[i]:
			return nil, validationErr(i, "atom already belongs to another fragment")
		case seen[i]:
			return nil, validationErr(i, "atom listed twice in fragment definition")
		}
		seen[i] = true
	}
	f := newFragment(indices)
	for _, opt := range opts {
		opt(f)
	}
	s.Fragments = append(s.Fragments, f)
	return f, nil
}

// FreeAtoms returns the indices of atoms that belong to no fragment.
// These atoms are fixed during optimization.
func (s *Structure) FreeAtoms() []int {
	claimed := make(map[int]bool)
	for _, f := range s.Fragments {
		for _, i := range f.Indices {
			claimed[i] = true
		}
	}
	var free []int
	for i := range s.Atoms {
		if !claimed[i] {
			free = append(free, i)
		}
	}
	return free
}

// MaxDisplacement returns the largest per-atom distance between two
// structures with identical atom ordering.
func (s *Structure) MaxDisplacement(other *Structure) float64 {
	max := 0.0
	n := len(s.Atoms)
	if len(other.Atoms) < n {
		n = len(other.Atoms)
	}
	for i := 0; i < n; i++ {
		d := r3.Norm(r3.Sub(s.Atoms[i].Position, other.Atoms[i].Position))
		if d > max {
			max = d
		}
	}
	return max
}

// Distance returns the distance between two atoms of the structure.
func (s *Structure) Distance(i, j int) float64 {
	return r3.Norm(r3.Sub(s.Atoms[i].Position, s.Atoms[j].Position))
}

// IsValid reports whether all coordinates are finite.
func (s *Structure) IsValid() bool {
	for _, a := range s.Atoms {
		for _, v := range []float64{a.Position.X, a.Position.Y, a.Position.Z} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
