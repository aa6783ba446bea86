package structure

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Fragment is a rigid sub-group of atoms. It is created once before the
// optimization starts and then moved as a whole: each step translates
// the fragment and rotates it about its center of mass. The orientation
// accumulated over all steps is kept as a unit quaternion and updated by
// composition, never re-derived from raw positions, to avoid drift.
type Fragment struct {
	Indices []int

	// Orientation is the rotation accumulated since the fragment was
	// defined, relative to its starting pose.
	Orientation r3.Rotation

	unweighted bool
}

// FragmentOption configures a fragment at definition time.
type FragmentOption func(*Fragment)

// Unweighted selects the plain centroid instead of the mass-weighted
// center of mass.
func Unweighted() FragmentOption {
	return func(f *Fragment) { f.unweighted = true }
}

func newFragment(indices []int) *Fragment {
	idx := make([]int, len(indices))
	copy(idx, indices)
	return &Fragment{Indices: idx, Orientation: identityRotation()}
}

func (f *Fragment) clone() *Fragment {
	c := &Fragment{
		Indices:     make([]int, len(f.Indices)),
		Orientation: f.Orientation,
		unweighted:  f.unweighted,
	}
	copy(c.Indices, f.Indices)
	return c
}

func (f *Fragment) NumAtoms() int { return len(f.Indices) }

// CenterOfMass returns the fragment's current center of mass within s,
// mass-weighted unless the fragment was defined Unweighted. A fragment
// whose members carry zero total mass falls back to the plain centroid.
func (f *Fragment) CenterOfMass(s *Structure) r3.Vec {
	var com r3.Vec
	total := 0.0
	for _, i := range f.Indices {
		w := s.Atoms[i].Mass
		if f.unweighted {
			w = 1.0
		}
		com = r3.Add(com, r3.Scale(w, s.Atoms[i].Position))
		total += w
	}
	if total == 0 {
		return f.centroid(s)
	}
	return r3.Scale(1/total, com)
}

func (f *Fragment) centroid(s *Structure) r3.Vec {
	var c r3.Vec
	for _, i := range f.Indices {
		c = r3.Add(c, s.Atoms[i].Position)
	}
	return r3.Scale(1/float64(len(f.Indices)), c)
}

// Rotate composes a rotation step onto the accumulated orientation.
func (f *Fragment) Rotate(step r3.Rotation) {
	f.Orientation = r3.Rotation(quat.Mul(quat.Number(step), quat.Number(f.Orientation)))
}

func identityRotation() r3.Rotation {
	return r3.Rotation(quat.Number{Real: 1})
}
