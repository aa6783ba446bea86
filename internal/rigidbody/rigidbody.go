// Package rigidbody turns per-atom forces into rigid fragment moves.
//
// For each fragment the per-atom forces are reduced to a net force and a
// net torque about the fragment's center of mass. The net force yields a
// translation, the net torque a rotation about the center of mass with
// axis along the torque and angle proportional to its magnitude. The
// rotation is built as a proper quaternion rotation, so member atoms
// keep their pairwise distances to machine precision.
package rigidbody

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cgaigner/rigid/internal/structure"
)

// Torques and forces below this norm are treated as zero so the axis
// normalization never divides by zero.
const minNorm = 1e-12

// Update describes one rigid move of a fragment: the reduced force and
// torque, and the translation and rotation derived from them.
type Update struct {
	NetForce    r3.Vec
	NetTorque   r3.Vec
	Translation r3.Vec
	Axis        r3.Vec // unit rotation axis, zero vector when Angle is 0
	Angle       float64
}

// Compute reduces the global per-atom forces to a rigid update for one
// fragment of s. transStep scales net force into a displacement, rotStep
// scales torque magnitude into a rotation angle. Zero net force or
// torque produce a zero translation or rotation respectively.
func Compute(s *structure.Structure, f *structure.Fragment, forces []r3.Vec, transStep, rotStep float64) Update {
	com := f.CenterOfMass(s)

	var u Update
	for _, i := range f.Indices {
		u.NetForce = r3.Add(u.NetForce, forces[i])
		arm := r3.Sub(s.Atoms[i].Position, com)
		u.NetTorque = r3.Add(u.NetTorque, r3.Cross(arm, forces[i]))
	}

	if r3.Norm(u.NetForce) > minNorm {
		u.Translation = r3.Scale(transStep, u.NetForce)
	}
	if tau := r3.Norm(u.NetTorque); tau > minNorm {
		u.Axis = r3.Unit(u.NetTorque)
		u.Angle = tau * rotStep
	}
	return u
}

// Apply moves the fragment's member atoms within s: rotation about the
// current center of mass first, then translation. The fragment's
// accumulated orientation is composed with the rotation step.
func Apply(s *structure.Structure, f *structure.Fragment, u Update) {
	com := f.CenterOfMass(s)

	if u.Angle != 0 {
		rot := r3.NewRotation(u.Angle, u.Axis)
		for _, i := range f.Indices {
			arm := r3.Sub(s.Atoms[i].Position, com)
			s.Atoms[i].Position = r3.Add(com, rot.Rotate(arm))
		}
		f.Rotate(rot)
	}

	if u.Translation != (r3.Vec{}) {
		for _, i := range f.Indices {
			s.Atoms[i].Position = r3.Add(s.Atoms[i].Position, u.Translation)
		}
	}
}
