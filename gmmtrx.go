package gamutmap

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Determinant below which a 3x3 matrix is treated as singular.
const MATRIX_DET_TOLERANCE = 0.0001

// Mat3 is a row-major 3x3 matrix acting on L*a*b* vectors.
type Mat3 [3]r3.Vec

// Identity3 returns the 3x3 identity.
func Identity3() Mat3 {
	return Mat3{{X: 1}, {Y: 1}, {Z: 1}}
}

// Columns builds a matrix from three column vectors.
func Columns(c0, c1, c2 r3.Vec) Mat3 {
	return Mat3{
		{X: c0.X, Y: c1.X, Z: c2.X},
		{X: c0.Y, Y: c1.Y, Z: c2.Y},
		{X: c0.Z, Y: c1.Z, Z: c2.Z},
	}
}

func CloseEnough(a, b float64) bool {
	return math.Abs(b-a) < (1.0 / 65535.0)
}

func (a Mat3) IsIdentity() bool {
	id := Identity3()
	for i := 0; i < 3; i++ {
		if !CloseEnough(a[i].X, id[i].X) || !CloseEnough(a[i].Y, id[i].Y) || !CloseEnough(a[i].Z, id[i].Z) {
			return false
		}
	}
	return true
}

// Mul returns a*b.
func (a Mat3) Mul(b Mat3) Mat3 {
	t := b.Transpose()
	var r Mat3
	for i := 0; i < 3; i++ {
		r[i] = r3.Vec{X: r3.Dot(a[i], t[0]), Y: r3.Dot(a[i], t[1]), Z: r3.Dot(a[i], t[2])}
	}
	return r
}

func (a Mat3) Transpose() Mat3 {
	return Columns(a[0], a[1], a[2])
}

// Eval evaluates a vector across the matrix.
func (a Mat3) Eval(v r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(a[0], v), Y: r3.Dot(a[1], v), Z: r3.Dot(a[2], v)}
}

// Inverse returns a^-1, or false when a is singular.
func (a Mat3) Inverse() (Mat3, bool) {
	c0 := a[1].Y*a[2].Z - a[1].Z*a[2].Y
	c1 := -a[1].X*a[2].Z + a[1].Z*a[2].X
	c2 := a[1].X*a[2].Y - a[1].Y*a[2].X

	det := a[0].X*c0 + a[0].Y*c1 + a[0].Z*c2
	if math.Abs(det) < MATRIX_DET_TOLERANCE {
		return Mat3{}, false // singular matrix; can't invert
	}

	var b Mat3
	b[0].X = c0 / det
	b[0].Y = (a[0].Z*a[2].Y - a[0].Y*a[2].Z) / det
	b[0].Z = (a[0].Y*a[1].Z - a[0].Z*a[1].Y) / det
	b[1].X = c1 / det
	b[1].Y = (a[0].X*a[2].Z - a[0].Z*a[2].X) / det
	b[1].Z = (a[0].Z*a[1].X - a[0].X*a[1].Z) / det
	b[2].X = c2 / det
	b[2].Y = (a[0].Y*a[2].X - a[0].X*a[2].Y) / det
	b[2].Z = (a[0].X*a[1].Y - a[0].Y*a[1].X) / det
	return b, true
}

// Solve a system in the form Ax = b
func (a Mat3) Solve(b r3.Vec) (r3.Vec, bool) {
	inv, ok := a.Inverse()
	if !ok {
		return r3.Vec{}, false
	}
	return inv.Eval(b), true
}

// RotationBetween returns the rotation taking the direction of from onto
// the direction of to (Rodrigues' formula).
func RotationBetween(from, to r3.Vec) Mat3 {
	a := r3.Unit(from)
	b := r3.Unit(to)
	v := r3.Cross(a, b)
	s := r3.Norm(v)
	c := r3.Dot(a, b)
	if s < 1.0e-12 {
		if c > 0 {
			return Identity3()
		}
		// Half turn about any axis perpendicular to a
		u := r3.Cross(a, r3.Vec{X: 1})
		if r3.Norm(u) < 1.0e-6 {
			u = r3.Cross(a, r3.Vec{Y: 1})
		}
		u = r3.Unit(u)
		return Mat3{
			{X: 2*u.X*u.X - 1, Y: 2 * u.X * u.Y, Z: 2 * u.X * u.Z},
			{X: 2 * u.Y * u.X, Y: 2*u.Y*u.Y - 1, Z: 2 * u.Y * u.Z},
			{X: 2 * u.Z * u.X, Y: 2 * u.Z * u.Y, Z: 2*u.Z*u.Z - 1},
		}
	}
	k := (1 - c) / (s * s)
	vx := Mat3{
		{X: 0, Y: -v.Z, Z: v.Y},
		{X: v.Z, Y: 0, Z: -v.X},
		{X: -v.Y, Y: v.X, Z: 0},
	}
	vx2 := vx.Mul(vx)
	r := Identity3()
	for i := 0; i < 3; i++ {
		r[i] = r3.Add(r[i], r3.Add(vx[i], r3.Scale(k, vx2[i])))
	}
	return r
}

// Two unit vectors completing axis to a right-handed orthonormal basis.
func perpendicularBasis(axis r3.Vec) (r3.Vec, r3.Vec) {
	a := r3.Unit(axis)
	ref := r3.Vec{Y: 1}
	if math.Abs(a.Y) > 0.9 {
		ref = r3.Vec{Z: 1}
	}
	e2 := r3.Unit(r3.Cross(ref, a))
	e3 := r3.Cross(a, e2)
	return e2, e3
}
