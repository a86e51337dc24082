// Package spline fits smooth vector functions to weighted scattered
// correspondences. The gamut mapping core only depends on the Mapper and
// Function interfaces; RBF is the reference implementation.
package spline

import (
	"github.com/pkg/errors"
)

var (
	ErrTooFewPoints = errors.New("spline: too few points")
	ErrDimension    = errors.New("spline: inconsistent dimensions")
	ErrWeight       = errors.New("spline: non-positive weight")
)

// Point is one weighted input/output correspondence.
type Point struct {
	In     []float64
	Out    []float64
	Weight float64
}

// Range is an axis-aligned box. A zero Range means "derive from the data".
type Range struct {
	Min []float64
	Max []float64
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return len(r.Min) == 0 || len(r.Max) == 0
}

// Dims returns the number of axes of the range.
func (r Range) Dims() int {
	return len(r.Min)
}

// Span returns the extent of axis i, or 1 for a degenerate axis.
func (r Range) Span(i int) float64 {
	s := r.Max[i] - r.Min[i]
	if s <= 0 {
		return 1
	}
	return s
}

// Contains reports whether v lies inside the box (inclusive).
func (r Range) Contains(v []float64) bool {
	for i := range r.Min {
		if v[i] < r.Min[i] || v[i] > r.Max[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of r.
func (r Range) Clone() Range {
	return Range{Min: append([]float64(nil), r.Min...), Max: append([]float64(nil), r.Max...)}
}

// BoundingBox returns the box enclosing every input of pts.
func BoundingBox(pts []Point) Range {
	if len(pts) == 0 {
		return Range{}
	}
	d := len(pts[0].In)
	r := Range{Min: make([]float64, d), Max: make([]float64, d)}
	copy(r.Min, pts[0].In)
	copy(r.Max, pts[0].In)
	for _, p := range pts[1:] {
		for i := 0; i < d; i++ {
			r.Min[i] = min(r.Min[i], p.In[i])
			r.Max[i] = max(r.Max[i], p.In[i])
		}
	}
	return r
}

// Function is a fitted vector function.
type Function interface {
	// Evaluate returns the function value at in. The result is freshly allocated.
	Evaluate(in []float64) []float64
	// ValidInputRange returns the box the fit is known to be valid on.
	ValidInputRange() (lo, hi []float64)
}

// Mapper fits a Function to weighted correspondences.
type Mapper interface {
	Fit(points []Point, in, out Range, gridResolution int, smoothing float64) (Function, error)
}
