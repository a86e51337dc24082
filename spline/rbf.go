package spline

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/arthur-liberman/hcfr-code-sub010/mem"
)

// RBF fits a weighted polyharmonic radial basis function with a linear
// polynomial tail. Inputs are normalised to the unit box before fitting so
// that the smoothing factor behaves the same for every colour axis.
//
// When Tabulate is set and the input has at most three dimensions, the fit
// is resampled on a regular grid of gridResolution nodes per axis and
// evaluated by interpolation.
type RBF struct {
	Tabulate bool
}

// Kernel for the given input dimension: r^3 on a line, r^2 log r on a
// plane and r in space.
func kernel(dims int, r float64) float64 {
	switch dims {
	case 1:
		return r * r * r
	case 2:
		if r < 1.0e-12 {
			return 0
		}
		return r * r * math.Log(r)
	default:
		return r
	}
}

type rbfFunction struct {
	dIn, dOut int
	centres   [][]float64 // normalised
	coef      *mat.Dense  // n x dOut
	poly      *mat.Dense  // (dIn+1) x dOut
	norm      Range       // normalisation box
	valid     Range
	out       Range
	grid      *grid
}

// Fit implements Mapper.
func (f RBF) Fit(points []Point, in, out Range, gridResolution int, smoothing float64) (Function, error) {
	if len(points) == 0 {
		return nil, ErrTooFewPoints
	}
	dIn, dOut := len(points[0].In), len(points[0].Out)
	if dIn == 0 || dOut == 0 {
		return nil, ErrDimension
	}
	if len(points) < dIn+1 {
		return nil, errors.Wrapf(ErrTooFewPoints, "need %d, got %d", dIn+1, len(points))
	}
	meanW := 0.0
	for i, p := range points {
		if len(p.In) != dIn || len(p.Out) != dOut {
			return nil, errors.Wrapf(ErrDimension, "point %d", i)
		}
		if !(p.Weight > 0) {
			return nil, errors.Wrapf(ErrWeight, "point %d", i)
		}
		meanW += p.Weight
	}
	meanW /= float64(len(points))

	norm := in
	if norm.IsZero() {
		norm = BoundingBox(points)
	}
	if norm.Dims() != dIn {
		return nil, errors.Wrap(ErrDimension, "input range")
	}
	norm = norm.Clone()

	fn := &rbfFunction{
		dIn:     dIn,
		dOut:    dOut,
		norm:    norm,
		valid:   norm,
		out:     out.Clone(),
		centres: make([][]float64, len(points)),
	}
	for i, p := range points {
		fn.centres[i] = fn.normalise(p.In, make([]float64, dIn))
	}

	n := len(points)
	m := dIn + 1
	a := mat.NewDense(n+m, n+m, nil)
	b := mat.NewDense(n+m, dOut, nil)

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := kernel(dIn, dist(fn.centres[i], fn.centres[j]))
			a.Set(i, j, v)
			a.Set(j, i, v)
		}
		// Smoothing relaxes the fit where the weight is low
		a.Set(i, i, a.At(i, i)+smoothing*meanW/points[i].Weight+1.0e-10)

		a.Set(i, n, 1)
		a.Set(n, i, 1)
		for k := 0; k < dIn; k++ {
			a.Set(i, n+1+k, fn.centres[i][k])
			a.Set(n+1+k, i, fn.centres[i][k])
		}
		for o := 0; o < dOut; o++ {
			b.Set(i, o, points[i].Out[o])
		}
	}

	var sol mat.Dense
	if err := sol.Solve(a, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, errors.Wrap(err, "spline: solve")
		}
	}
	fn.coef = mat.DenseCopyOf(sol.Slice(0, n, 0, dOut))
	fn.poly = mat.DenseCopyOf(sol.Slice(n, n+m, 0, dOut))

	if f.Tabulate && dIn <= 3 && gridResolution >= 2 {
		g := newGrid(dIn, dOut, gridResolution, norm)
		mem.WithFrame(func(mm mem.Manager) {
			g.fill(func(in, out []float64) {
				fn.direct(mm, in, out)
			})
		})
		fn.grid = g
	}
	return fn, nil
}

func dist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

func (fn *rbfFunction) normalise(in, dst []float64) []float64 {
	for i := 0; i < fn.dIn; i++ {
		dst[i] = (in[i] - fn.norm.Min[i]) / fn.norm.Span(i)
	}
	return dst
}

// Direct evaluation of the kernel sum
func (fn *rbfFunction) direct(m mem.Manager, in, out []float64) {
	sc := m.Scratch()
	sc.In = mem.Floats(sc.In, fn.dIn)
	u := fn.normalise(in, sc.In)
	sc.Kernel = mem.Floats(sc.Kernel, len(fn.centres))
	for i, c := range fn.centres {
		sc.Kernel[i] = kernel(fn.dIn, dist(u, c))
	}
	for o := 0; o < fn.dOut; o++ {
		v := fn.poly.At(0, o)
		for k := 0; k < fn.dIn; k++ {
			v += fn.poly.At(k+1, o) * u[k]
		}
		for i, kv := range sc.Kernel {
			v += fn.coef.At(i, o) * kv
		}
		out[o] = v
	}
}

// Evaluate implements Function.
func (fn *rbfFunction) Evaluate(in []float64) []float64 {
	out := make([]float64, fn.dOut)
	m := mem.NewManager()
	defer m.FreeAll()
	if fn.grid != nil {
		fn.grid.eval(m, in, out)
	} else {
		fn.direct(m, in, out)
	}
	if !fn.out.IsZero() && fn.out.Dims() == fn.dOut {
		for o := range out {
			out[o] = math.Min(fn.out.Max[o], math.Max(fn.out.Min[o], out[o]))
		}
	}
	return out
}

// ValidInputRange implements Function.
func (fn *rbfFunction) ValidInputRange() (lo, hi []float64) {
	return append([]float64(nil), fn.valid.Min...), append([]float64(nil), fn.valid.Max...)
}
