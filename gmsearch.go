package gamutmap

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/zeebo/xxh3"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
)

// surfaceParams parameterises a gamut surface by the hue and elevation
// (both radians) of its radial projection.
type surfaceParams struct {
	o gamut.Oracle
	c r3.Vec
}

func newSurfaceParams(o gamut.Oracle) surfaceParams {
	return surfaceParams{o: o, c: o.Center()}
}

func (s surfaceParams) at(x []float64) r3.Vec {
	e := math.Max(-math.Pi/2, math.Min(math.Pi/2, x[1]))
	hit, _ := s.o.RadialProjection(r3.Add(s.c, gamut.Direction(x[0]*180/math.Pi, e)))
	return hit
}

func (s surfaceParams) params(p r3.Vec) []float64 {
	d := r3.Sub(p, s.c)
	n := r3.Norm(d)
	if n < 1.0e-12 {
		return []float64{0, 0}
	}
	return []float64{
		math.Atan2(d.Z, d.Y),
		math.Asin(math.Max(-1, math.Min(1, d.X/n))),
	}
}

// searcher runs seeded multi-restart Nelder-Mead searches.
type searcher struct {
	restarts int
	evals    int
	seed     uint64
	simplex  float64 // initial simplex size, 0 selects the gonum default
}

// Restart sequence for one point is seeded from its stage and id only.
func (s searcher) rng(stage Stage, id int) *rand.Rand {
	h := xxh3.HashStringSeed(fmt.Sprintf("%s/%d", stage, id), s.seed)
	return rand.New(rand.NewSource(int64(h)))
}

// minimize tries the given starts in order, then jittered copies of the
// first start, for s.restarts searches in total. It returns the best finite
// minimum, or a StageError wrapping ErrSearchFailure when none was found.
func (s searcher) minimize(stage Stage, id int, starts [][]float64, jitter []float64, f func([]float64) float64) ([]float64, float64, error) {
	var rnd *rand.Rand
	var best []float64
	bestF := math.Inf(1)

	settings := &optimize.Settings{
		Converger:       &optimize.FunctionConverge{Absolute: 1e-10, Relative: 1e-10, Iterations: 30},
		FuncEvaluations: s.evals,
	}
	for k := 0; k < s.restarts; k++ {
		var x0 []float64
		if k < len(starts) {
			x0 = append([]float64(nil), starts[k]...)
		} else {
			if rnd == nil {
				rnd = s.rng(stage, id)
			}
			x0 = append([]float64(nil), starts[0]...)
			for i := range x0 {
				x0[i] += jitter[i] * (2*rnd.Float64() - 1)
			}
		}
		if f0 := f(x0); !math.IsNaN(f0) && !math.IsInf(f0, 0) && f0 < bestF {
			best, bestF = x0, f0
		}
		res, _ := optimize.Minimize(optimize.Problem{Func: f}, x0, settings, &optimize.NelderMead{SimplexSize: s.simplex})
		if res == nil || math.IsNaN(res.F) || math.IsInf(res.F, 0) {
			continue
		}
		if res.F < bestF {
			best, bestF = res.X, res.F
		}
	}
	if best == nil {
		return nil, 0, searchFailure(stage, id)
	}
	return best, bestF, nil
}

// Weighted L/C/h error of cand against target, with a power law penalty
// above the delta E threshold.
func absError(w Weights, target, cand r3.Vec) float64 {
	a := ToLCh(target)
	b := ToLCh(cand)
	dL := b.L - a.L
	dC := b.C - a.C
	dH := deltaH(a, b)
	e := w.AbsL*dL*dL + w.AbsC*dC*dC + w.AbsH*dH*dH
	if de := math.Sqrt(dL*dL + dC*dC + dH*dH); de > w.DEThreshold {
		e += math.Pow(de-w.DEThreshold, w.DEPower)
	}
	return e
}

// Jitter amplitude of the (hue, elevation) restarts.
var surfaceJitter = []float64{0.5, 0.3}

// Absolute error pass: nearest, radial and absolute error destinations.
func searchAbsolute(ctx *genContext) error {
	dst := newSurfaceParams(ctx.req.Dest)
	return parallelFor(len(ctx.points), ctx.opts.Workers, func(i int) error {
		gp := &ctx.points[i]
		gp.Nearest = ctx.req.Dest.NearestSurfacePoint(gp.SrcCusp)
		gp.Radial, gp.DstRadius = ctx.req.Dest.RadialProjection(gp.SrcCusp)

		f := func(x []float64) float64 { return absError(gp.W, gp.SrcCusp, dst.at(x)) }
		starts := [][]float64{dst.params(gp.Radial), dst.params(gp.Nearest)}
		x, _, err := ctx.search.minimize(StageAbsolute, gp.ID, starts, surfaceJitter, f)
		if err != nil {
			return err
		}
		gp.AbsErr = dst.at(x)
		return nil
	})
}

// Length of the destination chord along the line through from and to, or
// fallback when the line does not cross the surface twice.
func chordLength(o gamut.Oracle, from, to r3.Vec, fallback float64) float64 {
	v := r3.Sub(to, from)
	n := r3.Norm(v)
	if n < 1.0e-9 {
		return fallback
	}
	hits := o.RayIntersect(from, to)
	if len(hits) < 2 {
		return fallback
	}
	return (hits[len(hits)-1].T - hits[0].T) * n
}

// Composite pass: absolute error plus radial and depth terms.
func searchComposite(ctx *genContext) error {
	dst := newSurfaceParams(ctx.req.Dest)
	return parallelFor(len(ctx.points), ctx.opts.Workers, func(i int) error {
		gp := &ctx.points[i]
		room := math.Max(1, chordLength(ctx.req.Dest, gp.SrcCusp, gp.AbsErr, 2*gp.DstRadius))
		f := func(x []float64) float64 {
			s := dst.at(x)
			e := absError(gp.W, gp.SrcCusp, s)
			e += gp.W.Radial * r3.Norm(r3.Sub(s, gp.Radial))
			ratio := r3.Norm(r3.Sub(s, gp.SrcCusp)) / room
			return e + gp.W.Depth*ratio*ratio
		}
		starts := [][]float64{dst.params(gp.AbsErr), dst.params(gp.Radial)}
		x, _, err := ctx.search.minimize(StageComposite, gp.ID, starts, surfaceJitter, f)
		if err != nil {
			return err
		}
		gp.Dst = dst.at(x)
		return nil
	})
}
