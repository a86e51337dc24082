package gamutmap

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
)

// Chroma below which hue differences are progressively discounted.
const hueChromaScale = 20.0

// poleCloseness is 0 across the mid tones and rises to 1 at white and
// black, measured on the normalised 0-100 axis.
func poleCloseness(l float64) float64 {
	d := math.Abs(l-50) / 50
	return clamp01((d - 0.6) / 0.4)
}

// Squared ellipse distance of b from a in units of the window radii.
func windowDistance(a, b LCh, rL, rH float64) float64 {
	dl := (b.L - a.L) / rL
	c := math.Min(1, 0.5*(a.C+b.C)/hueChromaScale)
	dh := hueDiff(a.H, b.H) * c / rH
	return dl*dl + dh*dh
}

// Neighborhood pass: builds every point's normalised neighbor list.
func buildNeighbors(ctx *genContext) error {
	pts := ctx.points
	n := len(pts)
	lch := make([]LCh, n)
	poles := make([]float64, n)
	mean := 0.0
	for i := range pts {
		lch[i] = ToLCh(pts[i].SrcCusp)
		poles[i] = poleCloseness(ctx.srcCusps.Normalize(pts[i].SrcCusp).X)
		mean += pts[i].SrcRadius
	}
	mean /= float64(n)
	ctx.meanRadius = mean
	ctx.poles = poles

	return parallelFor(n, ctx.opts.Workers, func(i int) error {
		gp := &pts[i]
		scale := 1.0
		if gp.SrcRadius > 1.0e-9 {
			scale = mean / gp.SrcRadius
		}
		scale *= 1 - 0.5*poles[i]
		rL := gp.W.RelL * scale
		rH := gp.W.RelH * scale

		var nb []Neighbor
		sumDir, sumDepth := 0.0, 0.0
		nearest, nearestD := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			d := windowDistance(lch[i], lch[j], rL, rH)
			if d < nearestD {
				nearest, nearestD = j, d
			}
			if d > 1 {
				continue
			}
			w := Neighbor{Index: j, Dir: math.Exp(-2 * d), Depth: math.Exp(-d)}
			sumDir += w.Dir
			sumDepth += w.Depth
			nb = append(nb, w)
		}
		if len(nb) == 0 {
			if nearest >= 0 {
				nb = []Neighbor{{Index: nearest, Dir: 1, Depth: 1}}
			}
		} else {
			for k := range nb {
				nb[k].Dir /= sumDir
				nb[k].Depth /= sumDepth
			}
		}
		gp.Neighbors = nb
		return nil
	})
}

// neighborAverage returns SrcCusp_i plus the direction weighted average of
// the neighbors' vectors, taken from vecs.
func neighborAverage(gp *GuidePoint, vecs []r3.Vec) r3.Vec {
	if len(gp.Neighbors) == 0 {
		return r3.Add(gp.SrcCusp, vecs[gp.ID])
	}
	var sum r3.Vec
	for _, nb := range gp.Neighbors {
		sum = r3.Add(sum, r3.Scale(nb.Dir, vecs[nb.Index]))
	}
	return r3.Add(gp.SrcCusp, sum)
}

// Vector smoothing pass. Points close to white or black keep their
// unsmoothed target.
func smoothVectors(ctx *genContext) {
	vecs := currentVectors(ctx.points)
	for i := range ctx.points {
		gp := &ctx.points[i]
		s := ctx.opts.Smoothing * (1 - ctx.poles[i])
		if s <= 0 {
			continue
		}
		avg := neighborAverage(gp, vecs)
		gp.Dst = r3.Add(gp.Dst, r3.Scale(s, r3.Sub(avg, gp.Dst)))
	}
}

func currentVectors(pts []GuidePoint) []r3.Vec {
	vecs := make([]r3.Vec, len(pts))
	for i := range pts {
		vecs[i] = pts[i].Vector()
	}
	return vecs
}

// radialExcess is how far p lies outside o along its radial direction.
func radialExcess(o gamut.Oracle, p r3.Vec) float64 {
	c := o.Center()
	d := r3.Norm(r3.Sub(p, c))
	if d < 1.0e-12 {
		return 0
	}
	_, r := o.RadialProjection(p)
	return math.Max(0, d-r)
}
