package gamutmap

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
)

// Radial ratio margin separating confident compression and expansion
// from points sitting on the destination boundary.
const classifyMargin = 0.01

// Distance from p to the line through white and black.
func axisDistance(white, black, p r3.Vec) float64 {
	axis := r3.Sub(white, black)
	n2 := r3.Norm2(axis)
	if n2 < 1.0e-12 {
		return r3.Norm(r3.Sub(p, black))
	}
	t := r3.Dot(r3.Sub(p, black), axis) / n2
	return r3.Norm(r3.Sub(p, r3.Add(black, r3.Scale(t, axis))))
}

// classify sets the Compress, Expand and Ambiguous flags of gp.
func classify(ctx *genContext, gp *GuidePoint, maxKnee float64) {
	gp.Compress, gp.Expand, gp.Ambiguous = false, false, false
	v := gp.Vector()
	l := r3.Norm(v)
	if l < ctx.opts.MinVector {
		gp.Ambiguous = true
		return
	}
	dest := ctx.req.Dest
	c := dest.Center()
	ratio := gamut.RadialRatio(dest, gp.SrcCusp)
	outward := r3.Dot(v, r3.Sub(gp.SrcCusp, c)) > 0
	crossing := false
	for _, h := range dest.RayIntersect(gp.SrcCusp, gp.Dst) {
		if h.T > 1.0e-6 && h.T < 1-1.0e-6 {
			crossing = true
			break
		}
	}
	switch {
	case ratio > 1+classifyMargin && !outward:
		gp.Compress = true
	case ratio < 1-classifyMargin && outward && !crossing:
		gp.Expand = true
	default:
		gp.Ambiguous = true
		return
	}

	// The deepest knee must stay on the near side of the neutral axis
	anchor := gp.Dst
	if gp.Expand {
		anchor = gp.SrcCusp
	}
	if maxKnee*l > axisDistance(ctx.dstCusps.White, ctx.dstCusps.Black, anchor) {
		gp.Compress, gp.Expand, gp.Ambiguous = false, false, true
	}
}

// kneeAnchor is the end of the vector the knees are measured from.
func kneeAnchor(gp *GuidePoint) r3.Vec {
	if gp.Expand {
		return gp.SrcCusp
	}
	return gp.Dst
}

func (ctx *genContext) insideBoth(p r3.Vec) bool {
	tol := ctx.opts.Tolerance
	return gamut.Contains(ctx.req.Dest, p, tol) && gamut.Contains(ctx.req.Source, p, tol)
}

// Knee synthesis pass.
func synthesizeKnees(ctx *genContext) error {
	req := &ctx.req
	maxKnee := math.Max(req.KneeFactors[0], req.KneeFactors[1])
	err := parallelFor(len(ctx.points), ctx.opts.Workers, func(i int) error {
		classify(ctx, &ctx.points[i], maxKnee)
		return nil
	})
	if err != nil {
		return err
	}

	counts := [3]int{}
	for i := range ctx.points {
		gp := &ctx.points[i]
		gp.Knees = nil
		switch {
		case gp.Compress:
			counts[0]++
			if !req.WantCompression {
				continue
			}
		case gp.Expand:
			counts[1]++
			if !req.WantExpansion {
				gp.Dst = gp.SrcCusp
				continue
			}
		default:
			counts[2]++
			continue
		}
		v := gp.Vector()
		for _, k := range req.KneeFactors {
			if k <= 0 {
				continue
			}
			var p r3.Vec
			if gp.Compress {
				p = r3.Add(gp.Dst, r3.Scale(k, v))
			} else {
				p = r3.Sub(gp.SrcCusp, r3.Scale(k, v))
			}
			if ctx.insideBoth(p) {
				gp.Knees = append(gp.Knees, KneePair{Src: p, Dst: p})
			}
		}
	}
	smoothKnees(ctx)
	ctx.log.Debugf("knees: %d compression, %d expansion, %d ambiguous", counts[0], counts[1], counts[2])
	return nil
}

// smoothKnees blends every knee offset with the weighted offsets of
// neighbors of the same kind.
func smoothKnees(ctx *genContext) {
	pts := ctx.points
	offsets := make([][]r3.Vec, len(pts))
	for i := range pts {
		a := kneeAnchor(&pts[i])
		for _, k := range pts[i].Knees {
			offsets[i] = append(offsets[i], r3.Sub(k.Src, a))
		}
	}
	for i := range pts {
		gp := &pts[i]
		for m := range gp.Knees {
			var sum r3.Vec
			wsum := 0.0
			for _, nb := range gp.Neighbors {
				o := &pts[nb.Index]
				if o.Compress != gp.Compress || len(offsets[nb.Index]) <= m {
					continue
				}
				sum = r3.Add(sum, r3.Scale(nb.Dir, offsets[nb.Index][m]))
				wsum += nb.Dir
			}
			if wsum == 0 {
				continue
			}
			off := r3.Scale(0.5, r3.Add(offsets[i][m], r3.Scale(1/wsum, sum)))
			p := r3.Add(kneeAnchor(gp), off)
			if ctx.insideBoth(p) {
				gp.Knees[m] = KneePair{Src: p, Dst: p}
			}
		}
	}
}
