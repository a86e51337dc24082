package gamutmap

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
	"github.com/arthur-liberman/hcfr-code-sub010/spline"
)

const (
	fieldBands  = 8    // elevation bands of the correction field samples
	fieldShrink = 0.9  // relative size of the inner copy of the boundary
	retractRate = 0.5  // share of the available slack given back per pass
	contactTolF = 1e-6 // squared boundary distance accepted by the contact search
)

func vecToSlice(v r3.Vec) []float64 { return []float64{v.X, v.Y, v.Z} }
func sliceToVec(s []float64) r3.Vec { return r3.Vec{X: s[0], Y: s[1], Z: s[2]} }

// correctionField fits the inward vector field running from the
// destination boundary to a shrunk copy of it.
func correctionField(o gamut.Oracle, m spline.Mapper) (spline.Function, error) {
	c := o.Center()
	var pts []spline.Point
	for _, d := range stratifiedDirections(fieldBands) {
		s, _ := o.RadialProjection(r3.Add(c, gamut.Direction(d.hue, d.elev)))
		inner := r3.Add(c, r3.Scale(fieldShrink, r3.Sub(s, c)))
		pts = append(pts, spline.Point{In: vecToSlice(s), Out: vecToSlice(r3.Sub(inner, s)), Weight: 1})
	}
	// The poles are not covered by the bands
	for _, e := range []float64{math.Pi / 2, -math.Pi / 2} {
		s, _ := o.RadialProjection(r3.Add(c, gamut.Direction(0, e)))
		inner := r3.Add(c, r3.Scale(fieldShrink, r3.Sub(s, c)))
		pts = append(pts, spline.Point{In: vecToSlice(s), Out: vecToSlice(r3.Sub(inner, s)), Weight: 1})
	}
	fn, err := m.Fit(pts, spline.Range{}, spline.Range{}, 0, 1.0e-3)
	if err != nil {
		return nil, errors.Wrap(err, "correction field")
	}
	return fn, nil
}

// Unit inward direction of the correction field at p.
func fieldDir(field spline.Function, c, p r3.Vec) r3.Vec {
	v := sliceToVec(field.Evaluate(vecToSlice(p)))
	if r3.Norm(v) < 1.0e-9 || r3.Dot(v, r3.Sub(c, p)) < 0 {
		v = r3.Sub(c, p)
	}
	if r3.Norm(v) < 1.0e-12 {
		return r3.Vec{}
	}
	return r3.Unit(v)
}

// Fit of the current SrcCusp to Dst correspondences, standing in for the
// final boundary map.
func predictFit(ctx *genContext) ([]r3.Vec, error) {
	pts := make([]spline.Point, len(ctx.points))
	for i := range ctx.points {
		gp := &ctx.points[i]
		pts[i] = spline.Point{In: vecToSlice(gp.SrcCusp), Out: vecToSlice(gp.Dst), Weight: gp.W.FineTune}
	}
	fn, err := ctx.opts.Mapper.Fit(pts, spline.Range{}, spline.Range{}, 0, ctx.opts.FitSmoothing)
	if err != nil {
		return nil, errors.Wrap(err, "correction prediction")
	}
	pred := make([]r3.Vec, len(ctx.points))
	err = parallelFor(len(pred), ctx.opts.Workers, func(i int) error {
		pred[i] = sliceToVec(fn.Evaluate(vecToSlice(ctx.points[i].SrcCusp)))
		return nil
	})
	return pred, err
}

// Boundary correction pass.
func correctBoundary(ctx *genContext) error {
	dest := ctx.req.Dest
	c := dest.Center()
	field, err := correctionField(dest, ctx.opts.Mapper)
	if err != nil {
		return err
	}
	n := len(ctx.points)
	moved := make([]float64, n)
	excess := make([]float64, n)
	slack := make([]float64, n)

	for pass := 0; pass < ctx.opts.CorrectionPasses; pass++ {
		var pred []r3.Vec
		if pass == 0 {
			vecs := currentVectors(ctx.points)
			pred = make([]r3.Vec, n)
			for i := range ctx.points {
				pred[i] = neighborAverage(&ctx.points[i], vecs)
			}
		} else if pred, err = predictFit(ctx); err != nil {
			return err
		}

		err = parallelFor(n, ctx.opts.Workers, func(i int) error {
			d := r3.Norm(r3.Sub(pred[i], c))
			_, r := dest.RadialProjection(pred[i])
			excess[i], slack[i] = 0, 0
			if d-r > ctx.opts.Tolerance {
				excess[i] = d - r
			} else if r-d > 0 {
				slack[i] = r - d
			}
			return nil
		})
		if err != nil {
			return err
		}

		adjusted := 0
		for i := range ctx.points {
			gp := &ctx.points[i]
			need := excess[i]
			spread := 0.0
			for _, nb := range gp.Neighbors {
				spread += nb.Depth * excess[nb.Index]
			}
			need = math.Max(need, spread)
			u := fieldDir(field, c, gp.Dst)
			switch {
			case need > 0:
				gp.Dst = r3.Add(gp.Dst, r3.Scale(need, u))
				moved[i] += need
				adjusted++
			case moved[i] > 0:
				back := math.Min(moved[i], retractRate*slack[i])
				if back > 0 {
					gp.Dst = r3.Sub(gp.Dst, r3.Scale(back, u))
					moved[i] -= back
					adjusted++
				}
			}
		}
		ctx.log.WithField("pass", pass).Debugf("boundary correction adjusted %d points", adjusted)
	}

	// Any point still outside is moved onto the boundary along the field
	return parallelFor(n, ctx.opts.Workers, func(i int) error {
		gp := &ctx.points[i]
		ex := radialExcess(dest, gp.Dst)
		if ex <= ctx.opts.Tolerance {
			gp.Dst = gamut.ClipRadial(dest, gp.Dst)
			return nil
		}
		u := fieldDir(field, c, gp.Dst)
		base := gp.Dst
		at := func(t float64) r3.Vec { return r3.Add(base, r3.Scale(math.Abs(t), u)) }
		f := func(x []float64) float64 {
			p := at(x[0])
			d := r3.Norm(r3.Sub(p, c))
			_, r := dest.RadialProjection(p)
			return (d - r) * (d - r)
		}
		x, fx, err := ctx.search.minimize(StageCorrection, gp.ID, [][]float64{{ex}, {2 * ex}}, []float64{ex}, f)
		if err != nil {
			return err
		}
		if fx > contactTolF && radialExcess(dest, at(x[0])) > ctx.opts.Tolerance {
			return searchFailure(StageCorrection, gp.ID)
		}
		gp.Dst = gamut.ClipRadial(dest, at(x[0]))
		return nil
	})
}
