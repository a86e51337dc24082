package gamutmap

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
)

// Slack allowed when checking that an image gamut lies within its source.
const imageSlack = 0.05

func checkCompatible(req *GenerateRequest) error {
	if req.Source == nil || req.Dest == nil {
		return errors.Wrap(ErrIncompatibleGamuts, "source and destination are required")
	}
	c := req.Source.Center()
	if r3.Norm(r3.Sub(c, req.Dest.Center())) > 1.0e-6 {
		return errors.Wrapf(ErrIncompatibleGamuts, "centres differ: %v and %v", c, req.Dest.Center())
	}
	if req.Image == nil {
		return nil
	}
	if r3.Norm(r3.Sub(c, req.Image.Center())) > 1.0e-6 {
		return errors.Wrapf(ErrIncompatibleGamuts, "image centre %v differs from source %v", req.Image.Center(), c)
	}
	white, black, _ := req.Image.WhiteBlack(false)
	for _, p := range []r3.Vec{white, black} {
		if r := gamut.RadialRatio(req.Source, p); r > 1+imageSlack {
			return errors.Wrapf(ErrIncompatibleGamuts, "image neutral %v lies outside the source gamut (ratio %.3f)", p, r)
		}
	}
	return nil
}

type sampleDir struct {
	hue  float64 // degrees
	elev float64 // radians
}

// Stratified directions: equal-area elevation bands, hue counts
// proportional to band circumference, golden angle offset per band.
func stratifiedDirections(bands int) []sampleDir {
	golden := 180 * (3 - math.Sqrt(5))
	var dirs []sampleDir
	for k := 0; k < bands; k++ {
		e := math.Asin(-1 + (2*float64(k)+1)/float64(bands))
		n := int(math.Round(2 * float64(bands) * math.Cos(e)))
		if n < 1 {
			n = 1
		}
		off := float64(k) * golden
		for j := 0; j < n; j++ {
			h := math.Mod(off+(float64(j)+0.5)*360/float64(n), 360)
			dirs = append(dirs, sampleDir{hue: h, elev: e})
		}
	}
	return dirs
}

// Radial projection onto the intersection of the source and image gamuts.
func (ctx *genContext) sourceSurface(hue, elev float64) (r3.Vec, float64) {
	c := ctx.req.Source.Center()
	p := r3.Add(c, gamut.Direction(hue, elev))
	hit, r := ctx.req.Source.RadialProjection(p)
	if ctx.req.Image != nil {
		if ih, ir := ctx.req.Image.RadialProjection(p); ir < r {
			hit, r = ih, ir
		}
	}
	return hit, r
}

// Cosine between the estimated outward surface normal and the radial
// direction at one sample direction.
func (ctx *genContext) obliqueness(d sampleDir) float64 {
	const dh, de = 2.0, 0.02
	h1, _ := ctx.sourceSurface(d.hue+dh, d.elev)
	h0, _ := ctx.sourceSurface(d.hue-dh, d.elev)
	e1, _ := ctx.sourceSurface(d.hue, d.elev+de)
	e0, _ := ctx.sourceSurface(d.hue, d.elev-de)
	n := r3.Cross(r3.Sub(h1, h0), r3.Sub(e1, e0))
	nn := r3.Norm(n)
	if nn < 1.0e-12 {
		return 0
	}
	return r3.Dot(r3.Scale(1/nn, n), gamut.Direction(d.hue, d.elev))
}

func sampleBands(density float64, resolution int) int {
	if density <= 0 {
		density = 1
	}
	if resolution <= 0 {
		resolution = 10
	}
	b := int(math.Round(density * float64(resolution)))
	if b < 3 {
		b = 3
	}
	return b
}

// Sampling pass: fills ctx.points with the accepted surface samples.
func samplePoints(ctx *genContext) error {
	dirs := stratifiedDirections(sampleBands(ctx.req.VertexDensity, ctx.req.TargetResolution))
	type sample struct {
		p  r3.Vec
		r  float64
		ok bool
	}
	samples := make([]sample, len(dirs))
	err := parallelFor(len(dirs), ctx.opts.Workers, func(i int) error {
		d := dirs[i]
		p, r := ctx.sourceSurface(d.hue, d.elev)
		if r <= 1.0e-9 || ctx.obliqueness(d) < ctx.opts.ObliqueCos {
			return nil
		}
		samples[i] = sample{p: p, r: r, ok: true}
		return nil
	})
	if err != nil {
		return err
	}

	ctx.points = ctx.points[:0]
	for _, s := range samples {
		if !s.ok {
			continue
		}
		ctx.points = append(ctx.points, GuidePoint{
			ID:        len(ctx.points),
			Src:       s.p,
			SrcRadius: s.r,
		})
	}
	if len(ctx.points) == 0 {
		return errors.Wrapf(ErrSamplingExhausted, "all %d directions rejected", len(dirs))
	}
	ctx.log.WithField("requested", len(dirs)).Debugf("%d of %d samples accepted", len(ctx.points), len(dirs))
	return nil
}
