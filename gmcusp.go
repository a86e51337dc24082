package gamutmap

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
)

// axisFrame maps a gamut's black to L=0 and its white to L=100 on the
// neutral axis with a rotation and a uniform scale.
type axisFrame struct {
	black r3.Vec
	rot   Mat3
	scale float64
}

func newAxisFrame(white, black r3.Vec) (axisFrame, error) {
	axis := r3.Sub(white, black)
	n := r3.Norm(axis)
	if n < 1.0e-6 {
		return axisFrame{}, errors.Wrap(ErrNonInvertibleAlignment, "white and black coincide")
	}
	return axisFrame{
		black: black,
		rot:   RotationBetween(axis, r3.Vec{X: 1}),
		scale: 100 / n,
	}, nil
}

func (f axisFrame) normalize(p r3.Vec) r3.Vec {
	return r3.Scale(f.scale, f.rot.Eval(r3.Sub(p, f.black)))
}

func (f axisFrame) denormalize(q r3.Vec) r3.Vec {
	return r3.Add(f.black, f.rot.Transpose().Eval(r3.Scale(1/f.scale, q)))
}

// CuspSet holds the cusps of one gamut in its normalised axis frame.
type CuspSet struct {
	White, Black r3.Vec
	Cusps        [6]r3.Vec // normalised
	Hues         [6]float64
	Grey         r3.Vec // normalised local grey point
	// Synthetic is set when the oracle had no cusps and the set was
	// estimated at the default hues.
	Synthetic bool

	frame axisFrame
}

// NewCuspSet reads white, black and cusps from o. When the oracle has no
// cusps the set is estimated by radial projection at the default hues.
func NewCuspSet(o gamut.Oracle, kOnlyBlack bool) (*CuspSet, error) {
	white, black, kBlack := o.WhiteBlack(kOnlyBlack)
	if kOnlyBlack {
		black = kBlack
	}
	frame, err := newAxisFrame(white, black)
	if err != nil {
		return nil, err
	}
	cs := &CuspSet{White: white, Black: black, frame: frame}
	cusps, ok := o.Cusps()
	if !ok {
		cs.Synthetic = true
		c := o.Center()
		for i, h := range gamut.DefaultCuspHues {
			cusps[i], _ = o.RadialProjection(r3.Add(c, gamut.Direction(h, 0)))
		}
	}
	mean := 0.0
	for i, c := range cusps {
		q := frame.normalize(c)
		cs.Cusps[i] = q
		cs.Hues[i] = gamut.HueOf(q)
		mean += q.X
	}
	cs.Grey = r3.Vec{X: mean / 6}
	return cs, nil
}

func (cs *CuspSet) Normalize(p r3.Vec) r3.Vec   { return cs.frame.normalize(p) }
func (cs *CuspSet) Denormalize(q r3.Vec) r3.Vec { return cs.frame.denormalize(q) }

// Baricentric expresses normalised q in the hextant containing its hue as
// q = g + a(c_i - g) + b(c_j - g) + c*L.
func (cs *CuspSet) Baricentric(q r3.Vec) (i int, abc r3.Vec, ok bool) {
	i, _ = Hexant(gamut.HueOf(q), cs.Hues)
	j := (i + 1) % 6
	m := Columns(r3.Sub(cs.Cusps[i], cs.Grey), r3.Sub(cs.Cusps[j], cs.Grey), r3.Vec{X: 1})
	abc, ok = m.Solve(r3.Sub(q, cs.Grey))
	return i, abc, ok
}

// FromBaricentric is the inverse of Baricentric for hextant i.
func (cs *CuspSet) FromBaricentric(i int, abc r3.Vec) r3.Vec {
	j := (i + 1) % 6
	q := cs.Grey
	q = r3.Add(q, r3.Scale(abc.X, r3.Sub(cs.Cusps[i], cs.Grey)))
	q = r3.Add(q, r3.Scale(abc.Y, r3.Sub(cs.Cusps[j], cs.Grey)))
	return r3.Add(q, r3.Vec{X: abc.Z})
}

// RelativeChroma returns the chroma of normalised q relative to the cusp
// chroma interpolated at its hue.
func (cs *CuspSet) RelativeChroma(q r3.Vec) float64 {
	i, t := Hexant(gamut.HueOf(q), cs.Hues)
	j := (i + 1) % 6
	ref := lerpf(gamut.Chroma(cs.Cusps[i]), gamut.Chroma(cs.Cusps[j]), t)
	if ref < 1.0e-9 {
		return 0
	}
	return gamut.Chroma(q) / ref
}

// realign moves p toward the point with the same baricentric coordinates
// in the destination cusp set. A zero cusp factor returns p unchanged.
func realign(p r3.Vec, src, dst *CuspSet, w Weights) r3.Vec {
	if w.CuspWeight == 0 {
		return p
	}
	q := src.Normalize(p)
	i, abc, ok := src.Baricentric(q)
	if !ok {
		return p
	}
	rel := clamp01(abc.X + abc.Y)
	f := w.CuspWeight * math.Pow(rel, w.Twist)
	if f == 0 {
		return p
	}
	moved := dst.Denormalize(dst.FromBaricentric(i, abc))
	return r3.Add(p, r3.Scale(f, r3.Sub(moved, p)))
}

// Cusp realignment pass: resolves every point's weights and its realigned
// source position.
func alignCusps(ctx *genContext) {
	useCusps := !ctx.srcCusps.Synthetic && !ctx.dstCusps.Synthetic
	if !useCusps {
		ctx.warn.signal(WarnCuspsUnavailable, StageCuspAlign, "cusp alignment disabled: cusps unavailable")
	}
	for k := range ctx.points {
		gp := &ctx.points[k]
		q := ctx.srcCusps.Normalize(gp.Src)
		gp.W = ctx.weights.Resolve(gamut.HueOf(q), q.X, ctx.srcCusps.RelativeChroma(q), ctx.srcCusps.Hues)
		if useCusps {
			gp.SrcCusp = realign(gp.Src, ctx.srcCusps, ctx.dstCusps, gp.W)
		} else {
			gp.SrcCusp = gp.Src
		}
	}
}
