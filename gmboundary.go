package gamutmap

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
	"github.com/arthur-liberman/hcfr-code-sub010/spline"
)

const (
	defaultResolution   = 17
	defaultAnchorGrid   = 7
	defaultAnchorWeight = 0.05
	anchorSeparation    = 2.0 // minimum distance from an anchor to any other input
	boxExpand           = 0.05
)

// BoundaryRequest collects the inputs of the 3-D boundary fit.
type BoundaryRequest struct {
	Guides []GuidePoint
	Source gamut.Oracle
	// Overrides are fitted ahead of the guides and replace any guide or
	// knee correspondence with the same input.
	Overrides []spline.Point
	// Pre maps a source colour into the fit's input space (grey axis and tone curve).
	Pre func(r3.Vec) r3.Vec

	SrcWhite, SrcBlack r3.Vec // used for the neutral axis monotonic check

	Resolution   int     // grid nodes per axis, 0 selects 17
	Smoothing    float64 // spline smoothing
	AnchorGrid   int     // anchor nodes per axis, 0 selects 7
	AnchorWeight float64 // anchor weight relative to the mean guide weight, 0 selects 0.05
	Mapper       spline.Mapper
	Logger       logrus.FieldLogger
}

// BoundaryMap is the fitted 3-D map together with its valid input envelope.
type BoundaryMap struct {
	fn  spline.Function
	env spline.Range
}

// Clip scales a* and b* of q toward zero until they lie in the envelope.
func (b *BoundaryMap) Clip(q r3.Vec) r3.Vec {
	if b.env.Contains(vecToSlice(q)) {
		return q
	}
	k := 1.0
	for i, v := range []float64{q.Y, q.Z} {
		lo, hi := b.env.Min[i+1], b.env.Max[i+1]
		if v > hi && hi > 0 {
			k = math.Min(k, hi/v)
		} else if v < lo && lo < 0 {
			k = math.Min(k, lo/v)
		}
	}
	q.Y *= k
	q.Z *= k
	return q
}

// Eval clips q to the envelope and evaluates the fit.
func (b *BoundaryMap) Eval(q r3.Vec) r3.Vec {
	return sliceToVec(b.fn.Evaluate(vecToSlice(b.Clip(q))))
}

// Envelope returns copies of the valid input range.
func (b *BoundaryMap) Envelope() (lo, hi []float64) {
	env := b.env.Clone()
	return env.Min, env.Max
}

type pointSet struct {
	pts []spline.Point
}

func (s *pointSet) near(in r3.Vec, sep float64) bool {
	for _, p := range s.pts {
		if r3.Norm(r3.Sub(sliceToVec(p.In), in)) < sep {
			return true
		}
	}
	return false
}

func (s *pointSet) add(in, out r3.Vec, w, sep float64) bool {
	if s.near(in, sep) {
		return false
	}
	s.pts = append(s.pts, spline.Point{In: vecToSlice(in), Out: vecToSlice(out), Weight: w})
	return true
}

// BuildBoundaryMap fits the guide correspondences, stabilised by lightly
// weighted anchors, over an input box padded by whole grid cells.
func BuildBoundaryMap(req BoundaryRequest) (*BoundaryMap, []Warning, error) {
	if len(req.Guides) == 0 {
		return nil, nil, errors.Wrap(ErrSamplingExhausted, "boundary map: no guide points")
	}
	if req.Mapper == nil {
		req.Mapper = spline.RBF{Tabulate: true}
	}
	if req.Resolution < 2 {
		req.Resolution = defaultResolution
	}
	if req.AnchorGrid < 2 {
		req.AnchorGrid = defaultAnchorGrid
	}
	if req.AnchorWeight <= 0 {
		req.AnchorWeight = defaultAnchorWeight
	}
	if req.Logger == nil {
		req.Logger = Log
	}

	var set pointSet
	for _, p := range req.Overrides {
		set.add(sliceToVec(p.In), sliceToVec(p.Out), p.Weight, 1.0e-6)
	}
	meanW := 0.0
	srcLo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	srcHi := r3.Scale(-1, srcLo)
	for i := range req.Guides {
		gp := &req.Guides[i]
		set.add(req.Pre(gp.Src), gp.Dst, gp.W.FineTune, 1.0e-6)
		for _, k := range gp.Knees {
			set.add(req.Pre(k.Src), k.Dst, gp.W.FineTune, 1.0e-6)
		}
		meanW += gp.W.FineTune
		srcLo = r3.Vec{X: math.Min(srcLo.X, gp.Src.X), Y: math.Min(srcLo.Y, gp.Src.Y), Z: math.Min(srcLo.Z, gp.Src.Z)}
		srcHi = r3.Vec{X: math.Max(srcHi.X, gp.Src.X), Y: math.Max(srcHi.Y, gp.Src.Y), Z: math.Max(srcHi.Z, gp.Src.Z)}
	}
	meanW /= float64(len(req.Guides))

	provisional, err := req.Mapper.Fit(set.pts, spline.Range{}, spline.Range{}, 0, req.Smoothing)
	if err != nil {
		return nil, nil, errors.Wrap(err, "boundary map: provisional fit")
	}

	// Anchors on a grid over the source extent, clipped into the source gamut
	g := req.AnchorGrid
	anchors := 0
	for i := 0; i < g; i++ {
		for j := 0; j < g; j++ {
			for k := 0; k < g; k++ {
				p := r3.Vec{
					X: lerpf(srcLo.X, srcHi.X, float64(i)/float64(g-1)),
					Y: lerpf(srcLo.Y, srcHi.Y, float64(j)/float64(g-1)),
					Z: lerpf(srcLo.Z, srcHi.Z, float64(k)/float64(g-1)),
				}
				in := req.Pre(gamut.ClipRadial(req.Source, p))
				out := sliceToVec(provisional.Evaluate(vecToSlice(in)))
				if set.add(in, out, req.AnchorWeight*meanW, anchorSeparation) {
					anchors++
				}
			}
		}
	}

	box := spline.BoundingBox(set.pts)
	cells := math.Ceil(boxExpand * float64(req.Resolution-1))
	for d := range box.Min {
		pad := cells * box.Span(d) / float64(req.Resolution-1)
		box.Min[d] -= pad
		box.Max[d] += pad
	}

	fn, err := req.Mapper.Fit(set.pts, box, spline.Range{}, req.Resolution, req.Smoothing)
	if err != nil {
		return nil, nil, errors.Wrap(err, "boundary map")
	}
	lo, hi := fn.ValidInputRange()
	bm := &BoundaryMap{fn: fn, env: spline.Range{Min: lo, Max: hi}}
	req.Logger.WithField("stage", StageBoundaryMap.String()).Debugf("boundary map: %d points, %d overrides, %d anchors", len(set.pts), len(req.Overrides), anchors)

	var warn []Warning
	if !bm.monotonicAlong(req.Pre, req.SrcBlack, req.SrcWhite) {
		warn = append(warn, Warning{Kind: WarnNonMonotonicFit, Stage: StageBoundaryMap, Message: "boundary map lightness decreases along the neutral axis"})
	}
	return bm, warn, nil
}

// monotonicAlong checks that output lightness does not fall along the
// segment from a to b.
func (b *BoundaryMap) monotonicAlong(pre func(r3.Vec) r3.Vec, a, c r3.Vec) bool {
	const steps = 64
	const ripple = 0.05
	prev := math.Inf(-1)
	for i := 0; i <= steps; i++ {
		p := r3.Add(a, r3.Scale(float64(i)/steps, r3.Sub(c, a)))
		l := b.Eval(pre(p)).X
		if l < prev-ripple {
			return false
		}
		prev = math.Max(prev, l)
	}
	return true
}
