package gamutmap

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
	"github.com/arthur-liberman/hcfr-code-sub010/spline"
)

const (
	unmapRestarts    = 4
	unmapEvaluations = 2000
	unmapTolerance   = 1.0e-4 // squared delta E
)

// TransformRequest collects the inputs of BuildTransform.
type TransformRequest struct {
	Guides  []GuidePoint
	Source  gamut.Oracle
	Dest    gamut.Oracle
	Weights *WeightConfig

	GreyBlend  float64
	Policy     BlackPolicy
	KOnlyBlack bool

	Resolution        int
	Smoothing         float64
	SaturationEnhance float64 // extra push away from the neutral axis, 0 disables
	ClipToDest        bool    // clip every result into the destination gamut
	Workers           int     // containment checks, 0 uses every CPU

	Mapper spline.Mapper
	Logger logrus.FieldLogger
}

// GamutTransform maps source colours into the destination gamut. It is
// immutable and safe for concurrent use.
type GamutTransform struct {
	id       uuid.UUID
	axis     GreyAxis
	tone     *ToneCurve
	bmap     *BoundaryMap
	dest     gamut.Oracle
	dstWB    WhiteBlack
	srcWB    WhiteBlack
	satEnh   float64
	fine     Mat3
	fineOff  r3.Vec
	clip     bool
	warnings []Warning
}

func destWhiteBlack(o gamut.Oracle, kOnlyBlack bool) WhiteBlack {
	w, b, kb := o.WhiteBlack(kOnlyBlack)
	if kOnlyBlack {
		b = kb
	}
	return WhiteBlack{White: w, Black: b}
}

// BuildTransform builds the grey axis, the tone curve and the boundary map
// and fine tunes the result so the source white and black land on the
// destination ones. The boundary map is then refitted until the source
// maps inside the destination.
func BuildTransform(req TransformRequest) (*GamutTransform, error) {
	if req.Source == nil || req.Dest == nil {
		return nil, errors.Wrap(ErrIncompatibleGamuts, "source and destination are required")
	}
	if len(req.Guides) == 0 {
		return nil, errors.Wrap(ErrSamplingExhausted, "no guide points")
	}
	weights := req.Weights
	if weights == nil {
		weights = DefaultWeightConfig()
	}
	if req.Mapper == nil {
		req.Mapper = spline.RBF{Tabulate: true}
	}
	logger := req.Logger
	if logger == nil {
		logger = Log
	}

	t := &GamutTransform{
		id:     uuid.New(),
		dest:   req.Dest,
		srcWB:  destWhiteBlack(req.Source, false),
		dstWB:  destWhiteBlack(req.Dest, req.KOnlyBlack),
		satEnh: math.Max(0, req.SaturationEnhance),
		clip:   req.ClipToDest,
		fine:   Identity3(),
	}
	log := logger.WithField("transform", t.id.String())
	warn := &warnings{log: log}

	var err error
	if t.axis, err = BuildGreyAxis(t.srcWB, t.dstWB, req.GreyBlend); err != nil {
		return nil, err
	}
	tp := ToneParams{
		SrcWhiteL:        t.axis.Forward(t.srcWB.White).X,
		SrcBlackL:        t.axis.Forward(t.srcWB.Black).X,
		DstWhiteL:        t.dstWB.White.X,
		DstBlackL:        t.dstWB.Black.X,
		CompressEmphasis: weights.CompressEmphasis,
		ExpandEmphasis:   weights.ExpandEmphasis,
		KneeFactor:       weights.KneeFactor,
		Policy:           req.Policy,
	}
	var tw []Warning
	if t.tone, tw, err = BuildToneCurve(tp, req.Mapper); err != nil {
		return nil, err
	}
	for _, w := range tw {
		warn.signal(w.Kind, w.Stage, "%s", w.Message)
	}

	br := BoundaryRequest{
		Guides:     req.Guides,
		Source:     req.Source,
		Pre:        t.preMap,
		SrcWhite:   t.srcWB.White,
		SrcBlack:   t.srcWB.Black,
		Resolution: req.Resolution,
		Smoothing:  req.Smoothing,
		Mapper:     req.Mapper,
		Logger:     log,
	}
	rounds, err := t.contain(br, req.Workers, warn)
	if err != nil {
		return nil, err
	}
	t.warnings = warn.list

	we, be := t.NeutralError()
	log.WithFields(logrus.Fields{
		"guides":     len(req.Guides),
		"policy":     req.Policy.String(),
		"white_de00": we,
		"black_de00": be,
		"tone_swap":  t.tone.Swapped(),
		"rounds":     rounds,
	}).Info("gamut transform built")
	return t, nil
}

// fitBoundary fits the boundary map and the white and black fine tune.
func (t *GamutTransform) fitBoundary(br BoundaryRequest) ([]Warning, error) {
	var bw []Warning
	var err error
	if t.bmap, bw, err = BuildBoundaryMap(br); err != nil {
		return nil, err
	}
	mW := t.boundaryStage(t.srcWB.White)
	mK := t.boundaryStage(t.srcWB.Black)
	if t.fine, t.fineOff, err = solveFineTune(mW, mK, t.dstWB.White, t.dstWB.Black); err != nil {
		return nil, err
	}
	return bw, nil
}

// solveFineTune returns the affine correction taking the measured white
// and black onto the targets while leaving the perpendicular plane alone.
func solveFineTune(mW, mK, tW, tK r3.Vec) (Mat3, r3.Vec, error) {
	a := r3.Sub(mW, mK)
	if r3.Norm(a) < 1.0e-6 {
		return Mat3{}, r3.Vec{}, errors.Wrap(ErrNonInvertibleAlignment, "fine tune: measured white and black coincide")
	}
	e2, e3 := perpendicularBasis(a)
	einv, ok := Columns(a, e2, e3).Inverse()
	if !ok {
		return Mat3{}, r3.Vec{}, errors.Wrap(ErrNonInvertibleAlignment, "fine tune: measured frame")
	}
	m := Columns(r3.Sub(tW, tK), e2, e3).Mul(einv)
	if _, ok := m.Inverse(); !ok {
		return Mat3{}, r3.Vec{}, errors.Wrap(ErrNonInvertibleAlignment, "fine tune: correction matrix")
	}
	return m, r3.Sub(tW, m.Eval(mW)), nil
}

// Grey axis and tone curve.
func (t *GamutTransform) preMap(c r3.Vec) r3.Vec {
	q := t.axis.Forward(c)
	q.X = t.tone.Map(q.X)
	return q
}

// Everything up to the fine tune correction.
func (t *GamutTransform) boundaryStage(c r3.Vec) r3.Vec {
	return t.enhance(t.bmap.Eval(t.preMap(c)))
}

// Closest point to p on the destination neutral axis.
func (t *GamutTransform) axisPoint(p r3.Vec) r3.Vec {
	axis := r3.Sub(t.dstWB.White, t.dstWB.Black)
	s := r3.Dot(r3.Sub(p, t.dstWB.Black), axis) / r3.Norm2(axis)
	return r3.Add(t.dstWB.Black, r3.Scale(s, axis))
}

// enhance pushes q away from the neutral axis by up to satEnh of its
// distance, without leaving the destination gamut.
func (t *GamutTransform) enhance(q r3.Vec) r3.Vec {
	if t.satEnh <= 0 {
		return q
	}
	g := t.axisPoint(q)
	d := r3.Sub(q, g)
	if r3.Norm(d) < 1.0e-9 || !gamut.Contains(t.dest, q, 0) {
		return q
	}
	at := func(s float64) r3.Vec { return r3.Add(g, r3.Scale(1+s, d)) }
	if gamut.Contains(t.dest, at(t.satEnh), 0) {
		return at(t.satEnh)
	}
	lo, hi := 0.0, t.satEnh
	for i := 0; i < 30; i++ {
		mid := 0.5 * (lo + hi)
		if gamut.Contains(t.dest, at(mid), 0) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return at(lo)
}

// Everything but the containment clip.
func (t *GamutTransform) mapUnclipped(c r3.Vec) r3.Vec {
	return r3.Add(t.fine.Eval(t.boundaryStage(c)), t.fineOff)
}

// Map applies the transform to one colour.
func (t *GamutTransform) Map(c r3.Vec) r3.Vec {
	q := t.mapUnclipped(c)
	if t.clip {
		q = gamut.ClipRadial(t.dest, q)
	}
	return q
}

// MapAll maps every colour of in over the given number of workers.
func (t *GamutTransform) MapAll(in []r3.Vec, workers int) []r3.Vec {
	out := make([]r3.Vec, len(in))
	// Map cannot fail; only a recovered panic ends up here
	if err := parallelFor(len(in), workers, func(i int) error {
		out[i] = t.Map(in[i])
		return nil
	}); err != nil {
		panic(err)
	}
	return out
}

// Unmap numerically inverts Map. It returns ErrInversionDidNotConverge,
// together with the best estimate, when the residual stays above tolerance.
func (t *GamutTransform) Unmap(c r3.Vec) (r3.Vec, error) {
	guess := t.axis.Inverse(r3.Vec{X: t.tone.Unmap(c.X), Y: c.Y, Z: c.Z})
	f := func(x []float64) float64 {
		return r3.Norm2(r3.Sub(t.Map(sliceToVec(x)), c))
	}
	s := searcher{restarts: unmapRestarts, evals: unmapEvaluations, simplex: 1}
	starts := [][]float64{vecToSlice(guess), vecToSlice(c)}
	x, fx, err := s.minimize(StageUnmap, 0, starts, []float64{5, 5, 5}, f)
	if err != nil {
		return c, errors.Wrap(ErrInversionDidNotConverge, err.Error())
	}
	if fx > unmapTolerance {
		return sliceToVec(x), errors.Wrapf(ErrInversionDidNotConverge, "residual %.4g", math.Sqrt(fx))
	}
	return sliceToVec(x), nil
}

// NeutralError returns the CIEDE2000 error of the mapped source white and
// black against the destination white and black.
func (t *GamutTransform) NeutralError() (white, black float64) {
	white = CIE2000DeltaE(t.Map(t.srcWB.White), t.dstWB.White, 1, 1, 1)
	black = CIE2000DeltaE(t.Map(t.srcWB.Black), t.dstWB.Black, 1, 1, 1)
	return white, black
}

// Warnings returns the recoverable conditions met while building.
func (t *GamutTransform) Warnings() []Warning {
	return append([]Warning(nil), t.warnings...)
}

// ToneCurve returns the lightness mapping.
func (t *GamutTransform) ToneCurve() *ToneCurve { return t.tone }

// Envelope returns the valid input range of the boundary map.
func (t *GamutTransform) Envelope() (lo, hi []float64) { return t.bmap.Envelope() }
