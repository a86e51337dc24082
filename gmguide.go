package gamutmap

import (
	"runtime"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
	"github.com/arthur-liberman/hcfr-code-sub010/spline"
)

// KneePair is an extra correspondence placed below the surface to soften
// the transition between mapped and unmapped regions.
type KneePair struct {
	Src r3.Vec
	Dst r3.Vec
}

// Neighbor links a guide point to another one by index. Dir and Depth are
// each normalised to sum to one over a point's neighbor list.
type Neighbor struct {
	Index int
	Dir   float64
	Depth float64
}

// GuidePoint is one source to destination correspondence.
type GuidePoint struct {
	ID int

	Src     r3.Vec // sampled source surface point
	SrcCusp r3.Vec // after cusp realignment

	Nearest r3.Vec // naive nearest destination surface point
	Radial  r3.Vec // radial projection onto the destination
	AbsErr  r3.Vec // absolute error search result
	Dst     r3.Vec // final destination

	Knees     []KneePair
	W         Weights
	Neighbors []Neighbor

	Compress  bool
	Expand    bool
	Ambiguous bool

	SrcRadius float64 // source surface distance from the centre
	DstRadius float64 // destination surface distance along the same ray
}

// Vector returns the mapping vector Dst - SrcCusp.
func (gp *GuidePoint) Vector() r3.Vec { return r3.Sub(gp.Dst, gp.SrcCusp) }

// Options tunes the numerical behaviour of guide generation.
type Options struct {
	Restarts         int     // local searches per point and stage
	Evaluations      int     // objective evaluations per local search
	ObliqueCos       float64 // minimum cosine between normal and radial direction
	Smoothing        float64 // vector smoothing strength in (0,1], negative disables
	CorrectionPasses int
	FitSmoothing     float64 // spline smoothing of the predicted fit
	Tolerance        float64 // delta E treated as zero
	MinVector        float64 // shorter vectors are never classified
	Workers          int
	Seed             uint64
	Mapper           spline.Mapper
	Logger           logrus.FieldLogger
}

// DefaultOptions returns the settings used when a request leaves Options zero.
func DefaultOptions() Options {
	return Options{
		Restarts:         4,
		Evaluations:      400,
		ObliqueCos:       0.1,
		Smoothing:        0.5,
		CorrectionPasses: 2,
		FitSmoothing:     1.0e-3,
		Tolerance:        1.0e-3,
		MinVector:        0.5,
		Workers:          runtime.NumCPU(),
		Mapper:           spline.RBF{},
	}
}

// Fill zero fields from the defaults.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Restarts <= 0 {
		o.Restarts = d.Restarts
	}
	if o.Evaluations <= 0 {
		o.Evaluations = d.Evaluations
	}
	if o.ObliqueCos == 0 {
		o.ObliqueCos = d.ObliqueCos
	}
	if o.Smoothing == 0 {
		o.Smoothing = d.Smoothing
	} else if o.Smoothing < 0 {
		o.Smoothing = 0
	}
	if o.CorrectionPasses <= 0 {
		o.CorrectionPasses = d.CorrectionPasses
	}
	if o.FitSmoothing <= 0 {
		o.FitSmoothing = d.FitSmoothing
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MinVector <= 0 {
		o.MinVector = d.MinVector
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.Mapper == nil {
		o.Mapper = d.Mapper
	}
	if o.Logger == nil {
		o.Logger = Log
	}
	return o
}

// GenerateRequest describes one guide generation run.
type GenerateRequest struct {
	Source gamut.Oracle
	Image  gamut.Oracle // optional, restricts sampling to the image gamut
	Dest   gamut.Oracle

	Weights         *WeightConfig
	KneeFactors     [2]float64 // fractions along the vector, 0 disables a knee
	WantCompression bool
	WantExpansion   bool
	KOnlyBlack      bool

	VertexDensity    float64 // scales the sample count, 1 is nominal
	TargetResolution int     // nominal number of elevation bands

	Options Options
}
