package gamutmap

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// genContext is the state shared by the generation passes.
type genContext struct {
	req     GenerateRequest
	opts    Options
	log     logrus.FieldLogger
	warn    *warnings
	weights *WeightConfig
	search  searcher

	srcCusps *CuspSet
	dstCusps *CuspSet

	points     []GuidePoint
	poles      []float64 // pole closeness per point
	meanRadius float64
}

type genStage struct {
	stage Stage
	run   func(*genContext) error
}

var genStages = []genStage{
	{StageSampling, samplePoints},
	{StageCuspAlign, func(ctx *genContext) error { alignCusps(ctx); return nil }},
	{StageAbsolute, searchAbsolute},
	{StageComposite, searchComposite},
	{StageNeighbors, buildNeighbors},
	{StageSmoothing, func(ctx *genContext) error { smoothVectors(ctx); return nil }},
	{StageCorrection, correctBoundary},
	{StageKnees, synthesizeKnees},
}

// Generate computes the guide vector field between the source (optionally
// restricted to an image gamut) and the destination. It is all or nothing:
// any fatal stage failure returns an error and no points.
func Generate(req GenerateRequest) ([]GuidePoint, []Warning, error) {
	if err := checkCompatible(&req); err != nil {
		return nil, nil, err
	}
	opts := req.Options.withDefaults()
	weights := req.Weights
	if weights == nil {
		weights = DefaultWeightConfig()
	}
	if err := weights.Validate(); err != nil {
		return nil, nil, err
	}

	log := opts.Logger.WithField("run", uuid.New().String())
	ctx := &genContext{
		req:     req,
		opts:    opts,
		log:     log,
		warn:    &warnings{log: log},
		weights: weights,
		search:  searcher{restarts: opts.Restarts, evals: opts.Evaluations, seed: opts.Seed},
	}
	var err error
	if ctx.srcCusps, err = NewCuspSet(req.Source, false); err != nil {
		return nil, nil, err
	}
	if ctx.dstCusps, err = NewCuspSet(req.Dest, req.KOnlyBlack); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	for _, st := range genStages {
		t0 := time.Now()
		if err := st.run(ctx); err != nil {
			log.WithField("stage", st.stage.String()).WithError(err).Error("guide generation failed")
			return nil, nil, err
		}
		log.WithFields(logrus.Fields{
			"stage":   st.stage.String(),
			"points":  len(ctx.points),
			"elapsed": time.Since(t0),
		}).Debug("stage complete")
	}
	log.WithFields(logrus.Fields{
		"points":  len(ctx.points),
		"elapsed": time.Since(start),
	}).Info("guide generation complete")

	out := make([]GuidePoint, len(ctx.points))
	copy(out, ctx.points)
	return out, ctx.warn.list, nil
}
