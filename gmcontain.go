package gamutmap

import (
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
	"github.com/arthur-liberman/hcfr-code-sub010/spline"
)

const (
	containRounds = 6
	containSlack  = 1.0e-3 // radial ratio accepted above 1
	containMargin = 5.0e-3 // a pulled colour is aimed this far below the boundary
	containBands  = 12
	containWeight = 2.0 // override weight relative to the mean guide weight
)

// Relative depths below the source surface at which colours are checked
var containDepths = []float64{1, 0.9}

// containmentSamples returns the colours whose mapping is checked: the
// guide and knee sources and a denser shell of source surface colours.
func containmentSamples(guides []GuidePoint, src gamut.Oracle) []r3.Vec {
	var out []r3.Vec
	for i := range guides {
		out = append(out, guides[i].Src)
		for _, k := range guides[i].Knees {
			out = append(out, k.Src)
		}
	}
	c := src.Center()
	for _, d := range stratifiedDirections(containBands) {
		hit, _ := src.RadialProjection(r3.Add(c, gamut.Direction(d.hue, d.elev)))
		for _, f := range containDepths {
			out = append(out, r3.Add(c, r3.Scale(f, r3.Sub(hit, c))))
		}
	}
	return out
}

type spill struct {
	index  int
	mapped r3.Vec
	ratio  float64
}

// spills maps every sample without the containment clip and returns the
// ones landing outside the destination, in sample order.
func (t *GamutTransform) spills(samples []r3.Vec, workers int) []spill {
	ratios := make([]float64, len(samples))
	mapped := make([]r3.Vec, len(samples))
	// Mapping does not fail; only a recovered panic ends up here
	if err := parallelFor(len(samples), workers, func(i int) error {
		mapped[i] = t.mapUnclipped(samples[i])
		ratios[i] = gamut.RadialRatio(t.dest, mapped[i])
		return nil
	}); err != nil {
		panic(err)
	}
	var out []spill
	for i, r := range ratios {
		if r > 1+containSlack {
			out = append(out, spill{index: i, mapped: mapped[i], ratio: r})
		}
	}
	return out
}

// contain fits the boundary map, then refits it with an override for every
// sample that maps outside the destination, pulled radially inside it. An
// override is replaced each time its sample spills again, so repeated
// spills are pulled further in. Returns the number of refits.
func (t *GamutTransform) contain(br BoundaryRequest, workers int, warn *warnings) (int, error) {
	samples := containmentSamples(br.Guides, br.Source)
	meanW := 0.0
	for i := range br.Guides {
		meanW += br.Guides[i].W.FineTune
	}
	meanW /= float64(len(br.Guides))
	if !(meanW > 0) {
		meanW = 1
	}
	c := t.dest.Center()
	overrides := make(map[int]spline.Point)

	for round := 0; ; round++ {
		br.Overrides = sortedOverrides(overrides)
		bw, err := t.fitBoundary(br)
		if err != nil {
			return round, err
		}
		sp := t.spills(samples, workers)
		if len(sp) == 0 || round == containRounds {
			for _, w := range bw {
				warn.signal(w.Kind, w.Stage, "%s", w.Message)
			}
			if len(sp) > 0 {
				worst := 0.0
				for _, s := range sp {
					worst = max(worst, s.ratio)
				}
				warn.signal(WarnContainment, StageBoundaryMap,
					"%d of %d checked colours map outside the destination (worst radial ratio %.4f)", len(sp), len(samples), worst)
			}
			return round, nil
		}

		inv, ok := t.fine.Inverse()
		if !ok {
			// solveFineTune already rejected a singular correction
			inv = Identity3()
		}
		for _, s := range sp {
			target := r3.Add(c, r3.Scale((1-containMargin)/s.ratio, r3.Sub(s.mapped, c)))
			out := inv.Eval(r3.Sub(target, t.fineOff))
			overrides[s.index] = spline.Point{
				In:     vecToSlice(t.preMap(samples[s.index])),
				Out:    vecToSlice(out),
				Weight: containWeight * meanW,
			}
		}
		br.Logger.WithFields(logrus.Fields{
			"stage":  StageBoundaryMap.String(),
			"round":  round,
			"spills": len(sp),
		}).Debug("containment refit")
	}
}

func sortedOverrides(m map[int]spline.Point) []spline.Point {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]spline.Point, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}
