package gamutmap

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
)

// shifted moves the reported centre of an oracle without touching its surface.
type shifted struct {
	gamut.Oracle
	by r3.Vec
}

func (s shifted) Center() r3.Vec { return r3.Add(s.Oracle.Center(), s.by) }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func testRequest(src, dst gamut.Oracle) GenerateRequest {
	return GenerateRequest{
		Source:           src,
		Dest:             dst,
		KneeFactors:      [2]float64{0.1, 0.2},
		WantCompression:  true,
		WantExpansion:    true,
		VertexDensity:    1,
		TargetResolution: 6,
		Options: Options{
			Restarts:    2,
			Evaluations: 200,
			Workers:     2,
			Logger:      quietLogger(),
		},
	}
}

func mustGenerate(t *testing.T, req GenerateRequest) ([]GuidePoint, []Warning) {
	t.Helper()
	pts, warn, err := Generate(req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(pts) == 0 {
		t.Fatalf("Generate returned no points")
	}
	return pts, warn
}

func TestGenerateIncompatibleCentres(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	dst := shifted{Oracle: gamut.NewShape(90, 10, 50, 40), by: r3.Vec{X: 1}}
	pts, _, err := Generate(testRequest(src, dst))
	if !errors.Is(err, ErrIncompatibleGamuts) {
		t.Errorf("error = %v, want ErrIncompatibleGamuts", err)
	}
	if pts != nil {
		t.Errorf("points returned alongside error")
	}
}

func TestGenerateImageOutsideSource(t *testing.T) {
	req := testRequest(gamut.NewShape(90, 10, 50, 40), gamut.NewShape(90, 10, 50, 40))
	req.Image = gamut.NewShape(99, 1, 50, 40)
	if _, _, err := Generate(req); !errors.Is(err, ErrIncompatibleGamuts) {
		t.Errorf("error = %v, want ErrIncompatibleGamuts", err)
	}
}

func TestGenerateSamplingExhausted(t *testing.T) {
	req := testRequest(gamut.NewShape(95, 5, 50, 60), gamut.NewShape(90, 10, 50, 40))
	req.Options.ObliqueCos = 1.1
	if _, _, err := Generate(req); !errors.Is(err, ErrSamplingExhausted) {
		t.Errorf("error = %v, want ErrSamplingExhausted", err)
	}
}

func TestStratifiedDirectionsCoverSphere(t *testing.T) {
	dirs := stratifiedDirections(8)
	up, down := 0, 0
	for _, d := range dirs {
		if d.hue < 0 || d.hue >= 360 {
			t.Errorf("hue %f out of range", d.hue)
		}
		if d.elev > 0 {
			up++
		} else if d.elev < 0 {
			down++
		}
	}
	if up != down {
		t.Errorf("bands unbalanced: %d above, %d below", up, down)
	}
}

func TestGenerateIdentical(t *testing.T) {
	s := gamut.NewShape(95, 5, 50, 60)
	pts, _ := mustGenerate(t, testRequest(s, s))
	for _, gp := range pts {
		if d := r3.Norm(gp.Vector()); d > 0.1 {
			t.Errorf("point %d moved %f on identical gamuts", gp.ID, d)
		}
		if gp.Compress || gp.Expand {
			t.Errorf("point %d classified on identical gamuts", gp.ID)
		}
		if len(gp.Knees) != 0 {
			t.Errorf("point %d has knees on identical gamuts", gp.ID)
		}
	}
}

func TestGenerateCompression(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	dst := gamut.NewShape(90, 10, 50, 40)
	pts, _ := mustGenerate(t, testRequest(src, dst))

	compress := 0
	for _, gp := range pts {
		if gp.Expand {
			t.Errorf("point %d classified as expansion inside a smaller destination", gp.ID)
		}
		if gp.Compress {
			compress++
		}
		if r := gamut.RadialRatio(dst, gp.Dst); r > 1+1e-3 {
			t.Errorf("point %d destination outside the gamut, ratio %f", gp.ID, r)
		}
		for _, k := range gp.Knees {
			if !gamut.Contains(dst, k.Src, 1e-3) || k.Src != k.Dst {
				t.Errorf("point %d has a bad knee %v", gp.ID, k)
			}
		}
	}
	if compress == 0 {
		t.Errorf("no compression points in %d", len(pts))
	}
}

func TestGenerateNeighborWeights(t *testing.T) {
	pts, _ := mustGenerate(t, testRequest(gamut.NewShape(95, 5, 50, 60), gamut.NewShape(90, 10, 50, 40)))
	for _, gp := range pts {
		if len(gp.Neighbors) == 0 {
			t.Errorf("point %d has no neighbors", gp.ID)
			continue
		}
		dir, depth := 0.0, 0.0
		for _, nb := range gp.Neighbors {
			if nb.Index == gp.ID {
				t.Errorf("point %d lists itself", gp.ID)
			}
			dir += nb.Dir
			depth += nb.Depth
		}
		if math.Abs(dir-1) > 1e-9 || math.Abs(depth-1) > 1e-9 {
			t.Errorf("point %d weights sum to %f, %f", gp.ID, dir, depth)
		}
	}
}

func TestGenerateNoCuspsWarns(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	src.NoCusps = true
	_, warn := mustGenerate(t, testRequest(src, gamut.NewShape(90, 10, 50, 40)))
	found := false
	for _, w := range warn {
		if w.Kind == WarnCuspsUnavailable {
			found = true
		}
	}
	if !found {
		t.Errorf("missing cusps not reported, warnings %v", warn)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	src.Lobe = 0.2
	dst := gamut.NewShape(90, 10, 50, 40)

	req := testRequest(src, dst)
	req.Options.Workers = 1
	a, _ := mustGenerate(t, req)
	req.Options.Workers = 4
	b, _ := mustGenerate(t, req)

	if diff := cmp.Diff(a, b, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("results depend on worker count (-1 +4):\n%s", diff)
	}
}

func TestGenerateZeroCuspWeightKeepsSource(t *testing.T) {
	cfg := DefaultWeightConfig()
	for i := range cfg.Hexants {
		cfg.Hexants[i].CuspWeight = 0
	}
	req := testRequest(gamut.NewShape(95, 5, 50, 60), gamut.NewShape(90, 10, 50, 40))
	req.Weights = cfg
	pts, _ := mustGenerate(t, req)
	for _, gp := range pts {
		if gp.SrcCusp != gp.Src {
			t.Errorf("point %d: SrcCusp %v differs from Src %v", gp.ID, gp.SrcCusp, gp.Src)
		}
	}
}

// nanRadial reports no usable radial projection.
type nanRadial struct {
	gamut.Oracle
}

func (nanRadial) RadialProjection(r3.Vec) (r3.Vec, float64) {
	n := math.NaN()
	return r3.Vec{X: n, Y: n, Z: n}, n
}

func TestGenerateSearchFailure(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	dst := nanRadial{gamut.NewShape(90, 10, 50, 40)}
	pts, _, err := Generate(testRequest(src, dst))
	if !errors.Is(err, ErrSearchFailure) {
		t.Fatalf("error = %v, want ErrSearchFailure", err)
	}
	if pts != nil {
		t.Errorf("points returned alongside error")
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a *StageError", err)
	}
	if se.Stage != StageAbsolute || se.Index != 0 {
		t.Errorf("got stage %s index %d, want %s index 0", se.Stage, se.Index, StageAbsolute)
	}
}

func TestGenerateExpansionFlag(t *testing.T) {
	src := gamut.NewShape(90, 10, 50, 40)
	dst := gamut.NewShape(95, 5, 50, 60)

	req := testRequest(src, dst)
	req.WantExpansion = false
	pts, _ := mustGenerate(t, req)
	expand := 0
	for _, gp := range pts {
		if !gp.Expand {
			continue
		}
		expand++
		if gp.Dst != gp.SrcCusp || len(gp.Knees) != 0 {
			t.Errorf("point %d expanded with expansion disabled: %v -> %v, %d knees", gp.ID, gp.SrcCusp, gp.Dst, len(gp.Knees))
		}
	}
	if expand == 0 {
		t.Fatalf("no expansion points in %d", len(pts))
	}

	pts, _ = mustGenerate(t, testRequest(src, dst))
	moved := false
	for i := range pts {
		if pts[i].Expand && r3.Norm(pts[i].Vector()) > DefaultOptions().MinVector {
			moved = true
			break
		}
	}
	if !moved {
		t.Errorf("no expansion point moved with expansion enabled")
	}
}

func TestGenerateCompressionFlag(t *testing.T) {
	req := testRequest(gamut.NewShape(95, 5, 50, 60), gamut.NewShape(90, 10, 50, 40))
	req.WantCompression = false
	pts, _ := mustGenerate(t, req)
	compress := 0
	for _, gp := range pts {
		if !gp.Compress {
			continue
		}
		compress++
		if len(gp.Knees) != 0 {
			t.Errorf("point %d has %d knees with compression disabled", gp.ID, len(gp.Knees))
		}
	}
	if compress == 0 {
		t.Errorf("no compression points in %d", len(pts))
	}
}

func TestGenerateImageGamut(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	image := gamut.NewShape(85, 15, 50, 35)
	req := testRequest(src, gamut.NewShape(80, 20, 50, 30))
	req.Image = image
	pts, _ := mustGenerate(t, req)
	for _, gp := range pts {
		if r := gamut.RadialRatio(image, gp.Src); math.Abs(r-1) > 1e-6 {
			t.Errorf("point %d off the image surface, ratio %f", gp.ID, r)
		}
		if r := gamut.RadialRatio(src, gp.Src); r >= 1 {
			t.Errorf("point %d on the source surface, ratio %f", gp.ID, r)
		}
	}
}
