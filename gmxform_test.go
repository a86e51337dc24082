package gamutmap

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
	"github.com/arthur-liberman/hcfr-code-sub010/spline"
)

func buildTestTransform(t *testing.T, src, dst gamut.Oracle, policy BlackPolicy) *GamutTransform {
	t.Helper()
	guides, _ := mustGenerate(t, testRequest(src, dst))
	xf, err := BuildTransform(TransformRequest{
		Guides:    guides,
		Source:    src,
		Dest:      dst,
		GreyBlend: 1,
		Policy:    policy,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("BuildTransform failed: %v", err)
	}
	return xf
}

func TestTransformIdentical(t *testing.T) {
	s := gamut.NewShape(95, 5, 50, 60)
	xf := buildTestTransform(t, s, s, BlackAdapt)
	for _, p := range []r3.Vec{{X: 50}, {X: 30, Y: 10, Z: -5}, {X: 70, Y: -20, Z: 15}, {X: 85, Y: 5, Z: 5}} {
		if d := DeltaE(xf.Map(p), p); d > 0.1 {
			t.Errorf("identical gamuts moved %v by %f", p, d)
		}
	}
}

func TestTransformNeutralFixation(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	dst := gamut.NewShape(90, 10, 50, 40)
	for _, policy := range []BlackPolicy{BlackAdapt, BlackBend, BlackClip} {
		xf := buildTestTransform(t, src, dst, policy)
		w, k := xf.NeutralError()
		if w > 0.5 || k > 0.5 {
			t.Errorf("%s: neutral error white %f black %f", policy, w, k)
		}
	}
}

func TestTransformGreyRampMonotonic(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	dst := gamut.NewShape(90, 10, 50, 40)
	xf := buildTestTransform(t, src, dst, BlackAdapt)

	in := make([]r3.Vec, 31)
	for i := range in {
		in[i] = r3.Vec{X: 5 + 90*float64(i)/30}
	}
	out := xf.MapAll(in, 3)
	for i := 1; i < len(out); i++ {
		if out[i].X < out[i-1].X-0.5 {
			t.Errorf("lightness drops from %f to %f at step %d", out[i-1].X, out[i].X, i)
		}
	}
}

func TestTransformUnmap(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	dst := gamut.NewShape(90, 10, 50, 40)
	xf := buildTestTransform(t, src, dst, BlackAdapt)

	ok := 0
	for _, p := range []r3.Vec{{X: 50, Y: 5, Z: 5}, {X: 60, Y: -10, Z: 8}, {X: 40, Y: 3, Z: -12}} {
		target := xf.Map(p)
		back, err := xf.Unmap(target)
		if err != nil {
			if !errors.Is(err, ErrInversionDidNotConverge) {
				t.Errorf("Unmap(%v) error = %v", target, err)
			}
			continue
		}
		if d := DeltaE(xf.Map(back), target); d > 0.05 {
			t.Errorf("Unmap(%v) residual %f", target, d)
		}
		ok++
	}
	if ok == 0 {
		t.Errorf("no inversion converged")
	}
}

func TestTransformNoGuides(t *testing.T) {
	s := gamut.NewShape(95, 5, 50, 60)
	_, err := BuildTransform(TransformRequest{Source: s, Dest: s, Logger: quietLogger()})
	if !errors.Is(err, ErrSamplingExhausted) {
		t.Errorf("error = %v, want ErrSamplingExhausted", err)
	}
}

func TestSolveFineTune(t *testing.T) {
	mW := r3.Vec{X: 91, Y: 0.5}
	mK := r3.Vec{X: 9, Z: -0.3}
	tW := r3.Vec{X: 90}
	tK := r3.Vec{X: 10}
	m, off, err := solveFineTune(mW, mK, tW, tK)
	if err != nil {
		t.Fatalf("solveFineTune failed: %v", err)
	}
	if got := r3.Add(m.Eval(mW), off); !vecNear(got, tW, 1e-9) {
		t.Errorf("white corrected to %v, want %v", got, tW)
	}
	if got := r3.Add(m.Eval(mK), off); !vecNear(got, tK, 1e-9) {
		t.Errorf("black corrected to %v, want %v", got, tK)
	}
	if _, _, err := solveFineTune(mW, mW, tW, tK); !errors.Is(err, ErrNonInvertibleAlignment) {
		t.Errorf("coincident error = %v, want ErrNonInvertibleAlignment", err)
	}
}

// Uniform colours inside o: random directions, cube root radial fractions.
func interiorColours(o gamut.Oracle, n int, seed int64) []r3.Vec {
	rng := rand.New(rand.NewSource(seed))
	c := o.Center()
	out := make([]r3.Vec, n)
	for i := range out {
		d := gamut.Direction(360*rng.Float64(), math.Asin(2*rng.Float64()-1))
		hit, _ := o.RadialProjection(r3.Add(c, d))
		out[i] = r3.Add(c, r3.Scale(math.Cbrt(rng.Float64()), r3.Sub(hit, c)))
	}
	return out
}

func TestTransformContainment(t *testing.T) {
	const tol = 1 + 1e-3
	src := gamut.NewShape(95, 5, 50, 60)
	dst := gamut.NewShape(90, 10, 50, 40)
	guides, _ := mustGenerate(t, testRequest(src, dst))
	xf, err := BuildTransform(TransformRequest{
		Guides: guides, Source: src, Dest: dst, GreyBlend: 1, Workers: 2, Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("BuildTransform failed: %v", err)
	}
	for _, w := range xf.Warnings() {
		if w.Kind == WarnContainment {
			t.Errorf("unexpected warning: %s", w)
		}
	}
	for _, gp := range guides {
		if r := gamut.RadialRatio(dst, xf.Map(gp.Src)); r > tol {
			t.Errorf("point %d maps outside the destination, ratio %f", gp.ID, r)
		}
	}
	for i, c := range interiorColours(src, 400, 7) {
		if r := gamut.RadialRatio(dst, xf.Map(c)); r > tol {
			t.Errorf("colour %d %v maps outside the destination, ratio %f", i, c, r)
		}
	}

	clipped, err := BuildTransform(TransformRequest{
		Guides: guides, Source: src, Dest: dst, GreyBlend: 1, ClipToDest: true, Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("BuildTransform failed: %v", err)
	}
	for _, gp := range guides {
		if !gamut.Contains(dst, clipped.Map(gp.Src), 1e-9) {
			t.Errorf("point %d escapes the containment clip", gp.ID)
		}
	}
}

func TestContainmentSamples(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	guides := []GuidePoint{
		{Src: r3.Vec{X: 50, Y: 60}, Knees: []KneePair{{Src: r3.Vec{X: 50, Y: 50}}}},
		{Src: r3.Vec{X: 50, Y: -60}},
	}
	samples := containmentSamples(guides, src)
	shell := len(stratifiedDirections(containBands)) * len(containDepths)
	if got, want := len(samples), 3+shell; got != want {
		t.Fatalf("got %d samples, want %d", got, want)
	}
	if samples[1] != guides[0].Knees[0].Src {
		t.Errorf("knee source not checked, got %v", samples[1])
	}
	for i, p := range samples[3:] {
		if r := gamut.RadialRatio(src, p); r > 1+1e-6 || r < containDepths[len(containDepths)-1]-1e-6 {
			t.Errorf("shell sample %d at ratio %f", i, r)
		}
	}
}

func TestTransformEnvelope(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	dst := gamut.NewShape(90, 10, 50, 40)
	xf := buildTestTransform(t, src, dst, BlackAdapt)
	lo, hi := xf.Envelope()
	if len(lo) != 3 || len(hi) != 3 {
		t.Fatalf("got envelope dims %d, %d, want 3", len(lo), len(hi))
	}
	for i := range lo {
		if !(lo[i] < hi[i]) {
			t.Errorf("axis %d: lo %f not below hi %f", i, lo[i], hi[i])
		}
	}
	lo[0] = math.Inf(1)
	if again, _ := xf.Envelope(); math.IsInf(again[0], 1) {
		t.Error("Envelope returned shared storage")
	}
	// Every source colour's fit input lies in the envelope
	for i, c := range interiorColours(src, 50, 3) {
		q := xf.preMap(c)
		if got := xf.bmap.Clip(q); got != q {
			t.Errorf("colour %d clipped from %v to %v", i, q, got)
		}
	}
}

// countingMapper records the input dimension of every fit it serves.
type countingMapper struct {
	spline.RBF
	dims *[]int
}

func (m countingMapper) Fit(points []spline.Point, in, out spline.Range, res int, smoothing float64) (spline.Function, error) {
	*m.dims = append(*m.dims, len(points[0].In))
	return m.RBF.Fit(points, in, out, res, smoothing)
}

func TestTransformUsesMapper(t *testing.T) {
	src := gamut.NewShape(95, 5, 50, 60)
	dst := gamut.NewShape(90, 10, 50, 40)
	guides, _ := mustGenerate(t, testRequest(src, dst))
	var dims []int
	_, err := BuildTransform(TransformRequest{
		Guides: guides, Source: src, Dest: dst, GreyBlend: 1,
		Mapper: countingMapper{RBF: spline.RBF{Tabulate: true}, dims: &dims},
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("BuildTransform failed: %v", err)
	}
	tone, boundary := 0, 0
	for _, d := range dims {
		switch d {
		case 1:
			tone++
		case 3:
			boundary++
		}
	}
	if tone != 1 || boundary < 2 {
		t.Errorf("got %d tone and %d boundary fits, want 1 and at least 2", tone, boundary)
	}
}

func TestTransformContainmentDevices(t *testing.T) {
	src := gamut.NewDevice(gamut.SRGB, 6)
	dst := gamut.NewDevice(gamut.DeviceModel{BlackLift: 0.01, Gain: 0.85, Saturation: 0.8}, 6)
	guides, _ := mustGenerate(t, testRequest(src, dst))
	xf, err := BuildTransform(TransformRequest{
		Guides: guides, Source: src, Dest: dst, GreyBlend: 1, Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("BuildTransform failed: %v", err)
	}
	for _, gp := range guides {
		if r := gamut.RadialRatio(dst, xf.Map(gp.Src)); r > 1+1e-3 {
			t.Errorf("point %d maps outside the destination, ratio %f", gp.ID, r)
		}
	}
}
