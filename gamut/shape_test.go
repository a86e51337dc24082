package gamut

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func testShape() *Shape {
	s := NewShape(95, 5, 55, 60)
	s.Lobe = 0.2
	s.LobePhase = 30
	return s
}

func TestShapeRadialProjectionOnSurface(t *testing.T) {
	s := testShape()
	for h := 0.0; h < 360; h += 23 {
		for e := -1.4; e <= 1.4; e += 0.35 {
			p := r3.Add(LabCenter, r3.Scale(10, Direction(h, e)))
			hit, r := s.RadialProjection(p)
			if f := s.implicit(hit); math.Abs(f) > 1e-6 {
				t.Errorf("hue %f elev %f: implicit at hit = %g, want 0", h, e, f)
			}
			if d := r3.Norm(r3.Sub(hit, LabCenter)); math.Abs(d-r) > 1e-9 {
				t.Errorf("radius %f does not match hit distance %f", r, d)
			}
		}
	}
}

func TestShapeGreyAxis(t *testing.T) {
	s := testShape()
	hit, _ := s.RadialProjection(r3.Vec{X: 80})
	if math.Abs(hit.X-95) > 1e-9 {
		t.Errorf("white projection got %f, want 95", hit.X)
	}
	hit, _ = s.RadialProjection(r3.Vec{X: 20})
	if math.Abs(hit.X-5) > 1e-9 {
		t.Errorf("black projection got %f, want 5", hit.X)
	}
	hits := s.RayIntersect(r3.Vec{X: -10}, r3.Vec{X: 110})
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if math.Abs(hits[0].Point.X-5) > 1e-6 || math.Abs(hits[1].Point.X-95) > 1e-6 {
		t.Errorf("hits at %f and %f, want 5 and 95", hits[0].Point.X, hits[1].Point.X)
	}
	if hits[0].Patch != 1 || hits[1].Patch != 0 {
		t.Errorf("patches %d %d, want 1 0", hits[0].Patch, hits[1].Patch)
	}
}

func TestShapeContains(t *testing.T) {
	s := testShape()
	if !Contains(s, LabCenter, 0) {
		t.Errorf("centre not contained")
	}
	if !Contains(s, r3.Vec{X: 55, Y: 20}, 0) {
		t.Errorf("interior point not contained")
	}
	if Contains(s, r3.Vec{X: 55, Y: 200}, 0) {
		t.Errorf("exterior point contained")
	}
	p := ClipRadial(s, r3.Vec{X: 55, Y: 200})
	if r := RadialRatio(s, p); math.Abs(r-1) > 1e-9 {
		t.Errorf("clipped point ratio got %f, want 1", r)
	}
}

func TestShapeNearestSurfacePoint(t *testing.T) {
	s := NewShape(95, 5, 50, 60)
	got := s.NearestSurfacePoint(r3.Vec{X: 50, Y: 90})
	want := r3.Vec{X: 50, Y: 60}
	if d := r3.Norm(r3.Sub(got, want)); d > 0.5 {
		t.Errorf("nearest got %v, want %v", got, want)
	}
}

func TestShapeCusps(t *testing.T) {
	s := testShape()
	cusps, ok := s.Cusps()
	if !ok {
		t.Fatalf("cusps unavailable")
	}
	for i, c := range cusps {
		if math.Abs(HueOf(c)-DefaultCuspHues[i]) > 1e-9 {
			t.Errorf("cusp %d hue got %f, want %f", i, HueOf(c), DefaultCuspHues[i])
		}
		if math.Abs(s.implicit(c)) > 1e-9 {
			t.Errorf("cusp %d not on surface", i)
		}
	}
	s.NoCusps = true
	if _, ok := s.Cusps(); ok {
		t.Errorf("NoCusps shape reported cusps")
	}
}
