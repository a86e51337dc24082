package gamut

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestDeviceWhiteBlack(t *testing.T) {
	d := NewDevice(SRGB, 4)
	white, black, kBlack := d.WhiteBlack(false)
	if math.Abs(white.X-100) > 0.01 || math.Abs(white.Y) > 0.01 || math.Abs(white.Z) > 0.01 {
		t.Errorf("white got %v, want 100,0,0", white)
	}
	if r3.Norm(black) > 0.01 {
		t.Errorf("black got %v, want 0,0,0", black)
	}
	if kBlack != black {
		t.Errorf("kBlack %v differs from black %v", kBlack, black)
	}
	if d.Triangles() != 6*4*4*2 {
		t.Errorf("got %d triangles, want %d", d.Triangles(), 6*4*4*2)
	}
}

func TestDeviceRedCusp(t *testing.T) {
	d := NewDevice(SRGB, 4)
	cusps, ok := d.Cusps()
	if !ok {
		t.Fatalf("cusps unavailable")
	}
	red := cusps[0]
	want := r3.Vec{X: 53.24, Y: 80.09, Z: 67.20}
	if r3.Norm(r3.Sub(red, want)) > 0.1 {
		t.Errorf("red cusp got %v, want %v", red, want)
	}
}

func TestDeviceRadialProjection(t *testing.T) {
	d := NewDevice(SRGB, 6)
	hit, r := d.RadialProjection(r3.Vec{X: 70})
	if math.Abs(hit.X-100) > 0.01 || math.Abs(r-50) > 0.01 {
		t.Errorf("white projection got %v (r %f), want L 100 at radius 50", hit, r)
	}
	for h := 10.0; h < 360; h += 45 {
		p := r3.Add(LabCenter, r3.Scale(5, Direction(h, 0.2)))
		if !Contains(d, p, 0) {
			t.Errorf("hue %f: near-centre point not contained", h)
		}
		hit, _ := d.RadialProjection(p)
		if q := d.NearestSurfacePoint(hit); r3.Norm(r3.Sub(q, hit)) > 1e-6 {
			t.Errorf("hue %f: projection %v is not on the mesh", h, hit)
		}
	}
}

func TestDeviceRayIntersect(t *testing.T) {
	d := NewDevice(SRGB, 4)
	hits := d.RayIntersect(r3.Vec{X: 50, Y: -200}, r3.Vec{X: 50, Y: 200})
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if !(hits[0].T < hits[1].T) || hits[0].Point.Y >= 0 || hits[1].Point.Y <= 0 {
		t.Errorf("hits not ordered along the line: %v", hits)
	}
}
