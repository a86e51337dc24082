package gamut

import (
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"
)

// DeviceModel describes a simple additive RGB device in terms of sRGB.
type DeviceModel struct {
	BlackLift  float64 // linear light added at RGB 0,0,0
	Gain       float64 // linear white scale, 1 for a nominal device
	Saturation float64 // 1 keeps the primaries, below 1 mixes them toward grey
}

// SRGB is the nominal sRGB device.
var SRGB = DeviceModel{Gain: 1, Saturation: 1}

// Lab returns the L*a*b* coordinate of device value rgb.
func (m DeviceModel) Lab(rgb [3]float64) r3.Vec {
	gain := m.Gain
	if gain == 0 {
		gain = 1
	}
	sat := m.Saturation
	if sat == 0 {
		sat = 1
	}
	var lin [3]float64
	lin[0], lin[1], lin[2] = colorful.Color{R: rgb[0], G: rgb[1], B: rgb[2]}.LinearRgb()
	y := 0.2126*lin[0] + 0.7152*lin[1] + 0.0722*lin[2]
	for i := range lin {
		v := y + sat*(lin[i]-y)
		lin[i] = m.BlackLift + (1-m.BlackLift)*gain*v
	}
	l, a, b := colorful.XyzToLab(colorful.LinearRgbToXyz(lin[0], lin[1], lin[2]))
	return r3.Vec{X: l * 100, Y: a * 100, Z: b * 100}
}

type triangle struct {
	v0, v1, v2 r3.Vec
}

// Device is the surface of an RGB cube mapped to L*a*b*, tessellated into
// triangles. It is star-shaped around LabCenter for reasonable models.
type Device struct {
	Model DeviceModel
	tris  []triangle
	white r3.Vec
	black r3.Vec
	cusps [6]r3.Vec
}

// NewDevice tessellates every cube face into steps x steps quads.
func NewDevice(model DeviceModel, steps int) *Device {
	if steps < 1 {
		steps = 1
	}
	d := &Device{Model: model}
	// Each face fixes one channel at 0 or 1 and spans the other two
	for axis := 0; axis < 3; axis++ {
		u, v := (axis+1)%3, (axis+2)%3
		for _, fixed := range []float64{0, 1} {
			at := func(i, j int) r3.Vec {
				var rgb [3]float64
				rgb[axis] = fixed
				rgb[u] = float64(i) / float64(steps)
				rgb[v] = float64(j) / float64(steps)
				return model.Lab(rgb)
			}
			for i := 0; i < steps; i++ {
				for j := 0; j < steps; j++ {
					p00, p10, p01, p11 := at(i, j), at(i+1, j), at(i, j+1), at(i+1, j+1)
					d.tris = append(d.tris, triangle{p00, p10, p11}, triangle{p00, p11, p01})
				}
			}
		}
	}
	d.white = model.Lab([3]float64{1, 1, 1})
	d.black = model.Lab([3]float64{0, 0, 0})
	corners := [6][3]float64{{1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0, 1, 1}, {0, 0, 1}, {1, 0, 1}}
	for i, c := range corners {
		d.cusps[i] = model.Lab(c)
	}
	return d
}

// Triangles returns the number of surface triangles.
func (d *Device) Triangles() int { return len(d.tris) }

func (d *Device) Center() r3.Vec { return LabCenter }

func (d *Device) WhiteBlack(kOnlyBlack bool) (white, black, kBlack r3.Vec) {
	return d.white, d.black, d.black
}

func (d *Device) Cusps() ([6]r3.Vec, bool) { return d.cusps, true }

// Möller-Trumbore line/triangle intersection. Returns the line parameter
// and whether the line crosses the triangle.
func intersect(orig, dir r3.Vec, tr triangle) (float64, bool) {
	const eps = 1.0e-12
	e1 := r3.Sub(tr.v1, tr.v0)
	e2 := r3.Sub(tr.v2, tr.v0)
	pv := r3.Cross(dir, e2)
	det := r3.Dot(e1, pv)
	if math.Abs(det) < eps {
		return 0, false
	}
	inv := 1 / det
	tv := r3.Sub(orig, tr.v0)
	u := r3.Dot(tv, pv) * inv
	if u < -1.0e-9 || u > 1+1.0e-9 {
		return 0, false
	}
	qv := r3.Cross(tv, e1)
	v := r3.Dot(dir, qv) * inv
	if v < -1.0e-9 || u+v > 1+1.0e-9 {
		return 0, false
	}
	return r3.Dot(e2, qv) * inv, true
}

// RadialProjection returns the outermost crossing of the ray from the centre.
func (d *Device) RadialProjection(p r3.Vec) (r3.Vec, float64) {
	c := LabCenter
	dir := r3.Sub(p, c)
	if n := r3.Norm(dir); n < 1.0e-12 {
		dir = r3.Vec{X: 1}
	} else {
		dir = r3.Scale(1/n, dir)
	}
	best := -1.0
	for _, tr := range d.tris {
		if t, ok := intersect(c, dir, tr); ok && t > best {
			best = t
		}
	}
	if best < 0 {
		best = 0
	}
	return r3.Add(c, r3.Scale(best, dir)), best
}

func (d *Device) RayIntersect(p1, p2 r3.Vec) []Hit {
	dir := r3.Sub(p2, p1)
	if r3.Norm2(dir) < 1.0e-24 {
		return nil
	}
	var hits []Hit
	for i, tr := range d.tris {
		if t, ok := intersect(p1, dir, tr); ok {
			hits = append(hits, Hit{Point: r3.Add(p1, r3.Scale(t, dir)), T: t, Patch: i})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].T < hits[j].T })
	// A crossing through a shared edge is reported by both triangles
	out := hits[:0]
	for _, h := range hits {
		if len(out) > 0 && math.Abs(h.T-out[len(out)-1].T) < 1.0e-9 {
			continue
		}
		out = append(out, h)
	}
	return out
}

// NearestSurfacePoint checks every triangle.
func (d *Device) NearestSurfacePoint(p r3.Vec) r3.Vec {
	best := p
	bestD := math.Inf(1)
	for _, tr := range d.tris {
		q := closestOnTriangle(p, tr)
		if dd := r3.Norm2(r3.Sub(q, p)); dd < bestD {
			bestD = dd
			best = q
		}
	}
	return best
}

// Closest point on a triangle by Voronoi region classification.
func closestOnTriangle(p r3.Vec, tr triangle) r3.Vec {
	a, b, c := tr.v0, tr.v1, tr.v2
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	ap := r3.Sub(p, a)
	d1, d2 := r3.Dot(ab, ap), r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := r3.Sub(p, b)
	d3, d4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(d1/(d1-d3), ab))
	}
	cp := r3.Sub(p, c)
	d5, d6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(d2/(d2-d6), ac))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		return r3.Add(b, r3.Scale((d4-d3)/((d4-d3)+(d5-d6)), r3.Sub(c, b)))
	}
	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}
