package gamut

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultCuspHues are the nominal hue angles of the R, Y, G, C, B, M cusps.
var DefaultCuspHues = [6]float64{40, 100, 140, 200, 290, 330}

// Shape is an analytic gamut: two half ellipsoids of revolution glued at
// the cusp belt, with an optional three-lobe modulation of the belt chroma
// by hue. It is star-shaped around LabCenter as long as BlackL < 50 < WhiteL.
type Shape struct {
	WhiteL    float64
	BlackL    float64
	BeltL     float64 // lightness of maximum chroma
	Chroma    float64 // belt chroma before modulation
	Lobe      float64 // relative modulation amplitude in [0, 1)
	LobePhase float64 // degrees
	CuspHues  [6]float64
	NoCusps   bool
}

// NewShape returns a Shape with the default cusp hues.
func NewShape(whiteL, blackL, beltL, chroma float64) *Shape {
	return &Shape{
		WhiteL:   whiteL,
		BlackL:   blackL,
		BeltL:    beltL,
		Chroma:   chroma,
		CuspHues: DefaultCuspHues,
	}
}

// BeltChroma returns the maximum chroma at hue h (degrees).
func (s *Shape) BeltChroma(h float64) float64 {
	return s.Chroma * (1 + s.Lobe*math.Cos(3*(h-s.LobePhase)*math.Pi/180))
}

func (s *Shape) halfHeight(l float64) float64 {
	if l >= s.BeltL {
		return s.WhiteL - s.BeltL
	}
	return s.BeltL - s.BlackL
}

// Implicit surface function: negative inside, zero on the surface.
func (s *Shape) implicit(p r3.Vec) float64 {
	cb := s.BeltChroma(HueOf(p))
	rho := Chroma(p) / cb
	l := (p.X - s.BeltL) / s.halfHeight(p.X)
	return rho*rho + l*l - 1
}

func (s *Shape) Center() r3.Vec { return LabCenter }

func (s *Shape) WhiteBlack(kOnlyBlack bool) (white, black, kBlack r3.Vec) {
	white = r3.Vec{X: s.WhiteL}
	black = r3.Vec{X: s.BlackL}
	return white, black, black
}

func (s *Shape) Cusps() ([6]r3.Vec, bool) {
	var out [6]r3.Vec
	if s.NoCusps {
		return out, false
	}
	for i, h := range s.CuspHues {
		c := s.BeltChroma(h)
		rad := h * math.Pi / 180
		out[i] = r3.Vec{X: s.BeltL, Y: c * math.Cos(rad), Z: c * math.Sin(rad)}
	}
	return out, true
}

// RadialProjection solves the quadratic of whichever half the ray leaves through.
func (s *Shape) RadialProjection(p r3.Vec) (r3.Vec, float64) {
	c := LabCenter
	d := r3.Sub(p, c)
	n := r3.Norm(d)
	if n < 1.0e-12 {
		d = r3.Vec{X: 1}
	} else {
		d = r3.Scale(1/n, d)
	}
	cb := s.BeltChroma(HueOf(d))
	dRho := math.Hypot(d.Y, d.Z)
	off := c.X - s.BeltL

	for _, upper := range []bool{d.X >= 0, d.X < 0} {
		h := s.BeltL - s.BlackL
		if upper {
			h = s.WhiteL - s.BeltL
		}
		a := dRho*dRho/(cb*cb) + d.X*d.X/(h*h)
		b := 2 * off * d.X / (h * h)
		c0 := off*off/(h*h) - 1
		disc := b*b - 4*a*c0
		if a <= 0 || disc < 0 {
			continue
		}
		t := (-b + math.Sqrt(disc)) / (2 * a)
		hit := r3.Add(c, r3.Scale(t, d))
		if upper == (hit.X >= s.BeltL) || math.Abs(hit.X-s.BeltL) < 1.0e-9 {
			return hit, t
		}
	}
	// Ray parallel to the belt plane
	t := cb / math.Max(dRho, 1.0e-12)
	return r3.Add(c, r3.Scale(t, d)), t
}

// RayIntersect brackets sign changes of the implicit function along the
// line and refines each one by bisection.
func (s *Shape) RayIntersect(p1, p2 r3.Vec) []Hit {
	d := r3.Sub(p2, p1)
	dd := r3.Dot(d, d)
	if dd < 1.0e-24 {
		return nil
	}
	// Parameter interval of the line inside the bounding sphere
	rMax := math.Max(math.Max(s.WhiteL-LabCenter.X, LabCenter.X-s.BlackL), s.Chroma*(1+math.Abs(s.Lobe))) + 1
	w := r3.Sub(p1, LabCenter)
	b := r3.Dot(w, d)
	c := r3.Dot(w, w) - rMax*rMax
	disc := b*b - dd*c
	if disc <= 0 {
		return nil
	}
	sq := math.Sqrt(disc)
	t0, t1 := (-b-sq)/dd, (-b+sq)/dd

	at := func(t float64) r3.Vec { return r3.Add(p1, r3.Scale(t, d)) }
	const steps = 512
	var hits []Hit
	prevT := t0
	prevF := s.implicit(at(t0))
	for i := 1; i <= steps; i++ {
		t := t0 + (t1-t0)*float64(i)/steps
		f := s.implicit(at(t))
		if (prevF < 0) != (f < 0) {
			lo, hi, flo := prevT, t, prevF
			for k := 0; k < 60; k++ {
				mid := 0.5 * (lo + hi)
				fm := s.implicit(at(mid))
				if (fm < 0) == (flo < 0) {
					lo, flo = mid, fm
				} else {
					hi = mid
				}
			}
			tt := 0.5 * (lo + hi)
			pt := at(tt)
			patch := 0
			if pt.X < s.BeltL {
				patch = 1
			}
			hits = append(hits, Hit{Point: pt, T: tt, Patch: patch})
		}
		prevT, prevF = t, f
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].T < hits[j].T })
	return hits
}

// NearestSurfacePoint scans the surface on a coarse direction grid and
// polishes the best candidate with Nelder-Mead.
func (s *Shape) NearestSurfacePoint(p r3.Vec) r3.Vec {
	return nearestByDirection(s, p)
}

func nearestByDirection(o Oracle, p r3.Vec) r3.Vec {
	c := o.Center()
	// x holds hue and elevation, both in radians
	surf := func(x []float64) r3.Vec {
		hit, _ := o.RadialProjection(r3.Add(c, Direction(x[0]*180/math.Pi, x[1])))
		return hit
	}
	best := []float64{0, 0}
	bestD := math.Inf(1)
	for hi := 0; hi < 36; hi++ {
		for ei := -8; ei <= 8; ei++ {
			x := []float64{float64(hi) * math.Pi / 18, float64(ei) * math.Pi / 18}
			if d := r3.Norm2(r3.Sub(surf(x), p)); d < bestD {
				bestD = d
				best = x
			}
		}
	}
	prob := optimize.Problem{Func: func(x []float64) float64 {
		return r3.Norm2(r3.Sub(surf(x), p))
	}}
	settings := &optimize.Settings{
		Converger:       &optimize.FunctionConverge{Absolute: 1e-10, Iterations: 40},
		FuncEvaluations: 600,
	}
	res, _ := optimize.Minimize(prob, best, settings, &optimize.NelderMead{SimplexSize: 0.05})
	if res != nil && res.F < bestD {
		best = res.X
	}
	return surf(best)
}
