// Package gamut describes gamut boundary surfaces in CIE L*a*b*.
//
// Coordinates are r3.Vec values holding L* in X, a* in Y and b* in Z.
// The Oracle interface is the only thing the mapping core relies on; Shape
// and Device are reference surfaces.
package gamut

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// LabCenter is the shared centre of the L*a*b* space used by every surface.
var LabCenter = r3.Vec{X: 50}

// Hit is one intersection of a line with a gamut surface. The point is
// p1 + T*(p2-p1); Patch identifies the surface element that was hit.
type Hit struct {
	Point r3.Vec
	T     float64
	Patch int
}

// Oracle answers geometric queries about one gamut surface.
type Oracle interface {
	// Center returns the colour space centre the surface is star-shaped around.
	Center() r3.Vec
	// NearestSurfacePoint returns the surface point closest to p.
	NearestSurfacePoint(p r3.Vec) r3.Vec
	// RadialProjection intersects the ray from the centre through p with the
	// surface and returns the hit and its distance from the centre.
	RadialProjection(p r3.Vec) (r3.Vec, float64)
	// RayIntersect returns every intersection of the line through p1 and p2,
	// ordered by T.
	RayIntersect(p1, p2 r3.Vec) []Hit
	// WhiteBlack returns the white point, the black point and the black of
	// the K-only channel (equal to black for devices without one).
	WhiteBlack(kOnlyBlack bool) (white, black, kBlack r3.Vec)
	// Cusps returns the R, Y, G, C, B, M cusps, or false when unavailable.
	Cusps() ([6]r3.Vec, bool)
}

// RadialRatio returns how far p lies from the centre relative to the
// surface in the same direction; values above 1 are outside.
func RadialRatio(o Oracle, p r3.Vec) float64 {
	c := o.Center()
	d := r3.Norm(r3.Sub(p, c))
	if d < 1.0e-12 {
		return 0
	}
	_, radius := o.RadialProjection(p)
	if radius < 1.0e-12 {
		return math.Inf(1)
	}
	return d / radius
}

// Contains reports whether p lies inside the surface, allowing eps of
// relative slack.
func Contains(o Oracle, p r3.Vec, eps float64) bool {
	return RadialRatio(o, p) <= 1+eps
}

// ClipRadial pulls p back onto the surface along the ray from the centre
// when it lies outside, and returns it unchanged otherwise.
func ClipRadial(o Oracle, p r3.Vec) r3.Vec {
	c := o.Center()
	d := r3.Norm(r3.Sub(p, c))
	if d < 1.0e-12 {
		return p
	}
	hit, radius := o.RadialProjection(p)
	if d <= radius {
		return p
	}
	return hit
}

// Direction returns the unit vector with the given hue (degrees, around the
// L* axis) and elevation (radians, toward +L*).
func Direction(hue, elevation float64) r3.Vec {
	h := hue * math.Pi / 180
	ce := math.Cos(elevation)
	return r3.Vec{X: math.Sin(elevation), Y: ce * math.Cos(h), Z: ce * math.Sin(h)}
}

// HueOf returns the hue angle of p in degrees, in [0, 360).
func HueOf(p r3.Vec) float64 {
	if p.Y == 0 && p.Z == 0 {
		return 0
	}
	h := math.Atan2(p.Z, p.Y) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return h
}

// Chroma returns the distance of p from the L* axis.
func Chroma(p r3.Vec) float64 {
	return math.Hypot(p.Y, p.Z)
}
