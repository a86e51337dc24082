package gamutmap

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// LCh is the cylindrical form of an L*a*b* coordinate. H is in degrees.
type LCh struct {
	L, C, H float64
}

func RADIANS(deg float64) float64 {
	return (deg * math.Pi) / 180.0
}

func atan2deg(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	h := math.Atan2(a, b) * (180.0 / math.Pi)
	for h > 360.0 {
		h -= 360.0
	}
	for h < 0 {
		h += 360.0
	}
	return h
}

func Sqr(v float64) float64 {
	return v * v
}

// Lab to LCh Conversion
func ToLCh(p r3.Vec) LCh {
	return LCh{
		L: p.X,
		C: math.Sqrt(Sqr(p.Y) + Sqr(p.Z)),
		H: atan2deg(p.Z, p.Y),
	}
}

// LCh to Lab Conversion
func FromLCh(c LCh) r3.Vec {
	h := RADIANS(c.H)
	return r3.Vec{X: c.L, Y: c.C * math.Cos(h), Z: c.C * math.Sin(h)}
}

// hueDiff returns b-a wrapped into [-180, 180).
func hueDiff(a, b float64) float64 {
	d := math.Mod(b-a+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

// DeltaE is the CIE76 colour difference.
func DeltaE(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Metric hue difference between two LCh colours.
func deltaH(a, b LCh) float64 {
	return 2.0 * math.Sqrt(a.C*b.C) * math.Sin(RADIANS(hueDiff(a.H, b.H)/2.0))
}

// CIE2000 Delta-E
func CIE2000DeltaE(lab1, lab2 r3.Vec, Kl, Kc, Kh float64) float64 {
	L1, a1, b1 := lab1.X, lab1.Y, lab1.Z
	C1 := math.Sqrt(Sqr(a1) + Sqr(b1))

	L2, a2, b2 := lab2.X, lab2.Y, lab2.Z
	C2 := math.Sqrt(Sqr(a2) + Sqr(b2))

	meanC := (C1 + C2) / 2.0
	G := 0.5 * (1 - math.Sqrt(math.Pow(meanC, 7)/(math.Pow(meanC, 7)+math.Pow(25.0, 7))))

	a1Prime := (1 + G) * a1
	C1Prime := math.Sqrt(Sqr(a1Prime) + Sqr(b1))
	h1Prime := atan2deg(b1, a1Prime)

	a2Prime := (1 + G) * a2
	C2Prime := math.Sqrt(Sqr(a2Prime) + Sqr(b2))
	h2Prime := atan2deg(b2, a2Prime)

	meanCPrime := (C1Prime + C2Prime) / 2.0
	meanHPrime := 0.0
	if math.Abs(h1Prime-h2Prime) > 180.0 {
		if h1Prime+h2Prime < 360.0 {
			meanHPrime = (h1Prime + h2Prime + 360.0) / 2.0
		} else {
			meanHPrime = (h1Prime + h2Prime - 360.0) / 2.0
		}
	} else {
		meanHPrime = (h1Prime + h2Prime) / 2.0
	}

	deltaLPrime := L2 - L1
	deltaCPrime := C2Prime - C1Prime

	deltaHPrime := 0.0
	if math.Abs(h2Prime-h1Prime) > 180.0 {
		if h2Prime > h1Prime {
			deltaHPrime = (h2Prime - h1Prime - 360.0)
		} else {
			deltaHPrime = (h2Prime - h1Prime + 360.0)
		}
	} else {
		deltaHPrime = h2Prime - h1Prime
	}

	deltaH := 2.0 * math.Sqrt(C1Prime*C2Prime) * math.Sin(RADIANS(deltaHPrime/2.0))
	Sl := 1 + (0.015*Sqr((L1+L2)/2.0-50.0))/math.Sqrt(20.0+Sqr((L1+L2)/2.0-50.0))
	Sc := 1 + 0.045*meanCPrime
	T := 1 - 0.17*math.Cos(RADIANS(meanHPrime-30.0)) +
		0.24*math.Cos(RADIANS(2.0*meanHPrime)) +
		0.32*math.Cos(RADIANS(3.0*meanHPrime+6.0)) -
		0.20*math.Cos(RADIANS(4.0*meanHPrime-63.0))
	Sh := 1 + 0.015*meanCPrime*T
	deltaTheta := 30.0 * math.Exp(-Sqr((meanHPrime-275.0)/25.0))
	Rc := 2.0 * math.Sqrt(math.Pow(meanCPrime, 7.0)/(math.Pow(meanCPrime, 7.0)+math.Pow(25.0, 7.0)))
	Rt := -math.Sin(RADIANS(2.0*deltaTheta)) * Rc

	return math.Sqrt(
		Sqr(deltaLPrime/(Sl*Kl)) +
			Sqr(deltaCPrime/(Sc*Kc)) +
			Sqr(deltaH/(Sh*Kh)) +
			Rt*(deltaCPrime/(Sc*Kc))*(deltaH/(Sh*Kh)),
	)
}
