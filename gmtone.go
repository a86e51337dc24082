package gamutmap

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/arthur-liberman/hcfr-code-sub010/spline"
)

// Number of tabulated tone curve entries.
const toneEntries = 1024

// ToneParams describes the lightness mapping between two neutral axes,
// in L* after the grey axis transform.
type ToneParams struct {
	SrcWhiteL, SrcBlackL float64
	DstWhiteL, DstBlackL float64

	CompressEmphasis float64 // weight of the knee points of a compressive curve
	ExpandEmphasis   float64 // weight of the knee points of an expansive curve
	KneeFactor       float64 // knee distance as a fraction of the input range
	Policy           BlackPolicy
}

// ToneCurve is a tabulated 1-D lightness map. It is always stored in the
// compressive direction; an expansive curve is evaluated by inversion.
type ToneCurve struct {
	inLo, inHi float64
	table      []float64
	swapped    bool
}

// BuildToneCurve fits the lightness map through the white and black anchors
// and the knee emphasis points with m.
func BuildToneCurve(p ToneParams, m spline.Mapper) (*ToneCurve, []Warning, error) {
	si := p.SrcWhiteL - p.SrcBlackL
	so := p.DstWhiteL - p.DstBlackL
	if si <= 1.0e-6 || so <= 1.0e-6 {
		return nil, nil, errors.Wrapf(ErrNonInvertibleAlignment, "tone curve: empty lightness range (%g, %g)", si, so)
	}
	tc := &ToneCurve{table: make([]float64, toneEntries)}

	if p.Policy == BlackClip {
		tc.inLo, tc.inHi = p.SrcBlackL, p.SrcWhiteL
		off := p.DstWhiteL - p.SrcWhiteL
		for i := range tc.table {
			x := tc.node(i)
			tc.table[i] = math.Max(x+off, p.DstBlackL)
		}
		return tc, nil, nil
	}

	inB, inW, outB, outW := p.SrcBlackL, p.SrcWhiteL, p.DstBlackL, p.DstWhiteL
	emphasis := p.CompressEmphasis
	if so > si {
		tc.swapped = true
		inB, inW, outB, outW = outB, outW, inB, inW
		si, so = so, si
		emphasis = p.ExpandEmphasis
	}
	tc.inLo, tc.inHi = inB, inW

	pts := []spline.Point{
		{In: []float64{inB}, Out: []float64{outB}, Weight: 100},
		{In: []float64{inW}, Out: []float64{outW}, Weight: 100},
	}
	k := math.Min(p.KneeFactor, 0.4*so/si)
	if k > 0 && emphasis > 0 {
		d := k * si
		pts = append(pts, spline.Point{In: []float64{inW - d}, Out: []float64{outW - d}, Weight: emphasis})
		if p.Policy == BlackAdapt {
			pts = append(pts, spline.Point{In: []float64{inB + d}, Out: []float64{outB + d}, Weight: emphasis})
		}
	}
	box := spline.Range{Min: []float64{inB}, Max: []float64{inW}}
	fn, err := m.Fit(pts, box, spline.Range{}, 0, 1.0e-6)
	if err != nil {
		return nil, nil, errors.Wrap(err, "tone curve")
	}
	for i := range tc.table {
		tc.table[i] = fn.Evaluate([]float64{tc.node(i)})[0]
	}

	var warn []Warning
	if !tc.IsMonotonic() {
		warn = append(warn, Warning{Kind: WarnNonMonotonicFit, Stage: StageToneCurve, Message: "tone curve is not monotonic"})
	}
	return tc, warn, nil
}

func (tc *ToneCurve) node(i int) float64 {
	return tc.inLo + (tc.inHi-tc.inLo)*float64(i)/float64(toneEntries-1)
}

// IsMonotonic allows some ripple, as tabulated curves usually have it.
func (tc *ToneCurve) IsMonotonic() bool {
	ripple := 1.0e-4 * math.Abs(tc.table[len(tc.table)-1]-tc.table[0])
	last := tc.table[len(tc.table)-1]
	for i := len(tc.table) - 2; i >= 0; i-- {
		if tc.table[i]-last > ripple {
			return false
		}
		last = tc.table[i]
	}
	return true
}

// Swapped reports whether the naive mapping was expansive.
func (tc *ToneCurve) Swapped() bool { return tc.swapped }

// Tabulated forward evaluation, extended with unit slope outside the table.
func (tc *ToneCurve) eval(x float64) float64 {
	n := len(tc.table)
	if x <= tc.inLo {
		return tc.table[0] + (x - tc.inLo)
	}
	if x >= tc.inHi {
		return tc.table[n-1] + (x - tc.inHi)
	}
	v := (x - tc.inLo) / (tc.inHi - tc.inLo) * float64(n-1)
	i := int(v)
	if i >= n-1 {
		return tc.table[n-1]
	}
	f := v - float64(i)
	return tc.table[i] + f*(tc.table[i+1]-tc.table[i])
}

// Tabulated inverse evaluation by search over the table.
func (tc *ToneCurve) reverse(y float64) float64 {
	n := len(tc.table)
	if y <= tc.table[0] {
		return tc.inLo + (y - tc.table[0])
	}
	if y >= tc.table[n-1] {
		return tc.inHi + (y - tc.table[n-1])
	}
	i := sort.Search(n, func(k int) bool { return tc.table[k] >= y })
	if i == 0 {
		return tc.inLo
	}
	lo, hi := tc.table[i-1], tc.table[i]
	f := 0.0
	if hi > lo {
		f = (y - lo) / (hi - lo)
	}
	return tc.node(i-1) + f*(tc.node(i)-tc.node(i-1))
}

// Map applies the lightness mapping.
func (tc *ToneCurve) Map(l float64) float64 {
	if tc.swapped {
		return tc.reverse(l)
	}
	return tc.eval(l)
}

// Unmap applies the inverse lightness mapping.
func (tc *ToneCurve) Unmap(l float64) float64 {
	if tc.swapped {
		return tc.eval(l)
	}
	return tc.reverse(l)
}

// MonotoneFraction samples Map at n+1 evenly spaced points across the
// forward input range and returns the share of steps that do not decrease.
func (tc *ToneCurve) MonotoneFraction(n int) float64 {
	lo, hi := tc.inLo, tc.inHi
	if tc.swapped {
		lo, hi = tc.table[0], tc.table[len(tc.table)-1]
	}
	if n < 1 {
		n = 1
	}
	ok := 0
	prev := tc.Map(lo)
	for i := 1; i <= n; i++ {
		v := tc.Map(lo + (hi-lo)*float64(i)/float64(n))
		if v >= prev-1.0e-9 {
			ok++
		}
		prev = v
	}
	return float64(ok) / float64(n)
}
