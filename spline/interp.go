package spline

import (
	"math"

	"github.com/arthur-liberman/hcfr-code-sub010/mem"
)

// Regular sampling grid with linear, bilinear or trilinear evaluation.
type grid struct {
	nInputs  int
	nOutputs int
	nSamples int       // nodes per axis
	domain   []float64 // nSamples-1, per axis
	opta     []int     // table strides per axis
	lo, hi   []float64 // input box mapped onto the grid
	table    []float64
}

func newGrid(nInputs, nOutputs, nSamples int, box Range) *grid {
	g := &grid{
		nInputs:  nInputs,
		nOutputs: nOutputs,
		nSamples: nSamples,
		domain:   make([]float64, nInputs),
		opta:     make([]int, nInputs),
		lo:       append([]float64(nil), box.Min...),
		hi:       append([]float64(nil), box.Max...),
	}
	// Same stride layout as a colour LUT: the last input varies fastest
	stride := nOutputs
	for i := nInputs - 1; i >= 0; i-- {
		g.domain[i] = float64(nSamples - 1)
		g.opta[i] = stride
		stride *= nSamples
	}
	g.table = make([]float64, stride)
	return g
}

// Number of grid nodes
func (g *grid) nodes() int {
	n := 1
	for i := 0; i < g.nInputs; i++ {
		n *= g.nSamples
	}
	return n
}

// Input coordinates of node k
func (g *grid) nodeInput(k int, dst []float64) {
	for i := g.nInputs - 1; i >= 0; i-- {
		idx := k % g.nSamples
		k /= g.nSamples
		dst[i] = g.lo[i] + (g.hi[i]-g.lo[i])*float64(idx)/g.domain[i]
	}
}

// Fill evaluates fn on every node
func (g *grid) fill(fn func(in, out []float64)) {
	in := make([]float64, g.nInputs)
	for k := 0; k < g.nodes(); k++ {
		g.nodeInput(k, in)
		fn(in, g.table[k*g.nOutputs:(k+1)*g.nOutputs])
	}
}

func fclamp(v float64) float64 {
	if v < 1.0e-9 || math.IsNaN(v) {
		return 0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// eval interpolates the grid at in, writing nOutputs values into out.
func (g *grid) eval(m mem.Manager, in, out []float64) {
	sc := m.Scratch()
	sc.In = mem.Floats(sc.In, g.nInputs)
	for i := 0; i < g.nInputs; i++ {
		span := g.hi[i] - g.lo[i]
		if span <= 0 {
			sc.In[i] = 0
			continue
		}
		sc.In[i] = fclamp((in[i] - g.lo[i]) / span)
	}
	switch g.nInputs {
	case 1:
		g.linear(sc.In, out)
	case 2:
		g.bilinear(sc.In, out)
	default:
		g.trilinear(sc.In, out)
	}
}

func lerp(a, l, h float64) float64 {
	return l + (h-l)*a
}

func (g *grid) cell(v float64, axis int) (base, next int, frac float64) {
	p := v * g.domain[axis]
	x0 := int(math.Floor(p))
	frac = p - float64(x0)
	base = g.opta[axis] * x0
	next = base
	if v < 1.0 {
		next += g.opta[axis]
	}
	return base, next, frac
}

func (g *grid) linear(in, out []float64) {
	X0, X1, fx := g.cell(in[0], 0)
	for o := 0; o < g.nOutputs; o++ {
		out[o] = lerp(fx, g.table[X0+o], g.table[X1+o])
	}
}

func (g *grid) bilinear(in, out []float64) {
	X0, X1, fx := g.cell(in[0], 0)
	Y0, Y1, fy := g.cell(in[1], 1)
	dens := func(i, j, o int) float64 { return g.table[i+j+o] }
	for o := 0; o < g.nOutputs; o++ {
		d00 := dens(X0, Y0, o)
		d01 := dens(X0, Y1, o)
		d10 := dens(X1, Y0, o)
		d11 := dens(X1, Y1, o)
		dx0 := lerp(fx, d00, d10)
		dx1 := lerp(fx, d01, d11)
		out[o] = lerp(fy, dx0, dx1)
	}
}

func (g *grid) trilinear(in, out []float64) {
	X0, X1, fx := g.cell(in[0], 0)
	Y0, Y1, fy := g.cell(in[1], 1)
	Z0, Z1, fz := g.cell(in[2], 2)
	dens := func(i, j, k, o int) float64 { return g.table[i+j+k+o] }

	for o := 0; o < g.nOutputs; o++ {
		d000 := dens(X0, Y0, Z0, o)
		d001 := dens(X0, Y0, Z1, o)
		d010 := dens(X0, Y1, Z0, o)
		d011 := dens(X0, Y1, Z1, o)
		d100 := dens(X1, Y0, Z0, o)
		d101 := dens(X1, Y0, Z1, o)
		d110 := dens(X1, Y1, Z0, o)
		d111 := dens(X1, Y1, Z1, o)

		dx00 := lerp(fx, d000, d100)
		dx01 := lerp(fx, d001, d101)
		dx10 := lerp(fx, d010, d110)
		dx11 := lerp(fx, d011, d111)

		dxy0 := lerp(fy, dx00, dx10)
		dxy1 := lerp(fy, dx01, dx11)

		out[o] = lerp(fz, dxy0, dxy1)
	}
}
