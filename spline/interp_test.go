package spline

import (
	"math"
	"testing"

	"github.com/arthur-liberman/hcfr-code-sub010/mem"
)

func TestGridReproducesLinear(t *testing.T) {
	box := Range{Min: []float64{0, -100, -100}, Max: []float64{100, 100, 100}}
	for dims := 1; dims <= 3; dims++ {
		b := Range{Min: box.Min[:dims], Max: box.Max[:dims]}
		g := newGrid(dims, 2, 9, b)
		lin := func(in, out []float64) {
			out[0], out[1] = 1, 0
			for i, v := range in {
				out[0] += float64(i+1) * v
				out[1] -= 0.5 * v
			}
		}
		g.fill(lin)

		at := []float64{37.3, -12.9, 55.1}[:dims]
		want := make([]float64, 2)
		lin(at, want)
		got := make([]float64, 2)
		m := mem.NewManager()
		g.eval(m, at, got)
		m.FreeAll()
		for o := range got {
			if math.Abs(got[o]-want[o]) > 1e-9 {
				t.Errorf("%dD channel %d: got %f, want %f", dims, o, got[o], want[o])
			}
		}
	}
}

func TestGridClampsOutsideBox(t *testing.T) {
	g := newGrid(1, 1, 5, Range{Min: []float64{0}, Max: []float64{10}})
	g.fill(func(in, out []float64) { out[0] = in[0] })
	got := make([]float64, 1)
	m := mem.NewManager()
	defer m.FreeAll()
	g.eval(m, []float64{-3}, got)
	if got[0] != 0 {
		t.Errorf("below box: got %f, want 0", got[0])
	}
	g.eval(m, []float64{12}, got)
	if math.Abs(got[0]-10) > 1e-9 {
		t.Errorf("above box: got %f, want 10", got[0])
	}
}
