package gamutmap

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
)

func TestHexant(t *testing.T) {
	hues := gamut.DefaultCuspHues
	cases := []struct {
		h    float64
		i    int
		frac float64
	}{
		{40, 0, 0},
		{70, 0, 0.5},
		{100, 1, 0},
		{350, 5, 20.0 / 70},
		{10, 5, 40.0 / 70},
		{39.999, 5, 69.999 / 70},
	}
	for _, c := range cases {
		i, f := Hexant(c.h, hues)
		if i != c.i || math.Abs(f-c.frac) > 1e-9 {
			t.Errorf("Hexant(%f) got (%d, %f), want (%d, %f)", c.h, i, f, c.i, c.frac)
		}
	}
}

func TestResolveContinuousAcrossCusp(t *testing.T) {
	cfg := DefaultWeightConfig()
	cfg.Hexants[HexLightYellow].RelH = 90
	hues := gamut.DefaultCuspHues
	below := cfg.Resolve(100-1e-7, 100, 1, hues)
	above := cfg.Resolve(100+1e-7, 100, 1, hues)
	if math.Abs(below.RelH-above.RelH) > 1e-4 {
		t.Errorf("RelH jumps across cusp: %f vs %f", below.RelH, above.RelH)
	}
	if math.Abs(above.RelH-90) > 1e-3 {
		t.Errorf("RelH at cusp got %f, want 90", above.RelH)
	}
}

func TestResolveNeutral(t *testing.T) {
	cfg := DefaultWeightConfig()
	w := cfg.Resolve(200, 100, 0, gamut.DefaultCuspHues)
	if diff := cmp.Diff(cfg.Hexants[HexNeutralLight], w, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("neutral light mismatch (-want +got):\n%s", diff)
	}
	w = cfg.Resolve(200, 0, 0, gamut.DefaultCuspHues)
	if diff := cmp.Diff(cfg.Hexants[HexNeutralDark], w, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("neutral dark mismatch (-want +got):\n%s", diff)
	}
}

func TestWeightConfigYAML(t *testing.T) {
	cfg := DefaultWeightConfig()
	cfg.Hexants[HexDarkBlue].CuspWeight = 0.25
	cfg.KneeFactor = 0.2

	var buf bytes.Buffer
	if err := cfg.WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}
	got, err := ReadWeightConfig(&buf)
	if err != nil {
		t.Fatalf("ReadWeightConfig failed: %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("YAML round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWeightConfigValidate(t *testing.T) {
	cfg := DefaultWeightConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := DefaultWeightConfig()
	bad.Hexants = bad.Hexants[:12]
	if bad.Validate() == nil {
		t.Errorf("short table accepted")
	}
	bad = DefaultWeightConfig()
	bad.Hexants[3].CuspWeight = 1.5
	if bad.Validate() == nil {
		t.Errorf("cusp weight 1.5 accepted")
	}
	bad = DefaultWeightConfig()
	bad.KneeFactor = 0.5
	if bad.Validate() == nil {
		t.Errorf("knee factor 0.5 accepted")
	}

	if _, err := ReadWeightConfig(strings.NewReader("knee_factor: 0.1\nbogus: 3\n")); err == nil {
		t.Errorf("unknown field accepted")
	}
}
