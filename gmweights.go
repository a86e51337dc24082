package gamutmap

import (
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Weight record indexes inside a WeightConfig.
const (
	HexLightRed = iota
	HexLightYellow
	HexLightGreen
	HexLightCyan
	HexLightBlue
	HexLightMagenta
	HexDarkRed
	HexDarkYellow
	HexDarkGreen
	HexDarkCyan
	HexDarkBlue
	HexDarkMagenta
	HexNeutralLight
	HexNeutralDark
	NumHexants
)

// Weights steers guide generation for one region of colour space.
type Weights struct {
	CuspWeight  float64 `yaml:"cusp_weight"` // cusp alignment strength, 0 disables
	Twist       float64 `yaml:"twist"`       // chroma power of the cusp factor
	AbsL        float64 `yaml:"abs_l"`       // absolute error weights
	AbsC        float64 `yaml:"abs_c"`
	AbsH        float64 `yaml:"abs_h"`
	DEThreshold float64 `yaml:"de_threshold"` // delta E above which the penalty applies
	DEPower     float64 `yaml:"de_power"`
	Radial      float64 `yaml:"radial"`
	RelL        float64 `yaml:"rel_l"` // smoothing radius in L*
	RelH        float64 `yaml:"rel_h"` // smoothing radius in hue degrees
	Depth       float64 `yaml:"depth"`
	FineTune    float64 `yaml:"fine_tune"` // weight in the final boundary fit
}

func lerpf(a, b, t float64) float64 { return a + (b-a)*t }

// Blend returns the linear interpolation of w toward o by t.
func (w Weights) Blend(o Weights, t float64) Weights {
	return Weights{
		CuspWeight:  lerpf(w.CuspWeight, o.CuspWeight, t),
		Twist:       lerpf(w.Twist, o.Twist, t),
		AbsL:        lerpf(w.AbsL, o.AbsL, t),
		AbsC:        lerpf(w.AbsC, o.AbsC, t),
		AbsH:        lerpf(w.AbsH, o.AbsH, t),
		DEThreshold: lerpf(w.DEThreshold, o.DEThreshold, t),
		DEPower:     lerpf(w.DEPower, o.DEPower, t),
		Radial:      lerpf(w.Radial, o.Radial, t),
		RelL:        lerpf(w.RelL, o.RelL, t),
		RelH:        lerpf(w.RelH, o.RelH, t),
		Depth:       lerpf(w.Depth, o.Depth, t),
		FineTune:    lerpf(w.FineTune, o.FineTune, t),
	}
}

// WeightConfig is the complete weighting table plus the knee and emphasis scalars.
type WeightConfig struct {
	Hexants          []Weights `yaml:"hexants"`
	KneeFactor       float64   `yaml:"knee_factor"`
	CompressEmphasis float64   `yaml:"compress_emphasis"`
	ExpandEmphasis   float64   `yaml:"expand_emphasis"`
}

// DefaultWeightConfig returns a balanced table: strong hue preservation,
// moderate cusp alignment fading toward neutral, tighter smoothing in the darks.
func DefaultWeightConfig() *WeightConfig {
	light := Weights{
		CuspWeight: 0.5, Twist: 1.5,
		AbsL: 1.0, AbsC: 0.8, AbsH: 2.0,
		DEThreshold: 10, DEPower: 2,
		Radial: 0.3, RelL: 20, RelH: 30,
		Depth: 1.0, FineTune: 1.0,
	}
	dark := light
	dark.AbsL = 1.5
	dark.RelL = 15
	dark.RelH = 40
	neutral := light
	neutral.CuspWeight = 0
	neutral.AbsC = 1.5
	neutral.RelH = 60
	neutralDark := neutral
	neutralDark.RelL = 15

	c := &WeightConfig{
		Hexants:          make([]Weights, NumHexants),
		KneeFactor:       0.1,
		CompressEmphasis: 1.0,
		ExpandEmphasis:   1.0,
	}
	for i := 0; i < 6; i++ {
		c.Hexants[HexLightRed+i] = light
		c.Hexants[HexDarkRed+i] = dark
	}
	c.Hexants[HexNeutralLight] = neutral
	c.Hexants[HexNeutralDark] = neutralDark
	return c
}

// Validate checks that the table is complete and usable.
func (c *WeightConfig) Validate() error {
	if len(c.Hexants) != NumHexants {
		return errors.Errorf("weights: want %d hexant records, got %d", NumHexants, len(c.Hexants))
	}
	for i, w := range c.Hexants {
		if w.CuspWeight < 0 || w.CuspWeight > 1 {
			return errors.Errorf("weights: record %d: cusp weight %g outside [0,1]", i, w.CuspWeight)
		}
		if w.RelL <= 0 || w.RelH <= 0 {
			return errors.Errorf("weights: record %d: smoothing radii must be positive", i)
		}
		if w.FineTune <= 0 {
			return errors.Errorf("weights: record %d: fine-tune weight must be positive", i)
		}
		if w.DEPower <= 0 {
			return errors.Errorf("weights: record %d: delta E power must be positive", i)
		}
	}
	if c.KneeFactor < 0 || c.KneeFactor >= 0.5 {
		return errors.Errorf("weights: knee factor %g outside [0,0.5)", c.KneeFactor)
	}
	return nil
}

// ReadWeightConfig decodes a YAML weight table.
func ReadWeightConfig(r io.Reader) (*WeightConfig, error) {
	var c WeightConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, errors.Wrap(err, "weights: decode")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadWeightConfig reads a YAML weight table from a file.
func LoadWeightConfig(path string) (*WeightConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "weights")
	}
	defer f.Close()
	return ReadWeightConfig(f)
}

// WriteYAML encodes the table.
func (c *WeightConfig) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "weights: encode")
	}
	return enc.Close()
}

// Hexant locates hue h (degrees) between adjacent cusp hues. Comparisons are
// half open, [hues[i], hues[i+1]), measured relative to the first cusp.
// Returns the lower cusp index and the fraction toward the next cusp.
func Hexant(h float64, hues [6]float64) (int, float64) {
	rel := func(x float64) float64 {
		d := math.Mod(x-hues[0], 360)
		if d < 0 {
			d += 360
		}
		return d
	}
	hr := rel(h)
	for i := 0; i < 6; i++ {
		lo := rel(hues[i])
		hi := 360.0
		if i < 5 {
			hi = rel(hues[i+1])
		}
		if hr >= lo && hr < hi {
			return i, (hr - lo) / (hi - lo)
		}
	}
	// Cusp hues out of order; fall back to the last sector
	return 5, 0
}

// Resolve returns the weights for a colour with hue h (degrees), lightness
// l on the normalised 0-100 grey axis and chroma relative to the local cusp
// chroma. The result is continuous in all three.
func (c *WeightConfig) Resolve(h, l, relChroma float64, hues [6]float64) Weights {
	i, t := Hexant(h, hues)
	j := (i + 1) % 6
	light := c.Hexants[HexLightRed+i].Blend(c.Hexants[HexLightRed+j], t)
	dark := c.Hexants[HexDarkRed+i].Blend(c.Hexants[HexDarkRed+j], t)

	lw := clamp01(l / 100)
	coloured := dark.Blend(light, lw)
	neutral := c.Hexants[HexNeutralDark].Blend(c.Hexants[HexNeutralLight], lw)
	return neutral.Blend(coloured, clamp01(relChroma))
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
