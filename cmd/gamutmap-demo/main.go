package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	gm "github.com/arthur-liberman/hcfr-code-sub010"
	"github.com/arthur-liberman/hcfr-code-sub010/gamut"
)

// Reference gamuts selectable by name
var gamuts = map[string]func() gamut.Oracle{
	"srgb": func() gamut.Oracle { return gamut.NewDevice(gamut.SRGB, 8) },
	"dim-display": func() gamut.Oracle {
		return gamut.NewDevice(gamut.DeviceModel{BlackLift: 0.01, Gain: 0.85, Saturation: 0.8}, 8)
	},
	"wide-shape":  func() gamut.Oracle { return gamut.NewShape(96, 3, 52, 90) },
	"large-shape": func() gamut.Oracle { return gamut.NewShape(95, 5, 50, 60) },
	"small-shape": func() gamut.Oracle { return gamut.NewShape(90, 10, 50, 40) },
	"print-shape": func() gamut.Oracle {
		s := gamut.NewShape(92, 18, 55, 45)
		s.Lobe = 0.15
		s.LobePhase = 60
		return s
	},
}

func gamutNames() string {
	var names []string
	for n := range gamuts {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func gamutByName(name string) (gamut.Oracle, error) {
	f, ok := gamuts[name]
	if !ok {
		return nil, errors.Errorf("unknown gamut %q (known: %s)", name, gamutNames())
	}
	return f(), nil
}

var (
	logLevel    string
	srcName     string
	dstName     string
	weightsPath string
	resolution  int
	density     float64
	workers     int
	seed        uint64
	expand      bool

	policyName string
	greyBlend  float64
	satEnh     float64
	clip       bool
	inputPath  string
	invert     bool

	checkPath string
)

var rootCmd = &cobra.Command{
	Use:     "gamutmap-demo",
	Short:   "Generate guide vectors and gamut transforms between reference gamuts",
	Version: gm.Version(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(lvl)
		logrus.SetOutput(os.Stderr)
		return nil
	},
	SilenceUsage: true,
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Write the guide vector field as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := generateRequest()
		if err != nil {
			return err
		}
		pts, warn, err := gm.Generate(req)
		if err != nil {
			return err
		}
		reportWarnings(warn)
		return writeGuides(cmd.OutOrStdout(), pts)
	},
}

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Map L*a*b* colours from CSV (or a test ramp) through a gamut transform",
	RunE: func(cmd *cobra.Command, args []string) error {
		xf, err := buildTransform()
		if err != nil {
			return err
		}
		colours, err := readColours(inputPath)
		if err != nil {
			return err
		}
		return mapColours(cmd.OutOrStdout(), xf, colours)
	},
}

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Print the default weight table as YAML, or validate one",
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkPath != "" {
			if _, err := gm.LoadWeightConfig(checkPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", checkPath)
			return nil
		}
		return gm.DefaultWeightConfig().WriteYAML(cmd.OutOrStdout())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&logLevel, "log-level", "l", "info", "logrus level (debug, info, warn, error)")
	pf.StringVarP(&srcName, "src", "s", "large-shape", "source gamut")
	pf.StringVarP(&dstName, "dst", "d", "small-shape", "destination gamut")
	pf.StringVarP(&weightsPath, "weights", "w", "", "YAML weight table (default built in)")
	pf.IntVarP(&resolution, "resolution", "r", 10, "target sampling resolution")
	pf.Float64Var(&density, "density", 1, "vertex density multiplier")
	pf.IntVarP(&workers, "workers", "j", 0, "worker goroutines (0 uses every CPU)")
	pf.Uint64Var(&seed, "seed", 0, "search restart seed")
	pf.BoolVar(&expand, "expand", false, "also expand into destination regions larger than the source")

	mf := mapCmd.Flags()
	mf.StringVar(&policyName, "black", "adapt", "black point policy (adapt, bend, clip)")
	mf.Float64Var(&greyBlend, "grey-blend", 1, "how far the source grey axis is turned onto the destination one")
	mf.Float64Var(&satEnh, "saturation", 0, "saturation enhancement")
	mf.BoolVar(&clip, "clip", false, "clip results into the destination gamut")
	mf.StringVarP(&inputPath, "input", "i", "", "CSV with L,a,b columns (default a neutral and primary ramp)")
	mf.BoolVar(&invert, "invert", false, "also report the inverse mapping of every result")

	weightsCmd.Flags().StringVar(&checkPath, "check", "", "validate this YAML weight table")

	rootCmd.AddCommand(guideCmd, mapCmd, weightsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadWeights() (*gm.WeightConfig, error) {
	if weightsPath == "" {
		return gm.DefaultWeightConfig(), nil
	}
	return gm.LoadWeightConfig(weightsPath)
}

func generateRequest() (gm.GenerateRequest, error) {
	src, err := gamutByName(srcName)
	if err != nil {
		return gm.GenerateRequest{}, err
	}
	dst, err := gamutByName(dstName)
	if err != nil {
		return gm.GenerateRequest{}, err
	}
	w, err := loadWeights()
	if err != nil {
		return gm.GenerateRequest{}, err
	}
	opts := gm.DefaultOptions()
	if workers > 0 {
		opts.Workers = workers
	}
	opts.Seed = seed
	return gm.GenerateRequest{
		Source:           src,
		Dest:             dst,
		Weights:          w,
		KneeFactors:      [2]float64{0.1, 0.25},
		WantCompression:  true,
		WantExpansion:    expand,
		VertexDensity:    density,
		TargetResolution: resolution,
		Options:          opts,
	}, nil
}

func reportWarnings(warn []gm.Warning) {
	for _, w := range warn {
		entry := logrus.WithField("kind", w.Kind.String())
		if err := w.Err(); err != nil {
			entry = entry.WithError(err)
		}
		entry.Warn(w.String())
	}
}

func buildTransform() (*gm.GamutTransform, error) {
	policy, err := gm.ParseBlackPolicy(policyName)
	if err != nil {
		return nil, err
	}
	req, err := generateRequest()
	if err != nil {
		return nil, err
	}
	pts, warn, err := gm.Generate(req)
	if err != nil {
		return nil, err
	}
	reportWarnings(warn)
	xf, err := gm.BuildTransform(gm.TransformRequest{
		Guides:            pts,
		Source:            req.Source,
		Dest:              req.Dest,
		Weights:           req.Weights,
		GreyBlend:         greyBlend,
		Policy:            policy,
		SaturationEnhance: satEnh,
		ClipToDest:        clip,
		Workers:           workers,
	})
	if err != nil {
		return nil, err
	}
	reportWarnings(xf.Warnings())
	lo, hi := xf.Envelope()
	logrus.WithFields(logrus.Fields{"lo": lo, "hi": hi}).Debug("boundary map envelope")
	return xf, nil
}

type guideRow struct {
	ID        int     `csv:"id"`
	Class     string  `csv:"class"`
	SrcL      float64 `csv:"src_l"`
	SrcA      float64 `csv:"src_a"`
	SrcB      float64 `csv:"src_b"`
	DstL      float64 `csv:"dst_l"`
	DstA      float64 `csv:"dst_a"`
	DstB      float64 `csv:"dst_b"`
	Length    float64 `csv:"length"`
	Knees     int     `csv:"knees"`
	Neighbors int     `csv:"neighbors"`
}

func classOf(gp *gm.GuidePoint) string {
	switch {
	case gp.Compress:
		return "compress"
	case gp.Expand:
		return "expand"
	}
	return "ambiguous"
}

func writeGuides(w io.Writer, pts []gm.GuidePoint) error {
	rows := make([]guideRow, len(pts))
	for i := range pts {
		gp := &pts[i]
		rows[i] = guideRow{
			ID:        gp.ID,
			Class:     classOf(gp),
			SrcL:      gp.SrcCusp.X,
			SrcA:      gp.SrcCusp.Y,
			SrcB:      gp.SrcCusp.Z,
			DstL:      gp.Dst.X,
			DstA:      gp.Dst.Y,
			DstB:      gp.Dst.Z,
			Length:    r3.Norm(gp.Vector()),
			Knees:     len(gp.Knees),
			Neighbors: len(gp.Neighbors),
		}
	}
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return errors.Wrap(err, "encode guides")
	}
	_, err = w.Write(b)
	return err
}

type colourRow struct {
	L float64 `csv:"L"`
	A float64 `csv:"a"`
	B float64 `csv:"b"`
}

type mappedRow struct {
	L        float64 `csv:"L"`
	A        float64 `csv:"a"`
	B        float64 `csv:"b"`
	OutL     float64 `csv:"out_L"`
	OutA     float64 `csv:"out_a"`
	OutB     float64 `csv:"out_b"`
	DeltaE00 float64 `csv:"de00"`
	BackL    float64 `csv:"back_L,omitempty"`
	BackA    float64 `csv:"back_a,omitempty"`
	BackB    float64 `csv:"back_b,omitempty"`
	Note     string  `csv:"note,omitempty"`
}

// Neutral ramp plus the primaries and secondaries at mid lightness.
func defaultColours() []r3.Vec {
	var out []r3.Vec
	for l := 0.0; l <= 100; l += 10 {
		out = append(out, r3.Vec{X: l})
	}
	for _, h := range gamut.DefaultCuspHues {
		out = append(out, gm.FromLCh(gm.LCh{L: 55, C: 70, H: h}))
	}
	return out
}

func readColours(path string) ([]r3.Vec, error) {
	if path == "" {
		return defaultColours(), nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []colourRow
	if err := csvutil.Unmarshal(buf, &rows); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	out := make([]r3.Vec, len(rows))
	for i, r := range rows {
		out[i] = r3.Vec{X: r.L, Y: r.A, Z: r.B}
	}
	return out, nil
}

func mapColours(w io.Writer, xf *gm.GamutTransform, in []r3.Vec) error {
	out := xf.MapAll(in, workers)
	rows := make([]mappedRow, len(in))
	for i := range in {
		rows[i] = mappedRow{
			L: in[i].X, A: in[i].Y, B: in[i].Z,
			OutL: out[i].X, OutA: out[i].Y, OutB: out[i].Z,
			DeltaE00: gm.CIE2000DeltaE(in[i], out[i], 1, 1, 1),
		}
		if !invert {
			continue
		}
		back, err := xf.Unmap(out[i])
		if err != nil {
			if !errors.Is(err, gm.ErrInversionDidNotConverge) {
				return err
			}
			rows[i].Note = "inverse did not converge"
		}
		rows[i].BackL, rows[i].BackA, rows[i].BackB = back.X, back.Y, back.Z
	}
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return errors.Wrap(err, "encode colours")
	}
	_, err = w.Write(b)
	return err
}
