package gamutmap

import (
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// WhiteBlack is the neutral axis of one gamut.
type WhiteBlack struct {
	White r3.Vec
	Black r3.Vec
}

// BlackPolicy selects how the source black is brought onto the destination black.
type BlackPolicy int

const (
	// BlackAdapt rotates the neutral axis and compresses black fully onto the destination black.
	BlackAdapt BlackPolicy = iota
	// BlackBend anchors white only and bends the tone curve gradually down to the destination black.
	BlackBend
	// BlackClip anchors white only and clips lightness at the destination black.
	BlackClip
)

func (p BlackPolicy) String() string {
	switch p {
	case BlackAdapt:
		return "adapt"
	case BlackBend:
		return "bend"
	case BlackClip:
		return "clip"
	}
	return "unknown"
}

// ParseBlackPolicy accepts the names returned by BlackPolicy.String.
func ParseBlackPolicy(s string) (BlackPolicy, error) {
	switch strings.ToLower(s) {
	case "adapt":
		return BlackAdapt, nil
	case "bend":
		return BlackBend, nil
	case "clip":
		return BlackClip, nil
	}
	return 0, errors.Errorf("unknown black policy %q", s)
}

// GreyAxis is a rigid rotation about the source white followed by a
// translation of the source white onto the destination white. Lengths are
// preserved; all lightness scaling, and so the black policy, is left to
// the tone curve.
type GreyAxis struct {
	Rot      Mat3
	Inv      Mat3
	SrcWhite r3.Vec
	DstWhite r3.Vec
}

// BuildGreyAxis aligns the source neutral axis with the destination one.
// greyBlend in [0,1] sets how far the axis direction is turned toward the
// destination axis.
func BuildGreyAxis(src, dst WhiteBlack, greyBlend float64) (GreyAxis, error) {
	as := r3.Sub(src.White, src.Black)
	ad := r3.Sub(dst.White, dst.Black)
	if r3.Norm(as) < 1.0e-6 || r3.Norm(ad) < 1.0e-6 {
		return GreyAxis{}, errors.Wrap(ErrNonInvertibleAlignment, "degenerate neutral axis")
	}
	b := clamp01(greyBlend)
	target := r3.Add(r3.Scale(1-b, r3.Unit(as)), r3.Scale(b, r3.Unit(ad)))
	if r3.Norm(target) < 1.0e-6 {
		return GreyAxis{}, errors.Wrap(ErrNonInvertibleAlignment, "opposed neutral axes")
	}
	rot := RotationBetween(as, target)
	inv, ok := rot.Inverse()
	if !ok {
		return GreyAxis{}, errors.Wrap(ErrNonInvertibleAlignment, "grey axis rotation")
	}
	return GreyAxis{
		Rot:      rot,
		Inv:      inv,
		SrcWhite: src.White,
		DstWhite: dst.White,
	}, nil
}

func (g GreyAxis) Forward(p r3.Vec) r3.Vec {
	return r3.Add(g.DstWhite, g.Rot.Eval(r3.Sub(p, g.SrcWhite)))
}

func (g GreyAxis) Inverse(q r3.Vec) r3.Vec {
	return r3.Add(g.SrcWhite, g.Inv.Eval(r3.Sub(q, g.DstWhite)))
}
