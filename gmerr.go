package gamutmap

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Log is the package logger. A request may override it through Options.Logger.
var Log logrus.FieldLogger = logrus.StandardLogger()

var (
	ErrIncompatibleGamuts      = errors.New("gamutmap: incompatible gamuts")
	ErrSamplingExhausted       = errors.New("gamutmap: no usable sample points")
	ErrSearchFailure           = errors.New("gamutmap: search exhausted all restarts")
	ErrNonInvertibleAlignment  = errors.New("gamutmap: singular alignment matrix")
	ErrNonMonotonicFit         = errors.New("gamutmap: fit is not monotonic")
	ErrInversionDidNotConverge = errors.New("gamutmap: inversion did not converge")
)

// Stage identifies one pass of guide generation or transform construction.
type Stage int

const (
	StageSampling Stage = iota
	StageCuspAlign
	StageAbsolute
	StageComposite
	StageNeighbors
	StageSmoothing
	StageCorrection
	StageKnees
	StageGreyAxis
	StageToneCurve
	StageBoundaryMap
	StageFineTune
	StageUnmap
)

var stageNames = [...]string{
	"sampling", "cusp-align", "absolute-search", "composite-search",
	"neighbors", "smoothing", "correction", "knees",
	"grey-axis", "tone-curve", "boundary-map", "fine-tune", "unmap",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError reports a fatal failure of one stage for one sample.
type StageError struct {
	Stage Stage
	Index int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: sample %d: %v", e.Stage, e.Index, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// WarningKind classifies a recoverable condition.
type WarningKind int

const (
	WarnNonMonotonicFit WarningKind = iota
	WarnContainment
	WarnCuspsUnavailable
)

func (k WarningKind) String() string {
	switch k {
	case WarnNonMonotonicFit:
		return "non-monotonic-fit"
	case WarnContainment:
		return "containment"
	case WarnCuspsUnavailable:
		return "cusps-unavailable"
	}
	return fmt.Sprintf("warning(%d)", int(k))
}

// Warning is a recoverable condition returned alongside a usable result.
type Warning struct {
	Kind    WarningKind
	Stage   Stage
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s (%s): %s", w.Kind, w.Stage, w.Message)
}

// Err returns the sentinel matching the warning kind, or nil.
func (w Warning) Err() error {
	if w.Kind == WarnNonMonotonicFit {
		return ErrNonMonotonicFit
	}
	return nil
}

// warnings accumulates recoverable conditions and logs each one.
type warnings struct {
	log  logrus.FieldLogger
	list []Warning
}

func (w *warnings) signal(kind WarningKind, stage Stage, message string, args ...any) {
	msg := fmt.Sprintf(message, args...)
	w.list = append(w.list, Warning{Kind: kind, Stage: stage, Message: msg})
	w.log.WithFields(logrus.Fields{"stage": stage.String(), "kind": kind.String()}).Warn(msg)
}

func searchFailure(stage Stage, index int) error {
	return &StageError{Stage: stage, Index: index, Err: ErrSearchFailure}
}
