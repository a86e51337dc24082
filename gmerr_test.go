package gamutmap

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestWarningErr(t *testing.T) {
	w := Warning{Kind: WarnNonMonotonicFit, Stage: StageBoundaryMap, Message: "falls"}
	if !errors.Is(w.Err(), ErrNonMonotonicFit) {
		t.Errorf("Err() = %v, want ErrNonMonotonicFit", w.Err())
	}
	for _, k := range []WarningKind{WarnContainment, WarnCuspsUnavailable} {
		if err := (Warning{Kind: k}).Err(); err != nil {
			t.Errorf("%s: Err() = %v, want nil", k, err)
		}
	}
	if got := w.String(); !strings.Contains(got, "boundary-map") || !strings.Contains(got, "falls") {
		t.Errorf("String() = %q", got)
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	err := errors.Wrap(searchFailure(StageComposite, 4), "generate")
	if !errors.Is(err, ErrSearchFailure) {
		t.Errorf("error = %v, want ErrSearchFailure", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageComposite || se.Index != 4 {
		t.Errorf("got %+v, want composite-search index 4", se)
	}
}
