package model

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
)

func newTestRun(t *testing.T) *Run {
	t.Helper()

	target, err := NormalizeTarget("example.com")
	if err != nil {
		t.Fatalf("failed to normalize target: %v", err)
	}
	return NewRun("run-1", target)
}

func TestRunAdvance(t *testing.T) {
	t.Parallel()

	t.Run("walks forward through every state", func(t *testing.T) {
		t.Parallel()

		run := newTestRun(t)
		states := []State{
			StateFetching, StateExtracting, StateDownloading,
			StatePurging, StateAggregating, StateDone,
		}
		for _, s := range states {
			if err := run.Advance(s); err != nil {
				t.Fatalf("advance to %s: %v", s, err)
			}
		}

		if run.State != StateDone {
			t.Errorf("expected done, got %s", run.State)
		}
		if len(run.Transitions) != len(states) {
			t.Errorf("expected %d transitions, got %d", len(states), len(run.Transitions))
		}
		if run.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set")
		}
	})

	t.Run("refuses backward edges", func(t *testing.T) {
		t.Parallel()

		run := newTestRun(t)
		if err := run.Advance(StatePurging); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := run.Advance(StateFetching); err == nil {
			t.Error("expected error moving backward")
		}
	})

	t.Run("refuses leaving a terminal state", func(t *testing.T) {
		t.Parallel()

		run := newTestRun(t)
		if err := run.Advance(StateDone); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := run.Advance(StateFailed); err == nil {
			t.Error("expected error leaving done")
		}
	})
}

func TestRunFail(t *testing.T) {
	t.Parallel()

	run := newTestRun(t)
	if err := run.Advance(StateFetching); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := run.Fail(ErrPageUnreachable)

	if !errors.Is(err, ErrPageUnreachable) {
		t.Errorf("expected ErrPageUnreachable, got %v", err)
	}
	if got := FailedState(err); got != StateFetching {
		t.Errorf("expected failed state fetching, got %s", got)
	}
	if run.State != StateFailed {
		t.Errorf("expected run state failed, got %s", run.State)
	}
	if !errors.Is(run.Err, ErrPageUnreachable) {
		t.Errorf("expected run.Err to carry the cause, got %v", run.Err)
	}
}

func TestFailedStateWithoutStageError(t *testing.T) {
	t.Parallel()

	if got := FailedState(errors.New("plain")); got != StateFailed {
		t.Errorf("expected failed, got %s", got)
	}
}

func TestRunAggregate(t *testing.T) {
	t.Parallel()

	run := newTestRun(t)
	run.Results = []PurgeResult{
		NewPurgeResult(StylesheetAsset{SourceID: "a", CSS: "button{color:red}.unused{color:blue}"}, "button{color:red}\n"),
		NewPurgeResult(StylesheetAsset{SourceID: "b", CSS: "p{margin:0}"}, "p{margin:0}\n"),
	}

	run.Aggregate()

	if run.CSS != "button{color:red}\np{margin:0}\n" {
		t.Errorf("unexpected aggregated css %q", run.CSS)
	}
	if run.Reduction <= 0 || run.Reduction >= 1 {
		t.Errorf("expected reduction in (0,1), got %v", run.Reduction)
	}

	result := run.Result()
	if result.CSS != run.CSS {
		t.Error("result css differs from run css")
	}
	if result.ReductionFactor != run.Reduction.Float64() {
		t.Error("result reduction differs from run reduction")
	}
	if result.OriginalSize() != 47 {
		t.Errorf("expected original size 47, got %d", result.OriginalSize())
	}
	if result.PurgedSize() != len(run.CSS) {
		t.Errorf("expected purged size %d, got %d", len(run.CSS), result.PurgedSize())
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StatePending:     "pending",
		StateFetching:    "fetching",
		StateExtracting:  "extracting",
		StateDownloading: "downloading",
		StatePurging:     "purging",
		StateAggregating: "aggregating",
		StateDone:        "done",
		StateFailed:      "failed",
		State(99):        "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestRunSkipAndDiagnostics(t *testing.T) {
	t.Parallel()

	run := newTestRun(t)
	if got := run.Result().Diagnostics; got != nil {
		t.Errorf("expected no diagnostics, got %q", got)
	}

	run.Skip("http://[::1", "malformed stylesheet reference")
	run.Skip("https://example.com/gone.css", "unexpected status 404")
	run.Diagnostics = multierr.Append(
		errors.New("http://[::1: malformed stylesheet reference"),
		errors.New("https://example.com/gone.css: unexpected status 404"),
	)

	result := run.Result()
	wantSkipped := []SkippedStylesheet{
		{Href: "http://[::1", Reason: "malformed stylesheet reference"},
		{Href: "https://example.com/gone.css", Reason: "unexpected status 404"},
	}
	if diff := cmp.Diff(wantSkipped, result.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
	wantDiag := []string{
		"http://[::1: malformed stylesheet reference",
		"https://example.com/gone.css: unexpected status 404",
	}
	if diff := cmp.Diff(wantDiag, result.Diagnostics); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}
