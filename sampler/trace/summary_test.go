package trace

import (
	"math"
	"testing"
)

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	// GIVEN a nil trace (tracing disabled)
	// WHEN summarized
	summary := Summarize(nil)

	// THEN all counts are zero and the axis map is usable
	if summary.TotalSplits != 0 || summary.Passes != 0 {
		t.Errorf("expected zero counts, got %+v", summary)
	}
	if summary.SplitsPerAxis == nil || len(summary.SplitsPerAxis) != 0 {
		t.Error("expected empty, non-nil axis distribution")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with splits along two axes
	at := NewAdaptationTrace(TraceLevelSplits)
	at.RecordPass()
	at.RecordPass()
	at.RecordSplit(SplitRecord{Pass: 1, Path: "/", Axis: 0, Depth: 0, Gain: 0.1})
	at.RecordSplit(SplitRecord{Pass: 2, Path: "0-", Axis: 1, Depth: 1, Gain: 0.3})
	at.RecordSplit(SplitRecord{Pass: 2, Path: "0+", Axis: 1, Depth: 1, Gain: 0.2})

	// WHEN summarized
	summary := Summarize(at)

	// THEN counts, depth and gain statistics match
	if summary.TotalSplits != 3 {
		t.Errorf("expected 3 splits, got %d", summary.TotalSplits)
	}
	if summary.Passes != 2 {
		t.Errorf("expected 2 passes, got %d", summary.Passes)
	}
	if summary.SplitsPerAxis[0] != 1 || summary.SplitsPerAxis[1] != 2 {
		t.Errorf("unexpected axis distribution %v", summary.SplitsPerAxis)
	}
	if summary.MaxDepth != 1 {
		t.Errorf("expected max depth 1, got %d", summary.MaxDepth)
	}
	if math.Abs(summary.MeanGain-0.2) > 1e-12 {
		t.Errorf("expected mean gain 0.2, got %v", summary.MeanGain)
	}
	if summary.MaxGain != 0.3 {
		t.Errorf("expected max gain 0.3, got %v", summary.MaxGain)
	}
}
