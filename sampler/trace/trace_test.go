package trace

import (
	"testing"
)

func TestAdaptationTrace_RecordSplit_AppendsRecord(t *testing.T) {
	// GIVEN a trace recording splits
	at := NewAdaptationTrace(TraceLevelSplits)

	// WHEN a split record is recorded
	at.RecordSplit(SplitRecord{Pass: 1, Path: "/", Axis: 0, Alpha: 1, Samples: 1000, Gain: 0.2})

	// THEN the trace contains one split record with correct data
	if len(at.Splits) != 1 {
		t.Fatalf("expected 1 split, got %d", len(at.Splits))
	}
	if at.Splits[0].Path != "/" {
		t.Errorf("expected path /, got %s", at.Splits[0].Path)
	}
	if at.Splits[0].Samples != 1000 {
		t.Errorf("expected 1000 samples, got %g", at.Splits[0].Samples)
	}
}

func TestAdaptationTrace_MultipleRecords_PreservesOrder(t *testing.T) {
	// GIVEN a trace
	at := NewAdaptationTrace(TraceLevelSplits)

	// WHEN several passes and splits are recorded
	at.RecordPass()
	at.RecordSplit(SplitRecord{Pass: 1, Path: "/", Axis: 1})
	at.RecordPass()
	at.RecordSplit(SplitRecord{Pass: 2, Path: "1-", Axis: 0})
	at.RecordSplit(SplitRecord{Pass: 2, Path: "1+", Axis: 0})

	// THEN order and pass count are preserved
	if at.Passes != 2 {
		t.Errorf("expected 2 passes, got %d", at.Passes)
	}
	if len(at.Splits) != 3 || at.Splits[1].Path != "1-" || at.Splits[2].Path != "1+" {
		t.Errorf("split order not preserved: %+v", at.Splits)
	}
}

func TestNewAdaptationTrace_NoneLevel_ReturnsNil(t *testing.T) {
	if at := NewAdaptationTrace(TraceLevelNone); at != nil {
		t.Errorf("expected nil trace for level none, got %+v", at)
	}
	if at := NewAdaptationTrace(""); at != nil {
		t.Errorf("expected nil trace for empty level, got %+v", at)
	}
}

func TestIsValidTraceLevel_ValidLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"splits", true},
		{"", true}, // empty defaults to none
		{"decisions", false},
		{"foobar", false},
		{"NONE", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := IsValidTraceLevel(tt.level); got != tt.valid {
				t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
			}
		})
	}
}
