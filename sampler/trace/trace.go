package trace

// TraceLevel controls the verbosity of adaptation tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSplits captures every split decision.
	TraceLevelSplits TraceLevel = "splits"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelSplits: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// AdaptationTrace collects split records across one or more Adapt calls.
type AdaptationTrace struct {
	Level  TraceLevel
	Passes int
	Splits []SplitRecord
}

// NewAdaptationTrace creates an AdaptationTrace ready for recording.
// Returns nil for TraceLevelNone so callers can pass it straight to the sampler.
func NewAdaptationTrace(level TraceLevel) *AdaptationTrace {
	if level == TraceLevelNone || level == "" {
		return nil
	}
	return &AdaptationTrace{
		Level:  level,
		Splits: make([]SplitRecord, 0),
	}
}

// RecordPass counts one adaptation pass.
func (at *AdaptationTrace) RecordPass() {
	at.Passes++
}

// RecordSplit appends a split record.
func (at *AdaptationTrace) RecordSplit(record SplitRecord) {
	at.Splits = append(at.Splits, record)
}
