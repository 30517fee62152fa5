package trace

// TraceSummary aggregates statistics from an AdaptationTrace.
type TraceSummary struct {
	TotalSplits   int
	Passes        int
	MaxDepth      int         // deepest cell split
	MeanGain      float64
	MaxGain       float64
	SplitsPerAxis map[int]int // dimension → number of splits along it
}

// Summarize computes aggregate statistics from an AdaptationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(at *AdaptationTrace) *TraceSummary {
	summary := &TraceSummary{
		SplitsPerAxis: make(map[int]int),
	}
	if at == nil {
		return summary
	}

	summary.Passes = at.Passes
	summary.TotalSplits = len(at.Splits)
	if len(at.Splits) == 0 {
		return summary
	}

	totalGain := 0.0
	for _, r := range at.Splits {
		summary.SplitsPerAxis[r.Axis]++
		totalGain += r.Gain
		if r.Gain > summary.MaxGain {
			summary.MaxGain = r.Gain
		}
		if r.Depth > summary.MaxDepth {
			summary.MaxDepth = r.Depth
		}
	}
	summary.MeanGain = totalGain / float64(len(at.Splits))

	return summary
}
