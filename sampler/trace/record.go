// Package trace provides adaptation-trace recording for analysing how the
// sampler refines its partition tree.
// It has no dependencies on sampler/ and stores pure data types.
package trace

// SplitRecord captures a single cell split made by the adaptation engine.
type SplitRecord struct {
	Pass     int     // adaptation pass that made the split, starting at 1
	Path     string  // path of the cell before the split
	Axis     int     // dimension split
	Depth    int     // depth of the cell before the split
	Alpha    float64 // selection probability of the cell when split
	Samples  float64 // sample count of the cell
	Variance float64 // per-sample variance of the integrand in the cell
	Gain     float64 // estimated rms reduction of the chosen axis
}
