package sampler

import "errors"

// Sentinel errors returned by the sampler. Callers branch on them with
// errors.Is; call sites attach context (file path, offending value) with %w.
var (
	// ErrInvalidDimensions reports a (Ndim, Nfixed) pair outside 0 <= Nfixed <= Ndim, 1 <= Ndim <= 4096.
	ErrInvalidDimensions = errors.New("sampler: invalid dimensions")

	// ErrNoPendingSample reports Feedback without a preceding Sample.
	ErrNoPendingSample = errors.New("sampler: feedback without a pending sample")

	// ErrFeedbackMismatch reports Feedback for a point other than the last sampled one.
	ErrFeedbackMismatch = errors.New("sampler: feedback point does not match last sample")

	// ErrFixedCoordinates reports caller-supplied fixed coordinates of the
	// wrong count or outside [0,1).
	ErrFixedCoordinates = errors.New("sampler: invalid fixed coordinates")

	// ErrResultUnknown reports an estimator queried with no usable statistics.
	ErrResultUnknown = errors.New("sampler: result unknown")

	// ErrDimensionMismatch reports a state file over a different (Ndim, Nfixed) domain.
	ErrDimensionMismatch = errors.New("sampler: state dimensions do not match")

	// ErrMalformedState reports a state file that cannot be parsed into a valid tree.
	ErrMalformedState = errors.New("sampler: malformed state")

	// ErrInvalidConfig reports an adaptation parameter out of range.
	ErrInvalidConfig = errors.New("sampler: invalid configuration")
)
