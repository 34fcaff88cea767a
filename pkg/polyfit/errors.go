package polyfit

import "errors"

// Error kinds reported by the fitting engine and its callers. They are
// returned wrapped with context; match them with errors.Is.
var (
	// ErrConfig reports an invalid polynomial order, channel count or other
	// parameter that can be rejected before any data is touched.
	ErrConfig = errors.New("configuration error")

	// ErrInsufficientSamples reports fewer selected rows than the model has
	// coefficients.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrDimensionMismatch reports array shapes that disagree with each other
	// or with the declared channel count.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNumericalSingularity reports a failed or rank-deficient least-squares
	// solve.
	ErrNumericalSingularity = errors.New("numerical singularity")
)
