package correction

import (
	"fmt"
	"math"

	"msacbgcorr/pkg/msac"
	"msacbgcorr/pkg/polyfit"
)

// Params holds the background correction parameters.
// Phase values are normalized to [-1, 1) so thresholds are in units of venc.
type Params struct {
	// MagnitudeThreshold selects stationary-tissue candidates: pixels whose
	// time-averaged, peak-normalized magnitude exceeds it. Range [0, 1].
	MagnitudeThreshold float64

	// Threshold truncates the MSAC residual, in units of venc. Must be > 0.
	Threshold float64

	// Samples is the number of pixels drawn per MSAC trial. It must be at
	// least the number of coefficients of the search polynomial.
	Samples int

	// Trials is the exact number of MSAC trials (≥ 1)
	Trials int

	// SearchOrder is the polynomial order fitted during MSAC (0..3)
	SearchOrder int

	// CorrectionOrder is the polynomial order of the final background model
	// fitted on the MSAC inliers (0..3)
	CorrectionOrder int

	// Channels is the number of flow-encoding directions: 1 for 2D flow,
	// 3 for 4D flow
	Channels int

	// Workers is the number of goroutines scoring MSAC trials (0 means 1).
	// Results do not depend on it.
	Workers int

	// Seed initializes the random source when none is supplied
	Seed uint64

	// Degenerate selects the handling of rank-deficient MSAC samples
	Degenerate msac.DegeneratePolicy
}

// Dims returns the number of spatial coordinates implied by Channels
func (p *Params) Dims() int {
	if p.Channels == 3 {
		return 3
	}
	return 2
}

// Validate checks every field before any data is touched
func (p *Params) Validate() error {
	if p.Channels != 1 && p.Channels != 3 {
		return fmt.Errorf("%w: channels must be 1 or 3, got %d", polyfit.ErrConfig, p.Channels)
	}
	if math.IsNaN(p.MagnitudeThreshold) || p.MagnitudeThreshold < 0 || p.MagnitudeThreshold > 1 {
		return fmt.Errorf("%w: magnitude threshold %g outside [0, 1]", polyfit.ErrConfig, p.MagnitudeThreshold)
	}
	if !(p.Threshold > 0) || math.IsInf(p.Threshold, 0) {
		return fmt.Errorf("%w: msac threshold must be positive and finite, got %g", polyfit.ErrConfig, p.Threshold)
	}
	if p.Trials < 1 {
		return fmt.Errorf("%w: trials must be at least 1, got %d", polyfit.ErrConfig, p.Trials)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: negative worker count %d", polyfit.ErrConfig, p.Workers)
	}
	if _, err := polyfit.Columns(p.CorrectionOrder, p.Dims()); err != nil {
		return fmt.Errorf("correction order: %w", err)
	}
	k, err := polyfit.Columns(p.SearchOrder, p.Dims())
	if err != nil {
		return fmt.Errorf("search order: %w", err)
	}
	if p.Samples < k {
		return fmt.Errorf("%w: %d samples per trial, search order %d needs at least %d",
			polyfit.ErrInsufficientSamples, p.Samples, p.SearchOrder, k)
	}
	return nil
}
