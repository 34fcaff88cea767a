package loader

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"msacbgcorr/internal/models"
)

// NormalizePhase maps raw phase values in [0, scale) onto [-1, 1) in place.
// 12-bit scanner data uses scale 4096.
func NormalizePhase(s *models.Series, scale float64) error {
	if !(scale > 0) {
		return fmt.Errorf("phase scale must be positive, got %g", scale)
	}
	for i, v := range s.Data {
		s.Data[i] = (v/scale - 0.5) * 2
	}
	return nil
}

// NormalizeMagnitude2D scales magnitude in place so its peak value is 1
func NormalizeMagnitude2D(s *models.Series) error {
	if len(s.Data) == 0 {
		return fmt.Errorf("empty magnitude series")
	}
	return scaleBy(s, floats.Max(s.Data))
}

// NormalizeMagnitude4D scales magnitude in place by the peak of the centre
// slice along the phase-encoding axis (dim2, index ceil(dim2/2), clamped)
func NormalizeMagnitude4D(s *models.Series) error {
	centre := (s.Shape[1] + 1) / 2
	if centre >= s.Shape[1] {
		centre = s.Shape[1] - 1
	}

	peak := 0.0
	first := true
	for i := 0; i < s.Shape[0]; i++ {
		for k := 0; k < s.Shape[2]; k++ {
			for t := 0; t < s.Shape[3]; t++ {
				for c := 0; c < s.Shape[4]; c++ {
					v := s.At(i, centre, k, t, c)
					if first || v > peak {
						peak, first = v, false
					}
				}
			}
		}
	}
	return scaleBy(s, peak)
}

func scaleBy(s *models.Series, peak float64) error {
	if !(peak > 0) {
		return fmt.Errorf("magnitude peak must be positive, got %g", peak)
	}
	floats.Scale(1/peak, s.Data)
	return nil
}
