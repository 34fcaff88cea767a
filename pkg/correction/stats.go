package correction

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"msacbgcorr/internal/models"
)

// Summary describes a set of phase values, in units of venc
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Median float64
	P01    float64
	P99    float64
}

// ChannelStats compares the averaged phase inside the MSAC mask before and
// after correction for one channel
type ChannelStats struct {
	Channel int

	// MaskPixels is the number of pixels in the magnitude mask
	MaskPixels int

	// Inliers is the number of pixels in the MSAC mask
	Inliers int

	Before Summary
	After  Summary
}

func channelStats(before, after *models.Volume, mask *models.Mask, inliers *models.ChannelMask) []ChannelStats {
	channels := before.Shape[3]
	out := make([]ChannelStats, channels)
	for c := 0; c < channels; c++ {
		var b, a []float64
		for p := 0; p < before.Pixels(); p++ {
			if inliers.Data[p*channels+c] {
				b = append(b, before.Data[p*channels+c])
				a = append(a, after.Data[p*channels+c])
			}
		}
		out[c] = ChannelStats{
			Channel:    c,
			MaskPixels: mask.Count(),
			Inliers:    len(b),
			Before:     summarize(b),
			After:      summarize(a),
		}
	}
	return out
}

// summarize returns a zero Summary for empty input
func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	s := Summary{Count: len(values)}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		s.StdDev = 0
	}

	data := stats.Float64Data(values)
	s.Median, _ = stats.Median(data)
	s.P01, _ = stats.Percentile(data, 1)
	s.P99, _ = stats.Percentile(data, 99)
	return s
}
