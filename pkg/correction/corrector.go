// Package correction removes background phase offsets from phase-contrast
// MRI series.
//
// The pipeline time-averages the data, masks stationary-tissue candidates by
// magnitude, selects a consensus inlier set with MSAC, fits the final
// polynomial background on those inliers and subtracts it from every frame.
package correction

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"msacbgcorr/internal/models"
	"msacbgcorr/pkg/msac"
	"msacbgcorr/pkg/polyfit"
)

// Result holds everything a correction run produces
type Result struct {
	// MagnitudeMask marks pixels whose averaged magnitude exceeds the
	// threshold, [dim1, dim2, slice]
	MagnitudeMask *models.Mask

	// InlierMask marks the MSAC stationary tissue per channel,
	// [dim1, dim2, slice, channel]
	InlierMask *models.ChannelMask

	// Model is the final background model fitted on the MSAC inliers
	Model *polyfit.Model

	// Background is the model evaluated at every pixel, in units of venc
	Background *models.Volume

	// Average is the uncorrected time-averaged phase
	Average *models.Volume

	// CorrectedAverage is Average minus Background
	CorrectedAverage *models.Volume

	// CorrectedSeries is the time-resolved phase minus Background in every frame
	CorrectedSeries *models.Series

	// Cost is the best MSAC cost per channel
	Cost []float64

	// Skipped counts MSAC trials discarded as degenerate
	Skipped int

	// Stats summarizes the phase inside the MSAC mask before and after correction
	Stats []ChannelStats

	// SearchTime is the time spent in the MSAC search
	SearchTime time.Duration

	// TotalTime is the time spent in Process
	TotalTime time.Duration
}

// Corrector runs the background correction pipeline
type Corrector struct {
	params *Params
	src    rand.Source
	logger zerolog.Logger
}

// NewCorrector creates a corrector. src is the only source of randomness for
// the run; when nil, a source seeded with params.Seed is used.
func NewCorrector(params *Params, src rand.Source) *Corrector {
	if src == nil {
		src = rand.NewSource(params.Seed)
	}
	return &Corrector{
		params: params,
		src:    src,
		logger: zerolog.Nop(),
	}
}

// SetLogger replaces the default no-op logger
func (c *Corrector) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// Process corrects phase, using magnitude to find stationary tissue.
//
// phase is [dim1, dim2, slice, time, channel] normalized to [-1, 1);
// magnitude has the same spatial and time extent, values in [0, 1], and
// either one channel or as many as phase.
func (c *Corrector) Process(phase, magnitude *models.Series) (*Result, error) {
	start := time.Now()
	if err := c.params.Validate(); err != nil {
		return nil, err
	}
	if err := c.checkShapes(phase, magnitude); err != nil {
		return nil, err
	}
	log := c.logger.With().Str("component", "correction").Logger()

	// Step 1: time-average and mask by magnitude
	log.Info().Ints("shape", phase.Shape[:]).Msg("Step 1: averaging and masking")
	average := phase.TimeAverage()
	magAverage := magnitude.TimeAverage()
	if magAverage.Shape[3] > 1 {
		magAverage = magAverage.ChannelMean()
	}
	result := &Result{
		MagnitudeMask: magAverage.Threshold(c.params.MagnitudeThreshold),
		Average:       average,
	}
	if result.MagnitudeMask.Count() == 0 {
		return nil, fmt.Errorf("%w: no pixel above magnitude threshold %g",
			polyfit.ErrInsufficientSamples, c.params.MagnitudeThreshold)
	}

	// Step 2: point sets for the mask and the full image
	masked, maskedPixels, err := c.pointSet(average, result.MagnitudeMask)
	if err != nil {
		return nil, err
	}
	full, _, err := c.pointSet(average, nil)
	if err != nil {
		return nil, err
	}
	log.Info().Int("masked", masked.Len()).Int("pixels", full.Len()).Msg("Step 2: point sets built")

	// Step 3: MSAC on the masked points
	searchStart := time.Now()
	consensus, err := c.search(masked, log)
	if err != nil {
		return nil, err
	}
	result.SearchTime = time.Since(searchStart)
	result.Cost = consensus.Cost
	result.Skipped = consensus.Skipped
	log.Info().
		Floats64("cost", consensus.Cost).
		Dur("elapsed", result.SearchTime).
		Msg("Step 3: MSAC finished")

	// Step 4: final correction model on the consensus inliers
	corr, err := polyfit.NewStrategy(c.params.Dims(), c.params.CorrectionOrder)
	if err != nil {
		return nil, err
	}
	maskedDM, err := corr.Build(masked)
	if err != nil {
		return nil, err
	}
	result.Model, err = corr.Fit(maskedDM, consensus.Inliers)
	if err != nil {
		return nil, fmt.Errorf("correction fit: %w", err)
	}
	log.Info().Int("order", c.params.CorrectionOrder).Msg("Step 4: correction model fitted")

	// Step 5: evaluate over every pixel
	fullDM, err := corr.Build(full)
	if err != nil {
		return nil, err
	}
	est, err := corr.Evaluate(result.Model, fullDM)
	if err != nil {
		return nil, err
	}

	// Step 6: scatter back into image space
	result.InlierMask = scatterInliers(consensus.Inliers, maskedPixels, average.Shape)
	result.Background = scatterBackground(est, average.Shape)

	// Step 7: subtract from the averaged and time-resolved phase
	result.CorrectedAverage = subtractAverage(average, result.Background)
	result.CorrectedSeries = subtractSeries(phase, result.Background)
	log.Info().Msg("Step 7: background subtracted")

	result.Stats = channelStats(average, result.CorrectedAverage, result.MagnitudeMask, result.InlierMask)
	result.TotalTime = time.Since(start)
	return result, nil
}

// checkShapes verifies the input arrays against each other and the
// configured channel count.
func (c *Corrector) checkShapes(phase, magnitude *models.Series) error {
	if phase == nil || magnitude == nil {
		return fmt.Errorf("%w: missing phase or magnitude series", polyfit.ErrDimensionMismatch)
	}
	if err := phase.Validate(); err != nil {
		return fmt.Errorf("%w: phase: %v", polyfit.ErrDimensionMismatch, err)
	}
	if err := magnitude.Validate(); err != nil {
		return fmt.Errorf("%w: magnitude: %v", polyfit.ErrDimensionMismatch, err)
	}
	if phase.Shape[4] != c.params.Channels {
		return fmt.Errorf("%w: phase has %d channels, configured for %d",
			polyfit.ErrDimensionMismatch, phase.Shape[4], c.params.Channels)
	}
	for d := 0; d < 4; d++ {
		if magnitude.Shape[d] != phase.Shape[d] {
			return fmt.Errorf("%w: magnitude shape %v does not match phase shape %v",
				polyfit.ErrDimensionMismatch, magnitude.Shape, phase.Shape)
		}
	}
	if mc := magnitude.Shape[4]; mc != 1 && mc != phase.Shape[4] {
		return fmt.Errorf("%w: magnitude has %d channels, phase has %d",
			polyfit.ErrDimensionMismatch, mc, phase.Shape[4])
	}
	if c.params.Channels == 1 && phase.Shape[2] != 1 {
		return fmt.Errorf("%w: single-channel data must have one slice, got %d",
			polyfit.ErrDimensionMismatch, phase.Shape[2])
	}
	return nil
}

// pointSet collects (target, coordinates) for every pixel set in mask, or
// for every pixel when mask is nil, in row-major pixel order. It also returns
// the flat pixel index of each point.
func (c *Corrector) pointSet(avg *models.Volume, mask *models.Mask) (*polyfit.PointSet, []int, error) {
	channels := avg.Shape[3]
	dims := c.params.Dims()

	var targets, coords []float64
	var pixels []int
	p := 0
	for i := 0; i < avg.Shape[0]; i++ {
		for j := 0; j < avg.Shape[1]; j++ {
			for k := 0; k < avg.Shape[2]; k++ {
				if mask == nil || mask.Data[p] {
					targets = append(targets, avg.Data[p*channels:(p+1)*channels]...)
					coords = append(coords, float64(i), float64(j))
					if dims == 3 {
						coords = append(coords, float64(k))
					}
					pixels = append(pixels, p)
				}
				p++
			}
		}
	}

	ps, err := polyfit.NewPointSet(targets, channels, coords, dims)
	return ps, pixels, err
}

// search runs MSAC over the masked points with the search order.
func (c *Corrector) search(masked *polyfit.PointSet, log zerolog.Logger) (*msac.Consensus, error) {
	strategy, err := polyfit.NewStrategy(c.params.Dims(), c.params.SearchOrder)
	if err != nil {
		return nil, err
	}
	dm, err := strategy.Build(masked)
	if err != nil {
		return nil, err
	}

	est, err := msac.New(strategy, msac.Params{
		Threshold:  c.params.Threshold,
		Samples:    c.params.Samples,
		Trials:     c.params.Trials,
		Workers:    c.params.Workers,
		Degenerate: c.params.Degenerate,
	}, c.src)
	if err != nil {
		return nil, err
	}
	est.SetLogger(log)

	log.Info().
		Int("trials", c.params.Trials).
		Int("samples", c.params.Samples).
		Int("order", c.params.SearchOrder).
		Msg("Step 3: starting MSAC")
	return est.Estimate(dm)
}

func scatterInliers(inliers *polyfit.InlierMask, pixels []int, shape [4]int) *models.ChannelMask {
	out := models.NewChannelMask(shape[0], shape[1], shape[2], shape[3])
	for r, p := range pixels {
		for ch := 0; ch < shape[3]; ch++ {
			out.Data[p*shape[3]+ch] = inliers.At(r, ch)
		}
	}
	return out
}

func scatterBackground(est *mat.Dense, shape [4]int) *models.Volume {
	out := models.NewVolume(shape[0], shape[1], shape[2], shape[3])
	rows, _ := est.Dims()
	for p := 0; p < rows; p++ {
		copy(out.Data[p*shape[3]:(p+1)*shape[3]], est.RawRowView(p))
	}
	return out
}

func subtractAverage(avg, background *models.Volume) *models.Volume {
	out := models.NewVolume(avg.Shape[0], avg.Shape[1], avg.Shape[2], avg.Shape[3])
	for i := range out.Data {
		out.Data[i] = avg.Data[i] - background.Data[i]
	}
	return out
}

// subtractSeries removes background from every time frame.
func subtractSeries(phase *models.Series, background *models.Volume) *models.Series {
	frames, channels := phase.Shape[3], phase.Shape[4]
	out := &models.Series{Data: make([]float64, len(phase.Data)), Shape: phase.Shape}
	for p := 0; p < phase.Pixels(); p++ {
		bg := background.Data[p*channels : (p+1)*channels]
		base := p * frames * channels
		for t := 0; t < frames; t++ {
			for ch, b := range bg {
				idx := base + t*channels + ch
				out.Data[idx] = phase.Data[idx] - b
			}
		}
	}
	return out
}
