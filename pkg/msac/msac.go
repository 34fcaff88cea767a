// Package msac implements M-estimator SAmple Consensus for polynomial
// background models.
//
// Each trial fits a model to a small random sample, scores it against every
// point with a residual truncated at the threshold, and keeps, per channel,
// the lowest-cost model's inlier set.
//
// References:
//
//	P. H. S. Torr and A. Zisserman, "MLESAC: A New Robust Estimator with
//	Application to Estimating Image Geometry," Computer Vision and Image
//	Understanding, 2000.
package msac

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/sampleuv"

	"msacbgcorr/pkg/polyfit"
)

// DegeneratePolicy decides what happens when a trial sample cannot support a
// unique fit (for example three collinear pixels for a plane).
type DegeneratePolicy int

const (
	// Abort stops the whole search with the numerical error
	Abort DegeneratePolicy = iota

	// Skip discards the trial; it still counts towards the trial budget
	Skip
)

// ParseDegeneratePolicy maps "abort" or "skip" to a policy
func ParseDegeneratePolicy(s string) (DegeneratePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return Abort, nil
	case "skip":
		return Skip, nil
	}
	return Abort, fmt.Errorf("%w: unknown degenerate sample policy %q", polyfit.ErrConfig, s)
}

func (p DegeneratePolicy) String() string {
	if p == Skip {
		return "skip"
	}
	return "abort"
}

// Params controls the consensus search
type Params struct {
	// Threshold truncates the scaled residual, in units of venc
	Threshold float64

	// Samples is the number of points drawn per trial
	Samples int

	// Trials is the exact number of trials run; there is no early stop
	Trials int

	// Workers is the number of goroutines evaluating trials (0 means 1)
	Workers int

	// Degenerate selects the handling of rank-deficient samples
	Degenerate DegeneratePolicy
}

// Consensus is the outcome of a search
type Consensus struct {
	// Cost is the best truncated cost per channel
	Cost []float64

	// Inliers flags, per point and channel, residuals strictly below the
	// threshold under that channel's best model
	Inliers *polyfit.InlierMask

	// Trials is the number of trials run
	Trials int

	// Skipped counts trials discarded as degenerate
	Skipped int
}

// Estimator runs MSAC with one fitting strategy and one random source
type Estimator struct {
	strategy polyfit.Strategy
	params   Params
	src      rand.Source
	logger   zerolog.Logger
}

// New validates params against the strategy and returns an estimator that
// draws its samples from src.
func New(strategy polyfit.Strategy, params Params, src rand.Source) (*Estimator, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil random source", polyfit.ErrConfig)
	}
	if !(params.Threshold > 0) || math.IsInf(params.Threshold, 0) {
		return nil, fmt.Errorf("%w: threshold must be positive and finite, got %g", polyfit.ErrConfig, params.Threshold)
	}
	if params.Trials < 1 {
		return nil, fmt.Errorf("%w: trials must be at least 1, got %d", polyfit.ErrConfig, params.Trials)
	}
	if params.Workers < 0 {
		return nil, fmt.Errorf("%w: negative worker count %d", polyfit.ErrConfig, params.Workers)
	}
	if params.Degenerate != Abort && params.Degenerate != Skip {
		return nil, fmt.Errorf("%w: unknown degenerate sample policy %d", polyfit.ErrConfig, params.Degenerate)
	}
	if params.Samples < strategy.Columns() {
		return nil, fmt.Errorf("%w: %d samples per trial, order %d needs at least %d",
			polyfit.ErrInsufficientSamples, params.Samples, strategy.Order(), strategy.Columns())
	}

	return &Estimator{
		strategy: strategy,
		params:   params,
		src:      src,
		logger:   zerolog.Nop(),
	}, nil
}

// SetLogger replaces the default no-op logger
func (e *Estimator) SetLogger(logger zerolog.Logger) {
	e.logger = logger
}

// Estimate runs the configured number of trials over dm.
//
// All samples are drawn from the source up front, in trial order. Trials are
// then scored on Params.Workers goroutines and the per-worker bests merged by
// channel-wise minimum cost, ties going to the earlier trial, so the outcome
// is identical for every worker count.
func (e *Estimator) Estimate(dm *polyfit.DesignMatrix) (*Consensus, error) {
	n := dm.Len()
	channels := dm.Channels()
	if channels != e.strategy.Channels() {
		return nil, fmt.Errorf("%w: %d target channels, strategy fits %d",
			polyfit.ErrDimensionMismatch, channels, e.strategy.Channels())
	}
	if e.params.Samples > n {
		return nil, fmt.Errorf("%w: %d samples requested from %d points",
			polyfit.ErrInsufficientSamples, e.params.Samples, n)
	}

	draws := make([][]int, e.params.Trials)
	for t := range draws {
		draws[t] = make([]int, e.params.Samples)
		sampleuv.WithoutReplacement(draws[t], n, e.src)
	}

	workers := e.params.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > e.params.Trials {
		workers = e.params.Trials
	}

	jobs := make(chan int, len(draws))
	for t := range draws {
		jobs <- t
	}
	close(jobs)

	states := make([]*bestState, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		states[w] = newBestState(channels, n, e.params.Threshold)
		wg.Add(1)
		go func(state *bestState) {
			defer wg.Done()
			for t := range jobs {
				if err := e.trial(t, draws[t], dm, state); err != nil {
					state.err = err
					state.errTrial = t
					return
				}
			}
		}(states[w])
	}
	wg.Wait()

	best := newBestState(channels, n, e.params.Threshold)
	var firstErr error
	errTrial := e.params.Trials
	for _, state := range states {
		if state.err != nil && state.errTrial < errTrial {
			firstErr, errTrial = state.err, state.errTrial
		}
		best.merge(state)
	}
	if firstErr != nil {
		return nil, fmt.Errorf("msac trial %d: %w", errTrial, firstErr)
	}

	inliers := polyfit.NewInlierMask(n, channels)
	for c := 0; c < channels; c++ {
		if best.inliers[c] != nil {
			inliers.SetChannel(c, best.inliers[c])
		}
	}

	e.logger.Debug().
		Str("component", "msac").
		Int("trials", e.params.Trials).
		Int("skipped", best.skipped).
		Floats64("cost", best.cost).
		Ints("bestTrial", best.trial).
		Msg("consensus search finished")

	return &Consensus{
		Cost:    best.cost,
		Inliers: inliers,
		Trials:  e.params.Trials,
		Skipped: best.skipped,
	}, nil
}

// trial fits the sample, scores it against every point and offers the result
// to state.
func (e *Estimator) trial(t int, sample []int, dm *polyfit.DesignMatrix, state *bestState) error {
	model, err := e.strategy.Fit(dm.Rows(sample), nil)
	if err != nil {
		if e.params.Degenerate == Skip && errors.Is(err, polyfit.ErrNumericalSingularity) {
			state.skipped++
			return nil
		}
		return err
	}

	residuals, err := e.strategy.Distance(model, dm)
	if err != nil {
		return err
	}

	cost, inliers, err := score(residuals, e.params.Threshold)
	if err != nil {
		return err
	}
	state.offer(t, cost, inliers)
	return nil
}

// score truncates residuals at threshold and returns the per-channel cost
// and the per-channel inlier flags (residual strictly below threshold).
func score(residuals *mat.Dense, threshold float64) ([]float64, [][]bool, error) {
	n, channels := residuals.Dims()
	cost := make([]float64, channels)
	inliers := make([][]bool, channels)
	for c := range inliers {
		inliers[c] = make([]bool, n)
	}

	for i := 0; i < n; i++ {
		row := residuals.RawRowView(i)
		for c, r := range row {
			if r > threshold {
				r = threshold
			}
			inliers[c][i] = r < threshold
			cost[c] += r
		}
	}

	for c, v := range cost {
		if math.IsNaN(v) {
			return nil, nil, fmt.Errorf("%w: channel %d cost is NaN", polyfit.ErrNumericalSingularity, c)
		}
	}
	return cost, inliers, nil
}
